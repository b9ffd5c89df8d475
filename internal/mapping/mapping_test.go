package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		token   string
		want    types.ColumnMapping
		wantErr bool
	}{
		{token: "A:X", want: types.ColumnMapping{Original: "A", Mapped: "X"}},
		{token: "time:hh:mm", want: types.ColumnMapping{Original: "time", Mapped: "hh:mm"}},
		{token: " A : X ", want: types.ColumnMapping{Original: " A ", Mapped: " X "}},
		{token: "申请号:application_no", want: types.ColumnMapping{Original: "申请号", Mapped: "application_no"}},
		{token: "A", wantErr: true},
		{token: ":X", wantErr: true},
		{token: "A:", wantErr: true},
		{token: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseToken(tt.token)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, utils.ErrCodeInvalidArgument, utils.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable_Lookup(t *testing.T) {
	table := NewTable(
		types.ColumnMapping{Original: "A", Mapped: "X"},
		types.ColumnMapping{Original: "B", Mapped: "Y"},
	)

	assert.Equal(t, "X", table.Lookup("A"))
	assert.Equal(t, "Y", table.Lookup("B"))
	assert.Equal(t, "C", table.Lookup("C"))
	assert.Equal(t, "a", table.Lookup("a"), "matching is case-sensitive")
	assert.Equal(t, " A", table.Lookup(" A"), "matching does not trim")
	assert.Equal(t, "", table.Lookup(""))

	var nilTable *Table
	assert.Equal(t, "A", nilTable.Lookup("A"))
	assert.True(t, nilTable.IsEmpty())
}

func TestTable_LastWriteWins(t *testing.T) {
	table, err := Parse([]string{"A:X", "B:Y", "A:Z"}, false)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Len())
	assert.Equal(t, "Z", table.Lookup("A"))
	assert.Equal(t, []types.ColumnMapping{
		{Original: "A", Mapped: "Z"},
		{Original: "B", Mapped: "Y"},
	}, table.Mappings())
}

func TestParse_WithDefaults(t *testing.T) {
	table, err := Parse([]string{"名称:title"}, true)
	require.NoError(t, err)

	assert.Equal(t, len(Defaults()), table.Len())
	assert.Equal(t, "title", table.Lookup("名称"))
	assert.Equal(t, "申请号", table.Lookup("申请号"))
}

func TestParse_EmptyAndInvalid(t *testing.T) {
	table, err := Parse(nil, false)
	require.NoError(t, err)
	assert.True(t, table.IsEmpty())
	assert.Empty(t, table.Mappings())

	_, err = Parse([]string{"A:X", "broken"}, true)
	assert.Error(t, err)
}

func TestDefaults_AreIdentity(t *testing.T) {
	for _, m := range Defaults() {
		assert.Equal(t, m.Original, m.Mapped)
	}
}
