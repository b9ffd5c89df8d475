package sheets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dl-alexandre/sheetport/internal/mapping"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// writeWorkbook saves a workbook whose sheets hold the given rows
func writeWorkbook(t *testing.T, path string, sheets map[string][][]interface{}, order ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	f := excelize.NewFile()
	defer f.Close()
	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}
	require.NoError(t, f.SaveAs(path))
}

func readRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestConvertFile_RemapsHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.xlsx")
	output := filepath.Join(dir, "out", "in.xlsx")
	writeWorkbook(t, source, map[string][][]interface{}{
		"Data": {
			{"A", "B"},
			{"A", 42},
			{"x", "B"},
		},
	}, "Data")

	table := mapping.NewTable(types.ColumnMapping{Original: "A", Mapped: "X"})
	got, err := NewManager(nil).ConvertFile(source, output, table)
	require.NoError(t, err)

	assert.Equal(t, 1, got.Sheets)
	assert.Equal(t, output, got.OutputPath)
	assert.Equal(t, [][]string{
		{"X", "B"},
		{"A", "42"},
		{"x", "B"},
	}, readRows(t, output, "Data"))
}

func TestConvertFile_HeaderIsFirstRowNotFirstUsedRow(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "offset.xlsx")
	output := filepath.Join(dir, "out", "offset.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "A"))
	require.NoError(t, f.SetCellValue("Sheet1", "C2", "B"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", "v"))
	require.NoError(t, f.SaveAs(source))
	require.NoError(t, f.Close())

	table := mapping.NewTable(types.ColumnMapping{Original: "A", Mapped: "X"})
	_, err := NewManager(nil).ConvertFile(source, output, table)
	require.NoError(t, err)

	out, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer out.Close()
	for cell, want := range map[string]string{"A1": "", "B2": "A", "C2": "B", "B3": "v"} {
		got, err := out.GetCellValue("Sheet1", cell)
		require.NoError(t, err)
		assert.Equal(t, want, got, cell)
	}
}

func TestConvertFile_CellsWrittenAsText(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.xlsx")
	output := filepath.Join(dir, "out.xlsx")
	writeWorkbook(t, source, map[string][][]interface{}{
		"S": {{"n"}, {3.5}, {true}},
	}, "S")

	_, err := NewManager(nil).ConvertFile(source, output, mapping.NewTable())
	require.NoError(t, err)

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()
	for _, cell := range []string{"A1", "A2", "A3"} {
		cellType, err := f.GetCellType("S", cell)
		require.NoError(t, err)
		assert.Contains(t, []excelize.CellType{excelize.CellTypeSharedString, excelize.CellTypeInlineString}, cellType, cell)
	}
	assert.Equal(t, [][]string{{"n"}, {"3.5"}, {"TRUE"}}, readRows(t, output, "S"))
}

func TestConvertFile_EmptyTableRoundTrip(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.xlsx")
	output := filepath.Join(dir, "out.xlsx")
	sheets := map[string][][]interface{}{
		"First":  {{"h1", "h2", "h3"}, {"a", nil, "c"}, {"d"}},
		"Second": {{"only"}},
		"Empty":  {},
	}
	writeWorkbook(t, source, sheets, "First", "Second", "Empty")

	got, err := NewManager(nil).ConvertFile(source, output, mapping.NewTable())
	require.NoError(t, err)
	assert.Equal(t, 3, got.Sheets)

	in, err := excelize.OpenFile(source)
	require.NoError(t, err)
	defer in.Close()
	out, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, in.GetSheetList(), out.GetSheetList())
	for _, name := range in.GetSheetList() {
		want, err := in.GetRows(name)
		require.NoError(t, err)
		have, err := out.GetRows(name)
		require.NoError(t, err)
		assert.Equal(t, want, have, name)
	}
}

func TestConvertFile_MultiSheetHeaders(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.xlsx")
	output := filepath.Join(dir, "out.xlsx")
	writeWorkbook(t, source, map[string][][]interface{}{
		"One": {{"A", "B"}, {"A"}},
		"Two": {{"B", "A"}},
	}, "One", "Two")

	table, err := mapping.Parse([]string{"A:X", "B:Y"}, false)
	require.NoError(t, err)
	_, err = NewManager(nil).ConvertFile(source, output, table)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"X", "Y"}, {"A"}}, readRows(t, output, "One"))
	assert.Equal(t, [][]string{{"Y", "X"}}, readRows(t, output, "Two"))
}

func TestConvertFile_FormatErrors(t *testing.T) {
	dir := t.TempDir()

	legacy := filepath.Join(dir, "legacy.xls")
	ole := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, make([]byte, 1024)...)
	require.NoError(t, os.WriteFile(legacy, ole, 0644))

	corrupt := filepath.Join(dir, "corrupt.xlsx")
	require.NoError(t, os.WriteFile(corrupt, []byte("this is not a workbook"), 0644))

	for _, source := range []string{legacy, corrupt} {
		_, err := NewManager(nil).ConvertFile(source, filepath.Join(dir, "out", filepath.Base(source)), mapping.NewTable())
		require.Error(t, err, source)
		assert.Equal(t, utils.ErrCodeFormat, utils.ErrorCode(err), source)
		assert.Contains(t, err.Error(), "detected", source)
	}
}

func TestConvertFile_WriteError(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.xlsx")
	writeWorkbook(t, source, map[string][][]interface{}{"S": {{"A"}}}, "S")

	// output path is an existing directory
	output := filepath.Join(dir, "taken")
	require.NoError(t, os.MkdirAll(output, 0755))

	_, err := NewManager(nil).ConvertFile(source, output, mapping.NewTable())
	require.Error(t, err)
	assert.Equal(t, utils.ErrCodeWrite, utils.ErrorCode(err))
}

func TestConvert_MirrorsTreeInOrder(t *testing.T) {
	sourceRoot := t.TempDir()
	targetRoot := filepath.Join(t.TempDir(), "converted")
	files := []string{
		filepath.Join(sourceRoot, "a.xlsx"),
		filepath.Join(sourceRoot, "q1", "b.xlsx"),
		filepath.Join(sourceRoot, "q1", "deep", "c.xlsx"),
	}
	for _, f := range files {
		writeWorkbook(t, f, map[string][][]interface{}{"S": {{"A", "B"}}}, "S")
	}

	var progress []int
	m := NewManager(nil)
	m.SetProgress(func(done, total int, file types.ConvertedFile) {
		assert.Equal(t, len(files), total)
		progress = append(progress, done)
	})

	table := mapping.NewTable(types.ColumnMapping{Original: "A", Mapped: "X"})
	converted, err := m.Convert(context.Background(), sourceRoot, targetRoot, files, table)
	require.NoError(t, err)
	require.Len(t, converted, 3)
	assert.Equal(t, []int{1, 2, 3}, progress)

	for i, f := range files {
		rel, err := filepath.Rel(sourceRoot, f)
		require.NoError(t, err)
		assert.Equal(t, f, converted[i].SourcePath)
		assert.Equal(t, filepath.Join(targetRoot, rel), converted[i].OutputPath)
		assert.Equal(t, [][]string{{"X", "B"}}, readRows(t, converted[i].OutputPath, "S"))
	}

	// converting again overwrites in place
	_, err = m.Convert(context.Background(), sourceRoot, targetRoot, files, table)
	require.NoError(t, err)
}

func TestConvert_AbortsOnFirstFailure(t *testing.T) {
	sourceRoot := t.TempDir()
	targetRoot := t.TempDir()
	good := filepath.Join(sourceRoot, "a.xlsx")
	bad := filepath.Join(sourceRoot, "b.xlsx")
	never := filepath.Join(sourceRoot, "c.xlsx")
	writeWorkbook(t, good, map[string][][]interface{}{"S": {{"A"}}}, "S")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0644))
	writeWorkbook(t, never, map[string][][]interface{}{"S": {{"A"}}}, "S")

	converted, err := NewManager(nil).Convert(context.Background(), sourceRoot, targetRoot, []string{good, bad, never}, mapping.NewTable())
	require.Error(t, err)
	assert.Nil(t, converted)
	assert.Equal(t, utils.ErrCodeFormat, utils.ErrorCode(err))
	assert.NoFileExists(t, filepath.Join(targetRoot, "c.xlsx"))
}

func TestConvert_Cancelled(t *testing.T) {
	sourceRoot := t.TempDir()
	file := filepath.Join(sourceRoot, "a.xlsx")
	writeWorkbook(t, file, map[string][][]interface{}{"S": {{"A"}}}, "S")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewManager(nil).Convert(ctx, sourceRoot, t.TempDir(), []string{file}, mapping.NewTable())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOutputPath(t *testing.T) {
	root := t.TempDir()
	target := t.TempDir()

	got, err := OutputPath(root, target, filepath.Join(root, "x", "a.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(target, "x", "a.xlsx"), got)

	for _, source := range []string{
		filepath.Join(filepath.Dir(root), "elsewhere.xlsx"),
		root,
	} {
		_, err := OutputPath(root, target, source)
		require.Error(t, err)
		assert.Equal(t, utils.ErrCodePath, utils.ErrorCode(err))
	}

	_, err = OutputPath(root, root, filepath.Join(root, "a.xlsx"))
	assert.Equal(t, utils.ErrCodePath, utils.ErrorCode(err))
}
