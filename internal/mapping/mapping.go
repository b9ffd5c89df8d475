// Package mapping holds the header rename table applied to the first row
// of every converted sheet.
package mapping

import (
	"fmt"
	"strings"

	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// Table maps original header text to its replacement. Later entries for
// the same original replace earlier ones. Order of first insertion is kept
// for display.
type Table struct {
	entries map[string]string
	order   []string
}

// NewTable builds a table from mappings, last write wins
func NewTable(mappings ...types.ColumnMapping) *Table {
	t := &Table{entries: make(map[string]string, len(mappings))}
	for _, m := range mappings {
		t.Set(m.Original, m.Mapped)
	}
	return t
}

// Set adds or replaces one mapping
func (t *Table) Set(original, mapped string) {
	if t.entries == nil {
		t.entries = make(map[string]string)
	}
	if _, ok := t.entries[original]; !ok {
		t.order = append(t.order, original)
	}
	t.entries[original] = mapped
}

// Lookup returns the replacement for header text, or the text unchanged.
// Matching is exact: no trimming or case folding.
func (t *Table) Lookup(header string) string {
	if t == nil {
		return header
	}
	if mapped, ok := t.entries[header]; ok {
		return mapped
	}
	return header
}

// Len is the number of distinct originals
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// IsEmpty reports whether the table has no mappings. An empty table means
// files are uploaded as scanned, without conversion.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// Mappings returns the collapsed table in first-insertion order
func (t *Table) Mappings() []types.ColumnMapping {
	if t == nil {
		return []types.ColumnMapping{}
	}
	out := make([]types.ColumnMapping, 0, len(t.order))
	for _, original := range t.order {
		out = append(out, types.ColumnMapping{Original: original, Mapped: t.entries[original]})
	}
	return out
}

// ParseToken splits "original:mapped" on the first colon. Both halves
// must be non-empty; the mapped half may itself contain colons.
func ParseToken(token string) (types.ColumnMapping, error) {
	original, mapped, found := strings.Cut(token, ":")
	if !found {
		return types.ColumnMapping{}, invalidToken(token, "expected original:mapped")
	}
	if original == "" || mapped == "" {
		return types.ColumnMapping{}, invalidToken(token, "both sides of ':' must be non-empty")
	}
	return types.ColumnMapping{Original: original, Mapped: mapped}, nil
}

// Parse builds a table from tokens, optionally seeded with Defaults().
// User tokens override defaults for the same original.
func Parse(tokens []string, withDefaults bool) (*Table, error) {
	t := NewTable()
	if withDefaults {
		for _, m := range Defaults() {
			t.Set(m.Original, m.Mapped)
		}
	}
	for _, token := range tokens {
		m, err := ParseToken(token)
		if err != nil {
			return nil, err
		}
		t.Set(m.Original, m.Mapped)
	}
	return t, nil
}

// Defaults is the built-in header table for patent exports. Every entry
// maps a column to itself, so enabling it forces a conversion pass that
// normalises every cell to text without renaming anything.
func Defaults() []types.ColumnMapping {
	headers := []string{"申请号", "申请日", "名称", "类型", "法律状态", "申请人"}
	out := make([]types.ColumnMapping, len(headers))
	for i, h := range headers {
		out[i] = types.ColumnMapping{Original: h, Mapped: h}
	}
	return out
}

func invalidToken(token, reason string) error {
	return utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
		fmt.Sprintf("invalid column mapping %q: %s", token, reason)).
		WithContext("token", token).
		Build())
}
