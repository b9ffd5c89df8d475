package cli

import (
	"path/filepath"

	"github.com/dl-alexandre/sheetport/internal/auth"
	"github.com/dl-alexandre/sheetport/internal/config"
	"github.com/dl-alexandre/sheetport/internal/history"
	"github.com/dl-alexandre/sheetport/internal/mapping"
)

// mappingFlags are shared by run and convert
type mappingFlags struct {
	tokens   []string
	defaults bool
}

// table builds the mapping table: built-in defaults first when enabled,
// then configured tokens, then flag tokens. Later entries win.
func (f mappingFlags) table(cfg *config.Config) (*mapping.Table, error) {
	tokens := append(append([]string{}, cfg.ColumnMappings...), f.tokens...)
	return mapping.Parse(tokens, f.defaults || cfg.UseDefaultMappings)
}

func getDataDir() (string, error) {
	return config.GetDataDir()
}

func newAuthManager() (*auth.Manager, error) {
	dir, err := getDataDir()
	if err != nil {
		return nil, err
	}
	return auth.NewManager(dir), nil
}

func openHistory() (*history.DB, error) {
	dir, err := getDataDir()
	if err != nil {
		return nil, err
	}
	return history.Open(filepath.Join(dir, history.FileName))
}
