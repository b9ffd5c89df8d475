package testing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dl-alexandre/sheetport/internal/types"
)

// TestContext creates a standard test context
func TestContext() context.Context {
	return context.Background()
}

// TestRequestContext creates a standard request context for testing
func TestRequestContext(requestType types.RequestType) *types.RequestContext {
	return &types.RequestContext{
		Profile:     "test-profile",
		RequestType: requestType,
		TraceID:     "test-trace-id",
	}
}

// WriteFiles creates placeholder files below dir. Names may contain
// slashes; parent directories are created.
func WriteFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, filepath.FromSlash(name))
		AssertNoError(t, os.MkdirAll(filepath.Dir(paths[i]), 0755), "creating fixture directory")
		AssertNoError(t, os.WriteFile(paths[i], []byte("fixture "+name), 0644), "writing fixture")
	}
	return paths
}

// WriteWorkbook saves an xlsx file whose first sheet holds rows as text
func WriteWorkbook(t *testing.T, path string, rows [][]string) {
	t.Helper()
	AssertNoError(t, os.MkdirAll(filepath.Dir(path), 0755), "creating workbook directory")

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			AssertNoError(t, err, "cell name")
			AssertNoError(t, f.SetCellStr(sheet, cell, value), "setting cell")
		}
	}
	AssertNoError(t, f.SaveAs(path), "saving workbook")
}

// ReadRows returns the rows of the first sheet of the workbook at path
func ReadRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	AssertNoError(t, err, "opening workbook")
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	AssertNoError(t, err, "reading rows")
	return rows
}

// AssertNoError is a helper to fail the test if error is not nil
func AssertNoError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: %v", msgAndArgs[0], err)
		} else {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

// AssertError is a helper to fail the test if error is nil
func AssertError(t *testing.T, err error, msgAndArgs ...interface{}) {
	t.Helper()
	if err == nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: expected error but got nil", msgAndArgs[0])
		} else {
			t.Fatal("expected error but got nil")
		}
	}
}

// AssertEqual is a helper to fail the test if two values are not equal
func AssertEqual(t *testing.T, got, want interface{}, msgAndArgs ...interface{}) {
	t.Helper()
	if got != want {
		if len(msgAndArgs) > 0 {
			t.Fatalf("%v: got %v, want %v", msgAndArgs[0], got, want)
		} else {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
