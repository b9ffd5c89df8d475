package scanner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/sheetport/internal/utils"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
}

func TestScan_FindsSpreadsheetsRecursively(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.xlsx"), 10)
	writeFile(t, filepath.Join(root, "A.XLS"), 5)
	writeFile(t, filepath.Join(root, "notes.txt"), 100)
	writeFile(t, filepath.Join(root, "q1", "jan.Xlsx"), 7)
	writeFile(t, filepath.Join(root, "q1", "deep", "feb.xlsx"), 3)
	writeFile(t, filepath.Join(root, "q1", "deep", "feb.xlsx.bak"), 3)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0755))

	result, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, result.FileCount)
	assert.Equal(t, int64(25), result.TotalSize)
	assert.Equal(t, []string{
		filepath.Join(root, "A.XLS"),
		filepath.Join(root, "b.xlsx"),
		filepath.Join(root, "q1", "deep", "feb.xlsx"),
		filepath.Join(root, "q1", "jan.Xlsx"),
	}, result.Paths())
	for _, f := range result.Files {
		assert.True(t, f.SizeKnown, f.Path)
	}
}

func TestScan_CountMatchesPlantedFiles(t *testing.T) {
	for _, n := range []int{0, 1, 7, 30} {
		root := t.TempDir()
		for i := 0; i < n; i++ {
			dir := filepath.Join(root, fmt.Sprintf("d%d", i%5))
			writeFile(t, filepath.Join(dir, fmt.Sprintf("f%02d.xlsx", i)), 1)
			writeFile(t, filepath.Join(dir, fmt.Sprintf("f%02d.csv", i)), 1)
		}

		result, err := Scan(context.Background(), root, Options{})
		require.NoError(t, err)
		assert.Equal(t, n, result.FileCount)
		assert.Len(t, result.Files, n)
	}
}

func TestScan_EmptyDirectory(t *testing.T) {
	result, err := Scan(context.Background(), t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.FileCount)
	assert.NotNil(t, result.Files)
}

func TestScan_RootErrors(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.xlsx")
	writeFile(t, file, 1)

	for _, target := range []string{filepath.Join(root, "missing"), file} {
		_, err := Scan(context.Background(), target, Options{})
		require.Error(t, err)
		assert.Equal(t, utils.ErrCodeIO, utils.ErrorCode(err), target)
	}
}

func TestScan_SkipsSymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	root := t.TempDir()
	outside := t.TempDir()
	writeFile(t, filepath.Join(root, "real.xlsx"), 1)
	writeFile(t, filepath.Join(outside, "elsewhere.xlsx"), 1)
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linked")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "loop")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "elsewhere.xlsx"), filepath.Join(root, "alias.xlsx")))

	result, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "real.xlsx")}, result.Paths())
}

func TestScan_SymlinkedRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.xlsx"), 3)
	writeFile(t, filepath.Join(dir, "sub", "b.xlsx"), 4)
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "c.xlsx"), 1)
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "linked")))

	inbox := filepath.Join(t.TempDir(), "inbox")
	require.NoError(t, os.Symlink(dir, inbox))

	direct, err := Scan(context.Background(), dir, Options{})
	require.NoError(t, err)
	viaLink, err := Scan(context.Background(), inbox, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, direct.FileCount)
	assert.Equal(t, direct.FileCount, viaLink.FileCount)
	assert.Equal(t, int64(7), viaLink.TotalSize)
	assert.Equal(t, []string{
		filepath.Join(inbox, "a.xlsx"),
		filepath.Join(inbox, "sub", "b.xlsx"),
	}, viaLink.Paths())
}

func TestScan_Exclude(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "keep.xlsx"), 1)
	writeFile(t, filepath.Join(root, "~$keep.xlsx"), 1)
	writeFile(t, filepath.Join(root, "archive", "old.xlsx"), 1)

	all, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.FileCount)

	filtered, err := Scan(context.Background(), root, Options{
		Exclude:         []string{"archive/"},
		DefaultExcludes: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "keep.xlsx")}, filtered.Paths())
}

func TestScan_MetadataErrorKeepsEntry(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.xlsx"), 4)
	writeFile(t, filepath.Join(root, "b.xlsx"), 6)

	orig := entryInfo
	t.Cleanup(func() { entryInfo = orig })
	entryInfo = func(d fs.DirEntry) (fs.FileInfo, error) {
		if d.Name() == "a.xlsx" {
			return nil, errors.New("stat failed")
		}
		return d.Info()
	}

	result, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)
	require.Len(t, result.Files, 2)
	assert.False(t, result.Files[0].SizeKnown)
	assert.Equal(t, int64(0), result.Files[0].Size)
	assert.True(t, result.Files[1].SizeKnown)
	assert.Equal(t, int64(6), result.TotalSize)
}

func TestScan_UnreadableSubdirectorySkipped(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "ok.xlsx"), 1)
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "hidden.xlsx"), 1)
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	result, err := Scan(context.Background(), root, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "ok.xlsx")}, result.Paths())
}

func TestScan_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.xlsx"), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Scan(ctx, root, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsSpreadsheet(t *testing.T) {
	assert.True(t, IsSpreadsheet("a.xlsx"))
	assert.True(t, IsSpreadsheet("A.XLS"))
	assert.False(t, IsSpreadsheet("a.xlsm"))
	assert.False(t, IsSpreadsheet("xlsx"))
	assert.False(t, IsSpreadsheet("a.csv"))
}
