package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dl-alexandre/sheetport/internal/logging"
	"github.com/dl-alexandre/sheetport/internal/scanner/exclude"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// Options controls a scan. The zero value scans everything.
type Options struct {
	// Exclude holds gitignore-like patterns matched against paths
	// relative to the root
	Exclude []string
	// DefaultExcludes adds exclude.DefaultPatterns()
	DefaultExcludes bool
	Logger          logging.Logger
}

// entryInfo is swapped in tests to simulate metadata failures
var entryInfo = func(d fs.DirEntry) (fs.FileInfo, error) {
	return d.Info()
}

// IsSpreadsheet reports whether name carries a spreadsheet extension
func IsSpreadsheet(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, candidate := range utils.SpreadsheetExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Scan walks root and returns every spreadsheet below it, sorted by path.
// Symlinks below root are never followed; root itself may be one. Returned
// paths are rooted at root as given. Unreadable subdirectories are skipped
// with a warning; only a failure at the root itself is an error.
func Scan(ctx context.Context, root string, opts Options) (types.ScanResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	info, err := os.Stat(root)
	if err != nil {
		return types.ScanResult{}, ioError(root, "cannot read scan root", err)
	}
	if !info.IsDir() {
		return types.ScanResult{}, ioError(root, "scan root is not a directory", nil)
	}
	// WalkDir describes its root with Lstat, so a linked root must be resolved
	walkRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return types.ScanResult{}, ioError(root, "cannot resolve scan root", err)
	}

	var matcher *exclude.Matcher
	if opts.DefaultExcludes {
		matcher = exclude.New(exclude.DefaultPatterns(), opts.Exclude)
	} else {
		matcher = exclude.New(opts.Exclude)
	}

	result := types.ScanResult{Root: root, Files: []types.FileEntry{}}

	err = filepath.WalkDir(walkRoot, func(current string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if walkErr != nil {
			if current == walkRoot {
				return walkErr
			}
			logger.Warn("Skipping unreadable path",
				logging.F("path", current),
				logging.F("error", walkErr.Error()),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&os.ModeSymlink != 0 {
			logger.Debug("Not following symlink", logging.F("path", current))
			return nil
		}

		rel, err := filepath.Rel(walkRoot, current)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		display := filepath.Join(root, rel)
		rel = path.Clean(filepath.ToSlash(rel))

		if matcher.IsExcluded(rel, d.IsDir()) {
			logger.Debug("Excluded", logging.F("path", rel))
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() || !IsSpreadsheet(d.Name()) {
			return nil
		}

		entry := types.FileEntry{Path: display}
		if fi, err := entryInfo(d); err != nil {
			logger.Warn("Cannot read file metadata, size unknown",
				logging.F("path", display),
				logging.F("error", err.Error()),
			)
		} else {
			entry.Size = fi.Size()
			entry.SizeKnown = true
		}
		result.Files = append(result.Files, entry)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return types.ScanResult{}, ctx.Err()
		}
		return types.ScanResult{}, ioError(root, "failed to scan directory", err)
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})
	for _, f := range result.Files {
		result.TotalSize += f.Size
	}
	result.FileCount = len(result.Files)

	logger.Info("Scan complete",
		logging.F("root", root),
		logging.F("files", result.FileCount),
		logging.F("totalSize", result.TotalSize),
	)
	return result, nil
}

func ioError(root, message string, cause error) error {
	text := message
	if cause != nil {
		text = fmt.Sprintf("%s: %v", message, cause)
	}
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeIO, text).
		WithContext("path", root).
		Build(), cause)
}
