package sheets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"

	"github.com/dl-alexandre/sheetport/internal/logging"
	"github.com/dl-alexandre/sheetport/internal/mapping"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// legacyMimeTypes are OLE2 compound documents (BIFF .xls), which are not
// readable as workbooks here
var legacyMimeTypes = []string{
	"application/vnd.ms-excel",
	"application/x-ole-storage",
}

// ProgressFunc is called after each converted file
type ProgressFunc func(done, total int, file types.ConvertedFile)

// Manager rewrites workbooks with remapped header rows
type Manager struct {
	logger   logging.Logger
	progress ProgressFunc
}

func NewManager(logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Manager{logger: logger}
}

// SetProgress registers a callback invoked after every converted file
func (m *Manager) SetProgress(fn ProgressFunc) {
	m.progress = fn
}

type convertResult struct {
	file types.ConvertedFile
	err  error
}

// Convert mirrors every file from sourceRoot into targetRoot, in the order
// given. The first failure aborts the pass. Each file is converted on a
// worker goroutine; only one is ever in flight.
func (m *Manager) Convert(ctx context.Context, sourceRoot, targetRoot string, files []string, table *mapping.Table) ([]types.ConvertedFile, error) {
	converted := make([]types.ConvertedFile, 0, len(files))

	for i, source := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		output, err := OutputPath(sourceRoot, targetRoot, source)
		if err != nil {
			return nil, err
		}

		done := make(chan convertResult, 1)
		go func(source, output string) {
			file, err := m.ConvertFile(source, output, table)
			done <- convertResult{file: file, err: err}
		}(source, output)

		result := <-done
		if result.err != nil {
			m.logger.Error("Conversion failed",
				logging.F("path", source),
				logging.F("error", result.err.Error()),
			)
			return nil, result.err
		}

		converted = append(converted, result.file)
		m.logger.Debug("Converted workbook",
			logging.F("source", source),
			logging.F("output", output),
			logging.F("sheets", result.file.Sheets),
		)
		if m.progress != nil {
			m.progress(i+1, len(files), result.file)
		}
	}

	return converted, nil
}

// OutputPath places source at the same relative location under targetRoot
func OutputPath(sourceRoot, targetRoot, source string) (string, error) {
	absRoot, err := filepath.Abs(sourceRoot)
	if err != nil {
		return "", pathError(source, "cannot resolve source root", err)
	}
	absSource, err := filepath.Abs(source)
	if err != nil {
		return "", pathError(source, "cannot resolve source path", err)
	}
	rel, err := filepath.Rel(absRoot, absSource)
	if err != nil {
		return "", pathError(source, "file is not under the source root", err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", pathError(source, "file is not under the source root", nil)
	}

	absTarget, err := filepath.Abs(targetRoot)
	if err != nil {
		return "", pathError(source, "cannot resolve target root", err)
	}
	output := filepath.Join(absTarget, rel)
	if output == absSource {
		return "", pathError(source, "output would overwrite the source file", nil)
	}
	return output, nil
}

// ConvertFile rewrites one workbook: every sheet is recreated under the
// same name, row 1 goes through table, and every cell is written as text.
func (m *Manager) ConvertFile(source, output string, table *mapping.Table) (types.ConvertedFile, error) {
	src, err := openWorkbook(source)
	if err != nil {
		return types.ConvertedFile{}, err
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			m.logger.Warn("Failed to close workbook", logging.F("path", source), logging.F("error", closeErr.Error()))
		}
	}()

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return types.ConvertedFile{}, writeError(output, "cannot create output directory", err)
	}

	dst := excelize.NewFile()
	defer func() {
		_ = dst.Close()
	}()

	sheetNames := src.GetSheetList()
	defaultSheet := dst.GetSheetName(0)
	for i, name := range sheetNames {
		if i == 0 {
			if err := dst.SetSheetName(defaultSheet, name); err != nil {
				return types.ConvertedFile{}, writeError(output, "cannot name sheet "+name, err)
			}
		} else if _, err := dst.NewSheet(name); err != nil {
			return types.ConvertedFile{}, writeError(output, "cannot create sheet "+name, err)
		}

		rows, err := src.GetRows(name)
		if err != nil {
			return types.ConvertedFile{}, formatError(source, "", fmt.Sprintf("cannot read sheet %s", name), err)
		}
		if err := copyRows(dst, name, rows, table); err != nil {
			return types.ConvertedFile{}, writeError(output, "cannot write sheet "+name, err)
		}
	}

	if err := saveWorkbook(dst, output); err != nil {
		return types.ConvertedFile{}, err
	}

	return types.ConvertedFile{
		SourcePath: source,
		OutputPath: output,
		Sheets:     len(sheetNames),
	}, nil
}

func copyRows(dst *excelize.File, sheet string, rows [][]string, table *mapping.Table) error {
	for r, row := range rows {
		for c, value := range row {
			if r == 0 {
				value = table.Lookup(value)
			}
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := dst.SetCellStr(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func openWorkbook(source string) (*excelize.File, error) {
	detected := "unknown"
	if mtype, err := mimetype.DetectFile(source); err == nil {
		detected = mtype.String()
		for m := mtype; m != nil; m = m.Parent() {
			for _, legacy := range legacyMimeTypes {
				if m.Is(legacy) {
					return nil, formatError(source, detected, "legacy binary workbooks are not supported, save it as .xlsx", nil)
				}
			}
		}
	} else if os.IsNotExist(err) {
		return nil, utils.WrapAppError(utils.NewCLIError(utils.ErrCodeIO, fmt.Sprintf("cannot open workbook: %v", err)).
			WithContext("path", source).
			Build(), err)
	}

	f, err := excelize.OpenFile(source)
	if err != nil {
		return nil, formatError(source, detected, "cannot open workbook", err)
	}
	return f, nil
}

func saveWorkbook(f *excelize.File, output string) (err error) {
	out, err := os.Create(output)
	if err != nil {
		return writeError(output, "cannot create output file", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = writeError(output, "cannot close output file", closeErr)
		}
	}()

	// Write instead of SaveAs: SaveAs rejects names ending in .xls
	if err := f.Write(out); err != nil {
		return writeError(output, "cannot save workbook", err)
	}
	return nil
}

func formatError(path, detected, message string, cause error) error {
	text := message
	if cause != nil {
		text = fmt.Sprintf("%s: %v", message, cause)
	}
	if detected != "" {
		text = fmt.Sprintf("%s (detected %s)", text, detected)
	}
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeFormat, text).
		WithContext("path", path).
		WithContext("mimeType", detected).
		Build(), cause)
}

func writeError(path, message string, cause error) error {
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeWrite, fmt.Sprintf("%s: %v", message, cause)).
		WithContext("path", path).
		Build(), cause)
}

func pathError(path, message string, cause error) error {
	text := message
	if cause != nil {
		text = fmt.Sprintf("%s: %v", message, cause)
	}
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodePath, text).
		WithContext("path", path).
		Build(), cause)
}
