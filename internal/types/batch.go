package types

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

// FileEntry is one spreadsheet found by a scan
type FileEntry struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	SizeKnown bool   `json:"sizeKnown"`
}

// ScanResult is the ordered outcome of one directory scan
type ScanResult struct {
	Root      string      `json:"root"`
	FileCount int         `json:"fileCount"`
	TotalSize int64       `json:"totalSize"`
	Files     []FileEntry `json:"files"`
}

// Paths returns the scanned paths in scan order
func (r ScanResult) Paths() []string {
	paths := make([]string, len(r.Files))
	for i, f := range r.Files {
		paths[i] = f.Path
	}
	return paths
}

func (r ScanResult) AsTableRenderer() TableRenderer {
	return scanTable{r}
}

type scanTable struct{ r ScanResult }

func (t scanTable) Headers() []string { return []string{"Path", "Size"} }

func (t scanTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.r.Files))
	for _, f := range t.r.Files {
		size := "?"
		if f.SizeKnown {
			size = strconv.FormatInt(f.Size, 10)
		}
		rows = append(rows, []string{f.Path, size})
	}
	return rows
}

func (t scanTable) EmptyMessage() string { return "No spreadsheet files found" }

// ColumnMapping renames one header cell
type ColumnMapping struct {
	Original string `json:"original"`
	Mapped   string `json:"mapped"`
}

// ConvertedFile is a rewritten workbook under the target root
type ConvertedFile struct {
	SourcePath string `json:"sourcePath"`
	OutputPath string `json:"outputPath"`
	Sheets     int    `json:"sheets"`
}

// ConvertResult lists the files produced by one conversion pass
type ConvertResult struct {
	SourceRoot string          `json:"sourceRoot"`
	TargetRoot string          `json:"targetRoot"`
	Files      []ConvertedFile `json:"files"`
}

func (r ConvertResult) AsTableRenderer() TableRenderer {
	return convertTable{r}
}

type convertTable struct{ r ConvertResult }

func (t convertTable) Headers() []string { return []string{"Source", "Output", "Sheets"} }

func (t convertTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.r.Files))
	for _, f := range t.r.Files {
		rows = append(rows, []string{f.SourcePath, f.OutputPath, strconv.Itoa(f.Sheets)})
	}
	return rows
}

func (t convertTable) EmptyMessage() string { return "No files converted" }

// OutcomeKind tags an UploadOutcome
type OutcomeKind string

const (
	OutcomeSuccess            OutcomeKind = "success"
	OutcomeApplicationFailure OutcomeKind = "application_failure"
	OutcomeTransportFailure   OutcomeKind = "transport_failure"
	OutcomeTimeout            OutcomeKind = "timeout"
	OutcomeNotFound           OutcomeKind = "not_found"
)

// ImportCounts are the counters the import endpoint reports on success
type ImportCounts struct {
	ModifiedCount int `json:"modifiedCount"`
	UpsertedCount int `json:"upsertedCount"`
	ExcelCount    int `json:"excelCount"`
}

// UploadOutcome is the classified result of exactly one upload attempt.
// Only the fields belonging to Kind are meaningful.
type UploadOutcome struct {
	Kind       OutcomeKind   `json:"kind"`
	Counts     ImportCounts  `json:"counts"`
	HTTPStatus int           `json:"httpStatus,omitempty"`
	Message    string        `json:"message,omitempty"`
	Err        error         `json:"-"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// Succeeded reports whether the outcome is a Success
func (o UploadOutcome) Succeeded() bool {
	return o.Kind == OutcomeSuccess
}

// Reason is the human-readable failure description stored in reports
func (o UploadOutcome) Reason() string {
	switch o.Kind {
	case OutcomeSuccess:
		return ""
	case OutcomeApplicationFailure:
		if o.HTTPStatus != 0 {
			return fmt.Sprintf("upload failed [%d]: %s", o.HTTPStatus, o.Message)
		}
		return o.Message
	case OutcomeTimeout:
		return fmt.Sprintf("upload timed out after %s", o.Timeout)
	case OutcomeNotFound:
		if o.Err != nil {
			return fmt.Sprintf("file not found: %v", o.Err)
		}
		return "file not found"
	case OutcomeTransportFailure:
		if o.Err != nil {
			return fmt.Sprintf("request failed: %v", o.Err)
		}
		return "request failed"
	default:
		return string(o.Kind)
	}
}

// FailureRecord is one failed file in a BatchReport
type FailureRecord struct {
	Path   string      `json:"path"`
	Kind   OutcomeKind `json:"kind"`
	Reason string      `json:"reason"`
}

// FileOutcome is the per-file line of a BatchReport
type FileOutcome struct {
	Path    string        `json:"path"`
	Outcome UploadOutcome `json:"outcome"`
}

// BatchReport is the user-visible result of one run
type BatchReport struct {
	RunID      string          `json:"runId"`
	Success    int             `json:"success"`
	Failed     int             `json:"failed"`
	Failures   []FailureRecord `json:"failures"`
	Outcomes   []FileOutcome   `json:"outcomes"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
}

// Record adds one upload outcome to the report
func (r *BatchReport) Record(path string, outcome UploadOutcome) {
	r.Outcomes = append(r.Outcomes, FileOutcome{Path: path, Outcome: outcome})
	if outcome.Succeeded() {
		r.Success++
		return
	}
	r.Failed++
	r.Failures = append(r.Failures, FailureRecord{
		Path:   path,
		Kind:   outcome.Kind,
		Reason: outcome.Reason(),
	})
}

// Total is the number of attempted uploads
func (r *BatchReport) Total() int {
	return r.Success + r.Failed
}

func (r *BatchReport) AsTableRenderer() TableRenderer {
	return reportTable{r}
}

type reportTable struct{ r *BatchReport }

func (t reportTable) Headers() []string {
	return []string{"File", "Result", "Modified", "Upserted", "Detail"}
}

func (t reportTable) Rows() [][]string {
	rows := make([][]string, 0, len(t.r.Outcomes))
	for _, o := range t.r.Outcomes {
		modified, upserted := "-", "-"
		if o.Outcome.Succeeded() {
			modified = strconv.Itoa(o.Outcome.Counts.ModifiedCount)
			upserted = strconv.Itoa(o.Outcome.Counts.UpsertedCount)
		}
		rows = append(rows, []string{
			filepath.Base(o.Path),
			string(o.Outcome.Kind),
			modified,
			upserted,
			o.Outcome.Reason(),
		})
	}
	return rows
}

func (t reportTable) EmptyMessage() string { return "No files uploaded" }
