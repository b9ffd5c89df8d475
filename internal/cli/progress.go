package cli

import (
	"path/filepath"

	"github.com/dl-alexandre/sheetport/internal/batch"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// progressPrinter reports a run on stderr as it happens
type progressPrinter struct {
	out    *OutputWriter
	dryRun bool
}

func newProgressPrinter(out *OutputWriter, dryRun bool) *progressPrinter {
	return &progressPrinter{out: out, dryRun: dryRun}
}

func (p *progressPrinter) OnStage(stage batch.Stage) {
	labels := map[batch.Stage]string{
		batch.StageLogin:   "Logging in...",
		batch.StageScan:    "Scanning for spreadsheets...",
		batch.StageConvert: "Converting header rows...",
		batch.StageUpload:  "Uploading...",
	}
	p.out.Log("[%d/%d] %s", int(stage), batch.StageCount, labels[stage])
}

func (p *progressPrinter) OnScan(result types.ScanResult) {
	p.out.Log("      found %d files (%s)", result.FileCount, utils.FormatSize(result.TotalSize))
}

func (p *progressPrinter) OnConvertProgress(done, total int, file types.ConvertedFile) {
	p.out.Verbose("converted %d/%d %s", done, total, file.OutputPath)
}

func (p *progressPrinter) OnConvert(files []types.ConvertedFile) {
	p.out.Log("      converted %d files", len(files))
}

func (p *progressPrinter) OnUploadStart(index, total int, path string) {
	p.out.Verbose("uploading %s", path)
}

func (p *progressPrinter) OnUploadResult(index, total int, path string, outcome types.UploadOutcome) {
	name := filepath.Base(path)
	if outcome.Succeeded() {
		p.out.Log("      [%d/%d] %s ... ok (modified %d, upserted %d)",
			index+1, total, name, outcome.Counts.ModifiedCount, outcome.Counts.UpsertedCount)
		return
	}
	p.out.Log("      [%d/%d] %s ... failed: %s", index+1, total, name, outcome.Reason())
}

func (p *progressPrinter) OnComplete(report *types.BatchReport) {
	p.out.Log("")
	if p.dryRun {
		p.out.Log("Dry run complete, nothing uploaded")
		return
	}
	p.out.Log("Done: %d succeeded, %d failed", report.Success, report.Failed)
	for _, f := range report.Failures {
		p.out.Log("  %s: %s", f.Path, f.Reason)
	}
	p.out.Log("")
}
