// Package batch runs the scan, convert and upload pipeline for one
// input tree.
package batch

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dl-alexandre/sheetport/internal/api"
	"github.com/dl-alexandre/sheetport/internal/auth"
	"github.com/dl-alexandre/sheetport/internal/logging"
	"github.com/dl-alexandre/sheetport/internal/mapping"
	"github.com/dl-alexandre/sheetport/internal/scanner"
	"github.com/dl-alexandre/sheetport/internal/sheets"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/upload"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// Stage is one numbered step of a run
type Stage int

const (
	StageLogin Stage = iota + 1
	StageScan
	StageConvert
	StageUpload
)

// StageCount is the number of stages a full run goes through
const StageCount = 4

func (s Stage) String() string {
	switch s {
	case StageLogin:
		return "login"
	case StageScan:
		return "scan"
	case StageConvert:
		return "convert"
	case StageUpload:
		return "upload"
	default:
		return "unknown"
	}
}

// Observer receives progress from Run. Calls happen on the goroutine
// that called Run, in pipeline order.
type Observer interface {
	OnStage(stage Stage)
	OnScan(result types.ScanResult)
	OnConvert(files []types.ConvertedFile)
	OnUploadStart(index, total int, path string)
	OnUploadResult(index, total int, path string, outcome types.UploadOutcome)
	OnComplete(report *types.BatchReport)
}

// ConvertProgress is implemented by observers that want per-file
// conversion events
type ConvertProgress interface {
	OnConvertProgress(done, total int, file types.ConvertedFile)
}

// Recorder persists a finished run
type Recorder interface {
	RecordRun(ctx context.Context, meta types.RunMeta, report *types.BatchReport) error
}

// NopObserver ignores every event
type NopObserver struct{}

func (NopObserver) OnStage(Stage)                                        {}
func (NopObserver) OnScan(types.ScanResult)                              {}
func (NopObserver) OnConvert([]types.ConvertedFile)                      {}
func (NopObserver) OnUploadStart(int, int, string)                       {}
func (NopObserver) OnUploadResult(int, int, string, types.UploadOutcome) {}
func (NopObserver) OnComplete(*types.BatchReport)                        {}

type Options struct {
	ServerURL string
	Username  string
	Password  string
	Profile   string

	InputRoot string
	// OutputRoot receives converted copies; required when Table is non-empty
	OutputRoot string
	// Table remaps header rows; nil or empty uploads the scanned files as-is
	Table *mapping.Table

	Exclude         []string
	DefaultExcludes bool

	OnlyValidInvention bool
	UploadTimeout      time.Duration
	// Cooldown follows every success with files after it; negative disables
	Cooldown       time.Duration
	RequestTimeout time.Duration

	// DryRun scans and converts but never logs in or uploads
	DryRun bool
}

// Engine wires the scanner, transcoder, session and uploader together
type Engine struct {
	httpClient *http.Client
	logger     logging.Logger
	observer   Observer
	recorder   Recorder
}

func NewEngine(httpClient *http.Client, logger logging.Logger, observer Observer) *Engine {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if observer == nil {
		observer = NopObserver{}
	}
	return &Engine{
		httpClient: httpClient,
		logger:     logger,
		observer:   observer,
	}
}

// SetRecorder stores every completed run in r
func (e *Engine) SetRecorder(r Recorder) {
	e.recorder = r
}

// Meta describes opts the way it is stored in run history
func (o Options) Meta() types.RunMeta {
	return types.RunMeta{
		InputRoot:          o.InputRoot,
		OutputRoot:         o.OutputRoot,
		ServerURL:          o.ServerURL,
		Username:           o.Username,
		Profile:            o.Profile,
		OnlyValidInvention: o.OnlyValidInvention,
		Mappings:           o.Table.Len(),
		DryRun:             o.DryRun,
	}
}

// Run executes one batch. Login, scan and conversion failures are fatal
// and return an error before any upload. Upload failures are recorded in
// the report and the batch carries on. A cancelled context returns the
// partial report together with a CANCELLED error.
func (e *Engine) Run(ctx context.Context, opts Options) (*types.BatchReport, error) {
	runID := uuid.New().String()
	ctx = logging.ContextWithTraceID(ctx, runID)
	logger := e.logger.WithTraceID(runID)

	report := &types.BatchReport{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		Failures:  []types.FailureRecord{},
		Outcomes:  []types.FileOutcome{},
	}

	logger.Info("Batch started",
		logging.F("input", opts.InputRoot),
		logging.F("server", opts.ServerURL),
		logging.F("dryRun", opts.DryRun),
	)

	var token auth.Token
	if !opts.DryRun {
		e.observer.OnStage(StageLogin)
		session := auth.NewSession(e.httpClient, opts.RequestTimeout, opts.Profile, logger)
		var err error
		token, err = session.Login(ctx, opts.ServerURL, opts.Username, opts.Password)
		if err != nil {
			logger.Error("Login failed", logging.F("error", err.Error()))
			return nil, err
		}
		logger.Info("Logged in", logging.F("user", opts.Username))
	}

	e.observer.OnStage(StageScan)
	scan, err := scanner.Scan(ctx, opts.InputRoot, scanner.Options{
		Exclude:         opts.Exclude,
		DefaultExcludes: opts.DefaultExcludes,
		Logger:          logger,
	})
	if err != nil {
		return nil, cancelledOr(ctx, err)
	}
	e.observer.OnScan(scan)

	paths := scan.Paths()
	if len(paths) > 0 && !opts.Table.IsEmpty() {
		e.observer.OnStage(StageConvert)
		paths, err = e.convert(ctx, opts, paths, logger)
		if err != nil {
			return nil, err
		}
	}

	if opts.DryRun || len(paths) == 0 {
		if len(paths) == 0 {
			logger.Warn("No spreadsheet files found", logging.F("input", opts.InputRoot))
		}
		return e.finish(ctx, opts, report, logger, nil)
	}

	e.observer.OnStage(StageUpload)
	uploader := upload.NewUploader(api.NewClient(opts.ServerURL, e.httpClient, logger), token, upload.Options{
		OnlyValidInvention: opts.OnlyValidInvention,
		Timeout:            opts.UploadTimeout,
		Cooldown:           opts.Cooldown,
		Profile:            opts.Profile,
	}, logger)

	total := len(paths)
	uploadErr := uploader.UploadAll(ctx, paths,
		func(i int, path string) {
			e.observer.OnUploadStart(i, total, path)
		},
		func(i int, path string, outcome types.UploadOutcome) {
			report.Record(path, outcome)
			e.observer.OnUploadResult(i, total, path, outcome)
		},
	)
	if uploadErr != nil {
		uploadErr = cancelledOr(ctx, uploadErr)
	}
	return e.finish(ctx, opts, report, logger, uploadErr)
}

func (e *Engine) convert(ctx context.Context, opts Options, paths []string, logger logging.Logger) ([]string, error) {
	if opts.OutputRoot == "" {
		return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeInvalidArgument,
			"an output directory is required when column mappings are set").Build())
	}

	mgr := sheets.NewManager(logger)
	if progress, ok := e.observer.(ConvertProgress); ok {
		mgr.SetProgress(progress.OnConvertProgress)
	}
	converted, err := mgr.Convert(ctx, opts.InputRoot, opts.OutputRoot, paths, opts.Table)
	if err != nil {
		return nil, cancelledOr(ctx, err)
	}
	e.observer.OnConvert(converted)
	logger.Info("Conversion complete", logging.F("files", len(converted)))

	outputs := make([]string, len(converted))
	for i, f := range converted {
		outputs[i] = f.OutputPath
	}
	return outputs, nil
}

func (e *Engine) finish(ctx context.Context, opts Options, report *types.BatchReport, logger logging.Logger, runErr error) (*types.BatchReport, error) {
	report.FinishedAt = time.Now().UTC()

	if e.recorder != nil {
		// recording must survive a cancelled batch
		recordCtx := context.WithoutCancel(ctx)
		if err := e.recorder.RecordRun(recordCtx, opts.Meta(), report); err != nil {
			logger.Warn("Failed to record run history", logging.F("error", err.Error()))
		}
	}

	logger.Info("Batch finished",
		logging.F("success", report.Success),
		logging.F("failed", report.Failed),
		logging.F("duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds()),
	)
	e.observer.OnComplete(report)
	return report, runErr
}

// cancelledOr reports a context cancellation as CANCELLED and leaves other
// errors alone
func cancelledOr(ctx context.Context, err error) error {
	if ctx.Err() == nil || !(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return err
	}
	return utils.WrapAppError(utils.NewCLIError(utils.ErrCodeCancelled, "batch cancelled").Build(), err)
}
