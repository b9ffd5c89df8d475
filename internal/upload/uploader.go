package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dl-alexandre/sheetport/internal/api"
	"github.com/dl-alexandre/sheetport/internal/auth"
	"github.com/dl-alexandre/sheetport/internal/logging"
	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// Options configures an Uploader
type Options struct {
	OnlyValidInvention bool
	// Timeout bounds each attempt; zero means utils.DefaultUploadTimeout
	Timeout time.Duration
	// Cooldown follows each success that has files after it; negative
	// disables it, zero means utils.DefaultCooldown
	Cooldown time.Duration
	Profile  string
}

// Uploader sends workbooks one at a time and classifies every attempt
type Uploader struct {
	client *api.Client
	token  auth.Token
	opts   Options
	logger logging.Logger
	wait   func(ctx context.Context, d time.Duration) error
}

func NewUploader(client *api.Client, token auth.Token, opts Options, logger logging.Logger) *Uploader {
	if opts.Timeout <= 0 {
		opts.Timeout = utils.DefaultUploadTimeout
	}
	if opts.Cooldown == 0 {
		opts.Cooldown = utils.DefaultCooldown
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = 0
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Uploader{
		client: client,
		token:  token,
		opts:   opts,
		logger: logger,
		wait:   sleepContext,
	}
}

// Upload makes exactly one attempt for path and never returns an error:
// every failure becomes an outcome.
func (u *Uploader) Upload(ctx context.Context, path string) types.UploadOutcome {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return types.UploadOutcome{Kind: types.OutcomeNotFound, Err: err}
		}
		return types.UploadOutcome{Kind: types.OutcomeTransportFailure, Err: err}
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.UploadOutcome{Kind: types.OutcomeNotFound, Err: err}
		}
		return types.UploadOutcome{Kind: types.OutcomeTransportFailure, Err: fmt.Errorf("failed to read file: %w", err)}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, u.opts.Timeout)
	defer cancel()

	reqCtx := api.WithFile(api.NewRequestContext(u.opts.Profile, types.RequestTypeImport), path)
	counts, err := u.client.Import(attemptCtx, reqCtx, api.ImportRequest{
		Token:              u.token.Value(),
		FileName:           filepath.Base(path),
		Content:            content,
		OnlyValidInvention: u.opts.OnlyValidInvention,
	})
	if err == nil {
		return types.UploadOutcome{Kind: types.OutcomeSuccess, Counts: counts}
	}

	return u.classify(ctx, attemptCtx, err)
}

func (u *Uploader) classify(ctx, attemptCtx context.Context, err error) types.UploadOutcome {
	if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return types.UploadOutcome{Kind: types.OutcomeTimeout, Timeout: u.opts.Timeout, Err: err}
	}

	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.CLIError.Code == utils.ErrCodeApplicationFailure {
		message, _ := appErr.CLIError.Context["serverMessage"].(string)
		return types.UploadOutcome{
			Kind:       types.OutcomeApplicationFailure,
			HTTPStatus: appErr.CLIError.HTTPStatus,
			Message:    message,
			Err:        err,
		}
	}

	return types.UploadOutcome{Kind: types.OutcomeTransportFailure, Err: unwrapCause(err)}
}

// unwrapCause drops the AppError layer so reasons read as the network error
func unwrapCause(err error) error {
	var appErr *utils.AppError
	if errors.As(err, &appErr) && appErr.Unwrap() != nil {
		return appErr.Unwrap()
	}
	return err
}

// ResultFunc receives each outcome in upload order
type ResultFunc func(index int, path string, outcome types.UploadOutcome)

// UploadAll uploads paths strictly in order. After a success with more
// files remaining it waits the cool-down; failures move straight on.
// A cancelled context stops the loop and is returned; every path attempted
// before that has been reported through onResult.
func (u *Uploader) UploadAll(ctx context.Context, paths []string, onStart func(index int, path string), onResult ResultFunc) error {
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if onStart != nil {
			onStart(i, path)
		}

		start := time.Now()
		outcome := u.Upload(ctx, path)
		u.logOutcome(path, outcome, time.Since(start))

		if ctx.Err() != nil && !outcome.Succeeded() {
			return ctx.Err()
		}
		if onResult != nil {
			onResult(i, path, outcome)
		}

		if outcome.Succeeded() && i < len(paths)-1 && u.opts.Cooldown > 0 {
			if err := u.wait(ctx, u.opts.Cooldown); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *Uploader) logOutcome(path string, outcome types.UploadOutcome, elapsed time.Duration) {
	fields := []logging.Field{
		logging.F("path", path),
		logging.F("outcome", string(outcome.Kind)),
		logging.F("duration_ms", elapsed.Milliseconds()),
	}
	if outcome.Succeeded() {
		u.logger.Info("Upload succeeded", append(fields,
			logging.F("modifiedCount", outcome.Counts.ModifiedCount),
			logging.F("upsertedCount", outcome.Counts.UpsertedCount),
		)...)
		return
	}
	u.logger.Warn("Upload failed", append(fields, logging.F("reason", outcome.Reason()))...)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
