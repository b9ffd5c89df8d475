package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

// RecordRun stores a finished run and its per-file outcomes in one
// transaction. Recording the same run ID again replaces it.
func (d *DB) RecordRun(ctx context.Context, meta types.RunMeta, report *types.BatchReport) (err error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM run_files WHERE run_id = ?`, report.RunID); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, input_root, output_root, server_url, username, profile, only_valid_invention, mappings, dry_run,
			success, failed, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			input_root=excluded.input_root,
			output_root=excluded.output_root,
			server_url=excluded.server_url,
			username=excluded.username,
			profile=excluded.profile,
			only_valid_invention=excluded.only_valid_invention,
			mappings=excluded.mappings,
			dry_run=excluded.dry_run,
			success=excluded.success,
			failed=excluded.failed,
			started_at=excluded.started_at,
			finished_at=excluded.finished_at
	`, report.RunID, meta.InputRoot, meta.OutputRoot, meta.ServerURL, meta.Username, meta.Profile,
		boolToInt(meta.OnlyValidInvention), meta.Mappings, boolToInt(meta.DryRun),
		report.Success, report.Failed, report.StartedAt.UnixMilli(), report.FinishedAt.UnixMilli())
	if err != nil {
		return err
	}

	for seq, file := range report.Outcomes {
		o := file.Outcome
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_files (
				run_id, seq, path, outcome, http_status, message, reason, timeout_ms,
				modified_count, upserted_count, excel_count
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, report.RunID, seq, file.Path, string(o.Kind), o.HTTPStatus, outcomeDetail(o), o.Reason(),
			o.Timeout.Milliseconds(), o.Counts.ModifiedCount, o.Counts.UpsertedCount, o.Counts.ExcelCount)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRuns returns the newest runs first, without their per-file outcomes
func (d *DB) ListRuns(ctx context.Context, limit int) (runs []types.RunRecord, err error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, input_root, output_root, server_url, username, profile, only_valid_invention, mappings, dry_run,
		       success, failed, started_at, finished_at
		FROM runs ORDER BY started_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	runs = []types.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun loads one run with every file outcome. A missing ID is a
// FILE_NOT_FOUND error.
func (d *DB) GetRun(ctx context.Context, id string) (*types.RunRecord, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT id, input_root, output_root, server_url, username, profile, only_valid_invention, mappings, dry_run,
		       success, failed, started_at, finished_at
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.NewAppError(utils.NewCLIError(utils.ErrCodeFileNotFound,
				fmt.Sprintf("no run with id %s", id)).Build())
		}
		return nil, err
	}

	if err := d.loadFiles(ctx, run.Report); err != nil {
		return nil, err
	}
	return &run, nil
}

func (d *DB) loadFiles(ctx context.Context, report *types.BatchReport) (err error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT path, outcome, http_status, message, reason, timeout_ms, modified_count, upserted_count, excel_count
		FROM run_files WHERE run_id = ? ORDER BY seq
	`, report.RunID)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for rows.Next() {
		var (
			path, kind, detail, reason string
			timeoutMS                  int64
			o                          types.UploadOutcome
		)
		if err := rows.Scan(&path, &kind, &o.HTTPStatus, &detail, &reason, &timeoutMS,
			&o.Counts.ModifiedCount, &o.Counts.UpsertedCount, &o.Counts.ExcelCount); err != nil {
			return err
		}
		o.Kind = types.OutcomeKind(kind)
		o.Timeout = time.Duration(timeoutMS) * time.Millisecond
		switch o.Kind {
		case types.OutcomeApplicationFailure:
			o.Message = detail
		case types.OutcomeTransportFailure, types.OutcomeNotFound:
			if detail != "" {
				o.Err = errors.New(detail)
			}
		}
		report.Outcomes = append(report.Outcomes, types.FileOutcome{Path: path, Outcome: o})
		if !o.Succeeded() {
			report.Failures = append(report.Failures, types.FailureRecord{Path: path, Kind: o.Kind, Reason: reason})
		}
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (types.RunRecord, error) {
	var (
		run                  types.RunRecord
		report               types.BatchReport
		outputRoot, username sql.NullString
		profile              sql.NullString
		onlyValid, dryRun    int
		startedAt            int64
		finishedAt           sql.NullInt64
	)
	err := row.Scan(&report.RunID, &run.Meta.InputRoot, &outputRoot, &run.Meta.ServerURL, &username, &profile,
		&onlyValid, &run.Meta.Mappings, &dryRun, &report.Success, &report.Failed, &startedAt, &finishedAt)
	if err != nil {
		return types.RunRecord{}, err
	}
	run.Meta.OutputRoot = outputRoot.String
	run.Meta.Username = username.String
	run.Meta.Profile = profile.String
	run.Meta.OnlyValidInvention = onlyValid != 0
	run.Meta.DryRun = dryRun != 0
	report.StartedAt = time.UnixMilli(startedAt).UTC()
	if finishedAt.Valid {
		report.FinishedAt = time.UnixMilli(finishedAt.Int64).UTC()
	}
	report.Failures = []types.FailureRecord{}
	report.Outcomes = []types.FileOutcome{}
	run.Report = &report
	return run, nil
}

// outcomeDetail is the part of an outcome Reason is rebuilt from
func outcomeDetail(o types.UploadOutcome) string {
	switch o.Kind {
	case types.OutcomeApplicationFailure:
		return o.Message
	case types.OutcomeTransportFailure, types.OutcomeNotFound:
		if o.Err != nil {
			return o.Err.Error()
		}
	}
	return ""
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
