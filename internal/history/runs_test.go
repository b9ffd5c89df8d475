package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dl-alexandre/sheetport/internal/types"
	"github.com/dl-alexandre/sheetport/internal/utils"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleReport(id string, started time.Time) *types.BatchReport {
	report := &types.BatchReport{
		RunID:     id,
		StartedAt: started,
		Failures:  []types.FailureRecord{},
		Outcomes:  []types.FileOutcome{},
	}
	report.Record("/in/a.xlsx", types.UploadOutcome{
		Kind:   types.OutcomeSuccess,
		Counts: types.ImportCounts{ModifiedCount: 3, UpsertedCount: 1, ExcelCount: 4},
	})
	report.Record("/in/b.xlsx", types.UploadOutcome{
		Kind:       types.OutcomeApplicationFailure,
		HTTPStatus: 400,
		Message:    "bad header",
	})
	report.Record("/in/c.xlsx", types.UploadOutcome{
		Kind:    types.OutcomeTimeout,
		Timeout: 2 * time.Second,
	})
	report.Record("/in/d.xlsx", types.UploadOutcome{
		Kind: types.OutcomeTransportFailure,
		Err:  errors.New("connection refused"),
	})
	report.FinishedAt = started.Add(time.Minute)
	return report
}

func TestRecordAndGetRun(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	meta := types.RunMeta{
		InputRoot:          "/in",
		OutputRoot:         "/out",
		ServerURL:          "http://localhost:8080",
		Username:           "admin",
		Profile:            "default",
		OnlyValidInvention: true,
		Mappings:           2,
	}
	report := sampleReport("run-1", started)

	require.NoError(t, db.RecordRun(ctx, meta, report))

	got, err := db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, meta, got.Meta)
	assert.Equal(t, 1, got.Report.Success)
	assert.Equal(t, 3, got.Report.Failed)
	assert.True(t, got.Report.StartedAt.Equal(started))
	assert.True(t, got.Report.FinishedAt.Equal(started.Add(time.Minute)))

	require.Len(t, got.Report.Outcomes, 4)
	for i, o := range got.Report.Outcomes {
		assert.Equal(t, report.Outcomes[i].Path, o.Path)
		assert.Equal(t, report.Outcomes[i].Outcome.Kind, o.Outcome.Kind)
		assert.Equal(t, report.Outcomes[i].Outcome.Reason(), o.Outcome.Reason())
	}
	assert.Equal(t, types.ImportCounts{ModifiedCount: 3, UpsertedCount: 1, ExcelCount: 4}, got.Report.Outcomes[0].Outcome.Counts)
	assert.Equal(t, report.Failures, got.Report.Failures)
}

func TestRecordRunReplacesExisting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordRun(ctx, types.RunMeta{InputRoot: "/in", ServerURL: "http://x"}, sampleReport("run-1", started)))

	smaller := &types.BatchReport{RunID: "run-1", StartedAt: started, FinishedAt: started}
	smaller.Record("/in/only.xlsx", types.UploadOutcome{Kind: types.OutcomeSuccess})
	require.NoError(t, db.RecordRun(ctx, types.RunMeta{InputRoot: "/in", ServerURL: "http://x"}, smaller))

	got, err := db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got.Report.Outcomes, 1)
	assert.Equal(t, "/in/only.xlsx", got.Report.Outcomes[0].Path)
	assert.Empty(t, got.Report.Failures)
}

func TestListRunsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		report := &types.BatchReport{RunID: id, StartedAt: base.Add(time.Duration(i) * time.Hour)}
		report.FinishedAt = report.StartedAt
		require.NoError(t, db.RecordRun(ctx, types.RunMeta{InputRoot: "/in", ServerURL: "http://x", DryRun: i == 0}, report))
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].Report.RunID)
	assert.Equal(t, "mid", runs[1].Report.RunID)
	assert.Empty(t, runs[0].Report.Outcomes)

	all, err := db.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[2].Meta.DryRun)
}

func TestListRunsEmpty(t *testing.T) {
	db := openTestDB(t)

	runs, err := db.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestGetRunMissing(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetRun(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, utils.ErrCodeFileNotFound, utils.ErrorCode(err))
}

func TestReopenKeepsRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	db, err := Open(path)
	require.NoError(t, err)
	report := &types.BatchReport{RunID: "persisted", StartedAt: time.Now().UTC()}
	require.NoError(t, db.RecordRun(context.Background(), types.RunMeta{InputRoot: "/in", ServerURL: "http://x"}, report))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	got, err := db.GetRun(context.Background(), "persisted")
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Report.RunID)
}
