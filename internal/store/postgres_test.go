package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landslide-cli/internal/model"
)

var runColumns = []string{"id", "config", "status", "result", "error", "created_at", "updated_at"}

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_Migrate(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CreateRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), []byte(`{"seed":7}`), "queued", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := st.CreateRun(context.Background(), json.RawMessage(`{"seed":7}`))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdatesReportMissingRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE runs SET status`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`UPDATE runs SET result`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`UPDATE runs SET error`).WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.True(t, errors.Is(st.UpdateRunStatus(ctx, "r1", model.RunStatusSampling), ErrRunNotFound))
	assert.True(t, errors.Is(st.CompleteRun(ctx, "r1", &model.RunResult{Rows: 1}), ErrRunNotFound))
	assert.True(t, errors.Is(st.FailRun(ctx, "r1", "boom"), ErrRunNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	mock.ExpectExec(`UPDATE runs SET result`).
		WithArgs(pgxmock.AnyArg(), "complete", pgxmock.AnyArg(), "r1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.CompleteRun(context.Background(), "r1", &model.RunResult{Positives: 3, Negatives: 3, Rows: 6}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	result := []byte(`{"positives":2,"negatives":2,"rows":4}`)

	mock.ExpectQuery(`SELECT id, config, status, result, error, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("r1", []byte(`{"seed":1}`), "complete", &result, "", now, now))

	run, err := st.GetRun(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "r1", run.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.JSONEq(t, `{"seed":1}`, string(run.Config))
	require.NotNil(t, run.Result)
	assert.Equal(t, 4, run.Result.Rows)
	assert.Equal(t, now, run.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRunNotFound(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`FROM runs WHERE id = \$1`).WithArgs("missing").WillReturnError(pgx.ErrNoRows)

	_, err := st.GetRun(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRunNotFound))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRuns(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM runs WHERE true AND status = \$1 ORDER BY created_at DESC, id LIMIT \$2 OFFSET \$3`).
		WithArgs("failed", 10, 5).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("r1", []byte(`{}`), "failed", nil, "boom", now, now).
			AddRow("r2", []byte(`{}`), "failed", nil, "bang", now, now))

	runs, err := st.ListRuns(context.Background(), RunFilter{Status: model.RunStatusFailed, Limit: 10, Offset: 5})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "boom", runs[0].Error)
	assert.Nil(t, runs[1].Result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ListRunsCreatedAfter(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	now := time.Now().UTC()
	since := now.Add(-24 * time.Hour)

	mock.ExpectQuery(`FROM runs WHERE true AND status = \$1 AND created_at >= \$2 ORDER BY created_at DESC, id LIMIT \$3`).
		WithArgs("complete", since, 100).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("r1", []byte(`{}`), "complete", nil, "", now, now))

	runs, err := st.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete, CreatedAfter: since})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "r1", runs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveRows(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM dataset_rows WHERE run_id = \$1`).
		WithArgs("r1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"dataset_rows"}, rowColumns).WillReturnResult(3)
	mock.ExpectCommit()

	n, err := st.SaveRows(context.Background(), "r1", testDataset(t))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveRowsCopyError(t *testing.T) {
	st, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM dataset_rows`).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"dataset_rows"}, rowColumns).WillReturnError(errors.New("violates foreign key"))
	mock.ExpectRollback()

	_, err := st.SaveRows(context.Background(), "r1", testDataset(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: save rows for run r1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CountRows(t *testing.T) {
	st, mock := newMockPostgresStore(t)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM dataset_rows WHERE run_id = \$1`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(6))

	n, err := st.CountRows(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
