// Package store persists build runs and their dataset rows.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landslide-cli/internal/dataset"
	"github.com/sells-group/landslide-cli/internal/geo"
	"github.com/sells-group/landslide-cli/internal/model"
)

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = eris.New("store: run not found")

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	// CreatedAfter keeps runs created at or after this instant. Zero means no bound.
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for dataset builds.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, config json.RawMessage) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, msg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Dataset rows
	SaveRows(ctx context.Context, runID string, ds *dataset.Dataset) (int64, error)
	CountRows(ctx context.Context, runID string) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store named by driver.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch strings.ToLower(driver) {
	case DriverSQLite, "":
		return NewSQLite(dsn)
	case DriverPostgres:
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// rowColumns is the column order shared by both drivers.
var rowColumns = []string{"run_id", "row_index", "label", "latitude", "longitude", "trigger", "geom", "features"}

// encodeRows flattens a dataset into rowColumns order. Geometry is EWKB and
// features are a JSON object keyed by feature name.
func encodeRows(runID string, ds *dataset.Dataset) ([][]any, error) {
	out := make([][]any, 0, len(ds.Rows))
	for i := range ds.Rows {
		r := &ds.Rows[i]
		wkb, err := geo.EncodePointWKB(r.Point)
		if err != nil {
			return nil, eris.Wrapf(err, "store: encode geometry for row %d", i)
		}
		feats := make(map[string]float64, len(ds.Schema))
		for _, f := range ds.Schema {
			feats[string(f)] = r.Get(f).Float64
		}
		featJSON, err := json.Marshal(feats)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal features for row %d", i)
		}
		out = append(out, []any{
			runID, i, int(r.Label), r.Point.Latitude, r.Point.Longitude, r.Trigger, wkb, featJSON,
		})
	}
	return out, nil
}
