// Package pipeline builds a labelled landslide dataset end to end: sample
// pseudo-absences around the known landslides, join raster features, assemble
// and write the table, and record the run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landslide-cli/internal/config"
	"github.com/sells-group/landslide-cli/internal/dataset"
	"github.com/sells-group/landslide-cli/internal/feature"
	"github.com/sells-group/landslide-cli/internal/geo"
	"github.com/sells-group/landslide-cli/internal/model"
	"github.com/sells-group/landslide-cli/internal/raster"
	"github.com/sells-group/landslide-cli/internal/sampler"
	"github.com/sells-group/landslide-cli/internal/store"
)

// Errors callers can match with errors.Is.
var (
	ErrInvalidBoundingBox  = geo.ErrInvalidBoundingBox
	ErrInsufficientSamples = sampler.ErrInsufficientSamples
	ErrNoData              = raster.ErrNoData
	ErrOutsideExtent       = raster.ErrOutsideExtent
	ErrNotGeographic       = raster.ErrNotGeographic
)

// ErrEmptyDataset is returned when every record was dropped for missing
// features, which usually means the rasters do not cover the region.
var ErrEmptyDataset = eris.New("pipeline: every record was dropped for missing features")

// Pipeline runs dataset builds.
type Pipeline struct {
	cfg    *config.Config
	store  store.Store
	joiner *feature.Joiner
}

// New binds the configured features to layers. st may be nil, in which case
// runs are not recorded.
func New(cfg *config.Config, st store.Store, layers map[string]raster.Layer) (*Pipeline, error) {
	bindings, err := Bindings(cfg.Features, layers)
	if err != nil {
		return nil, err
	}
	joiner, err := feature.NewJoiner(bindings)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: bind features")
	}
	return &Pipeline{cfg: cfg, store: st, joiner: joiner}, nil
}

// Result is the outcome of a build.
type Result struct {
	RunID         string
	Dataset       *dataset.Dataset
	Sample        *sampler.Result
	PositiveJoin  *feature.Stats
	NegativeJoin  *feature.Stats
	CSVPath       string
	ShapefilePath string
	Summary       model.RunResult
}

// runConfig is the snapshot stored with each run.
type runConfig struct {
	Catalog     string   `json:"catalog,omitempty"`
	Country     string   `json:"country,omitempty"`
	Region      geo.BBox `json:"region"`
	MinDistance float64  `json:"min_distance"`
	Target      int      `json:"target"`
	Seed        uint64   `json:"seed"`
	Oracle      string   `json:"oracle"`
	Features    []string `json:"features"`
	CSV         string   `json:"csv"`
	Shapefile   string   `json:"shapefile,omitempty"`
}

func (p *Pipeline) snapshot(target int) (json.RawMessage, error) {
	rc := runConfig{
		Catalog:     p.cfg.Catalog.Path,
		Country:     p.cfg.Catalog.Country,
		Region:      p.cfg.Region,
		MinDistance: p.cfg.Sampling.MinDistance,
		Target:      target,
		Seed:        p.cfg.Sampling.Seed,
		Oracle:      p.cfg.Sampling.Oracle,
		CSV:         p.cfg.Output.CSV,
		Shapefile:   p.cfg.Output.Shapefile,
	}
	for _, f := range p.joiner.Schema() {
		rc.Features = append(rc.Features, string(f))
	}
	b, err := json.Marshal(rc)
	return b, eris.Wrap(err, "pipeline: marshal run config")
}

// Run builds the dataset for positives. Any failure after the run is created
// marks it failed before returning.
func (p *Pipeline) Run(ctx context.Context, positives []model.LandslideRecord) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.String("component", "pipeline"))

	if len(positives) == 0 {
		return nil, eris.New("pipeline: no landslide records")
	}
	if err := p.cfg.Region.Validate(); err != nil {
		return nil, err
	}
	target := p.cfg.Sampling.Target
	if target == 0 {
		target = len(positives)
	}

	result := &Result{}
	var runID string
	if p.store != nil {
		snap, err := p.snapshot(target)
		if err != nil {
			return nil, err
		}
		run, err := p.store.CreateRun(ctx, snap)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
		result.RunID = runID
		log = log.With(zap.String("run_id", runID))
	}
	log.Info("pipeline: starting build", zap.Int("positives", len(positives)), zap.Int("target", target))

	setStatus := func(status model.RunStatus) {
		if p.store == nil {
			return
		}
		if err := p.store.UpdateRunStatus(ctx, runID, status); err != nil {
			log.Warn("pipeline: failed to update status", zap.String("status", string(status)), zap.Error(err))
		}
	}
	fail := func(err error) (*Result, error) {
		log.Error("pipeline: build failed", zap.Error(err))
		if p.store != nil {
			if ferr := p.store.FailRun(context.WithoutCancel(ctx), runID, err.Error()); ferr != nil {
				log.Warn("pipeline: failed to record failure", zap.Error(ferr))
			}
		}
		return nil, err
	}

	setStatus(model.RunStatusSampling)
	sample, err := SampleNegatives(p.cfg, positives, target)
	if err != nil {
		return fail(err)
	}
	result.Sample = sample

	setStatus(model.RunStatusJoining)
	conc := p.cfg.Join.Concurrency
	posRecs, posStats, err := p.joiner.JoinAll(ctx, positives, conc)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: join positives"))
	}
	negRecs, negStats, err := p.joiner.JoinAll(ctx, sample.Records(), conc)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: join negatives"))
	}
	result.PositiveJoin, result.NegativeJoin = posStats, negStats

	setStatus(model.RunStatusAssembling)
	ds, err := dataset.Assemble(p.joiner.Schema(), posRecs, negRecs)
	if err != nil {
		return fail(err)
	}
	result.Dataset = ds
	if len(ds.Rows) == 0 {
		return fail(eris.Wrapf(ErrEmptyDataset, "dropped %d landslides and %d pseudo-absences (%s)",
			ds.Dropped.Positives, ds.Dropped.Negatives, missReasons(posStats, negStats)))
	}

	setStatus(model.RunStatusWriting)
	if err := writeOutputs(ds, p.cfg.Output, result); err != nil {
		return fail(err)
	}
	if p.store != nil {
		if _, err := p.store.SaveRows(ctx, runID, ds); err != nil {
			return fail(eris.Wrap(err, "pipeline: save rows"))
		}
	}

	result.Summary = summarize(ds, sample, result, time.Since(start))
	if p.store != nil {
		if err := p.store.CompleteRun(ctx, runID, &result.Summary); err != nil {
			return fail(eris.Wrap(err, "pipeline: complete run"))
		}
	}

	log.Info("pipeline: build complete",
		zap.Int("rows", result.Summary.Rows),
		zap.Int("positives", result.Summary.Positives),
		zap.Int("negatives", result.Summary.Negatives),
		zap.String("csv", result.CSVPath),
		zap.Int64("duration_ms", result.Summary.DurationMillis),
	)
	return result, nil
}

func writeOutputs(ds *dataset.Dataset, out config.OutputConfig, result *Result) error {
	if err := ensureDir(out.CSV); err != nil {
		return err
	}
	if err := ds.WriteCSV(out.CSV); err != nil {
		return err
	}
	result.CSVPath = out.CSV

	if out.Shapefile == "" {
		return nil
	}
	shpPath := out.Shapefile
	if !strings.EqualFold(filepath.Ext(shpPath), ".shp") {
		shpPath += ".shp"
	}
	if err := ensureDir(shpPath); err != nil {
		return err
	}
	if err := ds.WriteShapefile(shpPath); err != nil {
		return err
	}
	result.ShapefilePath = shpPath
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "pipeline: create output dir %s", dir)
	}
	return nil
}

func summarize(ds *dataset.Dataset, sample *sampler.Result, result *Result, elapsed time.Duration) model.RunResult {
	pos, neg := ds.Counts()
	rr := model.RunResult{
		Positives:        pos,
		Negatives:        neg,
		Candidates:       sample.Candidates,
		Batches:          sample.Batches,
		DroppedPositives: ds.Dropped.Positives,
		DroppedNegatives: ds.Dropped.Negatives,
		Rows:             len(ds.Rows),
		OutputPath:       result.CSVPath,
		ShapefilePath:    result.ShapefilePath,
		DurationMillis:   elapsed.Milliseconds(),
	}
	if len(ds.Dropped.ByFeature) > 0 {
		rr.MissingByFeature = make(map[string]int, len(ds.Dropped.ByFeature))
		for f, n := range ds.Dropped.ByFeature {
			rr.MissingByFeature[string(f)] = n
		}
	}
	return rr
}

// missReasons renders the combined miss counts as "reason=n" pairs.
func missReasons(stats ...*feature.Stats) string {
	counts := make(map[string]int)
	for _, st := range stats {
		for reason, n := range st.ByReason {
			counts[reason] += n
		}
	}
	parts := make([]string, 0, len(counts))
	for _, reason := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, counts[reason]))
	}
	return strings.Join(parts, ", ")
}
