// Package sampler draws pseudo-absence points: uniformly random locations in
// a region that lie outside the exclusion distance of every known landslide.
package sampler

import (
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landslide-cli/internal/geo"
	"github.com/sells-group/landslide-cli/internal/model"
)

// ErrInsufficientSamples is returned when the candidate budget is exhausted
// before the target count is reached.
var ErrInsufficientSamples = eris.New("sampler: insufficient samples")

// ErrThresholdMismatch is returned when the oracle excludes a different
// distance than Config.MinDistance.
var ErrThresholdMismatch = eris.New("sampler: oracle threshold does not match min distance")

// Defaults applied by Sample when the corresponding Config field is zero.
const (
	DefaultBatchMultiplier = 10
	DefaultMaxBatches      = 20
)

// Config controls a sampling run.
type Config struct {
	Region      geo.BBox
	MinDistance float64 // meters
	Target      int
	Seed        uint64

	// BatchMultiplier sizes each candidate batch as Target*BatchMultiplier.
	BatchMultiplier int
	// MaxBatches bounds the candidate budget.
	MaxBatches int
}

// Result holds the accepted points and draw statistics.
type Result struct {
	Points     []model.GeoPoint
	Candidates int
	Rejected   int
	Duplicates int
	Batches    int
}

// Records returns the accepted points as label-0 records.
func (r *Result) Records() []model.LandslideRecord {
	out := make([]model.LandslideRecord, len(r.Points))
	for i, p := range r.Points {
		out[i] = model.Negative(p)
	}
	return out
}

// Sample draws exactly cfg.Target points from cfg.Region, each rejected by
// oracle if it falls within cfg.MinDistance of a reference point. The oracle
// must have been built with cfg.MinDistance as its threshold. The same
// Config and oracle always yield the same ordered points.
//
// Candidates are drawn in batches of Target*BatchMultiplier until the target
// is met. If MaxBatches batches do not yield enough points, the error wraps
// ErrInsufficientSamples and the partial result is returned alongside it.
func Sample(cfg Config, oracle geo.Oracle) (*Result, error) {
	if err := cfg.Region.Validate(); err != nil {
		return nil, err
	}
	if cfg.Target <= 0 {
		return nil, eris.Errorf("sampler: target must be positive, got %d", cfg.Target)
	}
	if !(cfg.MinDistance > 0) {
		return nil, eris.Errorf("sampler: min distance must be positive, got %g", cfg.MinDistance)
	}
	if oracle == nil {
		return nil, eris.New("sampler: nil oracle")
	}
	if got := oracle.Threshold(); got != cfg.MinDistance {
		return nil, eris.Wrapf(ErrThresholdMismatch, "oracle excludes %g m, config wants %g m", got, cfg.MinDistance)
	}
	if cfg.BatchMultiplier <= 0 {
		cfg.BatchMultiplier = DefaultBatchMultiplier
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = DefaultMaxBatches
	}

	log := zap.L().With(zap.String("component", "sampler"))
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	batchSize := cfg.Target * cfg.BatchMultiplier

	res := &Result{Points: make([]model.GeoPoint, 0, cfg.Target)}
	seen := make(map[model.GeoPoint]struct{}, cfg.Target)

	for res.Batches < cfg.MaxBatches && len(res.Points) < cfg.Target {
		res.Batches++
		accepted := 0
		for i := 0; i < batchSize && len(res.Points) < cfg.Target; i++ {
			p := draw(rng, cfg.Region)
			res.Candidates++
			if oracle.TooClose(p) {
				res.Rejected++
				continue
			}
			if _, dup := seen[p]; dup {
				res.Duplicates++
				continue
			}
			seen[p] = struct{}{}
			res.Points = append(res.Points, p)
			accepted++
		}
		log.Debug("sampler: batch done",
			zap.Int("batch", res.Batches),
			zap.Int("accepted", accepted),
			zap.Int("total", len(res.Points)),
			zap.Int("target", cfg.Target),
		)
	}

	if len(res.Points) < cfg.Target {
		return res, eris.Wrapf(ErrInsufficientSamples,
			"accepted %d of %d after %d candidates in %d batches",
			len(res.Points), cfg.Target, res.Candidates, res.Batches)
	}

	log.Info("sampler: pseudo-absences drawn",
		zap.Int("points", len(res.Points)),
		zap.Int("candidates", res.Candidates),
		zap.Int("rejected", res.Rejected),
		zap.Int("batches", res.Batches),
	)
	return res, nil
}

// draw returns a uniform point in b. Longitude is drawn before latitude.
func draw(rng *rand.Rand, b geo.BBox) model.GeoPoint {
	lng := b.MinLng + rng.Float64()*b.Width()
	lat := b.MinLat + rng.Float64()*b.Height()
	return model.GeoPoint{Latitude: lat, Longitude: lng}
}
