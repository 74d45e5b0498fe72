// Package feature joins labeled points against raster layers to produce
// feature records.
package feature

import (
	"context"
	"errors"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/landslide-cli/internal/model"
	"github.com/sells-group/landslide-cli/internal/raster"
)

// Miss reasons reported in Stats.
const (
	ReasonNoData        = "no_data"
	ReasonOutsideExtent = "outside_extent"
	ReasonUndefined     = "undefined_transform"
	ReasonOther         = "other"
)

// Binding attaches a raster layer and transform to a feature.
type Binding struct {
	Feature   model.Feature
	Layer     raster.Layer
	Transform Transform
}

// Miss records why a feature could not be filled for a point.
type Miss struct {
	Feature model.Feature
	Reason  error
}

// Stats aggregates misses over a JoinAll call.
type Stats struct {
	Records   int
	Complete  int
	ByFeature map[model.Feature]int
	ByReason  map[string]int
}

// Joiner fills FeatureRecords from a fixed set of bindings.
type Joiner struct {
	bindings []Binding
	schema   []model.Feature
}

// NewJoiner validates bindings and orders them terrain features first, then
// precipitation features in the order given.
func NewJoiner(bindings []Binding) (*Joiner, error) {
	if len(bindings) == 0 {
		return nil, eris.New("feature: no bindings")
	}
	seen := make(map[model.Feature]bool, len(bindings))
	for _, b := range bindings {
		if !b.Feature.Known() {
			return nil, eris.Errorf("feature: unknown feature %q", b.Feature)
		}
		if seen[b.Feature] {
			return nil, eris.Errorf("feature: duplicate binding for %q", b.Feature)
		}
		seen[b.Feature] = true
		if b.Layer == nil {
			return nil, eris.Errorf("feature: %s has no layer", b.Feature)
		}
		if _, err := ParseTransform(string(b.Transform)); err != nil {
			return nil, err
		}
	}

	ordered := append([]Binding(nil), bindings...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i].Feature) < rank(ordered[j].Feature)
	})

	schema := make([]model.Feature, len(ordered))
	for i, b := range ordered {
		schema[i] = b.Feature
	}
	return &Joiner{bindings: ordered, schema: schema}, nil
}

// rank orders terrain features by their column position and puts every
// precipitation feature after them.
func rank(f model.Feature) int {
	for i, t := range model.TerrainFeatures {
		if f == t {
			return i
		}
	}
	return len(model.TerrainFeatures)
}

// Schema returns the joined features in column order.
func (j *Joiner) Schema() []model.Feature {
	return append([]model.Feature(nil), j.schema...)
}

// Join looks up every bound layer at rec's location: raw lookup, then
// transform, then store. Lookups that fail leave the feature missing and are
// reported as misses. Join does not modify the layers.
func (j *Joiner) Join(rec model.LandslideRecord) (model.FeatureRecord, []Miss) {
	out := model.NewFeatureRecord(rec)
	var misses []Miss
	for _, b := range j.bindings {
		raw, err := b.Layer.ValueAt(rec.Point)
		if err == nil {
			raw, err = b.Transform.Apply(raw, b.Layer)
		}
		if err != nil {
			misses = append(misses, Miss{Feature: b.Feature, Reason: err})
			out.Set(b.Feature, model.Value{})
			continue
		}
		v := model.Some(raw)
		if !v.Valid {
			misses = append(misses, Miss{Feature: b.Feature, Reason: eris.Errorf("feature: non-finite %s", b.Feature)})
		}
		out.Set(b.Feature, v)
	}
	return out, misses
}

// JoinAll joins recs with up to concurrency workers. The output preserves the
// input order.
func (j *Joiner) JoinAll(ctx context.Context, recs []model.LandslideRecord, concurrency int) ([]model.FeatureRecord, *Stats, error) {
	if concurrency <= 0 {
		concurrency = 1
	}

	out := make([]model.FeatureRecord, len(recs))
	misses := make([][]Miss, len(recs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, rec := range recs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			out[i], misses[i] = j.Join(rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "feature: join")
	}

	stats := &Stats{
		Records:   len(recs),
		ByFeature: make(map[model.Feature]int),
		ByReason:  make(map[string]int),
	}
	for _, ms := range misses {
		if len(ms) == 0 {
			stats.Complete++
			continue
		}
		for _, m := range ms {
			stats.ByFeature[m.Feature]++
			stats.ByReason[Reason(m.Reason)]++
		}
	}

	zap.L().Info("feature: records joined",
		zap.Int("records", stats.Records),
		zap.Int("complete", stats.Complete),
		zap.Any("misses_by_reason", stats.ByReason),
	)
	return out, stats, nil
}

// Reason classifies a miss error.
func Reason(err error) string {
	switch {
	case errors.Is(err, raster.ErrNoData):
		return ReasonNoData
	case errors.Is(err, raster.ErrOutsideExtent):
		return ReasonOutsideExtent
	case errors.Is(err, ErrUndefinedLog), errors.Is(err, ErrUndefinedNormalization):
		return ReasonUndefined
	}
	return ReasonOther
}
