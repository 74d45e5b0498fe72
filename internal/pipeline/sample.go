package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/landslide-cli/internal/config"
	"github.com/sells-group/landslide-cli/internal/feature"
	"github.com/sells-group/landslide-cli/internal/geo"
	"github.com/sells-group/landslide-cli/internal/model"
	"github.com/sells-group/landslide-cli/internal/raster"
	"github.com/sells-group/landslide-cli/internal/sampler"
)

// NewOracle builds the exclusion oracle named by kind ("indexed" or
// "linear"; empty means indexed).
func NewOracle(kind string, refs []model.GeoPoint, thresholdMeters float64) (geo.Oracle, error) {
	switch kind {
	case "", config.OracleIndexed:
		o, err := geo.NewIndexedOracle(refs, thresholdMeters)
		if err != nil {
			return nil, err
		}
		return o, nil
	case config.OracleLinear:
		o, err := geo.NewLinearOracle(refs, thresholdMeters)
		if err != nil {
			return nil, err
		}
		return o, nil
	}
	return nil, eris.Errorf("pipeline: unknown oracle %q", kind)
}

// SampleNegatives draws target pseudo-absences away from positives. A target
// of 0 draws one per positive.
func SampleNegatives(cfg *config.Config, positives []model.LandslideRecord, target int) (*sampler.Result, error) {
	if target == 0 {
		target = len(positives)
	}
	refs := make([]model.GeoPoint, len(positives))
	for i, r := range positives {
		refs[i] = r.Point
	}

	oracle, err := NewOracle(cfg.Sampling.Oracle, refs, cfg.Sampling.MinDistance)
	if err != nil {
		return nil, err
	}
	return sampler.Sample(sampler.Config{
		Region:          cfg.Region,
		MinDistance:     cfg.Sampling.MinDistance,
		Target:          target,
		Seed:            cfg.Sampling.Seed,
		BatchMultiplier: cfg.Sampling.BatchMultiplier,
		MaxBatches:      cfg.Sampling.MaxBatches,
	}, oracle)
}

// Bindings resolves configured features against loaded layers.
func Bindings(features []config.FeatureConfig, layers map[string]raster.Layer) ([]feature.Binding, error) {
	out := make([]feature.Binding, 0, len(features))
	for _, f := range features {
		layer, ok := layers[f.Layer]
		if !ok {
			return nil, eris.Errorf("pipeline: feature %q uses unknown layer %q", f.Name, f.Layer)
		}
		t, err := feature.ParseTransform(f.Transform)
		if err != nil {
			return nil, eris.Wrapf(err, "pipeline: feature %q", f.Name)
		}
		out = append(out, feature.Binding{Feature: model.Feature(f.Name), Layer: layer, Transform: t})
	}
	return out, nil
}
