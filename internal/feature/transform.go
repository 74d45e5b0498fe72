package feature

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landslide-cli/internal/raster"
)

var (
	// ErrUndefinedLog is returned when a log transform sees a non-positive value.
	ErrUndefinedLog = eris.New("feature: log of non-positive value")
	// ErrUndefinedNormalization is returned when a layer has no positive max.
	ErrUndefinedNormalization = eris.New("feature: layer has no positive maximum")
)

// Transform is applied to a raw raster value before it is stored.
type Transform string

const (
	TransformNone         Transform = "none"
	TransformLog10        Transform = "log10"
	TransformNormalizeMax Transform = "normalize_max"
)

// ParseTransform maps a config string to a Transform. Empty means none.
func ParseTransform(s string) (Transform, error) {
	switch Transform(s) {
	case "", TransformNone:
		return TransformNone, nil
	case TransformLog10, TransformNormalizeMax:
		return Transform(s), nil
	}
	return "", eris.Errorf("feature: unknown transform %q", s)
}

// Apply transforms raw using layer-wide statistics from layer.
func (t Transform) Apply(raw float64, layer raster.Layer) (float64, error) {
	switch t {
	case "", TransformNone:
		return raw, nil
	case TransformLog10:
		if raw <= 0 {
			return 0, eris.Wrapf(ErrUndefinedLog, "log10(%g)", raw)
		}
		return math.Log10(raw), nil
	case TransformNormalizeMax:
		m, ok := layer.Max()
		if !ok || m <= 0 {
			return 0, eris.Wrapf(ErrUndefinedNormalization, "layer %s", layer.Name())
		}
		return raw / m, nil
	}
	return 0, eris.Errorf("feature: unknown transform %q", string(t))
}
