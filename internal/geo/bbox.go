// Package geo provides the spatial primitives of the dataset build: bounding
// boxes, great-circle distance and the exclusion-distance oracle.
package geo

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landslide-cli/internal/model"
)

// ErrInvalidBoundingBox is returned when a bounding box has no area or
// non-finite bounds.
var ErrInvalidBoundingBox = eris.New("geo: invalid bounding box")

// BBox represents a geographic bounding box in degrees.
type BBox struct {
	MinLng float64 `json:"min_lng" mapstructure:"min_lng"`
	MinLat float64 `json:"min_lat" mapstructure:"min_lat"`
	MaxLng float64 `json:"max_lng" mapstructure:"max_lng"`
	MaxLat float64 `json:"max_lat" mapstructure:"max_lat"`
}

// NepalBBox covers Nepal with a small margin and is the default sampling region.
var NepalBBox = BBox{MinLng: 80.0, MinLat: 26.3, MaxLng: 88.3, MaxLat: 30.5}

// Validate checks that xmin < xmax and ymin < ymax.
func (b BBox) Validate() error {
	for _, v := range []float64{b.MinLng, b.MinLat, b.MaxLng, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return eris.Wrapf(ErrInvalidBoundingBox, "non-finite bound in %+v", b)
		}
	}
	if b.MinLng >= b.MaxLng {
		return eris.Wrapf(ErrInvalidBoundingBox, "min_lng %g >= max_lng %g", b.MinLng, b.MaxLng)
	}
	if b.MinLat >= b.MaxLat {
		return eris.Wrapf(ErrInvalidBoundingBox, "min_lat %g >= max_lat %g", b.MinLat, b.MaxLat)
	}
	return nil
}

// Contains reports whether p lies inside b. Edges are inclusive.
func (b BBox) Contains(p model.GeoPoint) bool {
	return p.Longitude >= b.MinLng && p.Longitude <= b.MaxLng &&
		p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat
}

// Width returns the longitude span in degrees.
func (b BBox) Width() float64 { return b.MaxLng - b.MinLng }

// Height returns the latitude span in degrees.
func (b BBox) Height() float64 { return b.MaxLat - b.MinLat }
