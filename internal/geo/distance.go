package geo

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/rotisserie/eris"

	"github.com/sells-group/landslide-cli/internal/model"
)

// ErrInvalidThreshold is returned when an oracle is built with a non-positive
// exclusion distance.
var ErrInvalidThreshold = eris.New("geo: exclusion distance must be positive")

// EarthRadiusMeters is the sphere radius used by Haversine.
const EarthRadiusMeters = orb.EarthRadius

// Haversine returns the great-circle distance between a and b in meters.
func Haversine(a, b model.GeoPoint) float64 {
	return orbgeo.DistanceHaversine(
		orb.Point{a.Longitude, a.Latitude},
		orb.Point{b.Longitude, b.Latitude},
	)
}

// Oracle decides whether a candidate lies within the exclusion distance of
// any reference point.
type Oracle interface {
	TooClose(p model.GeoPoint) bool
	// Threshold returns the exclusion distance in meters.
	Threshold() float64
}

// LinearOracle compares every candidate against every reference point.
type LinearOracle struct {
	refs      []model.GeoPoint
	threshold float64
}

// NewLinearOracle copies refs so later changes by the caller do not leak in.
func NewLinearOracle(refs []model.GeoPoint, thresholdMeters float64) (*LinearOracle, error) {
	if !(thresholdMeters > 0) {
		return nil, eris.Wrapf(ErrInvalidThreshold, "got %g", thresholdMeters)
	}
	return &LinearOracle{
		refs:      append([]model.GeoPoint(nil), refs...),
		threshold: thresholdMeters,
	}, nil
}

// TooClose reports whether p is within the threshold of any reference point.
// An empty reference set never rejects.
func (o *LinearOracle) TooClose(p model.GeoPoint) bool {
	for _, r := range o.refs {
		if Haversine(p, r) <= o.threshold {
			return true
		}
	}
	return false
}

// Len returns the size of the reference set.
func (o *LinearOracle) Len() int { return len(o.refs) }

// Threshold returns the exclusion distance in meters.
func (o *LinearOracle) Threshold() float64 { return o.threshold }

// refEntry adapts a reference point to rtreego.Spatial. Points are stored as
// (lng, lat) with a tiny extent since rtreego rejects zero-size rectangles.
type refEntry struct {
	point model.GeoPoint
}

func (e refEntry) Bounds() rtreego.Rect {
	return rtreego.Point{e.point.Longitude, e.point.Latitude}.ToRect(pointTolerance)
}

const (
	pointTolerance = 1e-9
	// envelopePad widens query envelopes to absorb floating point error in
	// the degree conversion.
	envelopePad = 1e-6
	// polarCutoff is the latitude (degrees) beyond which longitude bounds are
	// not derived and the oracle falls back to a linear scan.
	polarCutoff = 89.0
)

// IndexedOracle answers the same question as LinearOracle using an R-tree
// prefilter. Candidates returned by the envelope search are confirmed with
// Haversine, so accept and reject decisions are identical.
type IndexedOracle struct {
	tree      *rtreego.Rtree
	linear    *LinearOracle
	threshold float64
	angular   float64 // threshold as an angle on the sphere (radians)
}

// NewIndexedOracle builds the R-tree over refs.
func NewIndexedOracle(refs []model.GeoPoint, thresholdMeters float64) (*IndexedOracle, error) {
	linear, err := NewLinearOracle(refs, thresholdMeters)
	if err != nil {
		return nil, err
	}
	tree := rtreego.NewTree(2, 25, 50)
	for _, r := range linear.refs {
		tree.Insert(refEntry{point: r})
	}
	return &IndexedOracle{
		tree:      tree,
		linear:    linear,
		threshold: thresholdMeters,
		angular:   thresholdMeters / EarthRadiusMeters,
	}, nil
}

// TooClose reports whether p is within the threshold of any reference point.
func (o *IndexedOracle) TooClose(p model.GeoPoint) bool {
	if o.tree.Size() == 0 {
		return false
	}
	env, ok := o.envelope(p)
	if !ok {
		return o.linear.TooClose(p)
	}
	for _, s := range o.tree.SearchIntersect(env) {
		if Haversine(p, s.(refEntry).point) <= o.threshold {
			return true
		}
	}
	return false
}

// Threshold returns the exclusion distance in meters.
func (o *IndexedOracle) Threshold() float64 { return o.threshold }

// envelope returns a degree-space rectangle guaranteed to contain every point
// within the threshold of p. It reports false when no such rectangle exists
// without wrapping the antimeridian or a pole.
func (o *IndexedOracle) envelope(p model.GeoPoint) (rtreego.Rect, bool) {
	if o.angular >= math.Pi/2 {
		return rtreego.Rect{}, false
	}
	dLat := o.angular*180/math.Pi + envelopePad
	if math.Abs(p.Latitude)+dLat >= polarCutoff {
		return rtreego.Rect{}, false
	}

	latRad := p.Latitude * math.Pi / 180
	ratio := math.Sin(o.angular) / math.Cos(latRad)
	if ratio >= 1 {
		return rtreego.Rect{}, false
	}
	dLng := math.Asin(ratio)*180/math.Pi + envelopePad

	minLng, maxLng := p.Longitude-dLng, p.Longitude+dLng
	if minLng < -180 || maxLng > 180 {
		return rtreego.Rect{}, false
	}

	rect, err := rtreego.NewRectFromPoints(
		rtreego.Point{minLng, p.Latitude - dLat},
		rtreego.Point{maxLng, p.Latitude + dLat},
	)
	if err != nil {
		return rtreego.Rect{}, false
	}
	return rect, true
}
