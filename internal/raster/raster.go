// Package raster provides point lookups against gridded terrain and climate
// layers. Layers are loaded into memory once and are read-only afterwards.
package raster

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landslide-cli/internal/model"
)

var (
	// ErrNoData is returned when the cell under a point holds the nodata value.
	ErrNoData = eris.New("raster: no data at point")
	// ErrOutsideExtent is returned when a point falls outside the raster.
	ErrOutsideExtent = eris.New("raster: point outside extent")
	// ErrNotGeographic is returned for rasters whose coordinates are not
	// longitude/latitude degrees, such as UTM grids.
	ErrNotGeographic = eris.New("raster: not in a geographic (lon/lat) CRS")
)

// Layer is a single-band raster queried by location.
type Layer interface {
	Name() string
	// ValueAt returns the cell value under p, or an error wrapping ErrNoData
	// or ErrOutsideExtent.
	ValueAt(p model.GeoPoint) (float64, error)
	// Max returns the largest valid cell value. ok is false when the layer
	// has no valid cells.
	Max() (max float64, ok bool)
}

// GeoTransform maps pixel space to geographic space using the GDAL convention:
//
//	x = gt[0] + col*gt[1] + row*gt[2]
//	y = gt[3] + col*gt[4] + row*gt[5]
type GeoTransform [6]float64

// Grid is an in-memory north-up raster.
type Grid struct {
	name      string
	transform GeoTransform
	width     int
	height    int
	data      []float64
	nodata    float64
	hasNodata bool

	max    float64
	hasMax bool
}

// GridOption configures a Grid.
type GridOption func(*Grid)

// WithNoData marks v as the nodata value.
func WithNoData(v float64) GridOption {
	return func(g *Grid) {
		g.nodata = v
		g.hasNodata = true
	}
}

// NewGrid builds a Grid over row-major data. The transform must be north-up
// (no rotation terms) with a non-zero pixel size.
func NewGrid(name string, gt GeoTransform, width, height int, data []float64, opts ...GridOption) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, eris.Errorf("raster: %s: invalid dimensions %dx%d", name, width, height)
	}
	if len(data) != width*height {
		return nil, eris.Errorf("raster: %s: data length %d does not match %dx%d", name, len(data), width, height)
	}
	if gt[1] == 0 || gt[5] == 0 {
		return nil, eris.Errorf("raster: %s: zero pixel size", name)
	}
	if gt[2] != 0 || gt[4] != 0 {
		return nil, eris.Errorf("raster: %s: rotated rasters are not supported", name)
	}

	g := &Grid{
		name:      name,
		transform: gt,
		width:     width,
		height:    height,
		data:      data,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.computeMax()
	return g, nil
}

func (g *Grid) computeMax() {
	for _, v := range g.data {
		if g.isNoData(v) {
			continue
		}
		if !g.hasMax || v > g.max {
			g.max = v
			g.hasMax = true
		}
	}
}

func (g *Grid) isNoData(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	return g.hasNodata && v == g.nodata
}

// Name returns the layer name.
func (g *Grid) Name() string { return g.name }

// Size returns the grid dimensions in cells.
func (g *Grid) Size() (width, height int) { return g.width, g.height }

// Max returns the largest valid cell value.
func (g *Grid) Max() (float64, bool) { return g.max, g.hasMax }

// Cell returns the column and row containing p. The left and top edges of the
// extent are inclusive, the right and bottom edges exclusive.
func (g *Grid) Cell(p model.GeoPoint) (col, row int, ok bool) {
	fx := (p.Longitude - g.transform[0]) / g.transform[1]
	fy := (p.Latitude - g.transform[3]) / g.transform[5]
	if math.IsNaN(fx) || math.IsNaN(fy) {
		return 0, 0, false
	}
	cx, cy := math.Floor(fx), math.Floor(fy)
	if cx < 0 || cy < 0 || cx >= float64(g.width) || cy >= float64(g.height) {
		return 0, 0, false
	}
	return int(cx), int(cy), true
}

// ValueAt returns the value of the cell under p.
func (g *Grid) ValueAt(p model.GeoPoint) (float64, error) {
	col, row, ok := g.Cell(p)
	if !ok {
		return 0, eris.Wrapf(ErrOutsideExtent, "%s at %s", g.name, p)
	}
	v := g.data[row*g.width+col]
	if g.isNoData(v) {
		return 0, eris.Wrapf(ErrNoData, "%s at %s", g.name, p)
	}
	return v, nil
}

// Bounds returns the geographic extent of the grid as
// (minLng, minLat, maxLng, maxLat).
func (g *Grid) Bounds() (minLng, minLat, maxLng, maxLat float64) {
	x0 := g.transform[0]
	x1 := x0 + float64(g.width)*g.transform[1]
	y0 := g.transform[3]
	y1 := y0 + float64(g.height)*g.transform[5]
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// CheckGeographic reports ErrNotGeographic when the extent cannot be
// longitude/latitude degrees. A projected grid in meters fails this check.
func (g *Grid) CheckGeographic() error {
	minLng, minLat, maxLng, maxLat := g.Bounds()
	const eps = 1e-6
	if minLng < -180-eps || maxLng > 180+eps || minLat < -90-eps || maxLat > 90+eps {
		return eris.Wrapf(ErrNotGeographic, "%s extent [%g %g, %g %g]", g.name, minLng, minLat, maxLng, maxLat)
	}
	return nil
}
