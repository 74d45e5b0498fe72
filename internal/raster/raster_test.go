package raster

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landslide-cli/internal/model"
)

var _ Layer = (*Grid)(nil)

const nodata = -9999

// twoByTwo covers lng [-0.5, 1.5) and lat (-0.5, 1.5] with 1 degree cells.
// The cell containing (0,0) is nodata and the one containing (1,1) is 12.5.
func twoByTwo(t *testing.T) *Grid {
	t.Helper()
	g, err := NewGrid("dem",
		GeoTransform{-0.5, 1, 0, 1.5, 0, -1},
		2, 2,
		[]float64{
			3, 12.5,
			nodata, 7,
		},
		WithNoData(nodata),
	)
	require.NoError(t, err)
	return g
}

func TestGrid_ValueAt(t *testing.T) {
	g := twoByTwo(t)

	v, err := g.ValueAt(model.GeoPoint{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	assert.InDelta(t, 12.5, v, 1e-12)

	_, err = g.ValueAt(model.GeoPoint{Latitude: 0, Longitude: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))
	assert.False(t, errors.Is(err, ErrOutsideExtent))

	v, err = g.ValueAt(model.GeoPoint{Latitude: 0, Longitude: 1})
	require.NoError(t, err)
	assert.InDelta(t, 7.0, v, 1e-12)
}

func TestGrid_OutsideExtent(t *testing.T) {
	g := twoByTwo(t)

	for _, p := range []model.GeoPoint{
		{Latitude: 5, Longitude: 0},
		{Latitude: 0, Longitude: -3},
		{Latitude: 0, Longitude: 1.5},  // right edge is exclusive
		{Latitude: -0.5, Longitude: 0}, // bottom edge is exclusive
		{Latitude: math.NaN(), Longitude: 0},
	} {
		_, err := g.ValueAt(p)
		require.Error(t, err, "point %s", p)
		assert.True(t, errors.Is(err, ErrOutsideExtent), "point %s", p)
	}

	// Top-left corner is inclusive.
	v, err := g.ValueAt(model.GeoPoint{Latitude: 1.5, Longitude: -0.5})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, v, 1e-12)
}

func TestGrid_NaNCellIsNoData(t *testing.T) {
	g, err := NewGrid("precip", GeoTransform{0, 1, 0, 1, 0, -1}, 1, 1, []float64{math.NaN()})
	require.NoError(t, err)

	_, err = g.ValueAt(model.GeoPoint{Latitude: 0.5, Longitude: 0.5})
	assert.True(t, errors.Is(err, ErrNoData))

	_, ok := g.Max()
	assert.False(t, ok)
}

func TestGrid_Max(t *testing.T) {
	g := twoByTwo(t)
	m, ok := g.Max()
	require.True(t, ok)
	assert.InDelta(t, 12.5, m, 1e-12, "nodata must not count toward the max")
}

func TestGrid_Bounds(t *testing.T) {
	g := twoByTwo(t)
	minLng, minLat, maxLng, maxLat := g.Bounds()
	assert.InDelta(t, -0.5, minLng, 1e-12)
	assert.InDelta(t, -0.5, minLat, 1e-12)
	assert.InDelta(t, 1.5, maxLng, 1e-12)
	assert.InDelta(t, 1.5, maxLat, 1e-12)

	w, h := g.Size()
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, "dem", g.Name())
}

func TestNewGrid_Validation(t *testing.T) {
	tests := []struct {
		name string
		gt   GeoTransform
		w, h int
		data []float64
		msg  string
	}{
		{name: "dimensions", gt: GeoTransform{0, 1, 0, 0, 0, -1}, w: 0, h: 1, data: nil, msg: "invalid dimensions"},
		{name: "length", gt: GeoTransform{0, 1, 0, 0, 0, -1}, w: 2, h: 2, data: []float64{1}, msg: "data length"},
		{name: "pixel size", gt: GeoTransform{0, 0, 0, 0, 0, -1}, w: 1, h: 1, data: []float64{1}, msg: "zero pixel size"},
		{name: "rotation", gt: GeoTransform{0, 1, 0.1, 0, 0, -1}, w: 1, h: 1, data: []float64{1}, msg: "rotated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid("x", tt.gt, tt.w, tt.h, tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestGrid_CheckGeographic(t *testing.T) {
	require.NoError(t, twoByTwo(t).CheckGeographic())

	world, err := NewGrid("world", GeoTransform{-180, 1, 0, 90, 0, -1}, 360, 180, make([]float64, 360*180))
	require.NoError(t, err)
	assert.NoError(t, world.CheckGeographic())

	// 30m UTM 45N cells near Kathmandu.
	utm, err := NewGrid("dem", GeoTransform{300000, 30, 0, 3100000, 0, -30}, 3, 3, make([]float64, 9))
	require.NoError(t, err)
	err = utm.CheckGeographic()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotGeographic))
	assert.Contains(t, err.Error(), "dem extent")
}
