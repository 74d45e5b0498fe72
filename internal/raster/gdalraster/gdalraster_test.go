package gdalraster

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/lukeroth/gdal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/landslide-cli/internal/model"
	"github.com/sells-group/landslide-cli/internal/raster"
)

// writeGeoTIFF creates a 3x2 single-band Float64 GeoTIFF covering
// lng 85..86.5, lat 27..28 with -9999 as nodata.
func writeGeoTIFF(t *testing.T, bands int) string {
	t.Helper()
	return writeRaster(t, bands, [6]float64{85, 0.5, 0, 28, 0, -0.5}, 0)
}

// writeRaster writes a 3x2 GeoTIFF with the given transform, tagged with
// epsg when it is non-zero.
func writeRaster(t *testing.T, bands int, gt [6]float64, epsg int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dem.tif")

	drv, err := gdal.GetDriverByName("GTiff")
	require.NoError(t, err)
	ds := drv.Create(path, 3, 2, bands, gdal.Float64, nil)
	require.NoError(t, ds.SetGeoTransform(gt))
	if epsg != 0 {
		sr := gdal.CreateSpatialReference("")
		defer sr.Destroy()
		require.NoError(t, sr.FromEPSG(epsg))
		wkt, err := sr.ToWKT()
		require.NoError(t, err)
		require.NoError(t, ds.SetProjection(wkt))
	}

	data := []float64{
		100, 200, 300,
		400, -9999, 600,
	}
	for b := 1; b <= bands; b++ {
		rb := ds.RasterBand(b)
		require.NoError(t, rb.SetNoDataValue(-9999))
		vals := make([]float64, len(data))
		for i, v := range data {
			if v != -9999 {
				v *= float64(b)
			}
			vals[i] = v
		}
		require.NoError(t, rb.IO(gdal.Write, 0, 0, 3, 2, vals, 3, 2, 0, 0))
	}
	ds.Close()
	return path
}

func TestOpen(t *testing.T) {
	path := writeGeoTIFF(t, 1)

	g, err := Open("dem", path, 0)
	require.NoError(t, err)

	assert.Equal(t, "dem", g.Name())
	w, h := g.Size()
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)

	v, err := g.ValueAt(model.GeoPoint{Latitude: 27.9, Longitude: 85.1})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v, 1e-9)

	v, err = g.ValueAt(model.GeoPoint{Latitude: 27.2, Longitude: 86.2})
	require.NoError(t, err)
	assert.InDelta(t, 600.0, v, 1e-9)

	_, err = g.ValueAt(model.GeoPoint{Latitude: 27.2, Longitude: 85.7})
	assert.True(t, errors.Is(err, raster.ErrNoData))

	_, err = g.ValueAt(model.GeoPoint{Latitude: 29, Longitude: 85.1})
	assert.True(t, errors.Is(err, raster.ErrOutsideExtent))

	max, ok := g.Max()
	assert.True(t, ok)
	assert.InDelta(t, 600.0, max, 1e-9)
}

func TestOpen_Band(t *testing.T) {
	path := writeGeoTIFF(t, 2)

	g, err := Open("rain", path, 2)
	require.NoError(t, err)
	v, err := g.ValueAt(model.GeoPoint{Latitude: 27.9, Longitude: 85.1})
	require.NoError(t, err)
	assert.InDelta(t, 200.0, v, 1e-9)

	_, err = Open("rain", path, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 2 bands")
}

func TestOpen_GeographicCRS(t *testing.T) {
	path := writeRaster(t, 1, [6]float64{85, 0.5, 0, 28, 0, -0.5}, 4326)

	g, err := Open("dem", path, 1)
	require.NoError(t, err)
	v, err := g.ValueAt(model.GeoPoint{Latitude: 27.9, Longitude: 85.1})
	require.NoError(t, err)
	assert.InDelta(t, 100.0, v, 1e-9)
}

func TestOpen_RejectsProjectedCRS(t *testing.T) {
	// 30m cells in UTM 45N, where most Nepal DEM derivatives are published.
	utm := [6]float64{300000, 30, 0, 3100000, 0, -30}

	_, err := Open("dem", writeRaster(t, 1, utm, 32645), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, raster.ErrNotGeographic))
	assert.Contains(t, err.Error(), "EPSG:4326")

	// Without a CRS tag the meter extent gives it away.
	_, err = Open("dem", writeRaster(t, 1, utm, 0), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, raster.ErrNotGeographic))
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open("dem", filepath.Join(t.TempDir(), "missing.tif"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gdalraster: open")
}

func TestOpenAll(t *testing.T) {
	path := writeGeoTIFF(t, 1)

	layers, err := OpenAll([]Source{
		{Name: "dem", Path: path, Band: 1},
		{Name: "slope", Path: path},
	})
	require.NoError(t, err)
	assert.Len(t, layers, 2)
	assert.Equal(t, "slope", layers["slope"].Name())

	_, err = OpenAll([]Source{
		{Name: "dem", Path: path},
		{Name: "dem", Path: path},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate layer")
}
