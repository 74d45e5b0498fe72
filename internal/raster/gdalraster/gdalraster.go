// Package gdalraster loads GDAL-readable raster bands (GeoTIFF, ASCII grid,
// VRT, ...) into in-memory raster.Grid layers.
package gdalraster

import (
	"github.com/lukeroth/gdal"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landslide-cli/internal/raster"
)

// Open reads band (1-based) of the raster at path into a Grid named name.
func Open(name, path string, band int) (*raster.Grid, error) {
	if band <= 0 {
		band = 1
	}
	ds, err := gdal.Open(path, gdal.ReadOnly)
	if err != nil {
		return nil, eris.Wrapf(err, "gdalraster: open %s", path)
	}
	defer ds.Close()

	if err := checkProjection(ds.Projection()); err != nil {
		return nil, eris.Wrapf(err, "gdalraster: %s", path)
	}

	if count := ds.RasterCount(); band > count {
		return nil, eris.Errorf("gdalraster: %s has %d bands, want band %d", path, count, band)
	}

	width, height := ds.RasterXSize(), ds.RasterYSize()
	rb := ds.RasterBand(band)
	buf := make([]float64, width*height)
	if err := rb.IO(gdal.Read, 0, 0, width, height, buf, width, height, 0, 0); err != nil {
		return nil, eris.Wrapf(err, "gdalraster: read band %d of %s", band, path)
	}

	var opts []raster.GridOption
	if nd, ok := rb.NoDataValue(); ok {
		opts = append(opts, raster.WithNoData(nd))
	}

	grid, err := raster.NewGrid(name, raster.GeoTransform(ds.GeoTransform()), width, height, buf, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "gdalraster: %s", path)
	}
	// Rasters without a CRS are taken as lon/lat when their extent allows it.
	if err := grid.CheckGeographic(); err != nil {
		return nil, eris.Wrapf(err, "gdalraster: %s", path)
	}

	zap.L().Debug("gdalraster: layer loaded",
		zap.String("layer", name),
		zap.String("path", path),
		zap.Int("width", width),
		zap.Int("height", height),
	)
	return grid, nil
}

// checkProjection rejects projected CRSs. Query points are WGS84 degrees, so
// a UTM raster would miss every lookup; reproject it first, e.g. with
// gdalwarp -t_srs EPSG:4326.
func checkProjection(wkt string) error {
	if wkt == "" {
		return nil
	}
	sr := gdal.CreateSpatialReference(wkt)
	defer sr.Destroy()
	if !sr.IsGeographic() {
		return eris.Wrap(raster.ErrNotGeographic, "projected CRS, reproject to EPSG:4326")
	}
	return nil
}

// Source names a raster file to load as a layer.
type Source struct {
	Name string
	Path string
	Band int
}

// OpenAll loads every source, keyed by name. It stops at the first failure.
func OpenAll(sources []Source) (map[string]raster.Layer, error) {
	layers := make(map[string]raster.Layer, len(sources))
	for _, s := range sources {
		if _, dup := layers[s.Name]; dup {
			return nil, eris.Errorf("gdalraster: duplicate layer %q", s.Name)
		}
		g, err := Open(s.Name, s.Path, s.Band)
		if err != nil {
			return nil, err
		}
		layers[s.Name] = g
	}
	zap.L().Info("gdalraster: layers loaded", zap.Int("count", len(layers)))
	return layers, nil
}
