package geo

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/landslide-cli/internal/model"
)

// SRID4326 is the spatial reference of every stored point.
const SRID4326 = 4326

// EncodePointWKB converts a point to little-endian EWKB with SRID 4326.
func EncodePointWKB(p model.GeoPoint) ([]byte, error) {
	g := geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude}).SetSRID(SRID4326)
	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode WKB")
	}
	return data, nil
}

// DecodePointWKB parses EWKB produced by EncodePointWKB.
func DecodePointWKB(data []byte) (model.GeoPoint, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return model.GeoPoint{}, eris.Wrap(err, "geo: decode WKB")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return model.GeoPoint{}, eris.Errorf("geo: expected point geometry, got %T", g)
	}
	return model.GeoPoint{Latitude: pt.Y(), Longitude: pt.X()}, nil
}
