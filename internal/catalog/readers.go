package catalog

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/sells-group/landslide-cli/internal/model"
)

func readCSV(path, encoding string) ([]row, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var src io.Reader = f
	if encoding != "" {
		enc, err := htmlindex.Get(encoding)
		if err != nil {
			return nil, false, eris.Wrapf(err, "catalog: unknown encoding %q", encoding)
		}
		src = transform.NewReader(f, enc.NewDecoder())
	}

	reader := csv.NewReader(src)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, false, eris.Wrapf(err, "catalog: read %s", path)
	}
	if len(records) == 0 {
		return nil, false, eris.Errorf("catalog: %s is empty", path)
	}

	colIdx := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		colIdx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))] = i
	}
	for _, col := range []string{ColLatitude, ColLongitude} {
		if _, ok := colIdx[col]; !ok {
			return nil, false, eris.Errorf("catalog: %s is missing required column %q", path, col)
		}
	}
	_, hasCountry := colIdx[ColCountry]

	rows := make([]row, 0, len(records)-1)
	for _, rec := range records[1:] {
		p, ok := parsePoint(getCol(rec, colIdx, ColLatitude), getCol(rec, colIdx, ColLongitude))
		rows = append(rows, row{
			point:   p,
			valid:   ok,
			trigger: getCol(rec, colIdx, ColTrigger),
			country: getCol(rec, colIdx, ColCountry),
		})
	}
	return rows, hasCountry, nil
}

func getCol(rec []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// parsePoint accepts finite coordinates within the WGS84 range.
func parsePoint(lat, lng string) (model.GeoPoint, bool) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return model.GeoPoint{}, false
	}
	lo, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return model.GeoPoint{}, false
	}
	p := model.GeoPoint{Latitude: la, Longitude: lo}
	return p, validPoint(p)
}

func validPoint(p model.GeoPoint) bool {
	if math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude) {
		return false
	}
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// readShapefile reads a point shapefile. dBASE truncates names to 10
// characters, so attribute columns match on prefix.
func readShapefile(path string) ([]row, bool, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, false, eris.Wrapf(err, "catalog: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	triggerIdx := fieldIndex(reader, ColTrigger, "trigger")
	countryIdx := fieldIndex(reader, ColCountry)

	var rows []row
	for reader.Next() {
		n, shape := reader.Shape()
		r := row{}
		switch s := shape.(type) {
		case *shp.Point:
			r.point = model.GeoPoint{Latitude: s.Y, Longitude: s.X}
			r.valid = validPoint(r.point)
		case *shp.PointZ:
			r.point = model.GeoPoint{Latitude: s.Y, Longitude: s.X}
			r.valid = validPoint(r.point)
		case *shp.PointM:
			r.point = model.GeoPoint{Latitude: s.Y, Longitude: s.X}
			r.valid = validPoint(r.point)
		}
		if triggerIdx >= 0 {
			r.trigger = attr(reader, n, triggerIdx)
		}
		if countryIdx >= 0 {
			r.country = attr(reader, n, countryIdx)
		}
		rows = append(rows, r)
	}
	if err := reader.Err(); err != nil {
		return nil, false, eris.Wrapf(err, "catalog: read %s", path)
	}
	return rows, countryIdx >= 0, nil
}

// attr reads a dBASE value. Short values are NUL padded.
func attr(reader *shp.Reader, n, field int) string {
	return strings.TrimSpace(strings.TrimRight(reader.ReadAttribute(n, field), "\x00"))
}

func fieldIndex(reader *shp.Reader, names ...string) int {
	for i, f := range reader.Fields() {
		field := strings.ToLower(strings.TrimRight(f.String(), "\x00"))
		for _, name := range names {
			if field == name || (len(field) == 10 && strings.HasPrefix(name, field)) {
				return i
			}
		}
	}
	return -1
}
