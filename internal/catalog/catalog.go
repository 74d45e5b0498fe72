// Package catalog loads known landslide locations from a CSV export or a
// point shapefile.
package catalog

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/landslide-cli/internal/geo"
	"github.com/sells-group/landslide-cli/internal/model"
)

// Catalog column names.
const (
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColTrigger   = "landslide_trigger"
	ColCountry   = "country_name"
)

// Options filters the catalog while loading.
type Options struct {
	// Country keeps only rows whose country column matches, ignoring case.
	// Empty keeps every row.
	Country string
	// Region drops points outside the box when set.
	Region *geo.BBox
	// Encoding names the CSV character set (e.g. "windows-1252"). Empty
	// means UTF-8.
	Encoding string
}

// Stats counts what happened to the input rows.
type Stats struct {
	Read         int `json:"read"`
	Loaded       int `json:"loaded"`
	Invalid      int `json:"invalid"`
	OtherCountry int `json:"other_country"`
	OutOfRegion  int `json:"out_of_region"`
	Duplicates   int `json:"duplicates"`
}

// row is one raw catalog entry before filtering.
type row struct {
	point   model.GeoPoint
	valid   bool
	trigger string
	country string
}

// Load reads the catalog at path. The extension picks the reader: .csv or
// .shp. Every returned record is labelled present.
func Load(path string, opts Options) ([]model.LandslideRecord, Stats, error) {
	if opts.Region != nil {
		if err := opts.Region.Validate(); err != nil {
			return nil, Stats{}, err
		}
	}

	var (
		rows       []row
		hasCountry bool
		err        error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		rows, hasCountry, err = readCSV(path, opts.Encoding)
	case ".shp":
		rows, hasCountry, err = readShapefile(path)
	default:
		return nil, Stats{}, eris.Errorf("catalog: unsupported file type %q for %s", ext, path)
	}
	if err != nil {
		return nil, Stats{}, err
	}

	if opts.Country != "" && !hasCountry {
		return nil, Stats{}, eris.Errorf("catalog: %s has no %s column to filter on", path, ColCountry)
	}

	recs, stats := filter(rows, opts)
	zap.L().With(zap.String("component", "catalog")).Info("catalog loaded",
		zap.String("path", path),
		zap.Int("read", stats.Read),
		zap.Int("loaded", stats.Loaded),
		zap.Int("invalid", stats.Invalid),
		zap.Int("duplicates", stats.Duplicates),
	)
	return recs, stats, nil
}

var lower = cases.Lower(language.Und)

// NormalizeTrigger lowercases and trims a trigger value. Empty becomes
// model.TriggerUnknown.
func NormalizeTrigger(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.TriggerUnknown
	}
	return lower.String(s)
}

func filter(rows []row, opts Options) ([]model.LandslideRecord, Stats) {
	stats := Stats{Read: len(rows)}
	seen := make(map[model.GeoPoint]bool, len(rows))
	recs := make([]model.LandslideRecord, 0, len(rows))

	for _, r := range rows {
		if !r.valid {
			stats.Invalid++
			continue
		}
		p := r.point
		if opts.Country != "" && !strings.EqualFold(strings.TrimSpace(r.country), strings.TrimSpace(opts.Country)) {
			stats.OtherCountry++
			continue
		}
		if opts.Region != nil && !opts.Region.Contains(p) {
			stats.OutOfRegion++
			continue
		}
		if seen[p] {
			stats.Duplicates++
			continue
		}
		seen[p] = true
		recs = append(recs, model.Positive(p, NormalizeTrigger(r.trigger)))
	}
	stats.Loaded = len(recs)
	return recs, stats
}
