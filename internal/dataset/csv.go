package dataset

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/landslide-cli/internal/model"
)

// WriteCSV writes the dataset to path, replacing any existing file. Floats use
// the shortest exact representation so identical datasets produce identical
// bytes.
func (d *Dataset) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(d.Columns()); err != nil {
		return eris.Wrapf(err, "dataset: write header to %s", path)
	}

	for i := range d.Rows {
		if err := w.Write(d.row(&d.Rows[i])); err != nil {
			return eris.Wrapf(err, "dataset: write row %d to %s", i, path)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "dataset: flush %s", path)
	}
	return eris.Wrapf(f.Close(), "dataset: close %s", path)
}

// row maps a record to CSV fields in Columns order.
func (d *Dataset) row(r *model.FeatureRecord) []string {
	out := make([]string, 0, 4+len(d.Schema))
	out = append(out,
		strconv.Itoa(int(r.Label)),
		formatFloat(r.Point.Latitude),
		formatFloat(r.Point.Longitude),
		r.Trigger,
	)
	for _, f := range d.Schema {
		out = append(out, formatFloat(r.Get(f).Float64))
	}
	return out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadCSV loads a dataset written by WriteCSV. Columns after the fixed
// leading columns become the schema.
func ReadCSV(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	if len(records) == 0 {
		return nil, eris.Errorf("dataset: %s is empty", path)
	}

	header := records[0]
	fixed := []string{ColLabel, ColLatitude, ColLongitude, ColTrigger}
	if len(header) <= len(fixed) {
		return nil, eris.Errorf("dataset: %s has no feature columns", path)
	}
	for i, col := range fixed {
		if strings.TrimSpace(header[i]) != col {
			return nil, eris.Errorf("dataset: %s column %d is %q, want %q", path, i, header[i], col)
		}
	}

	ds := &Dataset{Dropped: DropStats{ByFeature: make(map[model.Feature]int)}}
	for _, col := range header[len(fixed):] {
		feat := model.Feature(strings.TrimSpace(col))
		if !feat.Known() {
			return nil, eris.Errorf("dataset: %s has unknown feature column %q", path, col)
		}
		ds.Schema = append(ds.Schema, feat)
	}

	for n, row := range records[1:] {
		line := n + 2
		label, err := strconv.Atoi(row[0])
		if err != nil || !model.Label(label).Valid() {
			return nil, eris.Errorf("dataset: %s line %d: invalid label %q", path, line, row[0])
		}
		lat, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: %s line %d: latitude", path, line)
		}
		lng, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: %s line %d: longitude", path, line)
		}

		rec := model.NewFeatureRecord(model.LandslideRecord{
			Point:   model.GeoPoint{Latitude: lat, Longitude: lng},
			Label:   model.Label(label),
			Trigger: row[3],
		})
		for i, feat := range ds.Schema {
			v, err := strconv.ParseFloat(row[len(fixed)+i], 64)
			if err != nil {
				return nil, eris.Wrapf(err, "dataset: %s line %d: %s", path, line, feat)
			}
			rec.Set(feat, model.Some(v))
		}
		ds.Rows = append(ds.Rows, rec)
	}
	return ds, nil
}
