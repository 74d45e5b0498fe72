// Package dataset assembles joined feature records into the balanced training
// table and writes it out.
package dataset

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/landslide-cli/internal/model"
)

// Fixed leading columns of every dataset.
const (
	ColLabel     = "label"
	ColLatitude  = "latitude"
	ColLongitude = "longitude"
	ColTrigger   = "trigger"
)

// DropStats counts records excluded for missing features.
type DropStats struct {
	Positives int                   `json:"positives"`
	Negatives int                   `json:"negatives"`
	ByFeature map[model.Feature]int `json:"by_feature"`
}

// Total returns the number of dropped records.
func (d DropStats) Total() int { return d.Positives + d.Negatives }

// Dataset is the assembled table. Every row is complete under Schema.
type Dataset struct {
	Schema  []model.Feature
	Rows    []model.FeatureRecord
	Dropped DropStats
}

// Assemble merges positives then negatives, keeping input order, and drops any
// record with a missing feature. Positives must carry label 1 and negatives
// label 0.
func Assemble(schema []model.Feature, positives, negatives []model.FeatureRecord) (*Dataset, error) {
	if len(schema) == 0 {
		return nil, eris.New("dataset: empty schema")
	}

	ds := &Dataset{
		Schema:  append([]model.Feature(nil), schema...),
		Rows:    make([]model.FeatureRecord, 0, len(positives)+len(negatives)),
		Dropped: DropStats{ByFeature: make(map[model.Feature]int)},
	}

	add := func(recs []model.FeatureRecord, want model.Label, dropped *int) error {
		for i := range recs {
			r := recs[i]
			if r.Label != want {
				return eris.Errorf("dataset: record %d at %s has label %d, want %d", i, r.Point, r.Label, want)
			}
			missing := r.Missing(ds.Schema)
			if len(missing) > 0 {
				*dropped++
				for _, f := range missing {
					ds.Dropped.ByFeature[f]++
				}
				continue
			}
			ds.Rows = append(ds.Rows, r)
		}
		return nil
	}

	if err := add(positives, model.LabelPresent, &ds.Dropped.Positives); err != nil {
		return nil, err
	}
	if err := add(negatives, model.LabelAbsent, &ds.Dropped.Negatives); err != nil {
		return nil, err
	}

	zap.L().Info("dataset: assembled",
		zap.Int("rows", len(ds.Rows)),
		zap.Int("dropped_positives", ds.Dropped.Positives),
		zap.Int("dropped_negatives", ds.Dropped.Negatives),
	)
	return ds, nil
}

// Columns returns the header in output order.
func (d *Dataset) Columns() []string {
	cols := []string{ColLabel, ColLatitude, ColLongitude, ColTrigger}
	for _, f := range d.Schema {
		cols = append(cols, string(f))
	}
	return cols
}

// Counts returns the number of rows per label.
func (d *Dataset) Counts() (positives, negatives int) {
	for _, r := range d.Rows {
		if r.Label == model.LabelPresent {
			positives++
		} else {
			negatives++
		}
	}
	return positives, negatives
}

// Stat summarizes one feature column.
type Stat struct {
	Feature model.Feature `json:"feature"`
	Min     float64       `json:"min"`
	Max     float64       `json:"max"`
	Mean    float64       `json:"mean"`
}

// Summary describes the dataset for reporting.
type Summary struct {
	Rows      int       `json:"rows"`
	Positives int       `json:"positives"`
	Negatives int       `json:"negatives"`
	Dropped   DropStats `json:"dropped"`
	Features  []Stat    `json:"features"`
}

// Summary computes per-label counts and per-feature ranges.
func (d *Dataset) Summary() Summary {
	pos, neg := d.Counts()
	s := Summary{Rows: len(d.Rows), Positives: pos, Negatives: neg, Dropped: d.Dropped}
	for _, f := range d.Schema {
		st := Stat{Feature: f}
		var sum float64
		for i := range d.Rows {
			v := d.Rows[i].Get(f).Float64
			if i == 0 || v < st.Min {
				st.Min = v
			}
			if i == 0 || v > st.Max {
				st.Max = v
			}
			sum += v
		}
		if len(d.Rows) > 0 {
			st.Mean = sum / float64(len(d.Rows))
		}
		s.Features = append(s.Features, st)
	}
	return s
}
