package dataset

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/landslide-cli/internal/model"
)

// dBASE limits attribute names to 10 characters, so the shapefile uses short
// names for the feature columns.
var shapefileNames = map[model.Feature]string{
	model.FeatureElevation:           "ELEV",
	model.FeatureElevationNorm:       "ELEV_NORM",
	model.FeatureSlope:               "SLOPE",
	model.FeatureAspect:              "ASPECT",
	model.FeatureProfileCurvature:    "PROF_CURV",
	model.FeaturePlanCurvature:       "PLAN_CURV",
	model.FeatureLogFlowAccumulation: "LOG_FLOW",
}

const (
	maxFieldName  = 10
	triggerLength = 32
)

// ShapefileFieldName returns the dBASE attribute name for f.
func ShapefileFieldName(f model.Feature) string {
	if name, ok := shapefileNames[f]; ok {
		return name
	}
	name, _ := f.IsPrecipitation()
	name = "P_" + strings.ToUpper(name)
	if len(name) > maxFieldName {
		name = name[:maxFieldName]
	}
	return name
}

// WriteShapefile writes the dataset as a point shapefile (plus .shx and .dbf
// siblings) for review in GIS tools.
func (d *Dataset) WriteShapefile(path string) error {
	fields := []shp.Field{
		shp.NumberField("LABEL", 1),
		shp.StringField("TRIGGER", triggerLength),
	}
	seen := map[string]model.Feature{}
	for _, f := range d.Schema {
		name := ShapefileFieldName(f)
		if prev, dup := seen[name]; dup {
			return eris.Errorf("dataset: shapefile field %s collides for %s and %s", name, prev, f)
		}
		seen[name] = f
		fields = append(fields, shp.FloatField(name, 24, 8))
	}

	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		path += ".shp"
	}
	base := path[:len(path)-len(".shp")]

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "dataset: create shapefile %s", path)
	}
	err = d.writeShapes(w, fields)
	w.Close()
	if err != nil {
		return eris.Wrapf(err, "dataset: write shapefile %s", path)
	}

	// go-shp v0.1.1 names the table "<base>dbf" without the dot.
	if _, err := os.Stat(base + "dbf"); err == nil {
		if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
			return eris.Wrapf(err, "dataset: rename dbf for %s", path)
		}
	}
	return nil
}

func (d *Dataset) writeShapes(w *shp.Writer, fields []shp.Field) error {
	if err := w.SetFields(fields); err != nil {
		return eris.Wrap(err, "set fields")
	}

	for i := range d.Rows {
		r := &d.Rows[i]
		idx := int(w.Write(&shp.Point{X: r.Point.Longitude, Y: r.Point.Latitude}))

		if err := w.WriteAttribute(idx, 0, int(r.Label)); err != nil {
			return eris.Wrapf(err, "label row %d", i)
		}
		trigger := r.Trigger
		if len(trigger) > triggerLength {
			trigger = trigger[:triggerLength]
		}
		if err := w.WriteAttribute(idx, 1, trigger); err != nil {
			return eris.Wrapf(err, "trigger row %d", i)
		}
		for j, f := range d.Schema {
			if err := w.WriteAttribute(idx, 2+j, r.Get(f).Float64); err != nil {
				return eris.Wrapf(err, "%s row %d", f, i)
			}
		}
	}
	return nil
}
