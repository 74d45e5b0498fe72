package model

import (
	"math"
	"strings"
)

// Feature names a column of the assembled dataset.
type Feature string

const (
	FeatureElevation           Feature = "elevation"
	FeatureElevationNorm       Feature = "elevation_norm"
	FeatureSlope               Feature = "slope"
	FeatureAspect              Feature = "aspect"
	FeatureProfileCurvature    Feature = "profile_curvature"
	FeaturePlanCurvature       Feature = "plan_curvature"
	FeatureLogFlowAccumulation Feature = "log_flow_accumulation"
)

// precipPrefix namespaces the optional precipitation features.
const precipPrefix = "precip_"

// TerrainFeatures lists the fixed terrain features in column order.
var TerrainFeatures = []Feature{
	FeatureElevation,
	FeatureElevationNorm,
	FeatureSlope,
	FeatureAspect,
	FeatureProfileCurvature,
	FeaturePlanCurvature,
	FeatureLogFlowAccumulation,
}

// PrecipitationFeature returns the feature name for a precipitation layer.
func PrecipitationFeature(name string) Feature {
	return Feature(precipPrefix + strings.ToLower(strings.TrimSpace(name)))
}

// IsPrecipitation reports whether f is a precipitation feature, returning the
// layer name.
func (f Feature) IsPrecipitation() (string, bool) {
	s := string(f)
	if !strings.HasPrefix(s, precipPrefix) || len(s) == len(precipPrefix) {
		return "", false
	}
	return s[len(precipPrefix):], true
}

// Known reports whether f is a terrain feature or a precipitation feature.
func (f Feature) Known() bool {
	for _, t := range TerrainFeatures {
		if f == t {
			return true
		}
	}
	_, ok := f.IsPrecipitation()
	return ok
}

// Value is an optional feature value. The zero Value is missing.
type Value struct {
	Float64 float64
	Valid   bool
}

// Some returns a valid Value. Non-finite inputs yield a missing Value so that
// NaN and infinities never reach the dataset.
func Some(v float64) Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Value{}
	}
	return Value{Float64: v, Valid: true}
}

// FeatureRecord is a LandslideRecord enriched with raster-derived features.
type FeatureRecord struct {
	LandslideRecord

	Elevation           Value
	ElevationNorm       Value
	Slope               Value
	Aspect              Value
	ProfileCurvature    Value
	PlanCurvature       Value
	LogFlowAccumulation Value

	// Precipitation is keyed by precipitation layer name.
	Precipitation map[string]Value
}

// NewFeatureRecord returns a FeatureRecord with every feature missing.
func NewFeatureRecord(rec LandslideRecord) FeatureRecord {
	return FeatureRecord{LandslideRecord: rec}
}

// Get returns the value stored for f.
func (r *FeatureRecord) Get(f Feature) Value {
	switch f {
	case FeatureElevation:
		return r.Elevation
	case FeatureElevationNorm:
		return r.ElevationNorm
	case FeatureSlope:
		return r.Slope
	case FeatureAspect:
		return r.Aspect
	case FeatureProfileCurvature:
		return r.ProfileCurvature
	case FeaturePlanCurvature:
		return r.PlanCurvature
	case FeatureLogFlowAccumulation:
		return r.LogFlowAccumulation
	}
	if name, ok := f.IsPrecipitation(); ok {
		return r.Precipitation[name]
	}
	return Value{}
}

// Set stores v for f. Unknown features are ignored.
func (r *FeatureRecord) Set(f Feature, v Value) {
	switch f {
	case FeatureElevation:
		r.Elevation = v
	case FeatureElevationNorm:
		r.ElevationNorm = v
	case FeatureSlope:
		r.Slope = v
	case FeatureAspect:
		r.Aspect = v
	case FeatureProfileCurvature:
		r.ProfileCurvature = v
	case FeaturePlanCurvature:
		r.PlanCurvature = v
	case FeatureLogFlowAccumulation:
		r.LogFlowAccumulation = v
	default:
		name, ok := f.IsPrecipitation()
		if !ok {
			return
		}
		if r.Precipitation == nil {
			r.Precipitation = make(map[string]Value)
		}
		r.Precipitation[name] = v
	}
}

// Missing returns the features of schema that have no valid value.
func (r *FeatureRecord) Missing(schema []Feature) []Feature {
	var out []Feature
	for _, f := range schema {
		if !r.Get(f).Valid {
			out = append(out, f)
		}
	}
	return out
}

// Complete reports whether every feature in schema is valid.
func (r *FeatureRecord) Complete(schema []Feature) bool {
	for _, f := range schema {
		if !r.Get(f).Valid {
			return false
		}
	}
	return true
}
