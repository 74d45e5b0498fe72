// Package model holds the record types shared by the sampling, joining and
// persistence stages of the dataset build.
package model

import "fmt"

// GeoPoint is a WGS84 location in decimal degrees.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the point as "(lat, lng)".
func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Latitude, p.Longitude)
}

// Label marks a record as a landslide (1) or a pseudo-absence (0).
type Label int

const (
	LabelAbsent  Label = 0
	LabelPresent Label = 1
)

// Valid reports whether l is one of the two class labels.
func (l Label) Valid() bool {
	return l == LabelAbsent || l == LabelPresent
}

// Trigger values used when the catalog does not provide one.
const (
	TriggerNone    = "None"
	TriggerUnknown = "unknown"
)

// LandslideRecord is a labeled point, either from the catalog or synthesized.
type LandslideRecord struct {
	Point   GeoPoint `json:"point"`
	Label   Label    `json:"label"`
	Trigger string   `json:"trigger"`
}

// Positive builds a catalog record with label 1.
func Positive(p GeoPoint, trigger string) LandslideRecord {
	if trigger == "" {
		trigger = TriggerUnknown
	}
	return LandslideRecord{Point: p, Label: LabelPresent, Trigger: trigger}
}

// Negative builds a pseudo-absence record with label 0.
func Negative(p GeoPoint) LandslideRecord {
	return LandslideRecord{Point: p, Label: LabelAbsent, Trigger: TriggerNone}
}
