// Package types contains value types shared across the analysis packages.
package types

import "math"

// CRS identifies the coordinate reference system of a coordinate-bearing
// value. Coordinates from different reference systems must never be mixed
// in a single distance computation; constructors that combine coordinate
// sets check tags and fail fast on mismatch.
type CRS string

const (
	// CRSWGS84 is longitude/latitude degrees on the WGS84 ellipsoid.
	CRSWGS84 CRS = "EPSG:4326"

	// CRSUnknown marks coordinates whose reference system was not recorded.
	CRSUnknown CRS = "unknown"
)

// DistanceMetric selects how pairwise distances are measured.
type DistanceMetric int

const (
	// Planar measures straight-line distance in coordinate units.
	Planar DistanceMetric = iota

	// Haversine measures great-circle distance in kilometers and requires
	// longitude/latitude degree inputs.
	Haversine
)

func (m DistanceMetric) String() string {
	switch m {
	case Planar:
		return "planar"
	case Haversine:
		return "haversine"
	}
	return "invalid"
}

// XY is a single planar location.
type XY struct {
	X float64
	Y float64
}

const earthRadiusKm = 6371.0

// Distance returns the distance between a and b under the given metric.
// Haversine interprets X as longitude and Y as latitude, both in degrees,
// and returns kilometers.
func Distance(a, b XY, metric DistanceMetric) float64 {
	if metric == Haversine {
		lat1 := a.Y * math.Pi / 180
		lat2 := b.Y * math.Pi / 180
		dLat := lat2 - lat1
		dLon := (b.X - a.X) * math.Pi / 180
		h := math.Sin(dLat/2)*math.Sin(dLat/2) +
			math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
		return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
	}
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Hypot(dx, dy)
}

// Optional is a float64 that may be absent. The zero value is absent.
// It replaces the missing-as-zero coercion the raw catalog uses, so "no
// measurement" never masquerades as a measured zero downstream.
type Optional struct {
	value float64
	valid bool
}

// Some returns a present Optional.
func Some(v float64) Optional { return Optional{value: v, valid: true} }

// None returns an absent Optional.
func None() Optional { return Optional{} }

// Valid reports whether a value is present.
func (o Optional) Valid() bool { return o.valid }

// Value returns the contained value and whether it is present.
func (o Optional) Value() (float64, bool) { return o.value, o.valid }

// Or returns the contained value, or fallback when absent.
func (o Optional) Or(fallback float64) float64 {
	if o.valid {
		return o.value
	}
	return fallback
}

// FallStatus distinguishes witnessed falls from finds.
type FallStatus string

const (
	FallObserved FallStatus = "Fell"
	FallFound    FallStatus = "Found"
)

// Observation is one meteorite landing record. Identity is positional
// within its ObservationTable; there is no deduplication guarantee.
type Observation struct {
	Name     string
	ID       int64
	Recclass string
	MassG    Optional
	Fall     FallStatus
	Year     Optional
	Lat      float64
	Lon      float64
}

// ObservationTable is a cleaned set of landing records with a common CRS.
// After cleaning, every coordinate is finite.
type ObservationTable struct {
	CRS          CRS
	Observations []Observation
}

// Len returns the number of observations.
func (t *ObservationTable) Len() int { return len(t.Observations) }

// Coords returns the observation locations as XY pairs (X=lon, Y=lat).
func (t *ObservationTable) Coords() []XY {
	out := make([]XY, len(t.Observations))
	for i, o := range t.Observations {
		out[i] = XY{X: o.Lon, Y: o.Lat}
	}
	return out
}
