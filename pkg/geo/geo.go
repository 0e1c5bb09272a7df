// Package geo provides geographic primitives shared across the pipeline.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// EarthRadius is the mean Earth radius in meters
	EarthRadius = 6371000.0

	// DefaultCRS is the coordinate reference system applied to assembled
	// geometries unless the caller overrides it (NZGD2000)
	DefaultCRS = "EPSG:4167"
)

// Location represents a geographic coordinate pair
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// BoundingBox is an area bounded by four coordinates in the OSM
// (south, west, north, east) convention. Values are degrees.
type BoundingBox struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

// NewBoundingBox creates a bounding box from (south, west, north, east)
// coordinates in degrees.
func NewBoundingBox(south, west, north, east float64) BoundingBox {
	return BoundingBox{South: south, West: west, North: north, East: east}
}

// Validate checks that the box coordinates are in range and ordered
func (b BoundingBox) Validate() error {
	if err := ValidateCoords(b.South, b.West); err != nil {
		return fmt.Errorf("invalid southwest corner: %w", err)
	}
	if err := ValidateCoords(b.North, b.East); err != nil {
		return fmt.Errorf("invalid northeast corner: %w", err)
	}
	if b.North < b.South {
		return fmt.Errorf("north latitude %f is south of south latitude %f", b.North, b.South)
	}
	return nil
}

// Components returns the box coordinates in (south, west, north, east) order
func (b BoundingBox) Components() [4]float64 {
	return [4]float64{b.South, b.West, b.North, b.East}
}

// String renders the box as the comma-separated (S,W,N,E) form used
// inside Overpass QL filter clauses.
func (b BoundingBox) String() string {
	parts := make([]string, 0, 4)
	for _, c := range b.Components() {
		parts = append(parts, FormatCoord(c))
	}
	return strings.Join(parts, ",")
}

// Contains reports whether the location lies within the box
func (b BoundingBox) Contains(loc Location) bool {
	return loc.Latitude >= b.South && loc.Latitude <= b.North &&
		loc.Longitude >= b.West && loc.Longitude <= b.East
}

// FormatCoord renders a coordinate with the shortest exact decimal form.
// Cache keys and query strings must be stable across runs, so no fixed
// precision padding is applied.
func FormatCoord(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

// ValidateCoords validates latitude and longitude values
// Returns an error if the coordinates are invalid
func ValidateCoords(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude: %f (must be between -90 and 90)", lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("invalid longitude: %f (must be between -180 and 180)", lon)
	}
	return nil
}

// HaversineDistance calculates the great-circle distance in meters
// between two points
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadius * c
}
