package drivetime

import (
	"errors"

	"github.com/richxcame/parking-drivetime/pkg/geo"
)

// ErrInvalidDestinations is returned when a destination list has empty or duplicate ids
var ErrInvalidDestinations = errors.New("invalid destinations")

// Coordinate is a WGS84 point in decimal degrees
type Coordinate = geo.Coordinate

// Bounds is an axis-aligned lat/lng rectangle. All edges are inclusive.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains reports whether c lies inside the rectangle
func (b Bounds) Contains(c Coordinate) bool {
	return c.Lat >= b.South && c.Lat <= b.North && c.Lng >= b.West && c.Lng <= b.East
}

// Zone is a named area with a relative speed factor and a traffic density in [0,1]
type Zone struct {
	Name           string  `json:"name"`
	Bounds         Bounds  `json:"bounds"`
	SpeedFactor    float64 `json:"speedFactor"`
	TrafficDensity float64 `json:"trafficDensity"`
}

// Corridor is a straight segment approximating part of an expressway
type Corridor struct {
	Start Coordinate `json:"start"`
	End   Coordinate `json:"end"`
}

// Expressway is a named expressway. Only its corridors take part in the estimate;
// the speed figures are informational.
type Expressway struct {
	Name       string     `json:"name"`
	SpeedLimit float64    `json:"speedLimit"`
	AvgSpeed   float64    `json:"avgSpeed"`
	Corridors  []Corridor `json:"corridors"`
}

// DestinationPoint is an opaque id plus a location. Ids are unique within one request.
type DestinationPoint struct {
	ID         string     `json:"id"`
	Coordinate Coordinate `json:"coordinate"`
}

// Result is a single driving-time answer
type Result struct {
	DistanceKm  float64 `json:"distanceKm"`
	DurationMin int     `json:"durationMin"`
}

// CacheEntry holds every result computed for one origin key
type CacheEntry struct {
	OriginKey string            `json:"-"`
	Data      map[string]Result `json:"data"`
	Timestamp int64             `json:"timestamp"` // Unix millis
}

// RouteType is a coarse classification of the likely route
type RouteType string

const (
	RouteTypeExpressway RouteType = "expressway"
	RouteTypeArterial   RouteType = "arterial"
	RouteTypeLocal      RouteType = "local"
)

// Estimation is a heuristic result together with the factors that produced it
type Estimation struct {
	Result

	OriginZone      string `json:"originZone,omitempty"`
	DestinationZone string `json:"destinationZone,omitempty"`

	BaseSpeedKmh      float64 `json:"baseSpeedKmh"`
	SpeedFactor       float64 `json:"speedFactor"`
	TrafficDensity    float64 `json:"trafficDensity"`
	EffectiveSpeedKmh float64 `json:"effectiveSpeedKmh"`

	ExpresswayProbability float64   `json:"expresswayProbability"`
	ExpresswayLikely      bool      `json:"expresswayLikely"`
	RouteType             RouteType `json:"routeType"`
}
