package drivetime

import "math"

// Zone table for Singapore. Order is precedence: the first zone whose bounds contain a
// point wins, so narrower zones are listed before the regions that enclose them.
// Chinatown sits entirely inside the CBD rectangle and never matches.
var singaporeZones = []Zone{
	{Name: "CBD", Bounds: Bounds{North: 1.2950, South: 1.2700, East: 103.8650, West: 103.8400}, SpeedFactor: 0.6, TrafficDensity: 0.9},
	{Name: "Marina Bay", Bounds: Bounds{North: 1.2900, South: 1.2700, East: 103.8700, West: 103.8500}, SpeedFactor: 0.7, TrafficDensity: 0.8},
	{Name: "Orchard", Bounds: Bounds{North: 1.3100, South: 1.2980, East: 103.8450, West: 103.8250}, SpeedFactor: 0.65, TrafficDensity: 0.85},
	{Name: "Chinatown", Bounds: Bounds{North: 1.2880, South: 1.2780, East: 103.8480, West: 103.8400}, SpeedFactor: 0.6, TrafficDensity: 0.85},
	{Name: "Bugis", Bounds: Bounds{North: 1.3050, South: 1.2950, East: 103.8620, West: 103.8500}, SpeedFactor: 0.7, TrafficDensity: 0.8},
	{Name: "Changi Airport", Bounds: Bounds{North: 1.4000, South: 1.3200, East: 104.0500, West: 103.9700}, SpeedFactor: 1.4, TrafficDensity: 0.3},
	{Name: "Jurong East", Bounds: Bounds{North: 1.3500, South: 1.3200, East: 103.7600, West: 103.7300}, SpeedFactor: 0.9, TrafficDensity: 0.6},
	{Name: "Tampines", Bounds: Bounds{North: 1.3700, South: 1.3400, East: 103.9700, West: 103.9300}, SpeedFactor: 0.95, TrafficDensity: 0.55},
	{Name: "Woodlands", Bounds: Bounds{North: 1.4500, South: 1.4250, East: 103.8050, West: 103.7700}, SpeedFactor: 1.0, TrafficDensity: 0.5},
	{Name: "Punggol", Bounds: Bounds{North: 1.4150, South: 1.3900, East: 103.9200, West: 103.8950}, SpeedFactor: 1.05, TrafficDensity: 0.45},
	{Name: "Tuas", Bounds: Bounds{North: 1.3400, South: 1.2800, East: 103.6700, West: 103.6100}, SpeedFactor: 1.2, TrafficDensity: 0.35},
	{Name: "Central Region", Bounds: Bounds{North: 1.3600, South: 1.2600, East: 103.8900, West: 103.7900}, SpeedFactor: 0.8, TrafficDensity: 0.75},
}

var singaporeExpressways = []Expressway{
	{Name: "PIE", SpeedLimit: 90, AvgSpeed: 70, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.3330, Lng: 103.7420}, End: Coordinate{Lat: 1.3200, Lng: 103.8430}},
		{Start: Coordinate{Lat: 1.3200, Lng: 103.8430}, End: Coordinate{Lat: 1.3340, Lng: 103.9100}},
		{Start: Coordinate{Lat: 1.3340, Lng: 103.9100}, End: Coordinate{Lat: 1.3570, Lng: 103.9880}},
	}},
	{Name: "ECP", SpeedLimit: 90, AvgSpeed: 75, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.2930, Lng: 103.8600}, End: Coordinate{Lat: 1.3030, Lng: 103.9100}},
		{Start: Coordinate{Lat: 1.3030, Lng: 103.9100}, End: Coordinate{Lat: 1.3350, Lng: 103.9800}},
	}},
	{Name: "AYE", SpeedLimit: 90, AvgSpeed: 70, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.2750, Lng: 103.8400}, End: Coordinate{Lat: 1.2950, Lng: 103.7800}},
		{Start: Coordinate{Lat: 1.2950, Lng: 103.7800}, End: Coordinate{Lat: 1.3200, Lng: 103.6600}},
	}},
	{Name: "CTE", SpeedLimit: 80, AvgSpeed: 60, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.2900, Lng: 103.8400}, End: Coordinate{Lat: 1.3400, Lng: 103.8600}},
		{Start: Coordinate{Lat: 1.3400, Lng: 103.8600}, End: Coordinate{Lat: 1.3900, Lng: 103.8700}},
	}},
	{Name: "BKE", SpeedLimit: 90, AvgSpeed: 75, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.3500, Lng: 103.7700}, End: Coordinate{Lat: 1.4400, Lng: 103.7700}},
	}},
	{Name: "SLE", SpeedLimit: 90, AvgSpeed: 75, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.3950, Lng: 103.7500}, End: Coordinate{Lat: 1.4000, Lng: 103.8800}},
	}},
	{Name: "TPE", SpeedLimit: 90, AvgSpeed: 75, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.3900, Lng: 103.8800}, End: Coordinate{Lat: 1.3600, Lng: 103.9800}},
	}},
	{Name: "KPE", SpeedLimit: 80, AvgSpeed: 65, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.3100, Lng: 103.8800}, End: Coordinate{Lat: 1.3800, Lng: 103.9000}},
	}},
	{Name: "KJE", SpeedLimit: 90, AvgSpeed: 75, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.3400, Lng: 103.7500}, End: Coordinate{Lat: 1.3900, Lng: 103.7400}},
	}},
	{Name: "MCE", SpeedLimit: 80, AvgSpeed: 60, Corridors: []Corridor{
		{Start: Coordinate{Lat: 1.2750, Lng: 103.8400}, End: Coordinate{Lat: 1.2950, Lng: 103.8700}},
	}},
}

// ZoneModel answers zone membership and expressway alignment questions
type ZoneModel struct {
	zones       []Zone
	expressways []Expressway
}

// NewZoneModel builds a model from ordered tables. The slices are copied.
func NewZoneModel(zones []Zone, expressways []Expressway) *ZoneModel {
	return &ZoneModel{
		zones:       append([]Zone(nil), zones...),
		expressways: append([]Expressway(nil), expressways...),
	}
}

// DefaultZoneModel returns the Singapore zone and expressway tables
func DefaultZoneModel() *ZoneModel {
	return NewZoneModel(singaporeZones, singaporeExpressways)
}

// Zones returns the zone table in precedence order
func (m *ZoneModel) Zones() []Zone {
	return append([]Zone(nil), m.zones...)
}

// Expressways returns the expressway table
func (m *ZoneModel) Expressways() []Expressway {
	return append([]Expressway(nil), m.expressways...)
}

// ZoneFor returns the first zone containing c
func (m *ZoneModel) ZoneFor(c Coordinate) (Zone, bool) {
	for _, z := range m.zones {
		if z.Bounds.Contains(c) {
			return z, true
		}
	}
	return Zone{}, false
}

// ExpresswayAlignment estimates the probability that a trip of distanceKm from origin to
// dest uses an expressway. Short trips are decided by distance alone; longer trips score
// by the best absolute cosine between the trip vector and any corridor.
func (m *ZoneModel) ExpresswayAlignment(origin, dest Coordinate, distanceKm float64) float64 {
	switch {
	case distanceKm < 3:
		return 0
	case distanceKm < 5:
		return 0.2
	case distanceKm < 8:
		return 0.5
	case distanceKm < 15:
		return 0.8
	}

	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	tripLen := math.Hypot(dLat, dLng)

	best := 0.0
	if tripLen > 0 {
		for _, e := range m.expressways {
			for _, c := range e.Corridors {
				cLat := c.End.Lat - c.Start.Lat
				cLng := c.End.Lng - c.Start.Lng
				corridorLen := math.Hypot(cLat, cLng)
				if corridorLen == 0 {
					continue
				}
				cos := math.Abs((dLat*cLat + dLng*cLng) / (tripLen * corridorLen))
				if cos > best {
					best = cos
				}
			}
		}
	}

	return math.Min(0.95, 0.9+best*0.3)
}
