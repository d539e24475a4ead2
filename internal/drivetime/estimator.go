package drivetime

import (
	"math"

	"github.com/richxcame/parking-drivetime/pkg/geo"
)

// Neutral values used in place of a missing zone when blending
const (
	neutralSpeedFactor    = 1.0
	neutralTrafficDensity = 0.6
)

const (
	expresswayBoost       = 0.6
	trafficDamping        = 0.3
	trafficLightPenalty   = 0.4
	parkingSearchPenalty  = 0.2
	parkingSearchMaxKm    = 3.0
	roadQualityFactor     = 0.95
	trafficMgmtFactor     = 0.98
	expresswayLikelyFloor = 0.7
	arterialFloor         = 0.2
)

// Estimator computes driving times from distance, zones and expressway alignment.
// It performs no I/O and is safe for concurrent use.
type Estimator struct {
	zones *ZoneModel
}

// NewEstimator creates an estimator. A nil model selects the default tables.
func NewEstimator(zones *ZoneModel) *Estimator {
	if zones == nil {
		zones = DefaultZoneModel()
	}
	return &Estimator{zones: zones}
}

// Zones returns the zone model in use
func (e *Estimator) Zones() *ZoneModel {
	return e.zones
}

// Estimate returns the heuristic driving time between two points
func (e *Estimator) Estimate(origin, dest Coordinate) (Result, error) {
	est, err := e.Analyze(origin, dest)
	if err != nil {
		return Result{}, err
	}
	return est.Result, nil
}

// Analyze returns the heuristic driving time along with the inputs that produced it
func (e *Estimator) Analyze(origin, dest Coordinate) (*Estimation, error) {
	if err := geo.ValidateCoordinate(origin); err != nil {
		return nil, err
	}
	if err := geo.ValidateCoordinate(dest); err != nil {
		return nil, err
	}
	est := e.analyze(origin, dest)
	return &est, nil
}

// analyze assumes both points have been validated
func (e *Estimator) analyze(origin, dest Coordinate) Estimation {
	d := geo.DistanceKm(origin, dest)
	est := Estimation{BaseSpeedKmh: baseSpeed(d)}

	originZone, originOK := e.zones.ZoneFor(origin)
	destZone, destOK := e.zones.ZoneFor(dest)
	est.SpeedFactor, est.TrafficDensity = neutralSpeedFactor, neutralTrafficDensity
	switch {
	case originOK && destOK:
		est.SpeedFactor = (originZone.SpeedFactor + destZone.SpeedFactor) / 2
		est.TrafficDensity = (originZone.TrafficDensity + destZone.TrafficDensity) / 2
	case originOK:
		est.SpeedFactor = (originZone.SpeedFactor + neutralSpeedFactor) / 2
		est.TrafficDensity = (originZone.TrafficDensity + neutralTrafficDensity) / 2
	case destOK:
		est.SpeedFactor = (destZone.SpeedFactor + neutralSpeedFactor) / 2
		est.TrafficDensity = (destZone.TrafficDensity + neutralTrafficDensity) / 2
	}
	if originOK {
		est.OriginZone = originZone.Name
	}
	if destOK {
		est.DestinationZone = destZone.Name
	}

	p := e.zones.ExpresswayAlignment(origin, dest, d)
	est.ExpresswayProbability = p
	est.ExpresswayLikely = p >= expresswayLikelyFloor
	switch {
	case est.ExpresswayLikely:
		est.RouteType = RouteTypeExpressway
	case p >= arterialFloor:
		est.RouteType = RouteTypeArterial
	default:
		est.RouteType = RouteTypeLocal
	}

	speed := est.BaseSpeedKmh * est.SpeedFactor * (1 + p*expresswayBoost)
	speed *= 1 - est.TrafficDensity*trafficDamping
	est.EffectiveSpeedKmh = geo.RoundTo(speed, 1)

	minutes := d / speed * 60
	minutes *= 1 + est.TrafficDensity*trafficLightPenalty
	if d < parkingSearchMaxKm {
		minutes *= 1 + est.TrafficDensity*parkingSearchPenalty
	}
	minutes *= roadQualityFactor * trafficMgmtFactor

	duration := int(math.Round(minutes))
	if floor := minimumMinutes(d); duration < floor {
		duration = floor
	}

	est.Result = Result{DistanceKm: d, DurationMin: duration}
	return est
}

func baseSpeed(d float64) float64 {
	switch {
	case d > 15:
		return 65
	case d > 8:
		return 55
	case d > 4:
		return 48
	case d > 2:
		return 42
	default:
		return 35
	}
}

// minimumMinutes is the floor applied to every estimate. Past 2 km it is one minute per
// km, rounded up so the integer never lands below it.
func minimumMinutes(d float64) int {
	switch {
	case d < 0.5:
		return 2
	case d < 1:
		return 2
	case d < 2:
		return 3
	default:
		return int(math.Ceil(math.Max(1, d)))
	}
}
