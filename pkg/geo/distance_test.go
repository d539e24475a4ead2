package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm_Symmetry(t *testing.T) {
	pairs := [][2]Coordinate{
		{{Lat: 1.3521, Lng: 103.8198}, {Lat: 1.3644, Lng: 103.9915}},
		{{Lat: 1.2897, Lng: 103.8501}, {Lat: 1.4360, Lng: 103.7860}},
		{{Lat: 37.7749, Lng: -122.4194}, {Lat: 34.0522, Lng: -118.2437}},
		{{Lat: -33.8688, Lng: 151.2093}, {Lat: 51.5074, Lng: -0.1278}},
	}

	for _, p := range pairs {
		assert.Equal(t, DistanceKm(p[0], p[1]), DistanceKm(p[1], p[0]))
	}
}

func TestDistanceKm_ZeroForSamePoint(t *testing.T) {
	c := Coordinate{Lat: 1.3521, Lng: 103.8198}
	assert.Equal(t, 0.0, DistanceKm(c, c))
}

func TestDistanceKm_RoundsToOneDecimal(t *testing.T) {
	d := DistanceKm(Coordinate{Lat: 1.3521, Lng: 103.8198}, Coordinate{Lat: 1.3644, Lng: 103.9915})
	assert.Equal(t, d, math.Round(d*10)/10)
	assert.InDelta(t, 19.1, d, 0.5)
}

func antipode(c Coordinate) Coordinate {
	lng := c.Lng + 180
	if c.Lng > 0 {
		lng = c.Lng - 180
	}
	return Coordinate{Lat: -c.Lat, Lng: lng}
}

func sweep(latStep, lngStep float64) []Coordinate {
	var out []Coordinate
	for lat := -90.0; lat <= 90; lat += latStep {
		for lng := -180.0; lng <= 180; lng += lngStep {
			out = append(out, Coordinate{Lat: lat, Lng: lng})
		}
	}
	return out
}

func TestDistanceKm_AntipodalPairsAreFinite(t *testing.T) {
	halfCircumference := RoundTo(math.Pi*earthRadiusKm, 1)

	pairs := [][2]Coordinate{
		{{Lat: -88.5, Lng: 0}, {Lat: 88.5, Lng: -180}},
		{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 180}},
		{{Lat: 1.3521, Lng: 103.8198}, antipode(Coordinate{Lat: 1.3521, Lng: 103.8198})},
	}
	for lat := -89.5; lat <= 89.5; lat += 0.5 {
		a := Coordinate{Lat: lat, Lng: lat * 2}
		pairs = append(pairs, [2]Coordinate{a, antipode(a)})
	}

	for _, p := range pairs {
		d := DistanceKm(p[0], p[1])
		require.False(t, math.IsNaN(d), "%v -> %v", p[0], p[1])
		assert.InDelta(t, halfCircumference, d, 0.2, "%v -> %v", p[0], p[1])
	}
}

func TestDistanceKm_FullRangeSweep(t *testing.T) {
	maxKm := RoundTo(math.Pi*earthRadiusKm, 1)
	points := sweep(15, 30)

	for _, a := range points {
		assert.Equal(t, 0.0, DistanceKm(a, a))
		for _, b := range points {
			ab := DistanceKm(a, b)
			require.False(t, math.IsNaN(ab) || math.IsInf(ab, 0), "%v -> %v", a, b)
			assert.Equal(t, ab, DistanceKm(b, a), "%v -> %v", a, b)
			assert.GreaterOrEqual(t, ab, 0.0)
			assert.LessOrEqual(t, ab, maxKm)
		}
	}
}

func TestValidateCoordinate(t *testing.T) {
	tests := []struct {
		name    string
		coord   Coordinate
		wantErr bool
	}{
		{"valid", Coordinate{Lat: 1.35, Lng: 103.8}, false},
		{"poles and antimeridian", Coordinate{Lat: -90, Lng: 180}, false},
		{"latitude too high", Coordinate{Lat: 90.1, Lng: 0}, true},
		{"longitude too low", Coordinate{Lat: 0, Lng: -180.5}, true},
		{"nan", Coordinate{Lat: math.NaN(), Lng: 0}, true},
		{"inf", Coordinate{Lat: 0, Lng: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCoordinate(tt.coord)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidCoordinate))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRoundTo_NormalisesNegativeZero(t *testing.T) {
	r := RoundTo(-0.0001, 3)
	assert.False(t, math.Signbit(r))
	assert.Equal(t, 1.352, RoundTo(1.35209, 3))
}
