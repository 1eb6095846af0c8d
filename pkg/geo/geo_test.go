package geo_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/comaslimpio/notification-api/pkg/geo"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name string
		lat  float64
		long float64
		want bool
	}{
		{"origin", 0, 0, true},
		{"lima", -12.046374, -77.042793, true},
		{"north pole", 90, 0, true},
		{"south pole", -90, 0, true},
		{"antimeridian east", 0, 180, true},
		{"antimeridian west", 0, -180, true},
		{"lat too high", 200, 0, false},
		{"lat too low", -90.0001, 0, false},
		{"long too high", 0, 180.0001, false},
		{"long too low", 0, -181, false},
		{"nan lat", math.NaN(), 0, false},
		{"nan long", 0, math.NaN(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, geo.ValidateCoordinates(tt.lat, tt.long))
			assert.Equal(t, tt.want, geo.Location{Lat: tt.lat, Long: tt.long}.Valid())
		})
	}
}

func TestDistanceMeters_IdenticalPoints(t *testing.T) {
	points := []geo.Location{
		{Lat: 0, Long: 0},
		{Lat: -11.9498, Long: -77.0622},
		{Lat: 89.9999, Long: 179.9999},
		{Lat: -90, Long: -180},
	}

	for _, p := range points {
		assert.Zero(t, geo.DistanceMeters(p.Lat, p.Long, p.Lat, p.Long))
		assert.Zero(t, p.DistanceTo(p))
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := geo.Location{Lat: -12.046374, Long: -77.042793}
	b := geo.Location{Lat: -12.121889, Long: -77.029670}

	assert.Equal(t, a.DistanceTo(b), b.DistanceTo(a))
}

func TestDistanceMeters_KnownFixtures(t *testing.T) {
	t.Run("neighbouring points", func(t *testing.T) {
		d := geo.DistanceMeters(-11.9498, -77.0622, -11.9500, -77.0620)
		assert.Greater(t, d, 0.0)
		assert.Less(t, d, 50.0)
	})

	t.Run("across lima", func(t *testing.T) {
		d := geo.DistanceMeters(-12.046374, -77.042793, -12.121889, -77.029670)
		assert.Greater(t, d, 8000.0)
		assert.Less(t, d, 12000.0)
	})

	t.Run("antipodal points", func(t *testing.T) {
		d := geo.DistanceMeters(0, 0, 0, 180)
		assert.InDelta(t, math.Pi*geo.EarthRadiusMeters, d, 1)
	})
}
