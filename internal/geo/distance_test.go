package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fieldcrew/shiftpoint/internal/geo"
)

func TestDistanceMeters(t *testing.T) {
	t.Run("identical points", func(t *testing.T) {
		p := geo.Point{Latitude: 52.52, Longitude: 13.405}
		assert.Zero(t, geo.DistanceMeters(p, p))
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		a := geo.Point{Latitude: 0, Longitude: 0}
		b := geo.Point{Latitude: 1, Longitude: 0}
		// One degree of latitude is ~111.19 km on the sphere model.
		assert.InDelta(t, 111195, geo.DistanceMeters(a, b), 50)
	})

	t.Run("short urban distance", func(t *testing.T) {
		// Two points ~150m apart along a latitude line.
		a := geo.Point{Latitude: 55.7558, Longitude: 37.6173}
		b := geo.Point{Latitude: 55.7558, Longitude: 37.61969}
		assert.InDelta(t, 150, geo.DistanceMeters(a, b), 5)
	})
}

func TestWithinRadius(t *testing.T) {
	site := geo.Point{Latitude: 55.7558, Longitude: 37.6173}
	near := geo.Point{Latitude: 55.7559, Longitude: 37.6174}
	far := geo.Point{Latitude: 55.7658, Longitude: 37.6173}

	ok, d := geo.WithinRadius(site, near, 100)
	assert.True(t, ok)
	assert.Less(t, d, 100.0)

	ok, d = geo.WithinRadius(site, far, 100)
	assert.False(t, ok)
	assert.Greater(t, d, 100.0)
}
