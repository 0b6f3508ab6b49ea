// Package geo turns coordinates into the geohash tokens the cascade
// endpoint expects.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/mmcloughlin/geohash"
)

// DefaultPrecision is the number of geohash characters produced when no
// precision is configured.
const DefaultPrecision = 12

// ErrInvalidCoordinates is returned for latitudes outside [-90, 90],
// longitudes outside [-180, 180] and NaN values.
var ErrInvalidCoordinates = errors.New("geo: invalid coordinates")

// Location is a point reported by a location source.
type Location interface {
	Latitude() float64
	Longitude() float64
}

// Point is a plain Location.
type Point struct {
	Lat float64
	Lng float64
}

// Latitude implements Location.
func (p Point) Latitude() float64 { return p.Lat }

// Longitude implements Location.
func (p Point) Longitude() float64 { return p.Lng }

var _ Location = Point{}

// Validate reports whether lat/lng describe a point on the globe.
func Validate(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinates, lat, lng)
	}
	return nil
}

// Encode returns the geohash of loc with the given number of characters.
// A precision outside 1..12 falls back to DefaultPrecision.
func Encode(loc Location, precision uint) (string, error) {
	lat, lng := loc.Latitude(), loc.Longitude()
	if err := Validate(lat, lng); err != nil {
		return "", err
	}
	if precision == 0 || precision > DefaultPrecision {
		precision = DefaultPrecision
	}
	return geohash.EncodeWithPrecision(lat, lng, precision), nil
}
