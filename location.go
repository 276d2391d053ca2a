package osmloc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// coordinateFactor is the fixed-point scaling factor between degrees and the
// stored int32 representation. 1e-7 degrees is roughly 1cm at the equator and
// matches the resolution OSM uses for node coordinates.
const coordinateFactor = 10000000

// undefinedCoordinate marks a coordinate axis as "no location recorded".
// It is outside the valid WGS84 domain (|lon| <= 180 deg -> |x| <= 1.8e9),
// so defined-ness is decidable from the stored value alone.
const undefinedCoordinate int32 = math.MaxInt32

// ErrInvalidLocation is returned when a longitude/latitude pair is outside
// the valid WGS84 domain.
var ErrInvalidLocation = errors.New("osmloc: invalid location")

// Location is a geographic coordinate held as fixed-precision integers
// (degrees times 1e7). The zero value is the valid coordinate (0, 0);
// use Undefined for "no location recorded".
type Location struct {
	x int32 // longitude * 1e7
	y int32 // latitude * 1e7
}

// Undefined returns the sentinel location that represents "no location".
func Undefined() Location {
	return Location{x: undefinedCoordinate, y: undefinedCoordinate}
}

// NewLocation builds a Location from degrees. It fails with
// ErrInvalidLocation when lon/lat are outside [-180, 180] / [-90, 90]
// or not finite.
func NewLocation(lon, lat float64) (Location, error) {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return Location{}, fmt.Errorf("%w: lon=%v lat=%v", ErrInvalidLocation, lon, lat)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return Location{}, fmt.Errorf("%w: lon=%v lat=%v", ErrInvalidLocation, lon, lat)
	}
	return Location{
		x: int32(math.Round(lon * coordinateFactor)),
		y: int32(math.Round(lat * coordinateFactor)),
	}, nil
}

// MustLocation is NewLocation but panics on invalid input. Intended for
// literals in tests and examples.
func MustLocation(lon, lat float64) Location {
	loc, err := NewLocation(lon, lat)
	if err != nil {
		panic(err)
	}
	return loc
}

// LocationFromPrecise builds a Location directly from fixed-precision
// coordinates (degrees times 1e7). No range check is performed.
func LocationFromPrecise(x, y int32) Location {
	return Location{x: x, y: y}
}

// X returns the fixed-precision longitude (degrees times 1e7).
func (l Location) X() int32 { return l.x }

// Y returns the fixed-precision latitude (degrees times 1e7).
func (l Location) Y() int32 { return l.y }

// Lon returns the longitude in degrees.
func (l Location) Lon() float64 { return float64(l.x) / coordinateFactor }

// Lat returns the latitude in degrees.
func (l Location) Lat() float64 { return float64(l.y) / coordinateFactor }

// Defined reports whether the location holds an actual coordinate rather
// than the undefined sentinel.
func (l Location) Defined() bool {
	return l.x != undefinedCoordinate && l.y != undefinedCoordinate
}

// Valid reports whether the location is defined and within the WGS84 domain.
func (l Location) Valid() bool {
	return l.x >= -180*coordinateFactor && l.x <= 180*coordinateFactor &&
		l.y >= -90*coordinateFactor && l.y <= 90*coordinateFactor
}

// Pack encodes the location into a fixed-width 64-bit value:
// longitude in the upper half, latitude in the lower half. The encoding is
// bijective over the full int32 x int32 domain, so it round-trips losslessly
// and the undefined sentinel keeps a reserved bit pattern.
func (l Location) Pack() uint64 {
	return uint64(uint32(l.x))<<32 | uint64(uint32(l.y))
}

// Unpack decodes a value produced by Pack.
func Unpack(v uint64) Location {
	return Location{
		x: int32(uint32(v >> 32)),
		y: int32(uint32(v)),
	}
}

// String renders the location as "(lon, lat)" in degrees, or "(undefined)".
func (l Location) String() string {
	if !l.Defined() {
		return "(undefined)"
	}
	return "(" + strconv.FormatFloat(l.Lon(), 'f', -1, 64) + ", " +
		strconv.FormatFloat(l.Lat(), 'f', -1, 64) + ")"
}
