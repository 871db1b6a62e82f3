// Package geofence classifies GPS readings against the single authorized
// zone. The validator is pure: it holds the immutable zone configuration and
// has no other state, so it is safe for concurrent use.
package geofence

import (
	"math"

	dErrors "rollcall/pkg/domain-errors"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Coordinate is a GPS reading.
// Invariant: latitude in [-90, 90], longitude in [-180, 180], and the pair
// (0, 0) is treated as the "unset" sentinel many devices emit when they have
// no fix, never a legitimate reading.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the coordinate ranges and rejects the (0,0) sentinel.
//
// Errors: CodeValidation; the message names the failing component.
func (c Coordinate) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return dErrors.Newf(dErrors.CodeValidation, "latitude %.6f out of range [-90, 90]", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return dErrors.Newf(dErrors.CodeValidation, "longitude %.6f out of range [-180, 180]", c.Lng)
	}
	if c.Lat == 0 && c.Lng == 0 {
		return dErrors.New(dErrors.CodeValidation, "coordinates (0, 0) indicate a missing GPS fix")
	}
	return nil
}

// IsWellFormed reports whether the coordinate would pass Validate.
func (c Coordinate) IsWellFormed() bool {
	return c.Validate() == nil
}

// Zone is the authorized site: a center point plus a tolerance radius in
// kilometers. Built once from configuration; immutable thereafter.
type Zone struct {
	Center      Coordinate
	ToleranceKm float64
}

// Result is the outcome of classifying a point against the zone. DistanceKm
// is always populated so rejections can carry the measured distance.
type Result struct {
	Inside     bool
	DistanceKm float64
}

// Validator classifies points against its configured zone.
type Validator struct {
	zone Zone
}

// New constructs a validator for the given zone.
//
// Errors: CodeValidation when the zone center is ill-formed or the tolerance
// is not positive; a misconfigured zone must fail at startup, not per request.
func New(zone Zone) (*Validator, error) {
	if err := zone.Center.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "zone center")
	}
	if zone.ToleranceKm <= 0 {
		return nil, dErrors.Newf(dErrors.CodeValidation, "zone tolerance must be positive, got %.3f km", zone.ToleranceKm)
	}
	return &Validator{zone: zone}, nil
}

// Zone returns the configured zone.
func (v *Validator) Zone() Zone { return v.zone }

// Classify reports whether point lies within the zone's tolerance radius.
// The boundary is closed: a point exactly ToleranceKm away is inside.
//
// Errors: CodeValidation when point is ill-formed; no distance is computed.
func (v *Validator) Classify(point Coordinate) (Result, error) {
	if err := point.Validate(); err != nil {
		return Result{}, err
	}
	d := DistanceKm(point, v.zone.Center)
	return Result{Inside: d <= v.zone.ToleranceKm, DistanceKm: d}, nil
}

// DistanceKm computes the great-circle distance between two coordinates using
// the haversine formula. Symmetric, and zero iff a == b.
func DistanceKm(a, b Coordinate) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	rLat1 := radians(a.Lat)
	rLat2 := radians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
