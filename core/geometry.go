package core

import "math"

// EarthRadiusKm is the mean Earth radius used for pass geometry
// (kilometres).
const EarthRadiusKm = 6371.0

// Vec3 is an ECEF-style vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Scale returns s·v.
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// IsFinite reports whether every component is a finite number.
func (v Vec3) IsFinite() bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// GroundTerminal is a fixed optical terminal on a spherical Earth.
type GroundTerminal struct {
	LatitudeDeg  float64 `json:"latitude_deg" yaml:"latitude_deg"`
	LongitudeDeg float64 `json:"longitude_deg" yaml:"longitude_deg"`
	AltitudeM    float64 `json:"altitude_m" yaml:"altitude_m"`
}

// ECEF returns the terminal position in kilometres.
func (g GroundTerminal) ECEF() Vec3 {
	lat := g.LatitudeDeg * math.Pi / 180
	lon := g.LongitudeDeg * math.Pi / 180
	r := EarthRadiusKm + g.AltitudeM/1000
	return Vec3{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// HasLineOfSight reports whether the segment p1→p2 clears the Earth
// sphere. Positions are ECEF kilometres. Points on the surface get a small
// allowance so a ground terminal can see the sky.
func HasLineOfSight(p1, p2 Vec3) bool {
	const surfaceToleranceKm = 1e-3
	limit := (EarthRadiusKm - surfaceToleranceKm) * (EarthRadiusKm - surfaceToleranceKm)

	v := p2.Sub(p1)
	a := v.Dot(v)
	if a == 0 {
		return p1.Dot(p1) > limit
	}

	// t minimises |p1 + t·v|² on the segment.
	t := clamp(-p1.Dot(v)/a, 0, 1)
	closest := Vec3{X: p1.X + v.X*t, Y: p1.Y + v.Y*t, Z: p1.Z + v.Z*t}
	return closest.Dot(closest) > limit
}

// ElevationDegrees returns the elevation angle of the target as seen from
// the observer, in degrees. 0° = geometric horizon, 90° = overhead.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	r := observer.Norm()
	if vNorm == 0 || r == 0 {
		return 90
	}
	zenith := observer.Scale(1 / r)
	up := v.Dot(zenith)
	horizontal := v.Sub(zenith.Scale(up)).Norm()
	return math.Atan2(up, horizontal) * 180 / math.Pi
}
