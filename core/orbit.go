package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// ErrInvalidTLE is returned for two-line element sets that SGP4 cannot use.
var ErrInvalidTLE = errors.New("invalid TLE")

// Orbit gives the ECEF position (km) of a terminal at a time.
type Orbit interface {
	PositionECEF(t time.Time) (Vec3, error)
}

// SGP4Orbit propagates a satellite from a TLE.
type SGP4Orbit struct {
	sat satellite.Satellite
}

// NewSGP4Orbit parses a TLE. Lines must carry their "1 " / "2 " prefixes
// and the standard 69-column width.
func NewSGP4Orbit(line1, line2 string) (*SGP4Orbit, error) {
	line1 = strings.TrimRight(line1, " \r\n")
	line2 = strings.TrimRight(line2, " \r\n")
	if len(line1) < 69 || !strings.HasPrefix(line1, "1 ") {
		return nil, fmt.Errorf("%w: line 1 malformed", ErrInvalidTLE)
	}
	if len(line2) < 69 || !strings.HasPrefix(line2, "2 ") {
		return nil, fmt.Errorf("%w: line 2 malformed", ErrInvalidTLE)
	}
	// go-satellite exits the process on a field it cannot parse.
	if err := checkTLEFields(line1, line2); err != nil {
		return nil, err
	}
	sat := satellite.TLEToSat(line1, line2, satellite.GravityWGS72)
	if sat.Error != 0 {
		return nil, fmt.Errorf("%w: sgp4 init code %d %s", ErrInvalidTLE, sat.Error, sat.ErrorStr)
	}
	return &SGP4Orbit{sat: sat}, nil
}

// tleField is one column range and the text go-satellite parses from it.
type tleField struct {
	name  string
	text  string
	isInt bool
}

func exponentField(line string, sign, mantissa, exponent [2]int) string {
	return line[sign[0]:sign[1]] + "." + line[mantissa[0]:mantissa[1]] + "e" + line[exponent[0]:exponent[1]]
}

// checkTLEFields parses every field the propagator reads, using the same
// column ranges and whitespace handling.
func checkTLEFields(line1, line2 string) error {
	squash := func(s string) string { return strings.Replace(s, " ", "", 2) }
	fields := []tleField{
		{"catalog number", strings.TrimSpace(line1[2:7]), true},
		{"epoch year", line1[18:20], true},
		{"epoch day", line1[20:32], false},
		{"mean motion dot", squash(line1[33:43]), false},
		{"mean motion ddot", squash(exponentField(line1, [2]int{44, 45}, [2]int{45, 50}, [2]int{50, 52})), false},
		{"bstar", squash(exponentField(line1, [2]int{53, 54}, [2]int{54, 59}, [2]int{59, 61})), false},
		{"inclination", squash(line2[8:16]), false},
		{"raan", squash(line2[17:25]), false},
		{"eccentricity", "." + line2[26:33], false},
		{"argument of perigee", squash(line2[34:42]), false},
		{"mean anomaly", squash(line2[43:51]), false},
		{"mean motion", squash(line2[52:63]), false},
	}
	for _, f := range fields {
		var err error
		if f.isInt {
			_, err = strconv.ParseInt(f.text, 10, 0)
		} else {
			_, err = strconv.ParseFloat(f.text, 64)
		}
		if err != nil {
			return fmt.Errorf("%w: %s %q", ErrInvalidTLE, f.name, f.text)
		}
	}
	return nil
}

// PositionECEF propagates to t (UTC) and rotates into ECEF.
func (o *SGP4Orbit) PositionECEF(t time.Time) (Vec3, error) {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(o.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	p := Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
	if !p.IsFinite() || p.Norm() < EarthRadiusKm/2 {
		return Vec3{}, fmt.Errorf("propagate at %s: %w: degenerate state", t.Format(time.RFC3339), ErrInvalidTLE)
	}
	return p, nil
}

// FixedOrbit is a stationary ECEF position, useful for tests and
// terrestrial relays.
type FixedOrbit Vec3

// PositionECEF implements Orbit.
func (f FixedOrbit) PositionECEF(time.Time) (Vec3, error) { return Vec3(f), nil }
