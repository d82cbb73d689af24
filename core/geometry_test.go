package core

import (
	"math"
	"testing"
)

func TestHasLineOfSight_NoObstruction(t *testing.T) {
	// Both points high and on the same side of Earth.
	posA := Vec3{X: 8000, Y: 0, Z: 0}
	posB := Vec3{X: 8000, Y: 1000, Z: 0}

	if !HasLineOfSight(posA, posB) {
		t.Errorf("expected LoS between two high points on same side of Earth")
	}
}

func TestHasLineOfSight_Obstructed(t *testing.T) {
	// The chord passes through the Earth.
	posA := Vec3{X: 7000, Y: 0, Z: 0}
	posB := Vec3{X: -7000, Y: 0, Z: 0}

	if HasLineOfSight(posA, posB) {
		t.Errorf("expected LoS to be blocked by Earth")
	}
}

func TestHasLineOfSight_GroundToZenith(t *testing.T) {
	ground := GroundTerminal{LatitudeDeg: 10, LongitudeDeg: 20}.ECEF()
	overhead := ground.Scale((EarthRadiusKm + 500) / EarthRadiusKm)
	if !HasLineOfSight(ground, overhead) {
		t.Fatalf("surface terminal should see a satellite overhead")
	}
}

func TestElevationDegrees(t *testing.T) {
	ground := GroundTerminal{}.ECEF()
	if el := ElevationDegrees(ground, Vec3{X: EarthRadiusKm + 500}); math.Abs(el-90) > 1e-9 {
		t.Fatalf("overhead elevation = %v, want 90", el)
	}
	if el := ElevationDegrees(ground, Vec3{X: EarthRadiusKm, Y: 1000}); math.Abs(el) > 1e-9 {
		t.Fatalf("tangent elevation = %v, want 0", el)
	}
	if el := ElevationDegrees(ground, Vec3{X: -EarthRadiusKm}); el >= 0 {
		t.Fatalf("antipode elevation = %v, want negative", el)
	}
}

func TestGroundTerminalECEF(t *testing.T) {
	p := GroundTerminal{LatitudeDeg: 90, AltitudeM: 1000}.ECEF()
	if math.Abs(p.Z-(EarthRadiusKm+1)) > 1e-9 || math.Abs(p.X) > 1e-9 {
		t.Fatalf("pole position = %+v", p)
	}
}

func TestElevationDegreesNearZenith(t *testing.T) {
	ground := GroundTerminal{LatitudeDeg: 10, LongitudeDeg: 20}.ECEF()
	for _, altKm := range []float64{0.001, 1, 500, 36000} {
		overhead := ground.Scale((ground.Norm() + altKm) / ground.Norm())
		if el := ElevationDegrees(ground, overhead); math.Abs(el-90) > 1e-9 {
			t.Fatalf("overhead at %v km: elevation = %v, want 90", altKm, el)
		}
	}

	equator := GroundTerminal{}.ECEF()
	if el := ElevationDegrees(equator, Vec3{X: EarthRadiusKm + 500, Y: 500}); math.Abs(el-45) > 1e-9 {
		t.Fatalf("diagonal elevation = %v, want 45", el)
	}
	if el := ElevationDegrees(equator, Vec3{X: EarthRadiusKm + 1, Y: 1e-7}); el < 89.99 {
		t.Fatalf("almost overhead elevation = %v", el)
	}
}
