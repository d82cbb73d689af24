package core

import (
	"math"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// BeamOrigin records which launch specification fixed the beam waist.
type BeamOrigin string

const (
	BeamFromExplicitWaist BeamOrigin = "explicit_waist"
	BeamFromTelescope     BeamOrigin = "tx_telescope"
	BeamFromExpander      BeamOrigin = "beam_expander"
	BeamFromCollimator    BeamOrigin = "collimator"
	BeamFromDiffraction   BeamOrigin = "diffraction"
	BeamFromDefault       BeamOrigin = "default_divergence"
)

// BeamState is a Gaussian beam evaluated at one distance.
type BeamState struct {
	WaistM         float64
	M2             float64
	WavelengthM    float64
	RayleighRangeM float64
	DistanceM      float64
	RadiusM        float64
	// DivergenceRad is the far-field half-angle λ·M²/(π·w₀).
	DivergenceRad float64
	Origin        BeamOrigin
}

// NewBeamState builds a beam from its waist. The waist is floored at
// minWaistM and M² at 1.
func NewBeamState(waistM, m2, wavelengthM, minWaistM float64, origin BeamOrigin) BeamState {
	if m2 < 1 || math.IsNaN(m2) {
		m2 = 1
	}
	w0 := math.Max(waistM, minWaistM)
	if math.IsNaN(w0) || math.IsInf(w0, 0) {
		w0 = minWaistM
	}
	zr := math.Pi * w0 * w0 / wavelengthM
	return BeamState{
		WaistM:         w0,
		M2:             m2,
		WavelengthM:    wavelengthM,
		RayleighRangeM: zr,
		RadiusM:        w0,
		DivergenceRad:  wavelengthM * m2 / (math.Pi * w0),
		Origin:         origin,
	}
}

// RadiusAt returns w(z) = w₀·√(1+(z·M²/z_R)²). Negative z is treated as 0.
func (b BeamState) RadiusAt(z float64) float64 {
	z = math.Max(z, 0)
	x := z * b.M2 / b.RayleighRangeM
	return b.WaistM * math.Sqrt(1+x*x)
}

// At returns the beam evaluated at distance z.
func (b BeamState) At(z float64) BeamState {
	b.DistanceM = math.Max(z, 0)
	b.RadiusM = b.RadiusAt(z)
	return b
}

// ComputeBeam derives the launch waist from the transmit optics and
// evaluates the beam at the configured distance.
//
// Priority: an explicit expanded-beam diameter, then the divergence of the
// telescope, the beam expander and the launch collimator, then diffraction
// from the largest known launch aperture. With no launch optics at all the
// default divergence is used. Catalog divergences are full angles.
func ComputeBeam(set ComponentSet, cfg model.LinkConfiguration, t Tunables) BeamState {
	t.normalize()
	lambda := wavelengthM(cfg)
	m2 := set.Source.M2
	if m2 < 1 {
		m2 = t.DefaultM2
	}
	fromDivergence := func(fullMrad float64, origin BeamOrigin) BeamState {
		half := mradToRad(fullMrad) / 2
		w0 := lambda * m2 / (math.Pi * half)
		return NewBeamState(w0, m2, lambda, t.MinWaistM, origin)
	}

	var beam BeamState
	switch {
	case set.Expanded.Selected && set.Expanded.BeamDiameterMm > 0:
		beam = NewBeamState(mmToM(set.Expanded.BeamDiameterMm)/2, m2, lambda, t.MinWaistM, BeamFromExplicitWaist)
	case set.Telescope.Selected && set.Telescope.DivergenceMrad > 0:
		beam = fromDivergence(set.Telescope.DivergenceMrad, BeamFromTelescope)
	case set.Expander.Selected && set.Expander.DivergenceMrad > 0:
		beam = fromDivergence(set.Expander.DivergenceMrad, BeamFromExpander)
	case set.Launch.Selected && set.Launch.DivergenceMrad > 0:
		beam = fromDivergence(set.Launch.DivergenceMrad, BeamFromCollimator)
	case set.Launch.Selected || set.Expander.Selected || set.Telescope.Selected || set.Expanded.Selected:
		d := launchApertureMm(set, t)
		full := t.DiffractionFactor * lambda / mmToM(d) * 1e3
		beam = fromDivergence(full, BeamFromDiffraction)
	default:
		beam = fromDivergence(t.DefaultDivergenceMrad, BeamFromDefault)
	}
	return beam.At(cfg.Global.DistanceM)
}

func launchApertureMm(set ComponentSet, t Tunables) float64 {
	d := t.DefaultLaunchApertureMm
	if set.Launch.ApertureMm > 0 {
		d = set.Launch.ApertureMm
	}
	if set.LensStack.Selected {
		d = math.Max(d, set.LensStack.ApertureMm)
	}
	if set.Telescope.Selected {
		d = math.Max(d, set.Telescope.ApertureMm)
	}
	return d
}

// wavelengthM falls back to 1550 nm for configurations that skipped
// validation.
func wavelengthM(cfg model.LinkConfiguration) float64 {
	nm := cfg.Global.WavelengthNm
	if !(nm > 0) || math.IsInf(nm, 0) {
		nm = 1550
	}
	return nmToM(nm)
}
