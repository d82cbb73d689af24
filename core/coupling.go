package core

import (
	"math"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// Coupling modes.
const (
	CouplingSingleAperture = "single_aperture"
	CouplingArray          = "array"
)

// MechanicalPenaltyModel maps the mechanical tolerances of a receiver array
// to a multiplicative capture penalty in (0, 1].
type MechanicalPenaltyModel interface {
	Penalty(tiltStdMrad, flatnessUmRMS float64) float64
}

// LinearMechanicalPenalty is an uncited heuristic:
//
//	max(Floor, 1 − TiltCoefficient·tilt/TiltReferenceMrad − FlatnessCoefficient·flatness/FlatnessReferenceUm)
type LinearMechanicalPenalty struct {
	Floor               float64 `yaml:"floor" json:"floor"`
	TiltCoefficient     float64 `yaml:"tilt_coefficient" json:"tilt_coefficient"`
	TiltReferenceMrad   float64 `yaml:"tilt_reference_mrad" json:"tilt_reference_mrad"`
	FlatnessCoefficient float64 `yaml:"flatness_coefficient" json:"flatness_coefficient"`
	FlatnessReferenceUm float64 `yaml:"flatness_reference_um" json:"flatness_reference_um"`
}

// DefaultMechanicalPenalty returns the reference heuristic: floor 0.7,
// −0.5 per 10 mrad of tilt, −0.1 per 100 µm RMS of flatness error.
func DefaultMechanicalPenalty() LinearMechanicalPenalty {
	return LinearMechanicalPenalty{
		Floor:               0.7,
		TiltCoefficient:     0.5,
		TiltReferenceMrad:   10,
		FlatnessCoefficient: 0.1,
		FlatnessReferenceUm: 100,
	}
}

func (p *LinearMechanicalPenalty) normalize() {
	if *p == (LinearMechanicalPenalty{}) {
		*p = DefaultMechanicalPenalty()
		return
	}
	def := DefaultMechanicalPenalty()
	if p.TiltReferenceMrad <= 0 {
		p.TiltReferenceMrad = def.TiltReferenceMrad
	}
	if p.FlatnessReferenceUm <= 0 {
		p.FlatnessReferenceUm = def.FlatnessReferenceUm
	}
	p.Floor = clamp(p.Floor, minCouplingLinear, 1)
}

// Penalty implements MechanicalPenaltyModel.
func (p LinearMechanicalPenalty) Penalty(tiltStdMrad, flatnessUmRMS float64) float64 {
	p.normalize()
	v := 1 - p.TiltCoefficient*math.Max(tiltStdMrad, 0)/p.TiltReferenceMrad -
		p.FlatnessCoefficient*math.Max(flatnessUmRMS, 0)/p.FlatnessReferenceUm
	return clamp(v, p.Floor, 1)
}

// CouplingResult is the fraction of beam power delivered by the receive
// aperture(s).
type CouplingResult struct {
	Mode       string
	Fraction   float64
	GainDb     float64 // 10·log₁₀(Fraction), floored; usually negative
	Captured   float64 // geometric capture before efficiency and penalties
	Efficiency float64
	AoAFactor  float64
	Mechanical float64
	Elements   int
}

// usesArray reports whether capture is modelled by the receiver array. A
// zero-element array only takes over when no objective is selected.
func usesArray(set ComponentSet) bool {
	if !set.Array.Selected {
		return false
	}
	return set.Array.Count > 0 || !set.Objective.Selected
}

// CaptureApertureDiameterM is the diameter used for aperture averaging and
// pointing capture.
func CaptureApertureDiameterM(set ComponentSet, t Tunables) float64 {
	t.normalize()
	if usesArray(set) {
		if set.Array.Count == 0 {
			return 0
		}
		d := set.Array.EnvelopeMm
		if d <= 0 {
			d = set.Array.SubApertureMm
		}
		return mmToM(d)
	}
	if set.Objective.Selected && set.Objective.ApertureMm > 0 {
		return mmToM(set.Objective.ApertureMm)
	}
	return mmToM(t.DefaultRxApertureMm)
}

// SingleApertureCoupling is efficiency·(EE(a) − ε²·EE(ε·a)) for a circular
// aperture of radius a with central obscuration ratio ε.
func SingleApertureCoupling(obj Objective, beamRadiusM float64, t Tunables) CouplingResult {
	t.normalize()
	apertureMm := t.DefaultRxApertureMm
	eff := 1.0
	obsc := 0.0
	if obj.Selected {
		if obj.ApertureMm > 0 {
			apertureMm = obj.ApertureMm
		}
		eff = clamp(obj.Efficiency, 0, 1)
		obsc = clamp(obj.ObscurationRatio, 0, 1)
	}
	a := mmToM(apertureMm) / 2
	captured := EncircledEnergy(a, beamRadiusM) - obsc*obsc*EncircledEnergy(obsc*a, beamRadiusM)
	captured = clamp(captured, 0, 1)
	frac := captured * eff
	return CouplingResult{
		Mode:       CouplingSingleAperture,
		Fraction:   frac,
		GainDb:     LinearToDb(frac, minCouplingLinear),
		Captured:   captured,
		Efficiency: eff,
		AoAFactor:  1,
		Mechanical: 1,
		Elements:   1,
	}
}

// ArrayCoupling sums per-element capture over the array grid, applies fill
// and sampling factors (capped at 1), the angle-of-arrival factor cos(θ)^k,
// the wavelength-specific efficiency and the mechanical penalty.
func ArrayCoupling(arr ReceiverArray, beam BeamState, cfg model.LinkConfiguration, t Tunables, mech MechanicalPenaltyModel) CouplingResult {
	t.normalize()
	if mech == nil {
		mech = t.Mechanical
	}
	res := CouplingResult{Mode: CouplingArray}
	if arr.Count <= 0 {
		res.GainDb = LinearToDb(0, minCouplingLinear)
		return res
	}

	w := math.Max(beam.RadiusM, minBeamRadiusM)
	a := mmToM(arr.SubApertureMm) / 2
	pitch := mmToM(arr.PitchMm)
	L := math.Max(cfg.Global.DistanceM, 0)
	beamDx := L * mradToRad(arr.OffsetMrad)

	rows, cols := arr.GridRows, arr.GridCols
	ee := EncircledEnergy(a, w)
	var sum float64
	n := 0
	for r := 0; r < rows && n < arr.Count; r++ {
		for c := 0; c < cols && n < arr.Count; c++ {
			x := (float64(c) - float64(cols-1)/2) * pitch
			y := (float64(r) - float64(rows-1)/2) * pitch
			dx := x - beamDx
			d2 := dx*dx + y*y
			sum += ee * math.Exp(-2*d2/(w*w))
			n++
		}
	}
	captured := math.Min(sum*arr.FillFactor*arr.SamplingFactor, 1)

	theta := mradToRad(math.Max(cfg.Channel.PointingJitterMradRMS, 0)) + mradToRad(arr.AoAExtraMrad)
	theta = math.Min(theta, math.Pi/2)
	aoa := math.Pow(math.Cos(theta), arr.AoAK)

	eff := arr.Efficiency1550
	if math.Abs(cfg.Global.WavelengthNm-t.AltEfficiencyNm) < t.AltEfficiencyWindowNm {
		eff = arr.Efficiency1310
	}
	eff = clamp(eff, 0, 1)
	pen := mech.Penalty(arr.TiltStdMrad, arr.FlatnessUmRMS)

	res.Captured = captured
	res.Efficiency = eff
	res.AoAFactor = aoa
	res.Mechanical = pen
	res.Elements = n
	res.Fraction = clamp(captured*eff*aoa*pen, 0, 1)
	res.GainDb = LinearToDb(res.Fraction, minCouplingLinear)
	return res
}

// ComputeCoupling dispatches to the array or single-aperture model.
func ComputeCoupling(set ComponentSet, beam BeamState, cfg model.LinkConfiguration, t Tunables, mech MechanicalPenaltyModel) CouplingResult {
	if usesArray(set) {
		return ArrayCoupling(set.Array, beam, cfg, t, mech)
	}
	return SingleApertureCoupling(set.Objective, beam.RadiusM, t)
}
