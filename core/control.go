package core

import (
	"math"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// ControlRequirement summarizes what the pointing system must achieve.
//
// The bandwidth fields and GreenwoodHz depend on turbulence and wind, so
// EstimateControlRequirements leaves them zero. Calculator.EstimateControl
// fills them from ActuatorBandwidthTargets; callers holding their own
// targets can use WithBandwidth.
type ControlRequirement struct {
	RequiredSigmaMrad float64
	FastBandwidthHz   float64 // fine actuator (FSM)
	CoarseBandwidthHz float64 // coarse actuator (gimbal)
	GreenwoodHz       float64
	ResolutionUrad    float64
	RangeMrad         float64
	LossBudgetDb      float64
}

// BandwidthTargets are actuator bandwidths derived from the Greenwood frequency.
type BandwidthTargets struct {
	GreenwoodHz       float64
	CoarseBandwidthHz float64
	FastBandwidthHz   float64
}

// PsdResidual is the closed-loop residual jitter of a two-band PSD.
type PsdResidual struct {
	SigmaMrad       float64
	ResidualVarLow  float64 // mrad²
	ResidualVarHigh float64 // mrad²
}

// ControlReport bundles the control outputs of one evaluation.
type ControlReport struct {
	Requirement ControlRequirement
	Residual    PsdResidual
}

// EstimateControlRequirements inverts the pointing-loss law
// exp(−2(Δ/w)²) for a loss budget (default 1 dB) to get the tolerable
// lateral deviation Δ, and converts it to an angular sigma at distance.
// Resolution is kept at a fifth of that sigma (at least 1 µrad) and the
// range at five times the jitter (at least 2 mrad). FastBandwidthHz,
// CoarseBandwidthHz and GreenwoodHz are always zero in the result.
func EstimateControlRequirements(distanceM, beamRadiusM, jitterMradRMS, lossBudgetDb float64) ControlRequirement {
	t := DefaultTunables()
	return estimateControl(distanceM, beamRadiusM, jitterMradRMS, lossBudgetDb, t)
}

func estimateControl(distanceM, beamRadiusM, jitterMradRMS, lossBudgetDb float64, t Tunables) ControlRequirement {
	if !(lossBudgetDb > 0) {
		lossBudgetDb = t.PointingLossBudgetDb
	}
	w := math.Max(beamRadiusM, 1e-6)
	lossLin := math.Max(DbToLinear(-lossBudgetDb), 1e-6)
	delta := w * math.Sqrt(-math.Log(lossLin)/2)
	sigma := delta / math.Max(distanceM, 1e-6) * 1000

	return ControlRequirement{
		RequiredSigmaMrad: sigma,
		ResolutionUrad:    math.Max(1, sigma*1000*t.ResolutionFraction),
		RangeMrad:         math.Max(2, math.Max(jitterMradRMS, 0)*t.RangeJitterMultiple),
		LossBudgetDb:      lossBudgetDb,
	}
}

// WithBandwidth returns a copy carrying actuator bandwidth targets.
func (r ControlRequirement) WithBandwidth(b BandwidthTargets) ControlRequirement {
	r.GreenwoodHz = b.GreenwoodHz
	r.CoarseBandwidthHz = b.CoarseBandwidthHz
	r.FastBandwidthHz = b.FastBandwidthHz
	return r
}

// GreenwoodFrequencyHz is f_G = factor·v/r₀ with Fried parameter
// r₀ = (0.423·k²·Cn²·L)^(−3/5). It is 0 without turbulence or wind.
func GreenwoodFrequencyHz(wavelengthM, distanceM, cn2, windMps, factor float64) float64 {
	if cn2 <= 0 || windMps <= 0 {
		return 0
	}
	k := waveNumber(wavelengthM)
	denom := 0.423 * k * k * cn2 * math.Max(distanceM, 1e-3)
	r0 := math.Pow(denom, -3.0/5)
	return factor * windMps / math.Max(r0, 1e-6)
}

// ActuatorBandwidthTargets scales the Greenwood frequency into coarse and
// fast actuator bandwidths, rounded up to whole hertz.
func ActuatorBandwidthTargets(wavelengthM, distanceM, cn2, windMps float64, t Tunables) BandwidthTargets {
	t.normalize()
	fg := GreenwoodFrequencyHz(wavelengthM, distanceM, cn2, windMps, t.GreenwoodFactor)
	return BandwidthTargets{
		GreenwoodHz:       fg,
		CoarseBandwidthHz: math.Ceil(fg * t.CoarseBandwidthFactor),
		FastBandwidthHz:   math.Ceil(fg * t.FastBandwidthFactor),
	}
}

// EstimateResidualPointingFromPsd integrates a two-band white jitter PSD
// (mrad²/Hz) over [0, split] and [split, max] and attenuates each band by
// the first-order residual f/(f+bw) of its actuator: the coarse actuator
// for the low band, the fine actuator for the high band.
func EstimateResidualPointingFromPsd(psdLow, psdHigh, splitHz, maxHz, coarseBwHz, fineBwHz float64) PsdResidual {
	sLow := math.Max(psdLow, 0)
	sHigh := math.Max(psdHigh, 0)
	split := math.Max(splitHz, 1)
	fmax := maxHz
	if !(fmax > 0) {
		fmax = 1000
	}
	fmax = math.Max(fmax, split)

	varLow := sLow * split
	varHigh := sHigh * (fmax - split)

	attLow := 1.0
	if coarseBwHz > 0 {
		attLow = split / (split + coarseBwHz)
	}
	attHigh := 1.0
	if fineBwHz > 0 {
		width := fmax - split
		attHigh = width / (width + fineBwHz)
	}
	res := PsdResidual{
		ResidualVarLow:  varLow * attLow,
		ResidualVarHigh: varHigh * attHigh,
	}
	res.SigmaMrad = math.Sqrt(math.Max(res.ResidualVarLow+res.ResidualVarHigh, 0))
	return res
}

// EstimateControl computes the control requirement at the configured
// distance, including Greenwood-based bandwidths and the residual jitter
// the targets leave from the configured PSD.
func (c *Calculator) EstimateControl(cfg model.LinkConfiguration, beam BeamState) ControlReport {
	t := c.tunables
	L := math.Max(cfg.Global.DistanceM, 0)
	req := estimateControl(L, beam.RadiusM, cfg.Channel.PointingJitterMradRMS, t.PointingLossBudgetDb, t)
	bw := ActuatorBandwidthTargets(wavelengthM(cfg), L, cfg.Cn2(), cfg.Channel.WindMps, t)
	req = req.WithBandwidth(bw)

	ch := cfg.Channel
	res := EstimateResidualPointingFromPsd(ch.PSDLowMrad2Hz, ch.PSDHighMrad2Hz, ch.PSDSplitHz, ch.JitterMaxHz,
		bw.CoarseBandwidthHz, bw.FastBandwidthHz)
	return ControlReport{Requirement: req, Residual: res}
}
