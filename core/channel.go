package core

import (
	"math"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// ChannelEffects are the free-space losses at one distance. Scintillation
// is a statistical fade margin (a conservative allowance for a confidence
// multiplier Q), not an instantaneous loss.
type ChannelEffects struct {
	AtmosphericDb     float64
	RytovVariance     float64
	ApertureAveraging float64
	ScintillationDb   float64
	PointingCapture   float64
	PointingDb        float64
}

// AtmosphericLossDb is α·L_km.
func AtmosphericLossDb(alphaDbPerKm, distanceM float64) float64 {
	return math.Max(alphaDbPerKm, 0) * math.Max(distanceM, 0) / 1000
}

// RytovVariance is the plane-wave σ_R² = 1.23·Cn²·k^(7/6)·L^(11/6).
func RytovVariance(wavelengthM, distanceM, cn2 float64) float64 {
	if cn2 <= 0 || distanceM <= 0 {
		return 0
	}
	k := waveNumber(wavelengthM)
	return 1.23 * cn2 * math.Pow(k, 7.0/6) * math.Pow(distanceM, 11.0/6)
}

// ApertureAveragingFactor is [1 + 1.062·(D/2)²/ρ_F²]^(-7/6) with Fresnel
// length ρ_F = √(λL/2π). It is 1 for a point receiver.
func ApertureAveragingFactor(wavelengthM, distanceM, apertureDiameterM float64) float64 {
	if distanceM <= 0 || apertureDiameterM <= 0 {
		return 1
	}
	fresnel2 := wavelengthM * distanceM / (2 * math.Pi)
	r := apertureDiameterM / 2
	return math.Pow(1+1.062*r*r/fresnel2, -7.0/6)
}

// ScintillationMarginDb returns 4.343·Q·√(A·σ_R²) together with σ_R² and A.
func ScintillationMarginDb(wavelengthM, distanceM, cn2, apertureDiameterM, q float64) (marginDb, rytov, averaging float64) {
	rytov = RytovVariance(wavelengthM, distanceM, cn2)
	averaging = ApertureAveragingFactor(wavelengthM, distanceM, apertureDiameterM)
	if q <= 0 {
		q = 2
	}
	return 4.343 * q * math.Sqrt(averaging*rytov), rytov, averaging
}

// EncircledEnergy is the fraction of a Gaussian beam of radius w inside a
// centred circle of radius a: 1 − exp(−2a²/w²).
func EncircledEnergy(apertureRadiusM, beamRadiusM float64) float64 {
	if apertureRadiusM <= 0 {
		return 0
	}
	w := math.Max(beamRadiusM, minBeamRadiusM)
	return 1 - math.Exp(-2*apertureRadiusM*apertureRadiusM/(w*w))
}

// PointingCapture combines the encircled energy within the aperture with
// the jitter penalty exp(−2(σ_lat/w)²), σ_lat = L·jitter.
func PointingCapture(apertureRadiusM, beamRadiusM, distanceM, jitterMradRMS float64) float64 {
	w := math.Max(beamRadiusM, minBeamRadiusM)
	lateral := math.Max(distanceM, 0) * mradToRad(math.Max(jitterMradRMS, 0))
	return EncircledEnergy(apertureRadiusM, w) * math.Exp(-2*(lateral/w)*(lateral/w))
}

// PointingLossDb is −10·log₁₀ of the capture fraction, floored.
func PointingLossDb(capture float64) float64 {
	return -10 * math.Log10(math.Max(capture, minCaptureFraction))
}

// ComputeChannel evaluates all channel effects for a beam already
// propagated to the configured distance.
func ComputeChannel(cfg model.LinkConfiguration, beam BeamState, rxApertureDiameterM float64, t Tunables) ChannelEffects {
	t.normalize()
	L := math.Max(cfg.Global.DistanceM, 0)
	lambda := wavelengthM(cfg)

	var ch ChannelEffects
	ch.AtmosphericDb = AtmosphericLossDb(cfg.AlphaDbPerKm(), L)
	ch.ScintillationDb, ch.RytovVariance, ch.ApertureAveraging =
		ScintillationMarginDb(lambda, L, cfg.Cn2(), rxApertureDiameterM, t.ScintillationQ)
	ch.PointingCapture = PointingCapture(rxApertureDiameterM/2, beam.RadiusM, L, cfg.Channel.PointingJitterMradRMS)
	ch.PointingDb = PointingLossDb(ch.PointingCapture)
	return ch
}
