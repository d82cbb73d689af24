package core

import (
	"math"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// BerPath names how a BER estimate was produced.
type BerPath string

const (
	BerPathNoiseModel BerPath = "noise_model"
	BerPathHeuristic  BerPath = "heuristic"
)

// NoiseParams are the inputs of the noise model.
type NoiseParams struct {
	ReceivedPowerDbm  float64
	BitrateGbps       float64
	Detector          Detector
	Amplifier         Amplifier
	PilotDepthPercent float64
}

// BerContext carries the budget values the heuristic fallback needs.
type BerContext struct {
	MarginDb    float64
	BitrateGbps float64
}

// NoiseBudget holds input-referred currents in amperes.
type NoiseBudget struct {
	SignalA         float64 // after saturation fold-back
	ShotA           float64
	ThermalA        float64
	ClippingA       float64
	IMDA            float64
	TotalA          float64
	SaturationScale float64 // 1 when not saturated
	BandwidthHz     float64
	OutputV         float64
}

// BerEstimate is the error rate before and after FEC. SNR is linear and is
// zero on the heuristic path, where no noise model applies.
type BerEstimate struct {
	SNR     float64
	PreFEC  float64
	PostFEC float64
	Path    BerPath
	Mapping string
	Noise   NoiseBudget
}

// NoiseParamsFor collects the noise-model inputs of a budget.
func NoiseParamsFor(set ComponentSet, cfg model.LinkConfiguration, budget LinkBudgetResult) NoiseParams {
	return NoiseParams{
		ReceivedPowerDbm:  budget.ReceivedPowerDbm,
		BitrateGbps:       cfg.Global.BitrateGbps,
		Detector:          set.Detector,
		Amplifier:         set.Amplifier,
		PilotDepthPercent: set.Pilot.DepthPercent,
	}
}

// noiseModelAvailable reports whether the primary path can run.
func noiseModelAvailable(p NoiseParams) bool {
	return p.Detector.HasResponsivity && p.Amplifier.Selected && p.BitrateGbps > 0
}

// ComputeNoise evaluates the receiver noise model. Signal current is
// R·P·M; noise is the quadrature sum of shot, amplifier input, clipping and
// third-order intermodulation currents. Photocurrent above the overload
// rating is scaled back to the rating.
func (c *Calculator) ComputeNoise(p NoiseParams) NoiseBudget {
	det := p.Detector
	amp := p.Amplifier
	gain := math.Max(det.Gain, 1)
	excess := math.Max(det.ExcessNoiseF, 1)
	zt := amp.TransimpedanceOhm
	if zt <= 0 {
		zt = c.tunables.DefaultTransimpedanceOhm
	}

	bw := c.tunables.NoiseBandwidthFactor * math.Max(p.BitrateGbps, 0) * 1e9
	if amp.BandwidthHz > 0 {
		bw = math.Min(bw, amp.BandwidthHz)
	}

	primary := det.ResponsivityAW * DbmToWatts(p.ReceivedPowerDbm)
	signal := primary * gain

	nb := NoiseBudget{SaturationScale: 1, BandwidthHz: bw}
	if det.HasOverload {
		maxSignal := det.ResponsivityAW * DbmToWatts(det.OverloadDbm) * gain
		if signal > maxSignal && signal > 0 {
			nb.SaturationScale = maxSignal / signal
		}
	}
	nb.SignalA = signal * nb.SaturationScale

	nb.ShotA = math.Sqrt(2 * ElementaryCharge * (primary + det.DarkCurrentA) * bw * gain * gain * excess)
	nb.ThermalA = math.Max(amp.InputNoiseA, 0) * math.Sqrt(bw)

	nb.OutputV = nb.SignalA * zt
	if amp.OutputSwingV > 0 && nb.OutputV > amp.OutputSwingV {
		nb.ClippingA = (nb.OutputV - amp.OutputSwingV) / math.Sqrt(3) / zt
	}
	if amp.IIP3A > 0 && p.PilotDepthPercent > 0 {
		tone := nb.SignalA * p.PilotDepthPercent / 100
		nb.IMDA = 0.75 * tone * tone * tone / (amp.IIP3A * amp.IIP3A)
	}

	nb.TotalA = math.Sqrt(nb.ShotA*nb.ShotA + nb.ThermalA*nb.ThermalA +
		nb.ClippingA*nb.ClippingA + nb.IMDA*nb.IMDA)
	return nb
}

// EstimateBER returns the pre-FEC error rate. Without responsivity or an
// amplifier it falls back to the margin heuristic.
func (c *Calculator) EstimateBER(p NoiseParams, ctx BerContext) BerEstimate {
	if !noiseModelAvailable(p) {
		ber := HeuristicBER(ctx.MarginDb, ctx.BitrateGbps)
		return BerEstimate{PreFEC: ber, PostFEC: ber, Path: BerPathHeuristic}
	}
	nb := c.ComputeNoise(p)
	snr := snrOf(nb)
	ber := clampBER(c.mapping.BER(snr))
	return BerEstimate{SNR: snr, PreFEC: ber, PostFEC: ber, Path: BerPathNoiseModel, Mapping: c.mapping.Name(), Noise: nb}
}

// EstimatePostFecBER applies a parametric FEC: the SNR is multiplied by
// 10^(g/10)/(1+overhead/100) and mapped again. On the heuristic path the
// coding gain is added to the margin instead. The post-FEC rate is never
// reported above the pre-FEC rate.
func (c *Calculator) EstimatePostFecBER(p NoiseParams, codingGainDb, overheadPct float64, ctx BerContext) BerEstimate {
	est := c.EstimateBER(p, ctx)
	switch est.Path {
	case BerPathHeuristic:
		if codingGainDb > 0 {
			est.PostFEC = HeuristicBER(ctx.MarginDb+codingGainDb, ctx.BitrateGbps)
		}
	default:
		snrFec := est.SNR * DbToLinear(codingGainDb) / (1 + math.Max(overheadPct, 0)/100)
		est.PostFEC = clampBER(c.mapping.BER(snrFec))
	}
	est.PostFEC = math.Min(est.PostFEC, est.PreFEC)
	return est
}

// LinkBER evaluates pre- and post-FEC BER for a budget using the FEC
// selected by the configuration, if any.
func (c *Calculator) LinkBER(set ComponentSet, cfg model.LinkConfiguration, budget LinkBudgetResult) BerEstimate {
	p := NoiseParamsFor(set, cfg, budget)
	ctx := BerContext{MarginDb: budget.MarginDb, BitrateGbps: cfg.Global.BitrateGbps}
	if set.FEC.Selected {
		return c.EstimatePostFecBER(p, set.FEC.CodingGainDb, set.FEC.OverheadPct, ctx)
	}
	return c.EstimateBER(p, ctx)
}

func snrOf(nb NoiseBudget) float64 {
	r := nb.SignalA / math.Max(nb.TotalA, minNoiseCurrentA)
	return r * r
}
