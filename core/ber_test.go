package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

func TestQFunction(t *testing.T) {
	assert.InDelta(t, 0.5, QFunction(0), 1e-7)
	assert.InDelta(t, 0.158655, QFunction(1), 1e-6)
	assert.InDelta(t, 1-0.158655, QFunction(-1), 1e-6)
	assert.InDelta(t, 1.349898e-3, QFunction(3), 1e-7)
	assert.Less(t, QFunction(14), 1e-40)
	assert.Equal(t, QFunction(14), QFunction(100))
	assert.InDelta(t, 1, QFunction(-100), 1e-12)
	assert.Equal(t, 0.5, QFunction(math.NaN()))

	prev := QFunction(-5)
	for x := -4.5; x <= 8; x += 0.5 {
		q := QFunction(x)
		assert.LessOrEqual(t, q, prev, "x=%v", x)
		prev = q
	}
}

func TestHeuristicBER(t *testing.T) {
	assert.InDelta(t, 1e-3, HeuristicBER(0, 1), 1e-15)
	assert.InDelta(t, 1e-4, HeuristicBER(1.5, 1), 1e-16)
	assert.InDelta(t, 1e-4, HeuristicBER(2, 10), 1e-16)
	assert.Equal(t, BERFloor, HeuristicBER(100, 1))
	assert.Equal(t, BERCeiling, HeuristicBER(-100, 1))
	assert.Equal(t, BERCeiling, HeuristicBER(math.NaN(), 1))

	assert.Equal(t, 1.2, HeuristicSlopeDbPerDecade(0.1))
	assert.Equal(t, 1.5, HeuristicSlopeDbPerDecade(1))
	assert.Equal(t, 2.0, HeuristicSlopeDbPerDecade(10))
	assert.Equal(t, 2.5, HeuristicSlopeDbPerDecade(25))
}

func TestApplyFecGain(t *testing.T) {
	for _, ber := range []float64{1e-2, 1e-5, 1e-9} {
		assert.Equal(t, ber, ApplyFecGain(ber, 0, 1))
		assert.Equal(t, ber, ApplyFecGain(ber, -3, 1))
		assert.LessOrEqual(t, ApplyFecGain(ber, 3, 1), ber)
	}
	assert.InDelta(t, 1e-5, ApplyFecGain(1e-3, 3, 1), 1e-17)

	prev := 1e-3
	for g := 0.5; g <= 10; g += 0.5 {
		post := ApplyFecGain(1e-3, g, 10)
		assert.LessOrEqual(t, post, prev, "gain %v", g)
		prev = post
	}
}

func TestEstimateBERNoisePath(t *testing.T) {
	cfg := testConfig(500)
	set := resolve(basicCatalog(), cfg)
	calc := NewCalculator(DefaultTunables())
	budget := calc.Evaluate(set, cfg)

	est := calc.LinkBER(set, cfg, budget)
	assert.Equal(t, BerPathNoiseModel, est.Path)
	assert.Equal(t, "ook_q", est.Mapping)
	assert.Greater(t, est.SNR, 0.0)
	assert.Equal(t, clampBER(QFunction(math.Sqrt(est.SNR/2))), est.PreFEC)
	assert.Equal(t, est.PreFEC, est.PostFEC, "no FEC configured")

	nb := est.Noise
	total := math.Sqrt(nb.ShotA*nb.ShotA + nb.ThermalA*nb.ThermalA + nb.ClippingA*nb.ClippingA + nb.IMDA*nb.IMDA)
	assert.InDelta(t, total, nb.TotalA, 1e-20)
	assert.InDelta(t, 0.75e9, nb.BandwidthHz, 1)
}

func TestPostFECNeverWorse(t *testing.T) {
	calc := NewCalculator(DefaultTunables())
	cfg := testConfig(0)
	cfg.Global.FECModel = "fec-rs"
	set := resolve(basicCatalog(), cfg)
	require.True(t, set.FEC.Selected)

	for _, d := range []float64{0, 1000, 3000, 6000, 12000, 30000} {
		at := cfg.WithDistance(d)
		est := calc.LinkBER(set, at, calc.Evaluate(set, at))
		assert.LessOrEqual(t, est.PostFEC, est.PreFEC, "distance %v", d)
		assert.GreaterOrEqual(t, est.PreFEC, BERFloor)
		assert.LessOrEqual(t, est.PreFEC, BERCeiling)
	}
}

func TestPostFECNonDecreasingWithDistance(t *testing.T) {
	calc := NewCalculator(DefaultTunables())
	cfg := testConfig(0)
	cfg.Global.FECModel = "fec-rs"

	withoutTIA := model.Catalog{}
	for category, records := range basicCatalog() {
		if category != model.CategoryTIA {
			withoutTIA[category] = records
		}
	}

	cases := []struct {
		name string
		cat  model.Catalog
		path BerPath
	}{
		{"noise model", basicCatalog(), BerPathNoiseModel},
		{"heuristic", withoutTIA, BerPathHeuristic},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			set := resolve(tc.cat, cfg)
			require.True(t, set.FEC.Selected)

			prev := 0.0
			for d := 0.0; d <= 40000; d += 250 {
				at := cfg.WithDistance(d)
				est := calc.LinkBER(set, at, calc.Evaluate(set, at))
				require.Equal(t, tc.path, est.Path, "distance %v", d)
				require.GreaterOrEqual(t, est.PostFEC, prev, "distance %v", d)
				prev = est.PostFEC
			}
			assert.Equal(t, BERCeiling, prev)
		})
	}
}

func TestPostFECMonotoneInCodingGain(t *testing.T) {
	calc := NewCalculator(DefaultTunables())
	cfg := testConfig(3000)
	set := resolve(basicCatalog(), cfg)
	p := NoiseParamsFor(set, cfg, calc.Evaluate(set, cfg))
	ctx := BerContext{MarginDb: 2, BitrateGbps: 1}

	prev := calc.EstimatePostFecBER(p, 0, 7, ctx).PostFEC
	for g := 1.0; g <= 10; g++ {
		post := calc.EstimatePostFecBER(p, g, 7, ctx).PostFEC
		assert.LessOrEqual(t, post, prev, "gain %v", g)
		prev = post
	}
}

func TestHeuristicFallback(t *testing.T) {
	calc := NewCalculator(DefaultTunables())
	cfg := testConfig(1000)

	// No responsivity.
	noResp := catalogOf(
		rec(model.CategoryTOSA, "tx", "optical_power_dbm", 0.0),
		rec(model.CategoryROSA, "rx"),
		rec(model.CategoryTIA, "tia", "zt_ohms", 1000.0),
	)
	set := resolve(noResp, cfg)
	budget := calc.Evaluate(set, cfg)
	est := calc.LinkBER(set, cfg, budget)
	assert.Equal(t, BerPathHeuristic, est.Path)
	assert.Equal(t, 0.0, est.SNR)
	assert.Equal(t, HeuristicBER(budget.MarginDb, 1), est.PreFEC)

	// No amplifier.
	noAmp := catalogOf(rec(model.CategoryROSA, "rx", "responsivity_a_w", 0.9))
	set = resolve(noAmp, cfg)
	est = calc.LinkBER(set, cfg, calc.Evaluate(set, cfg))
	assert.Equal(t, BerPathHeuristic, est.Path)

	// Heuristic FEC adds coding gain to the margin.
	p := NoiseParamsFor(set, cfg, budget)
	fec := calc.EstimatePostFecBER(p, 3, 7, BerContext{MarginDb: 0, BitrateGbps: 1})
	assert.InDelta(t, 1e-3, fec.PreFEC, 1e-15)
	assert.InDelta(t, 1e-5, fec.PostFEC, 1e-17)
}

func TestCustomBerMapping(t *testing.T) {
	calc := NewCalculator(DefaultTunables(), WithBerMapping(BerMappingFunc(func(float64) float64 { return 1e-6 })))
	cfg := testConfig(500)
	set := resolve(basicCatalog(), cfg)
	est := calc.LinkBER(set, cfg, calc.Evaluate(set, cfg))
	assert.Equal(t, "custom", est.Mapping)
	assert.Equal(t, 1e-6, est.PreFEC)
}

func TestNoiseSaturationAndClipping(t *testing.T) {
	calc := NewCalculator(DefaultTunables())
	det := Detector{Part: Part{Selected: true}, ResponsivityAW: 1, HasResponsivity: true, Gain: 1, ExcessNoiseF: 1,
		OverloadDbm: -10, HasOverload: true}
	amp := Amplifier{Part: Part{Selected: true}, TransimpedanceOhm: 1000, InputNoiseA: 1e-11, OutputSwingV: 0.05}

	nb := calc.ComputeNoise(NoiseParams{ReceivedPowerDbm: 0, BitrateGbps: 1, Detector: det, Amplifier: amp})
	assert.InDelta(t, 0.1, nb.SaturationScale, 1e-9)
	assert.InDelta(t, 1e-4, nb.SignalA, 1e-12)
	assert.Greater(t, nb.ClippingA, 0.0)

	quiet := calc.ComputeNoise(NoiseParams{ReceivedPowerDbm: -30, BitrateGbps: 1, Detector: det, Amplifier: amp})
	assert.Equal(t, 1.0, quiet.SaturationScale)
	assert.Equal(t, 0.0, quiet.ClippingA)
}

func TestPilotToneIntermodulation(t *testing.T) {
	calc := NewCalculator(DefaultTunables())
	det := Detector{Part: Part{Selected: true}, ResponsivityAW: 1, HasResponsivity: true, Gain: 1, ExcessNoiseF: 1}
	amp := Amplifier{Part: Part{Selected: true}, TransimpedanceOhm: 1000, IIP3A: 1e-3}

	without := calc.ComputeNoise(NoiseParams{ReceivedPowerDbm: -10, BitrateGbps: 1, Detector: det, Amplifier: amp})
	with := calc.ComputeNoise(NoiseParams{ReceivedPowerDbm: -10, BitrateGbps: 1, Detector: det, Amplifier: amp, PilotDepthPercent: 10})
	assert.Equal(t, 0.0, without.IMDA)
	assert.Greater(t, with.IMDA, 0.0)
	assert.Greater(t, with.TotalA, without.TotalA)
}
