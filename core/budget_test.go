package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

func TestEvaluateHugeApertureClearAir(t *testing.T) {
	cat := catalogOf(
		rec(model.CategoryTOSA, "tx", "optical_power_dbm", 0.0),
		rec(model.CategoryReceiverObjective, "obj", "aperture_mm", 20000.0, "efficiency", 1.0),
	)
	cfg := testConfig(1000)
	cfg.Channel.PointingJitterMradRMS = 0

	res := NewCalculator(DefaultTunables()).Evaluate(resolve(cat, cfg), cfg)

	assert.InDelta(t, 0.2, res.AtmosphericLossDb, 1e-12)
	assert.InDelta(t, 0, res.InsertionLossDb, 1e-12)
	assert.Less(t, res.ScintillationMarginDb, 0.01)
	assert.InDelta(t, 0, res.PointingLossDb, 1e-6)
	assert.InDelta(t, -0.2, res.ReceivedPowerDbm, 0.01)
	assert.Equal(t, BeamFromDefault, res.Beam.Origin)
}

func TestLedgerIsContinuous(t *testing.T) {
	cfg := testConfig(2500)
	set := resolve(basicCatalog(), cfg)
	res := NewCalculator(DefaultTunables()).Evaluate(set, cfg)

	require.NotEmpty(t, res.Ledger)
	assert.Equal(t, StageTransmit, res.Ledger[0].Type)
	assert.Equal(t, res.TransmitPowerDbm, res.Ledger[0].PowerInDbm)
	for i := 1; i < len(res.Ledger); i++ {
		assert.Equal(t, res.Ledger[i-1].PowerOutDbm, res.Ledger[i].PowerInDbm, "entry %d", i)
	}
	last := res.Ledger[len(res.Ledger)-1]
	assert.Equal(t, StageSensitivity, last.Type)
	assert.InDelta(t, res.ReceivedPowerDbm, last.PowerOutDbm, 1e-12)
	assert.InDelta(t, res.ReceivedPowerDbm-res.SensitivityDbm, res.MarginDb, 1e-12)

	want := res.TransmitPowerDbm - res.InsertionLossDb - res.AtmosphericLossDb -
		res.ScintillationMarginDb - res.PointingLossDb + res.GeometricGainDb
	assert.InDelta(t, want, res.ReceivedPowerDbm, 1e-9)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	cfg := testConfig(1800)
	set := resolve(basicCatalog(), cfg)
	calc := NewCalculator(DefaultTunables())
	a := calc.Evaluate(set, cfg)
	b := calc.Evaluate(set, cfg)
	assert.Equal(t, a, b)
}

func TestBeamRadiusGrowsWithDistance(t *testing.T) {
	cfg := testConfig(0)
	set := resolve(basicCatalog(), cfg)
	tun := DefaultTunables()
	prev := ComputeBeam(set, cfg, tun).RadiusM
	for _, d := range []float64{10, 100, 1000, 10000, 100000} {
		r := ComputeBeam(set, cfg.WithDistance(d), tun).RadiusM
		assert.GreaterOrEqual(t, r, prev, "distance %v", d)
		prev = r
	}
}

func TestBeamWaistFloor(t *testing.T) {
	b := NewBeamState(1e-9, 1, 1550e-9, 1e-4, BeamFromExplicitWaist)
	assert.Equal(t, 1e-4, b.WaistM)
	assert.Equal(t, b.WaistM, b.RadiusAt(0))

	b = NewBeamState(math.NaN(), 0.5, 1550e-9, 1e-4, BeamFromExplicitWaist)
	assert.Equal(t, 1e-4, b.WaistM)
	assert.Equal(t, 1.0, b.M2)
}

func TestBeamOriginPriority(t *testing.T) {
	cfg := testConfig(1000)
	tun := DefaultTunables()
	cases := []struct {
		name string
		cat  model.Catalog
		want BeamOrigin
	}{
		{"none", catalogOf(), BeamFromDefault},
		{"collimator", catalogOf(rec(model.CategoryCollimator, "c", "output_divergence_mrad", 0.5)), BeamFromCollimator},
		{"collimator without divergence", catalogOf(rec(model.CategoryCollimator, "c", "aperture_mm", 5.0)), BeamFromDiffraction},
		{"expander over collimator", catalogOf(
			rec(model.CategoryCollimator, "c", "output_divergence_mrad", 0.5),
			rec(model.CategoryBeamExpander, "x", "output_divergence_mrad", 0.1),
		), BeamFromExpander},
		{"telescope over expander", catalogOf(
			rec(model.CategoryBeamExpander, "x", "output_divergence_mrad", 0.1),
			rec(model.CategoryTxTelescope, "t", "residual_divergence_mrad", 0.05),
		), BeamFromTelescope},
		{"expanded beam wins", catalogOf(
			rec(model.CategoryTxTelescope, "t", "residual_divergence_mrad", 0.05),
			rec(model.CategoryExpandedBeam, "e", "beam_diameter_mm", 10.0),
		), BeamFromExplicitWaist},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := ComputeBeam(resolve(tc.cat, cfg), cfg, tun)
			assert.Equal(t, tc.want, b.Origin)
			assert.True(t, b.RadiusM >= b.WaistM)
		})
	}
}

func TestExpandedBeamWaistIsHalfDiameter(t *testing.T) {
	cfg := testConfig(0)
	cat := catalogOf(rec(model.CategoryExpandedBeam, "e", "beam_diameter_mm", 10.0))
	b := ComputeBeam(resolve(cat, cfg), cfg, DefaultTunables())
	assert.InDelta(t, 5e-3, b.WaistM, 1e-15)
}

func TestZeroElementArrayCouplesNothing(t *testing.T) {
	cfg := testConfig(1000)
	cat := catalogOf(
		rec(model.CategoryTOSA, "tx", "optical_power_dbm", 0.0),
		rec(model.CategoryReceiverArray, "arr-none", "count", 0.0, "sub_aperture_mm", 25.0),
	)
	res := NewCalculator(DefaultTunables()).Evaluate(resolve(cat, cfg), cfg)

	assert.Equal(t, CouplingArray, res.Coupling.Mode)
	assert.Equal(t, 0.0, res.Coupling.Fraction)
	assert.False(t, math.IsNaN(res.ReceivedPowerDbm))
	assert.False(t, math.IsInf(res.ReceivedPowerDbm, 0))
	assert.InDelta(t, -120, res.GeometricGainDb, 1e-9)
}

func TestZeroElementArrayDefersToObjective(t *testing.T) {
	cfg := testConfig(1000)
	cat := catalogOf(
		rec(model.CategoryReceiverObjective, "obj", "aperture_mm", 100.0),
		rec(model.CategoryReceiverArray, "arr-none", "count", 0.0),
	)
	res := NewCalculator(DefaultTunables()).Evaluate(resolve(cat, cfg), cfg)
	assert.Equal(t, CouplingSingleAperture, res.Coupling.Mode)
	assert.Greater(t, res.Coupling.Fraction, 0.0)
}

func TestArrayCouplingBoundedByOne(t *testing.T) {
	cfg := testConfig(10)
	cfg.Channel.PointingJitterMradRMS = 0
	arr := resolveArray(rec(model.CategoryReceiverArray, "a", "count", 16.0, "sub_aperture_mm", 50.0,
		"fill_factor", 1.0, "sampling_factor", 1.0))
	beam := NewBeamState(5e-3, 1, 1550e-9, 1e-4, BeamFromExplicitWaist).At(10)

	res := ArrayCoupling(arr, beam, cfg, DefaultTunables(), nil)
	assert.Equal(t, 16, res.Elements)
	assert.LessOrEqual(t, res.Fraction, 1.0)
	assert.Greater(t, res.Fraction, 0.0)
}

func TestMechanicalPenalty(t *testing.T) {
	p := DefaultMechanicalPenalty()
	assert.Equal(t, 1.0, p.Penalty(0, 0))
	assert.InDelta(t, 0.75, p.Penalty(5, 0), 1e-12)
	assert.InDelta(t, 0.9, p.Penalty(0, 100), 1e-12)
	assert.Equal(t, 0.7, p.Penalty(100, 1000))
}

func TestCombinerTreeLoss(t *testing.T) {
	arr := ReceiverArray{Part: Part{Selected: true, ID: "a"}, Count: 16, CombinerILDb: 3}
	comb := Combiner{Part: Part{Selected: true, ID: "c"}, BaseILDb: 0.5, PerStageILDb: 0.2, HasTree: true}
	assert.InDelta(t, 1.3, CombinerLossDb(arr, comb), 1e-12)

	assert.InDelta(t, 3, CombinerLossDb(arr, Combiner{}), 1e-12)
	assert.Equal(t, 0.0, CombinerLossDb(ReceiverArray{}, comb))
}

func TestInsertionChainOrderAndTotals(t *testing.T) {
	cat := catalogOf(
		rec(model.CategoryCollimator, "col", "il_db", 0.3),
		rec(model.CategoryIsolator, "iso", "il_db", 0.6),
		rec(model.CategoryTxTelescope, "tel", "throughput", 0.5),
		rec(model.CategoryWindow, "win", "ar_db", 0.1, "contamination_penalty_db", 0.2),
		rec(model.CategoryLensStack, "stack", "transmission", 1.0),
	)
	chain := BuildInsertionChain(resolve(cat, testConfig(0)))

	require.Len(t, chain.Transmit, 3)
	assert.Equal(t, "Launch collimator", chain.Transmit[0].Label)
	assert.Equal(t, "Optical isolator", chain.Transmit[1].Label)
	assert.InDelta(t, 3.0103, chain.Transmit[2].LossDb, 1e-4)
	// A lossless lens stack is omitted.
	require.Len(t, chain.Receive, 1)
	assert.InDelta(t, 0.3, chain.Receive[0].LossDb, 1e-12)
	assert.InDelta(t, 0.3+0.6+3.0103+0.3, chain.TotalDb(), 1e-4)
}

func TestWeatherPresetsDriveChannel(t *testing.T) {
	cfg := testConfig(2000)
	cfg.Channel.AtmosphericAlphaDbPerKm = nil
	cfg.Channel.Cn2 = nil
	set := resolve(basicCatalog(), cfg)
	calc := NewCalculator(DefaultTunables())

	for name, preset := range model.WeatherPresets {
		c := cfg
		c.Global.Weather = name
		res := calc.Evaluate(set, c)
		assert.InDelta(t, preset.AlphaDbPerKm*2, res.AtmosphericLossDb, 1e-9, name)
	}

	explicit := cfg
	explicit.Global.Weather = "moderate_fog"
	explicit.Channel.AtmosphericAlphaDbPerKm = ptr(1)
	assert.InDelta(t, 2, calc.Evaluate(set, explicit).AtmosphericLossDb, 1e-9)
}

func TestScintillationGrowsWithTurbulence(t *testing.T) {
	calm, _, _ := ScintillationMarginDb(1550e-9, 2000, 1e-15, 0.05, 2)
	rough, _, _ := ScintillationMarginDb(1550e-9, 2000, 1e-13, 0.05, 2)
	assert.Greater(t, rough, calm)

	none, rytov, avg := ScintillationMarginDb(1550e-9, 2000, 0, 0.05, 2)
	assert.Equal(t, 0.0, none)
	assert.Equal(t, 0.0, rytov)
	assert.LessOrEqual(t, avg, 1.0)
}

func TestPointingCaptureFallsWithJitter(t *testing.T) {
	still := PointingCapture(0.05, 0.1, 1000, 0)
	shaky := PointingCapture(0.05, 0.1, 1000, 0.05)
	assert.Greater(t, still, shaky)
	assert.InDelta(t, EncircledEnergy(0.05, 0.1), still, 1e-15)
	// 1000 m × 0.05 mrad is a 0.05 m offset on a 0.1 m beam: the jitter
	// factor multiplies the absolute encircled energy.
	assert.InDelta(t, EncircledEnergy(0.05, 0.1)*math.Exp(-0.5), shaky, 1e-15)
	assert.InDelta(t, -10*math.Log10(shaky), PointingLossDb(shaky), 1e-12)
	assert.GreaterOrEqual(t, PointingLossDb(0), 0.0)
}

func TestResolveFieldVariants(t *testing.T) {
	cfg := testConfig(0)
	a := resolve(catalogOf(rec(model.CategoryROSA, "r", "responsivity_A_W", 0.8)), cfg)
	b := resolve(catalogOf(rec(model.CategoryROSA, "r", "responsivity", "0.8")), cfg)
	assert.True(t, a.Detector.HasResponsivity)
	assert.Equal(t, a.Detector.ResponsivityAW, b.Detector.ResponsivityAW)

	s1 := resolve(catalogOf(rec(model.CategoryShutter, "s", "ar_db", 0.4)), cfg)
	s2 := resolve(catalogOf(rec(model.CategoryShutter, "s", "insertion_loss_db", 0.4)), cfg)
	assert.Equal(t, s1.Shutter.LossDb, s2.Shutter.LossDb)

	g := resolve(catalogOf(rec(model.CategoryGimbal, "g", "range_deg", 180.0, "resolution_mrad", 0.05)), cfg)
	assert.InDelta(t, math.Pi*1000, g.Gimbal.RangeMrad, 1e-9)
	assert.InDelta(t, 50, g.Gimbal.ResolutionUrad, 1e-9)
}

func TestSensitivityFallbacks(t *testing.T) {
	det := Detector{Sensitivity: map[float64]float64{10: -17}}
	assert.Equal(t, -17.0, SensitivityDbm(det, 10))
	assert.Equal(t, -28.0, SensitivityDbm(Detector{}, 0.1))
	assert.Equal(t, -20.0, SensitivityDbm(Detector{}, 1))
	assert.Equal(t, -18.0, SensitivityDbm(det, 25))
}
