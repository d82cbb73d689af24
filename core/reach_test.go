package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// wideBeamCatalog diverges fast enough that a 100 mm objective loses the
// link within a few hundred metres.
func wideBeamCatalog() model.Catalog {
	return catalogOf(
		rec(model.CategoryTOSA, "tx", "optical_power_dbm", 0.0),
		rec(model.CategoryReceiverObjective, "obj", "aperture_mm", 100.0),
	)
}

// strongCatalog closes the link over any distance the sweep covers when
// there is no turbulence or jitter.
func strongCatalog() model.Catalog {
	return catalogOf(
		rec(model.CategoryTOSA, "tx", "optical_power_dbm", 10.0),
		rec(model.CategoryCollimator, "col", "output_divergence_mrad", 0.01),
		rec(model.CategoryReceiverObjective, "obj", "aperture_mm", 1000.0),
	)
}

func TestMaxReachBounded(t *testing.T) {
	cfg := testConfig(1000)
	set := resolve(wideBeamCatalog(), cfg)
	calc := NewCalculator(DefaultTunables())

	res, err := calc.ComputeMaxReach(context.Background(), set, cfg)
	require.NoError(t, err)
	assert.Equal(t, ReachBounded, res.Outcome)
	assert.Equal(t, 20000.0, res.CeilingM)
	assert.Greater(t, res.DistanceM, 0.0)
	assert.Less(t, res.DistanceM, res.CeilingM)
	assert.LessOrEqual(t, res.PostFECBER, cfg.Global.TargetBER)
	assert.Equal(t, 81+24, res.Samples)

	// Just inside passes, a little further fails.
	inside := calc.LinkBER(set, cfg.WithDistance(res.DistanceM), calc.Evaluate(set, cfg.WithDistance(res.DistanceM)))
	assert.LessOrEqual(t, inside.PostFEC, cfg.Global.TargetBER)
	far := cfg.WithDistance(res.DistanceM * 1.05)
	outside := calc.LinkBER(set, far, calc.Evaluate(set, far))
	assert.Greater(t, outside.PostFEC, cfg.Global.TargetBER)
}

func TestMaxReachZero(t *testing.T) {
	cfg := testConfig(1000)
	cat := catalogOf(
		rec(model.CategoryTOSA, "tx", "optical_power_dbm", -60.0),
		rec(model.CategoryReceiverObjective, "obj", "aperture_mm", 100.0),
	)
	res, err := NewCalculator(DefaultTunables()).ComputeMaxReach(context.Background(), resolve(cat, cfg), cfg)
	require.NoError(t, err)
	assert.Equal(t, ReachZero, res.Outcome)
	assert.Equal(t, 0.0, res.DistanceM)
	assert.Less(t, res.MarginDb, 0.0)
	assert.Greater(t, res.PostFECBER, cfg.Global.TargetBER)
}

func TestMaxReachSweepCeiling(t *testing.T) {
	cfg := testConfig(8000)
	cfg.Channel.Cn2 = ptr(0)
	cfg.Channel.PointingJitterMradRMS = 0
	res, err := NewCalculator(DefaultTunables()).ComputeMaxReach(context.Background(), resolve(strongCatalog(), cfg), cfg)
	require.NoError(t, err)
	assert.Equal(t, ReachSweepCeiling, res.Outcome)
	assert.Equal(t, 40000.0, res.CeilingM)
	assert.Equal(t, res.CeilingM, res.DistanceM)
	assert.Equal(t, 81, res.Samples)
}

func TestMaxReachIndependentOfWorkers(t *testing.T) {
	cfg := testConfig(1000)
	seqTun := DefaultTunables()
	seqTun.SweepWorkers = 1
	parTun := DefaultTunables()
	parTun.SweepWorkers = 8

	for _, cat := range []model.Catalog{wideBeamCatalog(), strongCatalog(), basicCatalog()} {
		set := resolve(cat, cfg)
		seq, err := NewCalculator(seqTun).ComputeMaxReach(context.Background(), set, cfg)
		require.NoError(t, err)
		par, err := NewCalculator(parTun).ComputeMaxReach(context.Background(), set, cfg)
		require.NoError(t, err)
		assert.Equal(t, seq, par)
	}
}

func TestMaxReachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := testConfig(1000)
	_, err := NewCalculator(DefaultTunables()).ComputeMaxReach(ctx, resolve(wideBeamCatalog(), cfg), cfg)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSweepKeepsInputOrder(t *testing.T) {
	cfg := testConfig(1000)
	set := resolve(basicCatalog(), cfg)
	distances := []float64{5000, 0, 2500, 100, 10000}

	points, err := NewCalculator(DefaultTunables()).Sweep(context.Background(), set, cfg, distances)
	require.NoError(t, err)
	require.Len(t, points, len(distances))
	for i, d := range distances {
		assert.Equal(t, d, points[i].DistanceM)
		assert.LessOrEqual(t, points[i].PostFECBER, points[i].PreFECBER)
		assert.Equal(t, points[i].PostFECBER <= cfg.Global.TargetBER, points[i].MeetsTarget)
	}
	assert.Greater(t, points[1].ReceivedPowerDbm, points[4].ReceivedPowerDbm)
}

func TestLinearDistances(t *testing.T) {
	assert.Equal(t, []float64{0, 250, 500, 750, 1000}, LinearDistances(0, 1000, 4))
	assert.Equal(t, []float64{42}, LinearDistances(42, 1000, 0))
}
