package core

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/fsoc-linkbudget/kb"
	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

type fakeMetrics struct {
	mu         sync.Mutex
	operations []string
	paths      []string
	marginDb   float64
	outcome    string
	reachM     float64
	fallbacks  int
}

func (m *fakeMetrics) ObserveOperation(op, path string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operations = append(m.operations, op)
	m.paths = append(m.paths, path)
}

func (m *fakeMetrics) SetLinkState(marginDb, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marginDb = marginDb
}

func (m *fakeMetrics) SetMaxReach(outcome string, distanceM float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcome = outcome
	m.reachM = distanceM
}

func (m *fakeMetrics) IncBerFallback() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks++
}

func knowledgeBaseOf(t *testing.T, cat model.Catalog) *kb.KnowledgeBase {
	t.Helper()
	base := kb.NewKnowledgeBase()
	for _, records := range cat {
		for _, r := range records {
			require.NoError(t, base.AddRecord(r))
		}
	}
	return base
}

func TestServiceEvaluate(t *testing.T) {
	metrics := &fakeMetrics{}
	svc := NewLinkService(knowledgeBaseOf(t, basicCatalog()), WithMetrics(metrics))
	cfg := testConfig(500)

	report, err := svc.Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEmpty(t, report.EvaluationID)
	assert.Equal(t, cfg, report.Config)
	assert.Equal(t, 500.0, report.Budget.DistanceM)
	assert.Equal(t, BerPathNoiseModel, report.BER.Path)
	assert.LessOrEqual(t, report.BER.PostFEC, report.BER.PreFEC)

	// Same answer as the bare calculator.
	set := resolve(basicCatalog(), cfg)
	direct := svc.Calculator().Evaluate(set, cfg)
	assert.Equal(t, direct.ReceivedPowerDbm, report.Budget.ReceivedPowerDbm)

	assert.Equal(t, []string{"evaluate"}, metrics.operations)
	assert.Equal(t, []string{string(BerPathNoiseModel)}, metrics.paths)
	assert.Equal(t, report.Budget.MarginDb, metrics.marginDb)
	assert.Zero(t, metrics.fallbacks)
}

func TestServiceEvaluateIDsAreUnique(t *testing.T) {
	svc := NewLinkService(knowledgeBaseOf(t, basicCatalog()))
	a, err := svc.Evaluate(context.Background(), testConfig(500))
	require.NoError(t, err)
	b, err := svc.Evaluate(context.Background(), testConfig(500))
	require.NoError(t, err)
	assert.NotEqual(t, a.EvaluationID, b.EvaluationID)
}

func TestServiceWarnsOnMissingFEC(t *testing.T) {
	metrics := &fakeMetrics{}
	svc := NewLinkService(knowledgeBaseOf(t, wideBeamCatalog()), WithMetrics(metrics))
	cfg := testConfig(200)
	cfg.Global.FECModel = "ldpc-missing"

	report, err := svc.Evaluate(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, warnCodes(report.Warnings)[WarnFECNotFound])
	assert.Equal(t, BerPathHeuristic, report.BER.Path)
	assert.Equal(t, report.BER.PreFEC, report.BER.PostFEC)
	assert.Equal(t, 1, metrics.fallbacks)
}

func TestServiceRejectsInvalidConfig(t *testing.T) {
	svc := NewLinkService(knowledgeBaseOf(t, basicCatalog()))

	bad := []func(*model.LinkConfiguration){
		func(c *model.LinkConfiguration) { c.Global.BitrateGbps = 0 },
		func(c *model.LinkConfiguration) { c.Global.TargetBER = 1 },
		func(c *model.LinkConfiguration) { c.Global.DistanceM = -1 },
		func(c *model.LinkConfiguration) { c.Global.Weather = "sandstorm" },
		func(c *model.LinkConfiguration) { c.Channel.Cn2 = ptr(math.Inf(1)) },
	}
	for i, mutate := range bad {
		cfg := testConfig(100)
		mutate(&cfg)
		_, err := svc.Evaluate(context.Background(), cfg)
		assert.ErrorIs(t, err, model.ErrInvalidConfig, "case %d", i)
	}
}

func TestServiceWithoutCatalog(t *testing.T) {
	svc := NewLinkService(nil)
	_, err := svc.Evaluate(context.Background(), testConfig(100))
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestServiceMaxReachRecordsOutcome(t *testing.T) {
	metrics := &fakeMetrics{}
	svc := NewLinkService(knowledgeBaseOf(t, wideBeamCatalog()), WithMetrics(metrics))

	res, err := svc.MaxReach(context.Background(), testConfig(1000))
	require.NoError(t, err)
	assert.Equal(t, ReachBounded, res.Outcome)
	assert.Equal(t, string(ReachBounded), metrics.outcome)
	assert.Equal(t, res.DistanceM, metrics.reachM)
	assert.Equal(t, []string{"max_reach"}, metrics.operations)
}

func TestServiceSweepValidatesDistances(t *testing.T) {
	svc := NewLinkService(knowledgeBaseOf(t, basicCatalog()))
	cfg := testConfig(100)

	for _, d := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := svc.Sweep(context.Background(), cfg, []float64{0, d})
		assert.ErrorIs(t, err, ErrInvalidRequest, "distance %v", d)
	}

	points, err := svc.Sweep(context.Background(), cfg, []float64{0, 1000})
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestServicePassValidation(t *testing.T) {
	svc := NewLinkService(knowledgeBaseOf(t, basicCatalog()))
	cfg := testConfig(0)

	_, err := svc.Pass(context.Background(), cfg, PassRequest{TLELine1: "1 x", TLELine2: "2 y", Step: time.Second})
	require.ErrorIs(t, err, ErrInvalidTLE)

	_, err = svc.Pass(context.Background(), cfg, PassRequest{Duration: time.Minute})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestServicePassOverISSGroundTrack(t *testing.T) {
	metrics := &fakeMetrics{}
	svc := NewLinkService(knowledgeBaseOf(t, basicCatalog()), WithMetrics(metrics))
	obs := &recordingObserver{}

	res, err := svc.Pass(context.Background(), testConfig(0), PassRequest{
		TLELine1: "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990",
		TLELine2: "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760",
		Start:    time.Date(2021, 10, 2, 14, 0, 0, 0, time.UTC),
		Duration: 10 * time.Minute,
		Step:     time.Minute,
		Observer: obs,
	})
	require.NoError(t, err)
	assert.Len(t, res.Samples, 11)
	assert.Equal(t, 11, obs.samples)
	assert.LessOrEqual(t, res.LinkUpSamples, res.VisibleSamples)
	assert.Equal(t, []string{"pass"}, metrics.operations)
}
