package core

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// ReachOutcome distinguishes how a max-reach search ended.
type ReachOutcome string

const (
	// ReachZero means the target BER fails already at distance 0.
	ReachZero ReachOutcome = "zero-reach"
	// ReachBounded means a compliant/non-compliant transition was bisected.
	ReachBounded ReachOutcome = "bounded"
	// ReachSweepCeiling means nothing failed within the swept range; the
	// distance is the sweep ceiling, a lower bound rather than a proven limit.
	ReachSweepCeiling ReachOutcome = "sweep-ceiling"
)

// MaxReachResult is the BER-limited reach of a link.
type MaxReachResult struct {
	DistanceM  float64
	Outcome    ReachOutcome
	CeilingM   float64
	TargetBER  float64
	MarginDb   float64 // at DistanceM
	PostFECBER float64 // at DistanceM
	Samples    int     // evaluator calls made
}

type reachSample struct {
	distance float64
	ok       bool
	margin   float64
	post     float64
}

// ComputeMaxReach searches for the largest distance at which post-FEC BER
// stays at or below the configured target. A uniform sweep over
// [0, max(5·L, 20 km)] brackets the transition and bisection refines it.
// The sweep runs in parallel; results are read in distance order so the
// answer does not depend on scheduling. Post-FEC BER must be monotone in
// distance for the result to be meaningful; this is not checked.
//
// The only error is ctx cancellation.
func (c *Calculator) ComputeMaxReach(ctx context.Context, set ComponentSet, cfg model.LinkConfiguration) (MaxReachResult, error) {
	t := c.tunables
	target := cfg.Global.TargetBER
	ceiling := math.Max(t.ReachCeilingFactor*math.Max(cfg.Global.DistanceM, 1), t.ReachMinCeilingM)
	steps := t.ReachSweepSteps

	distances := make([]float64, steps+1)
	for i := range distances {
		distances[i] = ceiling * float64(i) / float64(steps)
	}
	samples, err := c.sampleParallel(ctx, set, cfg, distances, t.SweepWorkers)
	if err != nil {
		return MaxReachResult{}, err
	}

	res := MaxReachResult{CeilingM: ceiling, TargetBER: target, Samples: len(samples)}
	if !samples[0].ok {
		res.Outcome = ReachZero
		res.MarginDb, res.PostFECBER = samples[0].margin, samples[0].post
		return res, nil
	}

	firstBad := -1
	for i, s := range samples {
		if !s.ok {
			firstBad = i
			break
		}
	}
	if firstBad < 0 {
		last := samples[len(samples)-1]
		res.DistanceM, res.Outcome = ceiling, ReachSweepCeiling
		res.MarginDb, res.PostFECBER = last.margin, last.post
		return res, nil
	}

	good := samples[firstBad-1]
	lo, hi := good.distance, samples[firstBad].distance
	for range t.ReachBisections {
		if err := ctx.Err(); err != nil {
			return MaxReachResult{}, err
		}
		mid := 0.5 * (lo + hi)
		s := c.sample(set, cfg, mid, target)
		res.Samples++
		if s.ok {
			lo, good = mid, s
		} else {
			hi = mid
		}
	}
	res.DistanceM, res.Outcome = lo, ReachBounded
	res.MarginDb, res.PostFECBER = good.margin, good.post
	return res, nil
}

func (c *Calculator) sample(set ComponentSet, cfg model.LinkConfiguration, distance, target float64) reachSample {
	at := cfg.WithDistance(distance)
	budget := c.Evaluate(set, at)
	ber := c.LinkBER(set, at, budget)
	return reachSample{distance: distance, ok: ber.PostFEC <= target, margin: budget.MarginDb, post: ber.PostFEC}
}

func (c *Calculator) sampleParallel(ctx context.Context, set ComponentSet, cfg model.LinkConfiguration, distances []float64, workers int) ([]reachSample, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]reachSample, len(distances))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range distances {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.sample(set, cfg, d, cfg.Global.TargetBER)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
