package core

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// SweepPoint is the budget summary at one distance.
type SweepPoint struct {
	DistanceM        float64 `json:"distance_m"`
	ReceivedPowerDbm float64 `json:"received_power_dbm"`
	MarginDb         float64 `json:"margin_db"`
	BeamRadiusM      float64 `json:"beam_radius_m"`
	CouplingFraction float64 `json:"coupling_fraction"`
	PreFECBER        float64 `json:"pre_fec_ber"`
	PostFECBER       float64 `json:"post_fec_ber"`
	MeetsTarget      bool    `json:"meets_target"`
}

// Sweep evaluates the link at each distance. Points are computed in
// parallel and returned in the order of distances.
func (c *Calculator) Sweep(ctx context.Context, set ComponentSet, cfg model.LinkConfiguration, distances []float64) ([]SweepPoint, error) {
	workers := c.tunables.SweepWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	out := make([]SweepPoint, len(distances))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, d := range distances {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.sweepPoint(set, cfg, d)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Calculator) sweepPoint(set ComponentSet, cfg model.LinkConfiguration, distance float64) SweepPoint {
	at := cfg.WithDistance(distance)
	budget := c.Evaluate(set, at)
	ber := c.LinkBER(set, at, budget)
	return SweepPoint{
		DistanceM:        budget.DistanceM,
		ReceivedPowerDbm: budget.ReceivedPowerDbm,
		MarginDb:         budget.MarginDb,
		BeamRadiusM:      budget.Beam.RadiusM,
		CouplingFraction: budget.Coupling.Fraction,
		PreFECBER:        ber.PreFEC,
		PostFECBER:       ber.PostFEC,
		MeetsTarget:      ber.PostFEC <= cfg.Global.TargetBER,
	}
}

// LinearDistances returns n+1 evenly spaced distances over [from, to].
func LinearDistances(from, to float64, n int) []float64 {
	if n <= 0 {
		return []float64{from}
	}
	out := make([]float64, n+1)
	for i := range out {
		out[i] = from + (to-from)*float64(i)/float64(n)
	}
	return out
}
