package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
	"github.com/signalsfoundry/fsoc-linkbudget/timectrl"
)

// PassSample is the link state at one step of a pass.
type PassSample struct {
	Time             time.Time `json:"time"`
	SlantRangeM      float64   `json:"slant_range_m"`
	ElevationDeg     float64   `json:"elevation_deg"`
	Visible          bool      `json:"visible"`
	ReceivedPowerDbm float64   `json:"received_power_dbm,omitempty"`
	MarginDb         float64   `json:"margin_db,omitempty"`
	PostFECBER       float64   `json:"post_fec_ber,omitempty"`
	LinkUp           bool      `json:"link_up"`
}

// PassResult collects the samples of a pass window and their summary.
type PassResult struct {
	Samples         []PassSample  `json:"samples"`
	VisibleSamples  int           `json:"visible_samples"`
	LinkUpSamples   int           `json:"link_up_samples"`
	LinkUpDuration  time.Duration `json:"link_up_duration"`
	FirstLinkUp     time.Time     `json:"first_link_up,omitempty"`
	LastLinkUp      time.Time     `json:"last_link_up,omitempty"`
	MinSlantRangeM  float64       `json:"min_slant_range_m"`
	MaxElevationDeg float64       `json:"max_elevation_deg"`
}

// PassObserver receives per-step pass telemetry.
type PassObserver interface {
	ObserveSample(d time.Duration, slantRangeM, elevationDeg float64, visible, linkUp bool, marginDb float64)
	SetLinkUpDuration(d time.Duration)
}

// PassEvaluator evaluates a space-to-ground link along an orbit. The link
// budget runs only while the satellite is above MinElevationDeg with line
// of sight; the slant range becomes the link distance.
type PassEvaluator struct {
	Calc            *Calculator
	Orbit           Orbit
	Ground          GroundTerminal
	MinElevationDeg float64
	Observer        PassObserver // optional
}

// Run steps clock from its start through duration and samples the link on
// every step. The clock's listeners are extended, not replaced.
func (p *PassEvaluator) Run(ctx context.Context, clock *timectrl.TimeController, duration time.Duration, set ComponentSet, cfg model.LinkConfiguration) (PassResult, error) {
	if p.Calc == nil || p.Orbit == nil || clock == nil {
		return PassResult{}, errors.New("pass evaluator: calculator, orbit and clock are required")
	}
	ground := p.Ground.ECEF()
	res := PassResult{MaxElevationDeg: -90}
	var stepErr error

	clock.AddListener(func(now time.Time) {
		if stepErr != nil {
			return
		}
		pos, err := p.Orbit.PositionECEF(now)
		if err != nil {
			stepErr = err
			return
		}
		began := time.Now()
		s := p.sample(now, ground, pos, set, cfg)
		res.Samples = append(res.Samples, s)
		if p.Observer != nil {
			p.Observer.ObserveSample(time.Since(began), s.SlantRangeM, s.ElevationDeg, s.Visible, s.LinkUp, s.MarginDb)
		}
	})
	if err := clock.Run(ctx, duration); err != nil {
		return PassResult{}, err
	}
	if stepErr != nil {
		return PassResult{}, fmt.Errorf("pass evaluator: %w", stepErr)
	}

	for i, s := range res.Samples {
		if i == 0 || s.SlantRangeM < res.MinSlantRangeM {
			res.MinSlantRangeM = s.SlantRangeM
		}
		if s.ElevationDeg > res.MaxElevationDeg {
			res.MaxElevationDeg = s.ElevationDeg
		}
		if s.Visible {
			res.VisibleSamples++
		}
		if s.LinkUp {
			res.LinkUpSamples++
			if res.FirstLinkUp.IsZero() {
				res.FirstLinkUp = s.Time
			}
			res.LastLinkUp = s.Time
		}
	}
	res.LinkUpDuration = time.Duration(res.LinkUpSamples) * clock.Tick
	if p.Observer != nil {
		p.Observer.SetLinkUpDuration(res.LinkUpDuration)
	}
	return res, nil
}

func (p *PassEvaluator) sample(now time.Time, ground, sat Vec3, set ComponentSet, cfg model.LinkConfiguration) PassSample {
	s := PassSample{
		Time:         now,
		SlantRangeM:  ground.DistanceTo(sat) * 1000,
		ElevationDeg: ElevationDegrees(ground, sat),
	}
	s.Visible = s.ElevationDeg >= p.MinElevationDeg && HasLineOfSight(ground, sat)
	if !s.Visible {
		return s
	}
	at := cfg.WithDistance(s.SlantRangeM)
	budget := p.Calc.Evaluate(set, at)
	ber := p.Calc.LinkBER(set, at, budget)
	s.ReceivedPowerDbm = budget.ReceivedPowerDbm
	s.MarginDb = budget.MarginDb
	s.PostFECBER = ber.PostFEC
	s.LinkUp = ber.PostFEC <= cfg.Global.TargetBER
	return s
}
