package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/fsoc-linkbudget/internal/logging"
	"github.com/signalsfoundry/fsoc-linkbudget/kb"
	"github.com/signalsfoundry/fsoc-linkbudget/model"
	"github.com/signalsfoundry/fsoc-linkbudget/timectrl"
)

const tracerName = "github.com/signalsfoundry/fsoc-linkbudget/core"

// ErrInvalidRequest is returned for malformed service arguments other than
// the link configuration itself.
var ErrInvalidRequest = errors.New("invalid request")

// MetricsRecorder receives engine telemetry. observability.EngineCollector
// implements it.
type MetricsRecorder interface {
	ObserveOperation(operation, path string, d time.Duration)
	SetLinkState(marginDb, receivedDbm float64)
	SetMaxReach(outcome string, distanceM float64)
	IncBerFallback()
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, string, time.Duration) {}
func (noopMetrics) SetLinkState(float64, float64)                  {}
func (noopMetrics) SetMaxReach(string, float64)                    {}
func (noopMetrics) IncBerFallback()                                {}

// LinkReport is the full result of one evaluation.
type LinkReport struct {
	EvaluationID string                  `json:"evaluation_id"`
	Config       model.LinkConfiguration `json:"config"`
	Budget       LinkBudgetResult        `json:"budget"`
	BER          BerEstimate             `json:"ber"`
	Control      ControlReport           `json:"control"`
	KPIs         SystemKPIs              `json:"kpis"`
	Warnings     []Warning               `json:"warnings,omitempty"`
}

// PassRequest describes an orbital pass to evaluate.
type PassRequest struct {
	TLELine1        string
	TLELine2        string
	Ground          GroundTerminal
	MinElevationDeg float64
	Start           time.Time
	Duration        time.Duration
	Step            time.Duration
	Observer        PassObserver
}

// LinkService evaluates links against the selection held by a knowledge
// base. It validates configurations at the boundary and adds logging,
// metrics and tracing around the pure Calculator.
type LinkService struct {
	catalog  *kb.KnowledgeBase
	tunables Tunables
	calcOpts []CalculatorOption
	calc     *Calculator
	log      logging.Logger
	metrics  MetricsRecorder
	tracer   trace.Tracer
}

// ServiceOption customizes a LinkService.
type ServiceOption func(*LinkService)

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) ServiceOption {
	return func(s *LinkService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *LinkService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTunables replaces the engine constants.
func WithTunables(t Tunables) ServiceOption {
	return func(s *LinkService) { s.tunables = t }
}

// WithCalculatorOptions forwards options to the underlying Calculator.
func WithCalculatorOptions(opts ...CalculatorOption) ServiceOption {
	return func(s *LinkService) { s.calcOpts = append(s.calcOpts, opts...) }
}

// NewLinkService constructs a LinkService reading from catalog.
func NewLinkService(catalog *kb.KnowledgeBase, opts ...ServiceOption) *LinkService {
	s := &LinkService{
		catalog:  catalog,
		tunables: DefaultTunables(),
		log:      logging.Noop(),
		metrics:  noopMetrics{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.calc = NewCalculator(s.tunables, s.calcOpts...)
	return s
}

// Calculator returns the engine used by the service.
func (s *LinkService) Calculator() *Calculator { return s.calc }

// Resolve validates cfg and resolves the current selection.
func (s *LinkService) Resolve(cfg model.LinkConfiguration) (ComponentSet, error) {
	if err := cfg.Validate(); err != nil {
		return ComponentSet{}, err
	}
	if s.catalog == nil {
		return ComponentSet{}, fmt.Errorf("%w: no catalog loaded", ErrInvalidRequest)
	}
	cat, sel := s.catalog.Snapshot()
	return s.calc.Resolve(cat, sel, cfg), nil
}

// Evaluate computes the budget, BER, control requirement, KPIs and
// warnings at the configured distance.
func (s *LinkService) Evaluate(ctx context.Context, cfg model.LinkConfiguration) (LinkReport, error) {
	ctx, log := logging.WithEvaluationLogger(ctx, s.log)
	id := logging.EvaluationIDFromContext(ctx)
	ctx, span := s.startSpan(ctx, "fsoc.evaluate", id)
	defer span.End()
	start := time.Now()

	set, err := s.Resolve(cfg)
	if err != nil {
		return LinkReport{}, s.fail(ctx, span, log, "evaluate", err)
	}

	budget := s.calc.Evaluate(set, cfg)
	ber := s.calc.LinkBER(set, cfg, budget)
	control := s.calc.EstimateControl(cfg, budget.Beam)
	kpis, actuatorWarnings := Summarize(set, control.Requirement)

	warnings := CheckCompatibility(set, cfg)
	warnings = append(warnings, actuatorWarnings...)
	if fec := cfg.Global.FECModel; fec != "" && fec != "none" && !set.FEC.Selected {
		warnings = append(warnings, Warning{
			Code: WarnFECNotFound, Category: model.CategoryFEC, ComponentID: fec,
			Message: fmt.Sprintf("FEC model %q not found in catalog; no coding gain applied", fec),
		})
	}

	if ber.Path == BerPathHeuristic {
		s.metrics.IncBerFallback()
		log.Warn(ctx, "BER from margin heuristic; noise model inputs incomplete",
			logging.Bool("has_responsivity", set.Detector.HasResponsivity),
			logging.Bool("has_amplifier", set.Amplifier.Selected),
		)
	}
	for _, w := range warnings {
		log.Warn(ctx, "configuration warning",
			logging.String("code", string(w.Code)),
			logging.String("category", w.Category),
			logging.String("message", w.Message),
		)
	}

	s.metrics.ObserveOperation("evaluate", string(ber.Path), time.Since(start))
	s.metrics.SetLinkState(budget.MarginDb, budget.ReceivedPowerDbm)
	span.SetAttributes(
		attribute.Float64("fsoc.distance_m", budget.DistanceM),
		attribute.Float64("fsoc.margin_db", budget.MarginDb),
		attribute.Float64("fsoc.post_fec_ber", ber.PostFEC),
		attribute.String("fsoc.ber_path", string(ber.Path)),
		attribute.Int("fsoc.warnings", len(warnings)),
	)
	log.Debug(ctx, "link evaluated",
		logging.Float("distance_m", budget.DistanceM),
		logging.Float("received_power_dbm", budget.ReceivedPowerDbm),
		logging.Float("margin_db", budget.MarginDb),
		logging.Float("post_fec_ber", ber.PostFEC),
	)

	return LinkReport{
		EvaluationID: id,
		Config:       cfg,
		Budget:       budget,
		BER:          ber,
		Control:      control,
		KPIs:         kpis,
		Warnings:     warnings,
	}, nil
}

// MaxReach solves for the BER-limited reach of the current selection.
func (s *LinkService) MaxReach(ctx context.Context, cfg model.LinkConfiguration) (MaxReachResult, error) {
	ctx, log := logging.WithEvaluationLogger(ctx, s.log)
	ctx, span := s.startSpan(ctx, "fsoc.max_reach", logging.EvaluationIDFromContext(ctx))
	defer span.End()
	start := time.Now()

	set, err := s.Resolve(cfg)
	if err != nil {
		return MaxReachResult{}, s.fail(ctx, span, log, "max_reach", err)
	}
	res, err := s.calc.ComputeMaxReach(ctx, set, cfg)
	if err != nil {
		return MaxReachResult{}, s.fail(ctx, span, log, "max_reach", err)
	}

	s.metrics.ObserveOperation("max_reach", "", time.Since(start))
	s.metrics.SetMaxReach(string(res.Outcome), res.DistanceM)
	span.SetAttributes(
		attribute.Float64("fsoc.max_reach_m", res.DistanceM),
		attribute.String("fsoc.reach_outcome", string(res.Outcome)),
	)
	if res.Outcome == ReachSweepCeiling {
		log.Info(ctx, "target met across the whole sweep; reach is a lower bound",
			logging.Float("ceiling_m", res.CeilingM))
	}
	log.Debug(ctx, "max reach solved",
		logging.String("outcome", string(res.Outcome)),
		logging.Float("distance_m", res.DistanceM),
		logging.Int("samples", res.Samples),
	)
	return res, nil
}

// Sweep evaluates the current selection at each distance.
func (s *LinkService) Sweep(ctx context.Context, cfg model.LinkConfiguration, distances []float64) ([]SweepPoint, error) {
	ctx, log := logging.WithEvaluationLogger(ctx, s.log)
	ctx, span := s.startSpan(ctx, "fsoc.sweep", logging.EvaluationIDFromContext(ctx))
	defer span.End()
	start := time.Now()

	for i, d := range distances {
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			err := fmt.Errorf("%w: distance[%d] = %v must be finite and non-negative", ErrInvalidRequest, i, d)
			return nil, s.fail(ctx, span, log, "sweep", err)
		}
	}
	set, err := s.Resolve(cfg)
	if err != nil {
		return nil, s.fail(ctx, span, log, "sweep", err)
	}
	points, err := s.calc.Sweep(ctx, set, cfg, distances)
	if err != nil {
		return nil, s.fail(ctx, span, log, "sweep", err)
	}
	s.metrics.ObserveOperation("sweep", "", time.Since(start))
	span.SetAttributes(attribute.Int("fsoc.points", len(points)))
	log.Debug(ctx, "sweep evaluated", logging.Int("points", len(points)))
	return points, nil
}

// Pass evaluates the link along an orbital pass over a ground terminal,
// stepping a simulation clock through the requested window.
func (s *LinkService) Pass(ctx context.Context, cfg model.LinkConfiguration, req PassRequest) (PassResult, error) {
	ctx, log := logging.WithEvaluationLogger(ctx, s.log)
	ctx, span := s.startSpan(ctx, "fsoc.pass", logging.EvaluationIDFromContext(ctx))
	defer span.End()
	start := time.Now()

	if req.Step <= 0 || req.Duration < 0 {
		err := fmt.Errorf("%w: pass step must be positive and duration non-negative", ErrInvalidRequest)
		return PassResult{}, s.fail(ctx, span, log, "pass", err)
	}
	orbit, err := NewSGP4Orbit(req.TLELine1, req.TLELine2)
	if err != nil {
		return PassResult{}, s.fail(ctx, span, log, "pass", err)
	}
	set, err := s.Resolve(cfg)
	if err != nil {
		return PassResult{}, s.fail(ctx, span, log, "pass", err)
	}

	begin := req.Start
	if begin.IsZero() {
		begin = time.Now().UTC().Truncate(time.Second)
	}
	clock := timectrl.NewTimeController(begin, req.Step, timectrl.Accelerated)
	eval := &PassEvaluator{
		Calc:            s.calc,
		Orbit:           orbit,
		Ground:          req.Ground,
		MinElevationDeg: req.MinElevationDeg,
		Observer:        req.Observer,
	}
	res, err := eval.Run(ctx, clock, req.Duration, set, cfg)
	if err != nil {
		return PassResult{}, s.fail(ctx, span, log, "pass", err)
	}

	s.metrics.ObserveOperation("pass", "", time.Since(start))
	span.SetAttributes(
		attribute.Int("fsoc.samples", len(res.Samples)),
		attribute.Int("fsoc.link_up_samples", res.LinkUpSamples),
		attribute.Float64("fsoc.max_elevation_deg", res.MaxElevationDeg),
	)
	log.Debug(ctx, "pass evaluated",
		logging.Int("samples", len(res.Samples)),
		logging.Int("visible", res.VisibleSamples),
		logging.Int("link_up", res.LinkUpSamples),
	)
	return res, nil
}

func (s *LinkService) startSpan(ctx context.Context, name, evaluationID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("evaluation_id", evaluationID)))
}

func (s *LinkService) fail(ctx context.Context, span trace.Span, log logging.Logger, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Info(ctx, op+" cancelled", logging.Err(err))
	default:
		log.Error(ctx, op+" rejected", logging.Err(err))
	}
	return err
}
