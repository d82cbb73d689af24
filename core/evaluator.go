package core

import (
	"math"
	"sort"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// StageType classifies ledger entries.
type StageType string

const (
	StageTransmit    StageType = "transmit"
	StageOptic       StageType = "optic"
	StageChannel     StageType = "channel"
	StageCoupling    StageType = "coupling"
	StageSensitivity StageType = "sensitivity"
)

// StageLedgerEntry is one step of the power budget. PowerOutDbm of entry i
// equals PowerInDbm of entry i+1.
type StageLedgerEntry struct {
	Type        StageType `json:"type"`
	Label       string    `json:"label"`
	DeltaDb     float64   `json:"delta_db"`
	PowerInDbm  float64   `json:"power_in_dbm"`
	PowerOutDbm float64   `json:"power_out_dbm"`
	Category    string    `json:"category,omitempty"`
	ComponentID string    `json:"component_id,omitempty"`
}

// LinkBudgetResult is the full transmitter-to-receiver budget at one
// distance. Loss fields are non-negative magnitudes.
type LinkBudgetResult struct {
	DistanceM             float64
	TransmitPowerDbm      float64
	InsertionLossDb       float64
	AtmosphericLossDb     float64
	ScintillationMarginDb float64
	PointingLossDb        float64
	GeometricGainDb       float64
	ReceivedPowerDbm      float64
	SensitivityDbm        float64
	MarginDb              float64

	Beam      BeamState
	Channel   ChannelEffects
	Coupling  CouplingResult
	Insertion InsertionChain
	Ledger    []StageLedgerEntry
}

// Calculator is the link budget and BER engine. It holds no mutable state
// and is safe for concurrent use.
type Calculator struct {
	tunables Tunables
	mapping  BerMapping
	mech     MechanicalPenaltyModel
}

// CalculatorOption customizes a Calculator.
type CalculatorOption func(*Calculator)

// WithBerMapping replaces the SNR to BER mapping.
func WithBerMapping(m BerMapping) CalculatorOption {
	return func(c *Calculator) {
		if m != nil {
			c.mapping = m
		}
	}
}

// WithMechanicalPenalty replaces the receiver-array mechanical penalty.
func WithMechanicalPenalty(m MechanicalPenaltyModel) CalculatorOption {
	return func(c *Calculator) {
		if m != nil {
			c.mech = m
		}
	}
}

// NewCalculator returns a Calculator using normalized tunables.
func NewCalculator(t Tunables, opts ...CalculatorOption) *Calculator {
	t.normalize()
	c := &Calculator{
		tunables: t,
		mapping:  OOKMapping{},
		mech:     t.Mechanical,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tunables returns the constants in use.
func (c *Calculator) Tunables() Tunables { return c.tunables }

// Resolve builds the typed component set for a catalog snapshot.
func (c *Calculator) Resolve(cat model.Catalog, sel model.Selection, cfg model.LinkConfiguration) ComponentSet {
	return ResolveComponents(cat, sel, cfg, c.tunables)
}

// Evaluate computes the power budget:
//
//	Prx = Ptx − IL − atmospheric − scintillation − pointing + geometric
//
// and the ledger from transmit power to the sensitivity comparison. It
// never fails; missing parts fall back to defaults.
func (c *Calculator) Evaluate(set ComponentSet, cfg model.LinkConfiguration) LinkBudgetResult {
	t := c.tunables
	beam := ComputeBeam(set, cfg, t)
	chain := BuildInsertionChain(set)
	aperture := CaptureApertureDiameterM(set, t)
	ch := ComputeChannel(cfg, beam, aperture, t)
	coup := ComputeCoupling(set, beam, cfg, t, c.mech)

	res := LinkBudgetResult{
		DistanceM:             math.Max(cfg.Global.DistanceM, 0),
		TransmitPowerDbm:      set.Source.PowerDbm,
		InsertionLossDb:       chain.TotalDb(),
		AtmosphericLossDb:     ch.AtmosphericDb,
		ScintillationMarginDb: ch.ScintillationDb,
		PointingLossDb:        ch.PointingDb,
		GeometricGainDb:       coup.GainDb,
		SensitivityDbm:        SensitivityDbm(set.Detector, cfg.Global.BitrateGbps),
		Beam:                  beam,
		Channel:               ch,
		Coupling:              coup,
		Insertion:             chain,
	}

	ledger := newLedger(res.TransmitPowerDbm, set.Source.Part)
	for _, s := range chain.Transmit {
		ledger.add(StageOptic, s.Label, -s.LossDb, s.Category, s.ComponentID)
	}
	ledger.add(StageChannel, "Atmospheric attenuation", -ch.AtmosphericDb, "", "")
	ledger.add(StageChannel, "Scintillation margin", -ch.ScintillationDb, "", "")
	ledger.add(StageChannel, "Pointing loss", -ch.PointingDb, "", "")
	couplingCategory, couplingID := model.CategoryReceiverObjective, set.Objective.ID
	if coup.Mode == CouplingArray {
		couplingCategory, couplingID = model.CategoryReceiverArray, set.Array.ID
	}
	ledger.add(StageCoupling, "Geometric coupling", coup.GainDb, couplingCategory, couplingID)
	for _, s := range chain.Receive {
		ledger.add(StageOptic, s.Label, -s.LossDb, s.Category, s.ComponentID)
	}
	res.ReceivedPowerDbm = ledger.power
	ledger.add(StageSensitivity, "Sensitivity comparison", 0, model.CategoryROSA, set.Detector.ID)

	res.MarginDb = res.ReceivedPowerDbm - res.SensitivityDbm
	res.Ledger = ledger.entries
	return res
}

type ledgerBuilder struct {
	power   float64
	entries []StageLedgerEntry
}

func newLedger(ptx float64, src Part) *ledgerBuilder {
	l := &ledgerBuilder{power: ptx, entries: make([]StageLedgerEntry, 0, 16)}
	id := ""
	if src.Selected {
		id = src.ID
	}
	l.add(StageTransmit, "Transmit power", 0, model.CategoryTOSA, id)
	return l
}

func (l *ledgerBuilder) add(typ StageType, label string, delta float64, category, id string) {
	in := l.power
	l.power = in + delta
	l.entries = append(l.entries, StageLedgerEntry{
		Type:        typ,
		Label:       label,
		DeltaDb:     delta,
		PowerInDbm:  in,
		PowerOutDbm: l.power,
		Category:    category,
		ComponentID: id,
	})
}

// SensitivityDbm looks up the detector's per-bitrate table, falling back
// to −28/−20/−18 dBm for ≤0.1, ≤1 and >1 Gb/s.
func SensitivityDbm(det Detector, bitrateGbps float64) float64 {
	if len(det.Sensitivity) > 0 {
		keys := make([]float64, 0, len(det.Sensitivity))
		for k := range det.Sensitivity {
			keys = append(keys, k)
		}
		sort.Float64s(keys)
		for _, k := range keys {
			if math.Abs(k-bitrateGbps) <= 1e-9*math.Max(1, math.Abs(k)) {
				return det.Sensitivity[k]
			}
		}
	}
	switch {
	case bitrateGbps <= 0.1:
		return -28
	case bitrateGbps <= 1:
		return -20
	default:
		return -18
	}
}
