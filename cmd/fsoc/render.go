package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/signalsfoundry/fsoc-linkbudget/core"
	"github.com/signalsfoundry/fsoc-linkbudget/kb"
	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
}

func meters(m float64) string {
	return humanize.SIWithDigits(m, 2, "m")
}

func renderReport(out io.Writer, r core.LinkReport) error {
	b := r.Budget
	fmt.Fprintf(out, "evaluation %s at %s, %.3g Gb/s, %.0f nm\n\n",
		r.EvaluationID, meters(b.DistanceM), r.Config.Global.BitrateGbps, r.Config.Global.WavelengthNm)

	tw := newTable(out)
	fmt.Fprintln(tw, "STAGE\tLABEL\tDELTA dB\tIN dBm\tOUT dBm\tCOMPONENT")
	for _, e := range b.Ledger {
		component := e.ComponentID
		if e.Category != "" {
			component = e.Category + "/" + e.ComponentID
		}
		fmt.Fprintf(tw, "%s\t%s\t%+.2f\t%.2f\t%.2f\t%s\n",
			e.Type, e.Label, e.DeltaDb, e.PowerInDbm, e.PowerOutDbm, component)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	tw = newTable(out)
	fmt.Fprintf(tw, "received power\t%.2f dBm\n", b.ReceivedPowerDbm)
	fmt.Fprintf(tw, "sensitivity\t%.2f dBm\n", b.SensitivityDbm)
	fmt.Fprintf(tw, "margin\t%.2f dB\n", b.MarginDb)
	fmt.Fprintf(tw, "beam radius\t%s (%s)\n", meters(b.Beam.RadiusM), b.Beam.Origin)
	fmt.Fprintf(tw, "coupling\t%.4f\n", b.Coupling.Fraction)
	fmt.Fprintf(tw, "BER pre-FEC\t%.3e\n", r.BER.PreFEC)
	fmt.Fprintf(tw, "BER post-FEC\t%.3e (%s)\n", r.BER.PostFEC, r.BER.Path)
	fmt.Fprintf(tw, "target BER\t%.1e\n", r.Config.Global.TargetBER)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	if err := renderControl(out, r.Control, r.KPIs); err != nil {
		return err
	}
	renderWarnings(out, r.Warnings)
	return nil
}

func renderControl(out io.Writer, c core.ControlReport, k core.SystemKPIs) error {
	req := c.Requirement
	tw := newTable(out)
	fmt.Fprintf(tw, "pointing sigma\t%.4g mrad\n", req.RequiredSigmaMrad)
	fmt.Fprintf(tw, "resolution\t%.3g µrad\n", req.ResolutionUrad)
	fmt.Fprintf(tw, "range\t%.3g mrad\n", req.RangeMrad)
	fmt.Fprintf(tw, "greenwood\t%s\n", humanize.SIWithDigits(req.GreenwoodHz, 3, "Hz"))
	fmt.Fprintf(tw, "FSM bandwidth\t%s (ok=%t)\n", humanize.SIWithDigits(req.FastBandwidthHz, 3, "Hz"), k.FSMOk)
	fmt.Fprintf(tw, "gimbal bandwidth\t%s (ok=%t)\n", humanize.SIWithDigits(req.CoarseBandwidthHz, 3, "Hz"), k.GimbalOk)
	if c.Residual.SigmaMrad > 0 {
		fmt.Fprintf(tw, "residual jitter\t%.4g mrad\n", c.Residual.SigmaMrad)
	}
	fmt.Fprintf(tw, "cost\t$%s\n", humanize.Commaf(k.CostUSD))
	fmt.Fprintf(tw, "weight\t%s\n", humanize.SIWithDigits(k.WeightG/1000, 3, "kg"))
	fmt.Fprintf(tw, "power\t%s\n", humanize.SIWithDigits(k.PowerW, 3, "W"))
	if k.CombinerILDb > 0 {
		fmt.Fprintf(tw, "combiner loss\t%.2f dB\n", k.CombinerILDb)
	}
	return tw.Flush()
}

func renderWarnings(out io.Writer, warnings []core.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%d warning(s):\n", len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(out, "  [%s] %s\n", w.Code, w.Message)
	}
}

func renderReach(out io.Writer, r core.MaxReachResult) error {
	switch r.Outcome {
	case core.ReachZero:
		fmt.Fprintf(out, "target BER %.1e is not met at any distance (margin at 0 m: %.2f dB)\n", r.TargetBER, r.MarginDb)
	case core.ReachSweepCeiling:
		fmt.Fprintf(out, "max reach ≥ %s: target BER %.1e met across the whole sweep\n", meters(r.DistanceM), r.TargetBER)
	default:
		fmt.Fprintf(out, "max reach %s at target BER %.1e (post-FEC %.3e, margin %.2f dB)\n",
			meters(r.DistanceM), r.TargetBER, r.PostFECBER, r.MarginDb)
	}
	fmt.Fprintf(out, "outcome %s, ceiling %s, %d evaluations\n", r.Outcome, meters(r.CeilingM), r.Samples)
	return nil
}

func renderSweep(out io.Writer, points []core.SweepPoint) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "DISTANCE\tPRX dBm\tMARGIN dB\tBEAM RADIUS\tCOUPLING\tPRE-FEC\tPOST-FEC\tOK")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%s\t%.4f\t%.2e\t%.2e\t%t\n",
			meters(p.DistanceM), p.ReceivedPowerDbm, p.MarginDb, meters(p.BeamRadiusM),
			p.CouplingFraction, p.PreFECBER, p.PostFECBER, p.MeetsTarget)
	}
	return tw.Flush()
}

func renderPass(out io.Writer, r core.PassResult) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "TIME\tELEVATION\tSLANT RANGE\tMARGIN dB\tPOST-FEC\tLINK")
	for _, s := range r.Samples {
		if !s.Visible {
			continue
		}
		fmt.Fprintf(tw, "%s\t%.1f°\t%s\t%.2f\t%.2e\t%t\n",
			s.Time.UTC().Format(time.RFC3339), s.ElevationDeg, meters(s.SlantRangeM),
			s.MarginDb, s.PostFECBER, s.LinkUp)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s samples, %s visible, %s link-up (%s)\n",
		humanize.Comma(int64(len(r.Samples))), humanize.Comma(int64(r.VisibleSamples)),
		humanize.Comma(int64(r.LinkUpSamples)), r.LinkUpDuration)
	if r.LinkUpSamples > 0 {
		fmt.Fprintf(out, "link up from %s to %s\n",
			r.FirstLinkUp.UTC().Format(time.RFC3339), r.LastLinkUp.UTC().Format(time.RFC3339))
	}
	if r.VisibleSamples > 0 {
		fmt.Fprintf(out, "max elevation %.1f°, min slant range %s\n", r.MaxElevationDeg, meters(r.MinSlantRangeM))
	}
	return nil
}

type categoryView struct {
	Category string `json:"category"`
	Records  int    `json:"records"`
	Selected string `json:"selected,omitempty"`
}

func renderCatalog(out io.Writer, catalog *kb.KnowledgeBase, summary *kb.CatalogSummary, asJSON bool) error {
	views := make([]categoryView, 0, len(catalog.Categories()))
	for _, c := range catalog.Categories() {
		v := categoryView{Category: c, Records: len(catalog.Records(c))}
		if rec, ok := catalog.Selected(c); ok {
			v.Selected = rec.ID
		}
		views = append(views, v)
	}
	if asJSON {
		return writeJSON(out, struct {
			SchemaVersion string         `json:"schema_version"`
			Categories    []categoryView `json:"categories"`
		}{summary.SchemaVersion, views})
	}

	fmt.Fprintf(out, "catalog schema %s: %s records in %d categories\n\n",
		summary.SchemaVersion, humanize.Comma(int64(summary.Records)), len(views))
	tw := newTable(out)
	fmt.Fprintln(tw, "CATEGORY\tRECORDS\tSELECTED")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Category, humanize.Comma(int64(v.Records)), v.Selected)
	}
	return tw.Flush()
}

func renderCategory(out io.Writer, catalog *kb.KnowledgeBase, category string, asJSON bool) error {
	records := catalog.Records(category)
	if len(records) == 0 {
		return fmt.Errorf("category %q: %w", category, kb.ErrCategoryNotFound)
	}
	if asJSON {
		return writeJSON(out, records)
	}
	var selected string
	if rec, ok := catalog.Selected(category); ok {
		selected = rec.ID
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tSELECTED\tATTRIBUTES")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%t\t%s\n", rec.ID, rec.ID == selected, attributeSummary(rec))
	}
	return tw.Flush()
}

func attributeSummary(rec model.ComponentRecord) string {
	var s string
	for i, k := range rec.Keys() {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%v", k, rec.Attr(k))
	}
	return s
}
