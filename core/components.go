package core

import (
	"math"
	"strconv"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// ComponentSet is the typed, defaulted view of one selected record per
// category. It is built once per evaluation by ResolveComponents; all
// catalog field-name variants are resolved there and nowhere else.
type ComponentSet struct {
	Source    Source
	Launch    LaunchOptic // collimator, aspheric or GRIN, whichever is present first
	Expander  LaunchOptic
	Expanded  ExpandedBeam
	Telescope Telescope

	Isolator LossElement
	VOA      LossElement
	Shutter  LossElement
	Dichroic LossElement

	Window             LossElement
	InterferenceFilter LossElement
	TapSplitter        LossElement
	LensStack          LensStack
	Combiner           Combiner

	Objective Objective
	Array     ReceiverArray

	Detector     Detector
	Amplifier    Amplifier
	LimitingAmp  LimitingAmp
	CDR          CDR
	FEC          FEC
	Pilot        Pilot
	FSM          Actuator
	Gimbal       Actuator
	SensorQuad   Part
	Mount        Mount
	AlignLaser   Part
	FECRequested string // configured FEC id, kept for reporting

	// Records holds the raw selected record of every category, including
	// ones the budget ignores, for KPIs and compatibility checks.
	Records map[string]model.ComponentRecord
}

// Part identifies the selected record behind a typed component.
type Part struct {
	Selected bool
	ID       string
}

// Source is the optical transmitter.
type Source struct {
	Part
	PowerDbm         float64
	M2               float64
	OMADbmMax        float64
	HasOMA           bool
	SupportsBitrates []float64
}

// LaunchOptic is a collimator or beam expander on the transmit side.
type LaunchOptic struct {
	Part
	Category        string
	InsertionLossDb float64
	DivergenceMrad  float64 // full angle, 0 when unknown
	ApertureMm      float64 // 0 when unknown
	ARCenterNm      float64
	DualLambdaOK    bool
}

// ExpandedBeam is an expanded-beam optic that fixes the launch waist.
type ExpandedBeam struct {
	Part
	BeamDiameterMm  float64
	InsertionLossDb float64
}

// Telescope is the transmit telescope.
type Telescope struct {
	Part
	Throughput     float64
	DivergenceMrad float64
	ApertureMm     float64
}

// LossElement is a passive stage described by a single loss in dB.
type LossElement struct {
	Part
	Category string
	LossDb   float64
}

// LensStack is a receive-side lens stack.
type LensStack struct {
	Part
	Transmission float64
	ApertureMm   float64
}

// Combiner is a binary combiner tree for receiver arrays.
type Combiner struct {
	Part
	BaseILDb     float64
	PerStageILDb float64
	HasTree      bool
}

// Objective is a single receive aperture.
type Objective struct {
	Part
	ApertureMm       float64
	Efficiency       float64
	ObscurationRatio float64
}

// ReceiverArray is a multi-element receive aperture.
type ReceiverArray struct {
	Part
	Count          int
	SubApertureMm  float64
	GridRows       int
	GridCols       int
	PitchMm        float64
	FillFactor     float64
	SamplingFactor float64
	CombinerILDb   float64
	Efficiency     float64
	Efficiency1310 float64
	Efficiency1550 float64
	AoAK           float64
	AoAExtraMrad   float64
	OffsetMrad     float64
	TiltStdMrad    float64
	FlatnessUmRMS  float64
	EnvelopeMm     float64
	DualLambdaOK   bool
}

// Detector merges the ROSA and photodiode records.
type Detector struct {
	Part
	ResponsivityAW    float64
	HasResponsivity   bool
	DarkCurrentA      float64
	Gain              float64 // APD multiplication, 1 for PIN
	ExcessNoiseF      float64
	OverloadDbm       float64
	HasOverload       bool
	Sensitivity       map[float64]float64 // bitrate Gb/s -> dBm
	SupportedBitrates []float64
}

// Amplifier is the transimpedance amplifier.
type Amplifier struct {
	Part
	TransimpedanceOhm float64
	InputNoiseA       float64 // A/√Hz
	BandwidthHz       float64 // 0 = not limiting
	OutputSwingV      float64 // 0 = no clipping model
	IIP3A             float64 // 0 = no IMD model
}

// LimitingAmp is the post-amplifier.
type LimitingAmp struct {
	Part
	GainDb      float64
	BandwidthHz float64
}

// CDR is the clock-and-data recovery stage.
type CDR struct {
	Part
	BitrateGbps float64
}

// FEC is the forward error correction model.
type FEC struct {
	Part
	CodingGainDb float64
	OverheadPct  float64
}

// Pilot is the alignment pilot-tone injector.
type Pilot struct {
	Part
	DepthPercent float64
}

// Actuator is a fast steering mirror or gimbal.
type Actuator struct {
	Part
	BandwidthHz    float64
	RangeMrad      float64
	ResolutionUrad float64
}

// Mount is the opto-mechanical mount.
type Mount struct {
	Part
	SupportsStack bool
}

// ResolveComponents reads the selected record of each category from the
// catalog and normalizes it into a ComponentSet. Missing categories give
// zero-valued parts with Selected=false; missing fields get defaults.
func ResolveComponents(cat model.Catalog, sel model.Selection, cfg model.LinkConfiguration, t Tunables) ComponentSet {
	t.normalize()
	set := ComponentSet{Records: make(map[string]model.ComponentRecord)}
	for category := range cat {
		if rec, ok := cat.Selected(category, sel); ok {
			set.Records[category] = rec
		}
	}
	get := func(category string) (model.ComponentRecord, bool) {
		rec, ok := set.Records[category]
		return rec, ok
	}

	set.Source = resolveSource(get, t)

	for _, c := range []string{model.CategoryCollimator, model.CategoryAsphericCol, model.CategoryGRINCol} {
		if rec, ok := get(c); ok {
			set.Launch = resolveLaunch(rec)
			break
		}
	}
	if rec, ok := get(model.CategoryBeamExpander); ok {
		set.Expander = resolveLaunch(rec)
	}
	if rec, ok := get(model.CategoryExpandedBeam); ok {
		set.Expanded = ExpandedBeam{
			Part:            part(rec),
			BeamDiameterMm:  rec.FloatOr("beam_diameter_mm", 0),
			InsertionLossDb: ilDb(rec),
		}
	}
	if rec, ok := get(model.CategoryTxTelescope); ok {
		set.Telescope = Telescope{
			Part:           part(rec),
			Throughput:     rec.FloatOr("throughput", 1),
			DivergenceMrad: firstFloat(rec, 0, "residual_divergence_mrad", "output_divergence_mrad"),
			ApertureMm:     rec.FloatOr("aperture_mm", 0),
		}
	}

	set.Isolator = lossElement(get, model.CategoryIsolator, ilDb)
	set.VOA = lossElement(get, model.CategoryVOA, ilDb)
	set.Shutter = lossElement(get, model.CategoryShutter, func(r model.ComponentRecord) float64 {
		return firstFloat(r, 0, "ar_db", "il_db", "insertion_loss_db")
	})
	set.Dichroic = lossElement(get, model.CategoryDichroic, func(r model.ComponentRecord) float64 {
		return math.Max(r.FloatOr("il_pass_db", 0), r.FloatOr("il_reflect_db", 0))
	})
	set.Window = lossElement(get, model.CategoryWindow, func(r model.ComponentRecord) float64 {
		return r.FloatOr("ar_db", 0) + r.FloatOr("contamination_penalty_db", 0)
	})
	set.InterferenceFilter = lossElement(get, model.CategoryInterferenceFilt, ilDb)
	set.TapSplitter = lossElement(get, model.CategoryTapSplitter, ilDb)

	if rec, ok := get(model.CategoryLensStack); ok {
		set.LensStack = LensStack{
			Part:         part(rec),
			Transmission: rec.FloatOr("transmission", 1),
			ApertureMm:   rec.FloatOr("aperture_mm", 0),
		}
	}
	if rec, ok := get(model.CategoryCombiner); ok {
		base, okBase := rec.Float("base_il_db")
		per, okPer := rec.Float("per_stage_il_db")
		set.Combiner = Combiner{Part: part(rec), BaseILDb: base, PerStageILDb: per, HasTree: okBase && okPer}
	}

	if rec, ok := get(model.CategoryReceiverObjective); ok {
		set.Objective = Objective{
			Part:             part(rec),
			ApertureMm:       rec.FloatOr("aperture_mm", t.DefaultRxApertureMm),
			Efficiency:       rec.FloatOr("efficiency", 1),
			ObscurationRatio: clamp(rec.FloatOr("obscuration_ratio", 0), 0, 1),
		}
	}
	if rec, ok := get(model.CategoryReceiverArray); ok {
		set.Array = resolveArray(rec)
	}

	set.Detector = resolveDetector(get)
	set.Amplifier = resolveAmplifier(get, t)
	if rec, ok := get(model.CategoryLimitingAmp); ok {
		set.LimitingAmp = LimitingAmp{
			Part:        part(rec),
			GainDb:      rec.FloatOr("gain_db", 0),
			BandwidthHz: ghz(rec, "bandwidth_ghz"),
		}
	}
	for _, c := range []string{model.CategoryLACDR, model.CategoryCDR} {
		if rec, ok := get(c); ok {
			set.CDR = CDR{Part: part(rec), BitrateGbps: rec.FloatOr("bitrate_gbps", 0)}
			break
		}
	}

	set.FECRequested = cfg.Global.FECModel
	if id := cfg.Global.FECModel; id != "" && id != "none" {
		if rec, ok := cat.Find(model.CategoryFEC, id); ok {
			set.FEC = FEC{
				Part:         part(rec),
				CodingGainDb: rec.FloatOr("coding_gain_db", 0),
				OverheadPct:  rec.FloatOr("overhead_pct", 0),
			}
		}
	}

	if rec, ok := get(model.CategoryPilotInjector); ok {
		set.Pilot = Pilot{Part: part(rec), DepthPercent: firstFloat(rec, 0, "depth_percent", "depth_percent_max")}
	}
	if rec, ok := get(model.CategoryFSM); ok {
		set.FSM = Actuator{
			Part:           part(rec),
			BandwidthHz:    rec.FloatOr("bandwidth_hz", 0),
			RangeMrad:      rec.FloatOr("range_mrad", 0),
			ResolutionUrad: rec.FloatOr("resolution_urad", 0),
		}
	}
	if rec, ok := get(model.CategoryGimbal); ok {
		set.Gimbal = Actuator{
			Part:           part(rec),
			BandwidthHz:    rec.FloatOr("bandwidth_hz", 0),
			RangeMrad:      rec.FloatOr("range_deg", 0) * math.Pi / 180 * 1000,
			ResolutionUrad: rec.FloatOr("resolution_mrad", 0) * 1000,
		}
	}
	if rec, ok := get(model.CategorySensorQuad); ok {
		set.SensorQuad = part(rec)
	}
	if rec, ok := get(model.CategoryMount); ok {
		supports, _ := rec.Bool("supports_stack")
		set.Mount = Mount{Part: part(rec), SupportsStack: supports}
	}
	if rec, ok := get(model.CategoryAlignLaser); ok {
		set.AlignLaser = part(rec)
	}
	return set
}

type recordGetter func(category string) (model.ComponentRecord, bool)

func part(rec model.ComponentRecord) Part {
	return Part{Selected: true, ID: rec.ID}
}

func firstFloat(rec model.ComponentRecord, def float64, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := rec.Float(k); ok {
			return v
		}
	}
	return def
}

func ilDb(rec model.ComponentRecord) float64 {
	return math.Max(firstFloat(rec, 0, "il_db", "insertion_loss_db"), 0)
}

func ghz(rec model.ComponentRecord, key string) float64 {
	return rec.FloatOr(key, 0) * 1e9
}

func lossElement(get recordGetter, category string, loss func(model.ComponentRecord) float64) LossElement {
	rec, ok := get(category)
	if !ok {
		return LossElement{Category: category}
	}
	return LossElement{Part: part(rec), Category: category, LossDb: math.Max(loss(rec), 0)}
}

func resolveSource(get recordGetter, t Tunables) Source {
	src := Source{M2: t.DefaultM2}
	if rec, ok := get(model.CategoryTOSA); ok {
		src.Part = part(rec)
		src.PowerDbm = rec.FloatOr("optical_power_dbm", 0)
		src.M2 = firstFloat(rec, t.DefaultM2, "m2", "M2")
		src.SupportsBitrates = rec.Floats("supports_bitrates")
	}
	if rec, ok := get(model.CategoryTOSAType); ok {
		if oma, ok := rec.Float("oma_dbm_max"); ok {
			src.OMADbmMax, src.HasOMA = oma, true
		}
		if len(src.SupportsBitrates) == 0 {
			src.SupportsBitrates = rec.Floats("supports_bitrates")
		}
	}
	if src.M2 < 1 {
		src.M2 = 1
	}
	return src
}

func resolveLaunch(rec model.ComponentRecord) LaunchOptic {
	dual, _ := rec.Bool("dual_lambda_ok")
	return LaunchOptic{
		Part:            part(rec),
		Category:        rec.Category,
		InsertionLossDb: ilDb(rec),
		DivergenceMrad:  firstFloat(rec, 0, "output_divergence_mrad", "residual_divergence_mrad", "divergence_mrad"),
		ApertureMm:      firstFloat(rec, 0, "aperture_mm", "diameter_mm", "clear_aperture_mm"),
		ARCenterNm:      firstFloat(rec, 0, "ar_wavelength_nm", "ar_center_nm"),
		DualLambdaOK:    dual,
	}
}

func resolveArray(rec model.ComponentRecord) ReceiverArray {
	eff := rec.FloatOr("efficiency", 1)
	dual := true
	if v, ok := rec.Bool("dual_lambda_ok"); ok {
		dual = v
	}
	arr := ReceiverArray{
		Part:           part(rec),
		Count:          int(math.Max(rec.FloatOr("count", 0), 0)),
		SubApertureMm:  rec.FloatOr("sub_aperture_mm", 0),
		GridRows:       int(rec.FloatOr("grid_rows", 0)),
		GridCols:       int(rec.FloatOr("grid_cols", 0)),
		PitchMm:        rec.FloatOr("pitch_mm", 0),
		FillFactor:     clamp(rec.FloatOr("fill_factor", 1), 0, 1),
		SamplingFactor: clamp(rec.FloatOr("sampling_factor", 1), 0, 1),
		CombinerILDb:   math.Max(rec.FloatOr("combiner_il_db", 0), 0),
		Efficiency:     eff,
		Efficiency1310: rec.FloatOr("efficiency_1310", eff),
		Efficiency1550: rec.FloatOr("efficiency_1550", eff),
		AoAK:           math.Max(rec.FloatOr("aoa_k", 1), 0),
		AoAExtraMrad:   math.Max(rec.FloatOr("aoa_extra_mrad", 0), 0),
		OffsetMrad:     math.Max(rec.FloatOr("offset_mrad", 0), 0),
		TiltStdMrad:    math.Max(rec.FloatOr("tilt_std_mrad", 0), 0),
		FlatnessUmRMS:  math.Max(rec.FloatOr("flatness_um_rms", 0), 0),
		DualLambdaOK:   dual,
	}
	if arr.GridRows <= 0 || arr.GridCols <= 0 {
		arr.GridRows, arr.GridCols = nearSquareGrid(arr.Count)
	}
	if arr.PitchMm <= 0 {
		arr.PitchMm = arr.SubApertureMm
	}
	arr.EnvelopeMm = firstFloat(rec, 0, "envelope_diameter_mm")
	if arr.EnvelopeMm <= 0 {
		arr.EnvelopeMm = math.Max(rec.FloatOr("envelope_width_mm", 0), rec.FloatOr("envelope_height_mm", 0))
	}
	if arr.EnvelopeMm <= 0 {
		arr.EnvelopeMm = float64(max(arr.GridRows, arr.GridCols)) * arr.PitchMm
	}
	return arr
}

// nearSquareGrid picks rows×cols ≥ n with rows ≤ cols as close as possible.
func nearSquareGrid(n int) (rows, cols int) {
	if n <= 0 {
		return 0, 0
	}
	rows = int(math.Floor(math.Sqrt(float64(n))))
	cols = (n + rows - 1) / rows
	return rows, cols
}

func resolveDetector(get recordGetter) Detector {
	det := Detector{Gain: 1, ExcessNoiseF: 1}
	rosa, hasROSA := get(model.CategoryROSA)
	pd, hasPD := get(model.CategoryPhotodiode)
	if !hasROSA && !hasPD {
		return det
	}
	if hasROSA {
		det.Part = part(rosa)
	} else {
		det.Part = part(pd)
	}

	respKeys := []string{"responsivity_a_w", "responsivity_A_W", "responsivity"}
	for _, rec := range []struct {
		r  model.ComponentRecord
		ok bool
	}{{rosa, hasROSA}, {pd, hasPD}} {
		if !rec.ok {
			continue
		}
		if !det.HasResponsivity {
			for _, k := range respKeys {
				if v, ok := rec.r.Float(k); ok && v > 0 {
					det.ResponsivityAW, det.HasResponsivity = v, true
					break
				}
			}
		}
		if det.DarkCurrentA == 0 {
			det.DarkCurrentA = math.Max(rec.r.FloatOr("dark_current_nA", 0), 0) * 1e-9
		}
		if det.Gain == 1 {
			det.Gain = math.Max(firstFloat(rec.r, 1, "apd_gain", "gain"), 1)
		}
		if det.ExcessNoiseF == 1 {
			det.ExcessNoiseF = math.Max(firstFloat(rec.r, 1, "excess_noise_F", "excess_noise_f"), 1)
		}
		if !det.HasOverload {
			if v, ok := rec.r.Float("overload_dbm"); ok {
				det.OverloadDbm, det.HasOverload = v, true
			}
		}
	}

	if hasROSA {
		if table := rosa.Table("sensitivity_dbm"); len(table) > 0 {
			det.Sensitivity = make(map[float64]float64, len(table))
			for k, v := range table {
				if br, err := strconv.ParseFloat(k, 64); err == nil {
					det.Sensitivity[br] = v
				}
			}
		}
		det.SupportedBitrates = rosa.Floats("bitrate_gbps_supported")
	}
	return det
}

func resolveAmplifier(get recordGetter, t Tunables) Amplifier {
	rec, ok := get(model.CategoryTIAModel)
	if !ok {
		rec, ok = get(model.CategoryTIA)
	}
	if !ok {
		return Amplifier{TransimpedanceOhm: t.DefaultTransimpedanceOhm}
	}
	amp := Amplifier{
		Part:              part(rec),
		TransimpedanceOhm: firstFloat(rec, t.DefaultTransimpedanceOhm, "zt_ohms", "transimpedance_ohms", "zt_ohm"),
		InputNoiseA:       math.Max(firstFloat(rec, 0, "input_noise_A_sqrtHz", "input_noise_a_sqrthz", "input_noise_pa_sqrtHz"), 0),
		BandwidthHz:       ghz(rec, "bandwidth_ghz"),
		OutputSwingV:      math.Max(firstFloat(rec, 0, "output_swing_v", "vout_max_v", "output_swing_vpp"), 0),
	}
	if v, ok := rec.Float("iip3_a"); ok {
		amp.IIP3A = v
	} else if v, ok := rec.Float("iip3_ma"); ok {
		amp.IIP3A = v * 1e-3
	}
	if amp.TransimpedanceOhm <= 0 {
		amp.TransimpedanceOhm = t.DefaultTransimpedanceOhm
	}
	return amp
}
