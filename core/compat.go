package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// WarningCode identifies a class of configuration warning.
type WarningCode string

const (
	WarnBitrateUnsupported  WarningCode = "bitrate_unsupported"
	WarnStackWithoutMount   WarningCode = "lens_stack_without_mount"
	WarnAlignmentHardware   WarningCode = "alignment_hardware_missing"
	WarnAlignmentWavelength WarningCode = "alignment_wavelength"
	WarnCaptureConflict     WarningCode = "objective_and_array"
	WarnArrayWithoutMount   WarningCode = "array_without_mount"
	WarnArrayWithoutComb    WarningCode = "array_without_combiner"
	WarnActuatorCapability  WarningCode = "actuator_capability"
	WarnFECNotFound         WarningCode = "fec_not_found"
)

// Warning is a non-fatal finding about a component selection. Warnings
// never change the budget.
type Warning struct {
	Code        WarningCode `json:"code"`
	Category    string      `json:"category,omitempty"`
	ComponentID string      `json:"component_id,omitempty"`
	Message     string      `json:"message"`
}

const (
	defaultAlignWavelengthNm = 1310
	arCenterToleranceNm      = 50
)

// CheckCompatibility reports selections that cannot work together at the
// configured bitrate and alignment mode. A zero-element receiver array
// counts as absent.
func CheckCompatibility(set ComponentSet, cfg model.LinkConfiguration) []Warning {
	var warns []Warning
	br := cfg.Global.BitrateGbps

	categories := make([]string, 0, len(set.Records))
	for c := range set.Records {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		rec := set.Records[c]
		if !supportsBitrate(c, rec, br) {
			warns = append(warns, Warning{
				Code: WarnBitrateUnsupported, Category: c, ComponentID: rec.ID,
				Message: fmt.Sprintf("%s %q does not support %g Gb/s", c, rec.ID, br),
			})
		}
	}

	if set.LensStack.Selected && !(set.Mount.Selected && set.Mount.SupportsStack) {
		warns = append(warns, Warning{
			Code: WarnStackWithoutMount, Category: model.CategoryLensStack, ComponentID: set.LensStack.ID,
			Message: "lens stack needs a mount that supports stacks",
		})
	}

	warns = append(warns, alignmentWarnings(set, cfg)...)

	hasArray := set.Array.Selected && set.Array.Count > 0
	if hasArray && set.Objective.Selected {
		warns = append(warns, Warning{
			Code: WarnCaptureConflict, Category: model.CategoryReceiverArray, ComponentID: set.Array.ID,
			Message: "choose either a receiver objective or a receiver array, not both",
		})
	}
	if hasArray && !set.Mount.Selected {
		warns = append(warns, Warning{
			Code: WarnArrayWithoutMount, Category: model.CategoryReceiverArray, ComponentID: set.Array.ID,
			Message: "receiver array selected without an opto-mechanical mount",
		})
	}
	if hasArray && !set.Combiner.Selected {
		warns = append(warns, Warning{
			Code: WarnArrayWithoutComb, Category: model.CategoryReceiverArray, ComponentID: set.Array.ID,
			Message: "receiver array selected without a combiner; splitter-tree loss uses the array's own figure",
		})
	}
	return warns
}

func supportsBitrate(category string, rec model.ComponentRecord, br float64) bool {
	var list []float64
	switch category {
	case model.CategoryTOSA, model.CategoryTOSAType:
		list = rec.Floats("supports_bitrates")
	case model.CategoryROSA:
		list = rec.Floats("bitrate_gbps_supported")
	case model.CategoryLACDR, model.CategoryCDR:
		if v, ok := rec.Float("bitrate_gbps"); ok {
			return sameBitrate(v, br)
		}
		return true
	default:
		return true
	}
	if list == nil {
		return true
	}
	for _, v := range list {
		if sameBitrate(v, br) {
			return true
		}
	}
	return false
}

func sameBitrate(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func alignmentWarnings(set ComponentSet, cfg model.LinkConfiguration) []Warning {
	var warns []Warning
	hw := func(msg string) {
		warns = append(warns, Warning{Code: WarnAlignmentHardware, Message: msg})
	}
	wl := func(category, id, msg string) {
		warns = append(warns, Warning{Code: WarnAlignmentWavelength, Category: category, ComponentID: id, Message: msg})
	}

	mode := cfg.Global.AlignmentMode
	if mode == "" {
		mode = model.AlignmentDualLambda
	}
	switch mode {
	case model.AlignmentDualLambda:
		if !set.Dichroic.Selected || !set.SensorQuad.Selected {
			hw("dual-wavelength alignment needs a dichroic filter and a quad sensor")
		}
		if set.Array.Selected && set.Array.Count > 0 && !set.Array.DualLambdaOK {
			wl(model.CategoryReceiverArray, set.Array.ID, "receiver array is not rated for dual-wavelength operation")
		}
		alignNm := cfg.Global.AlignWavelengthNm
		if alignNm <= 0 {
			alignNm = defaultAlignWavelengthNm
		}
		for _, c := range []struct{ category, key string }{
			{model.CategoryAsphericCol, "ar_wavelength_nm"},
			{model.CategoryGRINCol, "ar_center_nm"},
		} {
			rec, ok := set.Records[c.category]
			if !ok {
				continue
			}
			if ar, ok := rec.Float(c.key); ok && ar > 0 && math.Abs(ar-alignNm) > arCenterToleranceNm {
				wl(c.category, rec.ID, fmt.Sprintf("%s AR coating centred at %g nm, alignment at %g nm", c.category, ar, alignNm))
			}
		}
		if rec, ok := set.Records[model.CategoryInterferenceFilt]; ok {
			center, okC := rec.Float("center_nm")
			fwhm, okW := rec.Float("fwhm_nm")
			if okC && okW && center > 0 && fwhm > 0 {
				if math.Abs(center-alignNm) > fwhm {
					wl(model.CategoryInterferenceFilt, rec.ID, fmt.Sprintf("interference filter may not pass the %g nm alignment wavelength", alignNm))
				}
				if data := cfg.Global.WavelengthNm; math.Abs(center-data) > fwhm {
					wl(model.CategoryInterferenceFilt, rec.ID, fmt.Sprintf("interference filter may not pass the %g nm data wavelength", data))
				}
			}
		}
	case model.AlignmentPilot:
		if !set.TapSplitter.Selected || !set.SensorQuad.Selected {
			hw("pilot alignment needs an optical tap and a quad sensor")
		}
	case model.AlignmentRetroreflector:
		if !set.SensorQuad.Selected && !set.Objective.Selected {
			hw("retroreflector alignment needs a return sensing path")
		}
	case model.AlignmentImaging:
		if !set.SensorQuad.Selected {
			hw("imaging alignment needs an imaging sensor")
		}
	}
	return warns
}
