package core

import (
	"sort"

	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// SystemKPIs are hardware totals of the selection and actuator checks
// against the control requirement.
type SystemKPIs struct {
	CostUSD float64 `json:"cost_usd"`
	WeightG float64 `json:"weight_g"`
	PowerW  float64 `json:"power_w"`

	CombinerILDb float64 `json:"combiner_il_db"`

	FSMOk    bool `json:"fsm_ok"`
	GimbalOk bool `json:"gimbal_ok"`
}

// Summarize totals cost, weight and power over the selected records and
// checks the FSM and gimbal against req. An unselected actuator passes.
func Summarize(set ComponentSet, req ControlRequirement) (SystemKPIs, []Warning) {
	var k SystemKPIs
	categories := make([]string, 0, len(set.Records))
	for c := range set.Records {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		rec := set.Records[c]
		k.CostUSD += rec.FloatOr("cost_usd", 0)
		k.WeightG += rec.FloatOr("weight_g", 0)
		k.PowerW += rec.FloatOr("power_w", 0)
	}
	if set.Array.Selected {
		k.CombinerILDb = CombinerLossDb(set.Array, set.Combiner)
	}

	var warns []Warning
	k.FSMOk = !set.FSM.Selected || fsmOk(set.FSM, req)
	if !k.FSMOk {
		warns = append(warns, Warning{
			Code: WarnActuatorCapability, Category: model.CategoryFSM, ComponentID: set.FSM.ID,
			Message: "FSM capability insufficient for required bandwidth, resolution or range",
		})
	}
	k.GimbalOk = !set.Gimbal.Selected || gimbalOk(set.Gimbal, req)
	if !k.GimbalOk {
		warns = append(warns, Warning{
			Code: WarnActuatorCapability, Category: model.CategoryGimbal, ComponentID: set.Gimbal.ID,
			Message: "gimbal capability insufficient for required bandwidth or range",
		})
	}
	return k, warns
}

func fsmOk(a Actuator, req ControlRequirement) bool {
	return a.BandwidthHz >= req.FastBandwidthHz &&
		(req.ResolutionUrad <= 0 || a.ResolutionUrad <= req.ResolutionUrad) &&
		a.RangeMrad >= req.RangeMrad
}

// gimbalOk only checks bandwidth and range; fine resolution is the FSM's job.
func gimbalOk(a Actuator, req ControlRequirement) bool {
	return a.BandwidthHz >= req.CoarseBandwidthHz && a.RangeMrad >= req.RangeMrad
}
