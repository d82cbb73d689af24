package core

import (
	"github.com/signalsfoundry/fsoc-linkbudget/model"
)

// rec builds a catalog record from alternating key/value pairs.
func rec(category, id string, kv ...any) model.ComponentRecord {
	attrs := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs[kv[i].(string)] = kv[i+1]
	}
	return model.NewComponentRecord(category, id, attrs)
}

func catalogOf(records ...model.ComponentRecord) model.Catalog {
	cat := model.Catalog{}
	for _, r := range records {
		cat[r.Category] = append(cat[r.Category], r)
	}
	return cat
}

func ptr(v float64) *float64 { return &v }

// testConfig is a clear-air 1 Gb/s link without FEC or alignment hardware
// requirements beyond the defaults.
func testConfig(distanceM float64) model.LinkConfiguration {
	cfg := model.DefaultLinkConfiguration()
	cfg.Global.DistanceM = distanceM
	cfg.Global.FECModel = "none"
	cfg.Channel.AtmosphericAlphaDbPerKm = ptr(0.2)
	cfg.Channel.Cn2 = ptr(1e-14)
	return cfg
}

func resolve(cat model.Catalog, cfg model.LinkConfiguration) ComponentSet {
	return ResolveComponents(cat, nil, cfg, DefaultTunables())
}

// basicCatalog is a 0 dBm source and a 100 mm objective with a PIN ROSA
// and TIA, enough for the noise model to run.
func basicCatalog() model.Catalog {
	return catalogOf(
		rec(model.CategoryTOSA, "tx", "optical_power_dbm", 0.0, "supports_bitrates", []any{1.0, 10.0}),
		rec(model.CategoryCollimator, "col", "il_db", 0.3, "output_divergence_mrad", 1.0),
		rec(model.CategoryReceiverObjective, "obj", "aperture_mm", 100.0, "efficiency", 0.9),
		rec(model.CategoryROSA, "rx", "responsivity_a_w", 0.9, "sensitivity_dbm", map[string]any{"1": -28.0}),
		rec(model.CategoryTIA, "tia", "zt_ohms", 2000.0, "input_noise_A_sqrtHz", 1e-11),
		rec(model.CategoryFEC, "fec-rs", "coding_gain_db", 6.0, "overhead_pct", 7.0),
	)
}
