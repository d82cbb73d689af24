package model

// Catalog categories understood by the engine. Catalogs may carry other
// categories; they are kept for KPIs and compatibility checks but do not
// enter the link budget.
const (
	CategoryTOSA              = "tosa"
	CategoryTOSAType          = "tosa_type"
	CategoryCollimator        = "collimator"
	CategoryAsphericCol       = "aspheric_collimator"
	CategoryGRINCol           = "grin_collimator"
	CategoryBeamExpander      = "beam_expander"
	CategoryExpandedBeam      = "expanded_beam"
	CategoryTxTelescope       = "tx_telescope"
	CategoryIsolator          = "optical_isolator"
	CategoryVOA               = "voa"
	CategoryShutter           = "safety_shutter"
	CategoryDichroic          = "filter_dichroic"
	CategoryTapSplitter       = "tap_splitter"
	CategoryInterferenceFilt  = "interference_filter"
	CategoryWindow            = "window"
	CategoryLensStack         = "lens_stack"
	CategoryReceiverObjective = "receiver_objective"
	CategoryReceiverArray     = "receiver_array"
	CategoryCombiner          = "combiner"
	CategoryROSA              = "rosa"
	CategoryPhotodiode        = "photodiode"
	CategoryTIA               = "tia"
	CategoryTIAModel          = "tia_model"
	CategoryLimitingAmp       = "la_model"
	CategoryLACDR             = "la_cdr"
	CategoryCDR               = "cdr_model"
	CategoryFEC               = "fec"
	CategoryFSM               = "fsm"
	CategoryGimbal            = "gimbal"
	CategorySensorQuad        = "sensor_quad"
	CategoryPilotInjector     = "pilot_injector"
	CategoryMount             = "optomech_mount"
	CategoryAlignLaser        = "align_laser"
)

// Catalog maps a category name to its ordered list of records. The first
// record of a category is the implicit selection.
type Catalog map[string][]ComponentRecord

// Selection maps a category name to the chosen record ID.
type Selection map[string]string

// Find returns the record with the given ID in a category.
func (c Catalog) Find(category, id string) (ComponentRecord, bool) {
	for _, rec := range c[category] {
		if rec.ID == id {
			return rec, true
		}
	}
	return ComponentRecord{}, false
}

// Selected returns the record chosen for a category: the explicitly
// selected ID when it exists, else the first record. The boolean is false
// when the category is absent or empty.
func (c Catalog) Selected(category string, sel Selection) (ComponentRecord, bool) {
	records := c[category]
	if len(records) == 0 {
		return ComponentRecord{}, false
	}
	if id, ok := sel[category]; ok && id != "" {
		if rec, found := c.Find(category, id); found {
			return rec, true
		}
	}
	return records[0], true
}
