package core

// Tunables collects the heuristic and numerical constants of the engine.
// Every field has a documented default; zero values are replaced by the
// default in normalize so partially specified YAML stays usable.
type Tunables struct {
	// Beam
	DiffractionFactor       float64 `yaml:"diffraction_factor" json:"diffraction_factor"`                 // divergence ≈ factor·λ/D (full angle)
	DefaultDivergenceMrad   float64 `yaml:"default_divergence_mrad" json:"default_divergence_mrad"`       // no launch optics at all
	DefaultLaunchApertureMm float64 `yaml:"default_launch_aperture_mm" json:"default_launch_aperture_mm"` // collimator without aperture_mm
	MinWaistM               float64 `yaml:"min_waist_m" json:"min_waist_m"`
	DefaultM2               float64 `yaml:"default_m2" json:"default_m2"`

	// Receiver
	DefaultRxApertureMm      float64 `yaml:"default_rx_aperture_mm" json:"default_rx_aperture_mm"`
	DefaultTransimpedanceOhm float64 `yaml:"default_transimpedance_ohm" json:"default_transimpedance_ohm"`
	AltEfficiencyNm          float64 `yaml:"alt_efficiency_nm" json:"alt_efficiency_nm"`               // reference λ for efficiency_1310
	AltEfficiencyWindowNm    float64 `yaml:"alt_efficiency_window_nm" json:"alt_efficiency_window_nm"` // |λ-ref| below this selects it

	// Channel
	ScintillationQ float64 `yaml:"scintillation_q" json:"scintillation_q"`

	// Mechanical tolerance penalty of receiver arrays.
	Mechanical LinearMechanicalPenalty `yaml:"mechanical" json:"mechanical"`

	// Noise
	NoiseBandwidthFactor float64 `yaml:"noise_bandwidth_factor" json:"noise_bandwidth_factor"` // B = factor·bitrate

	// Control
	PointingLossBudgetDb  float64 `yaml:"pointing_loss_budget_db" json:"pointing_loss_budget_db"`
	GreenwoodFactor       float64 `yaml:"greenwood_factor" json:"greenwood_factor"`
	CoarseBandwidthFactor float64 `yaml:"coarse_bandwidth_factor" json:"coarse_bandwidth_factor"`
	FastBandwidthFactor   float64 `yaml:"fast_bandwidth_factor" json:"fast_bandwidth_factor"`
	ResolutionFraction    float64 `yaml:"resolution_fraction" json:"resolution_fraction"` // resolution ≤ fraction·σ_req
	RangeJitterMultiple   float64 `yaml:"range_jitter_multiple" json:"range_jitter_multiple"`

	// Max reach
	ReachSweepSteps    int     `yaml:"reach_sweep_steps" json:"reach_sweep_steps"`
	ReachBisections    int     `yaml:"reach_bisections" json:"reach_bisections"`
	ReachCeilingFactor float64 `yaml:"reach_ceiling_factor" json:"reach_ceiling_factor"`
	ReachMinCeilingM   float64 `yaml:"reach_min_ceiling_m" json:"reach_min_ceiling_m"`
	SweepWorkers       int     `yaml:"sweep_workers" json:"sweep_workers"` // 0 = GOMAXPROCS
}

// DefaultTunables returns the reference constants.
func DefaultTunables() Tunables {
	return Tunables{
		DiffractionFactor:        1.22,
		DefaultDivergenceMrad:    5,
		DefaultLaunchApertureMm:  2,
		MinWaistM:                1e-4,
		DefaultM2:                1,
		DefaultRxApertureMm:      100,
		DefaultTransimpedanceOhm: 1000,
		AltEfficiencyNm:          1310,
		AltEfficiencyWindowNm:    50,
		ScintillationQ:           2,
		Mechanical:               DefaultMechanicalPenalty(),
		NoiseBandwidthFactor:     0.75,
		PointingLossBudgetDb:     1,
		GreenwoodFactor:          0.43,
		CoarseBandwidthFactor:    1.5,
		FastBandwidthFactor:      5,
		ResolutionFraction:       0.2,
		RangeJitterMultiple:      5,
		ReachSweepSteps:          80,
		ReachBisections:          24,
		ReachCeilingFactor:       5,
		ReachMinCeilingM:         20000,
	}
}

// Normalized returns a copy with zero or negative fields replaced by defaults.
func (t Tunables) Normalized() Tunables {
	t.normalize()
	return t
}

func (t *Tunables) normalize() {
	def := DefaultTunables()
	fill := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&t.DiffractionFactor, def.DiffractionFactor)
	fill(&t.DefaultDivergenceMrad, def.DefaultDivergenceMrad)
	fill(&t.DefaultLaunchApertureMm, def.DefaultLaunchApertureMm)
	fill(&t.MinWaistM, def.MinWaistM)
	fill(&t.DefaultM2, def.DefaultM2)
	fill(&t.DefaultRxApertureMm, def.DefaultRxApertureMm)
	fill(&t.DefaultTransimpedanceOhm, def.DefaultTransimpedanceOhm)
	fill(&t.AltEfficiencyNm, def.AltEfficiencyNm)
	fill(&t.AltEfficiencyWindowNm, def.AltEfficiencyWindowNm)
	fill(&t.ScintillationQ, def.ScintillationQ)
	fill(&t.NoiseBandwidthFactor, def.NoiseBandwidthFactor)
	fill(&t.PointingLossBudgetDb, def.PointingLossBudgetDb)
	fill(&t.GreenwoodFactor, def.GreenwoodFactor)
	fill(&t.CoarseBandwidthFactor, def.CoarseBandwidthFactor)
	fill(&t.FastBandwidthFactor, def.FastBandwidthFactor)
	fill(&t.ResolutionFraction, def.ResolutionFraction)
	fill(&t.RangeJitterMultiple, def.RangeJitterMultiple)
	fill(&t.ReachCeilingFactor, def.ReachCeilingFactor)
	fill(&t.ReachMinCeilingM, def.ReachMinCeilingM)
	if t.ReachSweepSteps <= 0 {
		t.ReachSweepSteps = def.ReachSweepSteps
	}
	if t.ReachBisections <= 0 {
		t.ReachBisections = def.ReachBisections
	}
	if t.SweepWorkers < 0 {
		t.SweepWorkers = 0
	}
	t.Mechanical.normalize()
}
