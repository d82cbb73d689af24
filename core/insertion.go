package core

import "math"

// LossStage is one passive element of the optical path.
type LossStage struct {
	Label       string
	Category    string
	ComponentID string
	LossDb      float64 // non-negative
}

// InsertionChain is the ordered list of lossy stages before and after the
// free-space channel. Stages with zero or absent loss are omitted.
type InsertionChain struct {
	Transmit []LossStage
	Receive  []LossStage
}

// TotalDb is the summed insertion loss of both sides.
func (c InsertionChain) TotalDb() float64 {
	var sum float64
	for _, s := range c.Transmit {
		sum += s.LossDb
	}
	for _, s := range c.Receive {
		sum += s.LossDb
	}
	return sum
}

// BuildInsertionChain walks the selected optics in path order.
func BuildInsertionChain(set ComponentSet) InsertionChain {
	var chain InsertionChain
	add := func(side *[]LossStage, label, category string, p Part, loss float64) {
		if !p.Selected || !(loss > 0) {
			return
		}
		*side = append(*side, LossStage{Label: label, Category: category, ComponentID: p.ID, LossDb: loss})
	}

	add(&chain.Transmit, "Launch collimator", set.Launch.Category, set.Launch.Part, set.Launch.InsertionLossDb)
	add(&chain.Transmit, "Optical isolator", set.Isolator.Category, set.Isolator.Part, set.Isolator.LossDb)
	add(&chain.Transmit, "Beam expander", set.Expander.Category, set.Expander.Part, set.Expander.InsertionLossDb)
	add(&chain.Transmit, "Expanded beam optic", "expanded_beam", set.Expanded.Part, set.Expanded.InsertionLossDb)
	if set.Telescope.Selected {
		add(&chain.Transmit, "TX telescope", "tx_telescope", set.Telescope.Part, TransmissionLossDb(set.Telescope.Throughput))
	}
	add(&chain.Transmit, "Variable attenuator", set.VOA.Category, set.VOA.Part, set.VOA.LossDb)
	add(&chain.Transmit, "Safety shutter", set.Shutter.Category, set.Shutter.Part, set.Shutter.LossDb)
	add(&chain.Transmit, "Dichroic filter", set.Dichroic.Category, set.Dichroic.Part, set.Dichroic.LossDb)

	add(&chain.Receive, "Window", set.Window.Category, set.Window.Part, set.Window.LossDb)
	add(&chain.Receive, "Interference filter", set.InterferenceFilter.Category, set.InterferenceFilter.Part, set.InterferenceFilter.LossDb)
	add(&chain.Receive, "Tap splitter", set.TapSplitter.Category, set.TapSplitter.Part, set.TapSplitter.LossDb)
	if set.LensStack.Selected {
		add(&chain.Receive, "Lens stack", "lens_stack", set.LensStack.Part, TransmissionLossDb(set.LensStack.Transmission))
	}
	if usesArray(set) && set.Array.Count > 0 {
		p := set.Array.Part
		if set.Combiner.Selected && set.Combiner.HasTree {
			p = set.Combiner.Part
		}
		add(&chain.Receive, "Array combiner", "combiner", p, CombinerLossDb(set.Array, set.Combiner))
	}
	return chain
}

// CombinerLossDb is the loss of combining the array elements: the array's
// fixed combiner loss, or base + per_stage·ceil(log2 N) for a combiner tree.
func CombinerLossDb(arr ReceiverArray, comb Combiner) float64 {
	if arr.Count <= 0 {
		return 0
	}
	if comb.Selected && comb.HasTree {
		stages := math.Ceil(math.Log2(float64(arr.Count)))
		return math.Max(comb.BaseILDb+comb.PerStageILDb*stages, 0)
	}
	return math.Max(arr.CombinerILDb, 0)
}
