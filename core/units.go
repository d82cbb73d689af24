package core

import "math"

// Physical constants.
const (
	ElementaryCharge = 1.602176634e-19 // C
)

// Numeric floors used to keep every evaluation finite.
const (
	minTransmission    = 1e-6
	minCaptureFraction = 1e-9
	minCouplingLinear  = 1e-12
	minBeamRadiusM     = 1e-9
	minNoiseCurrentA   = 1e-18

	BERFloor   = 1e-15
	BERCeiling = 1e-1
)

// DbToLinear converts a power ratio in dB to linear.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/10)
}

// LinearToDb converts a linear power ratio to dB, flooring the input.
func LinearToDb(lin, floor float64) float64 {
	return 10 * math.Log10(math.Max(lin, floor))
}

// DbmToWatts converts optical power in dBm to watts.
func DbmToWatts(dbm float64) float64 {
	return 1e-3 * DbToLinear(dbm)
}

// TransmissionLossDb converts a transmission fraction (0..1) to a
// non-negative loss in dB.
func TransmissionLossDb(tau float64) float64 {
	tau = clamp(tau, minTransmission, 1)
	return -10 * math.Log10(tau)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func clampBER(ber float64) float64 {
	return clamp(ber, BERFloor, BERCeiling)
}

func nmToM(nm float64) float64     { return nm * 1e-9 }
func mmToM(mm float64) float64     { return mm * 1e-3 }
func mradToRad(mr float64) float64 { return mr * 1e-3 }

func waveNumber(lambdaM float64) float64 {
	return 2 * math.Pi / lambdaM
}
