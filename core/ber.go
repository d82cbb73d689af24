package core

import "math"

// BerMapping converts a linear electrical SNR to a bit error probability.
// The mapping carries the detection and modulation assumption.
type BerMapping interface {
	Name() string
	BER(snr float64) float64
}

// OOKMapping is the on-off keying mapping BER = Q(√(SNR/2)).
type OOKMapping struct{}

// Name implements BerMapping.
func (OOKMapping) Name() string { return "ook_q" }

// BER implements BerMapping.
func (OOKMapping) BER(snr float64) float64 {
	return QFunction(math.Sqrt(math.Max(snr, 0) / 2))
}

// BerMappingFunc adapts a function to BerMapping.
type BerMappingFunc func(snr float64) float64

// Name implements BerMapping.
func (BerMappingFunc) Name() string { return "custom" }

// BER implements BerMapping.
func (f BerMappingFunc) BER(snr float64) float64 { return f(snr) }

const qClamp = 14

// QFunction is the Gaussian tail probability using Abramowitz & Stegun
// 26.2.17 (absolute error below 7.5e-8). The argument is clamped to ±14.
func QFunction(x float64) float64 {
	if math.IsNaN(x) {
		return 0.5
	}
	x = clamp(x, -qClamp, qClamp)
	if x < 0 {
		return 1 - QFunction(-x)
	}
	const (
		p  = 0.2316419
		b1 = 0.319381530
		b2 = -0.356563782
		b3 = 1.781477937
		b4 = -1.821255978
		b5 = 1.330274429
	)
	t := 1 / (1 + p*x)
	pdf := math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
	poly := t * (b1 + t*(b2+t*(b3+t*(b4+t*b5))))
	return pdf * poly
}

// HeuristicSlopeDbPerDecade is the dB of margin per decade of BER used by
// the fallback path.
func HeuristicSlopeDbPerDecade(bitrateGbps float64) float64 {
	switch {
	case bitrateGbps <= 0.1:
		return 1.2
	case bitrateGbps <= 1:
		return 1.5
	case bitrateGbps <= 10:
		return 2.0
	default:
		return 2.5
	}
}

// HeuristicBER maps link margin to BER: 1e-3 at 0 dB margin, one decade
// per slope dB, clamped to [1e-15, 1e-1].
func HeuristicBER(marginDb, bitrateGbps float64) float64 {
	if math.IsNaN(marginDb) {
		return BERCeiling
	}
	decades := marginDb / HeuristicSlopeDbPerDecade(bitrateGbps)
	return clampBER(1e-3 * math.Pow(10, -decades))
}

// ApplyFecGain improves a BER by gainDb of margin along the heuristic
// slope. A non-positive gain returns ber unchanged; the result never
// exceeds ber.
func ApplyFecGain(ber, gainDb, bitrateGbps float64) float64 {
	if !(gainDb > 0) {
		return ber
	}
	post := clampBER(ber * math.Pow(10, -gainDb/HeuristicSlopeDbPerDecade(bitrateGbps)))
	return math.Min(post, ber)
}
