// Package window precomputes real-valued FFT window coefficients and the
// coherent-gain scalar used to amplitude-correct a windowed DFT.
package window

import (
	"fmt"
	"math"
)

// Kind identifies a supported window function.
type Kind string

const (
	Rectangular    Kind = "rectangular"
	Hann           Kind = "hann"
	Hamming        Kind = "hamming"
	Blackman       Kind = "blackman"
	BlackmanHarris Kind = "blackman-harris"
)

// blackmanHarris4 are the 4-term Blackman-Harris coefficients for -92 dB
// sidelobes.
var blackmanHarris4 = [4]float64{0.35875, 0.48829, 0.14128, 0.01168}

// Table holds precomputed coefficients for one (kind, N) pair plus the
// coherent gain CG = sum(coeffs) / N used for amplitude correction.
type Table struct {
	Kind   Kind
	N      int
	Coeffs []float64
	CG     float64
}

// Build computes a window table for the given kind and length. Callers
// should cache the result and only rebuild when N or kind changes.
func Build(kind Kind, n int) (*Table, error) {
	if n <= 0 {
		return nil, fmt.Errorf("window: invalid length %d", n)
	}

	coeffs := make([]float64, n)
	switch kind {
	case Rectangular:
		for i := range coeffs {
			coeffs[i] = 1.0
		}
	case Hann:
		for i := range coeffs {
			coeffs[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	case Hamming:
		for i := range coeffs {
			coeffs[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}
	case Blackman:
		for i := range coeffs {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			coeffs[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		}
	case BlackmanHarris:
		a0, a1, a2, a3 := blackmanHarris4[0], blackmanHarris4[1], blackmanHarris4[2], blackmanHarris4[3]
		for i := range coeffs {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			coeffs[i] = a0 - a1*math.Cos(x) + a2*math.Cos(2*x) - a3*math.Cos(3*x)
		}
	default:
		return nil, fmt.Errorf("window: unknown kind %q", kind)
	}

	// n == 1 would divide by zero above; guard explicitly instead of
	// special-casing every branch.
	if n == 1 {
		coeffs[0] = 1.0
	}

	sum := 0.0
	for _, c := range coeffs {
		sum += c
	}

	return &Table{
		Kind:   kind,
		N:      n,
		Coeffs: coeffs,
		CG:     sum / float64(n),
	}, nil
}

// Apply multiplies src (length >= N) by the window coefficients into dst.
func (t *Table) Apply(dst, src []complex128) {
	for i := 0; i < t.N; i++ {
		dst[i] = src[i] * complex(t.Coeffs[i], 0)
	}
}
