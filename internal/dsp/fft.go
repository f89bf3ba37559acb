// Package dsp turns one block of complex baseband samples into a shifted
// dBFS power spectrum, reusing an FFT plan across calls the way
// audio_extensions/morse and audio_extensions/ft8 reuse a gonum
// *fourier.FFT for repeated spectral analysis.
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/cwsl/sdrcore/internal/window"
)

// epsilon prevents log10(0) = -Inf; any bin below it is clamped.
const epsilon = 1e-20

// Engine is a reusable complex-to-complex FFT plan for a fixed size N. It
// is not safe for concurrent use by multiple goroutines; the streaming
// daemon gives each DSP thread its own Engine.
type Engine struct {
	n         int
	plan      *fourier.CmplxFFT
	win       *window.Table
	corrected bool

	windowed []complex128
	coeffs   []complex128
}

// New builds an Engine for FFT size n using the given window kind. When
// applyCoherentGain is true the streaming path divides by (CG*N)^2 the
// same way the scanner always does.
func New(n int, kind window.Kind, applyCoherentGain bool) (*Engine, error) {
	if n <= 0 || n&(n-1) != 0 {
		return nil, fmt.Errorf("dsp: fft size %d must be a positive power of two", n)
	}
	win, err := window.Build(kind, n)
	if err != nil {
		return nil, err
	}
	return &Engine{
		n:         n,
		plan:      fourier.NewCmplxFFT(n),
		win:       win,
		corrected: applyCoherentGain,
		windowed:  make([]complex128, n),
		coeffs:    make([]complex128, n),
	}, nil
}

// N returns the configured FFT size.
func (e *Engine) N() int { return e.n }

// Rebuild replaces the window table in place when the window kind changes
// without reallocating the FFT plan.
func (e *Engine) Rebuild(kind window.Kind) error {
	win, err := window.Build(kind, e.n)
	if err != nil {
		return err
	}
	e.win = win
	return nil
}

// Transform applies the window, forward DFT, magnitude-squared, fftshift,
// coherent-gain correction and dBFS conversion to block (which must
// contain at least N samples), writing N dBFS values into out and
// returning the peak bin/value. Never errors.
func (e *Engine) Transform(block []complex128, out []float32, centerHz, sampleRate float64) (peakBin int, peakDBFS float32) {
	n := e.n
	e.win.Apply(e.windowed, block[:n])

	coeffs := e.plan.Coefficients(e.coeffs, e.windowed)

	correction := 1.0
	if e.corrected {
		denom := e.win.CG * float64(n)
		correction = 1.0 / (denom * denom)
	}

	half := n / 2
	for i := 0; i < n; i++ {
		c := coeffs[i]
		mag2 := real(c)*real(c) + imag(c)*imag(c)
		mag2 *= correction
		if mag2 < epsilon {
			mag2 = epsilon
		}
		db := 10 * math.Log10(mag2+epsilon)

		// fftshift: bin i of the raw DFT lands at shifted index
		// (i - half) mod n, so index 0 of the shifted output
		// corresponds to center - sampleRate/2.
		shifted := i - half
		if shifted < 0 {
			shifted += n
		}
		out[shifted] = float32(db)
	}

	// Scan the shifted payload for the peak so ties break toward the
	// lowest bin index, matching the scanner's tie-break rule.
	peakBin = 0
	peakDBFS = out[0]
	for i := 1; i < n; i++ {
		if out[i] > peakDBFS {
			peakDBFS = out[i]
			peakBin = i
		}
	}

	return peakBin, peakDBFS
}

// BinFrequency returns the RF frequency represented by bin index i of a
// Transform output for the given center frequency and sample rate.
func BinFrequency(i, n int, centerHz, sampleRate float64) float64 {
	df := sampleRate / float64(n)
	return centerHz - sampleRate/2 + float64(i)*df
}
