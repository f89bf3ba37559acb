// Command scanner sweeps a frequency range and streams JSON spectrum
// results to stdout.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/cwsl/sdrcore/internal/acquisition"
	"github.com/cwsl/sdrcore/internal/radio"
	"github.com/cwsl/sdrcore/internal/scanner"
	"github.com/cwsl/sdrcore/internal/window"
)

func main() {
	var (
		start     = pflag.Float64("start", 88_000_000, "sweep start frequency in Hz")
		stop      = pflag.Float64("stop", 108_000_000, "sweep stop frequency in Hz")
		step      = pflag.Float64("step", 200_000, "sweep step in Hz")
		rate      = pflag.Float64P("rate", "r", 2_000_000, "sample rate in Hz")
		gain      = pflag.Float64P("gain", "g", 20, "gain in dB")
		fftSize   = pflag.Int("fft-size", 4096, "FFT size")
		averages  = pflag.Int("averages", 4, "spectra averaged per step")
		windowArg = pflag.String("window", string(window.Hann), "window function")
	)
	pflag.Parse()

	if *stop < *start || *step <= 0 {
		log.Fatalf("scanner: invalid sweep range [%g, %g] step %g", *start, *stop, *step)
	}

	var steps []scanner.Step
	for f := *start; f <= *stop; f += *step {
		steps = append(steps, scanner.Step{CenterHz: f})
	}

	rd, err := radio.Open(radio.KindSimulated, "", radio.SimulatedConfig{
		Tones:      []radio.Tone{{OffsetHz: 0, Amplitude: 0.3}},
		NoiseFloor: 0.02,
	})
	if err != nil {
		log.Fatalf("scanner: open radio: %v", err)
	}
	if _, err := rd.Configure(radio.Config{CenterHz: steps[0].CenterHz, SampleRateHz: *rate, GainDB: *gain}); err != nil {
		log.Fatalf("scanner: configure radio: %v", err)
	}

	ctx, stopSig := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSig()

	loop := acquisition.New(rd, *fftSize, 3*time.Second, steps[0].CenterHz)
	blocks, err := loop.Run(ctx)
	if err != nil {
		log.Fatalf("scanner: start acquisition: %v", err)
	}

	var abort int32
	scanID, err := scanner.Scan(ctx, loop, blocks, scanner.Plan{
		Steps:      steps,
		SampleRate: *rate,
		FFTSize:    *fftSize,
		Averages:   *averages,
		Window:     window.Kind(*windowArg),
		Settle:     50 * time.Millisecond,
		Dwell:      100 * time.Millisecond,
	}, os.Stdout, &abort)
	if err != nil {
		log.Fatalf("scanner: scan %s: %v", scanID, err)
	}
}
