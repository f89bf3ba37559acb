// Command recorder captures raw IQ samples from a radio to disk,
// independent of the streaming daemon's spectrum ring.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/cwsl/sdrcore/internal/acquisition"
	"github.com/cwsl/sdrcore/internal/radio"
	"github.com/cwsl/sdrcore/internal/recorder"
)

func main() {
	var (
		freq     = pflag.Float64P("freq", "f", 100_000_000, "center frequency in Hz")
		rate     = pflag.Float64P("rate", "r", 2_000_000, "sample rate in Hz")
		gain     = pflag.Float64P("gain", "g", 20, "gain in dB")
		duration = pflag.DurationP("duration", "d", 10*time.Second, "recording duration, 0 = until interrupted")
		output   = pflag.StringP("output", "o", "capture.cf32", "output file path")
		buffer   = pflag.Int("buffer", 8, "free/to-write queue depth in blocks")
		blockLen = pflag.Int("block-samples", 4096, "samples per block")
	)
	pflag.Parse()

	rd, err := radio.Open(radio.KindSimulated, "", radio.SimulatedConfig{
		Tones:      []radio.Tone{{OffsetHz: 10_000, Amplitude: 0.5}},
		NoiseFloor: 0.02,
	})
	if err != nil {
		log.Fatalf("recorder: open radio: %v", err)
	}
	if _, err := rd.Configure(radio.Config{CenterHz: *freq, SampleRateHz: *rate, GainDB: *gain}); err != nil {
		log.Fatalf("recorder: configure radio: %v", err)
	}

	rec, err := recorder.Open(*output, *buffer, *blockLen, recorder.Meta{
		CenterHz:     *freq,
		SampleRateHz: *rate,
		StartedAt:    time.Now(),
	})
	if err != nil {
		log.Fatalf("recorder: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	loop := acquisition.New(rd, *blockLen, 3*time.Second, *freq)
	blocks, err := loop.Run(ctx)
	if err != nil {
		log.Fatalf("recorder: start acquisition: %v", err)
	}

	for blk := range blocks {
		b := rec.Acquire()
		if b == nil {
			continue
		}
		n := copy(b.Samples, blk.Samples)
		b.N = n
		rec.Submit(b)
	}

	if err := rec.Close(*output); err != nil {
		log.Fatalf("recorder: close: %v", err)
	}
	log.Printf("recorder: wrote %d blocks, dropped %d", rec.BlocksWritten(), rec.BlocksDropped())
}
