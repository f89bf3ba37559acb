// Package scanner implements the frequency scanner:
// step through a frequency list, settle, dwell while collecting blocks,
// average K spectra per step, and stream JSON results as each step
// completes.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/cwsl/sdrcore/internal/acquisition"
	"github.com/cwsl/sdrcore/internal/dsp"
	"github.com/cwsl/sdrcore/internal/window"
)

// ErrScanCancelled is returned by Scan when abort fires between steps.
// The caller still has every Result already written to w for the steps
// that completed before cancellation; the result set is truncated, not
// wrong.
var ErrScanCancelled = errors.New("scanner: cancelled")

// Step describes one frequency to visit.
type Step struct {
	CenterHz float64
}

// Plan is a full scan request.
type Plan struct {
	Steps      []Step
	SampleRate float64
	FFTSize    int
	Averages   int
	Window     window.Kind
	Settle     time.Duration
	Dwell      time.Duration
}

// Result is one step's averaged spectrum, the JSON shape streamed to
// the caller.
type Result struct {
	ScanID       string    `json:"scan_id"`
	StepIndex    int       `json:"step_index"`
	CenterHz     float64   `json:"center_hz"`
	TimestampS   float64   `json:"timestamp_s"`
	PeakBin      int       `json:"peak_bin"`
	PeakDBFS     float32   `json:"peak_dbfs"`
	MaxPeakDBFS  float32   `json:"max_peak_dbfs"`
	AvgTotalDBFS float32   `json:"avg_total_dbfs"`
	ValidCount   int       `json:"valid_count"`
	PeakHz       float64   `json:"peak_hz"`
	Spectrum     []float32 `json:"spectrum"`
}

// Scan runs plan, retuning loop between steps and reading raw blocks
// from blocks (the acquisition loop's own output channel, already
// started by the caller via loop.Run). It writes one JSON object per
// line to w as each step completes, and aborts early with
// ErrScanCancelled if abort is non-zero when the next step is about to
// start.
func Scan(ctx context.Context, loop *acquisition.Loop, blocks <-chan acquisition.Block, plan Plan, w io.Writer, abort *int32) (string, error) {
	if len(plan.Steps) == 0 {
		return "", fmt.Errorf("scanner: plan has no steps")
	}
	if plan.Averages <= 0 {
		plan.Averages = 1
	}
	if plan.Settle <= 0 {
		plan.Settle = 50 * time.Millisecond
	}

	scanID := uuid.NewString()

	eng, err := dsp.New(plan.FFTSize, plan.Window, true)
	if err != nil {
		return scanID, fmt.Errorf("scanner: dsp engine: %w", err)
	}

	enc := json.NewEncoder(w)

	for i, step := range plan.Steps {
		if abort != nil && atomic.LoadInt32(abort) != 0 {
			return scanID, ErrScanCancelled
		}

		if _, err := loop.Submit(ctx, acquisition.Command{Kind: acquisition.CmdSetFreq, Value: step.CenterHz}); err != nil {
			return scanID, fmt.Errorf("scanner: tune step %d: %w", i, err)
		}

		select {
		case <-time.After(plan.Settle):
		case <-ctx.Done():
			return scanID, ctx.Err()
		}

		stepResult, err := collectAverage(ctx, blocks, eng, step, plan)
		if err != nil {
			return scanID, fmt.Errorf("scanner: collect step %d: %w", i, err)
		}
		if stepResult.collected == 0 {
			continue
		}

		// Recompute the peak from the averaged spectrum so the reported
		// peak reflects K-average noise reduction, not a single block's
		// instantaneous peak; tie-break keeps the lowest bin index.
		peakBin := 0
		peakDBFS := stepResult.avg[0]
		for b := 1; b < len(stepResult.avg); b++ {
			if stepResult.avg[b] > peakDBFS {
				peakDBFS = stepResult.avg[b]
				peakBin = b
			}
		}

		res := Result{
			ScanID:       scanID,
			StepIndex:    i,
			CenterHz:     step.CenterHz,
			TimestampS:   float64(time.Now().UnixNano()) / 1e9,
			PeakBin:      peakBin,
			PeakDBFS:     peakDBFS,
			MaxPeakDBFS:  stepResult.maxPeakDBFS,
			AvgTotalDBFS: stepResult.avgTotalDBFS,
			ValidCount:   stepResult.collected,
			PeakHz:       dsp.BinFrequency(peakBin, plan.FFTSize, step.CenterHz, plan.SampleRate),
			Spectrum:     stepResult.avg,
		}
		if err := enc.Encode(res); err != nil {
			return scanID, fmt.Errorf("scanner: encode step %d: %w", i, err)
		}
	}

	return scanID, nil
}

// stepAverage is the internal accumulation result for one step: the
// time-averaged spectrum plus the per-block extremes collectAverage
// tracked while building it.
type stepAverage struct {
	avg          []float32
	collected    int
	maxPeakDBFS  float32
	avgTotalDBFS float32
}

// collectAverage reads up to plan.Averages blocks, bounded by
// plan.Dwell, transforming and accumulating each into a running sum. It
// also tracks the strongest single-block peak seen (maxPeakDBFS, before
// K-average noise reduction smooths it down) and the mean wideband
// power across the blocks collected (avgTotalDBFS).
func collectAverage(ctx context.Context, blocks <-chan acquisition.Block, eng *dsp.Engine, step Step, plan Plan) (stepAverage, error) {
	accum := make([]float64, plan.FFTSize)
	out := make([]float32, plan.FFTSize)
	complexBlock := make([]complex128, plan.FFTSize)

	var dwellTimer <-chan time.Time
	if plan.Dwell > 0 {
		t := time.NewTimer(plan.Dwell)
		defer t.Stop()
		dwellTimer = t.C
	}

	var maxPeakDBFS float32
	var totalDBFSSum float64
	collected := 0
	for collected < plan.Averages {
		select {
		case blk, ok := <-blocks:
			if !ok {
				return stepAverage{collected: collected}, fmt.Errorf("acquisition loop closed")
			}
			for i, s := range blk.Samples {
				complexBlock[i] = complex(float64(real(s)), float64(imag(s)))
			}
			_, peakDBFS := eng.Transform(complexBlock, out, step.CenterHz, plan.SampleRate)
			if collected == 0 || peakDBFS > maxPeakDBFS {
				maxPeakDBFS = peakDBFS
			}
			totalDBFSSum += blockTotalDBFS(out)
			for b := range out {
				accum[b] += float64(out[b])
			}
			collected++
		case <-dwellTimer:
			return finishStep(accum, collected, maxPeakDBFS, totalDBFSSum), nil
		case <-ctx.Done():
			return stepAverage{collected: collected}, ctx.Err()
		}
	}
	return finishStep(accum, collected, maxPeakDBFS, totalDBFSSum), nil
}

// blockTotalDBFS converts a block's per-bin dBFS values back to linear
// power, sums across the band, and returns the wideband total in dBFS.
func blockTotalDBFS(binsDBFS []float32) float64 {
	var total float64
	for _, db := range binsDBFS {
		total += math.Pow(10, float64(db)/10)
	}
	return 10 * math.Log10(total)
}

func finishStep(accum []float64, collected int, maxPeakDBFS float32, totalDBFSSum float64) stepAverage {
	if collected == 0 {
		return stepAverage{}
	}
	avg := make([]float32, len(accum))
	for b := range avg {
		avg[b] = float32(accum[b] / float64(collected))
	}
	return stepAverage{
		avg:          avg,
		collected:    collected,
		maxPeakDBFS:  maxPeakDBFS,
		avgTotalDBFS: float32(totalDBFSSum / float64(collected)),
	}
}

func finish(accum []float64, collected int) []float32 {
	if collected == 0 {
		return nil
	}
	avg := make([]float32, len(accum))
	for b := range avg {
		avg[b] = float32(accum[b] / float64(collected))
	}
	return avg
}
