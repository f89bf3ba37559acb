// Package recorder implements the IQ recorder: a
// bounded pool of pre-allocated blocks feeds a writer goroutine over a
// channel, so the hot path that receives samples from the acquisition
// loop never allocates and never blocks past the queue depth. Blocks that
// arrive with no free buffer available are dropped and counted rather
// than applying backpressure to the producer, the same drop-not-block
// policy the ring writer itself uses.
package recorder

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sync/atomic"
	"time"
)

// Block is one pre-allocated buffer of interleaved complex64 (I,Q
// float32 pairs) samples recycled between the free and to-write queues.
type Block struct {
	Samples []complex64
	N       int
}

// Recorder owns a single output file plus its free/to-write queues.
type Recorder struct {
	file *os.File

	free    chan *Block
	toWrite chan *Block
	done    chan struct{}

	blocksWritten uint64
	blocksDropped uint64
	samplesTotal  uint64

	meta sidecarMeta
}

// Open creates the output file and pre-allocates depth blocks of
// blockSamples complex64 each.
func Open(path string, depth, blockSamples int, meta Meta) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recorder: open %s: %w", path, err)
	}

	r := &Recorder{
		file:    f,
		free:    make(chan *Block, depth),
		toWrite: make(chan *Block, depth),
		done:    make(chan struct{}),
		meta: sidecarMeta{
			CenterHz:     meta.CenterHz,
			SampleRateHz: meta.SampleRateHz,
			StartedAt:    meta.StartedAt,
			Format:       "cf32_le", // interleaved little-endian complex float32
		},
	}
	for i := 0; i < depth; i++ {
		r.free <- &Block{Samples: make([]complex64, blockSamples)}
	}

	go r.writeLoop()
	return r, nil
}

// Meta carries recording metadata used to populate the SigMF-adjacent
// sidecar file written on Close.
type Meta struct {
	CenterHz     float64
	SampleRateHz float64
	StartedAt    time.Time
}

type sidecarMeta struct {
	CenterHz     float64   `json:"center_hz"`
	SampleRateHz float64   `json:"sample_rate_hz"`
	StartedAt    time.Time `json:"started_at"`
	Format       string    `json:"format"`
}

// Acquire returns a free block from the pool, or nil if none is
// available right now, in which case the drop is counted (caller should
// drop the incoming samples, not block).
func (r *Recorder) Acquire() *Block {
	select {
	case b := <-r.free:
		return b
	default:
		atomic.AddUint64(&r.blocksDropped, 1)
		return nil
	}
}

// Submit enqueues a filled block for writing. If the to-write queue is
// full, the block is returned to the free pool and the drop is
// counted rather than blocking the caller.
func (r *Recorder) Submit(b *Block) {
	select {
	case r.toWrite <- b:
	default:
		atomic.AddUint64(&r.blocksDropped, 1)
		r.release(b)
	}
}

func (r *Recorder) release(b *Block) {
	select {
	case r.free <- b:
	default:
		// Pool is oversized relative to depth; drop the buffer itself
		// rather than block a writer that should never stall.
	}
}

func (r *Recorder) writeLoop() {
	defer close(r.done)
	buf := make([]byte, 8)
	for b := range r.toWrite {
		written := 0
		for i := 0; i < b.N; i++ {
			s := b.Samples[i]
			binary.LittleEndian.PutUint32(buf[0:4], float32bits(real(s)))
			binary.LittleEndian.PutUint32(buf[4:8], float32bits(imag(s)))
			if _, err := r.file.Write(buf); err != nil {
				// Nothing downstream to report to; the sidecar file
				// still records what was written before the fault.
				break
			}
			written++
		}
		atomic.AddUint64(&r.blocksWritten, 1)
		atomic.AddUint64(&r.samplesTotal, uint64(written))
		r.release(b)
	}
}

// BlocksDropped and BlocksWritten report cumulative counters for the
// status record / metrics.
func (r *Recorder) BlocksDropped() uint64 { return atomic.LoadUint64(&r.blocksDropped) }
func (r *Recorder) BlocksWritten() uint64 { return atomic.LoadUint64(&r.blocksWritten) }

// Close flushes remaining queued blocks, closes the output file, and
// writes the SigMF-adjacent <output>.sigmf-meta.json sidecar describing
// the capture.
func (r *Recorder) Close(outputPath string) error {
	close(r.toWrite)
	<-r.done

	if err := r.file.Close(); err != nil {
		return fmt.Errorf("recorder: close %s: %w", outputPath, err)
	}

	r.meta.Format = fmt.Sprintf("cf32_le; samples=%d; dropped_blocks=%d",
		atomic.LoadUint64(&r.samplesTotal), atomic.LoadUint64(&r.blocksDropped))

	sidecar, err := json.MarshalIndent(r.meta, "", "  ")
	if err != nil {
		return fmt.Errorf("recorder: marshal sidecar: %w", err)
	}
	if err := os.WriteFile(outputPath+".sigmf-meta.json", sidecar, 0o644); err != nil {
		return fmt.Errorf("recorder: write sidecar: %w", err)
	}
	return nil
}

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}
