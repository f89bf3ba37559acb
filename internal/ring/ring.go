// Package ring implements the writer side of the lock-free SPMC shared
// memory ring: a named region under /dev/shm holding one
// fixed header plus R frame slots. Readers (package ringreader) map the
// same region independently.
//
// Synchronization is a single 64-bit sequence counter: the writer stores
// write_index with release ordering strictly after the payload write
// completes; readers load it with acquire ordering. Go's atomic
// load/store already provide the happens-before edge this requires, so
// no mutex or condition variable is used on the hot path.
package ring

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/cwsl/sdrcore/internal/frame"
)

// shmDir is the conventional path prefix for named shared memory on
// Linux; other platforms would substitute their own equivalent.
const shmDir = "/dev/shm"

// Ring is the writer handle for one shared-memory spectrum ring.
type Ring struct {
	name   string
	path   string
	file   *os.File
	data   []byte
	stride uint32
	n      uint32
	r      uint32
	c      uint32

	writeIdx *uint64 // points into data at frame.WriteIndexOffset
}

// Config describes the dimensions of a ring to create.
type Config struct {
	Name         string
	Slots        uint32 // R
	FFTSize      uint32 // N
	Channels     uint32 // C, 1 or 2
	SampleRateHz float64
}

// Create allocates header + R*stride bytes of shared memory at
// /dev/shm/<name>, writes the fixed header fields, and sets streaming=true.
// Resize is not supported in place: changing N or C requires Close then
// Create.
func Create(cfg Config) (*Ring, error) {
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("ring: channel count must be 1 or 2, got %d", cfg.Channels)
	}
	if cfg.Slots == 0 {
		return nil, fmt.Errorf("ring: slot count must be positive")
	}

	stride := frame.FrameStride(int(cfg.FFTSize), int(cfg.Channels))
	total := int64(frame.RingHeaderSize) + int64(stride)*int64(cfg.Slots)

	path := shmDir + "/" + cfg.Name
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ring: create %s: %w", path, err)
	}
	if err := f.Truncate(total); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ring: truncate %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("ring: mmap %s: %w", path, err)
	}

	frame.EncodeRingHeader(data, frame.RingHeader{
		RingSize:     cfg.Slots,
		FFTSize:      cfg.FFTSize,
		ChannelCount: cfg.Channels,
		FrameStride:  stride,
		SampleRateHz: cfg.SampleRateHz,
		Streaming:    true,
	})

	wi := (*uint64)(unsafe.Pointer(&data[frame.WriteIndexOffset]))
	atomic.StoreUint64(wi, 0)

	return &Ring{
		name:     cfg.Name,
		path:     path,
		file:     f,
		data:     data,
		stride:   stride,
		n:        cfg.FFTSize,
		r:        cfg.Slots,
		c:        cfg.Channels,
		writeIdx: wi,
	}, nil
}

// Slots, FFTSize and Channels report the ring's fixed dimensions.
func (rg *Ring) Slots() uint32    { return rg.r }
func (rg *Ring) FFTSize() uint32  { return rg.n }
func (rg *Ring) Channels() uint32 { return rg.c }

// WriteIndex returns the current write index (useful for tests and the
// status thread's frame counter).
func (rg *Ring) WriteIndex() uint64 {
	return atomic.LoadUint64(rg.writeIdx)
}

// Frame is one spectrum frame ready to publish: a header plus one
// []float32 payload slice per channel, each of length FFTSize.
type Frame struct {
	Header  frame.SpectrumHeader
	Payload [][]float32
}

// Publish copies f into the next slot and release-stores the advanced
// write index. It never blocks: only memory copies and a single atomic
// store.
func (rg *Ring) Publish(f Frame) uint64 {
	seq := atomic.LoadUint64(rg.writeIdx)
	slot := seq % uint64(rg.r)
	slotOff := int64(frame.RingHeaderSize) + int64(slot)*int64(rg.stride)

	f.Header.Seq = seq
	hdrBuf := rg.data[slotOff : slotOff+frame.SlotHeaderSize]
	frame.EncodeSpectrumHeader(hdrBuf, f.Header)

	payloadBuf := rg.data[slotOff+frame.SlotHeaderSize : slotOff+int64(rg.stride)]
	frame.EncodePayload(payloadBuf, int(rg.c), int(rg.n), f.Payload)

	// Release-store: the payload write above is ordered-before this
	// store from the writer's own program order, and Go's atomic
	// store/load pair gives readers the matching acquire edge.
	atomic.StoreUint64(rg.writeIdx, seq+1)
	return seq
}

// SetGPSLocked updates the reference-lock flag in the header. This is
// not part of the hot path and is safe to call between publishes.
func (rg *Ring) SetGPSLocked(locked bool) {
	if locked {
		rg.data[frame.GPSLockedOffset] = 1
	} else {
		rg.data[frame.GPSLockedOffset] = 0
	}
}

// SetStreaming updates the streaming flag in the header without
// touching the mapping, so a STOP request can announce end-of-stream to
// readers immediately, ahead of the eventual Close.
func (rg *Ring) SetStreaming(streaming bool) {
	frame.SetStreaming(rg.data, streaming)
}

// Streaming reports the header's current streaming flag.
func (rg *Ring) Streaming() bool {
	return frame.IsStreaming(rg.data)
}

// Close announces shutdown (streaming=false) and unlinks the shared
// memory object. Any reader still attached will observe end-of-stream on
// its next poll.
func (rg *Ring) Close() error {
	frame.SetStreaming(rg.data, false)
	var errs []error
	if err := unix.Munmap(rg.data); err != nil {
		errs = append(errs, err)
	}
	if err := rg.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := os.Remove(rg.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("ring: close %s: %v", rg.name, errs)
	}
	return nil
}
