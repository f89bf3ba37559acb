// Package ringreader implements the non-owning consumer side of the
// shared-memory spectrum ring: attach, poll, detect
// resync/end-of-stream, detach. It never mutates the writer's state.
package ringreader

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/cwsl/sdrcore/internal/frame"
)

const shmDir = "/dev/shm"

// EventKind distinguishes the outcomes of a poll/tick.
type EventKind int

const (
	EventNone EventKind = iota
	EventFrame
	EventResync
	EventEndOfStream
)

// Event is returned by Next for each frame or condition observed.
type Event struct {
	Kind   EventKind
	Frame  Frame
	Cursor uint64
}

// Frame mirrors ring.Frame for the reader side.
type Frame struct {
	Header  frame.SpectrumHeader
	Payload [][]float32
}

// Reader attaches to an existing ring by name and polls it.
type Reader struct {
	name   string
	path   string
	file   *os.File
	data   []byte
	stride uint32
	n      uint32
	r      uint32
	c      uint32

	writeIdx *uint64
	cursor   uint64
}

// Attach maps the named ring and validates its header. Dimension
// mismatches (a stale or resized mapping) are reported as an error so
// the caller can refuse rather than silently misreading.
func Attach(name string, wantFFTSize, wantChannels uint32) (*Reader, error) {
	path := shmDir + "/" + name
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ringreader: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ringreader: stat %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ringreader: mmap %s: %w", path, err)
	}

	hdr, ok := frame.DecodeRingHeader(data)
	if !ok {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("ringreader: %s: bad magic/version", path)
	}
	if wantFFTSize != 0 && hdr.FFTSize != wantFFTSize {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("ringreader: %s: fft size mismatch, want %d got %d", path, wantFFTSize, hdr.FFTSize)
	}
	if wantChannels != 0 && hdr.ChannelCount != wantChannels {
		unix.Munmap(data)
		f.Close()
		return nil, fmt.Errorf("ringreader: %s: channel count mismatch, want %d got %d", path, wantChannels, hdr.ChannelCount)
	}

	wi := (*uint64)(unsafe.Pointer(&data[frame.WriteIndexOffset]))

	r := &Reader{
		name:     name,
		path:     path,
		file:     f,
		data:     data,
		stride:   hdr.FrameStride,
		n:        hdr.FFTSize,
		r:        hdr.RingSize,
		c:        hdr.ChannelCount,
		writeIdx: wi,
	}
	// Latest-first policy: a freshly attached reader starts at the
	// current write index, not at zero.
	r.cursor = atomic.LoadUint64(wi)
	return r, nil
}

// Cursor returns the reader's current sequence position.
func (r *Reader) Cursor() uint64 { return r.cursor }

// Next reads up to maxFrames new frames in one tick. It returns a
// resync event (with the cursor snapped to write_index-1) if the reader
// fell more than R frames behind, and an end-of-stream event if the
// header's streaming flag is false or the magic no longer validates
// (the writer shrank or unlinked the mapping).
func (r *Reader) Next(maxFrames int) ([]Event, error) {
	if _, ok := frame.DecodeRingHeader(r.data); !ok {
		return []Event{{Kind: EventEndOfStream, Cursor: r.cursor}}, nil
	}
	if !frame.IsStreaming(r.data) {
		return []Event{{Kind: EventEndOfStream, Cursor: r.cursor}}, nil
	}

	writeIdx := atomic.LoadUint64(r.writeIdx)
	if writeIdx == r.cursor {
		return nil, nil
	}

	lag := writeIdx - r.cursor
	var events []Event
	if lag > uint64(r.r) {
		r.cursor = writeIdx - 1
		events = append(events, Event{Kind: EventResync, Cursor: r.cursor})
		lag = 1
	}

	count := lag
	if count > uint64(maxFrames) {
		count = uint64(maxFrames)
	}

	for i := uint64(0); i < count; i++ {
		f, err := r.readSlot(r.cursor)
		if err != nil {
			return events, err
		}
		events = append(events, Event{Kind: EventFrame, Frame: f, Cursor: r.cursor})
		r.cursor++
	}

	return events, nil
}

func (r *Reader) readSlot(seq uint64) (Frame, error) {
	slot := seq % uint64(r.r)
	off := int64(frame.RingHeaderSize) + int64(slot)*int64(r.stride)

	hdrBuf := r.data[off : off+frame.SlotHeaderSize]
	hdr := frame.DecodeSpectrumHeader(hdrBuf)

	payload := make([][]float32, r.c)
	for c := range payload {
		payload[c] = make([]float32, r.n)
	}
	payloadBuf := r.data[off+frame.SlotHeaderSize : off+int64(r.stride)]
	frame.DecodePayload(payloadBuf, int(r.c), int(r.n), payload)

	return Frame{Header: hdr, Payload: payload}, nil
}

// Detach unmaps the region and closes the file descriptor. It does not
// remove the shared memory object — that is the writer's responsibility
// (ring.Close).
func (r *Reader) Detach() error {
	if err := unix.Munmap(r.data); err != nil {
		r.file.Close()
		return fmt.Errorf("ringreader: munmap %s: %w", r.path, err)
	}
	return r.file.Close()
}
