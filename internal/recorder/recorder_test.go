package recorder

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenAcquireSubmitClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.cf32")

	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r, err := Open(path, 4, 8, Meta{CenterHz: 100e6, SampleRateHz: 2e6, StartedAt: started})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	b := r.Acquire()
	if b == nil {
		t.Fatal("Acquire returned nil from a freshly opened pool")
	}
	b.N = 3
	b.Samples[0] = complex(1, -1)
	b.Samples[1] = complex(0.5, 0.25)
	b.Samples[2] = complex(-1, 0)
	r.Submit(b)

	if err := r.Close(path); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if r.BlocksWritten() != 1 {
		t.Errorf("BlocksWritten = %d, want 1", r.BlocksWritten())
	}
	if r.BlocksDropped() != 0 {
		t.Errorf("BlocksDropped = %d, want 0", r.BlocksDropped())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) != 3*8 {
		t.Fatalf("file length = %d, want %d", len(data), 3*8)
	}
	gotRe := math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	gotIm := math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	if gotRe != 1 || gotIm != -1 {
		t.Errorf("first sample = (%v, %v), want (1, -1)", gotRe, gotIm)
	}

	sidecarRaw, err := os.ReadFile(path + ".sigmf-meta.json")
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	var meta sidecarMeta
	if err := json.Unmarshal(sidecarRaw, &meta); err != nil {
		t.Fatalf("unmarshal sidecar: %v", err)
	}
	if meta.CenterHz != 100e6 || meta.SampleRateHz != 2e6 {
		t.Errorf("sidecar meta = %+v", meta)
	}
	if !meta.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", meta.StartedAt, started)
	}
}

func TestAcquireReturnsNilWhenPoolExhausted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.cf32")
	r, err := Open(path, 1, 4, Meta{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close(path)

	b := r.Acquire()
	if b == nil {
		t.Fatal("expected a block from the single-depth pool")
	}
	if got := r.Acquire(); got != nil {
		t.Error("expected nil from an exhausted pool")
	}

	// Submitting returns the block to free once written, but without
	// waiting for the async writer we can't assert availability here;
	// just confirm Submit doesn't block or panic on a full-depth queue.
	b.N = 0
	r.Submit(b)
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.cf32")
	r, err := Open(path, 2, 4, Meta{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	// Fill the to-write queue directly by submitting more blocks than
	// the writer goroutine can possibly drain before the next Submit.
	blocks := make([]*Block, 0, 3)
	for i := 0; i < 3; i++ {
		b := r.Acquire()
		if b == nil {
			b = &Block{Samples: make([]complex64, 4)}
		}
		b.N = 1
		blocks = append(blocks, b)
	}
	for _, b := range blocks {
		r.Submit(b)
	}

	if err := r.Close(path); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.BlocksWritten()+r.BlocksDropped() == 0 {
		t.Error("expected some combination of written/dropped blocks")
	}
}
