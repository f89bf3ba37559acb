// Package daemon wires together acquisition, DSP, the shared ring, the
// control socket and the status heartbeat into the long-running
// streaming process. Thread lifecycle uses an errgroup, and shutdown
// follows a signal-then-graceful-stop sequence.
package daemon

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwsl/sdrcore/internal/acquisition"
	"github.com/cwsl/sdrcore/internal/control"
	"github.com/cwsl/sdrcore/internal/dsp"
	"github.com/cwsl/sdrcore/internal/frame"
	"github.com/cwsl/sdrcore/internal/radio"
	"github.com/cwsl/sdrcore/internal/ring"
	"github.com/cwsl/sdrcore/internal/window"
)

// Config collects everything needed to start a daemon instance.
type Config struct {
	Radio          radio.Radio
	RingName       string
	RingSlots      uint32
	FFTSize        uint32
	Channels       uint32
	SampleRateHz   float64
	CenterHz       float64
	WindowKind     window.Kind
	CoherentGain   bool
	BlockTimeout   time.Duration
	ControlSocket  string
	StatusInterval time.Duration
}

// StatusSink receives the tagged network status record on the same
// cadence the status thread ticks, so it can be fanned out over
// whatever transport the caller wires up (e.g. the WebSocket fan-out
// server broadcasting it alongside spectrum frames).
type StatusSink interface {
	Broadcast(msg []byte)
}

// Daemon owns the full acquisition/DSP/ring/control pipeline for one
// radio.
type Daemon struct {
	cfg Config

	loop   *acquisition.Loop
	ring   *ring.Ring
	engine *dsp.Engine
	ctrl   *control.Server
	sink   StatusSink

	frameCount   uint64
	degraded     int32
	lastPeakDBFS uint32 // atomic, float32 bits (math.Float32bits)

	runMu  sync.Mutex
	cancel context.CancelFunc
}

// SetStatusSink wires a transport for the periodic status record. Safe
// to call before Run; nil disables status fan-out entirely.
func (d *Daemon) SetStatusSink(sink StatusSink) {
	d.sink = sink
}

// New builds a Daemon; it does not start any threads until Run.
func New(cfg Config) (*Daemon, error) {
	if cfg.Channels != 1 {
		// The radio.Radio capability interface models a single
		// synchronized RX stream; genuine dual-channel capture needs a
		// backend exposing two coherent sample streams, which none of
		// the wired drivers do yet. Reject rather than silently publish
		// a zeroed second channel.
		return nil, fmt.Errorf("daemon: channel count %d unsupported, only single-channel acquisition is wired", cfg.Channels)
	}

	if _, err := cfg.Radio.Configure(radio.Config{
		CenterHz:     cfg.CenterHz,
		SampleRateHz: cfg.SampleRateHz,
	}); err != nil {
		return nil, fmt.Errorf("daemon: configure radio: %w", err)
	}

	eng, err := dsp.New(int(cfg.FFTSize), cfg.WindowKind, cfg.CoherentGain)
	if err != nil {
		return nil, fmt.Errorf("daemon: dsp engine: %w", err)
	}

	rg, err := ring.Create(ring.Config{
		Name:         cfg.RingName,
		Slots:        cfg.RingSlots,
		FFTSize:      cfg.FFTSize,
		Channels:     cfg.Channels,
		SampleRateHz: cfg.SampleRateHz,
	})
	if err != nil {
		return nil, fmt.Errorf("daemon: create ring: %w", err)
	}

	loop := acquisition.New(cfg.Radio, int(cfg.FFTSize), cfg.BlockTimeout, cfg.CenterHz)

	d := &Daemon{cfg: cfg, loop: loop, ring: rg, engine: eng}

	ctrl, err := control.Listen(cfg.ControlSocket, loop, d, d)
	if err != nil {
		rg.Close()
		return nil, fmt.Errorf("daemon: control socket: %w", err)
	}
	d.ctrl = ctrl

	return d, nil
}

// Status implements control.StatusProvider.
func (d *Daemon) Status() frame.Status {
	return frame.Status{
		TimestampSec: float64(time.Now().UnixNano()) / 1e9,
		FrameCount:   atomic.LoadUint64(&d.frameCount),
		Overflows:    d.loop.Overflows(),
		Degraded:     atomic.LoadInt32(&d.degraded) != 0,
		PeakDBFS:     math.Float32frombits(atomic.LoadUint32(&d.lastPeakDBFS)),
	}
}

// Stop implements control.Stopper: it flips the ring's streaming flag
// to false so any attached reader observes end-of-stream on its next
// poll, then cancels the run context, which unwinds acquisition, the
// status loop and the control server in turn.
func (d *Daemon) Stop() {
	d.ring.SetStreaming(false)
	d.runMu.Lock()
	cancel := d.cancel
	d.runMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Run starts the acquisition/DSP thread, the control socket thread and
// the status heartbeat thread, and blocks until ctx is canceled, a STOP
// command arrives over the control socket, or one of the threads fails.
// SIGINT/SIGTERM cancel ctx themselves by convention of the caller using
// RunUntilSignal.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.runMu.Lock()
	d.cancel = cancel
	d.runMu.Unlock()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	blocks, err := d.loop.Run(gctx)
	if err != nil {
		return fmt.Errorf("daemon: start acquisition: %w", err)
	}

	g.Go(func() error {
		return d.publishLoop(gctx, blocks)
	})

	g.Go(func() error {
		return d.ctrl.Serve(gctx)
	})

	g.Go(func() error {
		return d.statusLoop(gctx)
	})

	err = g.Wait()
	d.ring.Close()
	d.ctrl.Close()
	if err != nil && gctx.Err() == nil {
		return err
	}
	return nil
}

// publishLoop is the DSP thread: it windows, transforms, and publishes
// every block the acquisition loop hands it. One block late or dropped
// here never blocks the ring (Publish never blocks by construction).
func (d *Daemon) publishLoop(ctx context.Context, blocks <-chan acquisition.Block) error {
	n := int(d.cfg.FFTSize)
	complexBlock := make([]complex128, n)
	payload := [][]float32{make([]float32, n)}
	if d.cfg.Channels == 2 {
		payload = append(payload, make([]float32, n))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case blk, ok := <-blocks:
			if !ok {
				atomic.StoreInt32(&d.degraded, 1)
				return fmt.Errorf("daemon: acquisition loop closed unexpectedly")
			}

			for i, s := range blk.Samples {
				complexBlock[i] = complex(float64(real(s)), float64(imag(s)))
			}

			peakBin, peakDBFS := d.engine.Transform(complexBlock, payload[0], blk.CenterHz, d.cfg.SampleRateHz)

			atomic.AddUint64(&d.frameCount, 1)
			atomic.StoreUint32(&d.lastPeakDBFS, math.Float32bits(peakDBFS))

			d.ring.Publish(ring.Frame{
				Header: frame.SpectrumHeader{
					TimestampSec: float64(time.Now().UnixNano()) / 1e9,
					CenterHz:     blk.CenterHz,
					FFTSize:      uint16(n),
					ChannelMask:  uint16(d.cfg.Channels),
					Peaks: [2]frame.ChannelPeak{
						{Bin: int16(peakBin), Power: peakDBFS},
					},
				},
				Payload: payload,
			})
		}
	}
}

// statusLoop emits a status record on its own cadence, independent of
// the spectrum frame rate, tagged so it can share the same outbound
// byte stream as spectrum frames when a sink is wired.
func (d *Daemon) statusLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.StatusInterval)
	defer ticker.Stop()

	buf := make([]byte, frame.NetStatusHeaderSize+frame.StatusRecordSize)
	frame.EncodeNetStatusTag(buf)

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st := d.Status()
			st.Seq = seq
			seq++
			rec := frame.EncodeStatus(st)
			copy(buf[frame.NetStatusHeaderSize:], rec[:])
			if d.sink != nil {
				d.sink.Broadcast(buf)
			}
		}
	}
}

// RunUntilSignal runs d until SIGINT or SIGTERM, then cancels its
// context and waits for a clean stop.
func RunUntilSignal(d *Daemon) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("daemon: received %v, shutting down", sig)
		cancel()
	}()

	return d.Run(ctx)
}
