// Package acquisition runs the loop that owns a radio.Radio handle,
// applies control-plane commands between blocks, and hands completed
// sample blocks to the caller.
package acquisition

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwsl/sdrcore/internal/radio"
)

// Block is one batch of complex baseband samples plus the configuration
// that was actually in effect while it was captured.
type Block struct {
	Samples  []complex64
	CenterHz float64
	SeqNum   uint64
}

// Command is a single mutation requested by the control plane.
// Exactly one field is meaningful per Kind.
type Command struct {
	Kind  CommandKind
	Value float64
}

type CommandKind int

const (
	CmdSetFreq CommandKind = iota
	CmdSetSampleRate
	CmdSetGain
	CmdSetBandwidth
)

// Result carries the post-quantization value back to whoever issued a
// Command, matching the control socket's synchronous request/response
// contract.
type Result struct {
	Actual float64
	Err    error
}

type mailboxEntry struct {
	cmd  Command
	resp chan Result
}

// Loop drives one radio.Radio: it applies queued commands between block
// reads and never blocks the control plane behind a slow hardware call
// for longer than one block period.
type Loop struct {
	rd        radio.Radio
	blockSize int
	timeout   time.Duration

	mailbox chan mailboxEntry

	seq        uint64
	overflows  uint64
	timeouts   uint64
	logOverflow rateLimiter
	logTimeout  rateLimiter

	mu       sync.Mutex
	centerHz float64
}

// New constructs a Loop around an already-Configure'd radio. blockSize
// is the number of complex samples per Block; timeout bounds each
// ReceiveBlock call so a stalled device degrades the daemon instead of
// hanging it forever.
func New(rd radio.Radio, blockSize int, timeout time.Duration, initialCenterHz float64) *Loop {
	return &Loop{
		rd:        rd,
		blockSize: blockSize,
		timeout:   timeout,
		mailbox:   make(chan mailboxEntry, 8),
		centerHz:  initialCenterHz,
	}
}

// Submit enqueues a control-plane command and blocks until the
// acquisition loop has applied it, returning the actual post-
// quantization value. Submit is safe to call from the control socket's
// connection goroutine while Run executes concurrently.
func (l *Loop) Submit(ctx context.Context, cmd Command) (float64, error) {
	resp := make(chan Result, 1)
	select {
	case l.mailbox <- mailboxEntry{cmd: cmd, resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Actual, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// CenterHz returns the frequency currently in effect, safe to call
// concurrently with Run.
func (l *Loop) CenterHz() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.centerHz
}

// Overflows and Timeouts report cumulative counts for the status
// record.
func (l *Loop) Overflows() uint64 { return atomic.LoadUint64(&l.overflows) }
func (l *Loop) Timeouts() uint64  { return atomic.LoadUint64(&l.timeouts) }

// Run drains queued commands and produces Blocks on the returned
// channel until ctx is canceled. It owns the radio handle exclusively;
// nothing else may call methods on rd while Run is active.
func (l *Loop) Run(ctx context.Context) (<-chan Block, error) {
	if err := l.rd.Start(ctx); err != nil {
		return nil, fmt.Errorf("acquisition: start: %w", err)
	}

	out := make(chan Block, 2)

	go func() {
		defer close(out)
		defer l.rd.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case entry := <-l.mailbox:
				l.apply(ctx, entry)
				continue
			default:
			}

			samples := make([]complex64, l.blockSize)
			bctx, cancel := context.WithTimeout(ctx, l.timeout)
			n, err := l.rd.ReceiveBlock(bctx, samples)
			cancel()

			if err == context.DeadlineExceeded {
				c := atomic.AddUint64(&l.timeouts, 1)
				l.logTimeout.maybe(c, func() {
					log.Printf("acquisition: receive timeout after %v (count=%d)", l.timeout, c)
				})
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c := atomic.AddUint64(&l.overflows, 1)
				l.logOverflow.maybe(c, func() {
					log.Printf("acquisition: receive error (count=%d): %v", c, err)
				})
				continue
			}
			if n != l.blockSize {
				// ReceiveBlock's contract forbids short reads without
				// error; treat it as an overflow rather than silently
				// shipping a partial block downstream.
				c := atomic.AddUint64(&l.overflows, 1)
				l.logOverflow.maybe(c, func() {
					log.Printf("acquisition: short block %d/%d (count=%d)", n, l.blockSize, c)
				})
				continue
			}

			seq := atomic.AddUint64(&l.seq, 1) - 1
			blk := Block{
				Samples:  samples,
				CenterHz: l.CenterHz(),
				SeqNum:   seq,
			}

			select {
			case out <- blk:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (l *Loop) apply(ctx context.Context, entry mailboxEntry) {
	var actual float64
	var err error
	switch entry.cmd.Kind {
	case CmdSetFreq:
		actual, err = l.rd.Tune(entry.cmd.Value)
		if err == nil {
			l.mu.Lock()
			l.centerHz = actual
			l.mu.Unlock()
		}
	case CmdSetSampleRate:
		actual, err = l.restart(ctx, func() (float64, error) {
			return l.rd.SetSampleRate(entry.cmd.Value)
		})
	case CmdSetGain:
		actual, err = l.rd.SetGain(entry.cmd.Value)
	case CmdSetBandwidth:
		actual, err = l.restart(ctx, func() (float64, error) {
			return l.rd.SetBandwidth(entry.cmd.Value)
		})
	default:
		err = fmt.Errorf("acquisition: unknown command kind %d", entry.cmd.Kind)
	}
	entry.resp <- Result{Actual: actual, Err: err}
}

// restart is the fallback reconfiguration path for parameters that
// can't be hot-applied while streaming: stop the radio, apply fn, then
// restart. SetFreq/SetGain skip this and hot-apply directly.
func (l *Loop) restart(ctx context.Context, fn func() (float64, error)) (float64, error) {
	if err := l.rd.Stop(); err != nil {
		return 0, fmt.Errorf("acquisition: stop before reconfigure: %w", err)
	}
	actual, err := fn()
	if startErr := l.rd.Start(ctx); startErr != nil && err == nil {
		err = fmt.Errorf("acquisition: restart after reconfigure: %w", startErr)
	}
	return actual, err
}

// rateLimiter logs only on the first and every hundredth occurrence of
// a recurring condition, so a persistently faulting device doesn't
// flood the log.
type rateLimiter struct{}

func (rateLimiter) maybe(count uint64, fn func()) {
	if count == 1 || count%100 == 0 {
		fn()
	}
}
