// Package radio defines the narrow capability interface the acquisition
// loop drives, independent of the underlying hardware. The interface is
// deliberately small: configure, tune, set gain, set sample rate, set
// bandwidth, start, receive one block, stop. This mirrors the approach
// taken by hz.tools/sdr's Sdr interface (a single interface all SDRs
// implement, with ErrNotSupported for devices that lack a feature)
// rather than one bloated interface per driver family.
package radio

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by a driver when the requested capability
// does not exist on that hardware.
var ErrNotSupported = errors.New("radio: feature not supported by this device")

// Config describes the tunable parameters of a receive session.
type Config struct {
	CenterHz     float64
	SampleRateHz float64
	BandwidthHz  float64
	GainDB       float64
	AntennaPort  string
}

// HardwareInfo reports static identification for a connected device.
type HardwareInfo struct {
	Manufacturer string
	Product      string
	Serial       string
}

// Radio is the capability set the acquisition loop needs from any
// receiver backend. A driver that cannot honor a Set* call returns
// ErrNotSupported rather than silently clamping; the acquisition loop
// decides whether that is fatal.
type Radio interface {
	// Configure applies every field of cfg in an implementation-defined
	// order and returns the values actually accepted (post-quantization),
	// which may differ from the request.
	Configure(cfg Config) (Config, error)

	// Tune retunes the center frequency while streaming and returns the
	// actual post-quantization frequency.
	Tune(centerHz float64) (float64, error)

	SetGain(gainDB float64) (float64, error)
	SetSampleRate(rateHz float64) (float64, error)
	SetBandwidth(bwHz float64) (float64, error)

	// Start begins producing sample blocks; it must be called once
	// before ReceiveBlock and is idempotent if already started.
	Start(ctx context.Context) error

	// ReceiveBlock blocks until n complex samples are available or ctx
	// is done, writing into dst (len(dst) determines n) and returning
	// the number of samples written. A short read without error never
	// happens; a context deadline returns context.DeadlineExceeded.
	ReceiveBlock(ctx context.Context, dst []complex64) (int, error)

	// Stop halts sample production; it does not invalidate the handle
	// for a subsequent Start.
	Stop() error

	// Close releases any OS or hardware resources. No further calls are
	// valid afterward.
	Close() error

	HardwareInfo() HardwareInfo
}
