package radio

import (
	"context"
	"math"
	"math/rand"
	"sync"
)

// Tone is one synthetic carrier the simulated backend mixes into its
// output, expressed as an offset from the configured center frequency.
type Tone struct {
	OffsetHz  float64
	Amplitude float64 // 0..1, full scale at 1.0
}

// SimulatedConfig configures the simulated backend at construction time.
// It exists so tests and the "scanner identify" scenario can place known
// signals at known frequencies without any hardware attached.
type SimulatedConfig struct {
	Tones        []Tone
	NoiseFloor   float64 // standard deviation of the IQ noise, e.g. 0.01
	RandSeed     int64
	HardwareInfo HardwareInfo
}

// Simulated is a Radio backed entirely by a synthesized IQ source: a sum
// of complex tones plus Gaussian noise, sampled at the configured rate.
// It never returns ErrNotSupported — every Set* call succeeds exactly as
// requested, which makes it useful for exercising the acquisition and
// DSP stages without physical hardware reachable in this environment.
type Simulated struct {
	mu      sync.Mutex
	cfg     Config
	tones   []Tone
	noise   float64
	rng     *rand.Rand
	phase   []float64
	started bool
	info    HardwareInfo
}

// NewSimulated builds a simulated radio seeded with scfg's tones and
// noise floor.
func NewSimulated(scfg SimulatedConfig) *Simulated {
	return &Simulated{
		tones: scfg.Tones,
		noise: scfg.NoiseFloor,
		rng:   rand.New(rand.NewSource(scfg.RandSeed)),
		phase: make([]float64, len(scfg.Tones)),
		info:  scfg.HardwareInfo,
	}
}

func (s *Simulated) Configure(cfg Config) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	return s.cfg, nil
}

func (s *Simulated) Tune(centerHz float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.CenterHz = centerHz
	return centerHz, nil
}

func (s *Simulated) SetGain(gainDB float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.GainDB = gainDB
	return gainDB, nil
}

func (s *Simulated) SetSampleRate(rateHz float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.SampleRateHz = rateHz
	return rateHz, nil
}

func (s *Simulated) SetBandwidth(bwHz float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.BandwidthHz = bwHz
	return bwHz, nil
}

func (s *Simulated) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *Simulated) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *Simulated) Close() error {
	return s.Stop()
}

func (s *Simulated) HardwareInfo() HardwareInfo {
	return s.info
}

// ReceiveBlock synthesizes len(dst) complex samples at the configured
// sample rate. It never blocks on anything but ctx, matching the
// no-short-read contract of Radio.ReceiveBlock.
func (s *Simulated) ReceiveBlock(ctx context.Context, dst []complex64) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rate := s.cfg.SampleRateHz
	if rate <= 0 {
		rate = 1
	}

	for i := range dst {
		var re, im float64
		for t := range s.tones {
			tone := s.tones[t]
			w := 2 * math.Pi * tone.OffsetHz / rate
			re += tone.Amplitude * math.Cos(s.phase[t])
			im += tone.Amplitude * math.Sin(s.phase[t])
			s.phase[t] += w
			if s.phase[t] > 2*math.Pi {
				s.phase[t] -= 2 * math.Pi
			}
		}
		if s.noise > 0 {
			re += s.rng.NormFloat64() * s.noise
			im += s.rng.NormFloat64() * s.noise
		}
		dst[i] = complex64(complex(re, im))
	}

	return len(dst), nil
}
