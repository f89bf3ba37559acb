package radio

import (
	"context"
	"testing"
	"time"
)

func TestOpenSimulated(t *testing.T) {
	rd, err := Open(KindSimulated, "", SimulatedConfig{
		Tones:      []Tone{{OffsetHz: 1000, Amplitude: 1.0}},
		NoiseFloor: 0,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := rd.(*Simulated); !ok {
		t.Fatalf("Open(simulated) returned %T, want *Simulated", rd)
	}
}

func TestOpenUHDReturnsError(t *testing.T) {
	if _, err := Open(KindUHD, "serial=1234", SimulatedConfig{}); err == nil {
		t.Fatal("expected error opening uhd backend in this environment")
	}
}

func TestOpenSoapyReturnsError(t *testing.T) {
	if _, err := Open(KindSoapy, "driver=rtlsdr", SimulatedConfig{}); err == nil {
		t.Fatal("expected error opening soapy backend in this environment")
	}
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open(Kind("bogus"), "", SimulatedConfig{}); err == nil {
		t.Fatal("expected error for unknown driver kind")
	}
}

func TestSimulatedConfigureAndTune(t *testing.T) {
	s := NewSimulated(SimulatedConfig{})
	got, err := s.Configure(Config{CenterHz: 100e6, SampleRateHz: 2e6, GainDB: 20})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if got.CenterHz != 100e6 || got.SampleRateHz != 2e6 || got.GainDB != 20 {
		t.Errorf("Configure returned %+v", got)
	}

	newFreq, err := s.Tune(433e6)
	if err != nil {
		t.Fatalf("Tune: %v", err)
	}
	if newFreq != 433e6 {
		t.Errorf("Tune returned %v, want 433e6", newFreq)
	}
}

func TestSimulatedStartStopClose(t *testing.T) {
	s := NewSimulated(SimulatedConfig{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSimulatedHardwareInfo(t *testing.T) {
	s := NewSimulated(SimulatedConfig{HardwareInfo: HardwareInfo{Manufacturer: "acme", Product: "test-sdr"}})
	info := s.HardwareInfo()
	if info.Manufacturer != "acme" || info.Product != "test-sdr" {
		t.Errorf("HardwareInfo = %+v", info)
	}
}

func TestSimulatedReceiveBlockFillsDestination(t *testing.T) {
	s := NewSimulated(SimulatedConfig{
		Tones:      []Tone{{OffsetHz: 0, Amplitude: 1.0}},
		NoiseFloor: 0,
	})
	if _, err := s.Configure(Config{SampleRateHz: 1e6}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	dst := make([]complex64, 32)
	n, err := s.ReceiveBlock(context.Background(), dst)
	if err != nil {
		t.Fatalf("ReceiveBlock: %v", err)
	}
	if n != len(dst) {
		t.Fatalf("ReceiveBlock returned n=%d, want %d", n, len(dst))
	}
	// A DC tone at full amplitude with no noise should produce a
	// constant-magnitude sample near 1.0 every sample.
	for i, v := range dst {
		mag := float64(real(v))*float64(real(v)) + float64(imag(v))*float64(imag(v))
		if mag < 0.9 || mag > 1.1 {
			t.Errorf("sample %d magnitude^2 = %v, want ~1.0", i, mag)
		}
	}
}

func TestSimulatedReceiveBlockHonorsContextCancellation(t *testing.T) {
	s := NewSimulated(SimulatedConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dst := make([]complex64, 8)
	n, err := s.ReceiveBlock(ctx, dst)
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if n != 0 {
		t.Errorf("ReceiveBlock returned n=%d on canceled context, want 0", n)
	}
}

func TestSimulatedReceiveBlockDeadline(t *testing.T) {
	s := NewSimulated(SimulatedConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	if _, err := s.ReceiveBlock(ctx, make([]complex64, 4)); err != context.DeadlineExceeded {
		t.Errorf("ReceiveBlock error = %v, want context.DeadlineExceeded", err)
	}
}
