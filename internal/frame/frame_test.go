package frame

import "testing"

func TestCommandRoundTrip(t *testing.T) {
	c := Command{Opcode: OpSetFreq, Value: 100_500_000.25}
	buf := EncodeCommand(c)
	if len(buf) != CommandSize {
		t.Fatalf("encoded command length = %d, want %d", len(buf), CommandSize)
	}
	got, err := DecodeCommand(buf[:])
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if got != c {
		t.Errorf("roundtrip = %+v, want %+v", got, c)
	}
}

func TestDecodeCommandWrongSize(t *testing.T) {
	if _, err := DecodeCommand(make([]byte, CommandSize-1)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestKnownOpcode(t *testing.T) {
	if !KnownOpcode(OpStop) {
		t.Error("OpStop should be known")
	}
	if KnownOpcode(Opcode(200)) {
		t.Error("opcode 200 should not be known")
	}
}

func TestResponseRoundTripTruncatesMessage(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	r := Response{Success: true, Actual: 42.5, Message: string(long)}
	buf := EncodeResponse(r)
	if len(buf) != ResponseSize {
		t.Fatalf("encoded response length = %d, want %d", len(buf), ResponseSize)
	}
	got, err := DecodeResponse(buf[:])
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if !got.Success || got.Actual != r.Actual {
		t.Errorf("got = %+v", got)
	}
	if len(got.Message) != responseMessageLen {
		t.Errorf("message length = %d, want %d (truncated to fill the field)", len(got.Message), responseMessageLen)
	}
}

func TestResponseRoundTripShortMessage(t *testing.T) {
	r := Response{Success: false, Actual: -1, Message: "bad opcode"}
	buf := EncodeResponse(r)
	got, err := DecodeResponse(buf[:])
	if err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if got.Message != r.Message {
		t.Errorf("Message = %q, want %q", got.Message, r.Message)
	}
	if got.Success {
		t.Error("Success should be false")
	}
}

func TestRingHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, RingHeaderSize)
	h := RingHeader{
		RingSize:     64,
		FFTSize:      4096,
		ChannelCount: 1,
		FrameStride:  FrameStride(4096, 1),
		SampleRateHz: 2_000_000,
		GPSLocked:    true,
		Streaming:    true,
	}
	EncodeRingHeader(buf, h)

	got, ok := DecodeRingHeader(buf)
	if !ok {
		t.Fatal("DecodeRingHeader reported invalid header")
	}
	if got != h {
		t.Errorf("roundtrip = %+v, want %+v", got, h)
	}
}

func TestDecodeRingHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, RingHeaderSize)
	if _, ok := DecodeRingHeader(buf); ok {
		t.Fatal("expected invalid header for all-zero buffer")
	}
}

func TestSetStreamingFlipsInPlace(t *testing.T) {
	buf := make([]byte, RingHeaderSize)
	EncodeRingHeader(buf, RingHeader{Streaming: true})
	if !IsStreaming(buf) {
		t.Fatal("expected streaming=true after encode")
	}
	SetStreaming(buf, false)
	if IsStreaming(buf) {
		t.Error("expected streaming=false after SetStreaming")
	}
}

func TestSpectrumHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, SlotHeaderSize)
	h := SpectrumHeader{
		Seq:          12345,
		TimestampSec: 1700000000.5,
		CenterHz:     433_920_000,
		FFTSize:      2048,
		ChannelMask:  1,
		Flags:        FlagReferenceLocked,
		Peaks:        [2]ChannelPeak{{Bin: 1024, Power: -3.5}, {Bin: 0, Power: -120}},
	}
	EncodeSpectrumHeader(buf, h)

	got := DecodeSpectrumHeader(buf)
	if got != h {
		t.Errorf("roundtrip = %+v, want %+v", got, h)
	}
	if !got.ReferenceLocked() {
		t.Error("expected ReferenceLocked true")
	}
}

func TestPayloadRoundTripTwoChannels(t *testing.T) {
	const n = 16
	buf := make([]byte, 4*n*2)
	src := [][]float32{
		make([]float32, n),
		make([]float32, n),
	}
	for i := 0; i < n; i++ {
		src[0][i] = float32(i) - 50
		src[1][i] = float32(i) + 50
	}
	EncodePayload(buf, 2, n, src)

	dst := [][]float32{make([]float32, n), make([]float32, n)}
	DecodePayload(buf, 2, n, dst)

	for c := 0; c < 2; c++ {
		for i := 0; i < n; i++ {
			if dst[c][i] != src[c][i] {
				t.Errorf("channel %d bin %d = %v, want %v", c, i, dst[c][i], src[c][i])
			}
		}
	}
}

func TestFrameStride(t *testing.T) {
	got := FrameStride(4096, 2)
	want := uint32(SlotHeaderSize + 4*4096*2)
	if got != want {
		t.Errorf("FrameStride = %d, want %d", got, want)
	}
}

func TestStatusRoundTrip(t *testing.T) {
	s := Status{
		Seq:             7,
		TimestampSec:    1700000001.25,
		TemperatureC:    42.5,
		ReferenceLocked: true,
		Degraded:        false,
		FrameCount:      99999,
		Overflows:       3,
		Dropped:         1,
		PeakDBFS:        -12.5,
	}
	rec := EncodeStatus(s)
	if len(rec) != StatusRecordSize {
		t.Fatalf("encoded status length = %d, want %d", len(rec), StatusRecordSize)
	}
	got := DecodeStatus(rec[:])
	if got != s {
		t.Errorf("roundtrip = %+v, want %+v", got, s)
	}
}

func TestNetSpectrumHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, NetSpectrumHeaderSize)
	h := NetSpectrumHeader{
		TimestampSec: 1700000002,
		CenterHz:     100e6,
		SampleRateHz: 2e6,
		FFTSize:      4096,
		Flags:        FlagReferenceLocked,
		PeakBin:      -512,
		PeakPower:    -10.5,
	}
	EncodeNetSpectrumHeader(buf, h)

	got, ok := DecodeNetSpectrumHeader(buf)
	if !ok {
		t.Fatal("DecodeNetSpectrumHeader reported bad magic")
	}
	if got != h {
		t.Errorf("roundtrip = %+v, want %+v", got, h)
	}
}

func TestDecodeNetSpectrumHeaderRejectsShortBuffer(t *testing.T) {
	if _, ok := DecodeNetSpectrumHeader(make([]byte, 4)); ok {
		t.Fatal("expected false for too-short buffer")
	}
}

func TestNetStatusTag(t *testing.T) {
	buf := make([]byte, NetStatusHeaderSize+StatusRecordSize)
	EncodeNetStatusTag(buf)
	if !DecodeNetStatusTag(buf) {
		t.Error("expected valid status tag")
	}
	buf[0] = 0
	if DecodeNetStatusTag(buf) {
		t.Error("expected invalid status tag after corrupting the magic")
	}
}
