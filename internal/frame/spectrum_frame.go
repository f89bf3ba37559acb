package frame

import (
	"encoding/binary"
	"math"
)

// SlotHeaderSize is the size in bytes of the per-slot frame header that
// precedes each channel's dBFS payload inside a ring slot.
const SlotHeaderSize = 48

// Slot header field offsets.
const (
	sOffSeq           = 0  // uint64
	sOffTimestamp     = 8  // float64 seconds
	sOffCenterHz      = 16 // float64
	sOffFFTSize       = 24 // uint16
	sOffChannelMask   = 26 // uint16
	sOffFlags         = 28 // uint16
	sOffReserved      = 30 // uint16 padding
	sOffPeakBin0      = 32 // int16, channel 0
	sOffPeakBin1      = 34 // int16, channel 1
	sOffPeakPower0    = 36 // float32, channel 0
	sOffPeakPower1    = 40 // float32, channel 1
	sOffReservedTail  = 44 // 4 bytes padding to 48
)

// FlagReferenceLocked is bit 0 of the flags field.
const FlagReferenceLocked uint16 = 1 << 0

// ChannelPeak holds the per-channel peak bin/power recorded in a slot
// header.
type ChannelPeak struct {
	Bin   int16
	Power float32
}

// SpectrumHeader is the decoded form of a 48-byte slot header.
type SpectrumHeader struct {
	Seq          uint64
	TimestampSec float64
	CenterHz     float64
	FFTSize      uint16
	ChannelMask  uint16
	Flags        uint16
	Peaks        [2]ChannelPeak // index 0/1 for channel 0/1; only [0] used when C=1
}

// ReferenceLocked reports whether bit 0 of Flags is set.
func (h SpectrumHeader) ReferenceLocked() bool {
	return h.Flags&FlagReferenceLocked != 0
}

// EncodeSpectrumHeader writes h into buf (>= SlotHeaderSize bytes).
func EncodeSpectrumHeader(buf []byte, h SpectrumHeader) {
	binary.LittleEndian.PutUint64(buf[sOffSeq:], h.Seq)
	binary.LittleEndian.PutUint64(buf[sOffTimestamp:], math.Float64bits(h.TimestampSec))
	binary.LittleEndian.PutUint64(buf[sOffCenterHz:], math.Float64bits(h.CenterHz))
	binary.LittleEndian.PutUint16(buf[sOffFFTSize:], h.FFTSize)
	binary.LittleEndian.PutUint16(buf[sOffChannelMask:], h.ChannelMask)
	binary.LittleEndian.PutUint16(buf[sOffFlags:], h.Flags)
	binary.LittleEndian.PutUint16(buf[sOffReserved:], 0)
	binary.LittleEndian.PutUint16(buf[sOffPeakBin0:], uint16(h.Peaks[0].Bin))
	binary.LittleEndian.PutUint16(buf[sOffPeakBin1:], uint16(h.Peaks[1].Bin))
	binary.LittleEndian.PutUint32(buf[sOffPeakPower0:], math.Float32bits(h.Peaks[0].Power))
	binary.LittleEndian.PutUint32(buf[sOffPeakPower1:], math.Float32bits(h.Peaks[1].Power))
	for i := sOffReservedTail; i < SlotHeaderSize; i++ {
		buf[i] = 0
	}
}

// DecodeSpectrumHeader reads a slot header back out of buf.
func DecodeSpectrumHeader(buf []byte) SpectrumHeader {
	var h SpectrumHeader
	h.Seq = binary.LittleEndian.Uint64(buf[sOffSeq:])
	h.TimestampSec = math.Float64frombits(binary.LittleEndian.Uint64(buf[sOffTimestamp:]))
	h.CenterHz = math.Float64frombits(binary.LittleEndian.Uint64(buf[sOffCenterHz:]))
	h.FFTSize = binary.LittleEndian.Uint16(buf[sOffFFTSize:])
	h.ChannelMask = binary.LittleEndian.Uint16(buf[sOffChannelMask:])
	h.Flags = binary.LittleEndian.Uint16(buf[sOffFlags:])
	h.Peaks[0].Bin = int16(binary.LittleEndian.Uint16(buf[sOffPeakBin0:]))
	h.Peaks[1].Bin = int16(binary.LittleEndian.Uint16(buf[sOffPeakBin1:]))
	h.Peaks[0].Power = math.Float32frombits(binary.LittleEndian.Uint32(buf[sOffPeakPower0:]))
	h.Peaks[1].Power = math.Float32frombits(binary.LittleEndian.Uint32(buf[sOffPeakPower1:]))
	return h
}

// Payload encodes/decodes the per-channel float32 dBFS payload that
// follows a slot header. channels is 1 or 2; each channel contributes n
// float32 values, fftshifted, concatenated in channel order.
func EncodePayload(buf []byte, channels int, n int, data [][]float32) {
	off := 0
	for c := 0; c < channels; c++ {
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(data[c][i]))
			off += 4
		}
	}
}

func DecodePayload(buf []byte, channels int, n int, dst [][]float32) {
	off := 0
	for c := 0; c < channels; c++ {
		for i := 0; i < n; i++ {
			dst[c][i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
			off += 4
		}
	}
}

// FrameStride returns the total slot size (header + payload) for fftSize
// bins and channel count c.
func FrameStride(fftSize, channels int) uint32 {
	return uint32(SlotHeaderSize + 4*fftSize*channels)
}
