package frame

import (
	"encoding/binary"
	"math"
)

// Network message type tags. FFT1/STT1 are 4-byte ASCII magics read as
// a big-endian uint32: 'F'=0x46, 'F'=0x46, 'T'=0x54, '1'=0x31.
const (
	TagSpectrum uint32 = 0x46465431 // "FFT1"
	TagStatus   uint32 = 0x53545431 // "STT1"
)

// NetSpectrumHeaderSize is the 44-byte header prefixing a spectrum
// message's float32 payload on the network fan-out channel.
const NetSpectrumHeaderSize = 44

const (
	nOffMagic      = 0  // uint32
	nOffReserved   = 4  // uint32
	nOffTimestamp  = 8  // float64
	nOffCenterHz   = 16 // float64
	nOffSampleRate = 24 // float64
	nOffFFTSize    = 32 // uint16
	nOffFlags      = 34 // uint16
	nOffPeakBin    = 36 // int16
	nOffPad        = 38 // 2 bytes pad to align float32 peak power
	nOffPeakPower  = 40 // float32
)

// NetSpectrumHeader is the decoded header of a network "FFT1" message.
type NetSpectrumHeader struct {
	TimestampSec float64
	CenterHz     float64
	SampleRateHz float64
	FFTSize      uint16
	Flags        uint16
	PeakBin      int16
	PeakPower    float32
}

// EncodeNetSpectrumHeader writes h (plus the TagSpectrum magic) into buf,
// which must be at least NetSpectrumHeaderSize bytes.
func EncodeNetSpectrumHeader(buf []byte, h NetSpectrumHeader) {
	binary.BigEndian.PutUint32(buf[nOffMagic:], TagSpectrum)
	binary.BigEndian.PutUint32(buf[nOffReserved:], 0)
	binary.BigEndian.PutUint64(buf[nOffTimestamp:], math.Float64bits(h.TimestampSec))
	binary.BigEndian.PutUint64(buf[nOffCenterHz:], math.Float64bits(h.CenterHz))
	binary.BigEndian.PutUint64(buf[nOffSampleRate:], math.Float64bits(h.SampleRateHz))
	binary.BigEndian.PutUint16(buf[nOffFFTSize:], h.FFTSize)
	binary.BigEndian.PutUint16(buf[nOffFlags:], h.Flags)
	binary.BigEndian.PutUint16(buf[nOffPeakBin:], uint16(h.PeakBin))
	binary.BigEndian.PutUint16(buf[nOffPad:], 0)
	binary.BigEndian.PutUint32(buf[nOffPeakPower:], math.Float32bits(h.PeakPower))
}

// DecodeNetSpectrumHeader reads a network spectrum header back out of buf
// and reports whether the magic matched.
func DecodeNetSpectrumHeader(buf []byte) (NetSpectrumHeader, bool) {
	var h NetSpectrumHeader
	if len(buf) < NetSpectrumHeaderSize {
		return h, false
	}
	if binary.BigEndian.Uint32(buf[nOffMagic:]) != TagSpectrum {
		return h, false
	}
	h.TimestampSec = math.Float64frombits(binary.BigEndian.Uint64(buf[nOffTimestamp:]))
	h.CenterHz = math.Float64frombits(binary.BigEndian.Uint64(buf[nOffCenterHz:]))
	h.SampleRateHz = math.Float64frombits(binary.BigEndian.Uint64(buf[nOffSampleRate:]))
	h.FFTSize = binary.BigEndian.Uint16(buf[nOffFFTSize:])
	h.Flags = binary.BigEndian.Uint16(buf[nOffFlags:])
	h.PeakBin = int16(binary.BigEndian.Uint16(buf[nOffPeakBin:]))
	h.PeakPower = math.Float32frombits(binary.BigEndian.Uint32(buf[nOffPeakPower:]))
	return h, true
}

// NetStatusHeaderSize is the 8-byte tag+reserved header prefixing a
// StatusRecordSize status record so it can share the same outbound
// byte stream as spectrum frames.
const NetStatusHeaderSize = 8

// EncodeNetStatusTag writes the tag+reserved header into buf, which
// must be at least NetStatusHeaderSize bytes.
func EncodeNetStatusTag(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:], TagStatus)
	binary.BigEndian.PutUint32(buf[4:], 0)
}

// DecodeNetStatusTag reports whether buf begins with a valid status tag.
func DecodeNetStatusTag(buf []byte) bool {
	return len(buf) >= 4 && binary.BigEndian.Uint32(buf[0:]) == TagStatus
}
