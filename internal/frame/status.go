package frame

import (
	"encoding/binary"
	"math"
)

// StatusRecordSize is the fixed size of the status frame emitted by the
// status thread: a separate 56-byte binary record, not part
// of the spectrum ring.
const StatusRecordSize = 56

// Status offsets.
const (
	stOffSeq         = 0  // uint64: status sequence number
	stOffTimestamp   = 8  // float64 seconds
	stOffTempC       = 16 // float32
	stOffRefLocked   = 20 // uint8 (1 byte)
	stOffDegraded    = 21 // uint8
	stOffReserved1   = 22 // 2 bytes padding
	stOffFrameCount  = 24 // uint64: spectrum frame counter
	stOffOverflows   = 32 // uint64: acquisition overflow counter
	stOffDropped     = 40 // uint64: recorder/fanout drop counter (context dependent)
	stOffPeakDBFS    = 48 // float32: most recent spectrum frame's peak power
	stOffReservedEnd = 52 // 4 bytes padding to 56
)

// Status is the decoded form of a 56-byte status record.
type Status struct {
	Seq             uint64
	TimestampSec    float64
	TemperatureC    float32
	ReferenceLocked bool
	Degraded        bool
	FrameCount      uint64
	Overflows       uint64
	Dropped         uint64
	PeakDBFS        float32
}

// EncodeStatus writes s into a 56-byte wire record.
func EncodeStatus(s Status) [StatusRecordSize]byte {
	var buf [StatusRecordSize]byte
	binary.LittleEndian.PutUint64(buf[stOffSeq:], s.Seq)
	binary.LittleEndian.PutUint64(buf[stOffTimestamp:], math.Float64bits(s.TimestampSec))
	binary.LittleEndian.PutUint32(buf[stOffTempC:], math.Float32bits(s.TemperatureC))
	if s.ReferenceLocked {
		buf[stOffRefLocked] = 1
	}
	if s.Degraded {
		buf[stOffDegraded] = 1
	}
	binary.LittleEndian.PutUint64(buf[stOffFrameCount:], s.FrameCount)
	binary.LittleEndian.PutUint64(buf[stOffOverflows:], s.Overflows)
	binary.LittleEndian.PutUint64(buf[stOffDropped:], s.Dropped)
	binary.LittleEndian.PutUint32(buf[stOffPeakDBFS:], math.Float32bits(s.PeakDBFS))
	return buf
}

// DecodeStatus parses a 56-byte status record.
func DecodeStatus(buf []byte) Status {
	var s Status
	s.Seq = binary.LittleEndian.Uint64(buf[stOffSeq:])
	s.TimestampSec = math.Float64frombits(binary.LittleEndian.Uint64(buf[stOffTimestamp:]))
	s.TemperatureC = math.Float32frombits(binary.LittleEndian.Uint32(buf[stOffTempC:]))
	s.ReferenceLocked = buf[stOffRefLocked] != 0
	s.Degraded = buf[stOffDegraded] != 0
	s.FrameCount = binary.LittleEndian.Uint64(buf[stOffFrameCount:])
	s.Overflows = binary.LittleEndian.Uint64(buf[stOffOverflows:])
	s.Dropped = binary.LittleEndian.Uint64(buf[stOffDropped:])
	s.PeakDBFS = math.Float32frombits(binary.LittleEndian.Uint32(buf[stOffPeakDBFS:]))
	return s
}
