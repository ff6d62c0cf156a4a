// Package canxl implements the CAN XL frame wire format used as the carrier
// for CiA 613-3 fragmentation.
package canxl

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Flag bits in Frame.Flags.
const (
	XLF = 0x80 // marks the frame as CAN XL
	SEC = 0x01 // repurposed by 613-3: "this frame carries a fragmentation LLC header"
)

// Wire layout constants.
const (
	HdrSize = 12 // prio(4) + flags(1) + sdt(1) + len(2) + af(4)
	MinDLen = 1
	MaxDLen = 2048
)

// ErrMalformed is returned for any frame that fails the codec contract.
var ErrMalformed = errors.New("canxl: malformed frame")

// Frame mirrors struct canxl_frame's on-wire byte layout so a SocketCAN raw
// socket can read/write it without translation.
type Frame struct {
	Prio  uint32 // 11-bit priority/identifier; low 6 bits carry the TID
	Flags uint8
	SDT   uint8
	AF    uint32
	Len   uint16
	Data  [MaxDLen]byte
}

// TID returns the low 6 bits of Prio.
func (f Frame) TID() uint8 { return uint8(f.Prio & 0x3F) }

// Payload returns the valid portion of Data.
func (f Frame) Payload() []byte { return f.Data[:f.Len] }

// Parse decodes a CAN XL frame from buf. It returns ErrMalformed unless:
// buf is at least HdrSize+1 bytes, XLF is set, and len(buf) == HdrSize+parsed.Len.
func Parse(buf []byte) (Frame, error) {
	var f Frame
	if len(buf) < HdrSize+MinDLen {
		return f, fmt.Errorf("%w: short buffer (%d bytes)", ErrMalformed, len(buf))
	}
	f.Prio = binary.LittleEndian.Uint32(buf[0:4])
	f.Flags = buf[4]
	f.SDT = buf[5]
	f.Len = binary.LittleEndian.Uint16(buf[6:8])
	f.AF = binary.LittleEndian.Uint32(buf[8:12])
	if f.Flags&XLF == 0 {
		return Frame{}, fmt.Errorf("%w: XLF flag not set", ErrMalformed)
	}
	if len(buf) != HdrSize+int(f.Len) {
		return Frame{}, fmt.Errorf("%w: length mismatch (buf %d, hdr+len %d)", ErrMalformed, len(buf), HdrSize+int(f.Len))
	}
	if int(f.Len) > MaxDLen {
		return Frame{}, fmt.Errorf("%w: len %d exceeds MaxDLen", ErrMalformed, f.Len)
	}
	copy(f.Data[:f.Len], buf[HdrSize:])
	return f, nil
}

// Serialize is the byte-identical inverse of Parse.
func Serialize(f Frame) []byte {
	buf := make([]byte, HdrSize+int(f.Len))
	binary.LittleEndian.PutUint32(buf[0:4], f.Prio)
	buf[4] = f.Flags
	buf[5] = f.SDT
	binary.LittleEndian.PutUint16(buf[6:8], f.Len)
	binary.LittleEndian.PutUint32(buf[8:12], f.AF)
	copy(buf[HdrSize:], f.Data[:f.Len])
	return buf
}

// Equal reports whether two frames carry identical header fields and payload.
// It is used by the checker's reference-PDU comparator (framecmp in the
// reference implementation).
func Equal(a, b Frame) bool {
	if a.Len != b.Len || a.Prio != b.Prio || a.Flags != b.Flags || a.SDT != b.SDT || a.AF != b.AF {
		return false
	}
	for i := 0; i < int(a.Len); i++ {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}
