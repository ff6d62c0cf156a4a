// Package llc implements the CiA 613-3 Logical Link Control header: the
// first 4 bytes of a link frame's payload when SEC=1 and the AOT matches.
package llc

import "encoding/binary"

// Size is the LLC header length in bytes (pci, res, fcnt_hi, fcnt_lo).
const Size = 4

// FrameType is the 2-bit PCI frame-type field (bits 0-1).
type FrameType uint8

const (
	TypeCF       FrameType = 0b00 // consecutive frame: neither FF nor LF set
	TypeLF       FrameType = 0b01 // last frame
	TypeFF       FrameType = 0b10 // first frame
	TypeReserved FrameType = 0b11 // FF and LF both set: reserved/invalid
)

// PCI bit layout (LSB-first): bit0=LF, bit1=FF, bits2-3=version,
// bit4=SECN, bits5-7=AOT.
const (
	bitLF   = 0x01
	bitFF   = 0x02
	typeMsk = 0x03

	versionShift = 2
	versionMask  = 0x03 // 2-bit field at bits 2-3

	bitSECN = 0x10

	aotShift = 5
	aotMask  = 0x07 // 3-bit field at bits 5-7
)

// Version is the only protocol version this implementation understands.
const Version = 0b01

// AOTFragmentation identifies the fragmentation Add-On Type.
const AOTFragmentation = 0b001

// PCI is the parsed protocol control information byte.
type PCI struct {
	Type    FrameType
	Version uint8
	SECN    bool
	AOT     uint8
}

// ParsePCI decodes a raw PCI byte.
func ParsePCI(b byte) PCI {
	return PCI{
		Type:    FrameType(b & typeMsk),
		Version: (b >> versionShift) & versionMask,
		SECN:    b&bitSECN != 0,
		AOT:     (b >> aotShift) & aotMask,
	}
}

// Byte encodes the PCI back to its wire form.
func (p PCI) Byte() byte {
	b := (p.Version & versionMask) << versionShift
	b |= (p.AOT & aotMask) << aotShift
	if p.SECN {
		b |= bitSECN
	}
	switch p.Type {
	case TypeFF:
		b |= bitFF
	case TypeLF:
		b |= bitLF
	case TypeReserved:
		b |= bitFF | bitLF
	case TypeCF:
		// neither bit set
	}
	return b
}

// IsFragmentation reports whether this PCI carries the fragmentation AOT —
// the precondition for treating a frame as 613-3 framed content (versus
// forwarding it verbatim). The version field is not checked here.
func (p PCI) IsFragmentation() bool {
	return p.AOT == AOTFragmentation
}

// Header is the full 4-byte LLC header.
type Header struct {
	PCI  PCI
	FCNT uint16
}

// Parse decodes a 4-byte LLC header from the start of buf. The caller is
// responsible for checking len(buf) >= Size first.
func Parse(buf []byte) Header {
	return Header{
		PCI:  ParsePCI(buf[0]),
		FCNT: binary.BigEndian.Uint16(buf[2:4]),
	}
}

// Encode writes the 4-byte wire form of h into buf[:Size].
func (h Header) Encode(buf []byte) {
	buf[0] = h.PCI.Byte()
	buf[1] = 0 // res, transmitted as zero
	binary.BigEndian.PutUint16(buf[2:4], h.FCNT)
}
