// Package fragment implements the CiA 613-3 fragmenter: it consumes a
// source CAN XL PDU and emits an ordered sequence of LLC-wrapped link
// frames (First / Consecutive / Last).
package fragment

import (
	"errors"
	"fmt"

	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/llc"
)

// Fragment size bounds and step, mirrored from the reference implementation's
// MIN_FRAG_SIZE/MAX_FRAG_SIZE/FRAG_STEP_SIZE constants.
const (
	MinFragSize  = 64
	MaxFragSize  = 1024
	FragStepSize = 128
	DefaultFragSize = 128
)

// ErrFragSizeRange is returned when fragsz falls outside [MinFragSize, MaxFragSize].
var ErrFragSizeRange = errors.New("fragment: fragment size out of range")

// ErrFragSizeStep is returned when fragsz is not a multiple of FragStepSize.
var ErrFragSizeStep = errors.New("fragment: illegal fragment step size")

// ErrTunnelEncapsulation is returned when the source PDU already carries a
// 613-3 fragmentation LLC header (re-fragmenting it is forbidden).
var ErrTunnelEncapsulation = errors.New("fragment: tunnel encapsulation detected")

// Fragmenter splits oversized PDUs into a 613-3 LLC-wrapped frame sequence.
// Not safe for concurrent use; a single instance owns its FCNT counter.
type Fragmenter struct {
	FragSize int
	txfcnt   uint32 // kept wide so wraparound at 2^16 is an explicit, visible step
}

// New validates fragsz and constructs a Fragmenter.
func New(fragsz int) (*Fragmenter, error) {
	if fragsz < MinFragSize || fragsz > MaxFragSize {
		return nil, fmt.Errorf("%w: %d", ErrFragSizeRange, fragsz)
	}
	if fragsz%FragStepSize != 0 {
		return nil, fmt.Errorf("%w: %d", ErrFragSizeStep, fragsz)
	}
	return &Fragmenter{FragSize: fragsz}, nil
}

// Fragment processes one source PDU and returns the link frames to emit.
// A PDU that fits in one fragment is returned unchanged as the single
// element of the slice (forward verbatim); the distinct
// ErrTunnelEncapsulation error means the frame must be dropped and nothing
// emitted.
func (fr *Fragmenter) Fragment(p canxl.Frame) ([]canxl.Frame, error) {
	if p.Flags&canxl.SEC != 0 && int(p.Len) >= llc.Size {
		hdr := llc.Parse(p.Data[:llc.Size])
		if hdr.PCI.IsFragmentation() {
			return nil, ErrTunnelEncapsulation
		}
	}

	if int(p.Len) <= fr.FragSize {
		return []canxl.Frame{p}, nil
	}

	base := llc.PCI{Version: llc.Version, AOT: llc.AOTFragmentation}
	if p.Flags&canxl.SEC != 0 {
		base.SECN = true
	}

	var out []canxl.Frame
	for o := 0; o < int(p.Len); o += fr.FragSize {
		remaining := int(p.Len) - o
		n := fr.FragSize
		if remaining < n {
			n = remaining
		}

		pci := base
		switch {
		case o == 0:
			pci.Type = llc.TypeFF
		case remaining > fr.FragSize:
			pci.Type = llc.TypeCF
		default:
			pci.Type = llc.TypeLF
		}

		fr.txfcnt = (fr.txfcnt + 1) & 0xFFFF

		var dst canxl.Frame
		dst.Prio, dst.SDT, dst.AF = p.Prio, p.SDT, p.AF
		dst.Flags = p.Flags | canxl.SEC
		dst.Len = uint16(llc.Size + n)

		llc.Header{PCI: pci, FCNT: uint16(fr.txfcnt)}.Encode(dst.Data[:llc.Size])
		copy(dst.Data[llc.Size:], p.Data[o:o+n])

		out = append(out, dst)
	}
	return out, nil
}
