// Package reassemble implements the CiA 613-3 reassembler: a per-TID state
// machine that reconstructs a source PDU from an FF / zero-or-more CF / LF
// sequence of link frames.
package reassemble

import (
	"log/slog"

	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/fragment"
	"github.com/kstaniek/cia613-gw/internal/llc"
)

// noFCNT is the sentinel meaning "no in-progress stream" — any value outside
// the 16-bit FCNT range, mirroring the reference implementation's
// NO_FCNT_VALUE.
const noFCNT = 0x0FFF0000

// Buffer holds the state of a single in-progress (or idle) reassembly.
type Buffer struct {
	header       canxl.Frame
	dataptr      int
	expectedFCNT uint32
}

// Assembling reports whether the buffer currently has a stream in progress.
func (b *Buffer) Assembling() bool { return b.dataptr != 0 }

func (b *Buffer) reset() {
	b.header = canxl.Frame{}
	b.dataptr = 0
	b.expectedFCNT = noFCNT
}

// Outcome classifies what Handle did with an incoming frame.
type Outcome int

const (
	OutcomeForwarded      Outcome = iota // not a 613-3 fragment frame; forward verbatim
	OutcomeIgnoredNoStream               // CF/LF with no FF in progress
	OutcomeWrongVersion
	OutcomeReservedPCI
	OutcomeFFAccepted
	OutcomeFFPreempted // FF arrived while ASSEMBLING; old stream aborted first
	OutcomeFFBadSize
	OutcomeCFAccepted
	OutcomeCFBadFCNT
	OutcomeCFBadSize
	OutcomeCFOverflow
	OutcomeLFCompleted
	OutcomeLFBadFCNT
	OutcomeLFBadSize
	OutcomeLFOverflow
)

// Engine reassembles a single TID's fragment stream. Handle does not check
// TransferID; the caller passes it only frames of that transfer ID.
type Engine struct {
	TransferID uint32
	Verbose    bool
	Logger     *slog.Logger

	buf Buffer
}

// New constructs a reassembler for the given transfer ID.
func New(transferID uint32, logger *slog.Logger) *Engine {
	e := &Engine{TransferID: transferID, Logger: logger}
	e.buf.reset()
	return e
}

func (e *Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Handle processes one incoming frame already on this TID. It returns the
// reassembled PDU on OutcomeLFCompleted and the input frame unchanged on
// OutcomeForwarded; every other outcome returns a zero Frame.
func (e *Engine) Handle(fr canxl.Frame) (Outcome, canxl.Frame) {
	if !isFragmentFrame(fr) {
		return OutcomeForwarded, fr
	}

	hdr := llc.Parse(fr.Data[:llc.Size])
	rxfragsz := int(fr.Len) - llc.Size

	if hdr.PCI.Version != llc.Version {
		e.log().Warn("llc_wrong_version", "tid", fr.TID(), "version", hdr.PCI.Version)
		return OutcomeWrongVersion, canxl.Frame{}
	}
	if hdr.PCI.Type == llc.TypeReserved {
		e.log().Warn("llc_reserved_pci", "tid", fr.TID())
		return OutcomeReservedPCI, canxl.Frame{}
	}

	switch hdr.PCI.Type {
	case llc.TypeFF:
		return e.acceptFF(fr, hdr, rxfragsz)
	case llc.TypeCF:
		return e.acceptCF(fr, hdr, rxfragsz)
	case llc.TypeLF:
		return e.acceptLF(fr, hdr, rxfragsz)
	}
	return OutcomeReservedPCI, canxl.Frame{}
}

func (e *Engine) acceptFF(fr canxl.Frame, hdr llc.Header, rxfragsz int) (Outcome, canxl.Frame) {
	preempted := e.buf.Assembling()
	if preempted {
		e.log().Debug("ff_preempts_ongoing", "tid", fr.TID())
		e.buf.reset()
	}
	if rxfragsz < fragment.MinFragSize || rxfragsz > fragment.MaxFragSize {
		e.log().Warn("ff_illegal_fragment_size", "tid", fr.TID(), "size", rxfragsz)
		return OutcomeFFBadSize, canxl.Frame{}
	}
	if rxfragsz%fragment.FragStepSize != 0 {
		e.log().Warn("ff_illegal_fragment_step", "tid", fr.TID(), "size", rxfragsz)
		return OutcomeFFBadSize, canxl.Frame{}
	}

	e.buf.header = fr
	e.buf.header.Flags &^= canxl.SEC
	if hdr.PCI.SECN {
		e.buf.header.Flags |= canxl.SEC
	}
	e.buf.header.Len = uint16(rxfragsz)
	copy(e.buf.header.Data[:rxfragsz], fr.Data[llc.Size:fr.Len])
	e.buf.dataptr = rxfragsz
	e.buf.expectedFCNT = (uint32(hdr.FCNT) + 1) & 0xFFFF

	if preempted {
		return OutcomeFFPreempted, canxl.Frame{}
	}
	return OutcomeFFAccepted, canxl.Frame{}
}

func (e *Engine) acceptCF(fr canxl.Frame, hdr llc.Header, rxfragsz int) (Outcome, canxl.Frame) {
	if !e.buf.Assembling() {
		e.log().Debug("cf_no_stream", "tid", fr.TID())
		return OutcomeIgnoredNoStream, canxl.Frame{}
	}
	if uint32(hdr.FCNT) != e.buf.expectedFCNT {
		e.log().Warn("cf_fcnt_mismatch", "tid", fr.TID(), "want", e.buf.expectedFCNT, "got", hdr.FCNT)
		e.buf.reset()
		return OutcomeCFBadFCNT, canxl.Frame{}
	}
	if rxfragsz < fragment.MinFragSize || rxfragsz > fragment.MaxFragSize || rxfragsz%fragment.FragStepSize != 0 {
		e.log().Warn("cf_illegal_fragment_size", "tid", fr.TID(), "size", rxfragsz)
		e.buf.reset()
		return OutcomeCFBadSize, canxl.Frame{}
	}
	if e.buf.dataptr+rxfragsz > canxl.MaxDLen {
		e.log().Warn("cf_overflow", "tid", fr.TID())
		e.buf.reset()
		return OutcomeCFOverflow, canxl.Frame{}
	}

	copy(e.buf.header.Data[e.buf.dataptr:], fr.Data[llc.Size:fr.Len])
	e.buf.dataptr += rxfragsz
	e.buf.header.Len += uint16(rxfragsz)
	e.buf.expectedFCNT = (e.buf.expectedFCNT + 1) & 0xFFFF
	return OutcomeCFAccepted, canxl.Frame{}
}

func (e *Engine) acceptLF(fr canxl.Frame, hdr llc.Header, rxfragsz int) (Outcome, canxl.Frame) {
	if !e.buf.Assembling() {
		e.log().Debug("lf_no_stream", "tid", fr.TID())
		return OutcomeIgnoredNoStream, canxl.Frame{}
	}
	if uint32(hdr.FCNT) != e.buf.expectedFCNT {
		e.log().Warn("lf_fcnt_mismatch", "tid", fr.TID(), "want", e.buf.expectedFCNT, "got", hdr.FCNT)
		e.buf.reset()
		return OutcomeLFBadFCNT, canxl.Frame{}
	}
	if rxfragsz < canxl.MinDLen || rxfragsz > fragment.MaxFragSize {
		e.log().Warn("lf_illegal_fragment_size", "tid", fr.TID(), "size", rxfragsz)
		e.buf.reset()
		return OutcomeLFBadSize, canxl.Frame{}
	}
	if e.buf.dataptr+rxfragsz > canxl.MaxDLen {
		e.log().Warn("lf_overflow", "tid", fr.TID())
		e.buf.reset()
		return OutcomeLFOverflow, canxl.Frame{}
	}

	copy(e.buf.header.Data[e.buf.dataptr:], fr.Data[llc.Size:fr.Len])
	e.buf.header.Len += uint16(rxfragsz)
	pdu := e.buf.header
	e.buf.reset()
	return OutcomeLFCompleted, pdu
}

// isFragmentFrame reports whether fr carries a 613-3 fragmentation LLC
// header: SEC set, long enough for the header, and AOT matching.
func isFragmentFrame(fr canxl.Frame) bool {
	if fr.Flags&canxl.SEC == 0 {
		return false
	}
	if int(fr.Len) < llc.Size {
		return false
	}
	return llc.ParsePCI(fr.Data[0]).IsFragmentation()
}
