package checker

// BufMemSize is the buffer table size: 15 usable TID slots plus an unused
// index 0 for "no valid plugfest TID", mirroring the reference checker.
const BufMemSize = 16

const (
	TIDMask = 0x03F
	TIDMax  = 0x03F

	// DebugIDPrioBase is the priority base for emitted notification frames.
	DebugIDPrioBase = 0x200
	// TestDataPrioBase marks an incoming frame as reference-PDU install
	// rather than live traffic.
	TestDataPrioBase = 0x400

	DefaultMaxBuffs = 3
	DefaultMaxLPCnt = 2
)

// noFCNT marks a buffer slot with no in-progress stream.
const noFCNT = 0x0FFF0000

// tid2bufidx maps a 6-bit TID to its buffer slot. Only the TIDs actually
// used by the plugfest test vectors are assigned a slot; everything else
// maps to 0 (ignored).
var tid2bufidx = [64]int{
	1, 2, 3, 0, 0, 0, 0, 4, // 0x00 .. 0x07
	5, 6, 0, 0, 0, 0, 0, 0, // 0x08 .. 0x0F
	7, 8, 9, 0, 0, 0, 0, 0, // 0x10 .. 0x17
	0, 0, 0, 0, 0, 0, 0, 0, // 0x18 .. 0x1F
	10, 11, 12, 0, 0, 0, 0, 0, // 0x20 .. 0x27
	0, 0, 0, 0, 0, 0, 0, 0, // 0x28 .. 0x2F
	13, 14, 15, 0, 0, 0, 0, 0, // 0x30 .. 0x37
	0, 0, 0, 0, 0, 0, 0, 0, // 0x38 .. 0x3F
}
