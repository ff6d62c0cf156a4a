package transport

import "github.com/kstaniek/cia613-gw/internal/canxl"

// FrameSink is a generic CAN XL frame transmission target. AsyncTx satisfies
// it; link.Device does not (its method is WriteFrame), but a Device's
// WriteFrame can be passed to NewAsyncTx as the send function.
type FrameSink interface {
	SendFrame(canxl.Frame) error
}
