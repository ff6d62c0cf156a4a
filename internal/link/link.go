// Package link provides the backends that carry CAN XL frames between the
// gateway and a peer: a native SocketCAN interface, a serial tunnel for
// non-CAN transports, and an in-memory loopback for tests.
package link

import (
	"errors"

	"github.com/kstaniek/cia613-gw/internal/canxl"
)

// ErrRead wraps a fatal read failure from a link backend.
var ErrRead = errors.New("link: read failed")

// ErrWrite wraps a fatal write failure from a link backend.
var ErrWrite = errors.New("link: write failed")

// Device is a CAN XL link backend. Per the cooperative single-threaded
// model, ReadFrame/WriteFrame block the calling goroutine; callers do not
// invoke them concurrently on the same Device.
type Device interface {
	ReadFrame() (canxl.Frame, error)
	WriteFrame(canxl.Frame) error
	Close() error
}
