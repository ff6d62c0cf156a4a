package link

import (
	"errors"
	"sync"

	"github.com/kstaniek/cia613-gw/internal/canxl"
)

// ErrClosed is returned by a Loopback's WriteFrame once Close has been called
// on it, and by its ReadFrame once the peer end has been closed.
var ErrClosed = errors.New("link: loopback closed")

// Loopback is an in-memory Device pair for tests: frames written to one end
// are delivered to ReadFrame on the other end via a buffered channel.
type Loopback struct {
	out    chan canxl.Frame
	in     chan canxl.Frame
	mu     sync.Mutex
	closed bool
}

// NewLoopbackPair returns two Devices, each other's counterpart.
func NewLoopbackPair(depth int) (*Loopback, *Loopback) {
	a := make(chan canxl.Frame, depth)
	b := make(chan canxl.Frame, depth)
	return &Loopback{out: a, in: b}, &Loopback{out: b, in: a}
}

func (l *Loopback) ReadFrame() (canxl.Frame, error) {
	fr, ok := <-l.in
	if !ok {
		return canxl.Frame{}, ErrClosed
	}
	return fr, nil
}

func (l *Loopback) WriteFrame(fr canxl.Frame) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.out <- fr
	return nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	close(l.out)
	return nil
}
