//go:build !linux

package link

import (
	"errors"

	"github.com/kstaniek/cia613-gw/internal/canxl"
)

// ErrUnsupportedPlatform is returned by OpenSocketCAN on non-Linux hosts.
var ErrUnsupportedPlatform = errors.New("link: socketcan is only available on linux")

// SocketCAN stub for non-Linux builds; AF_CAN raw sockets are Linux-only.
type SocketCAN struct{}

func OpenSocketCAN(iface string) (*SocketCAN, error) {
	return nil, ErrUnsupportedPlatform
}

func (d *SocketCAN) Close() error                    { return nil }
func (d *SocketCAN) SetVCID(vcid uint8) error         { return ErrUnsupportedPlatform }
func (d *SocketCAN) ReadFrame() (canxl.Frame, error) { return canxl.Frame{}, ErrUnsupportedPlatform }
func (d *SocketCAN) WriteFrame(fr canxl.Frame) error { return ErrUnsupportedPlatform }
