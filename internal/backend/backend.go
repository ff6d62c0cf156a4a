// Package backend opens a link.Device from a kind string, the same
// serial|socketcan dispatch the reference gateway binaries use.
package backend

import (
	"fmt"
	"strings"

	"github.com/kstaniek/cia613-gw/internal/link"
)

// Config names one link endpoint.
type Config struct {
	Kind      string // "serial" | "socketcan"
	CANIf     string
	SerialDev string
	Baud      int
}

// FromIfaceArg classifies a positional <iface> CLI argument: a /dev/ path
// opens a serial tunnel at baud, anything else is a SocketCAN interface name.
func FromIfaceArg(arg string, baud int) Config {
	if strings.HasPrefix(arg, "/dev/") {
		return Config{Kind: "serial", SerialDev: arg, Baud: baud}
	}
	return Config{Kind: "socketcan", CANIf: arg}
}

// Open binds the configured backend and returns it as a link.Device.
func Open(cfg Config) (link.Device, error) {
	switch cfg.Kind {
	case "serial":
		return link.OpenSerialTunnel(cfg.SerialDev, cfg.Baud)
	case "socketcan":
		return link.OpenSocketCAN(cfg.CANIf)
	default:
		return nil, fmt.Errorf("unknown backend %q (use serial|socketcan)", cfg.Kind)
	}
}
