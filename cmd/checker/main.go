package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kstaniek/cia613-gw/internal/backend"
	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/checker"
	"github.com/kstaniek/cia613-gw/internal/cliutil"
	"github.com/kstaniek/cia613-gw/internal/link"
	"github.com/kstaniek/cia613-gw/internal/metrics"
	"github.com/kstaniek/cia613-gw/internal/transport"
)

// telemetryBufferSize bounds how many pending notification events the
// telemetry mirror queues before new ones are dropped. The notification
// frame itself is always written synchronously on the link — this only
// buffers the best-effort side channel that re-logs/re-counts the same
// events without risking a stall on the authoritative write.
const telemetryBufferSize = 64

func main() {
	os.Exit(run(os.Args[1:]))
}

// acceptedPrioMask is the union the checker filters its interface to:
// transport TIDs [0x000..0x03F] and testdata-install TIDs [0x400..0x43F].
const acceptedPrioMask = 0x43F

func run(args []string) int {
	cfg, showVersion, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if showVersion {
		fmt.Printf("checker %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}

	level := cfg.logLevel
	if cfg.verbose {
		level = "debug"
	}
	l := cliutil.SetupLogger("checker", cfg.logFormat, level)

	dev, err := backend.Open(backend.FromIfaceArg(cfg.canxlIf, cfg.baud))
	if err != nil {
		l.Error("open_failed", "iface", cfg.canxlIf, "error", err)
		return 1
	}
	defer dev.Close()

	engine, err := checker.New(uint32(cfg.maxBuffs), uint32(cfg.maxLPCnt), l)
	if err != nil {
		l.Error("invalid_config", "error", err)
		return 1
	}

	stop := cliutil.StartMetrics(cfg.metricsAddr, version, commit, date)
	defer stop()
	metrics.SetReadinessFunc(func() bool { return true })

	ctx, cancel := cliutil.ShutdownContext()
	defer cancel()

	mdnsStop, err := startMDNS(ctx, cfg)
	if err != nil {
		l.Warn("mdns_start_failed", "error", err)
	} else {
		defer mdnsStop()
	}

	// telemetry mirrors notification codes into logs/metrics off the hot
	// path; it never carries the notification frame itself onto the link.
	telemetry := transport.NewAsyncTx(ctx, telemetryBufferSize, func(fr canxl.Frame) error {
		l.Debug("notification_emitted", "tid", fr.TID(), "code", fr.Data[0], "ubuffs", fr.Data[1], "lpcnt", fr.Data[2])
		return nil
	}, transport.Hooks{
		OnDrop: func() error {
			metrics.IncNotificationDropped()
			return nil
		},
	})
	defer telemetry.Close()

	l.Info("checker_started", "iface", cfg.canxlIf, "maxbuffs", cfg.maxBuffs, "maxlpcnt", cfg.maxLPCnt)

	for {
		select {
		case <-ctx.Done():
			l.Info("shutdown")
			return 0
		default:
		}

		fr, err := dev.ReadFrame()
		if err != nil {
			if errors.Is(err, link.ErrClosed) || errors.Is(err, io.EOF) {
				return 0
			}
			l.Error("read_failed", "error", err)
			metrics.IncError(metrics.ErrLinkRead)
			return 1
		}

		if fr.Prio&^acceptedPrioMask != 0 {
			continue
		}

		notifications := engine.Handle(fr)
		metrics.SetCheckerGauges(int(engine.Ubuffs()), int(engine.LPCnt()))

		for _, n := range notifications {
			metrics.IncNotification(fmt.Sprintf("0x%02X", n.Code))
			nf := n.Frame()
			if err := dev.WriteFrame(nf); err != nil {
				l.Error("notify_write_failed", "error", err)
				metrics.IncError(metrics.ErrLinkWrite)
				return 1
			}
			_ = telemetry.SendFrame(nf)
		}
	}
}
