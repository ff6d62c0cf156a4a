package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kstaniek/cia613-gw/internal/backend"
	"github.com/kstaniek/cia613-gw/internal/canxl"
	"github.com/kstaniek/cia613-gw/internal/cliutil"
	"github.com/kstaniek/cia613-gw/internal/fragment"
	"github.com/kstaniek/cia613-gw/internal/link"
	"github.com/kstaniek/cia613-gw/internal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, showVersion, err := parseFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if showVersion {
		fmt.Printf("fragmenter %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}

	level := cfg.logLevel
	if cfg.verbose {
		level = "debug"
	}
	l := cliutil.SetupLogger("fragmenter", cfg.logFormat, level)

	src, err := backend.Open(backend.FromIfaceArg(cfg.srcIf, cfg.baud))
	if err != nil {
		l.Error("open_src_failed", "iface", cfg.srcIf, "error", err)
		return 1
	}
	defer src.Close()

	dst, err := backend.Open(backend.FromIfaceArg(cfg.dstIf, cfg.baud))
	if err != nil {
		l.Error("open_dst_failed", "iface", cfg.dstIf, "error", err)
		return 1
	}
	defer dst.Close()

	if cfg.vcid >= 0 {
		if vd, ok := dst.(interface{ SetVCID(uint8) error }); ok {
			if err := vd.SetVCID(uint8(cfg.vcid)); err != nil {
				l.Error("set_vcid_failed", "vcid", cfg.vcid, "error", err)
				return 1
			}
		} else {
			l.Warn("vcid_unsupported_on_backend", "dst", cfg.dstIf)
		}
	}

	fragmenter, err := fragment.New(cfg.fragSize)
	if err != nil {
		l.Error("invalid_fragsize", "error", err)
		return 1
	}

	stop := cliutil.StartMetrics(cfg.metricsAddr, version, commit, date)
	defer stop()
	metrics.SetReadinessFunc(func() bool { return true })

	ctx, cancel := cliutil.ShutdownContext()
	defer cancel()

	l.Info("fragmenter_started", "src", cfg.srcIf, "dst", cfg.dstIf, "fragsize", cfg.fragSize)

	for {
		select {
		case <-ctx.Done():
			l.Info("shutdown")
			return 0
		default:
		}

		pdu, err := src.ReadFrame()
		if err != nil {
			if errors.Is(err, link.ErrClosed) || errors.Is(err, io.EOF) {
				return 0
			}
			l.Error("read_failed", "error", err)
			metrics.IncError(metrics.ErrLinkRead)
			return 1
		}

		if cfg.transferID >= 0 && pdu.TID() != uint8(cfg.transferID) {
			continue
		}

		frames, err := fragmenter.Fragment(pdu)
		if err != nil {
			if errors.Is(err, fragment.ErrTunnelEncapsulation) {
				l.Warn("tunnel_encapsulation", "tid", pdu.TID())
				continue
			}
			l.Error("fragment_failed", "error", err)
			continue
		}

		if len(frames) == 1 && frames[0].Len == pdu.Len {
			metrics.IncForwarded()
		} else {
			metrics.IncFragmented()
		}

		if err := writeAll(dst, frames); err != nil {
			l.Error("write_failed", "error", err)
			metrics.IncError(metrics.ErrLinkWrite)
			return 1
		}
	}
}

func writeAll(dst link.Device, frames []canxl.Frame) error {
	for _, fr := range frames {
		if err := dst.WriteFrame(fr); err != nil {
			return err
		}
	}
	return nil
}
