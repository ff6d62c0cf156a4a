package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kstaniek/cia613-gw/internal/backend"
	"github.com/kstaniek/cia613-gw/internal/cliutil"
	"github.com/kstaniek/cia613-gw/internal/link"
	"github.com/kstaniek/cia613-gw/internal/metrics"
	"github.com/kstaniek/cia613-gw/internal/reassemble"
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
		fmt.Printf("reassembler %s (commit %s, built %s)\n", version, commit, date)
		return 0
	}

	level := cfg.logLevel
	if cfg.verbose {
		level = "debug"
	}
	l := cliutil.SetupLogger("reassembler", cfg.logFormat, level)

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

	engine := reassemble.New(uint32(cfg.transferID), l)

	stop := cliutil.StartMetrics(cfg.metricsAddr, version, commit, date)
	defer stop()
	metrics.SetReadinessFunc(func() bool { return true })

	ctx, cancel := cliutil.ShutdownContext()
	defer cancel()

	l.Info("reassembler_started", "src", cfg.srcIf, "dst", cfg.dstIf, "transfer_id", cfg.transferID)

	for {
		select {
		case <-ctx.Done():
			l.Info("shutdown")
			return 0
		default:
		}

		fr, err := src.ReadFrame()
		if err != nil {
			if errors.Is(err, link.ErrClosed) || errors.Is(err, io.EOF) {
				return 0
			}
			l.Error("read_failed", "error", err)
			metrics.IncError(metrics.ErrLinkRead)
			return 1
		}

		if fr.TID() != uint8(cfg.transferID) {
			continue
		}

		outcome, pdu := engine.Handle(fr)
		switch outcome {
		case reassemble.OutcomeForwarded:
			metrics.IncForwarded()
			if err := dst.WriteFrame(pdu); err != nil {
				l.Error("write_failed", "error", err)
				metrics.IncError(metrics.ErrLinkWrite)
				return 1
			}
		case reassemble.OutcomeLFCompleted:
			metrics.IncReassembled()
			if err := dst.WriteFrame(pdu); err != nil {
				l.Error("write_failed", "error", err)
				metrics.IncError(metrics.ErrLinkWrite)
				return 1
			}
		default:
			l.Debug("fragment_rejected", "outcome", outcome, "tid", fr.TID())
		}
	}
}
