package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type appConfig struct {
	transferID  int
	verbose     bool
	logFormat   string
	logLevel    string
	metricsAddr string
	baud        int
	srcIf       string
	dstIf       string
}

func parseFlags(args []string) (*appConfig, bool, error) {
	fs := flag.NewFlagSet("reassembler", flag.ContinueOnError)
	cfg := &appConfig{}
	transferID := fs.Int("t", 0, "Transfer ID this reassembler is bound to")
	verbose := fs.Bool("v", false, "Verbose logging")
	logFormat := fs.String("log-format", "text", "Log format: text|json")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	baud := fs.Int("baud", 115200, "Serial baud rate, when an interface is a /dev/ path")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	setFlags := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.transferID = *transferID
	cfg.verbose = *verbose
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.baud = *baud

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return nil, *showVersion, err
	}
	if *showVersion {
		return cfg, true, nil
	}

	rest := fs.Args()
	if len(rest) != 2 {
		return nil, false, fmt.Errorf("usage: reassembler [flags] <src_if> <dst_if>")
	}
	cfg.srcIf, cfg.dstIf = rest[0], rest[1]

	if err := cfg.validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	if c.transferID < 0 || c.transferID > 0x3F {
		return fmt.Errorf("transfer-id out of range: %d", c.transferID)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	return nil
}

// applyEnvOverrides maps CIA613_REASSEMBLER_* environment variables to
// config fields unless the corresponding flag was explicitly set.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["t"]; !ok {
		if v, ok := get("CIA613_REASSEMBLER_TRANSFER_ID"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.transferID = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid CIA613_REASSEMBLER_TRANSFER_ID: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("CIA613_REASSEMBLER_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("CIA613_REASSEMBLER_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CIA613_REASSEMBLER_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("CIA613_REASSEMBLER_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid CIA613_REASSEMBLER_BAUD: %w", err)
			}
		}
	}
	return firstErr
}
