package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kstaniek/cia613-gw/internal/checker"
)

type appConfig struct {
	maxBuffs    int
	maxLPCnt    int
	verbose     bool
	logFormat   string
	logLevel    string
	metricsAddr string
	baud        int
	mdnsEnable  bool
	mdnsName    string
	canxlIf     string
}

func parseFlags(args []string) (*appConfig, bool, error) {
	fs := flag.NewFlagSet("checker", flag.ContinueOnError)
	cfg := &appConfig{}
	maxBuffs := fs.Int("b", checker.DefaultMaxBuffs, "Maximum concurrent ASSEMBLING buffers")
	maxLPCnt := fs.Int("l", checker.DefaultMaxLPCnt, "Low-priority starvation threshold")
	verbose := fs.Bool("v", false, "Verbose logging")
	logFormat := fs.String("log-format", "text", "Log format: text|json")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	baud := fs.Int("baud", 115200, "Serial baud rate, when the interface is a /dev/ path")
	mdnsEnable := fs.Bool("mdns-enable", false, "Enable mDNS/Avahi advertisement")
	mdnsName := fs.String("mdns-name", "", "mDNS instance name (default cia613-checker-<hostname>)")
	showVersion := fs.Bool("version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, false, err
	}

	setFlags := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.maxBuffs = *maxBuffs
	cfg.maxLPCnt = *maxLPCnt
	cfg.verbose = *verbose
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.baud = *baud
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		return nil, *showVersion, err
	}
	if *showVersion {
		return cfg, true, nil
	}

	rest := fs.Args()
	if len(rest) != 1 {
		return nil, false, fmt.Errorf("usage: checker [flags] <canxl_if>")
	}
	cfg.canxlIf = rest[0]

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
	if c.maxBuffs < 1 {
		return fmt.Errorf("maxbuffs must be >= 1 (got %d)", c.maxBuffs)
	}
	if c.maxLPCnt < 1 {
		return fmt.Errorf("maxlpcnt must be >= 1 (got %d)", c.maxLPCnt)
	}
	if c.baud <= 0 {
		return fmt.Errorf("baud must be > 0 (got %d)", c.baud)
	}
	return nil
}

// applyEnvOverrides maps CIA613_CHECKER_* environment variables to config
// fields unless the corresponding flag was explicitly set.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }
	if _, ok := set["b"]; !ok {
		if v, ok := get("CIA613_CHECKER_MAXBUFFS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.maxBuffs = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid CIA613_CHECKER_MAXBUFFS: %w", err)
			}
		}
	}
	if _, ok := set["l"]; !ok {
		if v, ok := get("CIA613_CHECKER_MAXLPCNT"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.maxLPCnt = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid CIA613_CHECKER_MAXLPCNT: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("CIA613_CHECKER_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("CIA613_CHECKER_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("CIA613_CHECKER_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["baud"]; !ok {
		if v, ok := get("CIA613_CHECKER_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.baud = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid CIA613_CHECKER_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("CIA613_CHECKER_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("CIA613_CHECKER_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}
