package main

import (
	"os"
	"testing"
)

func baseConfig() *appConfig {
	return &appConfig{
		maxBuffs:  3,
		maxLPCnt:  2,
		logFormat: "text",
		logLevel:  "info",
		baud:      115200,
	}
}

func TestConfigValidate_OK(t *testing.T) {
	if err := baseConfig().validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badMaxBuffs", func(c *appConfig) { c.maxBuffs = 0 }},
		{"badMaxLPCnt", func(c *appConfig) { c.maxLPCnt = 0 }},
		{"badBaud", func(c *appConfig) { c.baud = 0 }},
	}
	for _, tc := range tests {
		c := baseConfig()
		tc.mod(c)
		if err := c.validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestParseFlags_PositionalArgs(t *testing.T) {
	cfg, showVersion, err := parseFlags([]string{"-b", "5", "-l", "4", "can0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if showVersion {
		t.Fatal("did not expect version flag")
	}
	if cfg.maxBuffs != 5 || cfg.maxLPCnt != 4 || cfg.canxlIf != "can0" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseFlags_MissingArgs(t *testing.T) {
	if _, _, err := parseFlags(nil); err == nil {
		t.Fatal("expected error for missing canxl_if")
	}
}

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := baseConfig()
	os.Setenv("CIA613_CHECKER_MAXBUFFS", "6")
	os.Setenv("CIA613_CHECKER_MDNS_ENABLE", "true")
	t.Cleanup(func() {
		os.Unsetenv("CIA613_CHECKER_MAXBUFFS")
		os.Unsetenv("CIA613_CHECKER_MDNS_ENABLE")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.maxBuffs != 6 {
		t.Fatalf("expected maxBuffs override, got %d", base.maxBuffs)
	}
	if !base.mdnsEnable {
		t.Fatal("expected mdnsEnable true")
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := baseConfig()
	os.Setenv("CIA613_CHECKER_MAXBUFFS", "6")
	t.Cleanup(func() { os.Unsetenv("CIA613_CHECKER_MAXBUFFS") })
	if err := applyEnvOverrides(base, map[string]struct{}{"b": {}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.maxBuffs != 3 {
		t.Fatalf("flag should have taken precedence, got %d", base.maxBuffs)
	}
}
