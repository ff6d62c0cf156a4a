package main

import (
	"os"
	"testing"
)

func baseConfig() *appConfig {
	return &appConfig{
		transferID: 0,
		logFormat:  "text",
		logLevel:   "info",
		baud:       115200,
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
		{"badTransferID", func(c *appConfig) { c.transferID = 0x40 }},
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
	cfg, showVersion, err := parseFlags([]string{"-t", "5", "can0", "can1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if showVersion {
		t.Fatal("did not expect version flag")
	}
	if cfg.transferID != 5 || cfg.srcIf != "can0" || cfg.dstIf != "can1" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseFlags_MissingArgs(t *testing.T) {
	if _, _, err := parseFlags([]string{"can0"}); err == nil {
		t.Fatal("expected error for missing dst_if")
	}
}

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := baseConfig()
	os.Setenv("CIA613_REASSEMBLER_TRANSFER_ID", "9")
	t.Cleanup(func() { os.Unsetenv("CIA613_REASSEMBLER_TRANSFER_ID") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.transferID != 9 {
		t.Fatalf("expected transferID override, got %d", base.transferID)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := baseConfig()
	os.Setenv("CIA613_REASSEMBLER_TRANSFER_ID", "9")
	t.Cleanup(func() { os.Unsetenv("CIA613_REASSEMBLER_TRANSFER_ID") })
	if err := applyEnvOverrides(base, map[string]struct{}{"t": {}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.transferID != 0 {
		t.Fatalf("flag should have taken precedence, got %d", base.transferID)
	}
}
