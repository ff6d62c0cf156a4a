package main

import (
	"os"
	"testing"
)

func baseConfig() *appConfig {
	return &appConfig{
		fragSize:   128,
		transferID: -1,
		vcid:       -1,
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
		{"badVCID", func(c *appConfig) { c.vcid = 0x100 }},
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
	cfg, showVersion, err := parseFlags([]string{"-f", "256", "can0", "can1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if showVersion {
		t.Fatal("did not expect version flag")
	}
	if cfg.fragSize != 256 || cfg.srcIf != "can0" || cfg.dstIf != "can1" {
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
	os.Setenv("CIA613_FRAGMENTER_FRAGSIZE", "512")
	os.Setenv("CIA613_FRAGMENTER_VCID", "7")
	t.Cleanup(func() {
		os.Unsetenv("CIA613_FRAGMENTER_FRAGSIZE")
		os.Unsetenv("CIA613_FRAGMENTER_VCID")
	})
	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.fragSize != 512 {
		t.Fatalf("expected fragSize override, got %d", base.fragSize)
	}
	if base.vcid != 7 {
		t.Fatalf("expected vcid override, got %d", base.vcid)
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := baseConfig()
	os.Setenv("CIA613_FRAGMENTER_FRAGSIZE", "512")
	t.Cleanup(func() { os.Unsetenv("CIA613_FRAGMENTER_FRAGSIZE") })
	if err := applyEnvOverrides(base, map[string]struct{}{"f": {}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.fragSize != 128 {
		t.Fatalf("flag should have taken precedence, got %d", base.fragSize)
	}
}
