package main

import (
	"testing"
	"time"

	"github.com/ballotflow/mailballot/pkg/soda"
)

func TestParseFlags_Defaults(t *testing.T) {
	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() failed: %v", err)
	}

	if opts.resourceURL != soda.DefaultResourceURL {
		t.Errorf("resourceURL = %q, want %q", opts.resourceURL, soda.DefaultResourceURL)
	}
	if opts.pageSize != 50000 {
		t.Errorf("pageSize = %d, want 50000", opts.pageSize)
	}
	if opts.pageTimeout != 60*time.Second {
		t.Errorf("pageTimeout = %v, want 60s", opts.pageTimeout)
	}
	if opts.cachePath != defaultCachePath {
		t.Errorf("cachePath = %q, want %q", opts.cachePath, defaultCachePath)
	}
	if opts.outputPath != defaultOutputPath {
		t.Errorf("outputPath = %q, want %q", opts.outputPath, defaultOutputPath)
	}
	if opts.chartPath != defaultChartPath {
		t.Errorf("chartPath = %q, want %q", opts.chartPath, defaultChartPath)
	}
	if opts.referenceYear != 2020 {
		t.Errorf("referenceYear = %d, want 2020", opts.referenceYear)
	}
	if opts.topCounties != 20 {
		t.Errorf("topCounties = %d, want 20", opts.topCounties)
	}
	if opts.logLevel != "info" {
		t.Errorf("logLevel = %q, want info", opts.logLevel)
	}
}

func TestParseFlags_Overrides(t *testing.T) {
	opts, err := parseFlags([]string{
		"--resource-url", "https://example.test/resource/abcd-1234.json",
		"--page-size", "1000",
		"--page-timeout", "5s",
		"--cache", "raw.csv",
		"--reference-year", "2024",
		"--top-counties", "10",
		"--log-pretty",
	})
	if err != nil {
		t.Fatalf("parseFlags() failed: %v", err)
	}

	if opts.resourceURL != "https://example.test/resource/abcd-1234.json" {
		t.Errorf("resourceURL = %q", opts.resourceURL)
	}
	if opts.pageSize != 1000 {
		t.Errorf("pageSize = %d, want 1000", opts.pageSize)
	}
	if opts.pageTimeout != 5*time.Second {
		t.Errorf("pageTimeout = %v, want 5s", opts.pageTimeout)
	}
	if opts.cachePath != "raw.csv" {
		t.Errorf("cachePath = %q, want raw.csv", opts.cachePath)
	}
	if opts.referenceYear != 2024 {
		t.Errorf("referenceYear = %d, want 2024", opts.referenceYear)
	}
	if opts.topCounties != 10 {
		t.Errorf("topCounties = %d, want 10", opts.topCounties)
	}
	if !opts.logPretty {
		t.Error("Expected logPretty to be set")
	}
}

func TestParseFlags_EnvFallback(t *testing.T) {
	t.Setenv("SODA_RESOURCE_URL", "https://env.test/resource/wxyz-9876.json")
	t.Setenv("MAILBALLOT_CACHE", "/tmp/env_cache.csv")

	opts, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags() failed: %v", err)
	}

	if opts.resourceURL != "https://env.test/resource/wxyz-9876.json" {
		t.Errorf("resourceURL = %q, env var should win over default", opts.resourceURL)
	}
	if opts.cachePath != "/tmp/env_cache.csv" {
		t.Errorf("cachePath = %q, env var should win over default", opts.cachePath)
	}
}

func TestParseFlags_FlagBeatsEnv(t *testing.T) {
	t.Setenv("SODA_RESOURCE_URL", "https://env.test/resource/wxyz-9876.json")

	opts, err := parseFlags([]string{"--resource-url", "https://flag.test/resource/ffff-0000.json"})
	if err != nil {
		t.Fatalf("parseFlags() failed: %v", err)
	}
	if opts.resourceURL != "https://flag.test/resource/ffff-0000.json" {
		t.Errorf("resourceURL = %q, flag should win over env var", opts.resourceURL)
	}
}

func TestParseFlags_InvalidFlag(t *testing.T) {
	if _, err := parseFlags([]string{"--no-such-flag"}); err == nil {
		t.Error("Expected error for unknown flag")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("MAILBALLOT_TEST_KEY", "set")
	if got := getEnv("MAILBALLOT_TEST_KEY", "fallback"); got != "set" {
		t.Errorf("getEnv() = %q, want set", got)
	}
	if got := getEnv("MAILBALLOT_TEST_UNSET", "fallback"); got != "fallback" {
		t.Errorf("getEnv() = %q, want fallback", got)
	}
}

func TestHead(t *testing.T) {
	s := []int{1, 2, 3}
	if got := head(s, 2); len(got) != 2 {
		t.Errorf("head(3 elems, 2) = %d elems", len(got))
	}
	if got := head(s, 5); len(got) != 3 {
		t.Errorf("head(3 elems, 5) = %d elems", len(got))
	}
	if got := head([]int(nil), 5); got != nil {
		t.Error("head(nil) should stay nil")
	}
}
