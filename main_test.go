package main

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"oidcrefresh/server"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"err", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, tc := range cases {
		got, err := parseLogLevel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseLogLevel(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseLogLevel(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseLogLevel(%q): got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestRunConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")

	if err := runConfigInit(path); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if err := runConfigInit(path); err == nil {
		t.Fatalf("expected refusal to overwrite existing config")
	}
}

func TestRedirectToHTTPS(t *testing.T) {
	req := httptest.NewRequest("GET", "http://app.example.com/dashboard?tab=1", nil)
	rec := httptest.NewRecorder()

	redirectToHTTPS(rec, req)

	if rec.Code != 301 {
		t.Fatalf("expected 301, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://app.example.com/dashboard?tab=1" {
		t.Fatalf("location: got %q", loc)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	logger := slog.Default()
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), logger); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestCheckProviderReachableNoIssuer(t *testing.T) {
	// No issuer configured means no outbound request at all.
	checkProviderReachable(context.Background(), server.Config{}, slog.Default())
}
