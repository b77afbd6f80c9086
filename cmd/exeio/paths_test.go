package main

import (
	"strings"
	"testing"
)

func TestDefaultLogDirIsUnderDataDir(t *testing.T) {
	got := defaultLogDir("/tmp/exeio-data")
	if got != "/tmp/exeio-data/logs" {
		t.Fatalf("unexpected log dir: %s", got)
	}
}

func TestDefaultLockPathIsUnderDataDir(t *testing.T) {
	got := defaultLockPath("/tmp/exeio-data")
	if got != "/tmp/exeio-data/exeio.lock" {
		t.Fatalf("unexpected lock path: %s", got)
	}
}

func TestDefaultSystemLogPathIsUnderLogDir(t *testing.T) {
	got := defaultSystemLogPath("/tmp/exeio-data")
	if got != "/tmp/exeio-data/logs/_system.log" {
		t.Fatalf("unexpected system log path: %s", got)
	}
}

func TestDefaultDataDirIsNonEmpty(t *testing.T) {
	if defaultDataDir() == "" {
		t.Fatal("expected a non-empty default data dir")
	}
}

func TestDefaultConfigPathEndsInConfigJSON(t *testing.T) {
	got := defaultConfigPath()
	if !strings.HasSuffix(got, "exeio/config.json") && !strings.HasSuffix(got, `exeio\config.json`) {
		t.Fatalf("unexpected config path: %s", got)
	}
}

func TestGenerateAPIKeyHasExpectedPrefix(t *testing.T) {
	key := generateAPIKey()
	if !strings.HasPrefix(key, "exeio_") {
		t.Fatalf("expected exeio_ prefix, got %s", key)
	}
	if generateAPIKey() == generateAPIKey() {
		t.Fatal("expected distinct keys across calls")
	}
}
