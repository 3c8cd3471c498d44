package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/appletdev"
)

func TestBuildOptions_Defaults(t *testing.T) {
	dev, err := appletdev.New(BuildOptions(Default(), nil)...)
	if err != nil {
		t.Fatalf("appletdev.New() error = %v", err)
	}

	if dev.Root() != "." || dev.Entry() != "index.html" || dev.Port() != 4002 {
		t.Errorf("Root(), Entry(), Port() = %q, %q, %d", dev.Root(), dev.Entry(), dev.Port())
	}
	attempts, backoff := dev.Reconnect()
	if attempts != 10 || backoff != time.Second {
		t.Errorf("Reconnect() = %d, %v, want 10, 1s", attempts, backoff)
	}
}

func TestBuildOptions_FromYAML(t *testing.T) {
	cfg, err := Parse([]byte(`
port: 9000
root: /srv/applets
entry: AI SimCity.html
reconnect:
  max_attempts: 0
  base_backoff: 250ms
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	dev, err := appletdev.New(BuildOptions(cfg, nil)...)
	if err != nil {
		t.Fatalf("appletdev.New() error = %v", err)
	}

	if dev.Root() != "/srv/applets" {
		t.Errorf("Root() = %q, want /srv/applets", dev.Root())
	}
	if dev.Entry() != "AI SimCity.html" {
		t.Errorf("Entry() = %q, want AI SimCity.html", dev.Entry())
	}
	if dev.Port() != 9000 {
		t.Errorf("Port() = %d, want 9000", dev.Port())
	}
	attempts, backoff := dev.Reconnect()
	if attempts != 0 || backoff != 250*time.Millisecond {
		t.Errorf("Reconnect() = %d, %v, want 0, 250ms", attempts, backoff)
	}
}

func TestBuildOptions_Logger(t *testing.T) {
	withoutLogger := BuildOptions(Default(), nil)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	withLogger := BuildOptions(Default(), logger)

	if len(withLogger) != len(withoutLogger)+1 {
		t.Errorf("len(options) = %d, want %d", len(withLogger), len(withoutLogger)+1)
	}
	if _, err := appletdev.New(withLogger...); err != nil {
		t.Fatalf("appletdev.New() error = %v", err)
	}
}

func TestBuildOptions_InvalidValuesRejectedByLibrary(t *testing.T) {
	cfg := Default()
	cfg.Entry = "nested/index.html"

	_, err := appletdev.New(BuildOptions(cfg, nil)...)
	if err == nil || !strings.Contains(err.Error(), "entry must be a file name") {
		t.Errorf("appletdev.New() error = %v, want entry error", err)
	}
}
