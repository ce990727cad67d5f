package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Fleet.BufferSize != 1024 {
		t.Errorf("default buffer = %d, want 1024", cfg.Fleet.BufferSize)
	}
	if cfg.Reconnect.MaxDelay < cfg.Reconnect.InitialDelay {
		t.Errorf("default backoff bounds inverted")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q", cfg.Logging.Level)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
http:
  port: 9090
logging:
  level: debug
  format: console
fleet:
  buffer_size: 16
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Fleet.BufferSize != 16 {
		t.Errorf("buffer = %d, want 16", cfg.Fleet.BufferSize)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "config.yaml", `
fleet:
  buffer_size: 0
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted zero buffer size")
	}
}

func TestLoadPrinters(t *testing.T) {
	path := writeFile(t, "printers.yaml", `
printers:
  - id: x1c-shop
    name: Shop X1C
    vendor: bambu
    serial: 01S00A000000000
    host: 192.168.1.50
    access_code: "12345678"
  - id: voron-2
    name: Voron
    vendor: klipper
    host: 192.168.1.60
`)

	printers, err := LoadPrinters(path)
	if err != nil {
		t.Fatalf("LoadPrinters failed: %v", err)
	}
	if len(printers) != 2 {
		t.Fatalf("got %d printers, want 2", len(printers))
	}
	if printers[0].Vendor != domain.VendorBambu || printers[1].Vendor != domain.VendorKlipper {
		t.Errorf("vendors = %q, %q", printers[0].Vendor, printers[1].Vendor)
	}
}

func TestLoadPrintersRejectsDuplicates(t *testing.T) {
	path := writeFile(t, "printers.yaml", `
printers:
  - id: p1
    vendor: klipper
    host: a
  - id: p1
    vendor: klipper
    host: b
`)
	_, err := LoadPrinters(path)
	if !errors.Is(err, domain.ErrPrinterExists) {
		t.Fatalf("err = %v, want ErrPrinterExists", err)
	}
}

func TestLoadPrintersRejectsInvalidEntry(t *testing.T) {
	path := writeFile(t, "printers.yaml", `
printers:
  - id: p1
    vendor: bambu
    host: 192.168.1.50
    access_code: "123"
`)
	_, err := LoadPrinters(path)
	if !errors.Is(err, domain.ErrSerialRequired) {
		t.Fatalf("err = %v, want ErrSerialRequired", err)
	}
}
