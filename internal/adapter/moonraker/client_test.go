package moonraker

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
)

func TestDeriveState(t *testing.T) {
	tests := []struct {
		input string
		want  domain.PrinterState
	}{
		{"standby", domain.PrinterState{Kind: domain.StateIdle}},
		{"printing", domain.PrinterState{Kind: domain.StatePrinting}},
		{"paused", domain.PrinterState{Kind: domain.StatePaused}},
		{"complete", domain.PrinterState{Kind: domain.StateFinished}},
		{"error", domain.PrinterState{Kind: domain.StateError}},
		{"warming_up", domain.PrinterState{Kind: domain.StateUnknown, Code: "warming_up"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := deriveState(tt.input); got != tt.want {
				t.Errorf("deriveState(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	out := make(chan domain.WorkerMsg)
	cmds := make(chan domain.Command)

	_, err := NewClient(ClientConfig{
		Printer: domain.PrinterConfig{ID: "k1", Vendor: domain.VendorKlipper},
	}, out, cmds, zerolog.Nop(), nil)
	if err != domain.ErrHostRequired {
		t.Fatalf("err = %v, want ErrHostRequired", err)
	}
}
