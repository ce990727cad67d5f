package domain

import (
	"testing"
	"time"
)

func TestApplyLastWriteWinsWithinList(t *testing.T) {
	s := NormalizedStatus{}
	Apply(&s, []StatusUpdate{
		Progress{Percent: 10},
		Progress{Percent: 20},
		NozzleTemp{Tool: 0, Current: 200},
		NozzleTemp{Tool: 0, Current: 205},
	})

	if *s.Progress != 20 {
		t.Errorf("progress = %d, want later update (20) to win", *s.Progress)
	}
	if s.Nozzles[0].Current != 205 {
		t.Errorf("nozzle = %v, want later update (205) to win", s.Nozzles[0].Current)
	}
}

func TestApplyIsIdempotentPerField(t *testing.T) {
	updates := []StatusUpdate{
		StateChange{State: PrinterState{Kind: StatePrinting}},
		Progress{Percent: 55},
		TimeRemaining{Duration: 42 * time.Minute},
		LayerProgress{Current: 7, Total: 31},
		SignalQuality{Quality: 75},
	}

	once := NormalizedStatus{}
	Apply(&once, updates)

	twice := NormalizedStatus{}
	Apply(&twice, updates)
	Apply(&twice, updates)

	if once.State != twice.State ||
		*once.Progress != *twice.Progress ||
		*once.TimeRemaining != *twice.TimeRemaining ||
		*once.LayerCurrent != *twice.LayerCurrent ||
		*once.LayerTotal != *twice.LayerTotal ||
		*once.SignalQuality != *twice.SignalQuality {
		t.Errorf("double application diverged from single application")
	}
}

func TestApplyWriteThroughOnly(t *testing.T) {
	s := NormalizedStatus{}
	Apply(&s, []StatusUpdate{
		StateChange{State: PrinterState{Kind: StatePrinting}},
		Progress{Percent: 40},
		BedTemp{Current: 60},
		BedTarget{Target: 65},
		PrintFile{Name: "part.gcode"},
	})

	// A later frame touching unrelated fields leaves everything else intact.
	Apply(&s, []StatusUpdate{NozzleTemp{Tool: 0, Current: 220}})

	if s.State.Kind != StatePrinting {
		t.Errorf("state was reset")
	}
	if s.Progress == nil || *s.Progress != 40 {
		t.Errorf("progress was reset")
	}
	if s.Bed == nil || s.Bed.Current != 60 || s.Bed.Target == nil || *s.Bed.Target != 65 {
		t.Errorf("bed readings were reset: %+v", s.Bed)
	}
	if s.FileName != "part.gcode" {
		t.Errorf("file name was reset")
	}
}

func TestApplyEmptyListDoesNotTouchTimestamp(t *testing.T) {
	s := NormalizedStatus{}
	Apply(&s, nil)
	if !s.UpdatedAt.IsZero() {
		t.Errorf("empty update list bumped UpdatedAt")
	}
}

func TestNozzleGrowth(t *testing.T) {
	s := NormalizedStatus{}
	Apply(&s, []StatusUpdate{NozzleTarget{Tool: 1, Target: 250}})

	if len(s.Nozzles) != 2 {
		t.Fatalf("got %d nozzles, want slice grown to 2", len(s.Nozzles))
	}
	if s.Nozzles[1].Target == nil || *s.Nozzles[1].Target != 250 {
		t.Errorf("tool 1 target = %v, want 250", s.Nozzles[1].Target)
	}
	if s.Nozzles[0].Target != nil {
		t.Errorf("tool 0 target set spuriously")
	}
}

func TestNozzleGrowthIsBounded(t *testing.T) {
	s := NormalizedStatus{}
	Apply(&s, []StatusUpdate{
		NozzleTemp{Tool: 0, Current: 210},
		NozzleTemp{Tool: 2_000_000, Current: 210},
		NozzleTarget{Tool: MaxNozzles, Target: 250},
		NozzleTemp{Tool: -1, Current: 210},
	})

	// Wire-chosen tool ids must not size the slice; out-of-range
	// updates are dropped.
	if len(s.Nozzles) != 1 {
		t.Fatalf("got %d nozzle slots, want 1", len(s.Nozzles))
	}
	if s.Nozzles[0].Current != 210 {
		t.Errorf("in-range update was lost")
	}

	Apply(&s, []StatusUpdate{NozzleTarget{Tool: MaxNozzles - 1, Target: 250}})
	if len(s.Nozzles) != MaxNozzles {
		t.Errorf("got %d nozzle slots, want top in-range id to grow to %d", len(s.Nozzles), MaxNozzles)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NormalizedStatus{}
	Apply(&s, []StatusUpdate{
		NozzleTarget{Tool: 0, Target: 220},
		BedTemp{Current: 60},
		Progress{Percent: 10},
	})

	clone := s.Clone()
	Apply(&s, []StatusUpdate{
		NozzleTarget{Tool: 0, Target: 999},
		BedTemp{Current: 99},
		Progress{Percent: 90},
	})

	if *clone.Nozzles[0].Target != 220 {
		t.Errorf("clone nozzle target mutated")
	}
	if clone.Bed.Current != 60 {
		t.Errorf("clone bed mutated")
	}
	if *clone.Progress != 10 {
		t.Errorf("clone progress mutated")
	}
}

func TestPrinterConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     PrinterConfig
		wantErr error
	}{
		{
			name:    "missing id",
			cfg:     PrinterConfig{Vendor: VendorBambu, Serial: "s"},
			wantErr: ErrPrinterIDRequired,
		},
		{
			name:    "bambu missing serial",
			cfg:     PrinterConfig{ID: "a", Vendor: VendorBambu, Host: "h", AccessCode: "c"},
			wantErr: ErrSerialRequired,
		},
		{
			name:    "bambu lan missing host",
			cfg:     PrinterConfig{ID: "a", Vendor: VendorBambu, Serial: "s", AccessCode: "c"},
			wantErr: ErrHostRequired,
		},
		{
			name:    "bambu lan missing access code",
			cfg:     PrinterConfig{ID: "a", Vendor: VendorBambu, Serial: "s", Host: "h"},
			wantErr: ErrAccessCodeRequired,
		},
		{
			name: "bambu cloud needs no host",
			cfg:  PrinterConfig{ID: "a", Vendor: VendorBambu, Serial: "s", Cloud: true},
		},
		{
			name:    "klipper missing host",
			cfg:     PrinterConfig{ID: "a", Vendor: VendorKlipper},
			wantErr: ErrHostRequired,
		},
		{
			name: "klipper ok",
			cfg:  PrinterConfig{ID: "a", Vendor: VendorKlipper, Host: "h"},
		},
		{
			name:    "unknown vendor",
			cfg:     PrinterConfig{ID: "a", Vendor: "prusa"},
			wantErr: ErrUnsupportedVendor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
