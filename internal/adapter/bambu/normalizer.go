package bambu

import (
	"strconv"
	"strings"
	"time"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
)

// SubtypeDualNozzle is the device subtype latched when the firmware
// module list identifies a dual-nozzle variant.
const SubtypeDualNozzle = "dual-nozzle"

// dualNozzleHwMarker is the hardware-version prefix of the `mc` module
// on dual-nozzle machines.
const dualNozzleHwMarker = "MC07"

// Normalizer turns tagged vendor messages into status updates. It
// carries the small per-connection state: the running printer state and
// the one-shot subtype latch. One Normalizer serves one connection and
// is discarded on reconnect.
type Normalizer struct {
	lastState   domain.PrinterState
	subtypeSent bool
}

// NewNormalizer creates a normalizer with fresh scratch state.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		lastState: domain.PrinterState{Kind: domain.StateUnknown},
	}
}

// Normalize maps one vendor message to an ordered list of status
// updates plus an optional one-shot device subtype. Updates are emitted
// only for fields present in the frame; absent fields never reset
// previously known values.
func (n *Normalizer) Normalize(msg Message) ([]domain.StatusUpdate, string) {
	switch m := msg.(type) {
	case PrintMessage:
		return n.normalizePrint(&m.Print), ""
	case InfoMessage:
		return nil, n.classify(&m.Info)
	case SystemMessage:
		return nil, ""
	case UnknownMessage:
		return nil, ""
	default:
		return nil, ""
	}
}

func (n *Normalizer) normalizePrint(p *ReportPrint) []domain.StatusUpdate {
	var updates []domain.StatusUpdate

	if p.GcodeState != nil {
		state := n.deriveState(*p.GcodeState, p.PrintError)
		n.lastState = state
		updates = append(updates, domain.StateChange{State: state})
	}

	if p.McPercent != nil {
		updates = append(updates, domain.Progress{Percent: *p.McPercent})
	}

	// Vendor reports remaining time in whole minutes.
	if p.McRemainingTime != nil && *p.McRemainingTime >= 0 {
		d := time.Duration(*p.McRemainingTime) * time.Minute
		updates = append(updates, domain.TimeRemaining{Duration: d})
	}

	// Layer progress is only meaningful when both counts arrive together.
	if p.LayerNum != nil && p.TotalLayerNum != nil {
		updates = append(updates, domain.LayerProgress{
			Current: *p.LayerNum,
			Total:   *p.TotalLayerNum,
		})
	}

	if p.GcodeFile != nil && *p.GcodeFile != "" {
		updates = append(updates, domain.PrintFile{Name: *p.GcodeFile})
	} else if p.SubtaskName != nil && *p.SubtaskName != "" {
		updates = append(updates, domain.PrintFile{Name: *p.SubtaskName})
	}

	// Current and target are independent updates so a frame reporting
	// only the current temperature keeps the known target.
	if p.NozzleTemper != nil {
		updates = append(updates, domain.NozzleTemp{Tool: 0, Current: *p.NozzleTemper})
	}
	if p.NozzleTargetTemper != nil {
		updates = append(updates, domain.NozzleTarget{Tool: 0, Target: *p.NozzleTargetTemper})
	}
	if p.BedTemper != nil {
		updates = append(updates, domain.BedTemp{Current: *p.BedTemper})
	}
	if p.BedTargetTemper != nil {
		updates = append(updates, domain.BedTarget{Target: *p.BedTargetTemper})
	}
	if p.ChamberTemper != nil {
		updates = append(updates, domain.ChamberTemp{Current: *p.ChamberTemper})
	}

	// Per-extruder readings are applied after the scalar nozzle fields,
	// in ascending tool id, so for tool 0 the extruder entry wins
	// within one frame. The id is wire data; entries outside the
	// supported tool range are dropped so a frame cannot dictate how
	// much memory the status table allocates.
	if p.Device != nil && p.Device.Extruder != nil {
		for _, e := range p.Device.Extruder.Info {
			if e.ID == nil || *e.ID < 0 || *e.ID >= domain.MaxNozzles {
				continue
			}
			if e.Temp != nil {
				updates = append(updates, domain.NozzleTemp{Tool: *e.ID, Current: *e.Temp})
			}
			if e.TargetTemp != nil {
				updates = append(updates, domain.NozzleTarget{Tool: *e.ID, Target: *e.TargetTemp})
			}
		}
	}

	if p.WifiSignal != nil {
		updates = append(updates, domain.SignalQuality{Quality: BucketSignal(*p.WifiSignal)})
	}

	return updates
}

// deriveState maps the vendor's textual state code to the discrete
// printer state. Unrecognized codes are forwarded as Unknown, never
// treated as a failure.
func (n *Normalizer) deriveState(code string, printError *int64) domain.PrinterState {
	switch code {
	case "IDLE", "READY":
		return domain.PrinterState{Kind: domain.StateIdle}
	case "FINISH":
		return domain.PrinterState{Kind: domain.StateFinished}
	case "CREATED", "RUNNING", "PREPARE":
		return domain.PrinterState{Kind: domain.StatePrinting}
	case "PAUSE":
		if printError != nil && *printError != 0 {
			return domain.PrinterState{
				Kind: domain.StateError,
				Code: strconv.FormatInt(*printError, 10),
			}
		}
		return domain.PrinterState{Kind: domain.StatePaused}
	case "FAILED":
		return domain.PrinterState{Kind: domain.StateError, Code: "Failed"}
	default:
		return domain.PrinterState{Kind: domain.StateUnknown, Code: code}
	}
}

// classify scans the module list for the dual-nozzle marker. The
// classification is one-shot per connection.
func (n *Normalizer) classify(info *ReportInfo) string {
	if n.subtypeSent {
		return ""
	}
	for _, m := range info.Modules {
		if m.Name == "mc" && strings.HasPrefix(m.HwVer, dualNozzleHwMarker) {
			n.subtypeSent = true
			return SubtypeDualNozzle
		}
	}
	return ""
}

// BucketSignal parses the vendor's dBm-like signal string and buckets
// it into one of five discrete quality levels. Parse failures default
// to 0 dBm, which lands in the best bucket.
func BucketSignal(raw string) int {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "dBm"))
	v, err := strconv.Atoi(s)
	if err != nil {
		v = 0
	}
	if v < 0 {
		v = -v
	}
	switch {
	case v <= 50:
		return 100
	case v <= 60:
		return 75
	case v <= 70:
		return 50
	case v <= 80:
		return 25
	default:
		return 0
	}
}
