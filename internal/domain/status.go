package domain

import "time"

// StateKind is the discrete printer state derived from vendor status codes.
type StateKind string

const (
	StateIdle         StateKind = "idle"
	StatePrinting     StateKind = "printing"
	StatePaused       StateKind = "paused"
	StateFinished     StateKind = "finished"
	StateError        StateKind = "error"
	StateDisconnected StateKind = "disconnected"
	StateUnknown      StateKind = "unknown"
)

// PrinterState pairs a discrete state with an optional vendor code:
// the error code for StateError, the raw unrecognized state string for
// StateUnknown, empty otherwise.
type PrinterState struct {
	Kind StateKind `json:"kind"`
	Code string    `json:"code,omitempty"`
}

// Temperature is a current reading plus an optional last-known target.
type Temperature struct {
	Current float64  `json:"current"`
	Target  *float64 `json:"target,omitempty"`
}

// NormalizedStatus is the vendor-neutral aggregate status for one
// printer. Every field holds the last known value; a frame that omits
// a field never resets it.
type NormalizedStatus struct {
	Connection    ConnectionState `json:"connection"`
	State         PrinterState    `json:"state"`
	Nozzles       []Temperature   `json:"nozzles,omitempty"`
	Bed           *Temperature    `json:"bed,omitempty"`
	Chamber       *Temperature    `json:"chamber,omitempty"`
	Progress      *int            `json:"progress,omitempty"`
	FileName      string          `json:"file_name,omitempty"`
	TimeRemaining *time.Duration  `json:"time_remaining,omitempty"`
	LayerCurrent  *int            `json:"layer_current,omitempty"`
	LayerTotal    *int            `json:"layer_total,omitempty"`
	SignalQuality *int            `json:"signal_quality,omitempty"`
	Subtype       string          `json:"subtype,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MaxNozzles bounds the tool index a frame may address. The slice in
// Nozzles grows on demand, so the index must never be taken from the
// wire unchecked; no shipping machine has more than a handful of tools.
const MaxNozzles = 16

// StatusUpdate is one atomic field-level change derived from a single
// inbound frame. The set of implementations is closed: adding a kind
// is a compile-time change, not a runtime fallback.
type StatusUpdate interface {
	applyTo(s *NormalizedStatus)
}

// Apply applies updates in order. Later updates to the same field win.
// Application is idempotent per field.
func Apply(s *NormalizedStatus, updates []StatusUpdate) {
	for _, u := range updates {
		u.applyTo(s)
	}
	if len(updates) > 0 {
		s.UpdatedAt = time.Now()
	}
}

// StateChange sets the discrete printer state.
type StateChange struct {
	State PrinterState
}

func (u StateChange) applyTo(s *NormalizedStatus) { s.State = u.State }

// NozzleTemp sets the current temperature of one tool. The target is
// left untouched.
type NozzleTemp struct {
	Tool    int
	Current float64
}

func (u NozzleTemp) applyTo(s *NormalizedStatus) {
	if !s.ensureNozzle(u.Tool) {
		return
	}
	s.Nozzles[u.Tool].Current = u.Current
}

// NozzleTarget sets the target temperature of one tool.
type NozzleTarget struct {
	Tool   int
	Target float64
}

func (u NozzleTarget) applyTo(s *NormalizedStatus) {
	if !s.ensureNozzle(u.Tool) {
		return
	}
	t := u.Target
	s.Nozzles[u.Tool].Target = &t
}

// BedTemp sets the current bed temperature.
type BedTemp struct {
	Current float64
}

func (u BedTemp) applyTo(s *NormalizedStatus) {
	if s.Bed == nil {
		s.Bed = &Temperature{}
	}
	s.Bed.Current = u.Current
}

// BedTarget sets the target bed temperature.
type BedTarget struct {
	Target float64
}

func (u BedTarget) applyTo(s *NormalizedStatus) {
	if s.Bed == nil {
		s.Bed = &Temperature{}
	}
	t := u.Target
	s.Bed.Target = &t
}

// ChamberTemp sets the current chamber temperature.
type ChamberTemp struct {
	Current float64
}

func (u ChamberTemp) applyTo(s *NormalizedStatus) {
	if s.Chamber == nil {
		s.Chamber = &Temperature{}
	}
	s.Chamber.Current = u.Current
}

// Progress sets the print progress percent.
type Progress struct {
	Percent int
}

func (u Progress) applyTo(s *NormalizedStatus) {
	p := u.Percent
	s.Progress = &p
}

// PrintFile sets the current file name.
type PrintFile struct {
	Name string
}

func (u PrintFile) applyTo(s *NormalizedStatus) { s.FileName = u.Name }

// TimeRemaining sets the remaining print duration.
type TimeRemaining struct {
	Duration time.Duration
}

func (u TimeRemaining) applyTo(s *NormalizedStatus) {
	d := u.Duration
	s.TimeRemaining = &d
}

// LayerProgress sets current and total layer counts together.
type LayerProgress struct {
	Current int
	Total   int
}

func (u LayerProgress) applyTo(s *NormalizedStatus) {
	c, t := u.Current, u.Total
	s.LayerCurrent = &c
	s.LayerTotal = &t
}

// SignalQuality sets the bucketed signal quality (0, 25, 50, 75, 100).
type SignalQuality struct {
	Quality int
}

func (u SignalQuality) applyTo(s *NormalizedStatus) {
	q := u.Quality
	s.SignalQuality = &q
}

// ensureNozzle grows the slice to cover tool and reports whether the
// index is usable. Out-of-range indexes are dropped, not grown: the
// tool id comes from the wire and must not size process memory.
func (s *NormalizedStatus) ensureNozzle(tool int) bool {
	if tool < 0 || tool >= MaxNozzles {
		return false
	}
	for len(s.Nozzles) <= tool {
		s.Nozzles = append(s.Nozzles, Temperature{})
	}
	return true
}

// Clone returns a deep copy safe to hand to readers.
func (s *NormalizedStatus) Clone() NormalizedStatus {
	out := *s
	if s.Nozzles != nil {
		out.Nozzles = make([]Temperature, len(s.Nozzles))
		for i, n := range s.Nozzles {
			out.Nozzles[i] = n
			if n.Target != nil {
				t := *n.Target
				out.Nozzles[i].Target = &t
			}
		}
	}
	out.Bed = cloneTemp(s.Bed)
	out.Chamber = cloneTemp(s.Chamber)
	out.Progress = cloneInt(s.Progress)
	out.LayerCurrent = cloneInt(s.LayerCurrent)
	out.LayerTotal = cloneInt(s.LayerTotal)
	out.SignalQuality = cloneInt(s.SignalQuality)
	if s.TimeRemaining != nil {
		d := *s.TimeRemaining
		out.TimeRemaining = &d
	}
	return out
}

func cloneTemp(t *Temperature) *Temperature {
	if t == nil {
		return nil
	}
	out := *t
	if t.Target != nil {
		v := *t.Target
		out.Target = &v
	}
	return &out
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
