package service

import (
	"sync"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
)

// StatusTable is the shared per-printer status map. The supervisor's
// merge loop is its only writer; the presentation layer reads
// snapshots.
type StatusTable struct {
	mu       sync.RWMutex
	statuses map[domain.DeviceID]*domain.NormalizedStatus
}

// NewStatusTable creates an empty status table.
func NewStatusTable() *StatusTable {
	return &StatusTable{
		statuses: make(map[domain.DeviceID]*domain.NormalizedStatus),
	}
}

// Register creates the initial status record for a printer.
func (t *StatusTable) Register(id domain.DeviceID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.statuses[id] = &domain.NormalizedStatus{
		Connection: domain.ConnDisconnected,
		State:      domain.PrinterState{Kind: domain.StateDisconnected},
	}
}

// Drop removes a printer's status record.
func (t *StatusTable) Drop(id domain.DeviceID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.statuses, id)
}

// ApplyUpdates applies a frame's status updates to one printer.
// Returns false if the printer is unknown.
func (t *StatusTable) ApplyUpdates(id domain.DeviceID, updates []domain.StatusUpdate) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.statuses[id]
	if !ok {
		return false
	}
	domain.Apply(s, updates)
	return true
}

// SetConnection records a connection-state transition. The discrete
// printer state flips to Disconnected with the connection; the rest of
// the record keeps its last known values.
func (t *StatusTable) SetConnection(id domain.DeviceID, conn domain.ConnectionState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.statuses[id]
	if !ok {
		return false
	}
	s.Connection = conn
	if conn == domain.ConnDisconnected {
		s.State = domain.PrinterState{Kind: domain.StateDisconnected}
	}
	return true
}

// SetSubtype records the one-shot device subtype classification.
func (t *StatusTable) SetSubtype(id domain.DeviceID, subtype string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.statuses[id]
	if !ok {
		return false
	}
	s.Subtype = subtype
	return true
}

// Get returns a copy of one printer's status.
func (t *StatusTable) Get(id domain.DeviceID) (domain.NormalizedStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.statuses[id]
	if !ok {
		return domain.NormalizedStatus{}, false
	}
	return s.Clone(), true
}

// Snapshot returns a copy of the whole table.
func (t *StatusTable) Snapshot() map[domain.DeviceID]domain.NormalizedStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[domain.DeviceID]domain.NormalizedStatus, len(t.statuses))
	for id, s := range t.statuses {
		out[id] = s.Clone()
	}
	return out
}

// Len returns the number of registered printers.
func (t *StatusTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.statuses)
}
