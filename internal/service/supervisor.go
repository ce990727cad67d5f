// Package service provides the connection supervisor that owns one
// protocol-client task per printer and merges their status events into
// the shared status table.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/RussHewgill/printer-watcher-sub000/internal/adapter/bambu"
	"github.com/RussHewgill/printer-watcher-sub000/internal/adapter/moonraker"
	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
	"github.com/RussHewgill/printer-watcher-sub000/internal/metrics"
)

// SupervisorConfig holds configuration for the supervisor.
type SupervisorConfig struct {
	// BufferSize is the capacity of the merged WorkerMsg channel
	BufferSize int

	// CloudToken is the fleet-wide bearer token for cloud-mode printers
	CloudToken string

	// InitialDelay and MaxDelay tune the per-printer reconnect backoff
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// ShutdownTimeout bounds the wait for client tasks on Stop
	ShutdownTimeout time.Duration
}

// printerHandle is the supervisor's per-printer bookkeeping: the shared
// config, the cancellation handle, and the inert command channel.
type printerHandle struct {
	cfg    domain.PrinterConfig
	cancel context.CancelFunc
	cmds   chan domain.Command
}

// Supervisor spawns one protocol-client task per registered printer and
// runs the merge loop that applies their WorkerMsg events to the status
// table. Failures in one printer's connection never affect another's.
type Supervisor struct {
	config  SupervisorConfig
	table   *StatusTable
	logger  zerolog.Logger
	metrics *metrics.Registry
	factory domain.ClientFactory

	workerCh chan domain.WorkerMsg

	printers map[domain.DeviceID]*printerHandle
	mu       sync.RWMutex

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
	stopped    atomic.Bool

	msgsMerged atomic.Uint64
}

// NewSupervisor creates a supervisor with the default per-vendor client
// factory.
func NewSupervisor(config SupervisorConfig, logger zerolog.Logger, metricsReg *metrics.Registry) *Supervisor {
	if config.BufferSize <= 0 {
		config.BufferSize = 1024
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())

	s := &Supervisor{
		config:     config,
		table:      NewStatusTable(),
		logger:     logger.With().Str("component", "supervisor").Logger(),
		metrics:    metricsReg,
		workerCh:   make(chan domain.WorkerMsg, config.BufferSize),
		printers:   make(map[domain.DeviceID]*printerHandle),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
	}
	s.factory = s.buildClient
	return s
}

// SetClientFactory replaces the protocol-client factory. Used by tests
// to inject fakes.
func (s *Supervisor) SetClientFactory(factory domain.ClientFactory) {
	s.factory = factory
}

// Table returns the shared status table for read-only consumers.
func (s *Supervisor) Table() *StatusTable {
	return s.table
}

// buildClient is the default factory: it selects the protocol client by
// vendor family.
func (s *Supervisor) buildClient(cfg domain.PrinterConfig, out chan<- domain.WorkerMsg, cmds <-chan domain.Command) (domain.ProtocolClient, error) {
	switch cfg.Vendor {
	case domain.VendorBambu:
		return bambu.NewClient(bambu.ClientConfig{
			Printer:      cfg,
			CloudToken:   s.config.CloudToken,
			InitialDelay: s.config.InitialDelay,
			MaxDelay:     s.config.MaxDelay,
		}, out, cmds, s.logger, s.metrics)
	case domain.VendorKlipper:
		return moonraker.NewClient(moonraker.ClientConfig{
			Printer:      cfg,
			InitialDelay: s.config.InitialDelay,
			MaxDelay:     s.config.MaxDelay,
		}, out, cmds, s.logger, s.metrics)
	default:
		return nil, domain.ErrUnsupportedVendor
	}
}

// AddPrinter registers a printer and spawns its protocol-client task.
// Returns ErrPrinterExists if the id is already registered. Credential
// errors from client construction are returned synchronously and leave
// no registration behind.
func (s *Supervisor) AddPrinter(cfg domain.PrinterConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.stopped.Load() {
		return domain.ErrSupervisorStopped
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.printers[cfg.ID]; exists {
		return domain.ErrPrinterExists
	}

	cmds := make(chan domain.Command, 1)
	client, err := s.factory(cfg, s.workerCh, cmds)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.printers[cfg.ID] = &printerHandle{cfg: cfg, cancel: cancel, cmds: cmds}
	s.table.Register(cfg.ID)
	s.metrics.SetRegisteredPrinters(len(s.printers))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		client.Run(ctx)
	}()

	s.logger.Info().
		Str("device_id", string(cfg.ID)).
		Str("name", cfg.Name).
		Str("vendor", string(cfg.Vendor)).
		Msg("Registered printer")

	return nil
}

// RemovePrinter cancels a printer's client task and drops it from the
// fleet. The task observes cancellation within one event-loop iteration.
func (s *Supervisor) RemovePrinter(id domain.DeviceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, exists := s.printers[id]
	if !exists {
		return domain.ErrPrinterNotFound
	}

	h.cancel()
	delete(s.printers, id)
	s.table.Drop(id)
	s.metrics.SetRegisteredPrinters(len(s.printers))

	s.logger.Info().Str("device_id", string(id)).Msg("Unregistered printer")
	return nil
}

// Run executes the merge loop: it multiplexes the merged WorkerMsg
// stream from all printers and applies each event to the status table.
// It returns when ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info().Int("buffer", s.config.BufferSize).Msg("Supervisor merge loop started")

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()
		case msg := <-s.workerCh:
			s.dispatch(msg)
		}
	}
}

// dispatch applies one worker message to the status table. Messages for
// ids that arrived after removal are a reportable, non-fatal
// inconsistency.
func (s *Supervisor) dispatch(msg domain.WorkerMsg) {
	s.msgsMerged.Add(1)

	var known bool
	switch msg.Kind {
	case domain.MsgStatusUpdates:
		known = s.table.ApplyUpdates(msg.DeviceID, msg.Updates)
		if known {
			s.metrics.AddUpdatesApplied(len(msg.Updates))
		}
	case domain.MsgConnecting:
		known = s.table.SetConnection(msg.DeviceID, domain.ConnConnecting)
	case domain.MsgConnected:
		known = s.table.SetConnection(msg.DeviceID, domain.ConnConnected)
	case domain.MsgReconnecting:
		known = s.table.SetConnection(msg.DeviceID, domain.ConnReconnecting)
	case domain.MsgDisconnected:
		known = s.table.SetConnection(msg.DeviceID, domain.ConnDisconnected)
	case domain.MsgSetSubtype:
		known = s.table.SetSubtype(msg.DeviceID, msg.Subtype)
	default:
		s.logger.Warn().Str("kind", string(msg.Kind)).Msg("Unhandled worker message kind")
		return
	}

	if !known {
		s.metrics.IncUnknownDeviceMsgs()
		s.logger.Warn().
			Str("device_id", string(msg.DeviceID)).
			Str("kind", string(msg.Kind)).
			Msg("Worker message for unregistered printer")
	}
}

// shutdown cancels every client task and waits for them with a bounded
// timeout.
func (s *Supervisor) shutdown() error {
	s.stopped.Store(true)
	s.logger.Info().Msg("Stopping supervisor")

	s.mu.Lock()
	for _, h := range s.printers {
		h.cancel()
	}
	s.mu.Unlock()
	s.baseCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All client tasks stopped")
	case <-time.After(s.config.ShutdownTimeout):
		s.logger.Warn().Msg("Timeout waiting for client tasks to stop")
	}

	return nil
}

// PrinterCount returns the number of registered printers.
func (s *Supervisor) PrinterCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.printers)
}

// MsgsMerged returns the number of worker messages the merge loop has
// consumed.
func (s *Supervisor) MsgsMerged() uint64 {
	return s.msgsMerged.Load()
}
