// Package moonraker implements the Klipper printer family as a
// WebSocket protocol client against the Moonraker API. It follows the
// same lifecycle shape as the Bambu client; telemetry coverage is
// currently limited to the printer state machine.
package moonraker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
	"github.com/RussHewgill/printer-watcher-sub000/internal/metrics"
)

const (
	moonrakerPort = 7125

	defaultDialTimeout = 10 * time.Second
	readDeadline       = 90 * time.Second
)

// ClientConfig holds configuration for a Moonraker protocol client.
type ClientConfig struct {
	Printer      domain.PrinterConfig
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Client owns one WebSocket connection to a Moonraker instance.
type Client struct {
	cfg     ClientConfig
	out     chan<- domain.WorkerMsg
	cmds    <-chan domain.Command
	logger  zerolog.Logger
	metrics *metrics.Registry
	wsURL   string
}

// NewClient creates a Moonraker protocol client.
func NewClient(
	cfg ClientConfig,
	out chan<- domain.WorkerMsg,
	cmds <-chan domain.Command,
	logger zerolog.Logger,
	metricsReg *metrics.Registry,
) (*Client, error) {
	if cfg.Printer.Host == "" {
		return nil, domain.ErrHostRequired
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = 30 * time.Second
	}

	u := url.URL{
		Scheme: "ws",
		Host:   fmt.Sprintf("%s:%d", cfg.Printer.Host, moonrakerPort),
		Path:   "/websocket",
	}

	return &Client{
		cfg:     cfg,
		out:     out,
		cmds:    cmds,
		logger:  logger.With().Str("component", "moonraker-client").Str("device_id", string(cfg.Printer.ID)).Logger(),
		metrics: metricsReg,
		wsURL:   u.String(),
	}, nil
}

// Run connects and serves the printer until ctx is cancelled,
// reconnecting on failure with bounded exponential backoff.
func (c *Client) Run(ctx context.Context) {
	delay := c.cfg.InitialDelay

	for {
		if ctx.Err() != nil {
			return
		}

		c.send(ctx, domain.WorkerMsg{DeviceID: c.cfg.Printer.ID, Kind: domain.MsgConnecting})

		reachedReady, err := c.runSession(ctx)
		if ctx.Err() != nil {
			return
		}

		if err != nil {
			c.logger.Warn().Err(err).Msg("Session ended with error")
		}
		c.send(ctx, domain.WorkerMsg{DeviceID: c.cfg.Printer.ID, Kind: domain.MsgDisconnected})

		if reachedReady {
			delay = c.cfg.InitialDelay
		}

		c.metrics.IncReconnects()
		c.send(ctx, domain.WorkerMsg{DeviceID: c.cfg.Printer.ID, Kind: domain.MsgReconnecting})

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}
}

// rpcRequest is a Moonraker JSON-RPC request frame.
type rpcRequest struct {
	Jsonrpc string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
	ID      int            `json:"id"`
}

// rpcFrame is the subset of inbound frames the stub interprets.
type rpcFrame struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	Result *rpcResult        `json:"result"`
}

type rpcResult struct {
	Status *objectStatus `json:"status"`
}

type objectStatus struct {
	PrintStats *printStats `json:"print_stats"`
}

type printStats struct {
	State    *string `json:"state"`
	Filename *string `json:"filename"`
}

func (c *Client) runSession(ctx context.Context) (bool, error) {
	dialer := websocket.Dialer{HandshakeTimeout: defaultDialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.wsURL, err)
	}
	defer conn.Close()

	subscribe := rpcRequest{
		Jsonrpc: "2.0",
		Method:  "printer.objects.subscribe",
		Params: map[string]any{
			"objects": map[string]any{"print_stats": nil},
		},
		ID: 1,
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}

	c.send(ctx, domain.WorkerMsg{DeviceID: c.cfg.Printer.ID, Kind: domain.MsgConnected})
	c.metrics.IncConnectedPrinters()
	defer c.metrics.DecConnectedPrinters()

	c.logger.Info().Str("url", c.wsURL).Msg("Connected")

	frames := make(chan []byte, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- data:
			default:
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case err := <-readErr:
			return true, err
		case <-c.cmds:
			// Command dispatch is not wired yet.
		case data := <-frames:
			c.handleFrame(ctx, data)
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, data []byte) {
	c.metrics.IncFramesReceived()

	var frame rpcFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.metrics.IncDecodeErrors()
		c.logger.Debug().Err(err).Msg("Unrecognized frame")
		return
	}

	var stats *printStats
	switch {
	case frame.Result != nil && frame.Result.Status != nil:
		stats = frame.Result.Status.PrintStats
	case frame.Method == "notify_status_update" && len(frame.Params) > 0:
		var st objectStatus
		if err := json.Unmarshal(frame.Params[0], &st); err != nil {
			c.metrics.IncDecodeErrors()
			return
		}
		stats = st.PrintStats
	}
	if stats == nil {
		return
	}

	var updates []domain.StatusUpdate
	if stats.State != nil {
		updates = append(updates, domain.StateChange{State: deriveState(*stats.State)})
	}
	if stats.Filename != nil && *stats.Filename != "" {
		updates = append(updates, domain.PrintFile{Name: *stats.Filename})
	}
	if len(updates) > 0 {
		c.send(ctx, domain.WorkerMsg{
			DeviceID: c.cfg.Printer.ID,
			Kind:     domain.MsgStatusUpdates,
			Updates:  updates,
		})
	}
}

// deriveState maps Klipper's print_stats state to the discrete printer
// state. Unrecognized values are forwarded as Unknown.
func deriveState(state string) domain.PrinterState {
	switch state {
	case "standby":
		return domain.PrinterState{Kind: domain.StateIdle}
	case "printing":
		return domain.PrinterState{Kind: domain.StatePrinting}
	case "paused":
		return domain.PrinterState{Kind: domain.StatePaused}
	case "complete":
		return domain.PrinterState{Kind: domain.StateFinished}
	case "error":
		return domain.PrinterState{Kind: domain.StateError}
	default:
		return domain.PrinterState{Kind: domain.StateUnknown, Code: state}
	}
}

func (c *Client) send(ctx context.Context, msg domain.WorkerMsg) {
	select {
	case c.out <- msg:
	case <-ctx.Done():
	}
}
