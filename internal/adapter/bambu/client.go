package bambu

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
	"github.com/RussHewgill/printer-watcher-sub000/internal/metrics"
)

const (
	// keepAlive is the MQTT keep-alive interval the handshake uses.
	keepAlive = 5 * time.Second

	// reportQoS and requestQoS are at-most-once: telemetry is periodic
	// and self-healing.
	reportQoS  = 0
	requestQoS = 0

	defaultOpTimeout = 10 * time.Second
)

// ClientConfig holds configuration for a Bambu protocol client.
type ClientConfig struct {
	// Printer is the device configuration (shared-read with the supervisor)
	Printer domain.PrinterConfig

	// CloudToken is the fleet-wide bearer token for cloud mode
	CloudToken string

	// InitialDelay is the first reconnect backoff step
	InitialDelay time.Duration

	// MaxDelay caps the reconnect backoff
	MaxDelay time.Duration
}

// ClientStats tracks per-connection counters.
type ClientStats struct {
	FramesReceived atomic.Uint64
	DecodeFailures atomic.Uint64
	UpdatesEmitted atomic.Uint64
	Sessions       atomic.Uint64
}

// Client owns one physical MQTT connection to a Bambu printer. It runs
// the connect/subscribe/request handshake, feeds every inbound report
// frame through the decoder and normalizer, and reconnects on failure
// until cancelled.
type Client struct {
	cfg     ClientConfig
	creds   credentials
	out     chan<- domain.WorkerMsg
	cmds    <-chan domain.Command
	logger  zerolog.Logger
	metrics *metrics.Registry
	breaker *gobreaker.CircuitBreaker[paho.Client]
	stats   *ClientStats

	reportTopic  string
	requestTopic string
	opTimeout    time.Duration

	// newClient builds the underlying MQTT client; replaced in tests.
	newClient func(*paho.ClientOptions) paho.Client
}

// NewClient creates a Bambu protocol client. Credential errors (for
// example a malformed cloud token) are returned here synchronously and
// are not retried.
func NewClient(
	cfg ClientConfig,
	out chan<- domain.WorkerMsg,
	cmds <-chan domain.Command,
	logger zerolog.Logger,
	metricsReg *metrics.Registry,
) (*Client, error) {
	creds, err := resolveCredentials(cfg.Printer, cfg.CloudToken)
	if err != nil {
		return nil, err
	}

	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = 30 * time.Second
	}
	opTimeout := cfg.Printer.Timeout
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}

	c := &Client{
		cfg:     cfg,
		creds:   creds,
		out:     out,
		cmds:    cmds,
		logger:  logger.With().Str("component", "bambu-client").Str("device_id", string(cfg.Printer.ID)).Logger(),
		metrics: metricsReg,
		stats:   &ClientStats{},

		reportTopic:  fmt.Sprintf("device/%s/report", cfg.Printer.Serial),
		requestTopic: fmt.Sprintf("device/%s/request", cfg.Printer.Serial),
		opTimeout:    opTimeout,

		newClient: paho.NewClient,
	}

	c.breaker = gobreaker.NewCircuitBreaker[paho.Client](gobreaker.Settings{
		Name:    fmt.Sprintf("bambu-%s", cfg.Printer.ID),
		Timeout: cfg.MaxDelay,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return c, nil
}

// Stats returns the client's counters.
func (c *Client) Stats() *ClientStats {
	return c.stats
}

// Run connects and serves the printer until ctx is cancelled. Any
// transport or protocol failure tears the session down, reports
// Disconnected, and re-enters the full handshake after a bounded
// exponential backoff.
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

// runSession performs one full handshake and serves the Ready loop
// until failure or cancellation. It reports whether the session reached
// the Ready state.
func (c *Client) runSession(ctx context.Context) (bool, error) {
	c.stats.Sessions.Add(1)

	msgCh := make(chan []byte, 64)
	lostCh := make(chan error, 1)

	opts := paho.NewClientOptions().
		AddBroker(c.creds.broker).
		SetClientID("printwatch-" + uuid.NewString()).
		SetUsername(c.creds.username).
		SetPassword(c.creds.password).
		SetKeepAlive(keepAlive).
		SetCleanSession(true).
		SetAutoReconnect(false).
		SetTLSConfig(tlsConfigFor(c.creds.trust)).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			select {
			case lostCh <- err:
			default:
			}
		})

	client, err := c.breaker.Execute(func() (paho.Client, error) {
		cl := c.newClient(opts)
		token := cl.Connect()
		if !token.WaitTimeout(c.opTimeout) {
			cl.Disconnect(0)
			return nil, fmt.Errorf("connect timeout to %s", c.creds.broker)
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("connect to %s: %w", c.creds.broker, err)
		}
		return cl, nil
	})
	if err != nil {
		return false, err
	}
	defer client.Disconnect(250)

	onMessage := func(_ paho.Client, m paho.Message) {
		payload := make([]byte, len(m.Payload()))
		copy(payload, m.Payload())
		select {
		case msgCh <- payload:
		default:
			// Telemetry is self-healing; drop rather than block the
			// paho router.
		}
	}

	token := client.Subscribe(c.reportTopic, reportQoS, onMessage)
	if !token.WaitTimeout(c.opTimeout) {
		return false, fmt.Errorf("subscribe timeout on %s", c.reportTopic)
	}
	if err := token.Error(); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", c.reportTopic, err)
	}

	// Ask for a full snapshot and the firmware inventory so the status
	// table converges immediately instead of waiting for deltas.
	for _, payload := range [][]byte{pushAllRequest(), getVersionRequest()} {
		token = client.Publish(c.requestTopic, requestQoS, false, payload)
		if !token.WaitTimeout(c.opTimeout) {
			return false, fmt.Errorf("publish timeout on %s", c.requestTopic)
		}
		if err := token.Error(); err != nil {
			return false, fmt.Errorf("publish %s: %w", c.requestTopic, err)
		}
	}

	c.send(ctx, domain.WorkerMsg{DeviceID: c.cfg.Printer.ID, Kind: domain.MsgConnected})
	c.metrics.IncConnectedPrinters()
	defer c.metrics.DecConnectedPrinters()

	c.logger.Info().Str("broker", c.creds.broker).Str("trust", string(c.creds.trust)).Msg("Connected")

	// Scratch state is per-session: a reconnect starts clean.
	normalizer := NewNormalizer()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case err := <-lostCh:
			return true, err
		case <-c.cmds:
			// Command dispatch is not wired yet; drain to keep the
			// channel contract.
		case raw := <-msgCh:
			c.handleFrame(ctx, normalizer, raw)
		}
	}
}

// handleFrame decodes one report frame and forwards the resulting
// updates. Unparseable frames degrade to Unknown and produce nothing.
func (c *Client) handleFrame(ctx context.Context, normalizer *Normalizer, raw []byte) {
	c.stats.FramesReceived.Add(1)
	c.metrics.IncFramesReceived()

	msg := Decode(raw)
	if u, ok := msg.(UnknownMessage); ok {
		// Untagged-but-valid JSON is routine keep-alive filler; only
		// frames that failed to unmarshal count as decode errors.
		if u.Malformed {
			c.stats.DecodeFailures.Add(1)
			c.metrics.IncDecodeErrors()
		}
		ev := c.logger.Debug()
		if u.Text != nil {
			ev = ev.Str("payload", *u.Text)
		}
		ev.Msg("Unrecognized report frame")
		return
	}

	updates, subtype := normalizer.Normalize(msg)

	if subtype != "" {
		c.send(ctx, domain.WorkerMsg{
			DeviceID: c.cfg.Printer.ID,
			Kind:     domain.MsgSetSubtype,
			Subtype:  subtype,
		})
	}

	if len(updates) > 0 {
		c.stats.UpdatesEmitted.Add(uint64(len(updates)))
		c.send(ctx, domain.WorkerMsg{
			DeviceID: c.cfg.Printer.ID,
			Kind:     domain.MsgStatusUpdates,
			Updates:  updates,
		})
	}
}

func (c *Client) send(ctx context.Context, msg domain.WorkerMsg) {
	select {
	case c.out <- msg:
	case <-ctx.Done():
	}
}

// tlsConfigFor builds the transport TLS config for a named trust
// policy. Insecure is only ever produced for LAN-scoped hosts whose
// firmware presents a self-signed certificate.
func tlsConfigFor(policy domain.TrustPolicy) *tls.Config {
	if policy == domain.TrustInsecure {
		return &tls.Config{InsecureSkipVerify: true}
	}
	return &tls.Config{}
}
