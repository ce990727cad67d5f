package bambu

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/RussHewgill/printer-watcher-sub000/internal/domain"
	"github.com/RussHewgill/printer-watcher-sub000/internal/metrics"
)

// One registry per test binary: promauto registers globally.
var testMetrics = metrics.NewRegistry()

type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

// fakeBroker is an in-memory paho.Client standing in for one broker
// session.
type fakeBroker struct {
	opts       *paho.ClientOptions
	connectErr error

	mu        sync.Mutex
	handler   paho.MessageHandler
	subTopic  string
	pubTopics []string
	payloads  [][]byte
}

func (f *fakeBroker) IsConnected() bool      { return true }
func (f *fakeBroker) IsConnectionOpen() bool { return true }
func (f *fakeBroker) Connect() paho.Token    { return &fakeToken{err: f.connectErr} }
func (f *fakeBroker) Disconnect(uint)        {}

func (f *fakeBroker) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubTopics = append(f.pubTopics, topic)
	f.payloads = append(f.payloads, payload.([]byte))
	return &fakeToken{}
}

func (f *fakeBroker) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subTopic = topic
	f.handler = callback
	return &fakeToken{}
}

func (f *fakeBroker) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &fakeToken{}
}

func (f *fakeBroker) Unsubscribe(...string) paho.Token { return &fakeToken{} }
func (f *fakeBroker) AddRoute(string, paho.MessageHandler) {}
func (f *fakeBroker) OptionsReader() paho.ClientOptionsReader {
	return paho.ClientOptionsReader{}
}

// deliver injects an inbound report frame through the subscription.
func (f *fakeBroker) deliver(t *testing.T, payload string) {
	t.Helper()
	f.mu.Lock()
	handler := f.handler
	f.mu.Unlock()
	if handler == nil {
		t.Fatal("no subscription handler registered")
	}
	handler(f, &fakeMessage{topic: f.subTopic, payload: []byte(payload)})
}

// dropConnection fires the connection-lost handler.
func (f *fakeBroker) dropConnection(t *testing.T, err error) {
	t.Helper()
	if f.opts == nil || f.opts.OnConnectionLost == nil {
		t.Fatal("no connection-lost handler registered")
	}
	f.opts.OnConnectionLost(f, err)
}

type clientHarness struct {
	client *Client
	out    chan domain.WorkerMsg

	mu      sync.Mutex
	brokers []*fakeBroker
}

func newClientHarness(t *testing.T) *clientHarness {
	t.Helper()

	out := make(chan domain.WorkerMsg, 64)
	cmds := make(chan domain.Command)

	client, err := NewClient(ClientConfig{
		Printer: domain.PrinterConfig{
			ID:         "bambu-1",
			Vendor:     domain.VendorBambu,
			Serial:     "01S00A000000000",
			Host:       "192.168.1.50",
			AccessCode: "12345678",
		},
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}, out, cmds, zerolog.Nop(), testMetrics)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	h := &clientHarness{client: client, out: out}
	client.newClient = func(opts *paho.ClientOptions) paho.Client {
		b := &fakeBroker{opts: opts}
		h.mu.Lock()
		h.brokers = append(h.brokers, b)
		h.mu.Unlock()
		return b
	}
	return h
}

func (h *clientHarness) broker(t *testing.T, i int) *fakeBroker {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		n := len(h.brokers)
		h.mu.Unlock()
		if n > i {
			h.mu.Lock()
			defer h.mu.Unlock()
			return h.brokers[i]
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("broker %d never created", i)
	return nil
}

func expectMsg(t *testing.T, out <-chan domain.WorkerMsg, kind domain.WorkerMsgKind) domain.WorkerMsg {
	t.Helper()
	select {
	case msg := <-out:
		if msg.Kind != kind {
			t.Fatalf("got %q, want %q", msg.Kind, kind)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for %q", kind)
		return domain.WorkerMsg{}
	}
}

func TestClientHandshake(t *testing.T) {
	h := newClientHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		h.client.Run(ctx)
		close(done)
	}()

	expectMsg(t, h.out, domain.MsgConnecting)
	expectMsg(t, h.out, domain.MsgConnected)

	b := h.broker(t, 0)
	b.mu.Lock()
	subTopic := b.subTopic
	pubTopics := append([]string(nil), b.pubTopics...)
	payloads := append([][]byte(nil), b.payloads...)
	b.mu.Unlock()

	if subTopic != "device/01S00A000000000/report" {
		t.Errorf("subscribed to %q", subTopic)
	}
	if len(pubTopics) != 2 {
		t.Fatalf("published %d requests, want 2", len(pubTopics))
	}
	for _, topic := range pubTopics {
		if topic != "device/01S00A000000000/request" {
			t.Errorf("published to %q", topic)
		}
	}
	if !strings.Contains(string(payloads[0]), "pushall") {
		t.Errorf("first request = %s, want full-snapshot command", payloads[0])
	}
	if !strings.Contains(string(payloads[1]), "get_version") {
		t.Errorf("second request = %s, want firmware-info command", payloads[1])
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not observe cancellation")
	}
}

func TestClientForwardsStatusUpdates(t *testing.T) {
	h := newClientHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.client.Run(ctx)

	expectMsg(t, h.out, domain.MsgConnecting)
	expectMsg(t, h.out, domain.MsgConnected)

	b := h.broker(t, 0)
	b.deliver(t, `{"print":{"gcode_state":"RUNNING","mc_percent":37,"nozzle_temper":219.5}}`)

	msg := expectMsg(t, h.out, domain.MsgStatusUpdates)
	if msg.DeviceID != "bambu-1" {
		t.Errorf("device id = %q", msg.DeviceID)
	}
	if len(msg.Updates) != 3 {
		t.Errorf("got %d updates, want 3", len(msg.Updates))
	}

	// Unparseable and filler frames produce nothing.
	b.deliver(t, `garbage`)
	b.deliver(t, ``)
	b.deliver(t, `{}`)

	// Subtype classification is forwarded once.
	b.deliver(t, `{"info":{"command":"get_version","module":[{"name":"mc","hw_ver":"MC07"}]}}`)
	sub := expectMsg(t, h.out, domain.MsgSetSubtype)
	if sub.Subtype != SubtypeDualNozzle {
		t.Errorf("subtype = %q", sub.Subtype)
	}

	// Only the unparseable frame counts as a decode failure; the empty
	// and "{}" keep-alive fillers do not.
	if got := h.client.Stats().DecodeFailures.Load(); got != 1 {
		t.Errorf("decode failures = %d, want 1", got)
	}

	select {
	case msg := <-h.out:
		t.Fatalf("unexpected extra message %q", msg.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClientReconnectsAfterTransportError(t *testing.T) {
	h := newClientHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go h.client.Run(ctx)

	expectMsg(t, h.out, domain.MsgConnecting)
	expectMsg(t, h.out, domain.MsgConnected)

	h.broker(t, 0).dropConnection(t, errors.New("broken pipe"))

	// Exactly one Disconnected, then a renewed handshake.
	expectMsg(t, h.out, domain.MsgDisconnected)
	expectMsg(t, h.out, domain.MsgReconnecting)
	expectMsg(t, h.out, domain.MsgConnecting)
	expectMsg(t, h.out, domain.MsgConnected)

	// The second session runs against a fresh broker connection.
	b2 := h.broker(t, 1)
	b2.deliver(t, `{"print":{"mc_percent":1}}`)
	expectMsg(t, h.out, domain.MsgStatusUpdates)
}
