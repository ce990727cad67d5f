package domain

import "context"

// WorkerMsgKind tags the event a protocol client reports upward.
type WorkerMsgKind string

const (
	MsgStatusUpdates WorkerMsgKind = "status-updates"
	MsgConnecting    WorkerMsgKind = "connecting"
	MsgConnected     WorkerMsgKind = "connected"
	MsgReconnecting  WorkerMsgKind = "reconnecting"
	MsgDisconnected  WorkerMsgKind = "disconnected"
	MsgSetSubtype    WorkerMsgKind = "set-subtype"
)

// WorkerMsg is the outbound event a protocol client emits toward the
// supervisor. Created by the client, consumed exactly once by the
// supervisor's merge loop.
type WorkerMsg struct {
	DeviceID DeviceID
	Kind     WorkerMsgKind

	// Updates is set for MsgStatusUpdates
	Updates []StatusUpdate

	// Subtype is set for MsgSetSubtype (one-shot device classification)
	Subtype string
}

// Command is a control message sent toward a protocol client. The
// channel is wired but currently inert; it exists so future control
// dispatch does not change the client contract.
type Command struct {
	Name    string
	Payload []byte
}

// ProtocolClient owns one physical printer connection. Run connects,
// reports WorkerMsg events on its outbound channel, and reconnects on
// failure until ctx is cancelled. Run owns all per-connection scratch
// state; nothing leaks across devices.
type ProtocolClient interface {
	Run(ctx context.Context)
}

// ClientFactory builds a protocol client for one printer. Credential
// errors (for example a malformed cloud token) are returned
// synchronously and are not retried.
type ClientFactory func(cfg PrinterConfig, out chan<- WorkerMsg, cmds <-chan Command) (ProtocolClient, error)
