package bambu

import (
	"bytes"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// Message is a tagged vendor message produced from one report-topic
// frame. The set of kinds is closed.
type Message interface {
	isMessage()
}

// PrintMessage carries the vendor print telemetry payload.
type PrintMessage struct {
	Print ReportPrint
}

// InfoMessage carries the firmware/module information payload.
type InfoMessage struct {
	Info ReportInfo
}

// SystemMessage carries an opaque system payload.
type SystemMessage struct {
	System map[string]any
}

// UnknownMessage is produced for frames that do not match the vendor
// schema. Text holds the payload when it is readable; Malformed is set
// only when the frame failed to unmarshal at all, so valid JSON that
// merely lacks a known tag (the firmware's "{}" keep-alive filler) is
// not reported as a decode failure. The normalizer treats the whole
// kind as a no-op.
type UnknownMessage struct {
	Text      *string
	Malformed bool
}

func (PrintMessage) isMessage()   {}
func (InfoMessage) isMessage()    {}
func (SystemMessage) isMessage()  {}
func (UnknownMessage) isMessage() {}

// emptyObject is the token the firmware sends as a keep-alive filler.
var emptyObject = []byte("{}")

// Decode turns one raw report frame into a tagged vendor message. It
// never fails: unparseable input degrades to UnknownMessage.
func Decode(payload []byte) Message {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return UnknownMessage{}
	}

	var r report
	if err := json.Unmarshal(trimmed, &r); err != nil {
		if utf8.Valid(trimmed) && !bytes.Equal(trimmed, emptyObject) {
			text := string(trimmed)
			return UnknownMessage{Text: &text, Malformed: true}
		}
		return UnknownMessage{Malformed: true}
	}

	switch {
	case r.Print != nil:
		return PrintMessage{Print: *r.Print}
	case r.Info != nil:
		return InfoMessage{Info: *r.Info}
	case r.System != nil:
		return SystemMessage{System: r.System}
	default:
		return UnknownMessage{}
	}
}
