package bambu

import "github.com/goccy/go-json"

// requestCommand is the outbound request-topic payload shape.
type requestCommand struct {
	SequenceID string `json:"sequence_id"`
	Command    string `json:"command"`
}

// pushAllRequest asks the device for a full state snapshot instead of
// the usual deltas.
func pushAllRequest() []byte {
	payload, _ := json.Marshal(map[string]requestCommand{
		"pushing": {SequenceID: "0", Command: "pushall"},
	})
	return payload
}

// getVersionRequest asks the device for its firmware/module inventory.
func getVersionRequest() []byte {
	payload, _ := json.Marshal(map[string]requestCommand{
		"info": {SequenceID: "0", Command: "get_version"},
	})
	return payload
}
