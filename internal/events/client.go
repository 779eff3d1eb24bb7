package events

import (
	"encoding/json"
	"fmt"
)

// ClientMessageType is the type of a message sent by a listener
type ClientMessageType string

const (
	// Client to Server
	MsgTypePing ClientMessageType = "ping"

	// Server to Client
	MsgTypePong ClientMessageType = "pong"
)

// BaseMessage is the common structure for client messages
type BaseMessage struct {
	Type ClientMessageType `json:"type"`
}

// PongMessage answers a ping
type PongMessage struct {
	Type ClientMessageType `json:"type"`
}

// EchoMessage wraps any other client message
type EchoMessage struct {
	Echo json.RawMessage `json:"echo"`
}

// ErrorMessage is sent back when a client message cannot be parsed
type ErrorMessage struct {
	Error string `json:"error"`
}

// Reply builds the response to a client message. Pings get a pong and any
// other valid JSON is echoed back.
func Reply(data []byte) ([]byte, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON")
	}

	var base BaseMessage
	if err := json.Unmarshal(data, &base); err == nil && base.Type == MsgTypePing {
		return json.Marshal(PongMessage{Type: MsgTypePong})
	}

	return json.Marshal(EchoMessage{Echo: json.RawMessage(data)})
}

// ErrorReply encodes err for the client
func ErrorReply(err error) []byte {
	data, _ := json.Marshal(ErrorMessage{Error: err.Error()})
	return data
}
