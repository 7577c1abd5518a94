package protocol

import (
	"encoding/json"

	"go.trai.ch/zerr"
)

// A command carried by an envelope.
type Command string

// Commands exchanged between the client and the daemon. CmdOK and CmdError
// are response-only.
const (
	CmdBuild    Command = "build"
	CmdStatus   Command = "status"
	CmdShutdown Command = "shutdown"
	CmdOK       Command = "ok"
	CmdError    Command = "error"
)

// The wire framing for one message.
//
// Each connection carries a single newline-delimited JSON envelope in each
// direction. The payload is command-specific and decoded separately via
// [DecodePayload].
type Envelope struct {
	Command Command         `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Serializes a command and payload into an envelope.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Command: cmd}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, zerr.Wrap(err, "failed to encode payload")
		}
		env.Payload = raw
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to encode envelope")
	}
	return data, nil
}

// Parses an envelope from wire bytes.
//
// The payload is returned raw; callers decode it once the command is known.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, zerr.Wrap(err, "failed to decode envelope")
	}
	if env.Command == "" {
		return nil, nil, zerr.New("envelope has no command")
	}
	return &env, env.Payload, nil
}

// Decodes a command-specific payload.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	var v T
	if len(payload) == 0 {
		return &v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, zerr.Wrap(err, "failed to decode payload")
	}
	return &v, nil
}
