package protocol

import (
	"bufio"
	"context"
	"encoding/json"
	"net"

	"go.trai.ch/zerr"
)

// ErrDaemonUnavailable is returned when the daemon socket cannot be reached.
var ErrDaemonUnavailable = zerr.New("daemon unavailable")

// Sends one command to the daemon and returns the response envelope.
//
// The connection carries a single exchange and is closed before returning.
// An error-command response is converted into a Go error carrying the
// daemon's message.
func Send(ctx context.Context, socketPath string, cmd Command, payload any) (*Envelope, json.RawMessage, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, nil, zerr.Wrap(ErrDaemonUnavailable, socketPath)
	}
	defer conn.Close()

	data, err := Encode(cmd, payload)
	if err != nil {
		return nil, nil, err
	}
	data = append(data, byte(10))

	if _, err := conn.Write(data); err != nil {
		return nil, nil, zerr.Wrap(err, "failed to send command")
	}

	line, err := bufio.NewReader(conn).ReadBytes(byte(10))
	if err != nil {
		return nil, nil, zerr.Wrap(err, "failed to read response")
	}

	env, respPayload, err := Decode(line)
	if err != nil {
		return nil, nil, err
	}

	if env.Command == CmdError {
		result, err := DecodePayload[ErrorResult](respPayload)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, zerr.New(result.Message)
	}

	return env, respPayload, nil
}
