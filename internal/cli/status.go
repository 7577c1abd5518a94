package cli

import (
	"context"
	"fmt"

	"github.com/kilnhq/kilnd/internal/paths"
	"github.com/kilnhq/kilnd/internal/protocol"
)

// Represents the 'kilnd status' command.
type StatusCmd struct{}

// Executes the status command.
//
// Queries a running daemon over its Unix socket and prints version, PID,
// uptime, and the number of builds processed.
func (c *StatusCmd) Run(ctx context.Context) error {
	_, payload, err := protocol.Send(ctx, socketPath(), protocol.CmdStatus, nil)
	if err != nil {
		return err
	}

	status, err := protocol.DecodePayload[protocol.StatusResult](payload)
	if err != nil {
		return err
	}

	fmt.Printf("version: %s\n", status.Version)
	fmt.Printf("pid:     %d\n", status.Pid)
	fmt.Printf("uptime:  %s\n", status.Uptime)
	fmt.Printf("builds:  %d\n", status.Builds)
	return nil
}

// Returns the socket path from the root flag, or the default.
func socketPath() string {
	if RootCmd.Socket != "" {
		return RootCmd.Socket
	}
	return paths.Socket()
}
