package cli

import (
	"context"
	"log/slog"

	"github.com/kilnhq/kilnd/internal/protocol"
)

// Represents the 'kilnd stop' command.
type StopCmd struct{}

// Executes the stop command, asking a running daemon to shut down.
func (c *StopCmd) Run(ctx context.Context) error {
	if _, _, err := protocol.Send(ctx, socketPath(), protocol.CmdShutdown, nil); err != nil {
		return err
	}

	slog.Info("daemon shutdown requested")
	return nil
}
