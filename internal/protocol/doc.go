// Package protocol defines the wire format between the CLI and the daemon.
//
// Messages are newline-delimited JSON envelopes carrying a command name
// and a command-specific payload. Each connection holds one request and
// one response; the payload types are plain structs shared by both sides.
package protocol
