package protocol

import (
	"bufio"
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
)

// Serves one connection: reads a request envelope and writes the given
// response command and payload back.
func serveOnce(t *testing.T, socket string, respond Command, payload any) {
	t.Helper()

	listener, err := net.Listen("unix", socket)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		if _, err := bufio.NewReader(conn).ReadBytes(byte(10)); err != nil {
			return
		}

		data, err := Encode(respond, payload)
		if err != nil {
			return
		}
		conn.Write(append(data, byte(10)))
	}()
}

func TestSend(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "d.sock")
	serveOnce(t, socket, CmdOK, &StatusResult{Running: true, Pid: 42})

	env, payload, err := Send(context.Background(), socket, CmdStatus, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Command != CmdOK {
		t.Fatalf("command = %q, want %q", env.Command, CmdOK)
	}

	status, err := DecodePayload[StatusResult](payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Running || status.Pid != 42 {
		t.Fatalf("status = %+v, want running with pid 42", status)
	}
}

func TestSendErrorResponse(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "d.sock")
	serveOnce(t, socket, CmdError, &ErrorResult{Message: "no such recipe"})

	_, _, err := Send(context.Background(), socket, CmdBuild, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "no such recipe") {
		t.Fatalf("error = %q, want daemon message", err)
	}
}

func TestSendDaemonUnavailable(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "absent.sock")

	_, _, err := Send(context.Background(), socket, CmdStatus, nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
