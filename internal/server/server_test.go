package server

import (
	"path/filepath"
	"testing"
	"time"
)

func TestStopIsIdempotent(t *testing.T) {
	s := &Server{
		socketPath: filepath.Join(t.TempDir(), "kilnd.sock"),
		done:       make(chan struct{}),
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A shutdown command and a later signal both call Stop; the second
	// call must be a no-op, not a panic.
	if err := s.Stop(); err != nil {
		t.Fatalf("unexpected error on second stop: %v", err)
	}
}

func TestWaitReturnsAfterStop(t *testing.T) {
	s := &Server{
		socketPath: filepath.Join(t.TempDir(), "kilnd.sock"),
		done:       make(chan struct{}),
	}

	waited := make(chan struct{})
	go func() {
		s.Wait()
		close(waited)
	}()

	s.Stop()

	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after Stop")
	}
}
