package server

import "go.trai.ch/zerr"

// ErrServer wraps daemon lifecycle failures.
var ErrServer = zerr.New("server error")
