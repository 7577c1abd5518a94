package runtime

import "go.trai.ch/zerr"

var (
	ErrRuntime          = zerr.New("runtime error")
	ErrImageUnavailable = zerr.New("image unavailable")
	ErrEmptyIndex       = zerr.New("empty image index")
)
