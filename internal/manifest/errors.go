package manifest

import "go.trai.ch/zerr"

// ErrInvalid is returned when a recipe fails structural validation.
var ErrInvalid = zerr.New("invalid recipe")
