package build

import (
	"context"
	"errors"
	"testing"

	"github.com/kilnhq/kilnd/internal/manifest"
)

func TestRunRejectsMissingRecipe(t *testing.T) {
	_, err := Run(context.Background(), nil, Options{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, manifest.ErrInvalid) {
		t.Fatalf("err = %v, want manifest.ErrInvalid", err)
	}
}
