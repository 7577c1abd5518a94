package protocol

import (
	"testing"

	"github.com/kilnhq/kilnd/internal/manifest"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	recipe := &manifest.Recipe{
		Workdir: "/engine",
		Stages: []manifest.Stage{
			{Name: "builder", From: "rust:1.83", Transient: true},
			{Name: "engine", From: "debian:bookworm-slim"},
		},
	}

	data, err := Encode(CmdBuild, BuildRequest{
		Recipe:    recipe,
		Resource:  "engine",
		Root:      "/proj",
		Output:    "/proj/out",
		Platforms: []string{"linux/amd64"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Command != CmdBuild {
		t.Fatalf("command = %q, want %q", env.Command, CmdBuild)
	}

	req, err := DecodePayload[BuildRequest](payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Recipe == nil || len(req.Recipe.Stages) != 2 {
		t.Fatalf("recipe = %+v, want two stages", req.Recipe)
	}
	if req.Recipe.Stages[0].Name != "builder" || !req.Recipe.Stages[0].Transient {
		t.Fatalf("stage 0 = %+v, want transient builder", req.Recipe.Stages[0])
	}
	if len(req.Platforms) != 1 || req.Platforms[0] != "linux/amd64" {
		t.Fatalf("platforms = %v, want [linux/amd64]", req.Platforms)
	}
}

func TestEncodeNilPayload(t *testing.T) {
	data, err := Encode(CmdShutdown, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	env, payload, err := Decode(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Command != CmdShutdown {
		t.Fatalf("command = %q, want %q", env.Command, CmdShutdown)
	}
	if len(payload) != 0 {
		t.Fatalf("payload = %q, want empty", payload)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "not json", input: "nope"},
		{name: "empty object", input: "{}"},
		{name: "empty command", input: `{"command":""}`},
		{name: "wrong command type", input: `{"command":42}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode([]byte(tt.input)); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestDecodePayloadEmptyYieldsZeroValue(t *testing.T) {
	req, err := DecodePayload[BuildRequest](nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Recipe != nil || req.NoCache {
		t.Fatalf("expected zero value, got %+v", req)
	}
}

func TestDecodePayloadMalformed(t *testing.T) {
	if _, err := DecodePayload[BuildRequest]([]byte(`{"recipe":42}`)); err == nil {
		t.Fatal("expected error, got nil")
	}
}
