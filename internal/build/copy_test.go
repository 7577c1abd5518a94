package build

import (
	"context"
	"errors"
	"testing"

	"github.com/kilnhq/kilnd/internal/manifest"
	"github.com/kilnhq/kilnd/internal/runtime"
)

func TestRunCopyMissingSource(t *testing.T) {
	e := &stageExec{root: t.TempDir()}

	err := e.runCopy(context.Background(), manifest.Step{Copy: "Cargo.toml /build/Cargo.toml"}, "")
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestRunCopyOptionalMissingSourceSkipped(t *testing.T) {
	e := &stageExec{root: t.TempDir()}

	step := manifest.Step{Copy: "Cargo.lock /build/Cargo.lock", Optional: true}
	if err := e.runCopy(context.Background(), step, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunCopyUnknownStage(t *testing.T) {
	e := &stageExec{root: t.TempDir(), tracker: newProgress()}

	err := e.runCopy(context.Background(), manifest.Step{Copy: "builder:/build/out /engine/out"}, "")
	if !errors.Is(err, ErrStageNotYetBuilt) {
		t.Fatalf("err = %v, want ErrStageNotYetBuilt", err)
	}
}

func TestRunCopyIncompleteStage(t *testing.T) {
	tracker := newProgress()
	tracker.advance("builder", phaseExecuting)

	e := &stageExec{
		root:    t.TempDir(),
		built:   map[string]*runtime.Container{"builder": nil},
		tracker: tracker,
	}

	err := e.runCopy(context.Background(), manifest.Step{Copy: "builder:/build/out /engine/out"}, "")
	if !errors.Is(err, ErrStageNotYetBuilt) {
		t.Fatalf("err = %v, want ErrStageNotYetBuilt", err)
	}
}

func TestParseCopy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		workdir string
		src     string
		dest    string
		wantErr bool
	}{
		{
			name:  "absolute dest",
			input: "Cargo.toml /build/Cargo.toml",
			src:   "Cargo.toml",
			dest:  "/build/Cargo.toml",
		},
		{
			name:    "relative dest with workdir",
			input:   "src out/",
			workdir: "/build",
			src:     "src",
			dest:    "/build/out",
		},
		{
			name:  "stage source passes through",
			input: "builder:/build/target/release/libengine.so /engine/libengine.so",
			src:   "builder:/build/target/release/libengine.so",
			dest:  "/engine/libengine.so",
		},
		{
			name:    "relative dest without workdir",
			input:   "file.txt out/",
			wantErr: true,
		},
		{
			name:    "missing destination",
			input:   "file.txt",
			wantErr: true,
		},
		{
			name:    "too many tokens",
			input:   "a b c",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dest, err := parseCopy(tt.input, tt.workdir)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src != tt.src {
				t.Errorf("src = %q, want %q", src, tt.src)
			}
			if dest != tt.dest {
				t.Errorf("dest = %q, want %q", dest, tt.dest)
			}
		})
	}
}

func TestParseStageCopy(t *testing.T) {
	tests := []struct {
		name  string
		input string
		stage string
		path  string
		ok    bool
	}{
		{
			name:  "valid stage copy",
			input: "builder:/build/target/release/libengine.so",
			stage: "builder",
			path:  "/build/target/release/libengine.so",
			ok:    true,
		},
		{
			name:  "no colon",
			input: "/usr/local/bin",
		},
		{
			name:  "colon at start",
			input: ":/some/path",
		},
		{
			name:  "colon after slash",
			input: "/foo:bar",
		},
		{
			name:  "slash in prefix",
			input: "some/stage:path",
		},
		{
			name:  "simple host path",
			input: "Cargo.toml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stage, path, ok := parseStageCopy(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if stage != tt.stage {
				t.Errorf("stage = %q, want %q", stage, tt.stage)
			}
			if path != tt.path {
				t.Errorf("path = %q, want %q", path, tt.path)
			}
		})
	}
}
