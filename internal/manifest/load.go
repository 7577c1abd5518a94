package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Reads and validates a recipe file.
//
// The file is decoded strictly: unknown fields are rejected so typos in a
// recipe fail at parse time rather than silently doing nothing. The parsed
// recipe is validated before it is returned; an invalid recipe never
// reaches execution.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read recipe"), "path", path)
	}

	return Parse(data)
}

// Parses and validates recipe bytes.
func Parse(data []byte) (*Recipe, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var recipe Recipe
	if err := dec.Decode(&recipe); err != nil {
		return nil, errors.Join(ErrInvalid, err)
	}

	if err := recipe.Validate(); err != nil {
		return nil, err
	}

	return &recipe, nil
}

// Checks the structural invariants of a recipe.
//
// A valid recipe has at least one stage, unique stage names, a base image
// per stage, exactly one non-transient stage in the final position, and
// cross-stage copies that reference only stages declared strictly earlier.
// Parse calls this on every recipe it loads; recipes arriving over the
// daemon protocol bypass the YAML path and must be validated explicitly.
func (r *Recipe) Validate() error {
	if len(r.Stages) == 0 {
		return zerr.Wrap(ErrInvalid, "recipe has no stages")
	}

	seen := make(map[string]bool)

	for i, stage := range r.Stages {
		label := stageLabel(stage.Name, i)

		if stage.From == "" {
			return zerr.Wrap(ErrInvalid, fmt.Sprintf("stage %s has no base image", label))
		}

		if stage.Name != "" {
			if seen[stage.Name] {
				return zerr.Wrap(ErrInvalid, fmt.Sprintf("duplicate stage name %q", stage.Name))
			}
			// Unnamed stages are addressed by their 1-based position, so a
			// purely numeric name could collide with another stage's key.
			if numericName(stage.Name) {
				return zerr.Wrap(ErrInvalid, fmt.Sprintf("stage name %q is reserved for stage positions", stage.Name))
			}
		}

		if err := validateSteps(stage.Steps, label, seen); err != nil {
			return err
		}

		// Earlier stages only become referenceable after their own steps
		// have been validated, so a stage cannot copy from itself.
		if stage.Name != "" {
			seen[stage.Name] = true
		}

		final := i == len(r.Stages)-1
		if final && stage.Transient {
			return zerr.Wrap(ErrInvalid, fmt.Sprintf("final stage %s is transient, nothing would be exported", label))
		}
		if !final && !stage.Transient {
			return zerr.Wrap(ErrInvalid, fmt.Sprintf("stage %s is not transient but is not the final stage", label))
		}
	}

	return nil
}

// Validates a step list, recursing into groups.
func validateSteps(steps []Step, stageLabel string, built map[string]bool) error {
	for i, step := range steps {
		if err := validateStep(step, stageLabel, i, built); err != nil {
			return err
		}
		if len(step.Steps) > 0 {
			if err := validateSteps(step.Steps, stageLabel, built); err != nil {
				return err
			}
		}
	}
	return nil
}

// Validates a single step.
func validateStep(step Step, stageLabel string, index int, built map[string]bool) error {
	where := fmt.Sprintf("stage %s, step %d", stageLabel, index+1)

	if step.Run != "" && step.Copy != "" {
		return zerr.Wrap(ErrInvalid, fmt.Sprintf("%s: run and copy are mutually exclusive", where))
	}
	if (step.Run != "" || step.Copy != "") && len(step.Steps) > 0 {
		return zerr.Wrap(ErrInvalid, fmt.Sprintf("%s: an operation cannot carry nested steps", where))
	}
	if step.Optional && step.Copy == "" {
		return zerr.Wrap(ErrInvalid, fmt.Sprintf("%s: optional requires a copy operation", where))
	}

	if step.Cache != nil {
		if step.Run == "" {
			return zerr.Wrap(ErrInvalid, fmt.Sprintf("%s: cache requires a run operation", where))
		}
		if len(step.Cache.Inputs) == 0 {
			return zerr.Wrap(ErrInvalid, fmt.Sprintf("%s: cache declares no input files", where))
		}
		if !filepath.IsAbs(step.Cache.Path) {
			return zerr.Wrap(ErrInvalid, fmt.Sprintf("%s: cache path %q is not absolute", where, step.Cache.Path))
		}
	}

	if step.Copy != "" {
		if ref, ok := stageRef(step.Copy); ok && !built[ref] {
			return zerr.Wrap(ErrInvalid, fmt.Sprintf("%s: copy references stage %q, which is not declared earlier", where, ref))
		}
	}

	return nil
}

// Extracts the stage name from a cross-stage copy source, if present.
//
// Mirrors the execution-time parsing rules: a colon in the first token
// marks a stage reference unless a path separator precedes it.
func stageRef(copyStr string) (string, bool) {
	fields := strings.Fields(copyStr)
	if len(fields) == 0 {
		return "", false
	}

	src := fields[0]
	i := strings.IndexByte(src, ':')
	if i < 1 || strings.ContainsRune(src[:i], '/') {
		return "", false
	}
	return src[:i], true
}

// Reports whether a stage name consists only of digits.
func numericName(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Returns a label for a stage, preferring the name when available and
// falling back to the 1-based index.
func stageLabel(name string, index int) string {
	if name != "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("%d", index+1)
}
