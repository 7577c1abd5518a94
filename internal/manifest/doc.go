// Package manifest defines the recipe schema and its loader.
//
// A recipe file (kiln.yaml) declares an ordered list of stages. Each
// stage names a base image and a sequence of steps: shell commands, file
// copies from the project root, and artifact transfers from earlier
// stages. The final stage is the one exported as the output image; all
// other stages are transient scaffolding whose filesystems are discarded.
//
// Loading is strict: unknown fields are rejected, and the parsed recipe
// is validated so that ordering violations (a copy referencing a stage
// declared later) and structural mistakes fail before any container is
// provisioned.
package manifest
