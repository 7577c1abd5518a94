package build

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"

	"github.com/kilnhq/kilnd/internal/manifest"
)

// Executes a copy step, transferring files into the stage container.
//
// The copy string has the format "src dest" for host copies, or "stage:src
// dest" for artifact transfers from earlier stages. Host sources are
// resolved relative to the project root. Cross-stage sources are read from
// a completed stage container's filesystem; the tar stream is the only data
// that crosses the stage boundary.
func (e *stageExec) runCopy(ctx context.Context, step manifest.Step, workdir string) error {
	src, dest, err := parseCopy(step.Copy, workdir)
	if err != nil {
		return errors.Join(ErrCopy, err)
	}

	// Artifact transfer: "stage:path".
	if stage, path, ok := parseStageCopy(src); ok {
		return e.copyFromStage(ctx, stage, path, dest)
	}

	return e.copyFromHost(ctx, src, dest, step.Optional)
}

// Creates the destination's parent directory inside the container.
//
// Called only after the source checks pass, so a missing source never
// leaves an empty directory behind.
func (e *stageExec) prepareDest(ctx context.Context, dest string) error {
	destDir := filepath.Dir(dest)
	if destDir == "" {
		return nil
	}
	if err := e.ctr.MkdirAll(ctx, destDir); err != nil {
		return errors.Join(ErrCopy, err)
	}
	return nil
}

// Copies a file or directory from the host into the container.
//
// A missing source is fatal unless the step is optional, in which case the
// copy is skipped. This is how a recipe declares inputs that may legitimately
// be absent, such as a lockfile that has not been generated yet.
func (e *stageExec) copyFromHost(ctx context.Context, src, dest string, optional bool) error {
	if !filepath.IsAbs(src) {
		src = filepath.Join(e.root, src)
	}

	info, err := os.Stat(src)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			slog.Debug("optional copy source absent, skipping", "src", src)
			return nil
		}
		if errors.Is(err, fs.ErrNotExist) {
			return zerr.Wrap(ErrSourceNotFound, src)
		}
		return errors.Join(ErrCopy, err)
	}

	if err := e.prepareDest(ctx, dest); err != nil {
		return err
	}

	slog.Debug("copy", "src", src, "dest", dest, "dir", info.IsDir())

	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		var writeErr error

		if info.IsDir() {
			writeErr = writeDirToTar(tw, src, filepath.Base(dest))
		} else {
			writeErr = writeFileToTar(tw, src, filepath.Base(dest))
		}

		tw.Close()
		pw.CloseWithError(writeErr)
	}()

	if err := e.ctr.CopyTo(ctx, pr, filepath.Dir(dest)); err != nil {
		return errors.Join(ErrCopy, err)
	}

	return nil
}

// Transfers an artifact from a completed stage into the target container.
//
// The source stage must have finished executing; nothing else from its
// filesystem is carried over. The artifact's existence is probed before
// the transfer so a build-command contract violation (expected output
// absent) surfaces as its own error rather than a tar failure.
func (e *stageExec) copyFromStage(ctx context.Context, stage, path, dest string) error {
	srcCtr, ok := e.built[stage]
	if !ok || !e.tracker.completed(stage) {
		return zerr.Wrap(ErrStageNotYetBuilt, fmt.Sprintf("stage %q", stage))
	}

	exists, err := srcCtr.PathExists(ctx, path)
	if err != nil {
		return errors.Join(ErrCopy, err)
	}
	if !exists {
		return zerr.Wrap(ErrArtifactMissing, fmt.Sprintf("%s in stage %q", path, stage))
	}

	if err := e.prepareDest(ctx, dest); err != nil {
		return err
	}

	slog.Debug("artifact transfer", "stage", stage, "src", path, "dest", dest)

	pr, pw := io.Pipe()

	errc := make(chan error, 1)
	go func() {
		err := srcCtr.CopyFrom(ctx, pw, path)
		pw.CloseWithError(err)
		errc <- err
	}()

	if err := e.ctr.CopyTo(ctx, pr, filepath.Dir(dest)); err != nil {
		return errors.Join(ErrCopy, err)
	}

	if err := <-errc; err != nil {
		return errors.Join(ErrCopy, err)
	}

	return nil
}

// Parses a cross-stage copy source of the form "stage:path".
//
// Returns the stage name, the path within the stage, and true if the source
// matches the cross-stage format. Returns false if it is a regular host path.
func parseStageCopy(src string) (stage, path string, ok bool) {
	i := strings.IndexByte(src, ':')
	if i < 1 {
		return "", "", false
	}

	// A colon after a path separator is not a stage prefix (e.g. "/foo:bar").
	if strings.ContainsRune(src[:i], '/') {
		return "", "", false
	}

	return src[:i], src[i+1:], true
}

// Parses a copy string into source and destination paths.
//
// The string must contain exactly two whitespace-separated tokens. If dest
// is not absolute, it is joined with workdir.
func parseCopy(s, workdir string) (src, dest string, err error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected source and destination, got %q", s)
	}

	src = parts[0]
	dest = parts[1]

	if !filepath.IsAbs(dest) {
		if workdir == "" {
			return "", "", fmt.Errorf("relative dest %q requires workdir", dest)
		}
		dest = filepath.Join(workdir, dest)
	}

	return src, dest, nil
}

// Writes a single file to a tar writer with the given archive name.
func writeFileToTar(tw *tar.Writer, hostPath, name string) error {
	info, err := os.Stat(hostPath)
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = name

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// Writes a directory tree to a tar writer rooted at the given archive prefix.
func writeDirToTar(tw *tar.Writer, hostDir, prefix string) error {
	return filepath.WalkDir(hostDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(hostDir, path)
		if err != nil {
			return err
		}

		archivePath := filepath.ToSlash(filepath.Join(prefix, relPath))
		return writeTarEntry(tw, path, archivePath, d)
	})
}

// Writes a single file or directory entry to a tar writer.
func writeTarEntry(tw *tar.Writer, hostPath, archivePath string, d os.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	header.Name = archivePath

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		f, err := os.Open(hostPath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	}

	return nil
}
