// Package builder turns an unpacked source tree into a single binary
// distribution by running the project's build command.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spachava753/granny/internal/models"
)

const (
	// maxStderrBytes caps the build output attached to errors.
	maxStderrBytes = 8 * 1024
	tailLines      = 5

	// setupShim lets projects configured only through setup.cfg or
	// pyproject.toml build through the same setup.py command.
	setupShim = "from setuptools import setup\nsetup()\n"
)

// Options configures a Builder.
type Options struct {
	Python     string
	Command    []string
	Entrypoint string
	OutputDir  string
	Timeout    time.Duration
	// Output receives the full build stdout and stderr. Nil discards it.
	Output io.Writer
}

// Builder runs the configured build command through a Runner.
type Builder struct {
	runner Runner
	opts   Options
}

// New returns a Builder. Empty options fall back to a setup.py bdist_wheel build.
func New(runner Runner, opts Options) *Builder {
	if opts.Python == "" {
		opts.Python = "python3"
	}
	if opts.Entrypoint == "" {
		opts.Entrypoint = "setup.py"
	}
	if len(opts.Command) == 0 {
		opts.Command = models.BuildConfig{Entrypoint: opts.Entrypoint}.DefaultCommand()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "dist"
	}
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	return &Builder{runner: runner, opts: opts}
}

// Build builds sourceDir and returns the single artifact found in its output
// directory.
func (b *Builder) Build(ctx context.Context, sourceDir string) (models.BuiltArtifact, error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return models.BuiltArtifact{}, fmt.Errorf("checking source directory: %w", err)
	}
	if !info.IsDir() {
		return models.BuiltArtifact{}, fmt.Errorf("source %s is not a directory", sourceDir)
	}

	if err := b.ensureEntrypoint(sourceDir); err != nil {
		return models.BuiltArtifact{}, err
	}

	if b.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.opts.Timeout)
		defer cancel()
	}

	argv := b.argv()
	slog.Info("building distribution", "dir", sourceDir, "runner", b.runner.Name(), "command", strings.Join(argv, " "))

	out := &lockedWriter{w: b.opts.Output}
	tail := &tailBuffer{max: maxStderrBytes}
	code, err := b.runner.Run(ctx, sourceDir, argv, out, io.MultiWriter(out, tail))
	if err != nil {
		return models.BuiltArtifact{}, models.WrapError(models.ErrBuildFailed, err, "running build in %s", filepath.Base(sourceDir))
	}
	if code != 0 {
		return models.BuiltArtifact{}, models.NewError(models.ErrBuildFailed,
			"build command exited with status %d%s", code, tail.suffix())
	}

	return b.artifact(sourceDir)
}

func (b *Builder) ensureEntrypoint(sourceDir string) error {
	path := filepath.Join(sourceDir, b.opts.Entrypoint)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", b.opts.Entrypoint, err)
	}
	slog.Debug("writing setup shim", "path", path)
	if err := os.WriteFile(path, []byte(setupShim), 0o644); err != nil {
		return fmt.Errorf("writing %s shim: %w", b.opts.Entrypoint, err)
	}
	return nil
}

func (b *Builder) argv() []string {
	argv := make([]string, len(b.opts.Command))
	for i, arg := range b.opts.Command {
		argv[i] = strings.ReplaceAll(arg, models.PythonPlaceholder, b.opts.Python)
	}
	return argv
}

// artifact selects the build output. Every entry in the output directory
// counts, so stray files make the result ambiguous instead of being ignored.
func (b *Builder) artifact(sourceDir string) (models.BuiltArtifact, error) {
	outDir := filepath.Join(sourceDir, b.opts.OutputDir)
	entries, err := os.ReadDir(outDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return models.BuiltArtifact{}, fmt.Errorf("reading %s: %w", b.opts.OutputDir, err)
	}

	switch len(entries) {
	case 0:
		return models.BuiltArtifact{}, models.NewError(models.ErrBuildFailed,
			"build produced no artifact in %s", b.opts.OutputDir)
	case 1:
		artifact, err := models.NewBuiltArtifact(filepath.Join(outDir, entries[0].Name()))
		if err != nil {
			return models.BuiltArtifact{}, err
		}
		slog.Info("built artifact", "file", artifact.Filename(), "format", artifact.Format)
		return artifact, nil
	default:
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		sort.Strings(names)
		return models.BuiltArtifact{}, models.NewError(models.ErrAmbiguousArtifact,
			"build produced %d artifacts in %s: %s", len(names), b.opts.OutputDir, strings.Join(names, ", "))
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0:0], t.buf[over:]...)
	}
	return len(p), nil
}

// suffix renders the last few non-empty lines on one line for error messages.
func (t *tailBuffer) suffix() string {
	var lines []string
	for _, line := range strings.Split(string(t.buf), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return ""
	}
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	return ": " + strings.Join(lines, " | ")
}

// lockedWriter serializes writes from the stdout and stderr copiers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
