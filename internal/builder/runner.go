package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes held open by
// grandchildren after the command itself was killed.
const waitDelay = 2 * time.Second

// Runner executes a build command in a directory and reports its exit code.
// A non-nil error means the command could not be run at all.
type Runner interface {
	Name() string
	Run(ctx context.Context, dir string, argv []string, stdout, stderr io.Writer) (int, error)
}

// LocalRunner runs commands directly on the host.
type LocalRunner struct {
	// Env is appended to the inherited environment.
	Env []string
}

func (r *LocalRunner) Name() string {
	return "local"
}

func (r *LocalRunner) Run(ctx context.Context, dir string, argv []string, stdout, stderr io.Writer) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("empty build command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	return exitCode(ctx, cmd.Run())
}

// DockerRunner runs commands in a throwaway container with the source
// directory bind-mounted at /src.
type DockerRunner struct {
	Image string
	// Binary is the docker CLI to invoke; defaults to "docker".
	Binary string
	// Env holds KEY=VALUE pairs passed into the container.
	Env []string
}

func (r *DockerRunner) Name() string {
	return "docker"
}

func (r *DockerRunner) Run(ctx context.Context, dir string, argv []string, stdout, stderr io.Writer) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("empty build command")
	}
	if r.Image == "" {
		return -1, fmt.Errorf("no docker image configured")
	}
	bin := r.Binary
	if bin == "" {
		bin = "docker"
	}

	cmd := exec.CommandContext(ctx, bin, r.args(dir, argv)...)
	cmd.WaitDelay = waitDelay
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return exitCode(ctx, cmd.Run())
}

// args assembles the docker run invocation. The container runs as the
// calling user so build outputs stay removable.
func (r *DockerRunner) args(dir string, argv []string) []string {
	args := []string{
		"run", "--rm",
		"-v", dir + ":/src",
		"-w", "/src",
	}
	if uid, gid := os.Getuid(), os.Getgid(); uid >= 0 && gid >= 0 {
		args = append(args, "--user", strconv.Itoa(uid)+":"+strconv.Itoa(gid))
	}
	for _, kv := range r.Env {
		args = append(args, "-e", kv)
	}
	args = append(args, r.Image)
	return append(args, argv...)
}

func exitCode(ctx context.Context, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, fmt.Errorf("command interrupted: %w", ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("executing command: %w", err)
}
