package viewer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

const (
	// DefaultCommand is the viewer used when LOG_VIEWER is unset or blank.
	DefaultCommand = "lnav"

	// CommandEnvVar names the environment variable holding the viewer
	// command. The value is split on whitespace, so leading arguments such
	// as "less -R" work.
	CommandEnvVar = "LOG_VIEWER"
)

// Resolve splits a LOG_VIEWER value into argv, falling back to the default
// viewer when the value is empty.
func Resolve(env string) []string {
	fields := strings.Fields(env)
	if len(fields) == 0 {
		return []string{DefaultCommand}
	}
	return fields
}

// Viewer launches an external log viewer over a directory of log files. The
// viewer inherits the terminal so full-screen programs like lnav work.
type Viewer struct {
	argv   []string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func New() *Viewer {
	return &Viewer{
		argv:   Resolve(os.Getenv(CommandEnvVar)),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

func (v *Viewer) String() string {
	return strings.Join(v.argv, " ")
}

// Launch starts the viewer on dir, passed as the final argument. An error
// here means the viewer never started, typically because the binary is not
// installed. The running viewer is killed when ctx is cancelled.
func (v *Viewer) Launch(ctx context.Context, dir string) (*Process, error) {
	args := append(append([]string{}, v.argv[1:]...), dir)

	cmd := exec.CommandContext(ctx, v.argv[0], args...)
	cmd.Stdin = v.stdin
	cmd.Stdout = v.stdout
	cmd.Stderr = v.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start viewer %q: %w", v.argv[0], err)
	}

	slog.Info("viewer started", "command", v.String(), "dir", dir)
	return &Process{cmd: cmd}, nil
}

// Process tracks a running viewer instance.
type Process struct {
	cmd *exec.Cmd
}

// Wait blocks until the viewer exits. A non-zero exit status comes back as
// an error, which callers normally just log.
func (p *Process) Wait() error {
	return p.cmd.Wait()
}
