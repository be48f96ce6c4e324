// Package session drives one tailing run from setup to cleanup.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/kubernetes"

	"github.com/JNickson/k8s-tail/internal/filter"
	"github.com/JNickson/k8s-tail/internal/informers"
	"github.com/JNickson/k8s-tail/internal/manifest"
	"github.com/JNickson/k8s-tail/internal/sink"
	"github.com/JNickson/k8s-tail/internal/tail"
	"github.com/JNickson/k8s-tail/internal/targets"
	"github.com/JNickson/k8s-tail/internal/utils"
	"github.com/JNickson/k8s-tail/internal/viewer"
)

// EphemeralDir is the log directory value that selects a throwaway
// temporary directory, removed when the session ends.
const EphemeralDir = "-"

// runDirLayout names one run's directory under the log directory.
const runDirLayout = "2006-01-02_15-04-05.000000"

// ErrNoTargets is returned when the filters match no containers.
var ErrNoTargets = errors.New("no containers matched the filters")

// State tracks where a session is in its lifecycle.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config is the per-run behavior selected on the command line.
type Config struct {
	// LogDir is the base directory for run directories, or EphemeralDir.
	LogDir string

	// View launches an external viewer on the run directory; the session
	// stops when it exits.
	View bool

	// Watch keeps the target set in sync with the cluster instead of
	// freezing it at launch.
	Watch bool

	// Manifest is the metadata recorded in the run directory.
	Manifest manifest.Info

	// Stream is the per-target streaming policy.
	Stream tail.Options
}

// Session owns one run: it resolves targets, fans out the streams, waits
// for a stop trigger and tears everything down in order.
type Session struct {
	cfg       Config
	client    kubernetes.Interface
	selector  *filter.Selector
	manifests *manifest.Writer

	// Test seams.
	stdin         io.Reader
	launchViewer  func(ctx context.Context, dir string) (wait func() error, err error)
	watchInterval time.Duration

	state atomic.Int32

	runDir    string
	ephemeral bool
}

func New(
	client kubernetes.Interface,
	manifests *manifest.Writer,
	selector *filter.Selector,
	cfg Config,
) *Session {
	s := &Session{
		cfg:           cfg,
		client:        client,
		selector:      selector,
		manifests:     manifests,
		stdin:         os.Stdin,
		watchInterval: 15 * time.Second,
	}
	s.launchViewer = func(ctx context.Context, dir string) (func() error, error) {
		proc, err := viewer.New().Launch(ctx, dir)
		if err != nil {
			return nil, err
		}
		return proc.Wait, nil
	}
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// RunDir is the directory this run wrote into. Empty until targets matched.
func (s *Session) RunDir() string {
	return s.runDir
}

// Run executes the whole session. It returns once every stream goroutine
// has exited and the sinks are closed; for an ephemeral run the directory
// is already gone by then.
func (s *Session) Run(ctx context.Context) error {
	s.transition(StateStarting)

	defer func() {
		s.transition(StateStopped)
		s.removeEphemeralDir()
	}()

	// stopCtx ends the streaming phase: the first of stop command, viewer
	// exit or signal cancels it, and Run returning cancels it regardless.
	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	var stopOnce sync.Once
	stopWith := func(reason string) {
		stopOnce.Do(func() {
			slog.Info("stopping session", "reason", reason)
			stop()
		})
	}

	discoverer := targets.NewDiscoverer(s.client, s.selector)

	var (
		matches []targets.Match
		mgr     *informers.Manager
		err     error
	)

	if s.cfg.Watch {
		mgr = informers.NewManager(s.client)
		mgr.Start(stopCtx)

		pods, listErr := mgr.Pods().List(labels.Everything())
		if listErr != nil {
			return fmt.Errorf("failed to list pods from cache: %w", listErr)
		}
		matches = discoverer.MatchPods(pods)
	} else {
		matches, err = discoverer.Snapshot(ctx)
		if err != nil {
			return err
		}
	}

	// Watch mode tolerates an empty start; matching pods may appear later.
	if len(matches) == 0 && !s.cfg.Watch {
		return ErrNoTargets
	}

	summary := color.New(color.FgCyan)
	for _, m := range matches {
		summary.Fprintf(os.Stderr, "Tailing %s/%s/%s\n", m.Namespace, m.Pod, m.Container)
		slog.Debug("matched container",
			"namespace", m.Namespace,
			"pod", m.Pod,
			"container", m.Container,
			"node", m.Node,
			"phase", m.Phase,
		)
	}

	dir, err := s.resolveRunDir()
	if err != nil {
		return err
	}

	if err := s.manifests.Write(dir, s.manifests.Build(ctx, s.cfg.Manifest, matches)); err != nil {
		return err
	}

	color.New(color.FgGreen).Fprintf(os.Stderr, "Writing logs to %s\n", dir)

	sinks := sink.NewManager(dir)
	collector := tail.NewCollector(s.client, sinks, s.cfg.Stream)

	for _, m := range matches {
		collector.Ensure(stopCtx, m.Target)
	}

	s.transition(StateRunning)
	slog.Info("session running", "targets", len(matches), "dir", dir)

	if s.cfg.Watch {
		go s.reconcile(stopCtx, mgr, discoverer, collector)
	}

	useViewer := s.cfg.View
	if useViewer {
		wait, launchErr := s.launchViewer(stopCtx, dir)
		if launchErr != nil {
			slog.Warn("viewer failed to start, falling back to the prompt", "error", launchErr)
			useViewer = false
		} else {
			go func() {
				if waitErr := wait(); waitErr != nil && stopCtx.Err() == nil {
					slog.Warn("viewer exited with error", "error", waitErr)
				}
				stopWith("viewer exited")
			}()
		}
	}
	if !useViewer {
		go s.promptLoop(stopCtx, stopWith)
	}

	<-stopCtx.Done()
	if ctx.Err() != nil {
		stopWith("interrupted")
	}

	s.transition(StateStopping)

	collector.StopAll()
	collector.Wait()
	if err := sinks.CloseAll(); err != nil {
		slog.Warn("failed to close log files", "error", err)
	}

	slog.Info("session finished",
		"streams_started", collector.StartedCount(),
		"streams_failed", collector.FailedCount(),
	)

	if !s.ephemeral {
		color.New(color.FgGreen).Fprintf(os.Stderr, "Logs kept in %s\n", dir)
	}

	return nil
}

// resolveRunDir creates and remembers this run's directory.
func (s *Session) resolveRunDir() (string, error) {
	if s.cfg.LogDir == EphemeralDir {
		dir, err := os.MkdirTemp("", "k8s-tail-*")
		if err != nil {
			return "", fmt.Errorf("failed to create ephemeral directory: %w", err)
		}

		slog.Info("using ephemeral log directory", "dir", dir)
		s.runDir, s.ephemeral = dir, true
		return dir, nil
	}

	base := utils.ExpandHome(s.cfg.LogDir)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", base, err)
	}

	// Mkdir, not MkdirAll: two sessions landing on the same timestamp must
	// not share a run directory.
	dir := filepath.Join(base, utils.Now().Format(runDirLayout))
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run directory %s: %w", dir, err)
	}

	s.runDir = dir
	return dir, nil
}

// reconcile keeps the stream set in line with the informer cache: new
// matches are tailed, matches that disappeared are stopped.
func (s *Session) reconcile(
	ctx context.Context,
	mgr *informers.Manager,
	discoverer *targets.Discoverer,
	collector *tail.Collector,
) {
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pods, err := mgr.Pods().List(labels.Everything())
			if err != nil {
				slog.Error("failed to list pods from cache", "error", err)
				continue
			}

			matches := discoverer.MatchPods(pods)
			keep := make(map[targets.Target]struct{}, len(matches))
			for _, m := range matches {
				keep[m.Target] = struct{}{}
				collector.Ensure(ctx, m.Target)
			}
			collector.Prune(func(t targets.Target) bool {
				_, ok := keep[t]
				return ok
			})
		}
	}
}

// promptLoop stops the session when the operator types "stop". Closed
// stdin counts as a stop so piped input cannot hang the run.
func (s *Session) promptLoop(ctx context.Context, stopWith func(string)) {
	color.New(color.FgCyan).Fprintln(os.Stderr, `Log tails running. Enter "stop" to finish.`)

	scanner := bufio.NewScanner(s.stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "stop") {
			stopWith("stop requested")
			return
		}
		if line != "" {
			color.New(color.FgCyan).Fprintf(os.Stderr, "Unrecognized input %q. Enter \"stop\" to finish.\n", line)
		}
	}

	if ctx.Err() == nil {
		stopWith("stdin closed")
	}
}

func (s *Session) removeEphemeralDir() {
	if !s.ephemeral || s.runDir == "" {
		return
	}

	if err := os.RemoveAll(s.runDir); err != nil {
		slog.Warn("failed to remove ephemeral directory", "dir", s.runDir, "error", err)
		return
	}
	slog.Info("ephemeral directory removed", "dir", s.runDir)
}

func (s *Session) transition(to State) {
	s.state.Store(int32(to))
	slog.Debug("session state", "state", to.String())
}
