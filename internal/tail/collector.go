// Package tail follows container log streams and copies them to file sinks.
package tail

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	v1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/JNickson/k8s-tail/internal/sink"
	"github.com/JNickson/k8s-tail/internal/targets"
)

const (
	lineScannerInitial = 64 * 1024
	lineScannerMax     = 1024 * 1024
)

// Options is the session-wide streaming policy.
type Options struct {
	// Reconnect keeps retrying a dropped or unopenable stream with capped
	// backoff until the stream is cancelled. Off by default: a dropped
	// stream is reported once and excluded from the active set.
	Reconnect bool

	SinceSeconds *int64
	TailLines    *int64
}

// OpenOptions parameterizes a single connection attempt. Reconnects carry a
// SinceTime cursor instead of the initial TailLines so history is not
// duplicated into the sink.
type OpenOptions struct {
	SinceSeconds *int64
	TailLines    *int64
	SinceTime    *time.Time
}

// Collector owns the set of active log streams. Every target gets its own
// goroutine and its own file; one stream failing never touches another.
type Collector struct {
	client kubernetes.Interface
	sinks  *sink.Manager
	opts   Options

	// Test seams.
	openStream     func(ctx context.Context, target targets.Target, open OpenOptions) (io.ReadCloser, error)
	now            func() time.Time
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu       sync.Mutex
	streams  map[targets.Target]context.CancelFunc
	finished map[targets.Target]struct{}
	wg       sync.WaitGroup

	started atomic.Int32
	failed  atomic.Int32
}

func NewCollector(client kubernetes.Interface, sinks *sink.Manager, opts Options) *Collector {
	c := &Collector{
		client:         client,
		sinks:          sinks,
		opts:           opts,
		now:            time.Now,
		initialBackoff: 250 * time.Millisecond,
		maxBackoff:     2 * time.Second,
		streams:        make(map[targets.Target]context.CancelFunc),
		finished:       make(map[targets.Target]struct{}),
	}
	c.openStream = c.defaultOpenStream
	return c
}

// Ensure starts a stream for the target unless one is already active. A
// stream that already ran to completion is not restarted; re-tailing a
// finished container would duplicate its history into the sink. Prune
// clears that memory once the pod is gone, so a recreated pod tails again.
func (c *Collector) Ensure(ctx context.Context, target targets.Target) {
	c.mu.Lock()
	if _, active := c.streams[target]; active {
		c.mu.Unlock()
		return
	}
	if _, done := c.finished[target]; done {
		c.mu.Unlock()
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	c.streams[target] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	c.started.Add(1)

	go func() {
		defer c.wg.Done()
		c.follow(streamCtx, target)
		c.finish(target, streamCtx.Err() == nil)
		cancel()
	}()
}

// Stop cancels the target's stream if it is active.
func (c *Collector) Stop(target targets.Target) {
	c.mu.Lock()
	cancel, active := c.streams[target]
	delete(c.streams, target)
	c.mu.Unlock()

	if active {
		cancel()
	}
}

// Prune stops every active stream the keep function rejects. The watch
// reconciler uses it when matched pods disappear.
func (c *Collector) Prune(keep func(targets.Target) bool) {
	var toStop []targets.Target

	c.mu.Lock()
	for target := range c.streams {
		if !keep(target) {
			toStop = append(toStop, target)
		}
	}
	for target := range c.finished {
		if !keep(target) {
			delete(c.finished, target)
		}
	}
	c.mu.Unlock()

	for _, target := range toStop {
		slog.Info("stopping tail, pod no longer matches",
			"namespace", target.Namespace,
			"pod", target.Pod,
			"container", target.Container,
		)
		c.Stop(target)
	}
}

// StopAll cancels every active stream.
func (c *Collector) StopAll() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.streams))
	for target, cancel := range c.streams {
		cancels = append(cancels, cancel)
		delete(c.streams, target)
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Wait blocks until every stream goroutine has exited and closed its file.
// Ephemeral directory cleanup must not run before Wait returns.
func (c *Collector) Wait() {
	c.wg.Wait()
}

func (c *Collector) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams)
}

func (c *Collector) StartedCount() int {
	return int(c.started.Load())
}

func (c *Collector) FailedCount() int {
	return int(c.failed.Load())
}

func (c *Collector) finish(target targets.Target, natural bool) {
	c.mu.Lock()
	delete(c.streams, target)
	if natural {
		c.finished[target] = struct{}{}
	}
	c.mu.Unlock()
}

// follow is one stream's whole life: open the sink file, then copy log
// lines until the stream ends or the context is cancelled. With Reconnect
// on, a dropped connection is reopened from a time cursor with backoff.
func (c *Collector) follow(ctx context.Context, target targets.Target) {
	file, err := c.sinks.Open(target)
	if err != nil {
		c.failed.Add(1)
		slog.Error("failed to open log sink",
			"namespace", target.Namespace,
			"pod", target.Pod,
			"container", target.Container,
			"error", err,
		)
		return
	}
	defer file.Close()

	slog.Info("starting tail",
		"namespace", target.Namespace,
		"pod", target.Pod,
		"container", target.Container,
		"file", file.Name(),
	)

	open := OpenOptions{
		SinceSeconds: c.opts.SinceSeconds,
		TailLines:    c.opts.TailLines,
	}
	backoff := c.initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := c.openStream(ctx, target, open)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// A missing pod cannot come back on this stream; recreation is
			// the watch reconciler's job, not the reconnect loop's.
			if !c.opts.Reconnect || apierrors.IsNotFound(err) {
				c.failed.Add(1)
				slog.Error("failed to open log stream",
					"namespace", target.Namespace,
					"pod", target.Pod,
					"container", target.Container,
					"error", err,
				)
				return
			}

			slog.Debug("log stream unavailable, retrying",
				"namespace", target.Namespace,
				"pod", target.Pod,
				"container", target.Container,
				"error", err,
				"backoff", backoff,
			)
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = c.nextBackoff(backoff)
			continue
		}

		backoff = c.initialBackoff
		readErr := c.copyLines(ctx, stream, file, &open)
		stream.Close()

		switch {
		case ctx.Err() != nil:
			return
		case readErr != nil && !c.opts.Reconnect:
			c.failed.Add(1)
			slog.Error("log stream failed",
				"namespace", target.Namespace,
				"pod", target.Pod,
				"container", target.Container,
				"error", readErr,
			)
			return
		case readErr == nil && !c.opts.Reconnect:
			// Server closed the stream: the container finished.
			slog.Info("log stream ended",
				"namespace", target.Namespace,
				"pod", target.Pod,
				"container", target.Container,
			)
			return
		default:
			slog.Debug("log stream dropped, reconnecting",
				"namespace", target.Namespace,
				"pod", target.Pod,
				"container", target.Container,
				"error", readErr,
				"backoff", backoff,
			)
			if !c.sleep(ctx, backoff) {
				return
			}
			backoff = c.nextBackoff(backoff)
		}
	}
}

// copyLines drains one connection into the sink file. It advances the
// reconnect cursor as lines arrive so a reopen resumes close to where the
// previous connection stopped.
func (c *Collector) copyLines(
	ctx context.Context,
	stream io.Reader,
	file *sink.File,
	open *OpenOptions,
) error {
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, lineScannerInitial), lineScannerMax)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		if err := file.WriteLine(scanner.Text()); err != nil {
			return err
		}

		seen := c.now()
		open.SinceTime = &seen
		open.TailLines = nil
		open.SinceSeconds = nil
	}

	return scanner.Err()
}

func (c *Collector) defaultOpenStream(
	ctx context.Context,
	target targets.Target,
	open OpenOptions,
) (io.ReadCloser, error) {
	logOpts := &v1.PodLogOptions{
		Container:    target.Container,
		Follow:       true,
		SinceSeconds: open.SinceSeconds,
		TailLines:    open.TailLines,
	}
	if open.SinceTime != nil {
		since := metav1.NewTime(*open.SinceTime)
		logOpts.SinceTime = &since
	}

	return c.client.CoreV1().
		Pods(target.Namespace).
		GetLogs(target.Pod, logOpts).
		Stream(ctx)
}

func (c *Collector) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (c *Collector) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > c.maxBackoff {
		return c.maxBackoff
	}
	return next
}
