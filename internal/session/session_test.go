package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/JNickson/k8s-tail/internal/filter"
	"github.com/JNickson/k8s-tail/internal/manifest"
)

// The fake clientset serves every log stream as a short "fake logs" body,
// which is enough to see bytes land in the sink files.

func runningPod(namespace, name, container string) *v1.Pod {
	return &v1.Pod{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Spec: v1.PodSpec{
			NodeName:   "node-a",
			Containers: []v1.Container{{Name: container}},
		},
		Status: v1.PodStatus{Phase: v1.PodRunning},
	}
}

func matchAllSelector(t *testing.T) *filter.Selector {
	t.Helper()

	sel, err := filter.NewSelector(nil, nil, nil)
	require.NoError(t, err)
	return sel
}

func TestSessionRunStopsOnStopCommand(t *testing.T) {
	client := fake.NewClientset(runningPod("default", "api-0", "api"))
	base := t.TempDir()

	stdinR, stdinW := io.Pipe()
	defer stdinW.Close()

	s := New(client, manifest.NewWriter(nil), matchAllSelector(t), Config{LogDir: base})
	s.stdin = stdinR

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return s.State() == StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	dir := s.RunDir()
	require.True(t, strings.HasPrefix(dir, base))

	_, err := time.Parse(runDirLayout, filepath.Base(dir))
	require.NoError(t, err, "run directory is timestamped")

	logPath := filepath.Join(dir, "default_api-0_api.log")
	require.Eventually(t, func() bool {
		data, readErr := os.ReadFile(logPath)
		return readErr == nil && string(data) == "fake logs\n"
	}, 2*time.Second, 5*time.Millisecond)

	_, err = io.WriteString(stdinW, "resume\nstop\n")
	require.NoError(t, err)

	require.NoError(t, <-done)
	require.Equal(t, StateStopped, s.State())

	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)

	var m manifest.Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	require.Len(t, m.Targets, 1)
	require.Equal(t, "default_api-0_api.log", m.Targets[0].File)
}

func TestSessionRunNoMatches(t *testing.T) {
	client := fake.NewClientset(runningPod("default", "api-0", "api"))
	base := t.TempDir()

	sel, err := filter.NewSelector(nil, []string{"^no-such-pod$"}, nil)
	require.NoError(t, err)

	s := New(client, manifest.NewWriter(nil), sel, Config{LogDir: base})

	require.ErrorIs(t, s.Run(context.Background()), ErrNoTargets)
	require.Equal(t, StateStopped, s.State())
	require.Empty(t, s.RunDir())

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Empty(t, entries, "no run directory is left behind")
}

func TestSessionEphemeralDirRemovedAfterViewerExit(t *testing.T) {
	client := fake.NewClientset(runningPod("default", "api-0", "api"))

	s := New(client, manifest.NewWriter(nil), matchAllSelector(t), Config{
		LogDir: EphemeralDir,
		View:   true,
	})

	viewerDir := make(chan string, 1)
	release := make(chan struct{})
	s.launchViewer = func(_ context.Context, dir string) (func() error, error) {
		viewerDir <- dir
		return func() error {
			<-release
			return nil
		}, nil
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	dir := <-viewerDir
	require.DirExists(t, dir)

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, "default_api-0_api.log"))
		return err == nil && len(data) > 0
	}, 2*time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, <-done)

	require.Equal(t, StateStopped, s.State())
	require.NoDirExists(t, dir)
}

func TestSessionViewerFailureFallsBackToPrompt(t *testing.T) {
	client := fake.NewClientset(runningPod("default", "api-0", "api"))

	stdinR, stdinW := io.Pipe()
	defer stdinW.Close()

	s := New(client, manifest.NewWriter(nil), matchAllSelector(t), Config{
		LogDir: t.TempDir(),
		View:   true,
	})
	s.stdin = stdinR
	s.launchViewer = func(context.Context, string) (func() error, error) {
		return nil, errors.New("lnav not installed")
	}

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		return s.State() == StateRunning
	}, 2*time.Second, 5*time.Millisecond)

	_, err := io.WriteString(stdinW, "stop\n")
	require.NoError(t, err)

	require.NoError(t, <-done)
	require.Equal(t, StateStopped, s.State())
}

func TestSessionWatchPicksUpNewPods(t *testing.T) {
	ctx := context.Background()
	client := fake.NewClientset(runningPod("default", "api-0", "api"))

	stdinR, stdinW := io.Pipe()
	defer stdinW.Close()

	s := New(client, manifest.NewWriter(nil), matchAllSelector(t), Config{
		LogDir: t.TempDir(),
		Watch:  true,
	})
	s.stdin = stdinR
	s.watchInterval = 20 * time.Millisecond

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return s.State() == StateRunning
	}, 2*time.Second, 5*time.Millisecond)
	dir := s.RunDir()

	_, err := client.CoreV1().
		Pods("payments").
		Create(ctx, runningPod("payments", "checkout-1", "app"), metav1.CreateOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		data, readErr := os.ReadFile(filepath.Join(dir, "payments_checkout-1_app.log"))
		return readErr == nil && strings.Contains(string(data), "fake logs")
	}, 3*time.Second, 10*time.Millisecond)

	_, err = io.WriteString(stdinW, "stop\n")
	require.NoError(t, err)

	require.NoError(t, <-done)
	require.Equal(t, StateStopped, s.State())
}
