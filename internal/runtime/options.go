package runtime

import (
	"fmt"
	"time"

	"github.com/JNickson/k8s-tail/internal/clients"
	"github.com/JNickson/k8s-tail/internal/filter"
	"github.com/JNickson/k8s-tail/internal/manifest"
	"github.com/JNickson/k8s-tail/internal/session"
	"github.com/JNickson/k8s-tail/internal/tail"
	"github.com/JNickson/k8s-tail/internal/utils"
)

// TailUnset is the --tail sentinel meaning no line limit.
const TailUnset int64 = -1

// Flags holds the raw command line values before validation.
type Flags struct {
	Namespaces []string
	Pods       []string
	Containers []string

	LogDir     string
	Kubeconfig string

	View      bool
	Watch     bool
	Reconnect bool
	Debug     bool

	Since string
	Tail  int64
}

// Options is one validated session setup.
type Options struct {
	Selector   *filter.Selector
	Kubeconfig string
	Session    session.Config
}

// BuildOptions validates the flags against the environment defaults and
// assembles the session configuration. Every configuration error surfaces
// here, before anything touches the cluster.
func BuildOptions(flags Flags, settings Settings) (*Options, error) {
	selector, err := filter.NewSelector(flags.Namespaces, flags.Pods, flags.Containers)
	if err != nil {
		return nil, err
	}

	logDir := flags.LogDir
	if logDir == "" {
		logDir = settings.LogDirectory
	}
	if logDir == "" {
		return nil, fmt.Errorf("no log directory: pass --logdir or set LOG_DIRECTORY")
	}

	view := flags.View
	if logDir == session.EphemeralDir {
		// Without a viewer an ephemeral run would delete everything it
		// wrote before anyone saw it.
		view = true
	}

	stream := tail.Options{Reconnect: flags.Reconnect}

	var since string
	if flags.Since != "" {
		d, err := time.ParseDuration(flags.Since)
		if err != nil {
			return nil, fmt.Errorf("invalid --since duration %q: %w", flags.Since, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("--since must be positive")
		}
		stream.SinceSeconds = utils.Int64Ptr(int64(d.Seconds()))
		since = flags.Since
	}

	if flags.Tail != TailUnset {
		if flags.Tail < 1 {
			return nil, fmt.Errorf("--tail must be >= 1")
		}
		stream.TailLines = utils.Int64Ptr(flags.Tail)
	}

	kubeconfig := clients.ResolveKubeconfig(flags.Kubeconfig, settings.Kubeconfig)

	return &Options{
		Selector:   selector,
		Kubeconfig: kubeconfig,
		Session: session.Config{
			LogDir: logDir,
			View:   view,
			Watch:  flags.Watch,
			Manifest: manifest.Info{
				Kubeconfig: kubeconfig,
				Filters: manifest.Filters{
					Namespaces: flags.Namespaces,
					Pods:       flags.Pods,
					Containers: flags.Containers,
				},
				Policies: manifest.Policies{
					Watch:     flags.Watch,
					Reconnect: flags.Reconnect,
					Since:     since,
					TailLines: stream.TailLines,
				},
			},
			Stream: stream,
		},
	}, nil
}
