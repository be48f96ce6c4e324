package runtime

import (
	"context"

	"github.com/JNickson/k8s-tail/internal/clients"
	"github.com/JNickson/k8s-tail/internal/manifest"
	"github.com/JNickson/k8s-tail/internal/session"
)

// App wires the Kubernetes clients to a single tailing session.
type App struct {
	session *session.Session
}

func New(opts *Options) (*App, error) {
	cfg, err := clients.NewKubeConfig(opts.Kubeconfig)
	if err != nil {
		return nil, err
	}

	kubeClient, err := clients.NewKubeClient(cfg)
	if err != nil {
		return nil, err
	}

	metricsClient, err := clients.NewMetricsClient(cfg)
	if err != nil {
		return nil, err
	}

	sess := session.New(
		kubeClient,
		manifest.NewWriter(metricsClient),
		opts.Selector,
		opts.Session,
	)

	return &App{session: sess}, nil
}

// Run executes the session until it stops on its own or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	return a.session.Run(ctx)
}
