package informers

import (
	"context"
	"log/slog"

	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	listersv1 "k8s.io/client-go/listers/core/v1"
)

// Manager owns the shared informer factory behind watch mode. The pod
// informer keeps a local cache of every pod so the reconcile loop can
// re-evaluate the filters without hitting the API server each tick.
type Manager struct {
	factory informers.SharedInformerFactory
	pods    listersv1.PodLister
}

func NewManager(client kubernetes.Interface) *Manager {
	factory := informers.NewSharedInformerFactory(client, 0)

	// The lister must be requested before Start so the factory registers
	// the pod informer.
	return &Manager{
		factory: factory,
		pods:    factory.Core().V1().Pods().Lister(),
	}
}

func (m *Manager) Pods() listersv1.PodLister {
	return m.pods
}

func (m *Manager) Start(ctx context.Context) {
	slog.Info("starting informers")

	m.factory.Start(ctx.Done())
	m.factory.WaitForCacheSync(ctx.Done())

	slog.Info("informers synced")
}
