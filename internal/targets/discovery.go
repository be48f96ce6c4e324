// Package targets resolves which pod containers a session should tail.
package targets

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/JNickson/k8s-tail/internal/filter"
	"github.com/JNickson/k8s-tail/internal/utils"
)

// Discoverer lists pods and keeps the containers the selector accepts.
type Discoverer struct {
	client   kubernetes.Interface
	selector *filter.Selector
}

func NewDiscoverer(client kubernetes.Interface, selector *filter.Selector) *Discoverer {
	return &Discoverer{
		client:   client,
		selector: selector,
	}
}

// Snapshot resolves the current set of matches from the cluster. Without
// namespace filters a single all-namespaces listing is enough; with filters
// only the matching namespaces are listed, concurrently.
func (d *Discoverer) Snapshot(ctx context.Context) ([]Match, error) {
	if !d.selector.HasNamespaceFilters() {
		list, err := d.client.CoreV1().
			Pods(metav1.NamespaceAll).
			List(ctx, metav1.ListOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to list pods: %w", err)
		}
		return d.matchPodItems(list.Items), nil
	}

	namespaces, err := d.client.CoreV1().
		Namespaces().
		List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	var (
		mu      sync.Mutex
		matches []Match
	)

	eg, egCtx := errgroup.WithContext(ctx)

	for _, ns := range namespaces.Items {
		if !d.selector.MatchesNamespace(ns.Name) {
			continue
		}

		name := ns.Name
		eg.Go(func() error {
			list, err := d.client.CoreV1().
				Pods(name).
				List(egCtx, metav1.ListOptions{})
			if err != nil {
				return fmt.Errorf("failed to list pods in %s: %w", name, err)
			}

			found := d.matchPodItems(list.Items)
			if len(found) == 0 {
				return nil
			}

			mu.Lock()
			matches = append(matches, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sortMatches(matches)
	return matches, nil
}

// MatchPods filters an already-listed pod set, typically from an informer
// lister while a watch session reconciles.
func (d *Discoverer) MatchPods(pods []*v1.Pod) []Match {
	matches := make([]Match, 0, len(pods))
	for _, p := range pods {
		matches = append(matches, d.matchPod(p)...)
	}
	sortMatches(matches)
	return matches
}

func (d *Discoverer) matchPodItems(items []v1.Pod) []Match {
	matches := make([]Match, 0, len(items))
	for i := range items {
		matches = append(matches, d.matchPod(&items[i])...)
	}
	sortMatches(matches)
	return matches
}

func (d *Discoverer) matchPod(p *v1.Pod) []Match {
	// Unscheduled pods cannot serve logs yet.
	if p.Spec.NodeName == "" {
		return nil
	}

	var out []Match
	for _, c := range allContainers(p) {
		if !d.selector.Matches(p.Namespace, p.Name, c.Name) {
			continue
		}
		out = append(out, Match{
			Target: Target{
				Namespace: p.Namespace,
				Pod:       p.Name,
				Container: c.Name,
			},
			Node:     p.Spec.NodeName,
			Phase:    string(p.Status.Phase),
			Restarts: restartCount(p, c.Name),
			Age:      utils.AgeSince(p.CreationTimestamp.Time),
		})
	}
	return out
}

func allContainers(p *v1.Pod) []v1.Container {
	containers := make([]v1.Container, 0, len(p.Spec.InitContainers)+len(p.Spec.Containers))
	containers = append(containers, p.Spec.InitContainers...)
	containers = append(containers, p.Spec.Containers...)
	return containers
}

func restartCount(p *v1.Pod, container string) int32 {
	for _, cs := range p.Status.ContainerStatuses {
		if cs.Name == container {
			return cs.RestartCount
		}
	}
	for _, cs := range p.Status.InitContainerStatuses {
		if cs.Name == container {
			return cs.RestartCount
		}
	}
	return 0
}

func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Namespace != matches[j].Namespace {
			return matches[i].Namespace < matches[j].Namespace
		}
		if matches[i].Pod != matches[j].Pod {
			return matches[i].Pod < matches[j].Pod
		}
		return matches[i].Container < matches[j].Container
	})
}
