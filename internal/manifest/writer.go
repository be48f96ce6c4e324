package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/JNickson/k8s-tail/internal/targets"
	"github.com/JNickson/k8s-tail/internal/utils"
)

// Info is the session-level metadata recorded alongside the targets.
type Info struct {
	Kubeconfig string
	Filters    Filters
	Policies   Policies
}

// Writer builds and persists the run manifest. The metrics client is
// optional; without it, or when the metrics API is absent, entries simply
// carry no usage figures.
type Writer struct {
	metricsClient metricsclient.Interface
}

func NewWriter(metricsClient metricsclient.Interface) *Writer {
	return &Writer{metricsClient: metricsClient}
}

func (w *Writer) Build(ctx context.Context, info Info, matches []targets.Match) Manifest {
	usage := w.containerUsage(ctx)

	entries := make([]Entry, 0, len(matches))
	for _, m := range matches {
		entries = append(entries, mapEntry(m, usage[m.Namespace+"/"+m.Pod][m.Container]))
	}

	return Manifest{
		StartedAt:  utils.Now().UTC().Format(time.RFC3339),
		Kubeconfig: info.Kubeconfig,
		Filters:    info.Filters,
		Policies:   info.Policies,
		Targets:    entries,
	}
}

// Write renders the manifest into dir as targets.json.
func (w *Writer) Write(dir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	slog.Debug("manifest written", "path", path, "targets", len(m.Targets))
	return nil
}

// containerUsage lists pod metrics across all namespaces and indexes them
// by namespace/pod and container name. Metrics are best effort: clusters
// without metrics-server just get an empty map.
func (w *Writer) containerUsage(ctx context.Context) map[string]map[string]v1.ResourceList {
	if w.metricsClient == nil {
		return nil
	}

	list, err := w.metricsClient.MetricsV1beta1().
		PodMetricses(metav1.NamespaceAll).
		List(ctx, metav1.ListOptions{})
	if err != nil {
		slog.Debug("pod metrics unavailable", "error", err)
		return nil
	}

	out := make(map[string]map[string]v1.ResourceList, len(list.Items))
	for _, pm := range list.Items {
		containers := make(map[string]v1.ResourceList, len(pm.Containers))
		for _, c := range pm.Containers {
			containers[c.Name] = c.Usage
		}
		out[pm.Namespace+"/"+pm.Name] = containers
	}
	return out
}

func mapEntry(m targets.Match, usage v1.ResourceList) Entry {
	e := Entry{
		Namespace: m.Namespace,
		Pod:       m.Pod,
		Container: m.Container,
		File:      m.LogFileName(),

		Node:     m.Node,
		Phase:    m.Phase,
		Restarts: m.Restarts,
		Age:      m.Age,
	}

	if usage != nil {
		cpu := usage[v1.ResourceCPU]
		mem := usage[v1.ResourceMemory]

		e.CPU = fmt.Sprintf("%dm", cpu.MilliValue())
		e.Memory = fmt.Sprintf("%dMi", mem.Value()/(1024*1024))
	}

	return e
}
