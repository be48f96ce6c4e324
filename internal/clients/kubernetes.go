package clients

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	metricsclient "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/JNickson/k8s-tail/internal/utils"
)

// ResolveKubeconfig picks the kubeconfig path. An explicit flag value wins,
// then the KUBECONFIG environment value, then ~/.kube/config. The value is
// treated as a single file path.
func ResolveKubeconfig(flagPath, envPath string) string {
	if flagPath != "" {
		return utils.ExpandHome(flagPath)
	}

	if envPath != "" {
		return utils.ExpandHome(envPath)
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".kube", "config")
}

func NewKubeConfig(kubeconfig string) (*rest.Config, error) {
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfig, err)
	}

	slog.Info("using kubeconfig", "path", kubeconfig)
	return cfg, nil
}

func NewKubeClient(cfg *rest.Config) (*kubernetes.Clientset, error) {
	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kube client: %w", err)
	}

	slog.Debug("kubernetes client initialised")
	return client, nil
}

func NewMetricsClient(cfg *rest.Config) (*metricsclient.Clientset, error) {
	client, err := metricsclient.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics client: %w", err)
	}

	slog.Debug("metrics client initialised")
	return client, nil
}
