package sandbox

import (
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/config"
	"github.com/storyqa/storyqa/internal/storage"
)

// New picks the manager for the environment: the pod runner when a
// kubeconfig or in-cluster service account is configured, the local
// stand-in otherwise.
func New(k8s config.K8sConfig, cfg Config, store storage.ArtifactStore, logger *zap.Logger) (Manager, error) {
	if k8s.InCluster || k8s.Kubeconfig != "" {
		client, err := NewK8sClient(k8s.Kubeconfig, k8s.InCluster)
		if err != nil {
			return nil, err
		}
		return NewK8sManager(client, cfg, store, logger), nil
	}
	return NewMockManager(cfg.LocalWorkDir, store, logger), nil
}

// FromConfig builds manager settings from the app configuration,
// keeping the defaults where the configuration is silent.
func FromConfig(k8s config.K8sConfig, st config.StorageConfig) Config {
	cfg := DefaultConfig()
	if k8s.Namespace != "" {
		cfg.Namespace = k8s.Namespace + "-sandboxes"
	}
	if k8s.SandboxImage != "" {
		cfg.Image = k8s.SandboxImage
	}
	if k8s.SandboxTimeout > 0 {
		cfg.DefaultTimeout = k8s.SandboxTimeout
	}
	if st.Bucket != "" {
		cfg.Bucket = st.Bucket
	}
	return cfg
}
