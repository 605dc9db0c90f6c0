package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/storyqa/storyqa/internal/storage"
)

// K8sManager runs suites in isolated pods. Each run gets one pod: an
// init container stages the suite archive from object storage, the main
// container runs Playwright and uploads its results before exiting.
type K8sManager struct {
	client kubernetes.Interface
	cfg    Config
	store  storage.ArtifactStore
	logger *zap.Logger
}

// NewK8sManager creates a pod-based suite runner. store may be nil;
// result documents are then recovered from pod logs only.
func NewK8sManager(client kubernetes.Interface, cfg Config, store storage.ArtifactStore, logger *zap.Logger) *K8sManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &K8sManager{
		client: client,
		cfg:    cfg,
		store:  store,
		logger: logger,
	}
}

// NewK8sClient builds a clientset from a kubeconfig path, or from the
// in-cluster service account when inCluster is set.
func NewK8sClient(kubeconfig string, inCluster bool) (kubernetes.Interface, error) {
	var (
		restCfg *rest.Config
		err     error
	)
	if inCluster {
		restCfg, err = rest.InClusterConfig()
	} else {
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config: %w", err)
	}
	return kubernetes.NewForConfig(restCfg)
}

// Run creates the sandbox pod and waits it out. Infrastructure problems
// come back inside the result, not as errors, so the caller always gets
// an account of the run.
func (m *K8sManager) Run(ctx context.Context, req Request) (*Result, error) {
	startTime := time.Now()

	m.logger.Info("Starting sandboxed suite run",
		zap.String("run_id", req.RunID.String()),
		zap.String("suite_uri", req.SuiteURI),
		zap.String("target_url", req.TargetURL),
	)

	result := &Result{
		RunID:  req.RunID,
		Status: StatusPending,
	}

	pod := m.buildPodSpec(req)

	created, err := m.client.CoreV1().Pods(m.cfg.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		result.Status = StatusError
		result.Error = fmt.Sprintf("failed to create pod: %v", err)
		result.Duration = time.Since(startTime)
		return result, nil
	}

	podName := created.Name
	defer m.cleanupPod(context.Background(), podName)

	result.Status = StatusRunning
	status, exitCode, err := m.waitForCompletion(ctx, podName, m.timeout(req))
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		result.Duration = time.Since(startTime)
		return result, nil
	}
	result.Status = status
	result.ExitCode = exitCode
	result.Duration = time.Since(startTime)

	logs, err := m.getPodLogs(ctx, podName)
	if err != nil {
		m.logger.Warn("Failed to get pod logs", zap.Error(err))
	}
	result.Logs = logs

	m.collectResults(ctx, req, result)

	m.logger.Info("Sandboxed suite run completed",
		zap.String("status", string(result.Status)),
		zap.Int("exit_code", result.ExitCode),
		zap.Int("passed", result.Passed),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	)

	return result, nil
}

func (m *K8sManager) timeout(req Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return m.cfg.DefaultTimeout
}

// resultsKey is where the pod uploads its JSON report.
func (m *K8sManager) resultsKey(runID string) string {
	return fmt.Sprintf("%s/%s/results.json", m.cfg.ResultsPrefix, runID)
}

// collectResults fills the tallies, preferring the uploaded JSON report
// over the summary lines in the pod logs.
func (m *K8sManager) collectResults(ctx context.Context, req Request, result *Result) {
	if m.store != nil {
		key := m.resultsKey(req.RunID.String())
		if data, err := m.store.Load(ctx, key); err == nil {
			if rep, perr := parseReport(data); perr == nil {
				result.applyReport(rep)
				result.ResultsURI = fmt.Sprintf("s3://%s/%s", m.cfg.Bucket, key)
				return
			}
			m.logger.Warn("Uploaded report unreadable, falling back to logs",
				zap.String("key", key))
		}
	}
	result.applyLogTally()
}

func (m *K8sManager) buildPodSpec(req Request) *corev1.Pod {
	bucket, key := m.parseSuiteURI(req.SuiteURI)

	timeoutSeconds := int64(m.timeout(req).Seconds())
	runID := req.RunID.String()

	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("storyqa-run-%s", runID[:8]),
			Namespace: m.cfg.Namespace,
			Labels: map[string]string{
				"app": "storyqa-sandbox",
				"run": runID,
			},
			Annotations: map[string]string{
				"storyqa.io/timeout":    m.timeout(req).String(),
				"storyqa.io/created-at": time.Now().UTC().Format(time.RFC3339),
				"storyqa.io/target-url": req.TargetURL,
			},
		},
		Spec: corev1.PodSpec{
			RestartPolicy:         corev1.RestartPolicyNever,
			ActiveDeadlineSeconds: &timeoutSeconds,
			SecurityContext: &corev1.PodSecurityContext{
				RunAsNonRoot: ptr(true),
				RunAsUser:    ptr(int64(1000)),
				FSGroup:      ptr(int64(1000)),
			},
			InitContainers: []corev1.Container{
				m.buildInitContainer(bucket, key),
			},
			Containers: []corev1.Container{
				m.buildMainContainer(req, runID),
			},
			Volumes: []corev1.Volume{
				{
					Name: "workspace",
					VolumeSource: corev1.VolumeSource{
						EmptyDir: &corev1.EmptyDirVolumeSource{},
					},
				},
				{
					Name: "results",
					VolumeSource: corev1.VolumeSource{
						EmptyDir: &corev1.EmptyDirVolumeSource{},
					},
				},
				{
					// Chromium needs a real /dev/shm or it crashes on
					// heavier pages.
					Name: "shm",
					VolumeSource: corev1.VolumeSource{
						EmptyDir: &corev1.EmptyDirVolumeSource{
							Medium:    corev1.StorageMediumMemory,
							SizeLimit: resource.NewQuantity(2*1024*1024*1024, resource.BinarySI),
						},
					},
				},
			},
			Tolerations: []corev1.Toleration{
				{
					Key:      "storyqa.io/sandbox",
					Operator: corev1.TolerationOpEqual,
					Value:    "true",
					Effect:   corev1.TaintEffectNoSchedule,
				},
			},
		},
	}
}

// buildInitContainer stages the suite archive into the workspace.
func (m *K8sManager) buildInitContainer(bucket, key string) corev1.Container {
	return corev1.Container{
		Name:  "init-suite",
		Image: m.cfg.InitImage,
		Command: []string{
			"/bin/sh",
			"-c",
			`
mc alias set storage $MINIO_ENDPOINT $MINIO_ACCESS_KEY $MINIO_SECRET_KEY --api S3v4
mc cp storage/$SUITE_BUCKET/$SUITE_KEY /workspace/suite.zip
cd /workspace && unzip -o suite.zip
`,
		},
		Env: append(m.storageCredentials(),
			corev1.EnvVar{Name: "SUITE_BUCKET", Value: bucket},
			corev1.EnvVar{Name: "SUITE_KEY", Value: key},
		),
		VolumeMounts: []corev1.VolumeMount{
			{Name: "workspace", MountPath: "/workspace"},
		},
		Resources: corev1.ResourceRequirements{
			Limits: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse("500m"),
				corev1.ResourceMemory: resource.MustParse("512Mi"),
			},
		},
	}
}

// buildMainContainer runs the suite and uploads the JSON report before
// propagating Playwright's exit code.
func (m *K8sManager) buildMainContainer(req Request, runID string) corev1.Container {
	workers := req.Workers
	if workers <= 0 {
		workers = 2
	}

	script := fmt.Sprintf(`
cd /workspace
npm ci --prefer-offline

npx playwright test --reporter=json --workers=%d
EXIT_CODE=$?

mc alias set storage $MINIO_ENDPOINT $MINIO_ACCESS_KEY $MINIO_SECRET_KEY --api S3v4
mc cp /results/results.json storage/$RESULTS_BUCKET/$RESULTS_KEY || echo "report upload failed"

exit $EXIT_CODE
`, workers)

	return corev1.Container{
		Name:       "playwright",
		Image:      m.cfg.Image,
		WorkingDir: "/workspace",
		Command:    []string{"/bin/sh", "-c", script},
		Env: append(m.storageCredentials(),
			corev1.EnvVar{Name: "CI", Value: "true"},
			corev1.EnvVar{Name: "BASE_URL", Value: req.TargetURL},
			corev1.EnvVar{Name: "STORYQA_RUN_ID", Value: runID},
			corev1.EnvVar{Name: "PLAYWRIGHT_JSON_OUTPUT_NAME", Value: "/results/results.json"},
			corev1.EnvVar{Name: "RESULTS_BUCKET", Value: m.cfg.Bucket},
			corev1.EnvVar{Name: "RESULTS_KEY", Value: m.resultsKey(runID)},
		),
		VolumeMounts: []corev1.VolumeMount{
			{Name: "workspace", MountPath: "/workspace"},
			{Name: "results", MountPath: "/results"},
			{Name: "shm", MountPath: "/dev/shm"},
		},
		Resources: corev1.ResourceRequirements{
			Requests: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse(m.cfg.Resources.RequestCPU),
				corev1.ResourceMemory: resource.MustParse(m.cfg.Resources.RequestMemory),
			},
			Limits: corev1.ResourceList{
				corev1.ResourceCPU:    resource.MustParse(m.cfg.Resources.LimitCPU),
				corev1.ResourceMemory: resource.MustParse(m.cfg.Resources.LimitMemory),
			},
		},
		SecurityContext: &corev1.SecurityContext{
			AllowPrivilegeEscalation: ptr(false),
			Capabilities: &corev1.Capabilities{
				Drop: []corev1.Capability{"ALL"},
			},
		},
	}
}

// storageCredentials wires the object storage secret into a container.
func (m *K8sManager) storageCredentials() []corev1.EnvVar {
	secretEnv := func(name, key string) corev1.EnvVar {
		return corev1.EnvVar{
			Name: name,
			ValueFrom: &corev1.EnvVarSource{
				SecretKeyRef: &corev1.SecretKeySelector{
					LocalObjectReference: corev1.LocalObjectReference{Name: m.cfg.SecretName},
					Key:                  key,
				},
			},
		}
	}
	return []corev1.EnvVar{
		secretEnv("MINIO_ENDPOINT", "endpoint"),
		secretEnv("MINIO_ACCESS_KEY", "access-key"),
		secretEnv("MINIO_SECRET_KEY", "secret-key"),
	}
}

// waitForCompletion watches the pod until it reaches a terminal phase
// or the timeout passes.
func (m *K8sManager) waitForCompletion(ctx context.Context, podName string, timeout time.Duration) (Status, int, error) {
	watcher, err := m.client.CoreV1().Pods(m.cfg.Namespace).Watch(ctx, metav1.ListOptions{
		FieldSelector: fmt.Sprintf("metadata.name=%s", podName),
	})
	if err != nil {
		return StatusError, 0, fmt.Errorf("failed to watch pod: %w", err)
	}
	defer watcher.Stop()

	timeoutCh := time.After(timeout)

	for {
		select {
		case <-ctx.Done():
			return StatusError, 0, ctx.Err()

		case <-timeoutCh:
			return StatusTimeout, 0, nil

		case event := <-watcher.ResultChan():
			if event.Type == watch.Deleted {
				return StatusError, 0, fmt.Errorf("pod deleted while running")
			}

			pod, ok := event.Object.(*corev1.Pod)
			if !ok {
				continue
			}

			switch pod.Status.Phase {
			case corev1.PodSucceeded:
				return StatusSucceeded, 0, nil

			case corev1.PodFailed:
				exitCode := 1
				if len(pod.Status.ContainerStatuses) > 0 {
					if term := pod.Status.ContainerStatuses[0].State.Terminated; term != nil {
						exitCode = int(term.ExitCode)
					}
				}
				return StatusFailed, exitCode, nil
			}
		}
	}
}

func (m *K8sManager) getPodLogs(ctx context.Context, podName string) (string, error) {
	req := m.client.CoreV1().Pods(m.cfg.Namespace).GetLogs(podName, &corev1.PodLogOptions{
		Container: "playwright",
	})

	logs, err := req.Stream(ctx)
	if err != nil {
		return "", err
	}
	defer logs.Close()

	buf := new(bytes.Buffer)
	_, err = io.Copy(buf, logs)
	return buf.String(), err
}

func (m *K8sManager) cleanupPod(ctx context.Context, podName string) {
	if err := m.client.CoreV1().Pods(m.cfg.Namespace).Delete(ctx, podName, metav1.DeleteOptions{}); err != nil {
		m.logger.Warn("Failed to delete sandbox pod",
			zap.String("pod_name", podName), zap.Error(err))
	}
}

// parseSuiteURI splits a store URI into bucket and key. Bare keys fall
// back to the configured bucket.
func (m *K8sManager) parseSuiteURI(uri string) (bucket, key string) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(uri, "s3://"), "minio://")
	if trimmed != uri {
		if parts := strings.SplitN(trimmed, "/", 2); len(parts) == 2 {
			return parts[0], parts[1]
		}
	}
	return m.cfg.Bucket, trimmed
}

func ptr[T any](v T) *T {
	return &v
}
