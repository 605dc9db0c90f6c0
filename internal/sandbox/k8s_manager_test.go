package sandbox

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	kerrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/storyqa/storyqa/internal/storage"
)

func newTestManager(client *fake.Clientset, store storage.ArtifactStore) *K8sManager {
	return NewK8sManager(client, DefaultConfig(), store, zap.NewNop())
}

func envValue(t *testing.T, env []corev1.EnvVar, name string) string {
	t.Helper()
	for _, e := range env {
		if e.Name == name {
			return e.Value
		}
	}
	t.Fatalf("env var %s not set", name)
	return ""
}

func terminalPod(name, namespace string, phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Status:     corev1.PodStatus{Phase: phase},
	}
}

func TestBuildPodSpec(t *testing.T) {
	mgr := newTestManager(fake.NewSimpleClientset(), nil)
	runID := uuid.MustParse("a1b2c3d4-0000-4000-8000-000000000001")

	req := Request{
		RunID:     runID,
		SuiteURI:  "s3://suites-bucket/suites/checkout.zip",
		TargetURL: "https://shop.example.com",
		Timeout:   10 * time.Minute,
		Workers:   4,
	}

	pod := mgr.buildPodSpec(req)

	assert.Equal(t, "storyqa-run-a1b2c3d4", pod.Name)
	assert.Equal(t, "storyqa-sandboxes", pod.Namespace)
	assert.Equal(t, "storyqa-sandbox", pod.Labels["app"])
	assert.Equal(t, runID.String(), pod.Labels["run"])
	assert.Equal(t, "10m0s", pod.Annotations["storyqa.io/timeout"])
	assert.Equal(t, "https://shop.example.com", pod.Annotations["storyqa.io/target-url"])
	assert.NotEmpty(t, pod.Annotations["storyqa.io/created-at"])

	assert.Equal(t, corev1.RestartPolicyNever, pod.Spec.RestartPolicy)
	require.NotNil(t, pod.Spec.ActiveDeadlineSeconds)
	assert.Equal(t, int64(600), *pod.Spec.ActiveDeadlineSeconds)

	require.NotNil(t, pod.Spec.SecurityContext)
	require.NotNil(t, pod.Spec.SecurityContext.RunAsNonRoot)
	assert.True(t, *pod.Spec.SecurityContext.RunAsNonRoot)
	require.NotNil(t, pod.Spec.SecurityContext.RunAsUser)
	assert.Equal(t, int64(1000), *pod.Spec.SecurityContext.RunAsUser)

	require.Len(t, pod.Spec.InitContainers, 1)
	initC := pod.Spec.InitContainers[0]
	assert.Equal(t, "init-suite", initC.Name)
	assert.Equal(t, "minio/mc:latest", initC.Image)
	assert.Equal(t, "suites-bucket", envValue(t, initC.Env, "SUITE_BUCKET"))
	assert.Equal(t, "suites/checkout.zip", envValue(t, initC.Env, "SUITE_KEY"))

	require.Len(t, pod.Spec.Containers, 1)
	main := pod.Spec.Containers[0]
	assert.Equal(t, "playwright", main.Name)
	assert.Equal(t, "mcr.microsoft.com/playwright:v1.52.0-jammy", main.Image)
	assert.Equal(t, "true", envValue(t, main.Env, "CI"))
	assert.Equal(t, "https://shop.example.com", envValue(t, main.Env, "BASE_URL"))
	assert.Equal(t, runID.String(), envValue(t, main.Env, "STORYQA_RUN_ID"))
	assert.Equal(t, "/results/results.json", envValue(t, main.Env, "PLAYWRIGHT_JSON_OUTPUT_NAME"))
	assert.Equal(t, "storyqa", envValue(t, main.Env, "RESULTS_BUCKET"))
	assert.Equal(t, fmt.Sprintf("results/%s/results.json", runID), envValue(t, main.Env, "RESULTS_KEY"))

	require.Len(t, main.Command, 3)
	assert.Contains(t, main.Command[2], "npx playwright test --reporter=json")
	assert.Contains(t, main.Command[2], "--workers=4")

	mountNames := make([]string, 0, len(main.VolumeMounts))
	for _, vm := range main.VolumeMounts {
		mountNames = append(mountNames, vm.Name)
	}
	assert.ElementsMatch(t, []string{"workspace", "results", "shm"}, mountNames)

	volumeNames := make([]string, 0, len(pod.Spec.Volumes))
	for _, v := range pod.Spec.Volumes {
		volumeNames = append(volumeNames, v.Name)
	}
	assert.ElementsMatch(t, []string{"workspace", "results", "shm"}, volumeNames)

	require.Len(t, pod.Spec.Tolerations, 1)
	assert.Equal(t, "storyqa.io/sandbox", pod.Spec.Tolerations[0].Key)
}

func TestBuildPodSpecCredentialsFromSecret(t *testing.T) {
	mgr := newTestManager(fake.NewSimpleClientset(), nil)
	pod := mgr.buildPodSpec(Request{RunID: uuid.New(), SuiteURI: "suite.zip"})

	var endpoint *corev1.EnvVar
	env := pod.Spec.InitContainers[0].Env
	for i := range env {
		if env[i].Name == "MINIO_ENDPOINT" {
			endpoint = &env[i]
		}
	}
	require.NotNil(t, endpoint)
	require.NotNil(t, endpoint.ValueFrom)
	require.NotNil(t, endpoint.ValueFrom.SecretKeyRef)
	assert.Equal(t, "storyqa-minio", endpoint.ValueFrom.SecretKeyRef.Name)
	assert.Equal(t, "endpoint", endpoint.ValueFrom.SecretKeyRef.Key)
}

func TestBuildPodSpecDefaults(t *testing.T) {
	mgr := newTestManager(fake.NewSimpleClientset(), nil)

	// No explicit timeout or worker count.
	pod := mgr.buildPodSpec(Request{RunID: uuid.New(), SuiteURI: "suite.zip"})

	require.NotNil(t, pod.Spec.ActiveDeadlineSeconds)
	assert.Equal(t, int64(900), *pod.Spec.ActiveDeadlineSeconds)
	assert.Contains(t, pod.Spec.Containers[0].Command[2], "--workers=2")
}

func TestParseSuiteURI(t *testing.T) {
	mgr := newTestManager(fake.NewSimpleClientset(), nil)

	tests := []struct {
		uri    string
		bucket string
		key    string
	}{
		{"s3://suites-bucket/runs/abc.zip", "suites-bucket", "runs/abc.zip"},
		{"minio://other/deep/path/suite.zip", "other", "deep/path/suite.zip"},
		{"suites/abc.zip", "storyqa", "suites/abc.zip"},
		{"s3://keyless", "storyqa", "keyless"},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key := mgr.parseSuiteURI(tt.uri)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestRunPodCreationFailure(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("create", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("quota exceeded")
	})

	mgr := newTestManager(client, nil)
	result, err := mgr.Run(context.Background(), Request{RunID: uuid.New(), SuiteURI: "suite.zip"})

	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "failed to create pod")
	assert.Contains(t, result.Error, "quota exceeded")
}

func TestRunSucceededCollectsUploadedReport(t *testing.T) {
	runID := uuid.MustParse("deadbeef-0000-4000-8000-000000000002")
	podName := "storyqa-run-deadbeef"

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Save(context.Background(),
		fmt.Sprintf("results/%s/results.json", runID), []byte(sampleReport), "application/json")
	require.NoError(t, err)

	client := fake.NewSimpleClientset()
	watcher := watch.NewFakeWithChanSize(1, false)
	watcher.Modify(terminalPod(podName, "storyqa-sandboxes", corev1.PodSucceeded))
	client.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(watcher, nil))

	mgr := newTestManager(client, store)
	result, err := mgr.Run(context.Background(), Request{
		RunID:     runID,
		SuiteURI:  "s3://storyqa/suites/login.zip",
		TargetURL: "https://shop.example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.Specs, 3)
	assert.Equal(t, fmt.Sprintf("s3://storyqa/results/%s/results.json", runID), result.ResultsURI)

	// The pod is deleted once the run is accounted for.
	_, err = client.CoreV1().Pods("storyqa-sandboxes").Get(context.Background(), podName, metav1.GetOptions{})
	assert.True(t, kerrors.IsNotFound(err))
}

func TestRunFailedPodKeepsExitCode(t *testing.T) {
	runID := uuid.New()
	pod := terminalPod("storyqa-run-"+runID.String()[:8], "storyqa-sandboxes", corev1.PodFailed)
	pod.Status.ContainerStatuses = []corev1.ContainerStatus{
		{State: corev1.ContainerState{Terminated: &corev1.ContainerStateTerminated{ExitCode: 3}}},
	}

	client := fake.NewSimpleClientset()
	watcher := watch.NewFakeWithChanSize(1, false)
	watcher.Modify(pod)
	client.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(watcher, nil))

	mgr := newTestManager(client, nil)
	result, err := mgr.Run(context.Background(), Request{RunID: runID, SuiteURI: "suite.zip"})

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, 3, result.ExitCode)
}

func TestRunTimesOut(t *testing.T) {
	client := fake.NewSimpleClientset()
	watcher := watch.NewFakeWithChanSize(1, false)
	client.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(watcher, nil))

	mgr := newTestManager(client, nil)
	result, err := mgr.Run(context.Background(), Request{
		RunID:    uuid.New(),
		SuiteURI: "suite.zip",
		Timeout:  50 * time.Millisecond,
	})

	require.NoError(t, err)
	assert.Equal(t, StatusTimeout, result.Status)
}

func TestRunPodDeletedUnderneath(t *testing.T) {
	runID := uuid.New()

	client := fake.NewSimpleClientset()
	watcher := watch.NewFakeWithChanSize(1, false)
	watcher.Delete(terminalPod("storyqa-run-"+runID.String()[:8], "storyqa-sandboxes", corev1.PodRunning))
	client.PrependWatchReactor("pods", k8stesting.DefaultWatchReactor(watcher, nil))

	mgr := newTestManager(client, nil)
	result, err := mgr.Run(context.Background(), Request{RunID: runID, SuiteURI: "suite.zip"})

	require.NoError(t, err)
	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "pod deleted")
}
