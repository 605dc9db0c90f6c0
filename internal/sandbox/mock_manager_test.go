package sandbox

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/services/scriptgen"
	"github.com/storyqa/storyqa/internal/storage"
)

func TestMockManagerRunsGeneratedSuite(t *testing.T) {
	cases := []domain.TestCase{
		{TCID: "TC-001", Feature: "Login", Condition: "User can log in with valid credentials"},
		{TCID: "TC-002", Feature: "Login", Condition: "User can't reuse an expired token"},
		{TCID: "TC-003", Feature: "Checkout", Condition: "Cart total updates after adding an item"},
	}

	proj := scriptgen.NewGenerator("https://shop.example.com").Generate("Login flow", cases)
	archive, err := proj.Zip()
	require.NoError(t, err)

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	runID := uuid.New()
	uri, err := store.Save(context.Background(),
		fmt.Sprintf("suites/%s.zip", runID), archive, "application/zip")
	require.NoError(t, err)

	workDir := t.TempDir()
	mgr := NewMockManager(workDir, store, zap.NewNop())

	result, err := mgr.Run(context.Background(), Request{RunID: runID, SuiteURI: uri})
	require.NoError(t, err)

	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Passed)
	assert.Equal(t, 0, result.Failed)
	assert.Contains(t, result.Logs, "3 passed")

	require.Len(t, result.Specs, 3)
	assert.Equal(t, "TC-001", result.Specs[0].TCID)
	assert.Equal(t, "TC-002", result.Specs[1].TCID)
	assert.Equal(t, "TC-003", result.Specs[2].TCID)
	// Escaped quotes in the emitted title come back intact.
	assert.Equal(t, "User can't reuse an expired token", result.Specs[1].Title)
	for _, spec := range result.Specs {
		assert.Equal(t, "passed", spec.Status)
	}

	// The suite was staged the way the init container would.
	_, err = os.Stat(filepath.Join(workDir, runID.String(), filepath.FromSlash(proj.SpecPath)))
	assert.NoError(t, err)
}

func TestMockManagerNoStore(t *testing.T) {
	mgr := NewMockManager(t.TempDir(), nil, nil)

	result, err := mgr.Run(context.Background(), Request{RunID: uuid.New(), SuiteURI: "suites/x.zip"})
	require.NoError(t, err)

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "no artifact store configured")
}

func TestMockManagerMissingArchive(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	mgr := NewMockManager(t.TempDir(), store, zap.NewNop())

	result, err := mgr.Run(context.Background(), Request{RunID: uuid.New(), SuiteURI: "suites/missing.zip"})
	require.NoError(t, err)

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "loading suite archive")
}

func TestMockManagerCorruptArchive(t *testing.T) {
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	uri, err := store.Save(context.Background(), "suites/bad.zip", []byte("not a zip"), "application/zip")
	require.NoError(t, err)

	mgr := NewMockManager(t.TempDir(), store, zap.NewNop())
	result, err := mgr.Run(context.Background(), Request{RunID: uuid.New(), SuiteURI: uri})
	require.NoError(t, err)

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "staging suite")
}

func TestMockManagerRejectsEscapingArchive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../evil.spec.ts")
	require.NoError(t, err)
	_, err = w.Write([]byte("test('[TC-001] escape', async ({ page }) => {});"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	uri, err := store.Save(context.Background(), "suites/evil.zip", buf.Bytes(), "application/zip")
	require.NoError(t, err)

	workDir := t.TempDir()
	mgr := NewMockManager(workDir, store, zap.NewNop())
	result, err := mgr.Run(context.Background(), Request{RunID: uuid.New(), SuiteURI: uri})
	require.NoError(t, err)

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "escapes suite root")
	_, statErr := os.Stat(filepath.Join(workDir, "evil.spec.ts"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeclaredSpecs(t *testing.T) {
	content := `
test.describe('Login', () => {

  test('[TC-001] User can log in', async ({ page }) => {
    await page.goto('https://shop.example.com/login');
  });

  test('[TC-002] User can\'t log in twice', async ({ page }) => {
  });

  test('hand written check', async ({ page }) => {
  });
});
`
	specs := declaredSpecs(content)
	require.Len(t, specs, 3)
	assert.Equal(t, "TC-001", specs[0].TCID)
	assert.Equal(t, "User can log in", specs[0].Title)
	assert.Equal(t, "User can't log in twice", specs[1].Title)
	assert.Empty(t, specs[2].TCID)
	assert.Equal(t, "hand written check", specs[2].Title)
}
