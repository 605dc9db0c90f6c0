package postgres

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/storyqa/storyqa/internal/domain"
)

func TestResultRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	db := testDB.DB
	runRepo := NewRunRepository(db)
	resultRepo := NewResultRepository(db)
	ctx := context.Background()

	createTestRun := func(t *testing.T) *domain.Run {
		run := domain.NewRun("As a user, I want to log in", "https://example.com/login", 1)
		err := runRepo.Create(ctx, run)
		require.NoError(t, err)
		return run
	}

	t.Run("ReplaceAndGet", func(t *testing.T) {
		testDB.TruncateTables(t)
		run := createTestRun(t)

		results := []domain.ExecutionResult{
			{
				TCID:            "TC-001",
				Feature:         "Login",
				UserRole:        "registered user",
				Condition:       "login with valid credentials",
				PageURL:         "https://example.com/login",
				Status:          domain.ExecStatusPass,
				DurationSeconds: 2.41,
				Log:             "✔ Navigated to https://example.com/login\n✅ All steps passed.",
			},
			{
				TCID:            "TC-002",
				Feature:         "Login",
				Status:          domain.ExecStatusFail,
				DurationSeconds: 1.07,
				ErrorMessage:    "Input 'username' not found by name, id, or placeholder",
				ScreenshotPath:  "screenshots/TC-002.png",
				Log:             "✘ Step 2 FAILED: Find element by name/id 'username'",
			},
		}

		err := resultRepo.ReplaceForRun(ctx, run.ID, results)
		require.NoError(t, err)

		fetched, err := resultRepo.GetByRunID(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, fetched, 2)

		assert.Equal(t, "TC-001", fetched[0].TCID)
		assert.Equal(t, domain.ExecStatusPass, fetched[0].Status)
		assert.Equal(t, 2.41, fetched[0].DurationSeconds)
		assert.Contains(t, fetched[0].Log, "All steps passed")

		assert.Equal(t, "TC-002", fetched[1].TCID)
		assert.Equal(t, domain.ExecStatusFail, fetched[1].Status)
		assert.Equal(t, "Input 'username' not found by name, id, or placeholder", fetched[1].ErrorMessage)
		assert.Equal(t, "screenshots/TC-002.png", fetched[1].ScreenshotPath)
	})

	t.Run("ReplaceDropsOldBatch", func(t *testing.T) {
		testDB.TruncateTables(t)
		run := createTestRun(t)

		first := []domain.ExecutionResult{
			{TCID: "TC-001", Status: domain.ExecStatusError, ErrorMessage: "net::ERR_CONNECTION_REFUSED"},
			{TCID: "TC-002", Status: domain.ExecStatusError, ErrorMessage: "net::ERR_CONNECTION_REFUSED"},
		}
		require.NoError(t, resultRepo.ReplaceForRun(ctx, run.ID, first))

		rerun := []domain.ExecutionResult{
			{TCID: "TC-001", Status: domain.ExecStatusPass, DurationSeconds: 3.2},
		}
		require.NoError(t, resultRepo.ReplaceForRun(ctx, run.ID, rerun))

		fetched, err := resultRepo.GetByRunID(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, fetched, 1)
		assert.Equal(t, domain.ExecStatusPass, fetched[0].Status)
	})

	t.Run("DuplicateTCID", func(t *testing.T) {
		testDB.TruncateTables(t)
		run := createTestRun(t)

		err := resultRepo.ReplaceForRun(ctx, run.ID, []domain.ExecutionResult{
			{TCID: "TC-001", Status: domain.ExecStatusPass},
			{TCID: "TC-001", Status: domain.ExecStatusFail},
		})
		require.Error(t, err)
		assert.True(t, domain.IsSentinelError(err, domain.ErrAlreadyExistsVal))

		fetched, err := resultRepo.GetByRunID(ctx, run.ID)
		require.NoError(t, err)
		assert.Empty(t, fetched)
	})

	t.Run("UnknownRun", func(t *testing.T) {
		testDB.TruncateTables(t)

		err := resultRepo.ReplaceForRun(ctx, uuid.New(), []domain.ExecutionResult{
			{TCID: "TC-001", Status: domain.ExecStatusPass},
		})
		require.Error(t, err)
		assert.True(t, domain.IsNotFoundError(err))
	})

	t.Run("GetByRunID_Empty", func(t *testing.T) {
		testDB.TruncateTables(t)
		run := createTestRun(t)

		fetched, err := resultRepo.GetByRunID(ctx, run.ID)
		require.NoError(t, err)
		assert.Empty(t, fetched)
	})
}
