package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/typelog/internal/record"
	"github.com/runnerr0/typelog/internal/storage"
)

func TestPurge_WithoutAllFlag_Errors(t *testing.T) {
	err := RunWithArgs("test", []string{"purge"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "purge requires --all flag for safety")
}

func TestPurge_WithAllAndForce_Succeeds(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.SaveWordRecord(ctx, record.NewWordRecord("apple", "cet4", 0, []int64{0, 90}, 0, nil))
	require.NoError(t, err)
	seedChapter(t, store, "cet4", 0, 60, 2, time.Now())

	cmd := &PurgeCommand{
		All:     true,
		Force:   true,
		globals: &GlobalFlags{},
		store:   store,
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})
	assert.Contains(t, output, "Purged all data")

	for _, name := range store.TableNames() {
		tbl, _ := store.Table(name)
		n, err := tbl.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n, "%s should be empty", name)
	}

	practiceTime, err := store.Counters.Read(ctx, storage.CounterPracticeTime)
	require.NoError(t, err)
	assert.Zero(t, practiceTime)
}

func TestPurge_JSONOutput(t *testing.T) {
	store := openTestStore(t)

	cmd := &PurgeCommand{
		All:     true,
		Force:   true,
		globals: &GlobalFlags{JSON: true},
		store:   store,
	}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	var result map[string]interface{}
	err := json.Unmarshal([]byte(output), &result)
	require.NoError(t, err, "output should be valid JSON: %s", output)
	assert.Equal(t, true, result["purged"])
	assert.Equal(t, "all data deleted", result["message"])
}
