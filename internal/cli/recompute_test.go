package cli

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/typelog/internal/storage"
)

func TestRecompute_NoDrift(t *testing.T) {
	store := openTestStore(t)
	seedChapter(t, store, "cet4", 0, 60, 2, time.Now())

	cmd := &RecomputeCommand{globals: &GlobalFlags{}, store: store}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	assert.Contains(t, output, "practiceTime")
	assert.Contains(t, output, "no drift")
}

func TestRecompute_RepairsDrift(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	seedChapter(t, store, "cet4", 0, 60, 2, time.Now())

	// Introduce drift behind the store's back.
	require.NoError(t, store.Counters.ApplyDelta(ctx, storage.CounterPracticeTime, 999))

	cmd := &RecomputeCommand{globals: &GlobalFlags{JSON: true}, store: store}

	output := captureOutput(t, func() {
		require.NoError(t, cmd.Execute(nil))
	})

	var repairs []struct {
		Counter string `json:"counter"`
		Before  int64  `json:"before"`
		After   int64  `json:"after"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &repairs))
	require.Len(t, repairs, 2)

	assert.Equal(t, storage.CounterPracticeTime, repairs[0].Counter)
	assert.EqualValues(t, 1059, repairs[0].Before)
	assert.EqualValues(t, 60, repairs[0].After)

	got, err := store.Counters.Read(ctx, storage.CounterPracticeTime)
	require.NoError(t, err)
	assert.EqualValues(t, 60, got)
}
