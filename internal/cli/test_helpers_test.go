package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/runnerr0/typelog/internal/record"
	"github.com/runnerr0/typelog/internal/storage"
)

// openTestStore creates an on-disk store in a temp dir for command tests.
func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "typelog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

// seedChapter writes one chapter record with the given practice time and due date.
func seedChapter(t *testing.T, store *storage.Store, dict string, chapter, timeSec, wrongCount int, due time.Time) {
	t.Helper()
	rec := record.NewChapterRecord(dict, chapter, timeSec, 100-wrongCount, wrongCount, 20,
		[]int{0, 1, 2, 3, 4}, 20, nil,
		record.FlatSchedule{CardDue: due.UTC().Format(time.RFC3339)})
	require.NoError(t, store.PutChapterRecord(context.Background(), rec))
}

// captureOutput captures stdout during fn execution and returns it as a string.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}
