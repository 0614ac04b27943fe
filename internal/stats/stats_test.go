package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/typelog/internal/record"
	"github.com/runnerr0/typelog/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "typelog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, store.Close()) })
	return store
}

func scheduleDue(at time.Time) record.FlatSchedule {
	return record.FlatSchedule{CardDue: at.UTC().Format(time.RFC3339)}
}

func seedChapter(t *testing.T, store *storage.Store, dict string, chapter int, due time.Time) {
	t.Helper()
	rec := record.NewChapterRecord(dict, chapter, 60, 95, 5, 20,
		rangeInts(0, 15), 20, []int64{1, 2}, scheduleDue(due))
	require.NoError(t, store.PutChapterRecord(context.Background(), rec))
}

func rangeInts(lo, hi int) []int {
	out := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		out = append(out, i)
	}
	return out
}

func chapterOrder(details []ChapterDetail) []int {
	out := make([]int, len(details))
	for i, d := range details {
		out[i] = d.Chapter
	}
	return out
}

func TestChapterStats_Unattempted(t *testing.T) {
	agg := NewAggregator(openTestStore(t))

	got, err := agg.ChapterStats(context.Background(), "cet4", 3)
	require.NoError(t, err)
	assert.Zero(t, got.ExerciseCount)
	assert.True(t, got.Schedule.Zero())
}

func TestChapterStats_Computed(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	ctx := context.Background()

	due := time.Now().Add(24 * time.Hour)
	rec := record.NewChapterRecord("cet4", 2, 60, 93, 7, 20,
		rangeInts(0, 15), 20, nil, scheduleDue(due))
	require.NoError(t, store.PutChapterRecord(ctx, rec))

	got, err := agg.ChapterStats(ctx, "cet4", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ExerciseCount)
	assert.InDelta(t, 5, got.AvgWrongWordCount, 0.001)
	assert.InDelta(t, 7, got.AvgWrongInputCount, 0.001)
	assert.False(t, got.Schedule.Zero())
}

func TestAllChapterDetail_Ordering(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	now := time.Now()

	seedChapter(t, store, "cet4", 1, now.Add(time.Hour))
	seedChapter(t, store, "cet4", 3, now.Add(-time.Hour))
	seedChapter(t, store, "cet4", 4, now.Add(2*time.Hour))

	details, err := agg.AllChapterDetail(context.Background(),
		record.Dictionary{ID: "cet4", ChapterCount: 5})
	require.NoError(t, err)

	// Attempted by due ascending, then unattempted by index.
	assert.Equal(t, []int{3, 1, 4, 0, 2}, chapterOrder(details))
	assert.True(t, details[0].Attempted())
	assert.False(t, details[3].Attempted())
}

func TestAllChapterDetail_IgnoresOutOfRangeChapters(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	now := time.Now()

	seedChapter(t, store, "cet4", 0, now)
	seedChapter(t, store, "cet4", 9, now)

	details, err := agg.AllChapterDetail(context.Background(),
		record.Dictionary{ID: "cet4", ChapterCount: 3})
	require.NoError(t, err)
	require.Len(t, details, 3)
	assert.Equal(t, []int{0, 1, 2}, chapterOrder(details))
}

func TestNextEligibleChapter_SkipsFutureDue(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	now := time.Now()

	seedChapter(t, store, "cet4", 1, now.Add(time.Hour))

	details, err := agg.AllChapterDetail(context.Background(),
		record.Dictionary{ID: "cet4", ChapterCount: 3})
	require.NoError(t, err)

	// Chapter 1 is attempted and not due yet; chapter 2 is unattempted.
	next, err := NextEligibleChapter(details, 0, now)
	require.NoError(t, err)
	assert.Equal(t, 2, next)
}

func TestNextEligibleChapter_PastDueIsSelectable(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	now := time.Now()

	seedChapter(t, store, "cet4", 0, now.Add(-time.Hour))
	seedChapter(t, store, "cet4", 1, now.Add(time.Hour))
	seedChapter(t, store, "cet4", 2, now.Add(2*time.Hour))

	details, err := agg.AllChapterDetail(context.Background(),
		record.Dictionary{ID: "cet4", ChapterCount: 3})
	require.NoError(t, err)

	next, err := NextEligibleChapter(details, 1, now)
	require.NoError(t, err)
	assert.Equal(t, 0, next)
}

func TestNextEligibleChapter_Wraps(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	now := time.Now()

	seedChapter(t, store, "cet4", 1, now.Add(time.Hour))
	seedChapter(t, store, "cet4", 2, now.Add(time.Hour))

	details, err := agg.AllChapterDetail(context.Background(),
		record.Dictionary{ID: "cet4", ChapterCount: 3})
	require.NoError(t, err)

	next, err := NextEligibleChapter(details, 2, now)
	require.NoError(t, err)
	assert.Equal(t, 0, next)
}

func TestNextEligibleChapter_NothingDue(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	now := time.Now()

	for chapter := 0; chapter < 3; chapter++ {
		seedChapter(t, store, "cet4", chapter, now.Add(time.Hour))
	}

	details, err := agg.AllChapterDetail(context.Background(),
		record.Dictionary{ID: "cet4", ChapterCount: 3})
	require.NoError(t, err)

	_, err = NextEligibleChapter(details, 0, now)
	assert.ErrorIs(t, err, ErrNothingDue)
}

func TestDictStats(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	ctx := context.Background()
	now := time.Now()

	seedChapter(t, store, "cet4", 0, now)
	seedChapter(t, store, "cet4", 1, now)
	seedChapter(t, store, "cet6", 0, now)
	_, err := store.SaveWordRecord(ctx, record.NewWordRecord("apple", "cet4", 0, []int64{0, 90}, 0, nil))
	require.NoError(t, err)

	got, err := agg.DictStats(ctx, record.Dictionary{ID: "cet4", ChapterCount: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExercisedChapterCount)
	assert.Equal(t, 120, got.TotalPracticeTime)
	assert.Equal(t, 10, got.TotalWrongCount)
	assert.Equal(t, 1, got.WordRecordCount)
}

func TestErrorWords(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	ctx := context.Background()

	save := func(word string, wrong int, ts int64) {
		rec := record.NewWordRecord(word, "cet4", 0, []int64{0, 100}, wrong,
			record.LetterMistakes{0: []string{"x"}})
		rec.TimeStamp = ts
		_, err := store.SaveWordRecord(ctx, rec)
		require.NoError(t, err)
	}
	save("apple", 2, 100)
	save("banana", 1, 200)
	save("apple", 1, 300)
	save("clean", 0, 400)

	got, err := agg.ErrorWords(ctx, "cet4")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Most recently missed word first.
	assert.Equal(t, "apple", got[0].Word)
	assert.Equal(t, 2, got[0].ErrorCount)
	assert.Equal(t, 3, got[0].TotalWrongCount)
	assert.EqualValues(t, 300, got[0].LatestTimeStamp)
	assert.Equal(t, "banana", got[1].Word)

	n, err := agg.RevisionWordCount(ctx, "cet4")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDaysSinceFirstRecord(t *testing.T) {
	store := openTestStore(t)
	agg := NewAggregator(store)
	ctx := context.Background()

	days, err := agg.DaysSinceFirstRecord(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, days)

	now := time.Now()
	rec := record.NewWordRecord("apple", "cet4", 0, []int64{0, 90}, 0, nil)
	rec.TimeStamp = now.Add(-72 * time.Hour).Unix()
	_, err = store.SaveWordRecord(ctx, rec)
	require.NoError(t, err)

	days, err = agg.DaysSinceFirstRecord(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, days)
}