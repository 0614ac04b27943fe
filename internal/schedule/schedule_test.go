package schedule

import (
	"testing"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runnerr0/typelog/internal/record"
)

func sampleInfo(due time.Time) fsrs.SchedulingInfo {
	return fsrs.SchedulingInfo{
		Card: fsrs.Card{
			Due:           due,
			Stability:     3.17,
			Difficulty:    5.28,
			ElapsedDays:   2,
			ScheduledDays: 4,
			Reps:          6,
			Lapses:        1,
			State:         fsrs.Review,
			LastReview:    due.Add(-4 * 24 * time.Hour),
		},
		ReviewLog: fsrs.ReviewLog{
			Rating:        fsrs.Good,
			ScheduledDays: 4,
			ElapsedDays:   2,
			Review:        due.Add(-4 * 24 * time.Hour),
			State:         fsrs.Learning,
		},
	}
}

func TestFlattenInflateRoundTrip(t *testing.T) {
	due := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	want := sampleInfo(due)

	got, err := Inflate(Flatten(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFlattenInflateRoundTripFromScheduler(t *testing.T) {
	// Round-trip the real algorithm's output, not just a hand-built value.
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	f := fsrs.NewFSRS(fsrs.DefaultParam())

	for _, rating := range []fsrs.Rating{fsrs.Again, fsrs.Hard, fsrs.Good, fsrs.Easy} {
		want := f.Repeat(fsrs.NewCard(), now)[rating]
		got, err := Inflate(Flatten(want))
		require.NoError(t, err)
		assert.Equal(t, want, got, "rating %v", rating)
	}
}

func TestFlattenNormalizesToUTCSeconds(t *testing.T) {
	loc := time.FixedZone("CST", 8*3600)
	due := time.Date(2026, 3, 14, 17, 26, 53, 731000000, loc)

	flat := Flatten(sampleInfo(due))
	assert.Equal(t, "2026-03-14T09:26:53Z", flat.CardDue)
}

func TestInflateRejectsGarbageDates(t *testing.T) {
	flat := Flatten(sampleInfo(time.Now()))
	flat.CardDue = "not a date"

	_, err := Inflate(flat)
	assert.Error(t, err)
}

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		flat record.FlatSchedule
		want bool
	}{
		{"empty block is always due", record.FlatSchedule{}, true},
		{"past due date", record.FlatSchedule{CardDue: "2026-05-31T12:00:00Z"}, true},
		{"due exactly now", record.FlatSchedule{CardDue: "2026-06-01T12:00:00Z"}, true},
		{"future due date", record.FlatSchedule{CardDue: "2026-06-02T12:00:00Z"}, false},
		{"unparseable due date", record.FlatSchedule{CardDue: "garbage"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDue(tt.flat, now))
		})
	}
}

func TestDueTime(t *testing.T) {
	due, ok := DueTime(record.FlatSchedule{CardDue: "2026-06-01T12:00:00Z"})
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC), due)

	_, ok = DueTime(record.FlatSchedule{})
	assert.False(t, ok)
	_, ok = DueTime(record.FlatSchedule{CardDue: "garbage"})
	assert.False(t, ok)
}

func TestSchedulerNext(t *testing.T) {
	s := NewScheduler()
	now := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	first, err := s.Next(nil, fsrs.Good, now)
	require.NoError(t, err)
	assert.False(t, first.Zero())
	assert.EqualValues(t, 1, first.CardReps)
	assert.EqualValues(t, fsrs.Good, first.ReviewRating)

	due, ok := DueTime(first)
	require.True(t, ok)
	assert.True(t, due.After(now))

	second, err := s.Next(&first, fsrs.Good, due)
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.CardReps)
}

func TestSchedulerNextRejectsCorruptPrevious(t *testing.T) {
	s := NewScheduler()
	prev := record.FlatSchedule{CardDue: "garbage"}

	_, err := s.Next(&prev, fsrs.Good, time.Now())
	assert.Error(t, err)
}
