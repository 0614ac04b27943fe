// Package schedule adapts the FSRS scheduler's card and review-log types to
// the flat field block stored on a chapter record, and decides when a
// chapter is due for re-study.
package schedule

import (
	"fmt"
	"time"

	fsrs "github.com/open-spaced-repetition/go-fsrs/v3"

	"github.com/runnerr0/typelog/internal/record"
)

// timeLayout is the stored date format. Second precision is enough for due
// dates and keeps flatten/inflate round-trips exact.
const timeLayout = time.RFC3339

// Flatten converts a scheduling result into the flat block persisted on a
// chapter record. Dates are normalized to UTC at second precision.
func Flatten(info fsrs.SchedulingInfo) record.FlatSchedule {
	return record.FlatSchedule{
		CardDue:           formatTime(info.Card.Due),
		CardStability:     info.Card.Stability,
		CardDifficulty:    info.Card.Difficulty,
		CardElapsedDays:   info.Card.ElapsedDays,
		CardScheduledDays: info.Card.ScheduledDays,
		CardReps:          info.Card.Reps,
		CardLapses:        info.Card.Lapses,
		CardState:         int8(info.Card.State),
		CardLastReview:    formatTime(info.Card.LastReview),

		ReviewRating:        int8(info.ReviewLog.Rating),
		ReviewScheduledDays: info.ReviewLog.ScheduledDays,
		ReviewElapsedDays:   info.ReviewLog.ElapsedDays,
		ReviewReview:        formatTime(info.ReviewLog.Review),
		ReviewState:         int8(info.ReviewLog.State),
	}
}

// Inflate reconstructs the scheduler's card and review log from the flat
// block. It is the exact inverse of Flatten for any value Flatten produced.
func Inflate(flat record.FlatSchedule) (fsrs.SchedulingInfo, error) {
	due, err := parseTime(flat.CardDue)
	if err != nil {
		return fsrs.SchedulingInfo{}, fmt.Errorf("parse card due: %w", err)
	}
	lastReview, err := parseTime(flat.CardLastReview)
	if err != nil {
		return fsrs.SchedulingInfo{}, fmt.Errorf("parse card last review: %w", err)
	}
	reviewedAt, err := parseTime(flat.ReviewReview)
	if err != nil {
		return fsrs.SchedulingInfo{}, fmt.Errorf("parse review date: %w", err)
	}

	return fsrs.SchedulingInfo{
		Card: fsrs.Card{
			Due:           due,
			Stability:     flat.CardStability,
			Difficulty:    flat.CardDifficulty,
			ElapsedDays:   flat.CardElapsedDays,
			ScheduledDays: flat.CardScheduledDays,
			Reps:          flat.CardReps,
			Lapses:        flat.CardLapses,
			State:         fsrs.State(flat.CardState),
			LastReview:    lastReview,
		},
		ReviewLog: fsrs.ReviewLog{
			Rating:        fsrs.Rating(flat.ReviewRating),
			ScheduledDays: flat.ReviewScheduledDays,
			ElapsedDays:   flat.ReviewElapsedDays,
			Review:        reviewedAt,
			State:         fsrs.State(flat.ReviewState),
		},
	}, nil
}

// IsDue reports whether a chapter with the given schedule block may be
// re-studied at now. An empty block means the chapter was never scheduled
// and is always eligible. Unparseable dates are treated as due: gating a
// user on corrupt data would lock the chapter forever.
func IsDue(flat record.FlatSchedule, now time.Time) bool {
	if flat.Zero() {
		return true
	}
	due, err := parseTime(flat.CardDue)
	if err != nil {
		return true
	}
	return !due.After(now)
}

// DueTime returns the parsed due date. ok is false when the block is
// empty or the stored date cannot be parsed.
func DueTime(flat record.FlatSchedule) (due time.Time, ok bool) {
	if flat.Zero() {
		return time.Time{}, false
	}
	due, err := parseTime(flat.CardDue)
	if err != nil {
		return time.Time{}, false
	}
	return due, true
}

func formatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// Scheduler wraps the FSRS algorithm behind the single operation the
// session-completion path needs.
type Scheduler struct {
	fsrs *fsrs.FSRS
}

// NewScheduler creates a Scheduler with default FSRS parameters.
func NewScheduler() *Scheduler {
	return &Scheduler{fsrs: fsrs.NewFSRS(fsrs.DefaultParam())}
}

// Next produces the card state and review log after rating a chapter at
// now. prev is nil for the first pass over a chapter.
func (s *Scheduler) Next(prev *record.FlatSchedule, rating fsrs.Rating, now time.Time) (record.FlatSchedule, error) {
	card := fsrs.NewCard()
	if prev != nil && !prev.Zero() {
		info, err := Inflate(*prev)
		if err != nil {
			return record.FlatSchedule{}, fmt.Errorf("inflate previous schedule: %w", err)
		}
		card = info.Card
	}
	return Flatten(s.fsrs.Repeat(card, now)[rating]), nil
}
