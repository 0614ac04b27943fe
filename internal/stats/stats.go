// Package stats derives display-ready chapter and dictionary statistics
// from stored records, without handing raw records to consumers.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/runnerr0/typelog/internal/record"
	"github.com/runnerr0/typelog/internal/schedule"
	"github.com/runnerr0/typelog/internal/storage"
)

// ErrNothingDue means every chapter has been attempted and none is due
// for re-study yet.
var ErrNothingDue = errors.New("no chapter is due for study")

// ChapterStats summarizes one chapter's practice history.
type ChapterStats struct {
	ExerciseCount      int
	AvgWrongWordCount  float64
	AvgWrongInputCount float64
	Schedule           record.FlatSchedule
}

// ChapterDetail pairs a chapter index with its stats. Stats is nil for
// an unattempted chapter.
type ChapterDetail struct {
	Chapter int
	Stats   *ChapterStats
}

// Attempted reports whether the chapter has a stored record.
func (d ChapterDetail) Attempted() bool { return d.Stats != nil }

// DictStats summarizes a whole dictionary.
type DictStats struct {
	ExercisedChapterCount int
	TotalPracticeTime     int
	TotalWrongCount       int
	WordRecordCount       int
}

// ErrorWordSummary groups the practice attempts in which a word was
// mistyped.
type ErrorWordSummary struct {
	Word            string
	ErrorCount      int
	TotalWrongCount int
	LatestTimeStamp int64
}

// Aggregator reads records and produces statistics.
type Aggregator struct {
	store *storage.Store
}

// NewAggregator builds an Aggregator over the given store.
func NewAggregator(store *storage.Store) *Aggregator {
	return &Aggregator{store: store}
}

// ChapterStats computes the stats for one chapter. An unattempted
// chapter yields the zero value with ExerciseCount 0, not an error.
func (a *Aggregator) ChapterStats(ctx context.Context, dict string, chapter int) (ChapterStats, error) {
	rec, err := a.store.Chapters.Get(ctx, record.ChapterID(dict, chapter))
	if errors.Is(err, storage.ErrNotFound) {
		return ChapterStats{}, nil
	}
	if err != nil {
		return ChapterStats{}, err
	}
	return statsOf(rec), nil
}

func statsOf(rec *record.ChapterRecord) ChapterStats {
	return ChapterStats{
		ExerciseCount:      1,
		AvgWrongWordCount:  float64(rec.WrongWordCount()),
		AvgWrongInputCount: float64(rec.WrongCount),
		Schedule:           rec.FlatSchedule,
	}
}

// AllChapterDetail covers every chapter index of the dictionary, from 0
// to ChapterCount-1. Attempted chapters come first, ordered by due date
// ascending, then unattempted chapters in index order.
func (a *Aggregator) AllChapterDetail(ctx context.Context, dict record.Dictionary) ([]ChapterDetail, error) {
	recs, err := a.store.Chapters.Find(ctx, storage.Cond{Col: "dict", Val: dict.ID})
	if err != nil {
		return nil, fmt.Errorf("chapter detail for %s: %w", dict.ID, err)
	}

	byChapter := make(map[int]*record.ChapterRecord, len(recs))
	for i := range recs {
		rec := &recs[i]
		if rec.Chapter >= 0 && rec.Chapter < dict.ChapterCount {
			byChapter[rec.Chapter] = rec
		}
	}

	attempted := make([]ChapterDetail, 0, len(byChapter))
	unattempted := make([]ChapterDetail, 0, dict.ChapterCount-len(byChapter))
	for chapter := 0; chapter < dict.ChapterCount; chapter++ {
		if rec, ok := byChapter[chapter]; ok {
			s := statsOf(rec)
			attempted = append(attempted, ChapterDetail{Chapter: chapter, Stats: &s})
		} else {
			unattempted = append(unattempted, ChapterDetail{Chapter: chapter})
		}
	}

	sort.SliceStable(attempted, func(i, j int) bool {
		return dueBefore(attempted[i].Stats.Schedule, attempted[j].Stats.Schedule)
	})
	return append(attempted, unattempted...), nil
}

// dueBefore orders schedule blocks by due date ascending. Blocks with
// no parseable due date sort first: they are immediately studiable.
func dueBefore(a, b record.FlatSchedule) bool {
	da, aok := schedule.DueTime(a)
	db, bok := schedule.DueTime(b)
	switch {
	case !aok:
		return bok
	case !bok:
		return false
	default:
		return da.Before(db)
	}
}

// NextEligibleChapter scans details starting after current, wrapping
// around, and returns the first chapter that is unattempted or due at
// now. It returns ErrNothingDue when every chapter is attempted and
// none has come due.
func NextEligibleChapter(details []ChapterDetail, current int, now time.Time) (int, error) {
	if len(details) == 0 {
		return 0, ErrNothingDue
	}
	start := 0
	for i, d := range details {
		if d.Chapter == current {
			start = i + 1
			break
		}
	}
	for off := 0; off < len(details); off++ {
		d := details[(start+off)%len(details)]
		if d.Chapter == current {
			continue
		}
		if !d.Attempted() || schedule.IsDue(d.Stats.Schedule, now) {
			return d.Chapter, nil
		}
	}
	return 0, ErrNothingDue
}

// DictStats totals a dictionary's practice history.
func (a *Aggregator) DictStats(ctx context.Context, dict record.Dictionary) (DictStats, error) {
	chapters, err := a.store.Chapters.Find(ctx, storage.Cond{Col: "dict", Val: dict.ID})
	if err != nil {
		return DictStats{}, fmt.Errorf("dict stats for %s: %w", dict.ID, err)
	}
	words, err := a.store.Words.Find(ctx, storage.Cond{Col: "dict", Val: dict.ID})
	if err != nil {
		return DictStats{}, fmt.Errorf("dict stats for %s: %w", dict.ID, err)
	}

	out := DictStats{WordRecordCount: len(words)}
	for _, c := range chapters {
		out.ExercisedChapterCount++
		out.TotalPracticeTime += c.Time
		out.TotalWrongCount += c.WrongCount
	}
	return out, nil
}

// ErrorWords groups the dictionary's mistyped practice attempts by
// word, most recent first.
func (a *Aggregator) ErrorWords(ctx context.Context, dict string) ([]ErrorWordSummary, error) {
	words, err := a.store.Words.Find(ctx, storage.Cond{Col: "dict", Val: dict})
	if err != nil {
		return nil, fmt.Errorf("error words for %s: %w", dict, err)
	}

	byWord := make(map[string]*ErrorWordSummary)
	order := []string{}
	for _, w := range words {
		if w.WrongCount == 0 {
			continue
		}
		s, ok := byWord[w.Word]
		if !ok {
			s = &ErrorWordSummary{Word: w.Word}
			byWord[w.Word] = s
			order = append(order, w.Word)
		}
		s.ErrorCount++
		s.TotalWrongCount += w.WrongCount
		if w.TimeStamp > s.LatestTimeStamp {
			s.LatestTimeStamp = w.TimeStamp
		}
	}

	out := make([]ErrorWordSummary, 0, len(order))
	for _, word := range order {
		out = append(out, *byWord[word])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LatestTimeStamp > out[j].LatestTimeStamp
	})
	return out, nil
}

// RevisionWordCount is the number of distinct words with at least one
// mistyped attempt, the size of a would-be revision queue.
func (a *Aggregator) RevisionWordCount(ctx context.Context, dict string) (int, error) {
	grouped, err := a.ErrorWords(ctx, dict)
	if err != nil {
		return 0, err
	}
	return len(grouped), nil
}

// DaysSinceFirstRecord reports how many whole days have passed since
// the earliest word record, 0 when none exist.
func (a *Aggregator) DaysSinceFirstRecord(ctx context.Context, now time.Time) (int, error) {
	words, err := a.store.Words.All(ctx)
	if err != nil {
		return 0, err
	}
	if len(words) == 0 {
		return 0, nil
	}
	first := words[0].TimeStamp
	for _, w := range words[1:] {
		if w.TimeStamp < first {
			first = w.TimeStamp
		}
	}
	days := int(now.Unix()-first) / 86400
	if days < 0 {
		days = 0
	}
	return days, nil
}
