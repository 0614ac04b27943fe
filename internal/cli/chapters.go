package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/runnerr0/typelog/internal/record"
	"github.com/runnerr0/typelog/internal/schedule"
	"github.com/runnerr0/typelog/internal/stats"
	"github.com/runnerr0/typelog/internal/storage"
)

// chapterJSON is one row of the chapters command's JSON output.
type chapterJSON struct {
	Chapter        int     `json:"chapter"`
	Attempted      bool    `json:"attempted"`
	WrongWordCount float64 `json:"wrong_word_count,omitempty"`
	WrongInput     float64 `json:"wrong_input_count,omitempty"`
	Due            string  `json:"due,omitempty"`
	DueNow         bool    `json:"due_now"`
}

// Execute implements the go-flags Commander interface for ChaptersCommand.
func (c *ChaptersCommand) Execute(args []string) error {
	if c.Dict == "" {
		return fmt.Errorf("--dict is required")
	}
	if c.Chapters <= 0 {
		return fmt.Errorf("--chapters must be a positive chapter count")
	}

	store := c.store
	if store == nil {
		opened, _, err := openConfiguredStore(c.globals)
		if err != nil {
			return err
		}
		defer opened.Close()
		store = opened
	}
	return c.executeWithStore(store, time.Now())
}

// executeWithStore runs chapters against a provided store (for testing).
func (c *ChaptersCommand) executeWithStore(store *storage.Store, now time.Time) error {
	ctx := context.Background()
	agg := stats.NewAggregator(store)

	dict := record.Dictionary{ID: c.Dict, ChapterCount: c.Chapters}
	details, err := agg.AllChapterDetail(ctx, dict)
	if err != nil {
		return err
	}

	next := -1
	if c.Next {
		chapter, err := stats.NextEligibleChapter(details, c.Current, now)
		switch {
		case errors.Is(err, stats.ErrNothingDue):
			next = -1
		case err != nil:
			return err
		default:
			next = chapter
		}
	}

	if c.globals != nil && c.globals.JSON {
		return c.printJSON(details, next, now)
	}
	return c.printHuman(details, next, now)
}

func (c *ChaptersCommand) printHuman(details []stats.ChapterDetail, next int, now time.Time) error {
	fmt.Printf("Dictionary %s (%d chapters)\n", c.Dict, c.Chapters)
	fmt.Println()
	for _, d := range details {
		if !d.Attempted() {
			fmt.Printf("  chapter %-4d unattempted\n", d.Chapter)
			continue
		}
		state := "not due"
		if schedule.IsDue(d.Stats.Schedule, now) {
			state = "due"
		}
		due, _ := schedule.DueTime(d.Stats.Schedule)
		fmt.Printf("  chapter %-4d wrong words %.0f, wrong inputs %.0f, %s (due %s)\n",
			d.Chapter, d.Stats.AvgWrongWordCount, d.Stats.AvgWrongInputCount,
			state, due.Local().Format("2006-01-02 15:04"))
	}
	if c.Next {
		fmt.Println()
		if next < 0 {
			fmt.Println("Next: nothing due")
		} else {
			fmt.Printf("Next: chapter %d\n", next)
		}
	}
	return nil
}

func (c *ChaptersCommand) printJSON(details []stats.ChapterDetail, next int, now time.Time) error {
	rows := make([]chapterJSON, len(details))
	for i, d := range details {
		row := chapterJSON{Chapter: d.Chapter, DueNow: true}
		if d.Attempted() {
			row.Attempted = true
			row.WrongWordCount = d.Stats.AvgWrongWordCount
			row.WrongInput = d.Stats.AvgWrongInputCount
			row.DueNow = schedule.IsDue(d.Stats.Schedule, now)
			if due, ok := schedule.DueTime(d.Stats.Schedule); ok {
				row.Due = due.UTC().Format(time.RFC3339)
			}
		}
		rows[i] = row
	}

	out := struct {
		Dict     string        `json:"dict"`
		Chapters []chapterJSON `json:"chapters"`
		Next     *int          `json:"next,omitempty"`
	}{Dict: c.Dict, Chapters: rows}
	if c.Next && next >= 0 {
		out.Next = &next
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
