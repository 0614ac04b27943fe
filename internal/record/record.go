// Package record defines the persisted record types for typing practice:
// per-word attempts, per-chapter passes with their spaced-repetition
// scheduling state, and in-progress review sessions.
package record

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ChapterIndex locates a word inside its dictionary, or is NoChapter for
// practice outside a chapter context, e.g. a review or error-book
// session. NoChapter is JSON null on the wire.
type ChapterIndex int

// NoChapter marks practice outside a chapter.
const NoChapter ChapterIndex = -1

func (c ChapterIndex) MarshalJSON() ([]byte, error) {
	if c == NoChapter {
		return []byte("null"), nil
	}
	return json.Marshal(int(c))
}

func (c *ChapterIndex) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = NoChapter
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = ChapterIndex(n)
	return nil
}

// LetterMistakes maps a letter index inside a word to the characters that
// were wrongly typed at that position. Only positions with at least one
// mistake are present.
type LetterMistakes map[int][]string

// WordRecord is one practice attempt on a single word. Records are
// immutable after creation; the store assigns their ids.
type WordRecord struct {
	ID        int64  `json:"id"`
	Word      string `json:"word"`
	TimeStamp int64  `json:"timeStamp"`
	// Dict is the source word-list key, or a synthetic context name for
	// practice outside a normal dictionary.
	Dict string `json:"dict"`
	// Chapter is NoChapter when the word was practiced outside a chapter.
	Chapter ChapterIndex `json:"chapter"`
	// Timing holds millisecond deltas between consecutive correct letter
	// inputs, so len(Timing) == correct letters - 1.
	Timing []int `json:"timing"`
	// WrongCount counts error events, not keystrokes: an error clears the
	// whole input but is recorded once per reset.
	WrongCount int            `json:"wrongCount"`
	Mistakes   LetterMistakes `json:"mistakes"`
}

// NewWordRecord builds a record for a completed word, stamping it with the
// current UTC unix time. letterTimes are the absolute input times of each
// correct letter; the stored timing is their pairwise deltas.
func NewWordRecord(word, dict string, chapter ChapterIndex, letterTimes []int64, wrongCount int, mistakes LetterMistakes) *WordRecord {
	timing := make([]int, 0, max(0, len(letterTimes)-1))
	for i := 1; i < len(letterTimes); i++ {
		timing = append(timing, int(letterTimes[i]-letterTimes[i-1]))
	}
	if mistakes == nil {
		mistakes = LetterMistakes{}
	}
	return &WordRecord{
		Word:       word,
		TimeStamp:  time.Now().UTC().Unix(),
		Dict:       dict,
		Chapter:    chapter,
		Timing:     timing,
		WrongCount: wrongCount,
		Mistakes:   mistakes,
	}
}

// TotalTime returns the summed typing time for the word in milliseconds.
func (w *WordRecord) TotalTime() int {
	total := 0
	for _, d := range w.Timing {
		total += d
	}
	return total
}

// FlatSchedule is the flattened, serializable form of an FSRS card plus its
// most recent review log, stored inline on a ChapterRecord. Dates are kept
// as RFC 3339 strings at second precision.
type FlatSchedule struct {
	CardDue           string  `json:"card_due"`
	CardStability     float64 `json:"card_stability"`
	CardDifficulty    float64 `json:"card_difficulty"`
	CardElapsedDays   uint64  `json:"card_elapsed_days"`
	CardScheduledDays uint64  `json:"card_scheduled_days"`
	CardReps          uint64  `json:"card_reps"`
	CardLapses        uint64  `json:"card_lapses"`
	CardState         int8    `json:"card_state"`
	CardLastReview    string  `json:"card_last_review"`

	ReviewRating        int8   `json:"review_rating"`
	ReviewScheduledDays uint64 `json:"review_scheduled_days"`
	ReviewElapsedDays   uint64 `json:"review_elapsed_days"`
	ReviewReview        string `json:"review_review"`
	ReviewState         int8   `json:"review_state"`
}

// Zero reports whether the schedule block has never been populated.
func (f FlatSchedule) Zero() bool {
	return f.CardDue == ""
}

// ChapterRecord is one practice pass over one chapter of one dictionary,
// merged with its current scheduling state. There is at most one live
// record per (dict, chapter) pair; repeated passes merge into it.
type ChapterRecord struct {
	// ID is the deterministic composite key dict + "_" + chapter.
	ID        string `json:"id"`
	Dict      string `json:"dict"`
	Chapter   int    `json:"chapter"`
	TimeStamp int64  `json:"timeStamp"`
	// Time is seconds spent, accumulated across passes.
	Time int `json:"time"`
	// CorrectCount and WrongCount are keystroke-level, from the latest pass.
	CorrectCount int `json:"correctCount"`
	WrongCount   int `json:"wrongCount"`
	// WordCount may exceed the chapter length when loop/repeat is used.
	WordCount int `json:"wordCount"`
	// CorrectWordIndexes are chapter word-list indexes typed with zero
	// errors on the first and only pass.
	CorrectWordIndexes []int `json:"correctWordIndexes"`
	// WordNumber is the total distinct words in the chapter.
	WordNumber    int     `json:"wordNumber"`
	WordRecordIDs []int64 `json:"wordRecordIds"`

	FlatSchedule
}

// ChapterID builds the composite chapter-record key.
func ChapterID(dict string, chapter int) string {
	return fmt.Sprintf("%s_%d", dict, chapter)
}

// NewChapterRecord builds a record for a freshly completed pass. The
// schedule block must be filled in by the caller before saving.
func NewChapterRecord(dict string, chapter, timeSec, correctCount, wrongCount, wordCount int, correctWordIndexes []int, wordNumber int, wordRecordIDs []int64, schedule FlatSchedule) *ChapterRecord {
	return &ChapterRecord{
		ID:                 ChapterID(dict, chapter),
		Dict:               dict,
		Chapter:            chapter,
		TimeStamp:          time.Now().UTC().Unix(),
		Time:               timeSec,
		CorrectCount:       correctCount,
		WrongCount:         wrongCount,
		WordCount:          wordCount,
		CorrectWordIndexes: correctWordIndexes,
		WordNumber:         wordNumber,
		WordRecordIDs:      wordRecordIDs,
		FlatSchedule:       schedule,
	}
}

// WPM returns rounded words per minute for the pass, or 0 for a zero time.
func (c *ChapterRecord) WPM() int {
	if c.Time <= 0 {
		return 0
	}
	return int(math.Round(float64(c.WordCount) / float64(c.Time) * 60))
}

// InputAccuracy returns the keystroke accuracy percentage.
func (c *ChapterRecord) InputAccuracy() int {
	total := c.CorrectCount + c.WrongCount
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(c.CorrectCount) / float64(total) * 100))
}

// WordAccuracy returns the percentage of chapter words typed without error.
func (c *ChapterRecord) WordAccuracy() int {
	if c.WordNumber <= 0 {
		return 0
	}
	return int(math.Round(float64(len(c.CorrectWordIndexes)) / float64(c.WordNumber) * 100))
}

// WrongWordCount returns how many chapter words had at least one error.
func (c *ChapterRecord) WrongWordCount() int {
	n := c.WordNumber - len(c.CorrectWordIndexes)
	if n < 0 {
		return 0
	}
	return n
}

// ReviewWord is one entry in a review queue.
type ReviewWord struct {
	Name  string `json:"name"`
	Trans string `json:"trans,omitempty"`
}

// ReviewRecord is an in-progress spaced-review queue snapshot. The words
// list keeps its order and may contain duplicates.
type ReviewRecord struct {
	ID   int64  `json:"id"`
	Dict string `json:"dict"`
	// Index is the progress cursor into Words.
	Index      int          `json:"index"`
	CreateTime int64        `json:"createTime"`
	IsFinished bool         `json:"isFinished"`
	Words      []ReviewWord `json:"words"`
}

// NewReviewRecord starts a review session over the given queue.
func NewReviewRecord(dict string, words []ReviewWord) *ReviewRecord {
	return &ReviewRecord{
		Dict:       dict,
		Index:      0,
		CreateTime: time.Now().UTC().Unix(),
		IsFinished: false,
		Words:      words,
	}
}

// Dictionary is the metadata the store needs about a word list. Fetching
// and parsing the list itself happens elsewhere.
type Dictionary struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	ChapterCount     int    `json:"chapterCount"`
	LanguageCategory string `json:"languageCategory"`
}
