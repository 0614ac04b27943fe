package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/typelog/internal/storage"
)

// statusJSON is the JSON output structure for the status command.
type statusJSON struct {
	Version           string           `json:"version"`
	DatabaseSizeBytes int64            `json:"database_size_bytes"`
	Tables            map[string]int64 `json:"tables"`
	PracticeTimeSec   int64            `json:"practice_time_sec"`
	WrongCount        int64            `json:"wrong_count"`
}

// Execute implements the go-flags Commander interface for StatusCommand.
func (c *StatusCommand) Execute(args []string) error {
	store := c.store
	if store == nil {
		opened, _, err := openConfiguredStore(c.globals)
		if err != nil {
			return err
		}
		defer opened.Close()
		store = opened
	}
	return c.executeWithStore(store)
}

// executeWithStore runs status against a provided store (for testing).
func (c *StatusCommand) executeWithStore(store *storage.Store) error {
	ctx := context.Background()

	counts, err := tableCounts(ctx, store)
	if err != nil {
		return err
	}
	practiceTime, err := store.Counters.Read(ctx, storage.CounterPracticeTime)
	if err != nil {
		return fmt.Errorf("read practiceTime: %w", err)
	}
	wrongCount, err := store.Counters.Read(ctx, storage.CounterWrongCount)
	if err != nil {
		return fmt.Errorf("read wrongCount: %w", err)
	}
	dbSize := databaseSize(store.DB())

	if c.globals != nil && c.globals.JSON {
		out := statusJSON{
			Version:           c.version,
			DatabaseSizeBytes: dbSize,
			Tables:            counts,
			PracticeTimeSec:   practiceTime,
			WrongCount:        wrongCount,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Println("Typelog Status")
	fmt.Println("==============")
	fmt.Printf("Version:        %s\n", c.version)
	fmt.Printf("Database size:  %s\n", formatBytes(dbSize))
	fmt.Println()
	fmt.Println("Records:")
	for _, name := range store.TableNames() {
		fmt.Printf("  %-16s %d\n", name, counts[name])
	}
	fmt.Println()
	fmt.Printf("Practice time:  %s\n", formatSeconds(practiceTime))
	fmt.Printf("Wrong count:    %d\n", wrongCount)
	return nil
}

// databaseSize returns the database size in bytes via SQLite pragmas,
// which also works for in-memory databases.
func databaseSize(db *sql.DB) int64 {
	var pageCount, pageSize int64
	if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}
