package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/typelog/internal/storage"
)

// Execute implements the go-flags Commander interface for RecomputeCommand.
func (c *RecomputeCommand) Execute(args []string) error {
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

// executeWithStore runs recompute against a provided store (for testing).
func (c *RecomputeCommand) executeWithStore(store *storage.Store) error {
	ctx := context.Background()

	type repair struct {
		Counter string `json:"counter"`
		Before  int64  `json:"before"`
		After   int64  `json:"after"`
	}
	repairs := make([]repair, 0, 2)
	for _, name := range []string{storage.CounterPracticeTime, storage.CounterWrongCount} {
		before, err := store.Counters.Read(ctx, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		after, err := store.Counters.Recompute(ctx, name)
		if err != nil {
			return fmt.Errorf("recompute %s: %w", name, err)
		}
		repairs = append(repairs, repair{Counter: name, Before: before, After: after})
	}

	if c.globals != nil && c.globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(repairs)
	}

	for _, r := range repairs {
		if r.Before == r.After {
			fmt.Printf("%-14s %d (no drift)\n", r.Counter, r.After)
		} else {
			fmt.Printf("%-14s %d -> %d\n", r.Counter, r.Before, r.After)
		}
	}
	return nil
}
