package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/runnerr0/typelog/internal/storage"
	syncpkg "github.com/runnerr0/typelog/internal/sync"
)

// syncTableJSON is one row of the sync command's JSON output.
type syncTableJSON struct {
	Table  string `json:"table"`
	State  string `json:"state"`
	Local  int64  `json:"local"`
	Remote int64  `json:"remote"`
}

// Execute implements the go-flags Commander interface for SyncCommand.
func (c *SyncCommand) Execute(args []string) error {
	if c.Pull && c.Push {
		return fmt.Errorf("--pull and --push are mutually exclusive")
	}

	store := c.store
	gw := c.gateway
	if store == nil {
		opened, cfg, err := openConfiguredStore(c.globals)
		if err != nil {
			return err
		}
		defer opened.Close()
		store = opened
		if gw == nil {
			gw, err = buildGateway(cfg, c.globals)
			if err != nil {
				return err
			}
		}
	}
	if gw == nil {
		return fmt.Errorf("no remote gateway configured")
	}
	return c.executeWithStore(store, gw)
}

// executeWithStore runs sync against a provided store and gateway (for testing).
func (c *SyncCommand) executeWithStore(store *storage.Store, gw remoteGateway) error {
	ctx := context.Background()

	if c.Table != "" {
		if _, ok := store.Table(c.Table); !ok {
			return fmt.Errorf("unknown table %q", c.Table)
		}
	}
	tables := store.TableNames()
	if c.Table != "" {
		tables = []string{c.Table}
	}

	rec := syncpkg.NewReconciler(store, gw, newLogger(c.globals, nil))

	switch {
	case c.Pull:
		for _, name := range tables {
			if err := rec.Pull(ctx, name); err != nil {
				return err
			}
			if !c.jsonOut() {
				fmt.Printf("pulled %s\n", name)
			}
		}
	case c.Push:
		for _, name := range tables {
			if err := rec.Push(ctx, name); err != nil {
				return err
			}
			if !c.jsonOut() {
				fmt.Printf("pushed %s\n", name)
			}
		}
	}

	return c.printStates(ctx, store, gw, rec, tables)
}

func (c *SyncCommand) jsonOut() bool {
	return c.globals != nil && c.globals.JSON
}

// printStates rechecks the reconciler and reports its per-table state;
// the counts are repeated only for display.
func (c *SyncCommand) printStates(ctx context.Context, store *storage.Store, gw remoteGateway, rec *syncpkg.Reconciler, tables []string) error {
	if err := rec.Recheck(ctx); err != nil {
		return err
	}
	rows := make([]syncTableJSON, 0, len(tables))
	for _, name := range tables {
		tbl, _ := store.Table(name)
		local, err := tbl.Count(ctx)
		if err != nil {
			return err
		}
		remoteCount, err := gw.Count(ctx, name)
		if err != nil {
			return fmt.Errorf("remote count %s: %w", name, err)
		}
		rows = append(rows, syncTableJSON{
			Table: name, State: rec.State(name).String(), Local: local, Remote: remoteCount,
		})
	}

	if c.jsonOut() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	fmt.Println()
	for _, row := range rows {
		fmt.Printf("  %-16s %-12s local %d, remote %d\n", row.Table, row.State, row.Local, row.Remote)
	}
	return nil
}
