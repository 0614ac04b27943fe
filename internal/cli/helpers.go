package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/runnerr0/typelog/internal/config"
	"github.com/runnerr0/typelog/internal/identity"
	"github.com/runnerr0/typelog/internal/remote"
	"github.com/runnerr0/typelog/internal/storage"
)

// remoteGateway is the slice of remote.Gateway the sync command needs,
// kept as a local interface so tests can inject an in-memory gateway.
type remoteGateway = remote.Gateway

// loadConfig resolves the config from --config or the default path.
func loadConfig(globals *GlobalFlags) (*config.Config, error) {
	if globals != nil && globals.Config != "" {
		return config.LoadOrCreateAt(globals.Config)
	}
	return config.LoadOrCreate()
}

// openConfiguredStore opens the store at the configured database path.
func openConfiguredStore(globals *GlobalFlags) (*storage.Store, *config.Config, error) {
	cfg, err := loadConfig(globals)
	if err != nil {
		return nil, nil, err
	}
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// buildGateway constructs the remote gateway from config. Remote sync
// must be enabled and a user id configured.
func buildGateway(cfg *config.Config, globals *GlobalFlags) (remoteGateway, error) {
	if !cfg.Remote.Enabled {
		return nil, fmt.Errorf("remote sync is disabled; set remote.enabled in the config")
	}
	if cfg.Remote.UserID == "" {
		return nil, fmt.Errorf("remote sync requires remote.user_id in the config")
	}
	return remote.NewClient(cfg.Remote.BaseURL, &identity.Static{ID: cfg.Remote.UserID}, newLogger(globals, cfg)), nil
}

// newLogger builds the CLI logger; quiet unless --verbose.
func newLogger(globals *GlobalFlags, cfg *config.Config) *log.Logger {
	var out io.Writer = os.Stderr
	logger := log.New(out)
	level := log.WarnLevel
	if globals != nil && globals.Verbose {
		level = log.DebugLevel
	} else if cfg != nil {
		if parsed, err := log.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsed
		}
	}
	logger.SetLevel(level)
	return logger
}

// tableCounts reads the row count of every record table.
func tableCounts(ctx context.Context, store *storage.Store) (map[string]int64, error) {
	counts := make(map[string]int64, len(store.TableNames()))
	for _, name := range store.TableNames() {
		tbl, _ := store.Table(name)
		n, err := tbl.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// formatBytes formats a byte count into a human-readable string.
func formatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatSeconds renders a second count like "2h 3m 4s".
func formatSeconds(total int64) string {
	if total <= 0 {
		return "0s"
	}
	h, rem := total/3600, total%3600
	m, s := rem/60, rem%60

	var parts []string
	if h > 0 {
		parts = append(parts, fmt.Sprintf("%dh", h))
	}
	if m > 0 {
		parts = append(parts, fmt.Sprintf("%dm", m))
	}
	if s > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", s))
	}
	return strings.Join(parts, " ")
}
