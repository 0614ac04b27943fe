package cli

import "github.com/runnerr0/typelog/internal/storage"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// StatusCommand — show record counts, aggregate counters, database size.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	store   *storage.Store // injectable for testing; nil means open configured DB
}

// ChaptersCommand — per-chapter practice detail and due state for a dictionary.
type ChaptersCommand struct {
	Dict     string `long:"dict" description:"Dictionary id (required)"`
	Chapters int    `long:"chapters" description:"Number of chapters in the dictionary" default:"0"`
	Next     bool   `long:"next" description:"Also print the next eligible chapter"`
	Current  int    `long:"current" description:"Current chapter, for --next" default:"-1"`

	globals *GlobalFlags
	version string
	store   *storage.Store
}

// SyncCommand — report per-table sync state, or pull/push explicitly.
type SyncCommand struct {
	Pull  bool   `long:"pull" description:"Overwrite local tables with remote state"`
	Push  bool   `long:"push" description:"Overwrite remote tables with local state"`
	Table string `long:"table" description:"Limit to one table (wordRecords, chapterRecords, reviewRecords)"`

	globals *GlobalFlags
	version string
	store   *storage.Store
	gateway remoteGateway // injectable for testing; nil means build from config
}

// RecomputeCommand — rebuild the aggregate counters from the records.
type RecomputeCommand struct {
	globals *GlobalFlags
	version string
	store   *storage.Store
}

// PurgeCommand — delete ALL typelog data with safety confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   *storage.Store
}
