// Package cli is the typelog command line: inspecting the local record
// store, repairing counters, and reconciling with the remote service.
package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Status    *StatusCommand
	Chapters  *ChaptersCommand
	Sync      *SyncCommand
	Recompute *RecomputeCommand
	Purge     *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "typelog"
	parser.LongDescription = "Local-first typing practice records with per-user remote reconciliation."

	cmds := &commands{
		Status:    &StatusCommand{globals: &globals, version: version},
		Chapters:  &ChaptersCommand{globals: &globals, version: version},
		Sync:      &SyncCommand{globals: &globals, version: version},
		Recompute: &RecomputeCommand{globals: &globals, version: version},
		Purge:     &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("status", "Show record counts and aggregate counters", "Show record counts, aggregate counters, and database statistics.", cmds.Status)
	parser.AddCommand("chapters", "Show per-chapter practice detail", "Show per-chapter practice detail and due state for a dictionary.", cmds.Chapters)
	parser.AddCommand("sync", "Reconcile the local store with the remote", "Report per-table sync state, or pull/push tables explicitly.", cmds.Sync)
	parser.AddCommand("recompute", "Rebuild the aggregate counters", "Rebuild the practiceTime and wrongCount counters from the stored records.", cmds.Recompute)
	parser.AddCommand("purge", "Delete ALL typelog data", "Delete ALL typelog data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the typelog CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("typelog %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
