package main

import (
	"fmt"
	"time"

	"reposync/internal/engine"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status REPOSITORY",
	Short: "Show sync state and local changes for a repository",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadOrCreateConfig()
		repo := resolveRepo(cfg, args[0])

		eng := newEngine(cmd)
		defer eng.Close()

		fmt.Printf("%s (%s)\n", repo.Name, repo.ID)
		fmt.Printf("   remote: %s\n", repo.RemoteURL)
		fmt.Printf("   local:  %s\n", repo.LocalPath)
		fmt.Printf("   branch: %s\n", repo.TrackedBranch)
		fmt.Printf("   state:  %s\n", describeState(repo))
		if repo.LastSyncAt != nil {
			fmt.Printf("   synced: %s\n", time.Unix(*repo.LastSyncAt, 0).Format(time.RFC1123))
		}

		changes, err := eng.ListLocalChanges(cmd.Context(), repo)
		if err != nil {
			fail("%v", err)
		}
		if len(changes) == 0 {
			fmt.Println("\nWorking tree clean.")
			return
		}

		fmt.Printf("\n%d local change(s):\n", len(changes))
		for _, change := range changes {
			fmt.Printf("   %-10s %-9s %s\n", change.Kind, change.Stage, change.Path)
		}
	},
}

// describeState renders the last sync state with its error message and an
// attention marker for states that block the next sync.
func describeState(repo engine.Repository) string {
	state := repo.LastSyncState
	if state == "" {
		state = engine.StateIdle
	}

	text := state.String()
	if repo.LastError != "" {
		text += " (" + repo.LastError + ")"
	}
	if state.NeedsAttention() {
		text += " [needs attention]"
	}
	return text
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
