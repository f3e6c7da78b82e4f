package main

import (
	"fmt"

	"reposync/internal/engine"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [REPOSITORY...]",
	Short: "Fast-forward local clones from their remotes",
	Long: `Fetch from each repository's remote and fast-forward the tracked
branch. A repository with uncommitted changes or diverged history is left
untouched and reported as blocked.

With --all every registered repository is synced. --background marks the
run as scheduler-initiated: repositories excluded from auto sync are
skipped, and a working tree containing a ` + engine.DeferMarkerName + ` file
defers the network round trip.`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		background, _ := cmd.Flags().GetBool("background")

		cfg := loadOrCreateConfig()
		if !all && len(args) == 0 {
			fail("name at least one repository or pass --all")
		}

		trigger := engine.TriggerManual
		if background {
			trigger = engine.TriggerBackground
		}

		var repos []engine.Repository
		if all {
			for _, repo := range cfg.Repositories {
				if background && !repo.AutoSync {
					continue
				}
				repos = append(repos, repo)
			}
			if len(repos) == 0 {
				fmt.Println("No repositories to sync.")
				return
			}
		} else {
			for _, ref := range args {
				repos = append(repos, resolveRepo(cfg, ref))
			}
		}

		eng := newEngine(cmd)
		defer eng.Close()

		outcomes := eng.SyncAll(cmd.Context(), repos, trigger)

		failed := 0
		for i, outcome := range outcomes {
			marker := "ok"
			switch {
			case outcome.Err != nil:
				failed++
				marker = "failed"
			case outcome.Result.State == engine.StateNetworkDeferred:
				marker = "skipped"
			case outcome.Result.State != engine.StateSuccess:
				failed++
				marker = "failed"
			}
			fmt.Printf("%-8s %s: %s\n", marker, outcome.RepositoryName, outcome.Message())

			recordSyncOutcome(cfg, repos[i], outcome.Result, outcome.Err)
		}
		saveConfig(cfg)

		if failed > 0 {
			fail("%d of %d repositories did not sync", failed, len(outcomes))
		}
	},
}

func init() {
	syncCmd.Flags().Bool("all", false, "Sync every registered repository")
	syncCmd.Flags().Bool("background", false, "Run as a background batch (honors auto-sync and defer markers)")

	rootCmd.AddCommand(syncCmd)
}
