package main

import (
	"fmt"
	"text/tabwriter"

	"reposync/internal/engine"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadOrCreateConfig()
		if len(cfg.Repositories) == 0 {
			fmt.Println("No repositories registered. Add one with 'reposync add'.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tID\tBRANCH\tAUTO\tSTATE\tPATH")
		for _, repo := range cfg.Repositories {
			auto := "yes"
			if !repo.AutoSync {
				auto = "no"
			}
			state := repo.LastSyncState
			if state == "" {
				state = engine.StateIdle
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				repo.Name, repo.ID, repo.TrackedBranch, auto, state, repo.LocalPath)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
