package main

import (
	"fmt"

	"reposync/internal/engine"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset REPOSITORY",
	Short: "Force the working tree back to the remote state",
	Long: `Fetch the remote and hard-reset the tracked branch to its tip.

Local commits that were never pushed and all uncommitted changes are
lost. This is the escape hatch for a diverged repository.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		cfg := loadOrCreateConfig()
		repo := resolveRepo(cfg, args[0])

		if !force {
			ok, err := confirm(cmd, fmt.Sprintf("Discard local history in %s and match the remote?", repo.Name))
			if err != nil {
				fail("%v", err)
			}
			if !ok {
				fmt.Println("Aborted.")
				return
			}
		}

		eng := newEngine(cmd)
		defer eng.Close()

		result, err := eng.ResetToRemote(cmd.Context(), repo)
		recordSyncOutcome(cfg, repo, result, err)
		saveConfig(cfg)

		if err != nil {
			fail("%v", err)
		}
		if result.State != engine.StateSuccess {
			fail("%s", result.Message)
		}

		fmt.Println(result.Message)
	},
}

func init() {
	resetCmd.Flags().Bool("force", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(resetCmd)
}
