package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var discardCmd = &cobra.Command{
	Use:   "discard REPOSITORY",
	Short: "Discard all local changes in the working tree",
	Long: `Discard every uncommitted change in the repository's working tree.

Tracked files are restored to the last commit and untracked files are
deleted. This cannot be undone.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		cfg := loadOrCreateConfig()
		repo := resolveRepo(cfg, args[0])

		if !force {
			ok, err := confirm(cmd, fmt.Sprintf("Permanently discard all local changes in %s?", repo.Name))
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

		if err := eng.DiscardLocalChanges(cmd.Context(), repo); err != nil {
			fail("%v", err)
		}

		fmt.Println("Local changes discarded.")
	},
}

func init() {
	discardCmd.Flags().Bool("force", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(discardCmd)
}
