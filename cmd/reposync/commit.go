package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var commitCmd = &cobra.Command{
	Use:   "commit REPOSITORY",
	Short: "Commit staged changes",
	Long: `Create a commit from the staged changes.

The author is the repository's commit identity; set one first with
'reposync identity REPOSITORY --name NAME --email EMAIL'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		message, _ := cmd.Flags().GetString("message")

		cfg := loadOrCreateConfig()
		repo := resolveRepo(cfg, args[0])

		eng := newEngine(cmd)
		defer eng.Close()

		outcome, err := eng.Commit(cmd.Context(), repo, message)
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("Committed %.8s: %s\n", outcome.CommitID, outcome.Message)
	},
}

func init() {
	commitCmd.Flags().StringP("message", "m", "", "Commit message (required)")
	commitCmd.MarkFlagRequired("message")

	rootCmd.AddCommand(commitCmd)
}
