package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pushCmd = &cobra.Command{
	Use:   "push REPOSITORY",
	Short: "Push local commits to the remote",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadOrCreateConfig()
		repo := resolveRepo(cfg, args[0])

		eng := newEngine(cmd)
		defer eng.Close()

		outcome, err := eng.Push(cmd.Context(), repo)
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("Pushed %s to %s/%s\n", repo.Name, outcome.RemoteName, outcome.BranchName)
	},
}

func init() {
	rootCmd.AddCommand(pushCmd)
}
