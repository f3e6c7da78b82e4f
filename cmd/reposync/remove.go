package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:     "remove REPOSITORY",
	Aliases: []string{"rm"},
	Short:   "Remove a repository from the registry",
	Long: `Remove a repository from the registry.

The local working tree is left on disk; delete it manually if you no
longer need it.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadOrCreateConfig()
		repo := resolveRepo(cfg, args[0])

		if err := cfg.RemoveRepository(repo.ID); err != nil {
			fail("%v", err)
		}
		saveConfig(cfg)

		fmt.Printf("Removed %s from the registry. Files remain at %s\n", repo.Name, repo.LocalPath)
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
