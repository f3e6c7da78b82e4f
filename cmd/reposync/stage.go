package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stageCmd = &cobra.Command{
	Use:   "stage REPOSITORY [PATH...]",
	Short: "Stage local changes for commit",
	Long: `Stage changed files for the next commit.

Paths are relative to the repository root. Deleted files are staged as
removals. With --all every local change is staged.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")

		cfg := loadOrCreateConfig()
		repo := resolveRepo(cfg, args[0])
		paths := args[1:]

		if all && len(paths) > 0 {
			fail("pass either --all or explicit paths, not both")
		}
		if !all && len(paths) == 0 {
			fail("name at least one path or pass --all")
		}

		eng := newEngine(cmd)
		defer eng.Close()

		var err error
		if all {
			err = eng.StageAll(cmd.Context(), repo)
		} else {
			err = eng.Stage(cmd.Context(), repo, paths)
		}
		if err != nil {
			fail("%v", err)
		}

		if all {
			fmt.Println("Staged all local changes.")
		} else {
			fmt.Printf("Staged %d path(s).\n", len(paths))
		}
	},
}

func init() {
	stageCmd.Flags().Bool("all", false, "Stage every local change")

	rootCmd.AddCommand(stageCmd)
}
