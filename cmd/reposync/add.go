package main

import (
	"fmt"

	"reposync/internal/engine"
	"reposync/internal/sandbox"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add REMOTE_URL",
	Short: "Clone a repository and register it for synchronization",
	Long: `Clone a repository over SSH and add it to the registry.

REMOTE_URL is an SSH remote in scp-like or URL form:

  git@github.com:team/notes.git
  ssh://git@git.example.com:2222/team/notes.git

On first contact with a host you are asked to confirm its identity; the
answer is pinned for future connections. The private key for the host
must be stored first with 'reposync key add'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		branch, _ := cmd.Flags().GetString("branch")
		dir, _ := cmd.Flags().GetString("dir")
		noAutoSync, _ := cmd.Flags().GetBool("no-auto-sync")

		cfg := loadOrCreateConfig()
		eng := newEngine(cmd)
		defer eng.Close()

		baseDir := sandbox.ExpandPath(dir)
		if baseDir == "" {
			baseDir = cfg.StorageDir
		}

		repo, err := eng.Clone(cmd.Context(), engine.CloneRequest{
			RemoteURL: args[0],
			Name:      name,
			BaseDir:   baseDir,
			Branch:    branch,
			AutoSync:  !noAutoSync,
		})
		if err != nil {
			fail("%v", err)
		}

		if err := cfg.AddRepository(repo); err != nil {
			fail("cloned to %s but could not register it: %v", repo.LocalPath, err)
		}
		saveConfig(cfg)

		fmt.Printf("Added %s (%s)\n", repo.Name, repo.ID)
		fmt.Printf("   remote: %s\n", repo.RemoteURL)
		fmt.Printf("   local:  %s\n", repo.LocalPath)
		fmt.Printf("   branch: %s\n", repo.TrackedBranch)
	},
}

func init() {
	addCmd.Flags().String("name", "", "Display name for the repository (defaults to the remote name)")
	addCmd.Flags().String("branch", "", "Branch to track (defaults to the remote HEAD)")
	addCmd.Flags().String("dir", "", "Parent directory for the clone (defaults to the storage directory)")
	addCmd.Flags().Bool("no-auto-sync", false, "Exclude this repository from background sync batches")

	rootCmd.AddCommand(addCmd)
}
