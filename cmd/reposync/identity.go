package main

import (
	"fmt"

	"reposync/internal/engine"

	"github.com/spf13/cobra"
)

var identityCmd = &cobra.Command{
	Use:   "identity REPOSITORY",
	Short: "Show or set the commit identity for a repository",
	Long: `Show or set the name and email recorded on commits.

The identity is stored in the repository's local git configuration and
never applies globally. With no flags the current identity is printed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")

		cfg := loadOrCreateConfig()
		repo := resolveRepo(cfg, args[0])

		eng := newEngine(cmd)
		defer eng.Close()

		if name == "" && email == "" {
			identity, err := eng.LoadCommitIdentity(cmd.Context(), repo)
			if err != nil {
				fail("%v", err)
			}
			if identity == nil {
				fmt.Println("No commit identity is configured.")
				return
			}
			fmt.Printf("%s <%s>\n", identity.Name, identity.Email)
			return
		}

		if name == "" || email == "" {
			fail("both --name and --email are required to change the identity")
		}

		err := eng.SaveCommitIdentity(cmd.Context(), repo, engine.CommitIdentity{Name: name, Email: email})
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("Commit identity set to %s <%s>\n", name, email)
	},
}

func init() {
	identityCmd.Flags().String("name", "", "Author name for commits")
	identityCmd.Flags().String("email", "", "Author email for commits")

	rootCmd.AddCommand(identityCmd)
}
