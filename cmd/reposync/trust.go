package main

import (
	"fmt"
	"text/tabwriter"

	"reposync/internal/hosttrust"
	"reposync/internal/remote"

	"github.com/spf13/cobra"
)

var trustCmd = &cobra.Command{
	Use:   "trust",
	Short: "Manage pinned host identities",
	Long: `Manage the fingerprints pinned on first contact with each host.

A pinned host is trusted silently on later connections. A host whose
fingerprint changes triggers a warning prompt and, when declined, the
operation fails.`,
}

var trustListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pinned hosts",
	Run: func(cmd *cobra.Command, args []string) {
		store := hosttrust.NewFileStore(hosttrust.DefaultStorePath())
		records, err := store.All()
		if err != nil {
			fail("%v", err)
		}
		if len(records) == 0 {
			fmt.Println("No hosts pinned yet.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "HOST\tPORT\tALGORITHM\tFINGERPRINT\tACCEPTED")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
				rec.Host, rec.Port, rec.Algorithm, rec.Fingerprint, rec.AcceptedAt.Format("2006-01-02"))
		}
		w.Flush()
	},
}

var trustForgetCmd = &cobra.Command{
	Use:   "forget HOST",
	Short: "Forget a pinned host identity",
	Long: `Remove the pinned fingerprint for a host so the next connection
asks for confirmation again.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		store := hosttrust.NewFileStore(hosttrust.DefaultStorePath())
		if err := store.Forget(args[0], port); err != nil {
			fail("%v", err)
		}

		fmt.Printf("Forgot %s:%d\n", args[0], port)
	},
}

func init() {
	trustForgetCmd.Flags().Int("port", remote.DefaultPort, "Port of the pinned endpoint")

	trustCmd.AddCommand(trustListCmd)
	trustCmd.AddCommand(trustForgetCmd)
	rootCmd.AddCommand(trustCmd)
}
