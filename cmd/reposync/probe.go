package main

import (
	"fmt"

	"reposync/internal/engine"

	"github.com/spf13/cobra"
)

var probeCmd = &cobra.Command{
	Use:   "probe REMOTE_URL",
	Short: "Parse a remote URL and confirm its host is trusted",
	Long: `Parse an SSH remote URL and evaluate trust for its host without
touching the network or any local repository.

With --parse-only the trust check is skipped and only the parsed
endpoint is printed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		parseOnly, _ := cmd.Flags().GetBool("parse-only")

		eng := newEngine(cmd)
		defer eng.Close()

		var probe engine.RemoteProbe
		var err error
		if parseOnly {
			probe, err = eng.ProbeRemote(args[0])
		} else {
			probe, err = eng.PrepareRemote(cmd.Context(), args[0])
		}
		if err != nil {
			fail("%v", err)
		}

		fmt.Printf("   host: %s\n", probe.Host)
		fmt.Printf("   port: %d\n", probe.Port)
		fmt.Printf("   url:  %s\n", probe.NormalizedURL)
		if !parseOnly {
			fmt.Println("Host is trusted.")
		}
	},
}

func init() {
	probeCmd.Flags().Bool("parse-only", false, "Only parse the URL, skipping the trust check")

	rootCmd.AddCommand(probeCmd)
}
