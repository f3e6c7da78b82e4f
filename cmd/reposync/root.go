package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"reposync/internal/config"
	"reposync/internal/credentials"
	"reposync/internal/engine"
	"reposync/internal/hosttrust"
	"reposync/internal/logging"
	"reposync/internal/sandbox"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reposync",
	Short: "Keep local clones of SSH git repositories in sync",
	Long: `reposync keeps a registry of git repositories cloned over SSH and
synchronizes each local working tree with its remote.

Remote hosts are pinned on first use: the first connection to a host asks
for confirmation and later connections are checked against the stored
fingerprint. Private keys live in the OS credential store and are written
out only as ephemeral files for the duration of a single operation.

Pulls are fast-forward only. When local and remote history diverge the
repository is marked blocked, and 'reposync reset' can force it back to
the remote state.`,
	SilenceUsage: true,
}

// Execute runs the root command. ctx cancels any in-flight git operation.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// fail prints an error to stderr and exits. Command bodies use it for
// conditions that are not cobra usage errors.
func fail(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

// loadOrCreateConfig returns the persisted configuration, creating a
// default one on first run.
func loadOrCreateConfig() *config.Config {
	if config.IsFirstRun() {
		cfg, err := config.CreateNewConfig("")
		if err != nil {
			fail("first-time setup failed: %v", err)
		}
		fmt.Printf("Created configuration with storage directory %s\n", cfg.StorageDir)
		return cfg
	}

	cfg, err := config.Load()
	if err != nil {
		fail("%v", err)
	}
	return cfg
}

// saveConfig persists the registry, exiting on failure so a command never
// reports success with an unsaved handle.
func saveConfig(cfg *config.Config) {
	if err := cfg.Save(); err != nil {
		fail("failed to save configuration: %v", err)
	}
}

// newEngine assembles the synchronization engine with the OS keyring, the
// pinned-host store and an interactive trust prompt.
func newEngine(cmd *cobra.Command) *engine.Engine {
	store := hosttrust.NewFileStore(hosttrust.DefaultStorePath())
	trust := hosttrust.NewTOFU(store, terminalTrustPrompt(cmd), logging.GetDefault())

	eng, err := engine.New(engine.Options{
		Trust:       trust,
		Credentials: credentials.NewKeyringProvider(),
		Sandbox:     sandbox.NewScope(),
	})
	if err != nil {
		fail("%v", err)
	}
	return eng
}

// terminalTrustPrompt asks the user to confirm a host fingerprint on
// stdin. A changed fingerprint is called out before the question.
func terminalTrustPrompt(cmd *cobra.Command) hosttrust.PromptFunc {
	return func(ctx context.Context, p hosttrust.Prompt) (bool, error) {
		out := cmd.OutOrStdout()
		if p.Known != nil {
			fmt.Fprintf(out, "WARNING: the identity of %s:%d has changed.\n", p.Host, p.Port)
			fmt.Fprintf(out, "   pinned:    %s (accepted %s)\n", p.Known.Fingerprint, p.Known.AcceptedAt.Format("2006-01-02"))
			fmt.Fprintf(out, "   presented: %s\n", p.Fingerprint)
			fmt.Fprintln(out, "This may indicate a man-in-the-middle attack.")
		} else {
			fmt.Fprintf(out, "The authenticity of host %s:%d can't be established.\n", p.Host, p.Port)
			fmt.Fprintf(out, "   fingerprint: %s\n", p.Fingerprint)
		}
		return confirm(cmd, "Trust this host?")
	}
}

// confirm reads a yes/no answer from stdin. Anything but y/yes declines.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)

	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// resolveRepo finds a registered repository by ID or name, exiting with a
// hint when the reference is unknown.
func resolveRepo(cfg *config.Config, ref string) engine.Repository {
	repo, ok := cfg.ResolveRepository(ref)
	if !ok {
		fail("no repository named %q is registered (try 'reposync list')", ref)
	}
	return repo
}

// recordSyncOutcome writes the outcome of a sync-shaped operation back to
// the repository handle. The caller saves the config afterwards.
func recordSyncOutcome(cfg *config.Config, repo engine.Repository, result engine.SyncResult, opErr error) {
	now := time.Now().Unix()
	repo.LastSyncAt = &now

	switch {
	case opErr != nil:
		repo.LastSyncState = engine.StateForError(opErr)
		repo.LastError = engine.ErrorMessage(opErr)
	case result.State == engine.StateSuccess || result.State == engine.StateNetworkDeferred:
		repo.LastSyncState = result.State
		repo.LastError = ""
	default:
		repo.LastSyncState = result.State
		repo.LastError = result.Message
	}

	if err := cfg.UpdateRepository(repo); err != nil {
		logging.Warn("Failed to update repository handle", "id", repo.ID, "error", err)
	}
}
