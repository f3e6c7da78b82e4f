// Package main is the entry point for the reposync CLI.
//
// The binary keeps a registry of git repositories cloned over SSH and
// exposes one subcommand per synchronization operation. Startup follows
// this sequence:
//
// 1. Initialize logging (REPOSYNC_DEBUG enables debug output)
// 2. Create a default configuration on first run
// 3. Dispatch to the requested subcommand
// 4. Cancel in-flight git operations on SIGINT/SIGTERM
//
// All state lives in three places: the YAML registry under the user config
// directory, pinned host fingerprints under the user data directory, and
// private keys in the OS credential store.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	Execute(ctx)
}
