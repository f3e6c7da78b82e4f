// Package engine orchestrates git synchronization for registered
// repositories: clone, fast-forward-only pull, stage/commit/push, discard,
// and reset-to-remote over SSH.
//
// Every operation composes the same collaborators. The host trust evaluator
// runs before any network use, once per call, because trust state can change
// between calls. The credential provider resolves key material fresh per
// call, the key encoder materializes it into an ephemeral file for the SSH
// transport, and the file is removed on every exit path. Mutating operations
// serialize per repository through a lock table; read-only operations do
// not, racing benignly with concurrent writers.
//
// Failures surface as *Error values carrying a display-ready message, except
// for a small set of expected conditions (missing directory, deferred
// network, missing remote branch) that sync-style operations report as
// SyncResult values instead.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/transport"
	gitssh "github.com/go-git/go-git/v6/plumbing/transport/ssh"

	"reposync/internal/credentials"
	"reposync/internal/hosttrust"
	"reposync/internal/logging"
	"reposync/internal/remote"
	"reposync/internal/repolock"
	"reposync/internal/sshkey"
)

// Engine executes git operations for registered repositories. It owns the
// per-repository lock table and the ephemeral directory that hands private
// keys to the SSH transport; it holds no repository state otherwise.
type Engine struct {
	trust   hosttrust.Evaluator
	creds   credentials.Provider
	sandbox SandboxAccess
	locks   *repolock.Table
	keys    *sshkey.Dir
	logger  *logging.AppLogger
}

// Options configures a new Engine.
//
// Fields:
//   - Trust: Host trust evaluator consulted before any network use (required)
//   - Credentials: Per-host SSH key material source (required)
//   - Sandbox: Access-token resolver; nil uses handle paths directly
//   - Keys: Ephemeral key directory; nil creates a fresh one
//   - Logger: Structured logger; nil uses the package default
type Options struct {
	Trust       hosttrust.Evaluator
	Credentials credentials.Provider
	Sandbox     SandboxAccess
	Keys        *sshkey.Dir
	Logger      *logging.AppLogger
}

// New validates opts and assembles an Engine. Callers should Close the
// engine on shutdown to remove the ephemeral key directory.
func New(opts Options) (*Engine, error) {
	if opts.Trust == nil {
		return nil, fmt.Errorf("engine: host trust evaluator is required")
	}
	if opts.Credentials == nil {
		return nil, fmt.Errorf("engine: credential provider is required")
	}

	keys := opts.Keys
	if keys == nil {
		var err error
		keys, err = sshkey.NewDir()
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetDefault()
	}

	return &Engine{
		trust:   opts.Trust,
		creds:   opts.Credentials,
		sandbox: opts.Sandbox,
		locks:   repolock.NewTable(),
		keys:    keys,
		logger:  logger,
	}, nil
}

// Close removes the ephemeral key directory and any files left in it.
func (e *Engine) Close() error {
	return e.keys.Close()
}

// ProbeRemote parses a remote URL without any trust evaluation, for display
// and preview.
func (e *Engine) ProbeRemote(rawURL string) (RemoteProbe, error) {
	ep, err := remote.Parse(rawURL)
	if err != nil {
		return RemoteProbe{}, translateError(err)
	}
	return RemoteProbe{Host: ep.Host, Port: ep.Port, NormalizedURL: ep.Canonical()}, nil
}

// PrepareRemote parses a remote URL and runs the host through trust
// evaluation. Clone and add-repository flows call it to fail fast before
// any credential lookup or filesystem mutation.
func (e *Engine) PrepareRemote(ctx context.Context, rawURL string) (RemoteProbe, error) {
	ep, err := e.checkHostTrust(ctx, rawURL)
	if err != nil {
		return RemoteProbe{}, err
	}
	return RemoteProbe{Host: ep.Host, Port: ep.Port, NormalizedURL: ep.Canonical()}, nil
}

// checkHostTrust parses the remote and evaluates the pre-flight fingerprint,
// which is synthesized from the endpoint identity. The real server key is
// evaluated again during the handshake through the transport callback
// installed by authFor.
func (e *Engine) checkHostTrust(ctx context.Context, rawURL string) (remote.Endpoint, error) {
	ep, err := remote.Parse(rawURL)
	if err != nil {
		return remote.Endpoint{}, translateError(err)
	}

	fingerprint := hosttrust.SyntheticFingerprint(ep.Host, ep.Port)
	if err := e.trust.Evaluate(ctx, ep.Host, ep.Port, fingerprint, hosttrust.AlgorithmHostIdentity); err != nil {
		return remote.Endpoint{}, translateError(err)
	}
	return ep, nil
}

// authFor resolves credentials for the endpoint and materializes the
// ephemeral key file the SSH transport reads. The returned cleanup removes
// the key file and must run once the operation finishes, on every exit path.
// The transport's host-key callback feeds the real handshake key back into
// the trust evaluator.
func (e *Engine) authFor(ctx context.Context, ep remote.Endpoint) (transport.AuthMethod, func(), error) {
	material, err := e.creds.Credential(ctx, ep.Host, ep.User)
	if err != nil {
		if errors.Is(err, credentials.ErrKeyNotFound) {
			return nil, nil, wrapError(KindKeyNotFound, fmt.Sprintf("No SSH key is stored for %s.", ep.Host), err)
		}
		return nil, nil, wrapError(KindKeychainFailure, "The stored credentials could not be read.", err)
	}

	keyPath, removeKey, err := e.keys.WriteKey(material.PrivateKey)
	if err != nil {
		if errors.Is(err, sshkey.ErrUnsupportedKey) {
			return nil, nil, wrapError(KindKeychainFailure, "The stored SSH key is not in a usable format.", err)
		}
		return nil, nil, wrapError(KindIOFailure, "The SSH key file could not be prepared.", err)
	}

	user := material.Username
	if user == "" {
		user = ep.User
	}

	auth, err := gitssh.NewPublicKeysFromFile(user, keyPath, material.Passphrase)
	if err != nil {
		removeKey()
		return nil, nil, wrapError(KindKeychainFailure, "The stored SSH key could not be parsed.", err)
	}
	auth.HostKeyCallback = hosttrust.Callback(ctx, e.trust)

	e.logger.Debug("Prepared SSH authentication", "host", ep.Host, "user", user)
	return auth, removeKey, nil
}

// resolveWorkingDir maps the handle to its usable directory, going through
// the sandbox resolver when the handle carries a token. The release function
// must run when the operation finishes.
func (e *Engine) resolveWorkingDir(repo Repository) (string, func(), error) {
	return e.resolvePath(repo.LocalPath, repo.SandboxToken)
}

func (e *Engine) resolvePath(path, token string) (string, func(), error) {
	if token == "" || e.sandbox == nil {
		return path, func() {}, nil
	}
	resolved, release, err := e.sandbox.Resolve(token)
	if err != nil {
		return "", nil, wrapError(KindIOFailure, "Sandboxed access to the repository folder could not be restored.", err)
	}
	return resolved, release, nil
}

// withLock runs fn while holding the repository's operation lock, releasing
// it on every exit path.
func (e *Engine) withLock(ctx context.Context, id string, fn func() error) error {
	if err := e.locks.Lock(ctx, id); err != nil {
		return wrapError(KindIOFailure, "Waiting for the repository lock was interrupted.", err)
	}
	defer e.locks.Unlock(id)
	return fn()
}

// openRepo opens the working tree at path, mapping the not-a-repository
// case to a display-ready failure.
func (e *Engine) openRepo(path string) (*git.Repository, error) {
	gitRepo, err := git.PlainOpen(path)
	if err != nil {
		return nil, translateError(err)
	}
	return gitRepo, nil
}

// statMissing reports whether the path does not exist or is inaccessible.
func statMissing(path string) bool {
	_, err := os.Stat(path)
	return err != nil
}
