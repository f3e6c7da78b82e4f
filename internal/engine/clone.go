package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
)

// Clone fetches the remote repository into a fresh directory under
// req.BaseDir and returns the handle to register. The destination directory
// is derived from the repository name and never reuses an existing path.
// On failure the partially created destination is removed.
//
// Clone takes no repository lock: the handle does not exist yet, so no
// other operation can address it.
func (e *Engine) Clone(ctx context.Context, req CloneRequest) (Repository, error) {
	ep, err := e.checkHostTrust(ctx, req.RemoteURL)
	if err != nil {
		return Repository{}, err
	}

	auth, removeKey, err := e.authFor(ctx, ep)
	if err != nil {
		return Repository{}, err
	}
	defer removeKey()

	baseDir, release, err := e.resolvePath(req.BaseDir, req.SandboxToken)
	if err != nil {
		return Repository{}, err
	}
	defer release()
	if strings.TrimSpace(baseDir) == "" {
		return Repository{}, newError(KindIOFailure, "A destination folder is required for cloning.")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return Repository{}, wrapError(KindIOFailure, "The destination folder could not be created.", err)
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = ep.RepoName()
	}
	dest := cloneDestination(baseDir, name)

	e.logger.Info("Cloning repository", "url", ep.Canonical(), "destination", dest)
	gitRepo, err := git.PlainCloneContext(ctx, dest, &git.CloneOptions{
		URL:  ep.Canonical(),
		Auth: auth,
	})
	if err != nil {
		os.RemoveAll(dest)
		return Repository{}, translateError(err)
	}

	tracked := strings.TrimSpace(req.Branch)
	if tracked != "" {
		if err := checkoutTrackedBranch(gitRepo, tracked); err != nil {
			// The clone itself succeeded; the handle keeps the requested
			// branch and the next sync reports what is wrong with it.
			e.logger.Warn("Could not check out requested branch after clone", "branch", tracked, "error", err)
		}
	} else {
		tracked = headBranchName(gitRepo)
		if tracked == "" {
			tracked = "main"
		}
	}

	// The handle needs its own grant for the new directory; the request
	// token only covered the base folder. A failed bind is not fatal, the
	// path keeps working for as long as the platform allows.
	sandboxToken := ""
	if e.sandbox != nil {
		token, err := e.sandbox.Bind(dest)
		if err != nil {
			e.logger.Warn("Could not bind a sandbox token for the clone", "dir", dest, "error", err)
		} else {
			sandboxToken = token
		}
	}

	now := time.Now()
	handle := Repository{
		ID:            newRepositoryID(name, now),
		Name:          name,
		RemoteURL:     ep.Canonical(),
		LocalPath:     dest,
		SandboxToken:  sandboxToken,
		TrackedBranch: tracked,
		AutoSync:      req.AutoSync,
		CreatedAt:     now.Unix(),
		LastSyncState: StateIdle,
	}
	e.logger.Info("Clone complete", "name", name, "branch", tracked)
	return handle, nil
}

// cloneDestination joins baseDir with the sanitized repository name,
// suffixing -2, -3, and so on until the path does not exist yet.
func cloneDestination(baseDir, name string) string {
	base := sanitizeDirName(name)
	dest := filepath.Join(baseDir, base)
	for i := 2; !statMissing(dest); i++ {
		dest = filepath.Join(baseDir, fmt.Sprintf("%s-%d", base, i))
	}
	return dest
}

// sanitizeDirName reduces a display name to a safe directory name: letters,
// digits, dots, underscores and hyphens survive, everything else becomes a
// hyphen, with runs collapsed and leading/trailing separators trimmed.
func sanitizeDirName(name string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "repository"
	}
	return out
}

// newRepositoryID derives a stable handle ID from the name and creation
// time. IDs only need to be unique within one registry.
func newRepositoryID(name string, now time.Time) string {
	return fmt.Sprintf("%s-%d", strings.ToLower(sanitizeDirName(name)), now.Unix())
}

// headBranchName returns the short branch name HEAD points at, or "" when
// HEAD is unborn or detached.
func headBranchName(gitRepo *git.Repository) string {
	head, err := gitRepo.Head()
	if err != nil || !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}

// checkoutTrackedBranch moves the working tree onto branch. When the local
// branch does not exist yet it is created from the remote tracking ref if
// one came down with the clone, otherwise checkout fails and the caller
// decides how to proceed.
func checkoutTrackedBranch(gitRepo *git.Repository, branch string) error {
	if headBranchName(gitRepo) == branch {
		return nil
	}

	wt, err := gitRepo.Worktree()
	if err != nil {
		return err
	}

	localRef := plumbing.NewBranchReferenceName(branch)
	if _, err := gitRepo.Reference(localRef, true); err == nil {
		return wt.Checkout(&git.CheckoutOptions{Branch: localRef})
	}

	remoteRef, err := gitRepo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return fmt.Errorf("branch %q not found locally or on origin: %w", branch, err)
	}
	if err := gitRepo.Storer.SetReference(plumbing.NewHashReference(localRef, remoteRef.Hash())); err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Branch: localRef})
}
