package engine

import (
	"context"
	"strings"
	"time"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// LoadCommitIdentity reads the author identity from the repository's local
// git config. It returns nil when neither name nor email is set, so callers
// can prompt before the first commit. No repository lock is taken.
func (e *Engine) LoadCommitIdentity(ctx context.Context, repo Repository) (*CommitIdentity, error) {
	dir, release, err := e.resolveWorkingDir(repo)
	if err != nil {
		return nil, err
	}
	defer release()

	gitRepo, err := e.openRepo(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := gitRepo.Config()
	if err != nil {
		return nil, wrapError(KindIOFailure, "The repository configuration could not be read.", err)
	}

	name := strings.TrimSpace(cfg.User.Name)
	email := strings.TrimSpace(cfg.User.Email)
	if name == "" && email == "" {
		return nil, nil
	}
	return &CommitIdentity{Name: name, Email: email}, nil
}

// SaveCommitIdentity writes the author identity into the repository's local
// git config, keeping it per-repository rather than global. It holds the
// repository lock.
func (e *Engine) SaveCommitIdentity(ctx context.Context, repo Repository, identity CommitIdentity) error {
	name := strings.TrimSpace(identity.Name)
	email := strings.TrimSpace(identity.Email)
	if name == "" || email == "" {
		return newError(KindCommitIdentityMissing, "Both a name and an email are required for the commit identity.")
	}

	return e.withLock(ctx, repo.ID, func() error {
		dir, release, err := e.resolveWorkingDir(repo)
		if err != nil {
			return err
		}
		defer release()

		gitRepo, err := e.openRepo(dir)
		if err != nil {
			return err
		}
		cfg, err := gitRepo.Config()
		if err != nil {
			return wrapError(KindIOFailure, "The repository configuration could not be read.", err)
		}
		cfg.User.Name = name
		cfg.User.Email = email
		if err := gitRepo.SetConfig(cfg); err != nil {
			return wrapError(KindIOFailure, "The repository configuration could not be saved.", err)
		}
		e.logger.Debug("Saved commit identity", "name", repo.Name)
		return nil
	})
}

// Commit records the staged changes as a new commit on the current branch.
// It requires a non-blank message, a configured identity, and at least one
// index-side staged change. It holds the repository lock.
func (e *Engine) Commit(ctx context.Context, repo Repository, message string) (CommitOutcome, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return CommitOutcome{}, newError(KindInvalidCommitMessage, "A commit message is required.")
	}

	var outcome CommitOutcome
	err := e.withLock(ctx, repo.ID, func() error {
		dir, release, err := e.resolveWorkingDir(repo)
		if err != nil {
			return err
		}
		defer release()

		gitRepo, err := e.openRepo(dir)
		if err != nil {
			return err
		}
		cfg, err := gitRepo.Config()
		if err != nil {
			return wrapError(KindIOFailure, "The repository configuration could not be read.", err)
		}
		name := strings.TrimSpace(cfg.User.Name)
		email := strings.TrimSpace(cfg.User.Email)
		if name == "" || email == "" {
			return newError(KindCommitIdentityMissing,
				"No commit identity is configured. Set a name and email first.")
		}

		wt, err := gitRepo.Worktree()
		if err != nil {
			return wrapError(KindIOFailure, "The repository working tree could not be opened.", err)
		}
		status, err := wt.Status()
		if err != nil {
			return wrapError(KindIOFailure, "The repository status could not be read.", err)
		}
		if !hasStagedChanges(status) {
			return newError(KindNothingToCommit, "No staged changes to commit.")
		}

		now := time.Now()
		hash, err := wt.Commit(message, &git.CommitOptions{
			Author: &object.Signature{Name: name, Email: email, When: now},
		})
		if err != nil {
			return translateError(err)
		}

		outcome = CommitOutcome{CommitID: hash.String(), Message: message, CommittedAt: now}
		e.logger.Info("Created commit", "name", repo.Name, "commit", hash.String()[:8])
		return nil
	})
	if err != nil {
		return CommitOutcome{}, err
	}
	return outcome, nil
}

// hasStagedChanges reports whether any entry has an index-side change.
// Worktree-only edits and untracked files do not count.
func hasStagedChanges(status git.Status) bool {
	for _, st := range status {
		if st.Staging != git.Unmodified && st.Staging != git.Untracked {
			return true
		}
	}
	return false
}

// Push uploads local commits on the current branch to origin. An
// already-up-to-date remote counts as success. The reported branch is the
// one actually checked out, falling back to the handle's tracked branch
// when HEAD is detached. It holds the repository lock.
func (e *Engine) Push(ctx context.Context, repo Repository) (PushOutcome, error) {
	var outcome PushOutcome
	err := e.withLock(ctx, repo.ID, func() error {
		dir, release, err := e.resolveWorkingDir(repo)
		if err != nil {
			return err
		}
		defer release()

		ep, err := e.checkHostTrust(ctx, repo.RemoteURL)
		if err != nil {
			return err
		}
		auth, removeKey, err := e.authFor(ctx, ep)
		if err != nil {
			return err
		}
		defer removeKey()

		gitRepo, err := e.openRepo(dir)
		if err != nil {
			return err
		}
		branch := headBranchName(gitRepo)
		if branch == "" {
			branch = repo.TrackedBranch
		}

		err = gitRepo.PushContext(ctx, &git.PushOptions{RemoteName: "origin", Auth: auth})
		if err != nil && err != git.NoErrAlreadyUpToDate {
			return translateError(err)
		}

		outcome = PushOutcome{RemoteName: "origin", BranchName: branch, PushedAt: time.Now()}
		e.logger.Info("Pushed to remote", "name", repo.Name, "branch", branch)
		return nil
	})
	if err != nil {
		return PushOutcome{}, err
	}
	return outcome, nil
}
