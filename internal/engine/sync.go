package engine

import (
	"context"
	"fmt"
	"path/filepath"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
)

// DeferMarkerName is the file that, when present in a repository's working
// directory, defers background syncs of that repository. Manual syncs
// ignore it.
const DeferMarkerName = ".reposync-defer"

// Sync brings the repository up to date with its remote using a
// fast-forward-only pull. It holds the repository lock for the duration.
//
// Expected conditions (missing directory, deferred background sync, remote
// branch not found, unresolvable tips) come back as a SyncResult with a nil
// error. Failures (trust declined, credentials missing, dirty tree,
// divergence, transport errors) come back as a *Error alongside a result
// carrying the matching state, so callers can persist the state and show
// the message without inspecting the error themselves.
func (e *Engine) Sync(ctx context.Context, repo Repository, trigger SyncTrigger) (SyncResult, error) {
	var result SyncResult
	err := e.withLock(ctx, repo.ID, func() error {
		var innerErr error
		result, innerErr = e.syncLocked(ctx, repo, trigger)
		return innerErr
	})
	if err != nil {
		return SyncResult{State: StateForError(err), Message: ErrorMessage(err)}, err
	}
	return result, nil
}

func (e *Engine) syncLocked(ctx context.Context, repo Repository, trigger SyncTrigger) (SyncResult, error) {
	dir, release, err := e.resolveWorkingDir(repo)
	if err != nil {
		return SyncResult{}, err
	}
	defer release()

	if statMissing(dir) {
		e.logger.Warn("Repository directory missing", "name", repo.Name, "path", dir)
		return SyncResult{State: StateFailed, Message: "Repository directory missing."}, nil
	}
	if trigger == TriggerBackground && !statMissing(filepath.Join(dir, DeferMarkerName)) {
		e.logger.Debug("Background sync deferred", "name", repo.Name)
		return SyncResult{State: StateNetworkDeferred, Message: "Background sync deferred by policy."}, nil
	}

	ep, err := e.checkHostTrust(ctx, repo.RemoteURL)
	if err != nil {
		return SyncResult{}, err
	}
	auth, removeKey, err := e.authFor(ctx, ep)
	if err != nil {
		return SyncResult{}, err
	}
	defer removeKey()

	gitRepo, err := e.openRepo(dir)
	if err != nil {
		return SyncResult{}, err
	}
	wt, err := gitRepo.Worktree()
	if err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The repository working tree could not be opened.", err)
	}
	status, err := wt.Status()
	if err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The repository status could not be read.", err)
	}
	if !status.IsClean() {
		return SyncResult{}, newError(KindDirtyWorkingTree,
			"Uncommitted local changes are blocking the sync. Commit or discard them first.")
	}

	e.logger.Debug("Fetching from remote", "name", repo.Name, "trigger", trigger.String())
	err = gitRepo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin", Auth: auth})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return SyncResult{}, translateError(err)
	}

	result, err := e.fastForwardPull(gitRepo, repo.TrackedBranch)
	if err == nil && result.State == StateSuccess {
		e.logger.Info("Sync complete", "name", repo.Name, "result", result.Message)
	}
	return result, err
}

// fastForwardPull advances the tracked branch to the fetched remote tip when
// the move is a pure fast-forward, and reports divergence otherwise.
func (e *Engine) fastForwardPull(gitRepo *git.Repository, branch string) (SyncResult, error) {
	remoteRef, err := gitRepo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return SyncResult{
			State:   StateFailed,
			Message: fmt.Sprintf("Remote branch %q not found.", branch),
		}, nil
	}

	localName := plumbing.NewBranchReferenceName(branch)
	localRef, err := gitRepo.Reference(localName, true)
	if err == plumbing.ErrReferenceNotFound {
		// First sync onto a branch that only exists remotely: create it at
		// the remote tip and check it out.
		if err := gitRepo.Storer.SetReference(plumbing.NewHashReference(localName, remoteRef.Hash())); err != nil {
			return SyncResult{}, wrapError(KindIOFailure, "The local branch could not be created.", err)
		}
		localRef, err = gitRepo.Reference(localName, true)
		if err != nil {
			return SyncResult{}, wrapError(KindIOFailure, "The local branch could not be read back.", err)
		}
	} else if err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The local branch could not be resolved.", err)
	}

	if err := checkoutTrackedBranch(gitRepo, branch); err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The tracked branch could not be checked out.", err)
	}

	localTip, localErr := gitRepo.CommitObject(localRef.Hash())
	remoteTip, remoteErr := gitRepo.CommitObject(remoteRef.Hash())
	if localErr != nil || remoteErr != nil {
		return SyncResult{State: StateFailed, Message: "Unable to resolve branch tips for pull."}, nil
	}

	if localTip.Hash == remoteTip.Hash {
		return SyncResult{State: StateSuccess, Message: "Already up to date."}, nil
	}

	localBehind, err := isAncestor(localTip.Hash, remoteTip)
	if err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The commit history could not be walked.", err)
	}
	if localBehind {
		wt, err := gitRepo.Worktree()
		if err != nil {
			return SyncResult{}, wrapError(KindIOFailure, "The repository working tree could not be opened.", err)
		}
		if err := wt.Reset(&git.ResetOptions{Commit: remoteTip.Hash, Mode: git.HardReset}); err != nil {
			return SyncResult{}, wrapError(KindIOFailure, "The working tree could not be advanced to the remote tip.", err)
		}
		return SyncResult{
			State:   StateSuccess,
			Message: fmt.Sprintf("Fast-forwarded to %s.", shortHash(remoteTip.Hash)),
		}, nil
	}

	remoteBehind, err := isAncestor(remoteTip.Hash, localTip)
	if err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The commit history could not be walked.", err)
	}
	if remoteBehind {
		return SyncResult{State: StateSuccess, Message: "Local branch is ahead of remote."}, nil
	}

	return SyncResult{}, newError(KindDivergedBranch,
		"Local and remote histories have diverged. Resolve manually or reset to remote.")
}

// isAncestor reports whether target is reachable from start by following
// parent edges. A commit counts as its own ancestor.
func isAncestor(target plumbing.Hash, start *object.Commit) (bool, error) {
	if start.Hash == target {
		return true, nil
	}

	visited := map[plumbing.Hash]bool{start.Hash: true}
	work := []*object.Commit{start}
	for len(work) > 0 {
		commit := work[len(work)-1]
		work = work[:len(work)-1]

		for i := 0; i < commit.NumParents(); i++ {
			parent, err := commit.Parent(i)
			if err != nil {
				return false, err
			}
			if parent.Hash == target {
				return true, nil
			}
			if visited[parent.Hash] {
				continue
			}
			visited[parent.Hash] = true
			work = append(work, parent)
		}
	}
	return false, nil
}

func shortHash(h plumbing.Hash) string {
	return h.String()[:8]
}

// ResetToRemote force-aligns the tracked branch with the fetched remote tip,
// discarding local commits and changes. Unlike Sync it does not check the
// working tree or test for divergence first; it is the recovery path for
// both conditions.
func (e *Engine) ResetToRemote(ctx context.Context, repo Repository) (SyncResult, error) {
	var result SyncResult
	err := e.withLock(ctx, repo.ID, func() error {
		var innerErr error
		result, innerErr = e.resetLocked(ctx, repo)
		return innerErr
	})
	if err != nil {
		return SyncResult{State: StateForError(err), Message: ErrorMessage(err)}, err
	}
	return result, nil
}

func (e *Engine) resetLocked(ctx context.Context, repo Repository) (SyncResult, error) {
	dir, release, err := e.resolveWorkingDir(repo)
	if err != nil {
		return SyncResult{}, err
	}
	defer release()

	if statMissing(dir) {
		return SyncResult{State: StateFailed, Message: "Repository directory missing."}, nil
	}

	ep, err := e.checkHostTrust(ctx, repo.RemoteURL)
	if err != nil {
		return SyncResult{}, err
	}
	auth, removeKey, err := e.authFor(ctx, ep)
	if err != nil {
		return SyncResult{}, err
	}
	defer removeKey()

	gitRepo, err := e.openRepo(dir)
	if err != nil {
		return SyncResult{}, err
	}

	err = gitRepo.FetchContext(ctx, &git.FetchOptions{RemoteName: "origin", Auth: auth})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return SyncResult{}, translateError(err)
	}

	result, err := e.resetToFetchedTip(gitRepo, repo.TrackedBranch)
	if err == nil && result.State == StateSuccess {
		e.logger.Info("Reset to remote", "name", repo.Name, "result", result.Message)
	}
	return result, err
}

// resetToFetchedTip force-aligns the branch with the fetched remote tip.
func (e *Engine) resetToFetchedTip(gitRepo *git.Repository, branch string) (SyncResult, error) {
	remoteRef, err := gitRepo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return SyncResult{
			State:   StateFailed,
			Message: fmt.Sprintf("Remote branch %q not found.", branch),
		}, nil
	}

	localName := plumbing.NewBranchReferenceName(branch)
	if _, err := gitRepo.Reference(localName, true); err == plumbing.ErrReferenceNotFound {
		if err := gitRepo.Storer.SetReference(plumbing.NewHashReference(localName, remoteRef.Hash())); err != nil {
			return SyncResult{}, wrapError(KindIOFailure, "The local branch could not be created.", err)
		}
	}
	if err := checkoutTrackedBranch(gitRepo, branch); err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The tracked branch could not be checked out.", err)
	}

	wt, err := gitRepo.Worktree()
	if err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The repository working tree could not be opened.", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return SyncResult{}, wrapError(KindIOFailure, "The working tree could not be reset to the remote tip.", err)
	}

	return SyncResult{
		State:   StateSuccess,
		Message: fmt.Sprintf("Reset to %s.", shortHash(remoteRef.Hash())),
	}, nil
}
