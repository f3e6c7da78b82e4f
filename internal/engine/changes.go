package engine

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v6"
)

// ListLocalChanges reports the working tree's uncommitted changes, sorted by
// path. It takes no repository lock; a concurrent mutation can make the
// snapshot stale, which callers tolerate by refreshing.
func (e *Engine) ListLocalChanges(ctx context.Context, repo Repository) ([]LocalChange, error) {
	dir, release, err := e.resolveWorkingDir(repo)
	if err != nil {
		return nil, err
	}
	defer release()

	gitRepo, err := e.openRepo(dir)
	if err != nil {
		return nil, err
	}
	return localChanges(gitRepo)
}

func localChanges(gitRepo *git.Repository) ([]LocalChange, error) {
	wt, err := gitRepo.Worktree()
	if err != nil {
		return nil, wrapError(KindIOFailure, "The repository working tree could not be opened.", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, wrapError(KindIOFailure, "The repository status could not be read.", err)
	}

	changes := make([]LocalChange, 0, len(status))
	for path, st := range status {
		change, ok := classifyStatus(path, st)
		if !ok {
			continue
		}
		changes = append(changes, change)
	}
	sort.Slice(changes, func(i, j int) bool {
		return strings.ToLower(changes[i].Path) < strings.ToLower(changes[j].Path)
	})
	return changes, nil
}

// classifyStatus reduces a two-column git status entry to one change row.
// Entries clean on both sides are dropped.
func classifyStatus(path string, st *git.FileStatus) (LocalChange, bool) {
	if st.Staging == git.Untracked && st.Worktree == git.Untracked {
		return LocalChange{Path: path, Kind: ChangeKindAdded, Stage: StageStateUnstaged}, true
	}
	if st.Staging == git.Unmodified && st.Worktree == git.Unmodified {
		return LocalChange{}, false
	}

	kind := ChangeKindUnknown
	switch {
	case st.Staging == git.UpdatedButUnmerged || st.Worktree == git.UpdatedButUnmerged:
		kind = ChangeKindConflicted
	case st.Staging == git.Renamed || st.Worktree == git.Renamed:
		kind = ChangeKindRenamed
	case st.Staging == git.Deleted || st.Worktree == git.Deleted:
		kind = ChangeKindDeleted
	case st.Staging == git.Added || st.Worktree == git.Added:
		kind = ChangeKindAdded
	case st.Staging == git.Copied || st.Worktree == git.Copied:
		kind = ChangeKindAdded
	case st.Staging == git.Modified || st.Worktree == git.Modified:
		kind = ChangeKindModified
	}

	stagedSide := st.Staging != git.Unmodified && st.Staging != git.Untracked
	worktreeSide := st.Worktree != git.Unmodified && st.Worktree != git.Untracked

	stage := StageStateUnstaged
	switch {
	case kind == ChangeKindConflicted || (stagedSide && worktreeSide):
		stage = StageStateBoth
	case stagedSide:
		stage = StageStateStaged
	}
	return LocalChange{Path: path, Kind: kind, Stage: stage}, true
}

// Stage adds the given paths to the index. Paths are trimmed and
// de-duplicated first; paths that no longer exist on disk are staged as
// removals. It holds the repository lock.
func (e *Engine) Stage(ctx context.Context, repo Repository, paths []string) error {
	cleaned := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		cleaned = append(cleaned, p)
	}
	if len(cleaned) == 0 {
		return newError(KindNothingToStage, "No paths to stage.")
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
		wt, err := gitRepo.Worktree()
		if err != nil {
			return wrapError(KindIOFailure, "The repository working tree could not be opened.", err)
		}
		return stagePaths(wt, dir, cleaned)
	})
}

// StageAll stages every uncommitted change, including untracked files and
// deletions. It holds the repository lock.
func (e *Engine) StageAll(ctx context.Context, repo Repository) error {
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
		changes, err := localChanges(gitRepo)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			return newError(KindNothingToStage, "There are no local changes to stage.")
		}

		wt, err := gitRepo.Worktree()
		if err != nil {
			return wrapError(KindIOFailure, "The repository working tree could not be opened.", err)
		}
		paths := make([]string, 0, len(changes))
		for _, c := range changes {
			paths = append(paths, c.Path)
		}
		return stagePaths(wt, dir, paths)
	})
}

// stagePaths stages each path, using the index-removal form for paths that
// no longer exist on disk.
func stagePaths(wt *git.Worktree, dir string, paths []string) error {
	for _, p := range paths {
		if statMissing(filepath.Join(dir, p)) {
			if _, err := wt.Remove(p); err != nil {
				return wrapError(KindIOFailure, "A deleted file could not be staged: "+p, err)
			}
			continue
		}
		if _, err := wt.Add(p); err != nil {
			return wrapError(KindIOFailure, "A file could not be staged: "+p, err)
		}
	}
	return nil
}

// DiscardLocalChanges drops every uncommitted change: tracked modifications
// through a hard reset to HEAD, then untracked files by deletion,
// deepest-path-first so emptied directories can be pruned as it goes. It
// holds the repository lock.
func (e *Engine) DiscardLocalChanges(ctx context.Context, repo Repository) error {
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
		wt, err := gitRepo.Worktree()
		if err != nil {
			return wrapError(KindIOFailure, "The repository working tree could not be opened.", err)
		}
		status, err := wt.Status()
		if err != nil {
			return wrapError(KindIOFailure, "The repository status could not be read.", err)
		}

		head, err := gitRepo.Head()
		if err != nil {
			return wrapError(KindIOFailure, "The repository HEAD could not be resolved.", err)
		}
		if err := wt.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset}); err != nil {
			return wrapError(KindIOFailure, "Local changes could not be discarded.", err)
		}

		var untracked []string
		for path, st := range status {
			if st.Staging == git.Untracked && st.Worktree == git.Untracked {
				untracked = append(untracked, path)
			}
		}
		sort.Slice(untracked, func(i, j int) bool {
			di := strings.Count(untracked[i], "/")
			dj := strings.Count(untracked[j], "/")
			if di != dj {
				return di > dj
			}
			return untracked[i] < untracked[j]
		})
		for _, rel := range untracked {
			full := filepath.Join(dir, rel)
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return wrapError(KindIOFailure, "An untracked file could not be removed: "+rel, err)
			}
			pruneEmptyParents(dir, filepath.Dir(rel))
		}

		e.logger.Info("Discarded local changes", "name", repo.Name, "untracked_removed", len(untracked))
		return nil
	})
}

// pruneEmptyParents removes now-empty directories between rel and the
// repository root, stopping at the first non-empty one.
func pruneEmptyParents(root, rel string) {
	for rel != "." && rel != "" && rel != string(filepath.Separator) {
		full := filepath.Join(root, rel)
		entries, err := os.ReadDir(full)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(full); err != nil {
			return
		}
		rel = filepath.Dir(rel)
	}
}
