package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	git "github.com/go-git/go-git/v6"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		name      string
		staging   git.StatusCode
		worktree  git.StatusCode
		wantKind  ChangeKind
		wantStage StageState
		wantKeep  bool
	}{
		{"untracked", git.Untracked, git.Untracked, ChangeKindAdded, StageStateUnstaged, true},
		{"clean is dropped", git.Unmodified, git.Unmodified, 0, 0, false},
		{"staged modification", git.Modified, git.Unmodified, ChangeKindModified, StageStateStaged, true},
		{"unstaged modification", git.Unmodified, git.Modified, ChangeKindModified, StageStateUnstaged, true},
		{"staged add with later edits", git.Added, git.Modified, ChangeKindAdded, StageStateBoth, true},
		{"staged deletion", git.Deleted, git.Unmodified, ChangeKindDeleted, StageStateStaged, true},
		{"unstaged deletion", git.Unmodified, git.Deleted, ChangeKindDeleted, StageStateUnstaged, true},
		{"rename", git.Renamed, git.Unmodified, ChangeKindRenamed, StageStateStaged, true},
		{"copy counts as add", git.Copied, git.Unmodified, ChangeKindAdded, StageStateStaged, true},
		{"conflict", git.UpdatedButUnmerged, git.UpdatedButUnmerged, ChangeKindConflicted, StageStateBoth, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			change, keep := classifyStatus("file.txt", &git.FileStatus{
				Staging:  tc.staging,
				Worktree: tc.worktree,
			})
			if keep != tc.wantKeep {
				t.Fatalf("keep = %v, want %v", keep, tc.wantKeep)
			}
			if !keep {
				return
			}
			if change.Kind != tc.wantKind {
				t.Errorf("kind = %v, want %v", change.Kind, tc.wantKind)
			}
			if change.Stage != tc.wantStage {
				t.Errorf("stage = %v, want %v", change.Stage, tc.wantStage)
			}
		})
	}
}

func TestListLocalChanges_CleanRepo(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	eng := newTestEngine(t, &recordingEvaluator{})

	changes, err := eng.ListLocalChanges(context.Background(), repoHandle("notes", clonePath))
	if err != nil {
		t.Fatalf("ListLocalChanges failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected no changes in a clean repo, got %v", changes)
	}
}

func TestListLocalChanges_ThroughSandbox(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	addUncommittedChange(t, clonePath)

	box := &fakeSandbox{resolved: clonePath}
	eng := newSandboxedEngine(t, &recordingEvaluator{}, box)

	// The handle path is an empty directory; only the granted directory
	// holds a repository with a change to report.
	handle := repoHandle("notes", t.TempDir())
	handle.SandboxToken = "home:repos/notes"

	changes, err := eng.ListLocalChanges(context.Background(), handle)
	if err != nil {
		t.Fatalf("ListLocalChanges failed: %v", err)
	}
	if len(changes) != 1 || changes[0].Path != "dirty.txt" {
		t.Fatalf("expected the granted directory's change, got %v", changes)
	}
	if box.released != 1 {
		t.Errorf("expected the grant to be released once, got %d releases", box.released)
	}
}

func TestListLocalChanges_MixedStates(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	if err := os.WriteFile(filepath.Join(clonePath, "README.md"), []byte("edited\n"), 0o644); err != nil {
		t.Fatalf("failed to edit tracked file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(clonePath, "new.txt"), []byte("new\n"), 0o644); err != nil {
		t.Fatalf("failed to write untracked file: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(clonePath, "sub"), 0o755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(clonePath, "sub", "deep.txt"), []byte("deep\n"), 0o644); err != nil {
		t.Fatalf("failed to write nested file: %v", err)
	}

	eng := newTestEngine(t, &recordingEvaluator{})
	changes, err := eng.ListLocalChanges(context.Background(), repoHandle("notes", clonePath))
	if err != nil {
		t.Fatalf("ListLocalChanges failed: %v", err)
	}

	want := []LocalChange{
		{Path: "new.txt", Kind: ChangeKindAdded, Stage: StageStateUnstaged},
		{Path: "README.md", Kind: ChangeKindModified, Stage: StageStateUnstaged},
		{Path: "sub/deep.txt", Kind: ChangeKindAdded, Stage: StageStateUnstaged},
	}
	if len(changes) != len(want) {
		t.Fatalf("expected %d changes, got %d: %v", len(want), len(changes), changes)
	}
	for i, w := range want {
		if changes[i] != w {
			t.Errorf("change[%d] = %+v, want %+v", i, changes[i], w)
		}
	}
}

func TestStage_TrimsAndDeduplicates(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	if err := os.WriteFile(filepath.Join(clonePath, "new.txt"), []byte("new\n"), 0o644); err != nil {
		t.Fatalf("failed to write untracked file: %v", err)
	}

	eng := newTestEngine(t, &recordingEvaluator{})
	handle := repoHandle("notes", clonePath)
	if err := eng.Stage(context.Background(), handle, []string{" new.txt ", "new.txt", ""}); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	changes, err := eng.ListLocalChanges(context.Background(), handle)
	if err != nil {
		t.Fatalf("ListLocalChanges failed: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected one change, got %v", changes)
	}
	if changes[0].Stage != StageStateStaged || changes[0].Kind != ChangeKindAdded {
		t.Errorf("unexpected change after staging: %+v", changes[0])
	}
}

func TestStage_EmptySetFails(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	eng := newTestEngine(t, &recordingEvaluator{})
	handle := repoHandle("notes", clonePath)

	if err := eng.Stage(context.Background(), handle, nil); !IsKind(err, KindNothingToStage) {
		t.Errorf("expected KindNothingToStage for nil paths, got %v", err)
	}
	if err := eng.Stage(context.Background(), handle, []string{"", "   "}); !IsKind(err, KindNothingToStage) {
		t.Errorf("expected KindNothingToStage for blank paths, got %v", err)
	}
}

func TestStage_DeletedPathStagesRemoval(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	if err := os.Remove(filepath.Join(clonePath, "README.md")); err != nil {
		t.Fatalf("failed to delete tracked file: %v", err)
	}

	eng := newTestEngine(t, &recordingEvaluator{})
	handle := repoHandle("notes", clonePath)
	if err := eng.Stage(context.Background(), handle, []string{"README.md"}); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}

	changes, err := eng.ListLocalChanges(context.Background(), handle)
	if err != nil {
		t.Fatalf("ListLocalChanges failed: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected one change, got %v", changes)
	}
	if changes[0].Kind != ChangeKindDeleted || changes[0].Stage != StageStateStaged {
		t.Errorf("expected a staged deletion, got %+v", changes[0])
	}
}

func TestStageAll_CleanRepoFails(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	eng := newTestEngine(t, &recordingEvaluator{})

	err := eng.StageAll(context.Background(), repoHandle("notes", clonePath))
	if !IsKind(err, KindNothingToStage) {
		t.Errorf("expected KindNothingToStage, got %v", err)
	}
}

func TestStageAll_StagesEverything(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	if err := os.WriteFile(filepath.Join(clonePath, "README.md"), []byte("edited\n"), 0o644); err != nil {
		t.Fatalf("failed to edit tracked file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(clonePath, "new.txt"), []byte("new\n"), 0o644); err != nil {
		t.Fatalf("failed to write untracked file: %v", err)
	}

	eng := newTestEngine(t, &recordingEvaluator{})
	handle := repoHandle("notes", clonePath)
	if err := eng.StageAll(context.Background(), handle); err != nil {
		t.Fatalf("StageAll failed: %v", err)
	}

	changes, err := eng.ListLocalChanges(context.Background(), handle)
	if err != nil {
		t.Fatalf("ListLocalChanges failed: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("expected two changes, got %v", changes)
	}
	for _, c := range changes {
		if c.Stage != StageStateStaged {
			t.Errorf("expected %s to be staged, got %v", c.Path, c.Stage)
		}
	}
}

func TestDiscardLocalChanges(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	if err := os.WriteFile(filepath.Join(clonePath, "README.md"), []byte("edited\n"), 0o644); err != nil {
		t.Fatalf("failed to edit tracked file: %v", err)
	}
	if err := os.WriteFile(filepath.Join(clonePath, "junk.txt"), []byte("junk\n"), 0o644); err != nil {
		t.Fatalf("failed to write untracked file: %v", err)
	}
	nestedDir := filepath.Join(clonePath, "sub", "a")
	if err := os.MkdirAll(nestedDir, 0o755); err != nil {
		t.Fatalf("failed to create nested dirs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nestedDir, "b.txt"), []byte("nested\n"), 0o644); err != nil {
		t.Fatalf("failed to write nested untracked file: %v", err)
	}

	eng := newTestEngine(t, &recordingEvaluator{})
	handle := repoHandle("notes", clonePath)
	if err := eng.DiscardLocalChanges(context.Background(), handle); err != nil {
		t.Fatalf("DiscardLocalChanges failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(clonePath, "README.md"))
	if err != nil {
		t.Fatalf("failed to read tracked file: %v", err)
	}
	if string(content) != "initial\n" {
		t.Errorf("expected tracked edit reverted, got %q", content)
	}
	if _, err := os.Stat(filepath.Join(clonePath, "junk.txt")); !os.IsNotExist(err) {
		t.Errorf("expected untracked file removed, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(clonePath, "sub")); !os.IsNotExist(err) {
		t.Errorf("expected emptied directories pruned, stat err = %v", err)
	}

	changes, err := eng.ListLocalChanges(context.Background(), handle)
	if err != nil {
		t.Fatalf("ListLocalChanges failed: %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("expected a clean tree after discard, got %v", changes)
	}
}

func TestDiscardLocalChanges_CleanRepo(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	eng := newTestEngine(t, &recordingEvaluator{})

	if err := eng.DiscardLocalChanges(context.Background(), repoHandle("notes", clonePath)); err != nil {
		t.Fatalf("expected discard on a clean repo to succeed, got %v", err)
	}
}
