package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSyncAll_Empty(t *testing.T) {
	eng := newTestEngine(t, &recordingEvaluator{})

	if outcomes := eng.SyncAll(context.Background(), nil, TriggerManual); outcomes != nil {
		t.Errorf("expected nil outcomes for an empty batch, got %v", outcomes)
	}
}

func TestSyncAll_ContinuesPastFailures(t *testing.T) {
	dirtyPath, _ := createSyncedFixture(t)
	addUncommittedChange(t, dirtyPath)

	repos := []Repository{
		repoHandle("first-missing", filepath.Join(t.TempDir(), "gone")),
		repoHandle("dirty", dirtyPath),
		repoHandle("second-missing", filepath.Join(t.TempDir(), "gone")),
	}

	eng := newTestEngine(t, &recordingEvaluator{})
	outcomes := eng.SyncAll(context.Background(), repos, TriggerManual)

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	for i, repo := range repos {
		if outcomes[i].RepositoryID != repo.ID || outcomes[i].RepositoryName != repo.Name {
			t.Errorf("outcome[%d] is for %q, want %q", i, outcomes[i].RepositoryName, repo.Name)
		}
	}

	if outcomes[0].Err != nil {
		t.Errorf("expected a reported (not failed) outcome for a missing directory, got %v", outcomes[0].Err)
	}
	if outcomes[0].Result.State != StateFailed {
		t.Errorf("expected StateFailed for the missing directory, got %v", outcomes[0].Result.State)
	}

	if !IsKind(outcomes[1].Err, KindDirtyWorkingTree) {
		t.Errorf("expected the dirty repo to fail with KindDirtyWorkingTree, got %v", outcomes[1].Err)
	}
	if outcomes[1].Result.State != StateBlockedDirty {
		t.Errorf("expected StateBlockedDirty, got %v", outcomes[1].Result.State)
	}

	// The failure in the middle must not stop the batch.
	if outcomes[2].Result.Message != "Repository directory missing." {
		t.Errorf("expected the batch to continue, got %+v", outcomes[2].Result)
	}
}

func TestSyncAll_BackgroundDeferCountsAsSkip(t *testing.T) {
	clonePath, _ := createSyncedFixture(t)
	if err := os.WriteFile(filepath.Join(clonePath, DeferMarkerName), nil, 0o644); err != nil {
		t.Fatalf("failed to write defer marker: %v", err)
	}

	eng := newTestEngine(t, &recordingEvaluator{})
	outcomes := eng.SyncAll(context.Background(), []Repository{repoHandle("notes", clonePath)}, TriggerBackground)

	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if outcomes[0].Result.State != StateNetworkDeferred {
		t.Errorf("expected StateNetworkDeferred, got %v", outcomes[0].Result.State)
	}
}

func TestSyncOutcome_Message(t *testing.T) {
	withResult := SyncOutcome{Result: SyncResult{State: StateSuccess, Message: "Already up to date."}}
	if withResult.Message() != "Already up to date." {
		t.Errorf("unexpected message: %q", withResult.Message())
	}

	withErr := SyncOutcome{
		Result: SyncResult{State: StateBlockedDirty},
		Err:    newError(KindDirtyWorkingTree, "Uncommitted local changes are blocking the sync. Commit or discard them first."),
	}
	if withErr.Message() != "Uncommitted local changes are blocking the sync. Commit or discard them first." {
		t.Errorf("unexpected message: %q", withErr.Message())
	}

	plain := SyncOutcome{Result: SyncResult{State: StateSyncing}, Err: errors.New("x")}
	if plain.Message() != "x" {
		t.Errorf("unexpected message: %q", plain.Message())
	}
}
