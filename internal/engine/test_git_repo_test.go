package engine

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"

	"reposync/internal/credentials"
	"reposync/internal/hosttrust"
	"reposync/internal/logging"
)

const testHost = "git.example.com"

// evalCall records one trust evaluation for assertions.
type evalCall struct {
	host        string
	port        int
	fingerprint string
	algorithm   string
}

// recordingEvaluator is a trust evaluator that records every call and
// returns a fixed result.
type recordingEvaluator struct {
	calls []evalCall
	err   error
}

func (r *recordingEvaluator) Evaluate(ctx context.Context, host string, port int, fingerprint, algorithm string) error {
	r.calls = append(r.calls, evalCall{host: host, port: port, fingerprint: fingerprint, algorithm: algorithm})
	return r.err
}

// testKeyMaterial returns a deterministic ed25519 seed usable by the key
// encoder and the SSH transport parser.
func testKeyMaterial() credentials.Material {
	return credentials.Material{
		Username:   "git",
		PrivateKey: bytes.Repeat([]byte{0x42}, 32),
	}
}

// fakeSandbox is a SandboxAccess that resolves every token to a fixed
// directory and records its traffic.
type fakeSandbox struct {
	resolved  string
	bindToken string
	err       error

	resolves []string
	binds    []string
	released int
}

func (f *fakeSandbox) Resolve(token string) (string, func(), error) {
	f.resolves = append(f.resolves, token)
	if f.err != nil {
		return "", nil, f.err
	}
	return f.resolved, func() { f.released++ }, nil
}

func (f *fakeSandbox) Bind(dir string) (string, error) {
	f.binds = append(f.binds, dir)
	if f.err != nil {
		return "", f.err
	}
	return f.bindToken, nil
}

// newTestEngine builds an engine with the given evaluator, serving the test
// key for testHost. Close runs automatically when the test finishes.
func newTestEngine(t *testing.T, trust hosttrust.Evaluator) *Engine {
	return newSandboxedEngine(t, trust, nil)
}

// newSandboxedEngine is newTestEngine with a sandbox access broker wired
// in.
func newSandboxedEngine(t *testing.T, trust hosttrust.Evaluator, box SandboxAccess) *Engine {
	t.Helper()

	logger, _ := logging.NewTestLogger()
	eng, err := New(Options{
		Trust: trust,
		Credentials: &credentials.StaticProvider{
			Materials: map[string]credentials.Material{testHost: testKeyMaterial()},
		},
		Sandbox: box,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("failed to build engine: %v", err)
	}
	t.Cleanup(func() {
		eng.Close()
	})
	return eng
}

// repoHandle builds a registered-repository handle pointing at path, with a
// remote on testHost and "main" as the tracked branch.
func repoHandle(name, path string) Repository {
	return Repository{
		ID:            name + "-1700000000",
		Name:          name,
		RemoteURL:     "git@" + testHost + ":team/" + name + ".git",
		LocalPath:     path,
		TrackedBranch: "main",
		AutoSync:      true,
		CreatedAt:     1700000000,
	}
}

// createBareRemoteRepo initializes a bare repository usable as a local
// "origin" remote. Returns its path.
func createBareRemoteRepo(t *testing.T) string {
	t.Helper()

	remotePath := t.TempDir()
	if _, err := git.PlainInit(remotePath, true, git.WithDefaultBranch(plumbing.Main)); err != nil {
		t.Fatalf("failed to init bare repo: %v", err)
	}
	return remotePath
}

// createSeedRepoWithOrigin creates a repository with an initial commit on
// "main" and the given bare repo as its "origin" remote. The seed repo is
// where tests manufacture upstream history before pushing it.
func createSeedRepoWithOrigin(t *testing.T, originPath string) string {
	t.Helper()

	repoPath := t.TempDir()
	repo, err := git.PlainInit(repoPath, false, git.WithDefaultBranch(plumbing.Main))
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}

	commitFile(t, repoPath, "README.md", "initial\n", "initial commit")

	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{originPath},
	}); err != nil {
		t.Fatalf("failed to add origin remote: %v", err)
	}
	return repoPath
}

// commitFile writes content to name inside repoPath, stages it, and commits.
// Returns the new commit hash.
func commitFile(t *testing.T, repoPath, name, content, message string) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		t.Fatalf("failed to open repo: %v", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}

	filePath := filepath.Join(repoPath, name)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		t.Fatalf("failed to create parent dirs: %v", err)
	}
	if err := os.WriteFile(filePath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := worktree.Add(name); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "test",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return hash
}

// pushToOrigin pushes the given branch to the origin remote.
func pushToOrigin(t *testing.T, repoPath string, branch string) {
	t.Helper()

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		t.Fatalf("failed to open repo: %v", err)
	}

	refSpec := config.RefSpec(
		plumbing.NewBranchReferenceName(branch).String() +
			":" +
			plumbing.NewBranchReferenceName(branch).String(),
	)
	if err := repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
	}); err != nil && err != git.NoErrAlreadyUpToDate {
		t.Fatalf("failed to push to origin: %v", err)
	}
}

// createLocalCloneFromOrigin clones from the given origin path into a new
// temp dir and returns the clone path.
func createLocalCloneFromOrigin(t *testing.T, originPath string) string {
	t.Helper()

	clonePath := t.TempDir()
	if _, err := git.PlainClone(clonePath, &git.CloneOptions{
		URL: originPath,
	}); err != nil {
		t.Fatalf("failed to clone from origin: %v", err)
	}
	return clonePath
}

// createSyncedFixture builds a bare origin with one commit on main and a
// clone of it. Returns the clone path and the seed repo path for adding
// more upstream history.
func createSyncedFixture(t *testing.T) (clonePath, seedPath string) {
	t.Helper()

	originPath := createBareRemoteRepo(t)
	seedPath = createSeedRepoWithOrigin(t, originPath)
	pushToOrigin(t, seedPath, "main")
	clonePath = createLocalCloneFromOrigin(t, originPath)
	return clonePath, seedPath
}

// fetchOrigin runs a plain fetch in the repository at path so the
// refs/remotes/origin namespace reflects the latest pushed state.
func fetchOrigin(t *testing.T, path string) {
	t.Helper()

	repo, err := git.PlainOpen(path)
	if err != nil {
		t.Fatalf("failed to open repo: %v", err)
	}
	if err := repo.Fetch(&git.FetchOptions{RemoteName: "origin"}); err != nil && err != git.NoErrAlreadyUpToDate {
		t.Fatalf("failed to fetch origin: %v", err)
	}
}

// addUncommittedChange creates an uncommitted file to make the repo dirty.
func addUncommittedChange(t *testing.T, repoPath string) {
	t.Helper()

	filePath := filepath.Join(repoPath, "dirty.txt")
	if err := os.WriteFile(filePath, []byte("dirty\n"), 0o644); err != nil {
		t.Fatalf("failed to write dirty file: %v", err)
	}
}

// headHash returns the repository's current HEAD commit hash.
func headHash(t *testing.T, repoPath string) plumbing.Hash {
	t.Helper()

	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		t.Fatalf("failed to open repo: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("failed to resolve HEAD: %v", err)
	}
	return head.Hash()
}
