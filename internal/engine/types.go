package engine

import "time"

// SyncState is the lifecycle state of a repository as reported by its most
// recent synchronization attempt. States persist on the repository handle so
// callers can render the last known outcome without running a new git
// operation. Only the engine's error-mapping step produces transitions.
type SyncState string

const (
	// StateIdle indicates no synchronization has been attempted yet.
	StateIdle SyncState = "idle"

	// StateSyncing indicates a synchronization is currently in flight.
	StateSyncing SyncState = "syncing"

	// StateSuccess indicates the last synchronization completed cleanly.
	StateSuccess SyncState = "success"

	// StateBlockedDirty indicates uncommitted local changes blocked the pull.
	StateBlockedDirty SyncState = "blocked-dirty"

	// StateBlockedDiverged indicates local and remote histories have both
	// moved and a fast-forward pull is impossible.
	StateBlockedDiverged SyncState = "blocked-diverged"

	// StateNetworkDeferred indicates a background sync skipped the network
	// because the working tree carries the defer marker.
	StateNetworkDeferred SyncState = "network-deferred"

	// StateFailed indicates the last synchronization failed for a reason not
	// covered by a more specific state.
	StateFailed SyncState = "failed"

	// StateAuthFailed indicates the host was not trusted or the remote
	// rejected the stored credentials.
	StateAuthFailed SyncState = "auth-failed"

	// StateHostMismatch indicates the host presented an identity conflicting
	// with its pinned fingerprint and the change was declined.
	StateHostMismatch SyncState = "host-mismatch"
)

// String returns the persisted form of the state.
func (s SyncState) String() string {
	return string(s)
}

// NeedsAttention reports whether the state describes a condition the user
// must resolve before the next synchronization can succeed.
func (s SyncState) NeedsAttention() bool {
	switch s {
	case StateBlockedDirty, StateBlockedDiverged, StateAuthFailed, StateHostMismatch:
		return true
	default:
		return false
	}
}

// SyncTrigger identifies what initiated a synchronization attempt.
type SyncTrigger int

const (
	// TriggerManual is an explicit user-initiated sync.
	TriggerManual SyncTrigger = iota

	// TriggerBackground is a scheduler-initiated sync. Background syncs
	// honor the per-repository network-defer marker.
	TriggerBackground
)

// String returns a human-readable name for the trigger.
func (t SyncTrigger) String() string {
	switch t {
	case TriggerManual:
		return "manual"
	case TriggerBackground:
		return "background"
	default:
		return "unknown"
	}
}

// Repository is the persisted handle for one synchronized repository.
//
// Handles are owned by the caller: the engine receives them by value per
// call and reports updated state back through results, holding nothing
// across calls except the lock table.
//
// Fields:
//   - ID: Unique identifier in format "sanitized-name-timestamp"
//   - Name: User-provided display name
//   - RemoteURL: Normalized SSH remote (canonical ssh:// form)
//   - LocalPath: Absolute path of the local working tree
//   - SandboxToken: Optional persisted access token resolved before any path use
//   - TrackedBranch: The branch kept in sync with origin
//   - AutoSync: Whether background synchronization covers this repository
//   - CreatedAt: Unix timestamp when the handle was created
//   - LastSyncAt: Unix timestamp of the last completed sync attempt
//   - LastSyncState: Outcome of the last sync attempt
//   - LastError: User-facing message from the last failed attempt
type Repository struct {
	ID            string    `yaml:"id"`
	Name          string    `yaml:"name"`
	RemoteURL     string    `yaml:"remote_url"`
	LocalPath     string    `yaml:"local_path"`
	SandboxToken  string    `yaml:"sandbox_token,omitempty"`
	TrackedBranch string    `yaml:"tracked_branch"`
	AutoSync      bool      `yaml:"auto_sync"`
	CreatedAt     int64     `yaml:"created_at"`
	LastSyncAt    *int64    `yaml:"last_sync_at,omitempty"`
	LastSyncState SyncState `yaml:"last_sync_state,omitempty"`
	LastError     string    `yaml:"last_error,omitempty"`
}

// SyncResult is the outcome of a sync or reset-to-remote call.
//
// Expected, user-actionable conditions (missing directory, deferred network,
// missing remote branch, unresolved tips) come back as results rather than
// errors so callers can display them inline; errors are reserved for
// conditions needing intervention (trust declined, dirty tree, divergence,
// I/O failure).
type SyncResult struct {
	State   SyncState
	Message string
}

// RemoteProbe is the parsed identity of a remote, derived fresh per call
// and discarded after use.
type RemoteProbe struct {
	Host          string
	Port          int
	NormalizedURL string
}

// ChangeKind classifies how a path differs from HEAD.
type ChangeKind int

const (
	// ChangeKindUnknown covers status flags with no clearer classification.
	ChangeKindUnknown ChangeKind = iota

	// ChangeKindAdded is a path absent from HEAD (untracked or newly staged).
	ChangeKindAdded

	// ChangeKindModified is a tracked path whose content changed.
	ChangeKindModified

	// ChangeKindDeleted is a tracked path removed from disk or index.
	ChangeKindDeleted

	// ChangeKindRenamed is a tracked path moved to a new location.
	ChangeKindRenamed

	// ChangeKindTypeChanged is a path whose object type changed (for example
	// a file replaced by a symlink).
	ChangeKindTypeChanged

	// ChangeKindConflicted is a path with unresolved merge conflicts.
	ChangeKindConflicted
)

// String returns a human-readable name for the change kind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeKindAdded:
		return "added"
	case ChangeKindModified:
		return "modified"
	case ChangeKindDeleted:
		return "deleted"
	case ChangeKindRenamed:
		return "renamed"
	case ChangeKindTypeChanged:
		return "type-changed"
	case ChangeKindConflicted:
		return "conflicted"
	default:
		return "unknown"
	}
}

// StageState describes which side of the index a change sits on.
type StageState int

const (
	// StageStateUnstaged means the change exists only in the working tree.
	StageStateUnstaged StageState = iota

	// StageStateStaged means the change is recorded in the index.
	StageStateStaged

	// StageStateBoth means the path carries index and working-tree changes,
	// or is conflicted.
	StageStateBoth
)

// String returns a human-readable name for the stage state.
func (s StageState) String() string {
	switch s {
	case StageStateStaged:
		return "staged"
	case StageStateBoth:
		return "both"
	default:
		return "unstaged"
	}
}

// LocalChange is one working-tree difference relative to HEAD, derived per
// call from status and never cached.
type LocalChange struct {
	Path  string
	Kind  ChangeKind
	Stage StageState
}

// CommitIdentity is the author identity recorded on commits. It lives in
// repository-local configuration; absence is an ordinary, detectable state
// everywhere except at the moment of commit.
type CommitIdentity struct {
	Name  string
	Email string
}

// CommitOutcome describes a commit created from the index.
type CommitOutcome struct {
	CommitID    string
	Message     string
	CommittedAt time.Time
}

// PushOutcome describes a completed push.
type PushOutcome struct {
	RemoteName string
	BranchName string
	PushedAt   time.Time
}

// CloneRequest describes a repository to clone and register.
//
// Fields:
//   - RemoteURL: SSH remote in scp-style or ssh:// form
//   - Name: Display name; empty derives one from the remote path, and the
//     clone directory name derives from it in turn
//   - BaseDir: Directory the clone destination is created under
//   - SandboxToken: Optional access token resolved to reach BaseDir
//   - Branch: Branch to track; empty keeps the remote's default
//   - AutoSync: Whether background synchronization covers the new handle
type CloneRequest struct {
	RemoteURL    string
	Name         string
	BaseDir      string
	SandboxToken string
	Branch       string
	AutoSync     bool
}

// SandboxAccess brokers filesystem access on platforms that gate it behind
// persisted grants. Resolve returns the directory a token grants plus a
// release function bracketing the operation; Bind mints a token for a
// directory so access survives restarts. Engines built without a
// SandboxAccess use handle paths directly and ignore tokens.
type SandboxAccess interface {
	Resolve(token string) (path string, release func(), err error)
	Bind(dir string) (token string, err error)
}
