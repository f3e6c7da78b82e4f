package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	git "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/transport"

	"reposync/internal/credentials"
	"reposync/internal/hosttrust"
	"reposync/internal/remote"
)

// ErrorKind classifies engine failures into the stable categories surfaced
// to users. Every error returned by an Engine operation is an *Error
// carrying one of these kinds.
type ErrorKind int

const (
	// KindInvalidRemoteURL means the remote locator could not be parsed or
	// names a non-SSH scheme.
	KindInvalidRemoteURL ErrorKind = iota

	// KindHostTrustRejected means the user or policy declined the host's
	// fingerprint.
	KindHostTrustRejected

	// KindKeyNotFound means no credential is registered for the host.
	KindKeyNotFound

	// KindKeychainFailure means credential material is malformed or the
	// secure store is inaccessible.
	KindKeychainFailure

	// KindDirtyWorkingTree means uncommitted local changes blocked a sync.
	KindDirtyWorkingTree

	// KindDivergedBranch means local and remote histories are incomparable.
	KindDivergedBranch

	// KindHostMismatch means the host presented an identity conflicting
	// with its pinned fingerprint and the change was declined.
	KindHostMismatch

	// KindNothingToStage means the requested staging set resolved empty.
	KindNothingToStage

	// KindNothingToCommit means the index holds no staged changes.
	KindNothingToCommit

	// KindCommitIdentityMissing means no usable user.name/user.email is set.
	KindCommitIdentityMissing

	// KindInvalidCommitMessage means the commit message is blank.
	KindInvalidCommitMessage

	// KindSyncBlocked means the remote refused the operation, typically an
	// authentication or authorization failure the user must resolve.
	KindSyncBlocked

	// KindIOFailure covers filesystem, path resolution, and network
	// environment failures.
	KindIOFailure
)

// String returns a short label for the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindInvalidRemoteURL:
		return "invalid remote URL"
	case KindHostTrustRejected:
		return "host trust rejected"
	case KindKeyNotFound:
		return "key not found"
	case KindKeychainFailure:
		return "keychain failure"
	case KindDirtyWorkingTree:
		return "dirty working tree"
	case KindDivergedBranch:
		return "diverged branch"
	case KindHostMismatch:
		return "host mismatch"
	case KindNothingToStage:
		return "nothing to stage"
	case KindNothingToCommit:
		return "nothing to commit"
	case KindCommitIdentityMissing:
		return "commit identity missing"
	case KindInvalidCommitMessage:
		return "invalid commit message"
	case KindSyncBlocked:
		return "sync blocked"
	case KindIOFailure:
		return "I/O failure"
	default:
		return "unknown"
	}
}

// Error is the engine's error type. Message is always a complete sentence
// suitable for direct display; Err preserves the underlying cause for
// errors.Is/As matching and logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds a taxonomy error with no underlying cause.
func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// wrapError builds a taxonomy error around an underlying cause.
func wrapError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind carried by err. The second return is
// false when err carries no *Error.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// ErrorMessage returns the display sentence for an engine error, falling
// back to the plain error text for anything else.
func ErrorMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// StateForError maps a failed operation's error to the sync state persisted
// on the repository handle.
func StateForError(err error) SyncState {
	kind, ok := KindOf(err)
	if !ok {
		return StateFailed
	}
	switch kind {
	case KindDirtyWorkingTree:
		return StateBlockedDirty
	case KindDivergedBranch:
		return StateBlockedDiverged
	case KindHostMismatch:
		return StateHostMismatch
	case KindHostTrustRejected, KindKeyNotFound, KindSyncBlocked:
		return StateAuthFailed
	default:
		return StateFailed
	}
}

// Substring fallbacks for failures go-git reports as plain strings. The
// trust sentinels appear first so a rejection that crossed the transport
// boundary as text still maps to its own kind.
var (
	mismatchErrorPatterns = []string{
		"host fingerprint mismatch",
	}
	trustErrorPatterns = []string{
		"host trust rejected",
		"knownhosts:",
		"host key verification failed",
	}
	authErrorPatterns = []string{
		"unable to authenticate",
		"permission denied",
		"access denied",
		"authentication required",
		"authorization failed",
		"handshake failed",
		"unauthorized",
	}
	divergedErrorPatterns = []string{
		"non-fast-forward",
	}
	networkErrorPatterns = []string{
		"connection refused",
		"connection reset",
		"no route to host",
		"network is unreachable",
		"i/o timeout",
		"name resolution",
		"no such host",
	}
)

// translateError converts a failure from a collaborator (go-git, the trust
// evaluator, the credential provider, the locator) into the domain
// taxonomy. All classification lives here so callers outside the package
// never see a collaborator's native error, and the sentinel and substring
// rules cannot drift apart across operations.
func translateError(err error) error {
	var already *Error
	if errors.As(err, &already) {
		return err
	}

	switch {
	case errors.Is(err, hosttrust.ErrMismatch):
		return wrapError(KindHostMismatch, "The host's identity changed and the new fingerprint was declined.", err)
	case errors.Is(err, hosttrust.ErrRejected):
		return wrapError(KindHostTrustRejected, "Connecting to the host was declined.", err)
	case errors.Is(err, credentials.ErrKeyNotFound):
		return wrapError(KindKeyNotFound, "No SSH key is stored for this host.", err)
	case errors.Is(err, remote.ErrInvalidURL):
		return wrapError(KindInvalidRemoteURL, "The remote URL is not a valid SSH locator.", err)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return wrapError(KindIOFailure, "The operation was cancelled.", err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return wrapError(KindSyncBlocked, "The remote repository was not found on the host.", err)
	case errors.Is(err, transport.ErrAuthenticationRequired) || errors.Is(err, transport.ErrAuthorizationFailed):
		return wrapError(KindSyncBlocked, "The remote rejected the stored credentials. Make sure this key's public half is registered on the host.", err)
	case errors.Is(err, git.ErrRepositoryNotExists):
		return wrapError(KindIOFailure, "The directory is not a git repository.", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, mismatchErrorPatterns):
		return wrapError(KindHostMismatch, "The host's identity changed and the new fingerprint was declined.", err)
	case containsAny(msg, trustErrorPatterns):
		return wrapError(KindHostTrustRejected, "Connecting to the host was declined.", err)
	case containsAny(msg, authErrorPatterns):
		return wrapError(KindSyncBlocked, "The remote rejected the stored credentials. Make sure this key's public half is registered on the host.", err)
	case containsAny(msg, divergedErrorPatterns):
		return wrapError(KindDivergedBranch, "The remote has commits that are not present locally. Sync before pushing.", err)
	case containsAny(msg, networkErrorPatterns):
		return wrapError(KindIOFailure, "The remote host could not be reached.", err)
	}

	return wrapError(KindIOFailure, "The operation failed.", err)
}

// containsAny reports whether msg contains any of the patterns. msg must
// already be lowercased.
func containsAny(msg string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
