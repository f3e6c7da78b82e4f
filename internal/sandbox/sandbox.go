// Package sandbox mints and restores persisted directory grants for
// repository working trees.
//
// A token is bound when a repository is cloned and persisted on its handle.
// Resolving the token re-checks that the directory still sits inside the
// user's home and holds it open for the duration of the operation,
// mirroring the grant/release bracketing of platform folder permissions.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
)

// tokenScheme prefixes every token this package mints. The remainder is
// the slash-separated directory path relative to the user's home.
const tokenScheme = "home:"

// ErrInvalidToken reports a token this package did not mint or whose path
// escapes the home directory.
var ErrInvalidToken = errors.New("invalid sandbox token")

// Scope mints and resolves directory tokens confined to the user's home.
type Scope struct {
	home string
}

// NewScope returns a Scope rooted at the user's home directory.
func NewScope() *Scope {
	return &Scope{home: xdg.Home}
}

// Bind mints a persistable token for dir. The directory must exist and
// sit inside the user's home.
func (s *Scope) Bind(dir string) (string, error) {
	if s.home == "" {
		return "", fmt.Errorf("cannot determine home directory")
	}

	rel, err := s.relativeToHome(ExpandPath(dir))
	if err != nil {
		return "", err
	}

	// Opening the root proves the grant is usable before it is persisted.
	root, err := os.OpenRoot(filepath.Join(s.home, rel))
	if err != nil {
		return "", fmt.Errorf("directory is not accessible: %w", err)
	}
	root.Close()

	return tokenScheme + filepath.ToSlash(rel), nil
}

// Resolve returns the directory a token grants along with a release that
// drops the grant. The directory stays open between the two calls.
func (s *Scope) Resolve(token string) (string, func(), error) {
	rel, ok := strings.CutPrefix(token, tokenScheme)
	if !ok {
		return "", nil, fmt.Errorf("%w: unrecognized form", ErrInvalidToken)
	}

	rel = filepath.FromSlash(rel)
	if rel == "" || filepath.IsAbs(rel) || escapesParent(rel) {
		return "", nil, fmt.Errorf("%w: path escapes home", ErrInvalidToken)
	}
	if s.home == "" {
		return "", nil, fmt.Errorf("cannot determine home directory")
	}

	dir := filepath.Join(s.home, rel)
	root, err := os.OpenRoot(dir)
	if err != nil {
		return "", nil, fmt.Errorf("cannot restore access to %s: %w", dir, err)
	}

	return dir, func() { root.Close() }, nil
}

// relativeToHome verifies path sits inside the home directory and returns
// its home-relative form.
func (s *Scope) relativeToHome(path string) (string, error) {
	cleanHome := filepath.Clean(s.home)
	cleanPath := filepath.Clean(path)

	rel, err := filepath.Rel(cleanHome, cleanPath)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if escapesParent(rel) {
		return "", fmt.Errorf("path is outside home directory")
	}
	return rel, nil
}

// escapesParent reports whether a cleaned relative path points above its
// base directory.
func escapesParent(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
