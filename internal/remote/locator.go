// Package remote parses and normalizes SSH remote URLs.
//
// Git remotes reach this system in two spellings: the SCP-style shorthand
// (git@host:owner/repo.git) and the explicit ssh:// form
// (ssh://git@host:port/owner/repo.git). Both are reduced to the same
// Endpoint value so that every later stage (host trust, credential lookup,
// transport) works from one canonical identity. Parsing is pure and cheap,
// so results are recomputed on every operation instead of cached; remote
// configuration can change between calls.
package remote

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultUser is the login used when a URL does not name one.
	DefaultUser = "git"

	// DefaultPort is the SSH port used when a URL does not name one.
	DefaultPort = 22
)

// ErrInvalidURL reports a remote URL that is not an SSH remote or is
// missing a required component. Callers match it with errors.Is.
var ErrInvalidURL = errors.New("invalid remote URL")

// scpPattern matches the SCP-style shorthand: optional user, host, then a
// colon and the repository path. Example: git@example.com:team/project.git
var scpPattern = regexp.MustCompile(`^(?:([^@\s]+)@)?([^@:/\s]+):(.+)$`)

// Endpoint is the parsed, normalized identity of an SSH remote.
//
// Fields:
//   - User: Login name, DefaultUser when the URL carries none
//   - Host: Hostname or address, never empty
//   - Port: TCP port, DefaultPort when the URL carries none
//   - Path: Repository path without a leading slash
type Endpoint struct {
	User string
	Host string
	Port int
	Path string
}

// Parse extracts the SSH endpoint from a remote URL.
//
// Accepted forms:
//   - user@host:path (SCP-style, user optional)
//   - ssh://user@host:port/path (user and port optional)
//
// Any other scheme (https, git, file, ...) is rejected: this system speaks
// Git over SSH only. Returns an error wrapping ErrInvalidURL when the URL
// cannot be reduced to a host and a repository path.
func Parse(raw string) (Endpoint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Endpoint{}, fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	if strings.Contains(trimmed, "://") {
		return parseSchemeForm(trimmed)
	}
	return parseSCPForm(trimmed)
}

// parseSchemeForm handles the explicit ssh://user@host:port/path spelling.
func parseSchemeForm(raw string) (Endpoint, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if parsed.Scheme != "ssh" {
		return Endpoint{}, fmt.Errorf("%w: unsupported scheme %q (only ssh is supported)", ErrInvalidURL, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return Endpoint{}, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	port := DefaultPort
	if p := parsed.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: invalid port %q", ErrInvalidURL, p)
		}
	}

	user := DefaultUser
	if parsed.User != nil && parsed.User.Username() != "" {
		user = parsed.User.Username()
	}

	path := strings.TrimPrefix(parsed.Path, "/")
	if path == "" {
		return Endpoint{}, fmt.Errorf("%w: missing repository path", ErrInvalidURL)
	}

	return Endpoint{User: user, Host: parsed.Hostname(), Port: port, Path: path}, nil
}

// parseSCPForm handles the user@host:path shorthand.
func parseSCPForm(raw string) (Endpoint, error) {
	matches := scpPattern.FindStringSubmatch(raw)
	if matches == nil {
		return Endpoint{}, fmt.Errorf("%w: expected user@host:path or ssh://host/path, got %q", ErrInvalidURL, raw)
	}

	user := matches[1]
	if user == "" {
		user = DefaultUser
	}

	path := strings.TrimSpace(matches[3])
	if path == "" {
		return Endpoint{}, fmt.Errorf("%w: missing repository path", ErrInvalidURL)
	}

	return Endpoint{User: user, Host: matches[2], Port: DefaultPort, Path: path}, nil
}

// Canonical renders the endpoint in the explicit ssh://user@host:port/path
// form. Equivalent SCP-style and ssh:// inputs canonicalize identically.
func (e Endpoint) Canonical() string {
	return fmt.Sprintf("ssh://%s@%s:%d/%s", e.User, e.Host, e.Port, e.Path)
}

// RepoName returns the repository's short name: the final path segment with
// any .git suffix removed. Used as the default display name for clones.
func (e Endpoint) RepoName() string {
	path := strings.TrimSuffix(strings.TrimSuffix(e.Path, "/"), ".git")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}

// String implements fmt.Stringer as the canonical form.
func (e Endpoint) String() string {
	return e.Canonical()
}
