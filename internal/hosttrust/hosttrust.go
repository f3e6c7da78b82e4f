// Package hosttrust implements trust-on-first-use (TOFU) verification of
// SSH hosts.
//
// The first contact with a host records a pinning record (host, port,
// algorithm, fingerprint, accepted-at) after an explicit approval. Later
// contacts pass silently while the presented fingerprint matches the pin
// and re-prompt when it differs, so a changed server key is always surfaced
// to the user before any credential is exercised against it.
//
// Two fingerprint sources feed the same evaluator. Before any network I/O
// the sync engine evaluates a synthetic fingerprint derived from the
// host:port identity string, which preserves fail-fast prompting. During
// the SSH handshake the transport's host-key callback evaluates the real
// server key fingerprint. The two use distinct algorithm labels, so both
// pin kinds coexist per host without shadowing each other.
package hosttrust

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/crypto/ssh"
	"gopkg.in/yaml.v3"

	"reposync/internal/logging"
)

// ErrRejected reports that the user or policy declined to trust a host.
// Callers match it with errors.Is.
var ErrRejected = errors.New("host trust rejected")

// ErrMismatch reports a declined prompt for a host whose fingerprint no
// longer matches its pinned record. Errors carrying it also carry
// ErrRejected; the distinction lets callers surface key changes louder
// than a plain first-contact decline.
var ErrMismatch = errors.New("host fingerprint mismatch")

// AlgorithmHostIdentity labels synthetic fingerprints computed from the
// host:port identity string rather than a handshake key.
const AlgorithmHostIdentity = "host-identity"

// Evaluator decides whether a host presenting a fingerprint may be
// contacted. A nil return means trusted; a rejection wraps ErrRejected.
// Implementations may suspend indefinitely on an interactive prompt.
type Evaluator interface {
	Evaluate(ctx context.Context, host string, port int, fingerprint, algorithm string) error
}

// Record is one pinned host fingerprint.
type Record struct {
	Host        string    `yaml:"host"`
	Port        int       `yaml:"port"`
	Algorithm   string    `yaml:"algorithm"`
	Fingerprint string    `yaml:"fingerprint"`
	AcceptedAt  time.Time `yaml:"accepted_at"`
}

// Prompt carries everything an interactive decision needs.
//
// Known is nil on first contact and holds the previous pin when the
// presented fingerprint differs from it (a mismatch, the suspicious case).
type Prompt struct {
	Host        string
	Port        int
	Algorithm   string
	Fingerprint string
	Known       *Record
}

// PromptFunc resolves a trust prompt. Returning false declines the host.
// The context cancels a pending prompt.
type PromptFunc func(ctx context.Context, p Prompt) (bool, error)

// AcceptAll returns a PromptFunc that approves every prompt. Intended for
// non-interactive callers that accept the first-use pin policy as-is.
func AcceptAll() PromptFunc {
	return func(context.Context, Prompt) (bool, error) {
		return true, nil
	}
}

// Store persists pinning records keyed by (host, port, algorithm).
type Store interface {
	Lookup(host string, port int, algorithm string) (Record, bool, error)
	Pin(rec Record) error
	All() ([]Record, error)
	Forget(host string, port int) error
}

// TOFU is the trust-on-first-use Evaluator over a Store and a PromptFunc.
type TOFU struct {
	store  Store
	prompt PromptFunc
	logger *logging.AppLogger
}

// NewTOFU assembles the evaluator. A nil logger falls back to the package
// default.
func NewTOFU(store Store, prompt PromptFunc, logger *logging.AppLogger) *TOFU {
	if logger == nil {
		logger = logging.GetDefault()
	}
	return &TOFU{store: store, prompt: prompt, logger: logger}
}

// Evaluate implements Evaluator.
//
// Matching pins pass silently. First contact and fingerprint mismatches go
// through the prompt; acceptance (re-)pins the record, decline returns an
// error wrapping ErrRejected.
func (t *TOFU) Evaluate(ctx context.Context, host string, port int, fingerprint, algorithm string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	known, found, err := t.store.Lookup(host, port, algorithm)
	if err != nil {
		return fmt.Errorf("trust store lookup failed: %w", err)
	}

	if found && known.Fingerprint == fingerprint {
		t.logger.Debug("Host fingerprint matches pinned record", "host", host, "port", port, "algorithm", algorithm)
		return nil
	}

	prompt := Prompt{
		Host:        host,
		Port:        port,
		Algorithm:   algorithm,
		Fingerprint: fingerprint,
	}
	if found {
		prompt.Known = &known
		t.logger.Warn("Host fingerprint changed since it was pinned",
			"host", host, "port", port, "algorithm", algorithm)
	}

	accepted, err := t.prompt(ctx, prompt)
	if err != nil {
		return fmt.Errorf("trust prompt failed: %w", err)
	}
	if !accepted {
		if found {
			return fmt.Errorf("%w: %w: %s:%d (%s)", ErrRejected, ErrMismatch, host, port, algorithm)
		}
		return fmt.Errorf("%w: %s:%d (%s)", ErrRejected, host, port, algorithm)
	}

	rec := Record{
		Host:        host,
		Port:        port,
		Algorithm:   algorithm,
		Fingerprint: fingerprint,
		AcceptedAt:  time.Now().UTC(),
	}
	if err := t.store.Pin(rec); err != nil {
		return fmt.Errorf("failed to pin host fingerprint: %w", err)
	}

	t.logger.Info("Pinned host fingerprint", "host", host, "port", port, "algorithm", algorithm, "fingerprint", fingerprint)
	return nil
}

// SyntheticFingerprint derives the pre-flight fingerprint from the host and
// port alone, in the same SHA256:<unpadded base64> shape OpenSSH prints.
// It identifies the endpoint, not the server's actual key; the handshake
// callback covers the latter.
func SyntheticFingerprint(host string, port int) string {
	sum := sha256.Sum256([]byte(net.JoinHostPort(strings.ToLower(host), strconv.Itoa(port))))
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(sum[:])
}

// Callback adapts the evaluator into an SSH transport host-key callback,
// fingerprinting the key actually presented during the handshake.
func Callback(ctx context.Context, eval Evaluator) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		host, port := splitHostPort(hostname, remote)
		return eval.Evaluate(ctx, host, port, ssh.FingerprintSHA256(key), key.Type())
	}
}

// splitHostPort extracts host and port from the callback's hostname,
// falling back to the connection address and then to the default SSH port.
func splitHostPort(hostname string, remote net.Addr) (string, int) {
	host, portText, err := net.SplitHostPort(hostname)
	if err != nil {
		if remote != nil {
			if h, p, err2 := net.SplitHostPort(remote.String()); err2 == nil {
				host, portText = h, p
			}
		}
		if host == "" {
			host = hostname
		}
	}

	port := 22
	if portText != "" {
		if parsed, err := strconv.Atoi(portText); err == nil {
			port = parsed
		}
	}
	return strings.Trim(host, "[]"), port
}

// FileStore persists records as a YAML document. Access is serialized by an
// internal mutex; each mutation rewrites the whole file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// storeDocument is the on-disk YAML shape.
type storeDocument struct {
	Hosts []Record `yaml:"hosts"`
}

// DefaultStorePath returns the pin store location in the user's data
// directory (e.g. ~/.local/share/reposync/trusted_hosts.yaml).
func DefaultStorePath() string {
	return filepath.Join(xdg.DataHome, "reposync", "trusted_hosts.yaml")
}

// NewFileStore opens a store at the given path. The file is created on the
// first Pin.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Lookup implements Store.
func (s *FileStore) Lookup(host string, port int, algorithm string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return Record{}, false, err
	}
	for _, rec := range doc.Hosts {
		if sameEndpoint(rec, host, port) && rec.Algorithm == algorithm {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// Pin implements Store, replacing any record with the same host, port, and
// algorithm.
func (s *FileStore) Pin(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range doc.Hosts {
		if sameEndpoint(doc.Hosts[i], rec.Host, rec.Port) && doc.Hosts[i].Algorithm == rec.Algorithm {
			doc.Hosts[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Hosts = append(doc.Hosts, rec)
	}

	return s.save(doc)
}

// All implements Store.
func (s *FileStore) All() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Hosts, nil
}

// Forget implements Store, dropping every algorithm's record for the
// endpoint.
func (s *FileStore) Forget(host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	kept := doc.Hosts[:0]
	for _, rec := range doc.Hosts {
		if !sameEndpoint(rec, host, port) {
			kept = append(kept, rec)
		}
	}
	doc.Hosts = kept

	return s.save(doc)
}

func sameEndpoint(rec Record, host string, port int) bool {
	return strings.EqualFold(rec.Host, host) && rec.Port == port
}

func (s *FileStore) load() (storeDocument, error) {
	var doc storeDocument

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("failed to read trust store: %w", err)
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("failed to parse trust store: %w", err)
	}
	return doc, nil
}

func (s *FileStore) save(doc storeDocument) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create trust store directory: %w", err)
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode trust store: %w", err)
	}

	// Restrictive permissions: the store records trust decisions.
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write trust store: %w", err)
	}
	return nil
}
