// Package credentials resolves SSH signing material for remote hosts.
//
// The Provider interface is what the sync engine consumes: given a host and
// an optional username hint it returns the private key bytes, username, and
// passphrase to authenticate with. The keyring-backed implementation keeps
// material in the OS credential store (macOS Keychain, Windows Credential
// Manager, Linux Secret Service); nothing is cached in-process, so key
// rotation and revocation take effect on the next operation.
package credentials

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// Service name for the OS credential store
	credentialService = "reposync"

	// Per-host entry names inside the service namespace
	privateKeyEntry = "sshkey"
	usernameEntry   = "sshuser"
	passphraseEntry = "sshpass"
)

// ErrKeyNotFound reports that no credential is registered for a host.
// Callers match it with errors.Is.
var ErrKeyNotFound = errors.New("no credential registered for host")

// Material is the signing material for one authenticated operation.
//
// Created fresh per operation and consumed immediately by the key encoder;
// the private key bytes must never be logged or written anywhere but the
// ephemeral key file.
type Material struct {
	Username   string
	PrivateKey []byte
	Passphrase string
}

// Provider resolves credential material for a host. usernameHint is the
// login the remote URL named, if any; implementations may override it with
// a stored username.
type Provider interface {
	Credential(ctx context.Context, host, usernameHint string) (Material, error)
}

// KeyringProvider stores and resolves per-host SSH keys in the OS
// credential store.
type KeyringProvider struct {
	service string
}

// NewKeyringProvider creates a provider using the application's service
// namespace in the OS credential store.
func NewKeyringProvider() *KeyringProvider {
	return &KeyringProvider{service: credentialService}
}

// Credential implements Provider.
//
// The private key is required; username and passphrase entries are
// optional. A stored username wins over the hint, and the hint wins over
// nothing. Returns ErrKeyNotFound when no key is registered for the host.
func (p *KeyringProvider) Credential(ctx context.Context, host, usernameHint string) (Material, error) {
	if err := ctx.Err(); err != nil {
		return Material{}, err
	}

	host = normalizeHost(host)
	if host == "" {
		return Material{}, fmt.Errorf("host cannot be empty")
	}

	encoded, err := keyring.Get(p.service, entryName(privateKeyEntry, host))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return Material{}, fmt.Errorf("%w: %s", ErrKeyNotFound, host)
		}
		return Material{}, fmt.Errorf("failed to read key from credential store: %w", err)
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return Material{}, fmt.Errorf("stored key for %s is corrupted: %w", host, err)
	}
	if len(key) == 0 {
		return Material{}, fmt.Errorf("stored key for %s is empty", host)
	}

	material := Material{PrivateKey: key, Username: strings.TrimSpace(usernameHint)}

	if username, err := keyring.Get(p.service, entryName(usernameEntry, host)); err == nil && strings.TrimSpace(username) != "" {
		material.Username = strings.TrimSpace(username)
	}
	if passphrase, err := keyring.Get(p.service, entryName(passphraseEntry, host)); err == nil {
		material.Passphrase = passphrase
	}

	return material, nil
}

// Store registers material for a host, replacing any previous entry.
// Empty username and passphrase remove their optional entries.
func (p *KeyringProvider) Store(host string, material Material) error {
	host = normalizeHost(host)
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if len(material.PrivateKey) == 0 {
		return fmt.Errorf("private key cannot be empty")
	}

	encoded := base64.StdEncoding.EncodeToString(material.PrivateKey)
	if err := keyring.Set(p.service, entryName(privateKeyEntry, host), encoded); err != nil {
		return fmt.Errorf("failed to store key in credential store: %w", err)
	}

	if username := strings.TrimSpace(material.Username); username != "" {
		if err := keyring.Set(p.service, entryName(usernameEntry, host), username); err != nil {
			return fmt.Errorf("failed to store username in credential store: %w", err)
		}
	} else {
		_ = keyring.Delete(p.service, entryName(usernameEntry, host))
	}

	if material.Passphrase != "" {
		if err := keyring.Set(p.service, entryName(passphraseEntry, host), material.Passphrase); err != nil {
			return fmt.Errorf("failed to store passphrase in credential store: %w", err)
		}
	} else {
		_ = keyring.Delete(p.service, entryName(passphraseEntry, host))
	}

	return nil
}

// Delete removes every entry for a host. Missing entries are not an error.
func (p *KeyringProvider) Delete(host string) error {
	host = normalizeHost(host)
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	for _, entry := range []string{privateKeyEntry, usernameEntry, passphraseEntry} {
		if err := keyring.Delete(p.service, entryName(entry, host)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to delete %s entry from credential store: %w", entry, err)
		}
	}
	return nil
}

// Has reports whether a key is registered for the host without retrieving
// it. Useful for setup flows.
func (p *KeyringProvider) Has(host string) bool {
	_, err := keyring.Get(p.service, entryName(privateKeyEntry, normalizeHost(host)))
	return err == nil
}

func entryName(kind, host string) string {
	return kind + ":" + host
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSpace(host))
}

// StaticProvider serves material from an in-memory map keyed by host.
// Useful for tests and for embedders that manage keys themselves.
type StaticProvider struct {
	Materials map[string]Material
}

// Credential implements Provider.
func (p *StaticProvider) Credential(ctx context.Context, host, usernameHint string) (Material, error) {
	if err := ctx.Err(); err != nil {
		return Material{}, err
	}

	material, ok := p.Materials[normalizeHost(host)]
	if !ok {
		return Material{}, fmt.Errorf("%w: %s", ErrKeyNotFound, host)
	}
	if material.Username == "" {
		material.Username = strings.TrimSpace(usernameHint)
	}
	return material, nil
}
