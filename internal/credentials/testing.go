package credentials

import (
	"fmt"
	"testing"

	"github.com/zalando/go-keyring"
)

// testing.go provides helpers for exercising the OS keyring safely in
// tests: each test gets its own service namespace so it cannot touch
// production entries or race a parallel test, and cleanup is registered
// automatically. Tests that need the real keyring call SetupTestKeyring
// first and are skipped where no keyring backend is available (CI).

// TestKeyringProvider wraps KeyringProvider with per-test isolation and
// automatic cleanup of every host stored through it.
type TestKeyringProvider struct {
	*KeyringProvider
	t     *testing.T
	hosts []string
}

// NewTestKeyringProvider creates an isolated provider for one test.
func NewTestKeyringProvider(t *testing.T) *TestKeyringProvider {
	t.Helper()

	tp := &TestKeyringProvider{
		KeyringProvider: &KeyringProvider{
			service: fmt.Sprintf("reposync-test-%s", t.Name()),
		},
		t: t,
	}

	t.Cleanup(func() {
		tp.CleanupEntries()
	})

	return tp
}

// Store records the host for cleanup before delegating to the real
// provider.
func (tp *TestKeyringProvider) Store(host string, material Material) error {
	tp.hosts = append(tp.hosts, host)
	return tp.KeyringProvider.Store(host, material)
}

// CleanupEntries removes every entry stored through this provider. Runs
// automatically via t.Cleanup but may be called manually.
func (tp *TestKeyringProvider) CleanupEntries() {
	tp.t.Helper()
	for _, host := range tp.hosts {
		_ = tp.KeyringProvider.Delete(host)
	}
	tp.hosts = nil
}

// SetupTestKeyring skips the test when no keyring backend is available
// (headless CI without a secret service). Returns a cleanup function for
// the availability probe entry.
func SetupTestKeyring(t *testing.T) func() {
	t.Helper()

	testService := fmt.Sprintf("reposync-keyring-test-%s", t.Name())
	testKey := "test_availability"

	if err := keyring.Set(testService, testKey, "test_value"); err != nil {
		t.Skipf("Keyring not available, skipping test: %v", err)
	}

	return func() {
		_ = keyring.Delete(testService, testKey)
	}
}
