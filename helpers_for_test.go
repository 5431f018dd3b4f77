package webpath

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"
)

// baseTime is a whole-second timestamp tests build mtimes from.
var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// generateTestRSAKey creates a test RSA private key and returns both the
// PEM-encoded key and a path to a temp file containing it.
func generateTestRSAKey(t testing.TB) (string, string) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privateKeyPEM := string(pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	}))

	keyPath := filepath.Join(t.TempDir(), "test_key")
	require.NoError(t, os.WriteFile(keyPath, []byte(privateKeyPEM), 0o600))

	return privateKeyPEM, keyPath
}

// generateTestPublicKey returns the authorized_keys line for a PEM RSA key.
func generateTestPublicKey(t testing.TB, privateKeyPEM string) string {
	t.Helper()

	block, _ := pem.Decode([]byte(privateKeyPEM))
	require.NotNil(t, block, "failed to parse PEM block")

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	require.NoError(t, err)

	publicKey, err := gossh.NewPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)

	return string(gossh.MarshalAuthorizedKey(publicKey))
}

// newLocalTree creates files on an in-memory filesystem under root. Every
// file gets baseTime as its mtime unless mtimes overrides it.
func newLocalTree(t testing.TB, root string, files map[string]string, mtimes map[string]time.Time) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(root, 0o755))
	for rel, content := range files {
		writeLocal(t, fs, filepath.Join(root, filepath.FromSlash(rel)), content, baseTime)
	}
	for rel, mtime := range mtimes {
		name := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, fs.Chtimes(name, mtime, mtime))
	}
	return fs
}

// writeLocal writes content to name, creating parents, and sets its mtime.
func writeLocal(t testing.TB, fs afero.Fs, name, content string, mtime time.Time) {
	t.Helper()

	require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0o755))
	require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	require.NoError(t, fs.Chtimes(name, mtime, mtime))
}

// readLocal returns the content of name or fails the test.
func readLocal(t testing.TB, fs afero.Fs, name string) string {
	t.Helper()

	data, err := afero.ReadFile(fs, name)
	require.NoError(t, err)
	return string(data)
}

// localRels lists every path under root on fs, relative and slash-separated.
func localRels(t testing.TB, fs afero.Fs, root string) []string {
	t.Helper()

	var rels []string
	err := afero.Walk(fs, root, func(p string, _ os.FileInfo, err error) error {
		if err != nil || p == root {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rels = append(rels, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	sort.Strings(rels)
	return rels
}

// withMockSFTPClient creates a client over an in-memory remote for testing.
func withMockSFTPClient(t *testing.T, fn func(t *testing.T, client *Client, mock *MockSFTPClient)) {
	t.Helper()

	mock := NewMockSFTPClient()
	client := NewClientWithSFTP(mock, nil)
	defer client.Close()

	fn(t, client, mock)
}

// newTestSyncer wires a Syncer to an in-memory remote and the given local fs.
func newTestSyncer(t *testing.T, local afero.Fs) (*Syncer, *MockSFTPClient) {
	t.Helper()

	mock := NewMockSFTPClient()
	client := NewClientWithSFTP(mock, nil)
	t.Cleanup(func() { _ = client.Close() })

	return NewSyncer(client, WithLocalFs(local)), mock
}

// newTestConfig creates a Config with sensible defaults for testing.
func newTestConfig(t testing.TB) Config {
	t.Helper()

	privateKey, _ := generateTestRSAKey(t)

	return Config{
		Host:                  "localhost",
		Port:                  22,
		User:                  "testuser",
		PrivateKey:            privateKey,
		InsecureIgnoreHostKey: true,
	}
}

// newTestConfigWithCustom creates a Config with custom fields applied.
func newTestConfigWithCustom(t testing.TB, customize func(*Config)) Config {
	t.Helper()

	config := newTestConfig(t)
	customize(&config)
	return config
}
