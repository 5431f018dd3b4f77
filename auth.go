package webpath

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// keySource is a private key given inline or as a file; inline wins.
type keySource struct {
	inline string
	path   string
}

func (k keySource) empty() bool { return k.inline == "" && k.path == "" }

// signer parses the key. label names the key in error messages.
func (k keySource) signer(label string) (ssh.Signer, error) {
	data := []byte(k.inline)
	if k.inline == "" {
		var err error
		if data, err = os.ReadFile(ExpandPath(k.path)); err != nil {
			return nil, fmt.Errorf("failed to read %s key file: %w", label, err)
		}
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s private key: %w", label, err)
	}
	return signer, nil
}

// effectiveAuthMethod returns AuthMethod, or the one implied by which
// credentials are set: a password, then a certificate, then a key.
func (c Config) effectiveAuthMethod() AuthMethod {
	switch {
	case c.AuthMethod != "":
		return c.AuthMethod
	case c.Password != "":
		return AuthMethodPassword
	case c.Certificate != "" || c.CertificatePath != "":
		return AuthMethodCertificate
	}
	return AuthMethodPrivateKey
}

// validateAuth reports credentials the chosen method cannot work without.
// Key material is only read at dial time.
func (c Config) validateAuth() error {
	switch c.effectiveAuthMethod() {
	case AuthMethodPassword:
		if c.Password == "" {
			return errors.New("password authentication requires password to be set")
		}
	case AuthMethodCertificate:
		if c.Certificate == "" && c.CertificatePath == "" {
			return errors.New("certificate authentication requires certificate or certificate_path")
		}
	}
	return nil
}

func (c Config) targetKey() keySource {
	return keySource{inline: c.PrivateKey, path: c.KeyPath}
}

// bastionKey falls back to the target's key when no bastion key is set.
func (c Config) bastionKey() keySource {
	if k := (keySource{inline: c.BastionKey, path: c.BastionKeyPath}); !k.empty() {
		return k
	}
	return c.targetKey()
}

func (c Config) bastionUser() string {
	if c.BastionUser != "" {
		return c.BastionUser
	}
	return c.User
}

func (c Config) certificate() (*ssh.Certificate, error) {
	data := []byte(c.Certificate)
	if c.Certificate == "" {
		if c.CertificatePath == "" {
			return nil, errors.New("no SSH certificate provided (set certificate or certificate_path)")
		}
		var err error
		if data, err = os.ReadFile(ExpandPath(c.CertificatePath)); err != nil {
			return nil, fmt.Errorf("failed to read certificate file: %w", err)
		}
	}
	pub, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	cert, ok := pub.(*ssh.Certificate)
	if !ok {
		return nil, errors.New("provided file is not an SSH certificate")
	}
	return cert, nil
}

// targetAuth builds the single auth method used against Host.
func targetAuth(c Config) (ssh.AuthMethod, error) {
	method := c.effectiveAuthMethod()
	if method == AuthMethodPassword {
		if c.Password == "" {
			return nil, errors.New("password authentication requires password to be set")
		}
		return ssh.Password(c.Password), nil
	}

	key := c.targetKey()
	if key.empty() {
		return nil, errors.New("no SSH private key provided (set private_key or key_path)")
	}
	signer, err := key.signer("SSH")
	if err != nil {
		return nil, err
	}
	if method != AuthMethodCertificate {
		return ssh.PublicKeys(signer), nil
	}

	cert, err := c.certificate()
	if err != nil {
		return nil, fmt.Errorf("certificate authentication failed: %w", err)
	}
	certSigner, err := ssh.NewCertSigner(cert, signer)
	if err != nil {
		return nil, fmt.Errorf("certificate authentication failed: %w", err)
	}
	return ssh.PublicKeys(certSigner), nil
}

// bastionAuth builds the auth method used against BastionHost: its own
// password or key, else the target's key.
func bastionAuth(c Config) (ssh.AuthMethod, error) {
	if c.BastionPassword != "" {
		return ssh.Password(c.BastionPassword), nil
	}
	key := c.bastionKey()
	if key.empty() {
		return nil, errors.New("no SSH key configured for bastion host")
	}
	signer, err := key.signer("bastion")
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// hostKeyCallback verifies host keys against KnownHostsFile, or
// ~/.ssh/known_hosts when that exists. With neither, any key is accepted
// and a warning is logged.
func hostKeyCallback(c Config) (ssh.HostKeyCallback, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if c.InsecureIgnoreHostKey {
		logger.Warn("SSH host key verification disabled", "host", c.Host, "port", c.Port)
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if c.KnownHostsFile != "" {
		file := ExpandPath(c.KnownHostsFile)
		callback, err := knownhosts.New(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts file %s: %w", file, err)
		}
		return callback, nil
	}

	if home, err := os.UserHomeDir(); err == nil {
		file := filepath.Join(home, ".ssh", "known_hosts")
		if _, err := os.Stat(file); err == nil {
			callback, err := knownhosts.New(file)
			if err == nil {
				return callback, nil
			}
			logger.Warn("could not parse known_hosts file", "path", file, "error", err)
		}
	}

	logger.Warn("no known_hosts file found, host key verification disabled", "host", c.Host, "port", c.Port)
	return func(string, net.Addr, ssh.PublicKey) error { return nil }, nil
}

// dialBastion connects to the jump host. The target's host key policy
// applies to it as well.
func dialBastion(c Config, hostKeys ssh.HostKeyCallback) (*ssh.Client, error) {
	auth, err := bastionAuth(c)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(c.BastionHost, fmt.Sprint(c.BastionPort))
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            c.bastionUser(),
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeys,
		Timeout:         c.Timeout,
	})
}

// dialThrough opens an SSH connection to addr tunnelled over bastion.
func dialThrough(bastion *ssh.Client, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := bastion.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial target through bastion: %w", err)
	}
	ncc, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SSH connection through bastion: %w", err)
	}
	return ssh.NewClient(ncc, chans, reqs), nil
}

// ExpandPath expands a leading ~/ to the home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
