package webpath

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Client is an SFTP session. It owns the SSH transport (and the bastion
// connection, if any) and tears all of it down exactly once on Close.
//
// A Client is not safe for concurrent use.
type Client struct {
	sshClient     *ssh.Client
	sftpClient    SFTPClientInterface
	bastionClient *ssh.Client // nil if no bastion host
	logger        *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// SFTPClientInterface is the remote filesystem the rest of the package is
// written against. SFTPClientWrapper binds it to *sftp.Client.
type SFTPClientInterface interface {
	Open(path string) (SFTPFile, error)
	OpenFile(path string, flag int) (SFTPFile, error)
	Stat(path string) (os.FileInfo, error)
	ReadDir(path string) ([]os.FileInfo, error)
	Mkdir(path string) error
	MkdirAll(path string) error
	Remove(path string) error
	RemoveDirectory(path string) error
	Rename(oldname, newname string) error
	Chtimes(path string, atime, mtime time.Time) error
	Close() error
}

// SFTPFile is an open remote file.
type SFTPFile interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer
}

// SFTPClientWrapper wraps the real sftp.Client to implement SFTPClientInterface.
type SFTPClientWrapper struct {
	client *sftp.Client
}

var _ SFTPClientInterface = (*SFTPClientWrapper)(nil)

func (w *SFTPClientWrapper) Open(path string) (SFTPFile, error) {
	f, err := w.client.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (w *SFTPClientWrapper) OpenFile(path string, flag int) (SFTPFile, error) {
	f, err := w.client.OpenFile(path, flag)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (w *SFTPClientWrapper) Stat(path string) (os.FileInfo, error)      { return w.client.Stat(path) }
func (w *SFTPClientWrapper) ReadDir(path string) ([]os.FileInfo, error) { return w.client.ReadDir(path) }
func (w *SFTPClientWrapper) Mkdir(path string) error                    { return w.client.Mkdir(path) }
func (w *SFTPClientWrapper) MkdirAll(path string) error                 { return w.client.MkdirAll(path) }
func (w *SFTPClientWrapper) Remove(path string) error                   { return w.client.Remove(path) }
func (w *SFTPClientWrapper) RemoveDirectory(path string) error          { return w.client.RemoveDirectory(path) }
func (w *SFTPClientWrapper) Rename(oldname, newname string) error       { return w.client.Rename(oldname, newname) }
func (w *SFTPClientWrapper) Close() error                               { return w.client.Close() }

func (w *SFTPClientWrapper) Chtimes(path string, atime, mtime time.Time) error {
	return w.client.Chtimes(path, atime, mtime)
}

// NewClient dials the SSH server described by config and starts the SFTP
// subsystem. Failures are returned immediately and never retried.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config = config.WithDefaults()

	auth, err := targetAuth(config)
	if err != nil {
		return nil, err
	}
	hostKeys, err := hostKeyCallback(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure host key verification: %w", err)
	}
	sshConfig := &ssh.ClientConfig{
		User:            config.User,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeys,
		Timeout:         config.Timeout,
	}
	targetAddr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))

	var sshClient, bastionClient *ssh.Client
	if config.BastionHost != "" {
		bastionClient, err = dialBastion(config, hostKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to bastion host: %w", err)
		}
		sshClient, err = dialThrough(bastionClient, targetAddr, sshConfig)
		if err != nil {
			bastionClient.Close()
			return nil, err
		}
	} else {
		sshClient, err = ssh.Dial("tcp", targetAddr, sshConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w", targetAddr, err)
		}
	}

	rawSftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		if bastionClient != nil {
			bastionClient.Close()
		}
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}

	config.Logger.Debug("sftp session established", "addr", targetAddr, "user", config.User)

	return &Client{
		sshClient:     sshClient,
		sftpClient:    &SFTPClientWrapper{client: rawSftpClient},
		bastionClient: bastionClient,
		logger:        config.Logger,
	}, nil
}

// NewClientWithSFTP creates a Client over an existing SFTP implementation.
// sshClient may be nil. Used for in-process servers and tests.
func NewClientWithSFTP(sftpClient SFTPClientInterface, sshClient *ssh.Client) *Client {
	return &Client{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		logger:     slog.Default(),
	}
}

// WithClient connects, calls fn with the session and closes the session
// when fn returns, whether it fails or not.
func WithClient(config Config, fn func(c *Client) error) (err error) {
	client, err := NewClient(config)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(client)
}

// Close closes SFTP, SSH and bastion connections, in that order. Only the
// first call has any effect; later calls return the same error.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.sftpClient != nil {
			errs = append(errs, c.sftpClient.Close())
		}
		if c.sshClient != nil {
			errs = append(errs, ignoreClosed(c.sshClient.Close()))
		}
		if c.bastionClient != nil {
			errs = append(errs, ignoreClosed(c.bastionClient.Close()))
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// SFTP returns the underlying remote filesystem.
func (c *Client) SFTP() SFTPClientInterface {
	return c.sftpClient
}

// Path returns a Path for remotePath bound to this session.
func (c *Client) Path(remotePath string) *Path {
	return newPath(c.sftpClient, remotePath)
}

// IsDir reports whether remotePath is a directory. Any stat error,
// including a missing path, yields false.
func (c *Client) IsDir(remotePath string) bool {
	info, err := c.sftpClient.Stat(remotePath)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// ssh.Client.Close reports net.ErrClosed once sftp has already torn the
// channel down.
func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
