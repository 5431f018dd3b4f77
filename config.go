package webpath

import (
	"errors"
	"log/slog"
	"time"
)

// AuthMethod represents the SSH authentication method to use.
type AuthMethod string

const (
	// AuthMethodPrivateKey uses SSH private key authentication (default).
	AuthMethodPrivateKey AuthMethod = "private_key"
	// AuthMethodPassword uses password authentication.
	AuthMethodPassword AuthMethod = "password"
	// AuthMethodCertificate uses SSH certificate authentication.
	AuthMethodCertificate AuthMethod = "certificate"
)

// Config holds the settings used to establish an SFTP session.
type Config struct {
	// Host is the target SSH server hostname or IP address.
	Host string `mapstructure:"host"`

	// Port is the SSH port (default 22).
	Port int `mapstructure:"port"`

	// User is the SSH username.
	User string `mapstructure:"user"`

	// AuthMethod specifies which authentication method to use.
	// If not set, it will be inferred from the provided credentials.
	AuthMethod AuthMethod `mapstructure:"auth_method"`

	// PrivateKey is the SSH private key content (PEM encoded).
	// Mutually exclusive with KeyPath.
	PrivateKey string `mapstructure:"private_key"`

	// KeyPath is the path to the SSH private key file.
	// Mutually exclusive with PrivateKey.
	KeyPath string `mapstructure:"key_path"`

	// Password is the SSH password for password authentication.
	Password string `mapstructure:"password"`

	// Certificate is the SSH certificate content.
	// Used with PrivateKey or KeyPath for certificate authentication.
	Certificate string `mapstructure:"certificate"`

	// CertificatePath is the path to the SSH certificate file.
	CertificatePath string `mapstructure:"certificate_path"`

	// Timeout is the connection timeout (default 30s).
	Timeout time.Duration `mapstructure:"timeout"`

	// KnownHostsFile is the path to a known_hosts file for host key verification.
	// If not set, defaults to ~/.ssh/known_hosts if it exists.
	KnownHostsFile string `mapstructure:"known_hosts_file"`

	// InsecureIgnoreHostKey skips host key verification.
	// WARNING: This is insecure and should only be used for testing.
	InsecureIgnoreHostKey bool `mapstructure:"insecure_ignore_host_key"`

	// BastionHost is the hostname or IP of a bastion/jump host.
	BastionHost string `mapstructure:"bastion_host"`

	// BastionPort is the SSH port of the bastion host (default 22).
	BastionPort int `mapstructure:"bastion_port"`

	// BastionUser is the SSH username for the bastion host.
	// Falls back to User if not set.
	BastionUser string `mapstructure:"bastion_user"`

	// BastionKey is the private key content for the bastion host.
	// Falls back to PrivateKey if not set.
	BastionKey string `mapstructure:"bastion_key"`

	// BastionKeyPath is the path to the private key for the bastion host.
	// Falls back to KeyPath if not set.
	BastionKeyPath string `mapstructure:"bastion_key_path"`

	// BastionPassword is the password for the bastion host.
	BastionPassword string `mapstructure:"bastion_password"`

	// Logger receives connection warnings. Defaults to slog.Default().
	Logger *slog.Logger `mapstructure:"-"`
}

// WithDefaults returns a copy of the config with default values applied.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.BastionPort == 0 && c.BastionHost != "" {
		c.BastionPort = 22
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Validate reports configuration errors that can be detected without dialing.
func (c Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.User == "" {
		errs = append(errs, errors.New("user is required"))
	}
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, errors.New("port must be between 1 and 65535"))
	}
	if c.PrivateKey != "" && c.KeyPath != "" {
		errs = append(errs, errors.New("private_key and key_path are mutually exclusive"))
	}
	switch c.AuthMethod {
	case "", AuthMethodPrivateKey, AuthMethodPassword, AuthMethodCertificate:
		if err := c.validateAuth(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, errors.New("unknown auth method: "+string(c.AuthMethod)))
	}
	return errors.Join(errs...)
}
