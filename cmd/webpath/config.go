package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fourpoints/webpath"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "WEBPATH"

var home, _ = os.UserHomeDir()

// flagKeys maps persistent connection flags to webpath.Config keys.
var flagKeys = map[string]string{
	"host":        "host",
	"port":        "port",
	"user":        "user",
	"identity":    "key_path",
	"password":    "password",
	"known-hosts": "known_hosts_file",
	"insecure":    "insecure_ignore_host_key",
	"timeout":     "timeout",
	"bastion":     "bastion_host",
}

// envOnlyKeys can be set in the config file or the environment but have no
// flag, mostly because they hold secrets or key material.
var envOnlyKeys = []string{
	"auth_method",
	"private_key",
	"certificate",
	"certificate_path",
	"bastion_port",
	"bastion_user",
	"bastion_key",
	"bastion_key_path",
	"bastion_password",
}

func addConnectionFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", "", "Config file (default $HOME/.config/webpath/config.yaml)")
	flags.StringP("host", "H", "", "SSH host")
	flags.IntP("port", "p", 0, "SSH port (default 22)")
	flags.StringP("user", "u", "", "SSH user")
	flags.StringP("identity", "i", "", "Private key file")
	flags.String("password", "", "SSH password")
	flags.String("known-hosts", "", "known_hosts file (default ~/.ssh/known_hosts)")
	flags.Bool("insecure", false, "Skip host key verification")
	flags.Duration("timeout", 0, "Connection timeout (default 30s)")
	flags.String("bastion", "", "Bastion host to jump through")
	flags.BoolP("verbose", "v", false, "Log every entry")
}

// loadConfig reads the config file, if any, and binds flags and WEBPATH_*
// environment variables. Flags win over the environment, which wins over
// the file.
func loadConfig(cmd *cobra.Command, v *viper.Viper) error {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		v.SetConfigFile(f.Value.String())
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "webpath"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

// sessionConfig builds the connection settings from everything loadConfig
// bound.
func sessionConfig(v *viper.Viper, logger *slog.Logger) (webpath.Config, error) {
	var config webpath.Config
	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("config decode: %w", err)
	}
	config.Logger = logger
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}
