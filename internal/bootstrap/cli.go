package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ConfigDir is the per-user config directory under $HOME.
const ConfigDir = ".fixo-crm"

// ReadConfig loads cfgFile, or <service>.yaml from ., ~/.fixo-crm and
// /etc/fixo-crm. A missing file is not an error; environment variables
// named like the keys (POSTGRES_DSN) override the file.
func ReadConfig(v *viper.Viper, cfgFile, service string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, _ := os.UserHomeDir()
		v.SetConfigName(service)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ConfigDir))
		v.AddConfigPath("/etc/fixo-crm")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return fmt.Errorf("read config file: %w", err)
		}
		return nil
	}
	fmt.Fprintln(os.Stderr, "config:", v.ConfigFileUsed())
	return nil
}

// BindFlag binds viper key to the named flag and panics on a typo.
func BindFlag(v *viper.Viper, key string, fs *pflag.FlagSet, flagName string) {
	if err := v.BindPFlag(key, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q → %q: %v", flagName, key, err))
	}
}

// NewInitCmd returns an "init" subcommand that writes defaultYAML to
// *cfgFile, or to ~/.fixo-crm/<service>.yaml when no --config was given.
func NewInitCmd(cfgFile *string, service, defaultYAML string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: fmt.Sprintf(`Write default configuration for %s.

If --config is given the file is written to that path.
Otherwise it is written to ~/%s/%s.yaml.
Fails if the file already exists unless --force is passed.`, service, ConfigDir, service),
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest := *cfgFile
			if dest == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("home dir: %w", err)
				}
				dest = filepath.Join(home, ConfigDir, service+".yaml")
			}
			if err := WriteDefaultConfig(dest, defaultYAML, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}

// WriteDefaultConfig writes content to dest, creating parent directories.
// An existing file is only replaced when force is set.
func WriteDefaultConfig(dest, content string, force bool) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if !force {
		if _, err := os.Stat(dest); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", dest, err)
		}
	}
	if err := os.WriteFile(dest, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// NewVersionCmd prints build metadata for service.
func NewVersionCmd(service string, info func(string) string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), info(service))
		},
	}
}
