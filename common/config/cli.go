package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CLIConfig holds the defaults of the combatlog command line tool.
type CLIConfig struct {
	Output  string `yaml:"output" json:"output" mapstructure:"output"`
	WorkDir string `yaml:"work_dir" json:"work_dir" mapstructure:"work_dir"`
	Bucket  string `yaml:"bucket" json:"bucket" mapstructure:"bucket"`
	path    string
}

// DefaultCLI returns a CLIConfig with default values
func DefaultCLI() *CLIConfig {
	return &CLIConfig{
		Output:  "table",
		WorkDir: os.TempDir(),
		Bucket:  "combatlog-reports",
	}
}

// LoadCLI loads configuration for the CLI.
// Uses $HOME/.combatlog as the default COMBATLOG_CONFIG_DIR if not set.
func LoadCLI() (*CLIConfig, error) {
	v := viper.New()

	def := DefaultCLI()
	v.SetDefault("output", def.Output)
	v.SetDefault("work_dir", def.WorkDir)
	v.SetDefault("bucket", def.Bucket)

	configDir := os.Getenv("COMBATLOG_CONFIG_DIR")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine home directory: %w", err)
		}
		configDir = filepath.Join(home, ".combatlog")
	}

	configPath := filepath.Join(configDir, "cli.yaml")
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Environment variables override with COMBATLOG prefix
	v.SetEnvPrefix("COMBATLOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = v.ReadInConfig() // Ignore errors - file may not exist yet

	cfg := &CLIConfig{path: configPath}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// MustLoadCLI loads CLI configuration and panics on error.
func MustLoadCLI() *CLIConfig {
	cfg, err := LoadCLI()
	if err != nil {
		panic(fmt.Sprintf("failed to load CLI config: %v", err))
	}
	return cfg
}

// Path returns the file Save writes to.
func (c *CLIConfig) Path() string {
	return c.path
}

// Set updates one setting by its yaml key.
func (c *CLIConfig) Set(key, value string) error {
	switch key {
	case "output":
		switch value {
		case "table", "json", "yaml":
		default:
			return fmt.Errorf("invalid output %q (table, json or yaml)", value)
		}
		c.Output = value
	case "work_dir":
		c.WorkDir = value
	case "bucket":
		c.Bucket = value
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// Save writes the CLI config to disk
func (c *CLIConfig) Save() error {
	if c.path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		c.path = filepath.Join(home, ".combatlog", "cli.yaml")
	}

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.path, data, 0600)
}
