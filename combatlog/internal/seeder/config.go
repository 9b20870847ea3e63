package seeder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/telhawk-systems/telhawk-combatlog/combatlog/internal/parser"
)

// Config describes what to seed.
type Config struct {
	Game      string        `mapstructure:"game" yaml:"game"`
	Matches   int           `mapstructure:"matches" yaml:"matches"`
	Events    int           `mapstructure:"events" yaml:"events"`
	Players   int           `mapstructure:"players" yaml:"players"`
	BatchSize int           `mapstructure:"batch_size" yaml:"batch_size"`
	Interval  time.Duration `mapstructure:"interval" yaml:"interval"`
	Seed      int64         `mapstructure:"seed" yaml:"seed"`
	OwnerID   string        `mapstructure:"owner_id" yaml:"owner_id"`
}

// LoadConfig loads configuration with cascade: flags > ./seeder.yaml > ~/.combatlog/seeder.yaml > defaults
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("seeder")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SEEDER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".combatlog"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("game", string(parser.GameWoW))
	v.SetDefault("matches", 1)
	v.SetDefault("events", 500)
	v.SetDefault("players", 5)
	v.SetDefault("batch_size", 100)
	v.SetDefault("interval", 0)
	v.SetDefault("seed", 0)
}

// Validate checks the settings a run depends on.
func (c *Config) Validate() error {
	if !parser.Game(c.Game).Valid() {
		return fmt.Errorf("unknown game %q", c.Game)
	}
	if c.Matches < 1 || c.Events < 0 || c.BatchSize < 1 {
		return fmt.Errorf("matches and batch_size must be positive, events not negative")
	}
	return nil
}
