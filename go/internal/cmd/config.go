package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/leagueauction/go/internal/auction/allocation"
	"github.com/mcdev12/leagueauction/go/internal/auction/finalize"
	"github.com/mcdev12/leagueauction/go/internal/auction/money"
	"github.com/mcdev12/leagueauction/go/internal/auction/tiebreak"
)

type Config struct {
	Server struct {
		Port        int    `yaml:"port"`
		Environment string `yaml:"environment"`
	} `yaml:"server"`

	Auction struct {
		AllocationPolicy string        `yaml:"allocation_policy"`
		FinalizeWorkers  int           `yaml:"finalize_workers"`
		TiebreakerWindow time.Duration `yaml:"tiebreaker_window"`
		MinIncrement     string        `yaml:"min_increment"`
	} `yaml:"auction"`

	Sweep struct {
		Limit       int32         `yaml:"limit"`
		MinInterval time.Duration `yaml:"min_interval"`
		// Cron optionally runs the sweep on a schedule as well. Six fields, seconds first.
		Cron    string        `yaml:"cron"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"sweep"`

	Auth struct {
		Issuer string `yaml:"issuer"`
		Secret string `yaml:"-"` // JWT_SECRET
	} `yaml:"auth"`

	AutoMigrate bool `yaml:"auto_migrate"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Server.Environment = "development"
	cfg.Auction.AllocationPolicy = string(allocation.PolicyUnsold)
	cfg.Auction.FinalizeWorkers = allocation.DefaultConfig().Workers
	cfg.Auction.TiebreakerWindow = tiebreak.DefaultConfig().Window
	cfg.Auction.MinIncrement = money.Format(tiebreak.DefaultConfig().MinIncrement)
	cfg.Sweep.Limit = finalize.DefaultConfig().SweepLimit
	cfg.Sweep.MinInterval = finalize.DefaultConfig().SweepMinInterval
	cfg.Sweep.Timeout = 2 * time.Minute
	cfg.Auth.Issuer = "leagueauction"
	cfg.AutoMigrate = true
	return cfg
}

// loadConfig reads path over the defaults. A missing file keeps the
// defaults; environment variables win over both.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.Server.Port = getEnvAsInt("PORT", cfg.Server.Port)
	cfg.Server.Environment = getEnv("ENVIRONMENT", cfg.Server.Environment)
	cfg.Auction.AllocationPolicy = getEnv("ALLOCATION_POLICY", cfg.Auction.AllocationPolicy)
	cfg.Sweep.Cron = getEnv("SWEEP_CRON", cfg.Sweep.Cron)
	cfg.Auth.Secret = os.Getenv("JWT_SECRET")
	if v := os.Getenv("AUTO_MIGRATE"); v != "" {
		cfg.AutoMigrate = v == "true"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server port is required")
	}
	if _, err := allocation.ParsePolicy(c.Auction.AllocationPolicy); err != nil {
		return err
	}
	if c.Auction.FinalizeWorkers <= 0 {
		return fmt.Errorf("finalize_workers must be positive")
	}
	if c.Auction.TiebreakerWindow <= 0 {
		return fmt.Errorf("tiebreaker_window must be positive")
	}
	inc, err := money.Parse(c.Auction.MinIncrement)
	if err != nil {
		return fmt.Errorf("min_increment: %w", err)
	}
	if !inc.IsPositive() {
		return fmt.Errorf("min_increment must be positive")
	}
	if c.Sweep.Limit <= 0 {
		return fmt.Errorf("sweep limit must be positive")
	}
	if c.Sweep.Timeout <= 0 {
		return fmt.Errorf("sweep timeout must be positive")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	return nil
}

func (c *Config) allocationConfig() allocation.Config {
	policy, _ := allocation.ParsePolicy(c.Auction.AllocationPolicy)
	return allocation.Config{Policy: policy, Workers: c.Auction.FinalizeWorkers}
}

func (c *Config) tiebreakConfig() tiebreak.Config {
	inc, _ := money.Parse(c.Auction.MinIncrement)
	return tiebreak.Config{Window: c.Auction.TiebreakerWindow, MinIncrement: inc}
}

func (c *Config) finalizeConfig() finalize.Config {
	return finalize.Config{
		SweepLimit:       c.Sweep.Limit,
		SweepMinInterval: c.Sweep.MinInterval,
		SweepTimeout:     c.Sweep.Timeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
