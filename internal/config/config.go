// Package config provides Viper-based configuration loading for the faction service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`

	// StatementTimeout bounds every statement; zero leaves the server default.
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	// Backend is one of "postgres", "sqlite", "yaml" or "memory".
	Backend string `mapstructure:"backend"`
	// Path is the database file (sqlite) or document (yaml).
	Path string `mapstructure:"path"`
	// FlushInterval of zero saves after every mutation.
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	SaveTimeout   time.Duration `mapstructure:"save_timeout"`
}

// GRPCConfig holds the query/ingest RPC listener settings.
type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AdminTokenHash is the bcrypt hash of the token required by mutating RPCs.
	// Empty disables the token check.
	AdminTokenHash string `mapstructure:"admin_token_hash"`
}

// Addr returns the "host:port" listen address.
func (g GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

// FeedConfig holds the websocket event feed settings.
type FeedConfig struct {
	Host string `mapstructure:"host"`
	// Port of zero disables the feed.
	Port int `mapstructure:"port"`
	// Buffer is the per-client outbound queue length.
	Buffer int `mapstructure:"buffer"`
}

// Addr returns the "host:port" listen address.
func (f FeedConfig) Addr() string {
	return fmt.Sprintf("%s:%d", f.Host, f.Port)
}

// PowerConfig holds the power ledger parameters.
type PowerConfig struct {
	Starting            int  `mapstructure:"starting"`
	MaxPerPlayer        int  `mapstructure:"max_per_player"`
	DeathPenalty        int  `mapstructure:"death_penalty"`
	KillReward          int  `mapstructure:"kill_reward"`
	CountOfflineMembers bool `mapstructure:"count_offline_members"`
}

// ClaimingConfig holds claim grid and overclaim rules.
type ClaimingConfig struct {
	// MaxClaims per faction; zero or negative is unlimited.
	MaxClaims           int      `mapstructure:"max_claims"`
	RequireAdjacent     bool     `mapstructure:"require_adjacent"`
	DisabledWorlds      []string `mapstructure:"disabled_worlds"`
	CostType            string   `mapstructure:"cost_type"`
	OverclaimEnabled    bool     `mapstructure:"overclaim_enabled"`
	RequirePowerRatio   bool     `mapstructure:"require_power_ratio"`
	OverclaimPowerRatio float64  `mapstructure:"overclaim_power_ratio"`
}

// EconomyConfig selects the currency provider and costs.
type EconomyConfig struct {
	// Provider is "none" or "memory".
	Provider          string        `mapstructure:"provider"`
	ClaimCostMoney    float64       `mapstructure:"claim_cost_money"`
	ClaimCostStrength int           `mapstructure:"claim_cost_strength"`
	OverclaimCost     float64       `mapstructure:"overclaim_cost"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// DiplomacyConfig holds invitation and alliance request lifetimes.
type DiplomacyConfig struct {
	InviteTTL      time.Duration `mapstructure:"invite_ttl"`
	AllyRequestTTL time.Duration `mapstructure:"ally_request_ttl"`
}

// PvPConfig holds territory PvP toggles.
type PvPConfig struct {
	DisableOwnLand  bool `mapstructure:"disable_own_land"`
	DisableAllyLand bool `mapstructure:"disable_ally_land"`
	Wilderness      bool `mapstructure:"wilderness"`
}

// HomesConfig holds faction home rules.
type HomesConfig struct {
	RequireOwnLand bool `mapstructure:"require_own_land"`
}

// FlyConfig holds flight rules.
type FlyConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RankConfig overrides one rank of the rank table.
type RankConfig struct {
	Name        string   `mapstructure:"name"`
	Prefix      string   `mapstructure:"prefix"`
	Permissions []string `mapstructure:"permissions"`
}

// ScriptingConfig holds Lua hook settings.
type ScriptingConfig struct {
	// Dir holds *.lua hook files; empty disables scripting.
	Dir string `mapstructure:"dir"`
	// InstructionLimit bounds each hook invocation; zero uses the built-in default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig         `mapstructure:"logging"`
	Database  DatabaseConfig        `mapstructure:"database"`
	Storage   StorageConfig         `mapstructure:"storage"`
	GRPC      GRPCConfig            `mapstructure:"grpc"`
	Feed      FeedConfig            `mapstructure:"feed"`
	Power     PowerConfig           `mapstructure:"power"`
	Claiming  ClaimingConfig        `mapstructure:"claiming"`
	Economy   EconomyConfig         `mapstructure:"economy"`
	Diplomacy DiplomacyConfig       `mapstructure:"diplomacy"`
	PvP       PvPConfig             `mapstructure:"pvp"`
	Homes     HomesConfig           `mapstructure:"homes"`
	Fly       FlyConfig             `mapstructure:"fly"`
	Ranks     map[string]RankConfig `mapstructure:"ranks"`
	Scripting ScriptingConfig       `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	collect(validateLogging(c.Logging))
	collect(validateStorage(c.Storage))
	if c.Storage.Backend == "postgres" {
		collect(validateDatabase(c.Database))
	}
	collect(validatePort("grpc.port", c.GRPC.Port, false))
	collect(validatePort("feed.port", c.Feed.Port, true))
	if c.Feed.Buffer < 1 {
		errs = append(errs, fmt.Sprintf("feed.buffer must be >= 1, got %d", c.Feed.Buffer))
	}
	collect(validatePower(c.Power))
	collect(validateClaiming(c.Claiming))
	collect(validateEconomy(c.Economy))
	if c.Diplomacy.InviteTTL <= 0 || c.Diplomacy.AllyRequestTTL <= 0 {
		errs = append(errs, "diplomacy.invite_ttl and diplomacy.ally_request_ttl must be positive")
	}
	collect(validateRanks(c.Ranks))
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 0, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	var errs []string
	switch s.Backend {
	case "postgres", "memory":
	case "sqlite", "yaml":
		if s.Path == "" {
			errs = append(errs, fmt.Sprintf("storage.path must not be empty for backend %q", s.Backend))
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be one of [postgres, sqlite, yaml, memory], got %q", s.Backend))
	}
	if s.FlushInterval < 0 {
		errs = append(errs, "storage.flush_interval must not be negative")
	}
	if s.SaveTimeout <= 0 {
		errs = append(errs, "storage.save_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if err := validatePort("database.port", d.Port, false); err != nil {
		errs = append(errs, err.Error())
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if d.StatementTimeout < 0 {
		errs = append(errs, fmt.Sprintf("database.statement_timeout must be >= 0, got %s", d.StatementTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validatePort(key string, port int, zeroAllowed bool) error {
	if zeroAllowed && port == 0 {
		return nil
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be 1-65535, got %d", key, port)
	}
	return nil
}

func validatePower(p PowerConfig) error {
	var errs []string
	if p.MaxPerPlayer < 0 {
		errs = append(errs, fmt.Sprintf("power.max_per_player must be >= 0, got %d", p.MaxPerPlayer))
	}
	if p.Starting < 0 || p.Starting > p.MaxPerPlayer {
		errs = append(errs, fmt.Sprintf("power.starting must be within [0, %d], got %d", p.MaxPerPlayer, p.Starting))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateClaiming(c ClaimingConfig) error {
	var errs []string
	validCosts := map[string]bool{"money": true, "strength": true, "both": true, "none": true}
	if !validCosts[strings.ToLower(c.CostType)] {
		errs = append(errs, fmt.Sprintf("claiming.cost_type must be one of [money, strength, both, none], got %q", c.CostType))
	}
	if c.RequirePowerRatio && c.OverclaimPowerRatio <= 0 {
		errs = append(errs, fmt.Sprintf("claiming.overclaim_power_ratio must be > 0, got %g", c.OverclaimPowerRatio))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEconomy(e EconomyConfig) error {
	var errs []string
	if e.Provider != "none" && e.Provider != "memory" {
		errs = append(errs, fmt.Sprintf("economy.provider must be one of [none, memory], got %q", e.Provider))
	}
	if e.ClaimCostMoney < 0 || e.OverclaimCost < 0 || e.ClaimCostStrength < 0 {
		errs = append(errs, "economy costs must not be negative")
	}
	if e.Timeout <= 0 {
		errs = append(errs, "economy.timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRanks(ranks map[string]RankConfig) error {
	valid := map[string]bool{"recruit": true, "member": true, "officer": true, "coleader": true, "leader": true}
	var errs []string
	for key := range ranks {
		if !valid[strings.ToLower(key)] {
			errs = append(errs, fmt.Sprintf("ranks.%s is not one of [recruit, member, officer, coleader, leader]", key))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with FACTIONS_ prefix
	v.SetEnvPrefix("FACTIONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults installs the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "factions")
	v.SetDefault("database.password", "factions")
	v.SetDefault("database.name", "factions")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.statement_timeout", "30s")

	v.SetDefault("storage.backend", "yaml")
	v.SetDefault("storage.path", "data/factions.yaml")
	v.SetDefault("storage.flush_interval", "0s")
	v.SetDefault("storage.save_timeout", "10s")

	v.SetDefault("grpc.host", "127.0.0.1")
	v.SetDefault("grpc.port", 50061)

	v.SetDefault("feed.host", "127.0.0.1")
	v.SetDefault("feed.port", 0)
	v.SetDefault("feed.buffer", 64)

	v.SetDefault("power.starting", 20)
	v.SetDefault("power.max_per_player", 100)
	v.SetDefault("power.death_penalty", -10)
	v.SetDefault("power.kill_reward", 5)
	v.SetDefault("power.count_offline_members", false)

	v.SetDefault("claiming.max_claims", 0)
	v.SetDefault("claiming.require_adjacent", false)
	v.SetDefault("claiming.cost_type", "both")
	v.SetDefault("claiming.overclaim_enabled", true)
	v.SetDefault("claiming.require_power_ratio", true)
	v.SetDefault("claiming.overclaim_power_ratio", 2.0)

	v.SetDefault("economy.provider", "none")
	v.SetDefault("economy.claim_cost_money", 100.0)
	v.SetDefault("economy.claim_cost_strength", 10)
	v.SetDefault("economy.overclaim_cost", 500.0)
	v.SetDefault("economy.timeout", "2s")

	v.SetDefault("diplomacy.invite_ttl", "5m")
	v.SetDefault("diplomacy.ally_request_ttl", "10m")

	v.SetDefault("pvp.disable_own_land", true)
	v.SetDefault("pvp.disable_ally_land", true)
	v.SetDefault("pvp.wilderness", true)

	v.SetDefault("homes.require_own_land", true)
	v.SetDefault("fly.enabled", true)

	v.SetDefault("scripting.instruction_limit", 100000)
}
