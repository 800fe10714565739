package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"` // default cache TTL
}

type AuthConfig struct {
	MemberSecret string        `yaml:"member_secret"`
	StaffSecret  string        `yaml:"staff_secret"`
	TTL          time.Duration `yaml:"ttl"`
}

// ExpiredPolicy decides what happens to points reserved at issuance when
// the token expires unconsumed.
type ExpiredPolicy string

const (
	ExpiredPolicyForfeit ExpiredPolicy = "forfeit"
	ExpiredPolicyRefund  ExpiredPolicy = "refund"
)

type RedemptionConfig struct {
	// TokenTTL is the hard expiry horizon of a minted token.
	// Clamped to [2m, 10m].
	TokenTTL      time.Duration `yaml:"token_ttl"`
	ExpiredPolicy ExpiredPolicy `yaml:"expired_policy"` // forfeit|refund
	// RedeemPerMinute rate-limits redemption requests per member.
	RedeemPerMinute int `yaml:"redeem_per_minute"`
}

type ProgramConfig struct {
	// Timezone is the IANA zone the daily quota calendar day is anchored to.
	Timezone string `yaml:"timezone"`
}

type WorkerConfig struct {
	ExpiryInterval time.Duration `yaml:"expiry_interval"`
	ExpiryBatch    int           `yaml:"expiry_batch"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	Redemption RedemptionConfig `yaml:"redemption"`
	Program    ProgramConfig    `yaml:"program"`
	Worker     WorkerConfig     `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8080
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	cfg.Redemption.TokenTTL = clampTokenTTL(cfg.Redemption.TokenTTL)
	if cfg.Redemption.ExpiredPolicy == "" {
		cfg.Redemption.ExpiredPolicy = ExpiredPolicyForfeit
	}
	if cfg.Redemption.RedeemPerMinute <= 0 {
		cfg.Redemption.RedeemPerMinute = 10
	}
	if cfg.Program.Timezone == "" {
		cfg.Program.Timezone = "UTC"
	}
	if cfg.Worker.ExpiryInterval <= 0 {
		cfg.Worker.ExpiryInterval = time.Minute
	}
	if cfg.Worker.ExpiryBatch <= 0 {
		cfg.Worker.ExpiryBatch = 100
	}
	if cfg.Auth.TTL <= 0 {
		cfg.Auth.TTL = 24 * time.Hour
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Auth.MemberSecret == "" || cfg.Auth.StaffSecret == "" {
		return nil, errors.New("auth.member_secret and auth.staff_secret are required")
	}
	switch cfg.Redemption.ExpiredPolicy {
	case ExpiredPolicyForfeit, ExpiredPolicyRefund:
	default:
		return nil, fmt.Errorf("redemption.expired_policy must be forfeit or refund, got %q", cfg.Redemption.ExpiredPolicy)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}

// clampTokenTTL keeps the token horizon short: minutes, not hours.
func clampTokenTTL(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return 5 * time.Minute
	case d < 2*time.Minute:
		return 2 * time.Minute
	case d > 10*time.Minute:
		return 10 * time.Minute
	}
	return d
}
