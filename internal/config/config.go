package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL        MySQLConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Log          LogConfig
	Migrate      bool
	HTTPAddr     string
	Linking      LinkingConfig
	Verification VerificationConfig
	Resolver     ResolverConfig
	Cloudflare   CloudflareConfig
	Notify       NotifyConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
	Issuer string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string
}

// LinkingConfig holds workflow orchestrator configuration
type LinkingConfig struct {
	PlatformNameservers   []string
	HostingIP             string
	VerifyPrefix          string
	CheckIntervalSec      int
	NameserverMaxAttempts int
	TXTMaxAttempts        int
	AutoRetryLimit        int
	AutoRetryDelaySec     int
	StaleIntentSec        int
}

// VerificationConfig holds verification sweep configuration
type VerificationConfig struct {
	SweepEnabled     bool
	SweepIntervalSec int
	BatchSize        int
	MaxAgeHours      int
}

// ResolverConfig holds DNS resolver configuration
type ResolverConfig struct {
	Servers    []string
	TimeoutSec int
}

// CloudflareConfig holds credentials of the platform Cloudflare account
type CloudflareConfig struct {
	Enabled bool
	Email   string
	APIKey  string
}

// NotifyConfig holds messenger configuration
type NotifyConfig struct {
	RedisChannelPrefix string
}

// CheckInterval returns the verification polling interval
func (c LinkingConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSec) * time.Second
}

// AutoRetryDelay returns the minimum wait before a failed intent is retried automatically
func (c LinkingConfig) AutoRetryDelay() time.Duration {
	return time.Duration(c.AutoRetryDelaySec) * time.Second
}

// StaleIntentAfter returns how long a driverless intent may sit before the sweep resumes it
func (c LinkingConfig) StaleIntentAfter() time.Duration {
	return time.Duration(c.StaleIntentSec) * time.Second
}

// MaxAge returns the age after which active verifications are expired
func (c VerificationConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeHours) * time.Hour
}

// Timeout returns the per-query resolver timeout
func (c ResolverConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// valueSource resolves a setting by env key, INI section and INI key
type valueSource struct {
	file *ini.File
}

func (s valueSource) get(envKey, section, key string) (string, bool) {
	// Priority 1: Environment variable
	if value := os.Getenv(envKey); value != "" {
		return value, true
	}
	// Priority 2: INI file
	if s.file != nil && s.file.Section(section).HasKey(key) {
		if value := s.file.Section(section).Key(key).String(); value != "" {
			return value, true
		}
	}
	return "", false
}

func (s valueSource) str(envKey, section, key, defaultValue string) string {
	if v, ok := s.get(envKey, section, key); ok {
		return v
	}
	return defaultValue
}

func (s valueSource) num(envKey, section, key string, defaultValue int) int {
	if v, ok := s.get(envKey, section, key); ok {
		if intValue, err := strconv.Atoi(v); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func (s valueSource) flag(envKey, section, key string, defaultValue bool) bool {
	if v, ok := s.get(envKey, section, key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultValue
}

func (s valueSource) list(envKey, section, key string, defaultValue []string) []string {
	v, ok := s.get(envKey, section, key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()
	return build(valueSource{})
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	_ = godotenv.Load()

	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}
	return build(valueSource{file: cfgFile})
}

func build(src valueSource) (*Config, error) {
	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: src.str("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     src.str("REDIS_ADDR", "redis", "addr", ""),
			Password: src.str("REDIS_PASS", "redis", "pass", ""),
			DB:       src.num("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret: src.str("JWT_SECRET", "jwt", "secret", ""),
			Issuer: src.str("JWT_ISSUER", "jwt", "issuer", "go_domainlink"),
		},
		Log: LogConfig{
			Level:  src.str("LOG_LEVEL", "log", "level", "info"),
			Format: src.str("LOG_FORMAT", "log", "format", "text"),
		},
		Migrate:  src.flag("MIGRATE", "app", "migrate", false),
		HTTPAddr: src.str("HTTP_ADDR", "http", "addr", ":8080"),
		Linking: LinkingConfig{
			PlatformNameservers: src.list("PLATFORM_NAMESERVERS", "linking", "platform_nameservers",
				[]string{"anderson.ns.cloudflare.com", "leanna.ns.cloudflare.com"}),
			HostingIP:             src.str("HOSTING_IP", "linking", "hosting_ip", "193.143.1.147"),
			VerifyPrefix:          src.str("VERIFY_PREFIX", "linking", "verify_prefix", "hostbay-verify"),
			CheckIntervalSec:      src.num("CHECK_INTERVAL_SEC", "linking", "check_interval_sec", 300),
			NameserverMaxAttempts: src.num("NAMESERVER_MAX_ATTEMPTS", "linking", "nameserver_max_attempts", 60),
			TXTMaxAttempts:        src.num("TXT_MAX_ATTEMPTS", "linking", "txt_max_attempts", 120),
			AutoRetryLimit:        src.num("AUTO_RETRY_LIMIT", "linking", "auto_retry_limit", 3),
			AutoRetryDelaySec:     src.num("AUTO_RETRY_DELAY_SEC", "linking", "auto_retry_delay_sec", 900),
			StaleIntentSec:        src.num("STALE_INTENT_SEC", "linking", "stale_intent_sec", 600),
		},
		Verification: VerificationConfig{
			SweepEnabled:     src.flag("SWEEP_ENABLED", "verification", "sweep_enabled", true),
			SweepIntervalSec: src.num("SWEEP_INTERVAL_SEC", "verification", "sweep_interval_sec", 60),
			BatchSize:        src.num("SWEEP_BATCH_SIZE", "verification", "batch_size", 100),
			MaxAgeHours:      src.num("VERIFICATION_MAX_AGE_HOURS", "verification", "max_age_hours", 24),
		},
		Resolver: ResolverConfig{
			Servers: src.list("RESOLVER_SERVERS", "resolver", "servers",
				[]string{"8.8.8.8:53", "1.1.1.1:53", "208.67.222.222:53"}),
			TimeoutSec: src.num("RESOLVER_TIMEOUT_SEC", "resolver", "timeout_sec", 5),
		},
		Cloudflare: CloudflareConfig{
			Enabled: src.flag("CLOUDFLARE_ENABLED", "cloudflare", "enabled", false),
			Email:   src.str("CLOUDFLARE_EMAIL", "cloudflare", "email", ""),
			APIKey:  src.str("CLOUDFLARE_API_KEY", "cloudflare", "api_key", ""),
		},
		Notify: NotifyConfig{
			RedisChannelPrefix: src.str("NOTIFY_CHANNEL_PREFIX", "notify", "redis_channel_prefix", "domainlink:user:"),
		},
	}

	// Validate required fields
	if cfg.MySQL.DSN == "" {
		return nil, fmt.Errorf("MYSQL_DSN is required")
	}
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.Linking.CheckIntervalSec <= 0 {
		return nil, fmt.Errorf("check_interval_sec must be positive")
	}
	if cfg.Cloudflare.Enabled && (cfg.Cloudflare.Email == "" || cfg.Cloudflare.APIKey == "") {
		return nil, fmt.Errorf("CLOUDFLARE_EMAIL and CLOUDFLARE_API_KEY are required when cloudflare is enabled")
	}

	return cfg, nil
}
