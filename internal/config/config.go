package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`
	Health    HealthConfig    `yaml:"health"`
	Recovery  RecoveryConfig  `yaml:"recovery"`
	Processor ProcessorConfig `yaml:"processor"`
	Gate      GateConfig      `yaml:"gate"`
	Sender    SenderConfig    `yaml:"sender"`
	DNS       DNSConfig       `yaml:"dns"`
	Audit     AuditConfig     `yaml:"audit"`
	AWS       AWSConfig       `yaml:"aws"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL                 string `yaml:"url"`
	MaxOpenConns        int    `yaml:"max_open_conns"`
	MaxIdleConns        int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMins int    `yaml:"conn_max_lifetime_minutes"`
}

// ConnMaxLifetime returns the connection lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMins) * time.Minute
}

// RedisConfig holds Redis settings. Redis is optional: without it, worker
// ticks fall back to Postgres advisory locks and webhook dedupe runs in-process.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis URL or address is configured
func (c RedisConfig) Enabled() bool { return c.URL != "" || c.Addr != "" }

// StorageConfig selects the repository backend: "postgres" or "memory"
type StorageConfig struct {
	Type string `yaml:"type"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// ShouldRedact returns the PII redaction flag, defaulting to true
func (c LogConfig) ShouldRedact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// HealthConfig holds the bounce window and escalation thresholds
type HealthConfig struct {
	WindowSize             int `yaml:"window_size"`
	BounceThreshold        int `yaml:"bounce_threshold"`
	DomainWarningThreshold int `yaml:"domain_warning_threshold"`
	MaxWriteRetries        int `yaml:"max_write_retries"`
}

// RecoveryConfig holds the graduated recovery thresholds
type RecoveryConfig struct {
	IntervalSeconds         int              `yaml:"interval_seconds"`
	CooldownHours           float64          `yaml:"cooldown_hours"`
	MaxCooldownHours        float64          `yaml:"max_cooldown_hours"`
	RestrictedCleanSends    int              `yaml:"restricted_clean_sends"`
	RepeatOffenderCleanSend int              `yaml:"repeat_offender_clean_sends"`
	WarmCleanSends          int              `yaml:"warm_clean_sends"`
	WarmMinDays             float64          `yaml:"warm_min_days"`
	WarmMaxBounceRate       float64          `yaml:"warm_max_bounce_rate"`
	RestrictedSendCapPct    int              `yaml:"restricted_send_cap_pct"`
	WarmSendCapPct          int              `yaml:"warm_send_cap_pct"`
	DNSTimeoutSeconds       int              `yaml:"dns_timeout_seconds"`
	Resilience              ResilienceConfig `yaml:"resilience"`
}

// Interval returns the recovery tick interval as a duration
func (c RecoveryConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Cooldown returns the base paused→quarantine cooldown
func (c RecoveryConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownHours * float64(time.Hour))
}

// MaxCooldown returns the cooldown ceiling for repeat offenders
func (c RecoveryConfig) MaxCooldown() time.Duration {
	return time.Duration(c.MaxCooldownHours * float64(time.Hour))
}

// WarmMinDuration returns the minimum time spent in warm recovery
func (c RecoveryConfig) WarmMinDuration() time.Duration {
	return time.Duration(c.WarmMinDays * 24 * float64(time.Hour))
}

// DNSTimeout returns the per-check DNS validation timeout
func (c RecoveryConfig) DNSTimeout() time.Duration {
	return time.Duration(c.DNSTimeoutSeconds) * time.Second
}

// ResilienceConfig holds the resilience score weights
type ResilienceConfig struct {
	PausePenalty    float64 `yaml:"pause_penalty"`
	RelapsePenalty  float64 `yaml:"relapse_penalty"`
	CleanSendGain   float64 `yaml:"clean_send_gain"`
	GraduationBonus float64 `yaml:"graduation_bonus"`
}

// ProcessorConfig holds the lead processor loop settings
type ProcessorConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	BatchSize       int `yaml:"batch_size"`
}

// Interval returns the processor tick interval as a duration
func (c ProcessorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// GateConfig holds execution gate settings. CapacityScope is "campaign"
// (count mailboxes linked to the campaign) or "global" (any mailbox).
type GateConfig struct {
	CapacityScope string `yaml:"capacity_scope"`
}

// SenderConfig holds the sending platform API settings
type SenderConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// Timeout returns the configured timeout as a duration
func (c SenderConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DNSConfig selects the authentication checker: "resolver" (live DNS) or
// "route53" (records read from a hosted zone).
type DNSConfig struct {
	Provider     string `yaml:"provider"`
	DKIMSelector string `yaml:"dkim_selector"`
	HostedZoneID string `yaml:"hosted_zone_id"`
}

// AuditConfig holds audit trail settings
type AuditConfig struct {
	BufferSize    int    `yaml:"buffer_size"`
	DynamoDBTable string `yaml:"dynamodb_table"`
	TTLDays       int    `yaml:"ttl_days"`
}

// AWSConfig holds shared AWS client settings
type AWSConfig struct {
	Region    string `yaml:"region"`
	Profile   string `yaml:"profile"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// GetProfile returns the AWS profile; empty on ECS/Lambda so the task role is used
func (c AWSConfig) GetProfile() string {
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return ""
	}
	return c.Profile
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration with every default applied, for running
// without a config file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMins == 0 {
		cfg.Database.ConnMaxLifetimeMins = 5
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "postgres"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	// Health thresholds
	if cfg.Health.WindowSize == 0 {
		cfg.Health.WindowSize = 100
	}
	if cfg.Health.BounceThreshold == 0 {
		cfg.Health.BounceThreshold = 5
	}
	if cfg.Health.DomainWarningThreshold == 0 {
		cfg.Health.DomainWarningThreshold = 2
	}
	if cfg.Health.MaxWriteRetries == 0 {
		cfg.Health.MaxWriteRetries = 8
	}

	// Recovery thresholds
	if cfg.Recovery.IntervalSeconds == 0 {
		cfg.Recovery.IntervalSeconds = 300
	}
	if cfg.Recovery.CooldownHours == 0 {
		cfg.Recovery.CooldownHours = 4
	}
	if cfg.Recovery.MaxCooldownHours == 0 {
		cfg.Recovery.MaxCooldownHours = 48
	}
	if cfg.Recovery.RestrictedCleanSends == 0 {
		cfg.Recovery.RestrictedCleanSends = 15
	}
	if cfg.Recovery.RepeatOffenderCleanSend == 0 {
		cfg.Recovery.RepeatOffenderCleanSend = 25
	}
	if cfg.Recovery.WarmCleanSends == 0 {
		cfg.Recovery.WarmCleanSends = 50
	}
	if cfg.Recovery.WarmMinDays == 0 {
		cfg.Recovery.WarmMinDays = 3
	}
	if cfg.Recovery.WarmMaxBounceRate == 0 {
		cfg.Recovery.WarmMaxBounceRate = 0.02
	}
	if cfg.Recovery.RestrictedSendCapPct == 0 {
		cfg.Recovery.RestrictedSendCapPct = 25
	}
	if cfg.Recovery.WarmSendCapPct == 0 {
		cfg.Recovery.WarmSendCapPct = 50
	}
	if cfg.Recovery.DNSTimeoutSeconds == 0 {
		cfg.Recovery.DNSTimeoutSeconds = 10
	}
	if cfg.Recovery.Resilience.PausePenalty == 0 {
		cfg.Recovery.Resilience.PausePenalty = 10
	}
	if cfg.Recovery.Resilience.RelapsePenalty == 0 {
		cfg.Recovery.Resilience.RelapsePenalty = 25
	}
	if cfg.Recovery.Resilience.CleanSendGain == 0 {
		cfg.Recovery.Resilience.CleanSendGain = 0.2
	}
	if cfg.Recovery.Resilience.GraduationBonus == 0 {
		cfg.Recovery.Resilience.GraduationBonus = 10
	}

	// Processor loop
	if cfg.Processor.IntervalSeconds == 0 {
		cfg.Processor.IntervalSeconds = 10
	}
	if cfg.Processor.BatchSize == 0 {
		cfg.Processor.BatchSize = 50
	}

	if cfg.Gate.CapacityScope == "" {
		cfg.Gate.CapacityScope = "campaign"
	}
	if cfg.Sender.TimeoutSeconds == 0 {
		cfg.Sender.TimeoutSeconds = 30
	}
	if cfg.Sender.MaxRetries == 0 {
		cfg.Sender.MaxRetries = 3
	}
	if cfg.DNS.Provider == "" {
		cfg.DNS.Provider = "resolver"
	}
	if cfg.Audit.BufferSize == 0 {
		cfg.Audit.BufferSize = 1024
	}
	if cfg.Audit.TTLDays == 0 {
		cfg.Audit.TTLDays = 90
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-west-2"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
// An empty path skips the YAML file and starts from defaults.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = Load(path)
		if err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SENDER_BASE_URL"); v != "" {
		cfg.Sender.BaseURL = v
	}
	if v := os.Getenv("SENDER_API_KEY"); v != "" {
		cfg.Sender.APIKey = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWS.Region = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		cfg.AWS.AccessKey = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		cfg.AWS.SecretKey = v
	}
	if v := os.Getenv("AUDIT_DYNAMODB_TABLE"); v != "" {
		cfg.Audit.DynamoDBTable = v
	}
	if v := os.Getenv("GATE_CAPACITY_SCOPE"); v != "" {
		cfg.Gate.CapacityScope = v
	}

	return cfg, nil
}
