package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arklim/library-staff-auth/internal/core/domain"
)

const envPrefix = "STAFF"

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Password  PasswordSettings  `mapstructure:"password"`
	Session   SessionSettings   `mapstructure:"session"`
	Breach    BreachSettings    `mapstructure:"breach"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// CORSOrigins lists the SPA origins allowed to send credentialed requests.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// IsProduction reports whether debug-only behaviour must be suppressed.
func (s AppSettings) IsProduction() bool {
	return strings.EqualFold(s.Env, "production")
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	Schema            string        `mapstructure:"schema"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures Redis connection, TLS and key prefixes
type RedisSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	DB                int           `mapstructure:"db"`
	Password          string        `mapstructure:"password"`
	TLSEnabled        bool          `mapstructure:"tls_enabled"`
	RateLimitPrefix   string        `mapstructure:"rate_limit_prefix"`
	TerminationPrefix string        `mapstructure:"termination_prefix"`
	TerminationTTL    time.Duration `mapstructure:"termination_ttl"`
}

// KafkaSettings configures the security event producer. Empty brokers selects the logging stub.
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type TelemetrySettings struct {
	TracingEnabled bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string  `mapstructure:"otlp_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings configures the login sliding window
type RateLimitSettings struct {
	WindowDuration   time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts int           `mapstructure:"login_max_attempts"`
}

// PasswordSettings configures hashing, policy and history depth
type PasswordSettings struct {
	Algorithm       string         `mapstructure:"algorithm"`
	BcryptCost      int            `mapstructure:"bcrypt_cost"`
	Argon2          Argon2Settings `mapstructure:"argon2"`
	MinLength       int            `mapstructure:"min_length"`
	MinZxcvbnScore  int            `mapstructure:"min_zxcvbn_score"`
	HistoryDepth    int            `mapstructure:"history_depth"`
	TemporaryLength int            `mapstructure:"temporary_length"`
}

// Argon2Settings configures Argon2id password hashing parameters
type Argon2Settings struct {
	Memory      uint32 `mapstructure:"memory"`
	Iterations  uint32 `mapstructure:"iterations"`
	Parallelism uint8  `mapstructure:"parallelism"`
	SaltLength  uint32 `mapstructure:"salt_length"`
	KeyLength   uint32 `mapstructure:"key_length"`
}

// SessionSettings configures timeouts, per-role limits and the session cookie
type SessionSettings struct {
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	AbsoluteTimeout time.Duration `mapstructure:"absolute_timeout"`
	AdminLimit      int           `mapstructure:"admin_limit"`
	StaffLimit      int           `mapstructure:"staff_limit"`
	CookieName      string        `mapstructure:"cookie_name"`
	CookieSecure    bool          `mapstructure:"cookie_secure"`
	CookieDomain    string        `mapstructure:"cookie_domain"`
}

// BreachSettings configures the external breach list lookup
type BreachSettings struct {
	Enabled           bool          `mapstructure:"enabled"`
	Endpoint          string        `mapstructure:"endpoint"`
	Timeout           time.Duration `mapstructure:"timeout"`
	DegradationPolicy string        `mapstructure:"degradation_policy"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.cors_origins",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.schema",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.rate_limit_prefix",
		"redis.termination_prefix",
		"redis.termination_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"password.algorithm",
		"password.bcrypt_cost",
		"password.argon2.memory",
		"password.argon2.iterations",
		"password.argon2.parallelism",
		"password.argon2.salt_length",
		"password.argon2.key_length",
		"password.min_length",
		"password.min_zxcvbn_score",
		"password.history_depth",
		"password.temporary_length",
		"session.idle_timeout",
		"session.absolute_timeout",
		"session.admin_limit",
		"session.staff_limit",
		"session.cookie_name",
		"session.cookie_secure",
		"session.cookie_domain",
		"breach.enabled",
		"breach.endpoint",
		"breach.timeout",
		"breach.degradation_policy",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings that would break the session and lockout invariants.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Session.AdminLimit < 1 || c.Session.StaffLimit < 1 {
		errs = append(errs, errors.New("session limits must be at least 1"))
	}
	if c.Session.IdleTimeout <= 0 || c.Session.AbsoluteTimeout <= 0 {
		errs = append(errs, errors.New("session timeouts must be positive"))
	}
	if c.Session.IdleTimeout > c.Session.AbsoluteTimeout {
		errs = append(errs, errors.New("session idle timeout cannot exceed the absolute timeout"))
	}
	if c.Password.HistoryDepth < 1 {
		errs = append(errs, errors.New("password history depth must be at least 1"))
	}
	if c.Password.TemporaryLength < 12 || c.Password.TemporaryLength > domain.MaxPasswordBytes {
		errs = append(errs, fmt.Errorf("temporary password length must be between 12 and %d", domain.MaxPasswordBytes))
	}
	if c.Password.MinZxcvbnScore < 0 || c.Password.MinZxcvbnScore > 4 {
		errs = append(errs, errors.New("password zxcvbn score must be between 0 and 4"))
	}
	if c.RateLimit.WindowDuration <= 0 {
		errs = append(errs, errors.New("rate limit window must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "library-staff-auth")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.cors_origins", []string{"http://localhost:5173"})

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "library")
	v.SetDefault("postgres.password", "library_password")
	v.SetDefault("postgres.database", "library")
	v.SetDefault("postgres.schema", "library")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.rate_limit_prefix", "staff:ratelimit")
	v.SetDefault("redis.termination_prefix", "staff:session_term")
	v.SetDefault("redis.termination_ttl", "24h")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "library")

	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "library-staff-auth")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)

	v.SetDefault("password.algorithm", "bcrypt")
	v.SetDefault("password.bcrypt_cost", 12)
	v.SetDefault("password.argon2.memory", 65536) // 64 MB
	v.SetDefault("password.argon2.iterations", 3)
	v.SetDefault("password.argon2.parallelism", 4)
	v.SetDefault("password.argon2.salt_length", 16)
	v.SetDefault("password.argon2.key_length", 32)
	v.SetDefault("password.min_length", 12)
	v.SetDefault("password.min_zxcvbn_score", 0)
	v.SetDefault("password.history_depth", 5)
	v.SetDefault("password.temporary_length", 16)

	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.absolute_timeout", "8h")
	v.SetDefault("session.admin_limit", 1)
	v.SetDefault("session.staff_limit", 3)
	v.SetDefault("session.cookie_name", "staff_session")
	v.SetDefault("session.cookie_secure", true)
	v.SetDefault("session.cookie_domain", "")

	v.SetDefault("breach.enabled", true)
	v.SetDefault("breach.endpoint", "https://api.pwnedpasswords.com/range/")
	v.SetDefault("breach.timeout", "5s")
	v.SetDefault("breach.degradation_policy", "lenient")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
