package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the batch analysis service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Patterns  PatternsConfig  `mapstructure:"patterns"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Security  SecurityConfig  `mapstructure:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxRequestSize  string        `mapstructure:"max_request_size"`
}

// DatabaseConfig holds PostgreSQL configuration for the transaction store
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns a pgx connection string with the credentials escaped
func (c DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig holds Redis configuration for the result store
type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	ResultTTL    time.Duration `mapstructure:"result_ttl"`
}

// Addr returns host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	Brokers             []string `mapstructure:"brokers"`
	ClientID            string   `mapstructure:"client_id"`
	AnalysisEventsTopic string   `mapstructure:"analysis_events_topic"`
	AlertsTopic         string   `mapstructure:"alerts_topic"`
	MaxRetries          int      `mapstructure:"max_retries"`
}

// PatternsConfig holds pattern detection configuration
type PatternsConfig struct {
	// Rapid succession
	RapidMinTransactions int           `mapstructure:"rapid_min_transactions"`
	RapidGapWindow       time.Duration `mapstructure:"rapid_gap_window"`
	RapidMinGaps         int           `mapstructure:"rapid_min_gaps"`
	RapidScorePerGap     float64       `mapstructure:"rapid_score_per_gap"`
	RapidScoreCap        float64       `mapstructure:"rapid_score_cap"`

	// Round-number bias
	RoundNumberUnit     float64 `mapstructure:"round_number_unit"`
	RoundNumberMinShare float64 `mapstructure:"round_number_min_share"`
	RoundNumberScore    float64 `mapstructure:"round_number_score"`

	// Structuring
	StructuringThreshold float64 `mapstructure:"structuring_threshold"`
	StructuringBandRatio float64 `mapstructure:"structuring_band_ratio"`
	StructuringScore     float64 `mapstructure:"structuring_score"`
}

// DefaultPatternsConfig returns the reference detection thresholds
func DefaultPatternsConfig() PatternsConfig {
	return PatternsConfig{
		RapidMinTransactions: 5,
		RapidGapWindow:       5 * time.Minute,
		RapidMinGaps:         3,
		RapidScorePerGap:     0.2,
		RapidScoreCap:        0.9,
		RoundNumberUnit:      1000,
		RoundNumberMinShare:  0.1,
		RoundNumberScore:     0.6,
		StructuringThreshold: 10000,
		StructuringBandRatio: 0.9,
		StructuringScore:     0.8,
	}
}

// AnalysisConfig holds orchestration configuration
type AnalysisConfig struct {
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	MaxRunLatency   time.Duration `mapstructure:"max_run_latency"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
}

// BreakerConfig holds circuit breaker settings for the transaction store
type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName   string  `mapstructure:"service_name"`
	Environment   string  `mapstructure:"environment"`
	Debug         bool    `mapstructure:"debug"`
	TracingOn     bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint"`
	SamplingRatio float64 `mapstructure:"sampling_ratio"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	JWTSecret      string   `mapstructure:"jwt_secret"`
	RequireAuth    bool     `mapstructure:"require_auth"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load loads configuration from environment and config files
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("BATCH_ANALYSIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/batch-analysis")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file not found, use defaults + env
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_request_size", "1M")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "aegisshield")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "1s")
	v.SetDefault("redis.write_timeout", "1s")
	v.SetDefault("redis.result_ttl", "168h") // 7 days

	// Kafka defaults
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", "batch-analysis")
	v.SetDefault("kafka.analysis_events_topic", "banking.aml.analysis")
	v.SetDefault("kafka.alerts_topic", "banking.aml.alerts")
	v.SetDefault("kafka.max_retries", 3)

	// Pattern detection defaults
	p := DefaultPatternsConfig()
	v.SetDefault("patterns.rapid_min_transactions", p.RapidMinTransactions)
	v.SetDefault("patterns.rapid_gap_window", p.RapidGapWindow.String())
	v.SetDefault("patterns.rapid_min_gaps", p.RapidMinGaps)
	v.SetDefault("patterns.rapid_score_per_gap", p.RapidScorePerGap)
	v.SetDefault("patterns.rapid_score_cap", p.RapidScoreCap)
	v.SetDefault("patterns.round_number_unit", p.RoundNumberUnit)
	v.SetDefault("patterns.round_number_min_share", p.RoundNumberMinShare)
	v.SetDefault("patterns.round_number_score", p.RoundNumberScore)
	v.SetDefault("patterns.structuring_threshold", p.StructuringThreshold)
	v.SetDefault("patterns.structuring_band_ratio", p.StructuringBandRatio)
	v.SetDefault("patterns.structuring_score", p.StructuringScore)

	// Analysis defaults
	v.SetDefault("analysis.fetch_timeout", "30s")
	v.SetDefault("analysis.max_run_latency", "10s")
	v.SetDefault("analysis.dispatch_timeout", "5s")

	// Breaker defaults
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", "60s")
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.consecutive_failures", 5)

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "batch-analysis")
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("telemetry.debug", false)
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 0.1)

	// Security defaults
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.require_auth", true)
	v.SetDefault("security.allowed_origins", []string{"*"})
}
