package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel   string
	VROps      VROpsConfig
	Export     ExportConfig
	Server     ServerConfig
	Schedule   ScheduleConfig
	Database   DatabaseConfig
	S3         S3Config
	Dynamo     DynamoConfig
	NATS       NATSConfig
	Redis      RedisConfig
	CloudWatch CloudWatchConfig
	Prometheus PrometheusConfig
	HostProbe  HostProbeConfig
	Security   SecurityConfig
}

// VROpsConfig controls the platform transport.
//
// InsecureSkipVerify disables TLS certificate verification. It defaults to true
// because vROps nodes ship a self-signed certificate; set
// VROPS_TLS_INSECURE_SKIP_VERIFY=false when the cluster presents a trusted chain.
//
// HTTPTimeout bounds every single platform call (VROPS_HTTP_TIMEOUT).
type VROpsConfig struct {
	Scheme             string
	HTTPTimeout        time.Duration
	InsecureSkipVerify bool
	RequestsPerSecond  float64
	Burst              int
}

type ExportConfig struct {
	Formats []string
	Window  time.Duration
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

type ScheduleConfig struct {
	Interval   time.Duration
	RunTimeout time.Duration
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	Retention       time.Duration
}

type S3Config struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
	URLMode         string
	PresignedTTL    time.Duration
}

type DynamoConfig struct {
	Enabled         bool
	TableName       string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	StrongReads     bool
	ManifestTTLDays int
}

type NATSConfig struct {
	Enabled bool
	URL     string
	Subject string
}

type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         string
	Password     string
	DB           int
	TTL          time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type CloudWatchConfig struct {
	MetricsEnabled           bool
	LogsEnabled              bool
	Region                   string
	Endpoint                 string
	AccessKeyID              string
	SecretAccessKey          string
	MetricsNamespace         string
	MetricsDimensions        map[string]string
	MetricsBufferSize        int
	MetricsStorageResolution int32
	LogGroupName             string
	LogStreamName            string
	LogsBufferSize           int
}

type PrometheusConfig struct {
	TextfilePath string
}

type HostProbeConfig struct {
	Enabled   bool
	DiskPaths []string
}

type SecurityConfig struct {
	AllowedOrigins []string
	AuthEnabled    bool
	AuthToken      string
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	httpTimeout, err := parseDuration(getEnv("VROPS_HTTP_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid VROPS_HTTP_TIMEOUT: %w", err)
	}
	if httpTimeout <= 0 {
		return nil, fmt.Errorf("invalid VROPS_HTTP_TIMEOUT: must be positive")
	}

	rps, err := strconv.ParseFloat(getEnv("VROPS_REQUESTS_PER_SECOND", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid VROPS_REQUESTS_PER_SECOND: %w", err)
	}
	if rps < 0 {
		return nil, fmt.Errorf("invalid VROPS_REQUESTS_PER_SECOND: must not be negative")
	}

	burst, err := strconv.Atoi(getEnv("VROPS_REQUESTS_BURST", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid VROPS_REQUESTS_BURST: %w", err)
	}

	window, err := parseDuration(getEnv("EXPORT_WINDOW", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid EXPORT_WINDOW: %w", err)
	}

	interval, err := parseDuration(getEnv("SCHEDULE_INTERVAL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_INTERVAL: %w", err)
	}
	if interval < time.Minute {
		return nil, fmt.Errorf("invalid SCHEDULE_INTERVAL: must be >= 1m")
	}

	runTimeout, err := parseDuration(getEnv("SCHEDULE_RUN_TIMEOUT", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE_RUN_TIMEOUT: %w", err)
	}

	apiRPS, err := strconv.ParseFloat(getEnv("SERVER_RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_RATE_LIMIT_RPS: %w", err)
	}

	apiBurst, err := strconv.Atoi(getEnv("SERVER_RATE_LIMIT_BURST", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_RATE_LIMIT_BURST: %w", err)
	}

	presignedTTL, err := parseDuration(getEnv("S3_PRESIGNED_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_PRESIGNED_TTL: %w", err)
	}

	manifestTTLDays, err := strconv.Atoi(getEnv("DYNAMODB_MANIFEST_TTL_DAYS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid DYNAMODB_MANIFEST_TTL_DAYS: %w", err)
	}

	retention, err := parseDuration(getEnv("DB_SAMPLE_RETENTION", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_SAMPLE_RETENTION: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	redisTTL, err := parseDuration(getEnv("REDIS_STATUS_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_STATUS_TTL: %w", err)
	}

	metricsBuffer, err := strconv.Atoi(getEnv("CLOUDWATCH_METRICS_BUFFER_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_METRICS_BUFFER_SIZE: %w", err)
	}

	storageResolution, err := strconv.Atoi(getEnv("CLOUDWATCH_METRICS_STORAGE_RESOLUTION", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_METRICS_STORAGE_RESOLUTION: %w", err)
	}

	logsBuffer, err := strconv.Atoi(getEnv("CLOUDWATCH_LOGS_BUFFER_SIZE", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid CLOUDWATCH_LOGS_BUFFER_SIZE: %w", err)
	}

	hostname, _ := os.Hostname()

	cfg := &Config{
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		VROps: VROpsConfig{
			Scheme:             strings.ToLower(getEnv("VROPS_SCHEME", "https")),
			HTTPTimeout:        httpTimeout,
			InsecureSkipVerify: getEnvBool("VROPS_TLS_INSECURE_SKIP_VERIFY", true),
			RequestsPerSecond:  rps,
			Burst:              burst,
		},
		Export: ExportConfig{
			Formats: splitCSV(strings.ToLower(getEnv("EXPORT_FORMATS", "csv"))),
			Window:  window,
		},
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8085"),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RateLimitRPS:    apiRPS,
			RateLimitBurst:  apiBurst,
		},
		Schedule: ScheduleConfig{
			Interval:   interval,
			RunTimeout: runTimeout,
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "selfmon"),
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 10 * time.Minute,
			Retention:       retention,
		},
		S3: S3Config{
			Enabled:         getEnvBool("S3_ENABLED", false),
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", true),
			KeyPrefix:       getEnv("S3_KEY_PREFIX", "selfmon"),
			URLMode:         getEnv("S3_URL_MODE", "presigned"),
			PresignedTTL:    presignedTTL,
		},
		Dynamo: DynamoConfig{
			Enabled:         getEnvBool("DYNAMODB_ENABLED", false),
			TableName:       getEnv("DYNAMODB_TABLE_REPORT_MANIFEST", "selfmon_report_manifest"),
			Region:          getEnv("DYNAMODB_REGION", "us-east-1"),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:     getEnv("DYNAMODB_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("DYNAMODB_SECRET_ACCESS_KEY", ""),
			StrongReads:     getEnvBool("DYNAMODB_STRONG_READS", false),
			ManifestTTLDays: manifestTTLDays,
		},
		NATS: NATSConfig{
			Enabled: getEnvBool("NATS_ENABLED", false),
			URL:     getEnv("NATS_URL", "nats://localhost:4222"),
			Subject: getEnv("NATS_SUBJECT", "vrops.selfmon.runs"),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           redisDB,
			TTL:          redisTTL,
			PoolSize:     4,
			MinIdleConns: 1,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		CloudWatch: CloudWatchConfig{
			MetricsEnabled:           getEnvBool("CLOUDWATCH_METRICS_ENABLED", false),
			LogsEnabled:              getEnvBool("CLOUDWATCH_LOGS_ENABLED", false),
			Region:                   getEnv("CLOUDWATCH_REGION", "us-east-1"),
			Endpoint:                 getEnv("CLOUDWATCH_ENDPOINT", ""),
			AccessKeyID:              getEnv("CLOUDWATCH_ACCESS_KEY_ID", ""),
			SecretAccessKey:          getEnv("CLOUDWATCH_SECRET_ACCESS_KEY", ""),
			MetricsNamespace:         getEnv("CLOUDWATCH_METRICS_NAMESPACE", "VROps/SelfMonitoring"),
			MetricsDimensions:        parseDimensions(getEnv("CLOUDWATCH_METRICS_DIMENSIONS", "")),
			MetricsBufferSize:        metricsBuffer,
			MetricsStorageResolution: int32(storageResolution),
			LogGroupName:             getEnv("CLOUDWATCH_LOG_GROUP", "/vrops/selfmon"),
			LogStreamName:            getEnv("CLOUDWATCH_LOG_STREAM", hostname),
			LogsBufferSize:           logsBuffer,
		},
		Prometheus: PrometheusConfig{
			TextfilePath: getEnv("PROMETHEUS_TEXTFILE_PATH", ""),
		},
		HostProbe: HostProbeConfig{
			Enabled:   getEnvBool("HOST_PROBE_ENABLED", true),
			DiskPaths: splitCSV(getEnv("HOST_PROBE_DISK_PATHS", "")),
		},
		Security: SecurityConfig{
			AllowedOrigins: splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:8085")),
			AuthEnabled:    getEnvBool("AUTH_ENABLED", false),
			AuthToken:      getEnv("AUTH_BEARER_TOKEN", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.VROps.Scheme != "https" && c.VROps.Scheme != "http" {
		return fmt.Errorf("invalid VROPS_SCHEME: %s", c.VROps.Scheme)
	}
	if len(c.Export.Formats) == 0 {
		return fmt.Errorf("EXPORT_FORMATS must name at least one format")
	}
	if c.Export.Window < 0 {
		return fmt.Errorf("invalid EXPORT_WINDOW: must not be negative")
	}
	if c.Database.Retention < 0 {
		return fmt.Errorf("invalid DB_SAMPLE_RETENTION: must not be negative")
	}
	if c.Security.AuthEnabled && c.Security.AuthToken == "" {
		return fmt.Errorf("AUTH_BEARER_TOKEN is required when AUTH_ENABLED=true")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required when S3_ENABLED=true")
	}
	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func splitCSV(raw string) []string {
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// parseDimensions reads "Key=Value,Key2=Value2".
func parseDimensions(raw string) map[string]string {
	dims := make(map[string]string)
	for _, pair := range splitCSV(raw) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		dims[key] = strings.TrimSpace(value)
	}
	return dims
}

func parseDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}
