// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full service configuration.
type Config struct {
	Service       ServiceConfig
	Backend       BackendConfig
	Session       SessionConfig
	Capture       CaptureConfig
	Kafka         KafkaConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
}

type ServiceConfig struct {
	Name      string
	Principal string
	HTTPPort  string
	GRPCPort  string
}

// BackendConfig points at the remote classification service.
type BackendConfig struct {
	BaseURL        string
	HealthPath     string
	AnalyzePath    string
	HealthTimeout  time.Duration
	RequestTimeout time.Duration
	MaxAudioBytes  int64
	MinAudioBytes  int64
	Device         string
	RecordingType  string
	HealthInterval time.Duration // period of the background health check
}

type SessionConfig struct {
	TickInterval  time.Duration
	MaxRecording  time.Duration
	ReportTimeout time.Duration
}

// CaptureConfig selects the capture device. Driver is "file" or "mock".
type CaptureConfig struct {
	Driver     string
	SourcePath string
	SpoolDir   string
}

type KafkaConfig struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	Principal string
}

// RedisConfig configures the report cache. An empty Addr disables it.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads configuration from the environment. Unparsable values fall back
// to their defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-heart-sound-session")

	return &Config{
		Service: ServiceConfig{
			Name:      envOrDefault("SERVICE_NAME", "heart-sound-session-service"),
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
		},
		Backend: BackendConfig{
			BaseURL:        envOrDefault("BACKEND_BASE_URL", "http://localhost:8000"),
			HealthPath:     envOrDefault("BACKEND_HEALTH_PATH", "/health"),
			AnalyzePath:    envOrDefault("BACKEND_ANALYZE_PATH", "/analyze_heart_sound"),
			HealthTimeout:  envOrDefaultDuration("BACKEND_HEALTH_TIMEOUT", 5*time.Second),
			RequestTimeout: envOrDefaultDuration("BACKEND_REQUEST_TIMEOUT", 30*time.Second),
			MaxAudioBytes:  envOrDefaultInt64("BACKEND_MAX_AUDIO_BYTES", 10*1024*1024),
			MinAudioBytes:  envOrDefaultInt64("BACKEND_MIN_AUDIO_BYTES", 1024),
			Device:         envOrDefault("BACKEND_DEVICE", "digital_stethoscope"),
			RecordingType:  envOrDefault("BACKEND_RECORDING_TYPE", "heart_sound"),
			HealthInterval: envOrDefaultDuration("BACKEND_HEALTH_INTERVAL", 30*time.Second),
		},
		Session: SessionConfig{
			TickInterval:  envOrDefaultDuration("SESSION_TICK_INTERVAL", time.Second),
			MaxRecording:  envOrDefaultDuration("SESSION_MAX_RECORDING", 30*time.Second),
			ReportTimeout: envOrDefaultDuration("SESSION_REPORT_TIMEOUT", 5*time.Second),
		},
		Capture: CaptureConfig{
			Driver:     envOrDefault("CAPTURE_DRIVER", "file"),
			SourcePath: envOrDefault("CAPTURE_SOURCE_PATH", "testdata/heart_sound.m4a"),
			SpoolDir:   os.Getenv("CAPTURE_SPOOL_DIR"),
		},
		Kafka: KafkaConfig{
			Enabled:   envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:   envOrDefaultList("KAFKA_BROKERS", nil),
			Topic:     envOrDefault("KAFKA_TOPIC_REPORTS", "heart.session.reports"),
			Principal: envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Redis: RedisConfig{
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        envOrDefaultInt("REDIS_DB", 0),
			KeyPrefix: envOrDefault("REDIS_KEY_PREFIX", "heart:report:"),
			TTL:       envOrDefaultDuration("REDIS_REPORT_TTL", 24*time.Hour),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envOrDefaultInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// envOrDefaultList splits a comma-separated value, dropping blanks.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
