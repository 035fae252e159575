package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Storage drivers.
const (
	DriverFile  = "file"
	DriverMinIO = "minio"
)

// Config holds the main configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Storage    Storage    `mapstructure:"storage"`
	Processing Processing `mapstructure:"processing"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Retry      Retry      `mapstructure:"retry"`
	Telemetry  Telemetry  `mapstructure:"telemetry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort        string        `mapstructure:"http_port"`        // HTTP address to listen on
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`     // Max time to read a request, body included
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // Max time to write a response
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // Grace period on SIGINT/SIGTERM
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"` // Multipart memory limit
	PublicDir       string        `mapstructure:"public_dir"`       // Optional built frontend to serve
}

// Storage holds configuration for the artifact store.
type Storage struct {
	Driver  string `mapstructure:"driver"`   // "file" or "minio"
	BaseDir string `mapstructure:"base_dir"` // Artifact directory for the file driver
	MinIO   MinIO  `mapstructure:"minio"`
}

// MinIO holds configuration for the S3-compatible artifact store.
type MinIO struct {
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	Prefix     string `mapstructure:"prefix"`
	Region     string `mapstructure:"region"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Processing holds the resize bounds, in pixels along the larger side, and
// the input size limit.
type Processing struct {
	PreviewBound   int   `mapstructure:"preview_bound"`
	ProcessedBound int   `mapstructure:"processed_bound"`
	MaxInputPixels int64 `mapstructure:"max_input_pixels"` // Larger inputs are refused before decoding
}

// Kafka holds configuration for artifact event publishing.
type Kafka struct {
	Enabled bool     `mapstructure:"enabled"`
	Topic   string   `mapstructure:"topic"`   // Kafka topic name
	Brokers []string `mapstructure:"brokers"` // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// Telemetry holds tracing configuration.
type Telemetry struct {
	ServiceName  string  `mapstructure:"service_name"`
	Exporter     string  `mapstructure:"exporter"` // none, stdout or otlp
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio"` // share of root spans kept, 0..1
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":3001")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("server.public_dir", "")

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.base_dir", "upload")
	v.SetDefault("storage.minio.prefix", "upload")
	v.SetDefault("storage.minio.use_ssl", false)
	v.SetDefault("storage.minio.region", "")

	v.SetDefault("processing.preview_bound", 200)
	v.SetDefault("processing.processed_bound", 800)
	v.SetDefault("processing.max_input_pixels", 0x3FFF*0x3FFF)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.topic", "artifacts")

	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 100*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)

	v.SetDefault("telemetry.service_name", "image-converter")
	v.SetDefault("telemetry.exporter", "none")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)
}

// bindEnv binds environment variables that do not follow the KEY_SUBKEY scheme.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"server.http_port":          "HTTP_PORT",
		"storage.minio.endpoint":    "MINIO_ENDPOINT",
		"storage.minio.access_key":  "MINIO_ACCESS_KEY",
		"storage.minio.secret_key":  "MINIO_SECRET_KEY",
		"storage.minio.bucket_name": "MINIO_BUCKET",
		"storage.minio.region":      "MINIO_REGION",
		"kafka.brokers":             "KAFKA_BROKERS",
		"telemetry.otlp_endpoint":   "OTEL_EXPORTER_OTLP_ENDPOINT",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the configuration from the YAML file at path, then applies
// environment overrides. A missing file is not an error: defaults and the
// environment are enough to run.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Broker lists from the environment arrive as one comma separated string.
	cfg.Kafka.Brokers = splitList(strings.Join(cfg.Kafka.Brokers, ","))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad loads .env files (if any) and the configuration from the specified
// file path. It panics if the configuration cannot be loaded.
func MustLoad(path string) *Config {
	if err := godotenv.Load(); err == nil {
		zlog.Logger.Info().Msg("loaded .env")
	}

	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case DriverFile:
		if strings.TrimSpace(c.Storage.BaseDir) == "" {
			return errors.New("storage.base_dir is required for the file driver")
		}
	case DriverMinIO:
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.BucketName == "" {
			return errors.New("storage.minio.endpoint and storage.minio.bucket_name are required for the minio driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("kafka.brokers is required when kafka is enabled")
	}

	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
