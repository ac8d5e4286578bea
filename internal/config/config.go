package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server
	Port           int    `envconfig:"PORT" default:"3000"`
	Environment    string `envconfig:"ENV" default:"development"`
	LogLevel       string `envconfig:"LOG_LEVEL"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS" default:"*"`
	MaxUploadBytes int    `envconfig:"MAX_UPLOAD_BYTES" default:"524288000"`

	// Database (optional session log)
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Face provider
	FaceProvider   string  `envconfig:"FACE_PROVIDER" default:"dlib"`
	DlibModelsDir  string  `envconfig:"DLIB_MODELS_DIR" default:"./models"`
	DeepFaceURL    string  `envconfig:"DEEPFACE_URL" default:"http://localhost:5000"`
	MatchThreshold float64 `envconfig:"MATCH_THRESHOLD" default:"0.60"`
	MaxDimension   int     `envconfig:"MAX_IMAGE_DIMENSION" default:"0"`

	// Workspace
	WorkDir   string        `envconfig:"WORK_DIR" default:"/tmp/facefind"`
	ResultTTL time.Duration `envconfig:"RESULT_TTL" default:"15m"`

	// Archive limits
	MaxArchiveEntries int   `envconfig:"MAX_ARCHIVE_ENTRIES" default:"10000"`
	MaxArchiveBytes   int64 `envconfig:"MAX_ARCHIVE_BYTES" default:"4294967296"`

	// Remote sources
	GoogleAPIKey    string        `envconfig:"GOOGLE_API_KEY"`
	DriveMaxFiles   int           `envconfig:"DRIVE_MAX_FILES" default:"50"`
	S3Enabled       bool          `envconfig:"S3_ENABLED" default:"false"`
	S3Region        string        `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint      string        `envconfig:"S3_ENDPOINT"`
	S3MaxFiles      int           `envconfig:"S3_MAX_FILES" default:"500"`
	DownloadWorkers int           `envconfig:"DOWNLOAD_WORKERS" default:"5"`
	DownloadTimeout time.Duration `envconfig:"DOWNLOAD_TIMEOUT" default:"30s"`

	// Notifications
	DiscordWebhookURL string        `envconfig:"DISCORD_WEBHOOK_URL"`
	WebhookURL        string        `envconfig:"WEBHOOK_URL"`
	WebhookSecret     string        `envconfig:"WEBHOOK_SECRET"`
	MQTTBroker        string        `envconfig:"MQTT_BROKER"`
	MQTTTopic         string        `envconfig:"MQTT_TOPIC" default:"facefind/sessions"`
	MQTTClientID      string        `envconfig:"MQTT_CLIENT_ID" default:"facefind"`
	NotifyTimeout     time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"10s"`

	// Rate limiting
	RateLimitMax    int           `envconfig:"RATE_LIMIT_MAX" default:"10"`
	RateLimitWindow time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// Load reads the configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables always take precedence over it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0, 1], got %v", c.MatchThreshold)
	}
	if c.DownloadWorkers < 1 {
		return fmt.Errorf("DOWNLOAD_WORKERS must be positive, got %d", c.DownloadWorkers)
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("MAX_IMAGE_DIMENSION must not be negative, got %d", c.MaxDimension)
	}
	if c.WorkDir == "" {
		return errors.New("WORK_DIR must not be empty")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DriveEnabled reports whether Google Drive links can be served.
func (c *Config) DriveEnabled() bool {
	return c.GoogleAPIKey != ""
}

func (c *Config) DatabaseEnabled() bool {
	return c.DatabaseURL != ""
}
