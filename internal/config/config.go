package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port int    `envconfig:"PORT" default:"3000"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`

	// Directories
	DocumentsDir string `envconfig:"DOCUMENTS_DIR" default:"documents"`
	OutputDir    string `envconfig:"OUTPUT_DIR" default:"output"`
	AssetsDir    string `envconfig:"ASSETS_DIR" default:"assets"`
	PreviewFile  string `envconfig:"PREVIEW_FILE"`

	// Rendering
	Renderer      string        `envconfig:"RENDERER" default:"weasyprint"`
	WeasyPrintBin string        `envconfig:"WEASYPRINT_BIN" default:"weasyprint"`
	ChromePath    string        `envconfig:"CHROME_PATH"`
	RenderTimeout time.Duration `envconfig:"RENDER_TIMEOUT" default:"60s"`
	ExportDOCX    bool          `envconfig:"EXPORT_DOCX" default:"false"`

	// Watcher
	SettleWindow time.Duration `envconfig:"SETTLE_WINDOW" default:"500ms"`
	BuildOnStart bool          `envconfig:"BUILD_ON_START" default:"false"`

	// Worker pool
	WorkerCount  int           `envconfig:"WORKER_COUNT" default:"2"`
	MaxQueueSize int           `envconfig:"MAX_QUEUE_SIZE" default:"100"`
	JobTTL       time.Duration `envconfig:"JOB_TTL" default:"1h"`

	// Auth
	APIKey string `envconfig:"API_KEY"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	switch c.Renderer {
	case "weasyprint", "chrome":
	default:
		return fmt.Errorf("RENDERER must be weasyprint or chrome, got %q", c.Renderer)
	}
	if c.DocumentsDir == "" {
		return fmt.Errorf("DOCUMENTS_DIR is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.MaxQueueSize <= 0 {
		return fmt.Errorf("MAX_QUEUE_SIZE must be positive, got %d", c.MaxQueueSize)
	}
	if c.RenderTimeout <= 0 {
		return fmt.Errorf("RENDER_TIMEOUT must be positive")
	}
	if c.SettleWindow < 0 {
		return fmt.Errorf("SETTLE_WINDOW must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Addr is the HTTP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
