package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MimeLyc/video-annotator/pkg/icron"
)

// Config holds all application configuration, read from the environment.
//
// Environment Variables:
// - LOG_LEVEL: debug, info, warn or error (default: info)
// - HTTP_ADDR: listen address of the API (default: :8080)
// - UI_ENABLED, UI_STATIC_DIR: serve a web front-end from a directory
// - DEFAULT_FPS: frame rate used when opening a video without one (default: 10)
// - DEBUG: skip background pre-fetch (default: false)
// - FORMAT_VERSION: version written into session documents (default: v2.0.0)
// - KEYFRAME_STRIDE: frames between keyframes (default: 50)
// - LABELS_FILE: label configuration JSON (optional, built-in labels otherwise)
// - VIDEO_SRC: video opened at startup (optional)
// - FRAME_DUMP_DIR, FRAME_DUMP_WORKERS: frame export target and parallelism
// - FFMPEG_BIN, FFPROBE_BIN, JPEG_QUALITY: decoder binaries and frame quality
// - DATA_DIR, DB_PATH: local state; DB_PATH defaults to DATA_DIR/annotator.db
// - AUTOSAVE_CRON: six-field cron expression, empty disables autosave
// - AUTOSAVE_DIR: directory sink for saved documents (optional)
// - DOCUMENT_NAME: default document name (default: annotations)
// - SETTINGS_FILE: runtime settings overriding the environment
// - MINIO_ENABLED, MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY,
//   MINIO_USE_SSL, MINIO_BUCKET, MINIO_PREFIX: remote document sink
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" json:"log_level"`

	HTTP    HTTPConfig    `json:"http"`
	Session SessionConfig `json:"session"`
	Media   MediaConfig   `json:"media"`
	Storage StorageConfig `json:"storage"`
	MinIO   MinIOConfig   `json:"minio"`
}

type HTTPConfig struct {
	Addr        string `env:"HTTP_ADDR"     envDefault:":8080"    json:"addr"`
	UIEnabled   bool   `env:"UI_ENABLED"    envDefault:"false"    json:"ui_enabled"`
	UIStaticDir string `env:"UI_STATIC_DIR" envDefault:"/app/web" json:"ui_static_dir"`
}

type SessionConfig struct {
	DefaultFPS       float64 `env:"DEFAULT_FPS"        envDefault:"10"               json:"default_fps"`
	Debug            bool    `env:"DEBUG"              envDefault:"false"            json:"debug"`
	FormatVersion    string  `env:"FORMAT_VERSION"     envDefault:"v2.0.0"           json:"format_version"`
	KeyframeStride   int     `env:"KEYFRAME_STRIDE"    envDefault:"50"               json:"keyframe_stride"`
	LabelsFile       string  `env:"LABELS_FILE"                                      json:"labels_file"`
	VideoSrc         string  `env:"VIDEO_SRC"                                        json:"video_src"`
	FrameDumpDir     string  `env:"FRAME_DUMP_DIR"     envDefault:"/app/data/frames" json:"frame_dump_dir"`
	FrameDumpWorkers int     `env:"FRAME_DUMP_WORKERS" envDefault:"4"                json:"frame_dump_workers"`
}

type MediaConfig struct {
	FFmpegBin   string `env:"FFMPEG_BIN"   envDefault:"ffmpeg"  json:"ffmpeg_bin"`
	FFprobeBin  string `env:"FFPROBE_BIN"  envDefault:"ffprobe" json:"ffprobe_bin"`
	JPEGQuality int    `env:"JPEG_QUALITY" envDefault:"3"       json:"jpeg_quality"`
}

type StorageConfig struct {
	DataDir      string `env:"DATA_DIR"      envDefault:"/app/data"                 json:"data_dir"`
	DBFile       string `env:"DB_PATH"                                              json:"db_path"`
	AutosaveCron string `env:"AUTOSAVE_CRON" envDefault:"*/30 * * * * *"           json:"autosave_cron"`
	AutosaveDir  string `env:"AUTOSAVE_DIR"                                         json:"autosave_dir"`
	DocumentName string `env:"DOCUMENT_NAME" envDefault:"annotations"               json:"document_name"`
	SettingsFile string `env:"SETTINGS_FILE" envDefault:"/app/config/settings.json" json:"settings_file"`
}

type MinIOConfig struct {
	Enabled   bool   `env:"MINIO_ENABLED"    envDefault:"false"       json:"enabled"`
	Endpoint  string `env:"MINIO_ENDPOINT"   envDefault:"minio:9000"  json:"endpoint"`
	AccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"  json:"-"`
	SecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"  json:"-"`
	UseSSL    bool   `env:"MINIO_USE_SSL"    envDefault:"false"       json:"use_ssl"`
	Bucket    string `env:"MINIO_BUCKET"     envDefault:"annotations" json:"bucket"`
	Prefix    string `env:"MINIO_PREFIX"                              json:"prefix"`
}

// DBPath is DB_PATH when set, otherwise annotator.db inside the data dir.
func (c *Config) DBPath() string {
	if strings.TrimSpace(c.Storage.DBFile) != "" {
		return c.Storage.DBFile
	}
	return filepath.Join(c.Storage.DataDir, "annotator.db")
}

// Option is a function type for configuring Config
type Option func(*Config)

// New loads a .env file from the working directory when one exists, then
// reads the environment.
func New(opts ...Option) (*Config, error) {
	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	return NewFromEnv(opts...)
}

// LoadDotEnv exports the variables of path that are not already set.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Session.DefaultFPS <= 0 {
		return fmt.Errorf("DEFAULT_FPS must be positive, got %v", c.Session.DefaultFPS)
	}
	if c.Session.KeyframeStride <= 0 {
		return fmt.Errorf("KEYFRAME_STRIDE must be positive, got %d", c.Session.KeyframeStride)
	}
	if c.Session.FrameDumpWorkers <= 0 {
		return fmt.Errorf("FRAME_DUMP_WORKERS must be positive, got %d", c.Session.FrameDumpWorkers)
	}
	if strings.TrimSpace(c.Session.FormatVersion) == "" {
		return fmt.Errorf("FORMAT_VERSION is required")
	}
	if c.Storage.AutosaveCron != "" {
		if err := icron.Validate(c.Storage.AutosaveCron); err != nil {
			return fmt.Errorf("AUTOSAVE_CRON: %w", err)
		}
	}
	if c.MinIO.Enabled && strings.TrimSpace(c.MinIO.Endpoint) == "" {
		return fmt.Errorf("MINIO_ENDPOINT is required when MINIO_ENABLED is set")
	}
	return nil
}
