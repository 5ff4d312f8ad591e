// Package config centralizes server configuration: .env, an optional YAML
// file, then environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the Trace server and CLI.
type Config struct {
	Port        string `yaml:"port"`
	Environment string `yaml:"environment"`
	Timezone    string `yaml:"timezone"`

	// Gemini settings
	GeminiAPIKey       string        `yaml:"gemini_api_key"`
	TranscriptionModel string        `yaml:"transcription_model"`
	QueryModel         string        `yaml:"query_model"`
	VideoModel         string        `yaml:"video_model"`
	TTSModel           string        `yaml:"tts_model"`
	TTSVoice           string        `yaml:"tts_voice"`
	BackendRetryWindow time.Duration `yaml:"backend_retry_window"`

	// Upload polling
	AudioPollInterval time.Duration `yaml:"audio_poll_interval"`
	AudioPollAttempts int           `yaml:"audio_poll_attempts"`
	VideoPollInterval time.Duration `yaml:"video_poll_interval"`
	VideoPollAttempts int           `yaml:"video_poll_attempts"`

	// Storage
	DatabasePath    string `yaml:"database_path"`
	SeedDatasetPath string `yaml:"seed_dataset_path"`
	UploadDir       string `yaml:"upload_dir"`
	MaxAudioBytes   int64  `yaml:"max_audio_bytes"`
	MaxVideoBytes   int64  `yaml:"max_video_bytes"`

	// Telemetry
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Port:               "3000",
		Environment:        "local",
		Timezone:           "Local",
		TranscriptionModel: "gemini-3-flash-preview",
		QueryModel:         "gemini-3-flash-preview",
		VideoModel:         "gemini-3-flash-preview",
		TTSModel:           "gemini-2.5-flash-preview-tts",
		TTSVoice:           "Aoede",
		BackendRetryWindow: 20 * time.Second,
		AudioPollInterval:  time.Second,
		AudioPollAttempts:  30,
		VideoPollInterval:  3 * time.Second,
		VideoPollAttempts:  60,
		DatabasePath:       "data/trace.db",
		UploadDir:          "uploads",
		MaxAudioBytes:      25 << 20,
		MaxVideoBytes:      100 << 20,
	}
}

// Load reads .env (if present), the YAML file named by TRACE_CONFIG_FILE (if
// set) and finally environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("TRACE_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.Timezone = getEnv("TRACE_TIMEZONE", c.Timezone)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.TranscriptionModel = getEnv("TRANSCRIPTION_MODEL", c.TranscriptionModel)
	c.QueryModel = getEnv("QUERY_MODEL", c.QueryModel)
	c.VideoModel = getEnv("VIDEO_MODEL", c.VideoModel)
	c.TTSModel = getEnv("TTS_MODEL", c.TTSModel)
	c.TTSVoice = getEnv("TTS_VOICE", c.TTSVoice)
	c.BackendRetryWindow = getEnvDuration("BACKEND_RETRY_WINDOW", c.BackendRetryWindow)
	c.AudioPollInterval = getEnvDuration("AUDIO_POLL_INTERVAL", c.AudioPollInterval)
	c.AudioPollAttempts = getEnvInt("AUDIO_POLL_ATTEMPTS", c.AudioPollAttempts)
	c.VideoPollInterval = getEnvDuration("VIDEO_POLL_INTERVAL", c.VideoPollInterval)
	c.VideoPollAttempts = getEnvInt("VIDEO_POLL_ATTEMPTS", c.VideoPollAttempts)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.SeedDatasetPath = getEnv("SEED_DATASET_PATH", c.SeedDatasetPath)
	c.UploadDir = getEnv("UPLOAD_DIR", c.UploadDir)
	c.MaxAudioBytes = int64(getEnvInt("MAX_AUDIO_BYTES", int(c.MaxAudioBytes)))
	c.MaxVideoBytes = int64(getEnvInt("MAX_VIDEO_BYTES", int(c.MaxVideoBytes)))
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
}

func (c *Config) Validate() error {
	if c.AudioPollAttempts < 1 || c.AudioPollAttempts > 600 {
		return fmt.Errorf("AUDIO_POLL_ATTEMPTS must be 1-600, got %d", c.AudioPollAttempts)
	}
	if c.VideoPollAttempts < 1 || c.VideoPollAttempts > 600 {
		return fmt.Errorf("VIDEO_POLL_ATTEMPTS must be 1-600, got %d", c.VideoPollAttempts)
	}
	if c.AudioPollInterval <= 0 || c.VideoPollInterval <= 0 {
		return errors.New("poll intervals must be positive")
	}
	if c.MaxAudioBytes <= 0 || c.MaxVideoBytes <= 0 {
		return errors.New("upload size limits must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TRACE_TIMEZONE: %w", err)
	}
	return nil
}

// RequireBackend reports whether the AI backend credentials are present.
func (c *Config) RequireBackend() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is missing")
	}
	return nil
}

// Location resolves the configured timezone used for day parts and relative days.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// envPattern matches ${VAR} and ${VAR:-default} expressions.
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	expanded := envPattern.ReplaceAllStringFunc(string(raw), func(match string) string {
		subs := envPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(subs[1]); ok {
			return v
		}
		return subs[2]
	})

	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
