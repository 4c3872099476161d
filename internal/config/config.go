package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Mode selects the deployment variant the gateway runs as.
type Mode string

const (
	// ModePersistent is a long-running server with a created downloads
	// folder and the ffmpeg binary available.
	ModePersistent Mode = "persistent"
	// ModeServerless is a stateless function where only the temp
	// directory is writable and ffmpeg is not installed.
	ModeServerless Mode = "serverless"
)

// ExtractorBackend names the implementation used to talk to video sites.
type ExtractorBackend string

const (
	BackendYtDlp   ExtractorBackend = "ytdlp"
	BackendYouTube ExtractorBackend = "youtube"
)

type Config struct {
	Mode      Mode
	Server    ServerConfig
	Storage   StorageConfig
	Extractor ExtractorConfig
	Download  DownloadConfig
	API       APIConfig
	S3        S3Config
}

type ServerConfig struct {
	Port string
	Host string
}

type StorageConfig struct {
	// DownloadDir is only used in persistent mode; serverless always
	// writes into the platform temp directory.
	DownloadDir string
}

type ExtractorConfig struct {
	Backend     ExtractorBackend
	YtDlpPath   string
	FFmpegPath  string
	CookiesFile string
}

type DownloadConfig struct {
	MaxConcurrentDownloads int
	DownloadTimeout        time.Duration
	AudioQuality           string
}

type APIConfig struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type S3Config struct {
	Enabled         bool
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	EndpointURL     string
	KeyPrefix       string
	PresignExpiry   time.Duration
}

// Load reads the configuration from the environment (and an optional
// .env file). The deployment mode comes from DEPLOYMENT_MODE.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	mode := Mode(strings.ToLower(getEnv("DEPLOYMENT_MODE", string(ModePersistent))))
	return load(mode)
}

// LoadWithMode is Load with the deployment mode fixed by the caller.
// The serverless entry point uses it so that a stray DEPLOYMENT_MODE
// cannot turn a function into a persistent server.
func LoadWithMode(mode Mode) (*Config, error) {
	_ = godotenv.Load()
	return load(mode)
}

func load(mode Mode) (*Config, error) {
	if mode != ModePersistent && mode != ModeServerless {
		return nil, fmt.Errorf("invalid DEPLOYMENT_MODE: %q", mode)
	}

	cfg := &Config{Mode: mode}

	// Server configuration
	cfg.Server.Port = getEnv("SERVER_PORT", "5000")
	cfg.Server.Host = getEnv("SERVER_HOST", "0.0.0.0")

	// Storage configuration
	cfg.Storage.DownloadDir = getEnv("DOWNLOAD_DIR", "downloads")

	// Extractor configuration
	backend := ExtractorBackend(strings.ToLower(getEnv("EXTRACTOR_BACKEND", string(BackendYtDlp))))
	if backend != BackendYtDlp && backend != BackendYouTube {
		return nil, fmt.Errorf("invalid EXTRACTOR_BACKEND: %q", backend)
	}
	cfg.Extractor.Backend = backend
	cfg.Extractor.YtDlpPath = getEnv("YTDLP_PATH", "yt-dlp")
	cfg.Extractor.FFmpegPath = getEnv("FFMPEG_PATH", "ffmpeg")
	cfg.Extractor.CookiesFile = getEnv("YTDLP_COOKIES", "")

	// Download configuration
	cfg.Download.MaxConcurrentDownloads = getEnvInt("MAX_CONCURRENT_DOWNLOADS", 0)
	downloadTimeout, err := time.ParseDuration(getEnv("DOWNLOAD_TIMEOUT", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid DOWNLOAD_TIMEOUT: %w", err)
	}
	cfg.Download.DownloadTimeout = downloadTimeout
	cfg.Download.AudioQuality = getEnv("AUDIO_QUALITY", "192")

	// API configuration
	cfg.API.RateLimitRequests = getEnvInt("RATE_LIMIT_REQUESTS", 0)
	rateLimitWindow, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}
	cfg.API.RateLimitWindow = rateLimitWindow

	// S3 mirror configuration
	cfg.S3.Enabled = getEnvBool("S3_MIRROR_ENABLED", false)
	if cfg.S3.Enabled {
		cfg.S3.Region = getEnv("AWS_REGION", "us-east-1")
		cfg.S3.EndpointURL = getEnv("AWS_ENDPOINT_URL", "") // Optional for LocalStack
		cfg.S3.KeyPrefix = getEnv("S3_KEY_PREFIX", "downloads/")
		if cfg.S3.BucketName, err = getEnvRequired("S3_BUCKET_NAME"); err != nil {
			return nil, err
		}
		if cfg.S3.AccessKeyID, err = getEnvRequired("AWS_ACCESS_KEY_ID"); err != nil {
			return nil, err
		}
		if cfg.S3.SecretAccessKey, err = getEnvRequired("AWS_SECRET_ACCESS_KEY"); err != nil {
			return nil, err
		}
		expiry, err := time.ParseDuration(getEnv("S3_PRESIGN_EXPIRY", "15m"))
		if err != nil {
			return nil, fmt.Errorf("invalid S3_PRESIGN_EXPIRY: %w", err)
		}
		cfg.S3.PresignExpiry = expiry
	}

	return cfg, nil
}

// Addr is the listen address of the persistent server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
