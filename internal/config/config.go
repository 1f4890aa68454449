// Package config resolves process settings from the environment: the
// storage root, the provider credential, external media tool discovery, and
// the numeric tunables the rest of the system reads at startup.
package config

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Settings is the resolved configuration for one process.
type Settings struct {
	// Server
	APIPort       string
	BackendAPIKey string // empty = no auth, dev mode
	CorsOrigins   string // comma-separated; empty = *

	// Storage
	StorageDir string

	// Provider
	ProviderAPIKey  string
	ProviderBaseURL string

	// Transcription enrichment (optional)
	OpenAIKey string

	// External media tool discovery
	MediaToolPath string // ffmpeg-equivalent
	ProbeToolPath string // ffprobe-equivalent

	// Tunables
	MaxConcurrentDownloads int
	DownloadTimeoutS       int
	GenerationTimeoutS     int
	CostWarningThreshold   float64
}

// Load reads an optional .env file, then the environment, validates required
// fields, and discovers external tool paths. A missing media tool is a hard
// startup error.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	s := &Settings{
		APIPort:                getEnv("API_PORT", "8080"),
		BackendAPIKey:          getEnv("BACKEND_API_KEY", ""),
		CorsOrigins:            getEnv("CORS_ALLOWED_ORIGINS", ""),
		StorageDir:             getEnv("STORAGE_DIR", "./storage"),
		ProviderAPIKey:         getEnv("PROVIDER_API_KEY", ""),
		ProviderBaseURL:        getEnv("PROVIDER_BASE_URL", "https://api.provider.example/v1"),
		OpenAIKey:              getEnv("OPENAI_API_KEY", ""),
		MaxConcurrentDownloads: clampInt(getEnvInt("MAX_CONCURRENT_DOWNLOADS", 5), 1, 10),
		DownloadTimeoutS:       getEnvInt("DOWNLOAD_TIMEOUT_S", 120),
		GenerationTimeoutS:     getEnvInt("GENERATION_TIMEOUT_S", 600),
		CostWarningThreshold:   getEnvFloat("COST_WARNING_THRESHOLD", 5.0),
	}

	if s.ProviderAPIKey == "" {
		return nil, fmt.Errorf("PROVIDER_API_KEY is required")
	}

	mediaTool, err := discoverTool("MEDIA_TOOL_PATH", "ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("media tool discovery failed: %w", err)
	}
	s.MediaToolPath = mediaTool

	probeTool, err := discoverTool("PROBE_TOOL_PATH", "ffprobe")
	if err != nil {
		return nil, fmt.Errorf("probe tool discovery failed: %w", err)
	}
	s.ProbeToolPath = probeTool

	for _, dir := range []string{
		filepath.Join(s.StorageDir, "temp"),
		filepath.Join(s.StorageDir, "assets", "logos"),
		filepath.Join(s.StorageDir, "projects"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	return s, nil
}

// discoverTool resolves an external binary path: env override, then PATH
// lookup for the platform-aware default name. A tool that can't be found
// either way is a hard startup error.
func discoverTool(envVar, defaultName string) (string, error) {
	if override := os.Getenv(envVar); override != "" {
		return override, nil
	}
	name := defaultName
	if runtime.GOOS == "windows" {
		name = defaultName + ".exe"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found on PATH and %s not set", name, envVar)
	}
	return path, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
