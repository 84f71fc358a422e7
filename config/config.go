package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultOriginalsSubDir = "originals"
	DefaultDocumentKey     = "navyblue-gallery"
)

const (
	defaultPort                 = 8080
	defaultRevealDelay          = 2200 * time.Millisecond
	defaultCaptionTimeout       = 15 * time.Second
	defaultCaptionModel         = "gemini-2.5-flash"
	defaultCaptionRatePerMinute = 30
	defaultNumCaptionWorkers    = 2
	defaultCaptionQueueSize     = 64
	defaultCaptionMaxEdge       = 1024
	defaultViewportWidth        = 1440
	defaultViewportHeight       = 900
	defaultAllowedOrigins       = "http://localhost:5173"
	defaultMaxUploadMB          = 25
)

type Config struct {
	Port int

	// database path, shared by the wall document and the capture log
	DatabasePath string

	// media storage configuration
	MediaStoragePath string // root for stored originals
	OriginalsSubDir  string
	OriginalsPath    string // full-calculated path for originals

	// key of the wall document in the document store
	DocumentKey string

	RevealDelay time.Duration

	// captioning
	CaptionAPIKey        string
	CaptionModel         string
	CaptionBaseURL       string // empty uses the client default
	CaptionRatePerMinute int
	CaptionTimeout       time.Duration
	CaptionMaxEdge       int

	// worker settings
	NumCaptionWorkers int
	CaptionQueueSize  int

	// viewport assumed when a capture does not report one
	ViewportWidth  float64
	ViewportHeight float64

	AllowedOrigins []string
	MaxUploadBytes int64
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvFloatOrDefault(envVar string, defaultVal float64) float64 {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %g. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func getEnvDurationOrDefault(envVar string, defaultVal time.Duration) time.Duration {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := time.ParseDuration(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %s. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

// firstEnv returns the first non-empty value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func LoadConfig() (Config, error) {
	mediaStorage := getEnvOrDefault("MEDIA_STORAGE_PATH", filepath.Join(".", "media_storage"))
	absMediaStorage, err := filepath.Abs(mediaStorage)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for media storage '%s': %w", mediaStorage, err)
	}

	originalsSubDir := getEnvOrDefault("ORIGINALS_SUBDIR", DefaultOriginalsSubDir)
	if originalsSubDir != filepath.Base(originalsSubDir) || originalsSubDir == "." || originalsSubDir == ".." {
		return Config{}, fmt.Errorf("ORIGINALS_SUBDIR must be a single directory name, got '%s'", originalsSubDir)
	}

	origins := splitList(getEnvOrDefault("ALLOWED_ORIGINS", defaultAllowedOrigins))
	if len(origins) == 0 {
		origins = []string{defaultAllowedOrigins}
	}

	cfg := Config{
		Port:                 getEnvIntOrDefault("PORT", defaultPort),
		DatabasePath:         getEnvOrDefault("DATABASE_PATH", "photowall.db"),
		MediaStoragePath:     absMediaStorage,
		OriginalsSubDir:      originalsSubDir,
		OriginalsPath:        filepath.Join(absMediaStorage, originalsSubDir),
		DocumentKey:          getEnvOrDefault("WALL_DOCUMENT_KEY", DefaultDocumentKey),
		RevealDelay:          getEnvDurationOrDefault("REVEAL_DELAY", defaultRevealDelay),
		CaptionAPIKey:        firstEnv("CAPTION_API_KEY", "GEMINI_API_KEY", "API_KEY"),
		CaptionModel:         getEnvOrDefault("CAPTION_MODEL", defaultCaptionModel),
		CaptionBaseURL:       os.Getenv("CAPTION_API_BASE_URL"),
		CaptionRatePerMinute: getEnvIntOrDefault("CAPTION_RATE_PER_MINUTE", defaultCaptionRatePerMinute),
		CaptionTimeout:       getEnvDurationOrDefault("CAPTION_TIMEOUT", defaultCaptionTimeout),
		CaptionMaxEdge:       getEnvIntOrDefault("CAPTION_MAX_EDGE", defaultCaptionMaxEdge),
		NumCaptionWorkers:    getEnvIntOrDefault("NUM_CAPTION_WORKERS", defaultNumCaptionWorkers),
		CaptionQueueSize:     getEnvIntOrDefault("CAPTION_QUEUE_SIZE", defaultCaptionQueueSize),
		ViewportWidth:        getEnvFloatOrDefault("VIEWPORT_WIDTH", defaultViewportWidth),
		ViewportHeight:       getEnvFloatOrDefault("VIEWPORT_HEIGHT", defaultViewportHeight),
		AllowedOrigins:       origins,
		MaxUploadBytes:       int64(getEnvIntOrDefault("MAX_UPLOAD_MB", defaultMaxUploadMB)) << 20,
	}

	return cfg, nil
}
