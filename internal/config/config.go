package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevSecretKey is used when SECRET_KEY is unset. It is public, so flash
// cookies signed with it can be forged.
const DevSecretKey = "dev-key-for-deployment"

type Config struct {
	// Server
	Port string

	// Secrets
	SecretKey string

	// Limits
	MaxUploadMB    int
	MaxHeaderBytes int

	// Storage
	UploadFolder   string
	ResultsFolder  string
	ResultsBackend string // fs | gcs | redis | memory
	ResultsBucket  string
	ResultsPrefix  string
	ResultsTTL     time.Duration
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// OCR
	TesseractCmd   string
	TessdataPrefix string
	DefaultOCRLang string

	// Rendering
	DefaultDPI         int
	DefaultJPEGQuality int
	MinDPI             int
	MaxDPI             int

	// Concurrency
	MaxConcurrentRequests int64
	MaxOCRConcurrent      int64
	MaxPageWorkers        int // per-document JPEG encode workers

	// Server timeouts
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration

	// Request timeouts
	ConvertTimeout time.Duration
	OCRTimeout     time.Duration

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	CleanupInterval time.Duration

	// logging
	LogLevel  string
	LogFormat string

	// cookies
	SecureCookies bool
}

// Load reads the environment, after merging any .env file in the working
// directory. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: envStr("PORT", "8080"),

		SecretKey: envStr("SECRET_KEY", DevSecretKey),

		MaxUploadMB:    envInt("MAX_UPLOAD_MB", 60),
		MaxHeaderBytes: envInt("MAX_HEADER_BYTES", 1<<20),

		UploadFolder:   envStr("UPLOAD_FOLDER", "uploads"),
		ResultsFolder:  envStr("RESULTS_FOLDER", "results"),
		ResultsBackend: strings.ToLower(envStr("RESULTS_BACKEND", "fs")),
		ResultsBucket:  envStr("RESULTS_BUCKET", ""),
		ResultsPrefix:  envStr("RESULTS_PREFIX", ""),
		ResultsTTL:     envDur("RESULTS_TTL", 0),
		RedisAddr:      envStr("REDIS_ADDR", ""),
		RedisPassword:  envStr("REDIS_PASSWORD", ""),
		RedisDB:        envInt("REDIS_DB", 0),

		TesseractCmd:   envStr("TESSERACT_CMD", ""),
		TessdataPrefix: envStr("TESSDATA_PREFIX", ""),
		DefaultOCRLang: envStr("DEFAULT_OCR_LANG", "eng"),

		DefaultDPI:         envInt("DEFAULT_DPI", 200),
		DefaultJPEGQuality: envInt("DEFAULT_JPEG_QUALITY", 90),
		MinDPI:             envInt("MIN_DPI", 36),
		MaxDPI:             envInt("MAX_DPI", 600),

		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 15)),
		MaxOCRConcurrent:      int64(envInt("MAX_OCR_CONCURRENT", 3)),
		MaxPageWorkers:        envInt("MAX_PAGE_WORKERS", 8),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 180*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   envDur("SHUTDOWN_TIMEOUT", 20*time.Second),

		ConvertTimeout: envDur("CONVERT_TIMEOUT", 160*time.Second),
		OCRTimeout:     envDur("OCR_TIMEOUT", 120*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 600*time.Millisecond),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 20),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		SecureCookies: envBool("SECURE_COOKIES", false),
	}
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// UsingDevSecret reports whether flash cookies are signed with the public
// development key.
func (c Config) UsingDevSecret() bool {
	return c.SecretKey == DevSecretKey
}

func (c Config) Validate() error {
	if c.MinDPI > c.MaxDPI {
		return fmt.Errorf("MIN_DPI (%d) must not exceed MAX_DPI (%d)", c.MinDPI, c.MaxDPI)
	}
	if c.DefaultDPI < c.MinDPI || c.DefaultDPI > c.MaxDPI {
		return fmt.Errorf("DEFAULT_DPI must be between MIN_DPI and MAX_DPI")
	}
	if c.DefaultJPEGQuality < 1 || c.DefaultJPEGQuality > 100 {
		return fmt.Errorf("DEFAULT_JPEG_QUALITY must be between 1 and 100")
	}
	switch c.ResultsBackend {
	case "fs", "memory":
	case "gcs":
		if c.ResultsBucket == "" {
			return fmt.Errorf("RESULTS_BUCKET is required when RESULTS_BACKEND=gcs")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when RESULTS_BACKEND=redis")
		}
	default:
		return fmt.Errorf("RESULTS_BACKEND must be one of fs, gcs, redis, memory")
	}
	return nil
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
