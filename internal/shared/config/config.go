package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string

	// Object store for original uploads.
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string

	// Patient registry sources.
	DatabaseURL    string
	RegistryURL    string
	RegistryAPIKey string

	// KV medium for the document store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	// Remote OCR engine; empty means local text extraction only.
	OCRServiceURL string
	OCRAPIKey     string

	// Matching and storage tuning. Defaults are observed operational
	// values, kept configurable on purpose.
	MatchThreshold  float64
	AmbiguityMargin float64
	MinTokenLength  int
	MaxCandidates   int
	StorageLimitMB  int64
	RetentionDocs   int
	CacheTTL        time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		DatabaseURL:    dbURL,
		RegistryURL:    getEnv("REGISTRY_URL", ""),
		RegistryAPIKey: getEnv("REGISTRY_API_KEY", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisPrefix:   getEnv("REDIS_PREFIX", "intake:"),

		OCRServiceURL: getEnv("OCR_SERVICE_URL", ""),
		OCRAPIKey:     getEnv("OCR_API_KEY", ""),

		MatchThreshold:  getEnvFloat("MATCH_THRESHOLD", 0.6),
		AmbiguityMargin: getEnvFloat("MATCH_AMBIGUITY_MARGIN", 0.05),
		MinTokenLength:  getEnvInt("MATCH_MIN_TOKEN_LEN", 3),
		MaxCandidates:   getEnvInt("MATCH_MAX_CANDIDATES", 5000),
		StorageLimitMB:  int64(getEnvInt("STORAGE_LIMIT_MB", 10)),
		RetentionDocs:   getEnvInt("STORAGE_RETENTION_DOCS", 50),
		CacheTTL:        getEnvDuration("STORAGE_CACHE_TTL", 24*time.Hour),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
