package config

import (
	"fmt"
	"time"

	pkgconfig "catchup-agent/pkg/config"
)

// AppConfig is the top-level settings object for the API process. It
// collects everything that was previously scattered across ad-hoc
// os.Getenv calls: LLM routing behaviour, conversation history bounds,
// the on-disk RSS cache, upload limits, and CORS.
//
// Every field has a production-sane default so a deployment with no
// environment overrides still boots.
type AppConfig struct {
	// Addr is the HTTP listen address for the API server.
	Addr string

	// LLMRequestTimeout bounds a single Stream/Complete call to the
	// configured provider.
	LLMRequestTimeout time.Duration

	// LLMMaxRetries is how many times a transport-level LLM failure is
	// retried before the agent loop surfaces an error event.
	LLMMaxRetries int

	// LLMTemperature and LLMMaxTokens are the default sampling
	// parameters applied when a request does not override them.
	LLMTemperature float64
	LLMMaxTokens   int

	// MaxHistoryMessages bounds how many prior messages are sent back
	// to the model on each turn of a conversation.
	MaxHistoryMessages int

	// CacheEnabled toggles whether the RSS artifact cache is consulted
	// at all; when false every read forces a fresh fetch.
	CacheEnabled bool

	// ArtifactPath is where the daily RSS cache artifact is written and
	// read from.
	ArtifactPath string

	// CacheTTL is how long a cached artifact is considered fresh before
	// an on-demand regeneration is allowed to replace it.
	CacheTTL time.Duration

	// MaxUploadBytes caps the size of a single uploaded document.
	MaxUploadBytes int64

	// AllowedUploadExtensions restricts which document suffixes the
	// upload endpoints accept (case-insensitive, leading dot included).
	AllowedUploadExtensions []string

	// CORSAllowedOrigins is the list of origins permitted to call the
	// API from a browser.
	CORSAllowedOrigins []string

	// VisitorCookieSecure controls the Secure attribute on the visitor
	// identity cookie; it should be true in any deployment served over
	// TLS and false for local HTTP development.
	VisitorCookieSecure bool
}

// DefaultAppConfig returns production-reasonable defaults. Every field
// can be overridden by LoadAppConfigFromEnv.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Addr:                    ":8080",
		LLMRequestTimeout:       60 * time.Second,
		LLMMaxRetries:           2,
		LLMTemperature:          0.7,
		LLMMaxTokens:            2048,
		MaxHistoryMessages:      20,
		CacheEnabled:            true,
		ArtifactPath:            "data/rss-cache.json",
		CacheTTL:                24 * time.Hour,
		MaxUploadBytes:          10 * 1024 * 1024,
		AllowedUploadExtensions: []string{".pdf", ".csv", ".txt"},
		CORSAllowedOrigins:      []string{"http://localhost:3000"},
		VisitorCookieSecure:     false,
	}
}

// LoadAppConfigFromEnv builds an AppConfig starting from DefaultAppConfig
// and overriding each field from its environment variable when present.
// Unlike WorkerConfig's fail-open loader, these values aren't validated
// against an operational range - a misconfigured timeout or extension
// list is a deployment error the operator should see directly, not a
// warning buried in logs.
//
// Environment variables:
//   - API_ADDR
//   - LLM_REQUEST_TIMEOUT
//   - LLM_MAX_RETRIES
//   - LLM_TEMPERATURE (parsed as a duration-shaped float via fmt.Sscanf)
//   - LLM_MAX_TOKENS
//   - MAX_HISTORY_MESSAGES
//   - CACHE_ENABLED
//   - RSS_ARTIFACT_PATH
//   - RSS_CACHE_TTL
//   - MAX_UPLOAD_BYTES
//   - ALLOWED_UPLOAD_EXTENSIONS (comma-separated)
//   - CORS_ALLOWED_ORIGINS (comma-separated)
//   - VISITOR_COOKIE_SECURE
func LoadAppConfigFromEnv() (AppConfig, error) {
	cfg := DefaultAppConfig()

	cfg.Addr = pkgconfig.GetEnvString("API_ADDR", cfg.Addr)
	cfg.LLMRequestTimeout = pkgconfig.GetEnvDuration("LLM_REQUEST_TIMEOUT", cfg.LLMRequestTimeout)
	cfg.LLMMaxRetries = pkgconfig.GetEnvInt("LLM_MAX_RETRIES", cfg.LLMMaxRetries)
	cfg.LLMMaxTokens = pkgconfig.GetEnvInt("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	cfg.MaxHistoryMessages = pkgconfig.GetEnvInt("MAX_HISTORY_MESSAGES", cfg.MaxHistoryMessages)
	cfg.CacheEnabled = pkgconfig.GetEnvBool("CACHE_ENABLED", cfg.CacheEnabled)
	cfg.ArtifactPath = pkgconfig.GetEnvString("RSS_ARTIFACT_PATH", cfg.ArtifactPath)
	cfg.CacheTTL = pkgconfig.GetEnvDuration("RSS_CACHE_TTL", cfg.CacheTTL)
	cfg.MaxUploadBytes = int64(pkgconfig.GetEnvInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.AllowedUploadExtensions = pkgconfig.GetEnvStringList("ALLOWED_UPLOAD_EXTENSIONS", cfg.AllowedUploadExtensions)
	cfg.CORSAllowedOrigins = pkgconfig.GetEnvStringList("CORS_ALLOWED_ORIGINS", cfg.CORSAllowedOrigins)
	cfg.VisitorCookieSecure = pkgconfig.GetEnvBool("VISITOR_COOKIE_SECURE", cfg.VisitorCookieSecure)

	if temp, err := parseTemperatureEnv("LLM_TEMPERATURE", cfg.LLMTemperature); err == nil {
		cfg.LLMTemperature = temp
	} else {
		return AppConfig{}, fmt.Errorf("parsing LLM_TEMPERATURE: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate rejects an AppConfig whose values could not possibly produce
// a working deployment.
func (c AppConfig) Validate() error {
	if err := ValidatePositiveDuration(c.LLMRequestTimeout); err != nil {
		return fmt.Errorf("LLMRequestTimeout: %w", err)
	}
	if c.LLMMaxRetries < 0 {
		return fmt.Errorf("LLMMaxRetries must be non-negative, got %d", c.LLMMaxRetries)
	}
	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("LLMTemperature must be within [0, 2], got %f", c.LLMTemperature)
	}
	if c.LLMMaxTokens <= 0 {
		return fmt.Errorf("LLMMaxTokens must be positive, got %d", c.LLMMaxTokens)
	}
	if c.MaxHistoryMessages <= 0 {
		return fmt.Errorf("MaxHistoryMessages must be positive, got %d", c.MaxHistoryMessages)
	}
	if c.ArtifactPath == "" {
		return fmt.Errorf("ArtifactPath must not be empty")
	}
	if err := ValidateNonNegativeDuration(c.CacheTTL); err != nil {
		return fmt.Errorf("CacheTTL: %w", err)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MaxUploadBytes must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

func parseTemperatureEnv(key string, fallback float64) (float64, error) {
	raw := pkgconfig.GetEnvString(key, "")
	if raw == "" {
		return fallback, nil
	}
	var value float64
	if _, err := fmt.Sscanf(raw, "%g", &value); err != nil {
		return fallback, fmt.Errorf("invalid float value %q: %w", raw, err)
	}
	return value, nil
}
