package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	MySQLDSN string

	RedisAddr string
	RedisDB   int
	RedisPass string

	GoogleClientID     string
	GoogleClientSecret string
	GooglePlacesKey    string
	GoogleRPS          int
	GeminiKey          string
	GeminiModel        string

	SessionSecret string
	PublicBaseURL string // used to build the OAuth redirect URI
	DashboardURL  string

	// cmd/resync
	ResyncUserID  string
	ResyncWorkers int

	HTTPClientTimeout time.Duration
	CacheTTL          time.Duration
	LocationTTL       time.Duration

	OTelEnabled     bool
	OTelEndpoint    string
	OTelInsecure    bool
	OTelSampleRatio float64
}

// OAuthRedirectURL is the callback registered with Google.
func (c Config) OAuthRedirectURL() string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/v1/google/callback"
}

func Load() Config {
	// .env is optional; real environment wins.
	_ = godotenv.Load()

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
		return def
	}
	c := Config{
		AppEnv:             env("APP_ENV", "prod"),
		HTTPAddr:           env("HTTP_ADDR", ":8080"),
		MySQLDSN:           env("MYSQL_DSN", ""),
		RedisAddr:          env("REDIS_ADDR", "localhost:6379"),
		RedisDB:            atoi("REDIS_DB", 0),
		RedisPass:          env("REDIS_PASSWORD", ""),
		GoogleClientID:     env("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: env("GOOGLE_CLIENT_SECRET", ""),
		GooglePlacesKey:    env("GOOGLE_PLACES_API_KEY", ""),
		GoogleRPS:          atoi("GOOGLE_RPS", 10),
		GeminiKey:          env("GEMINI_API_KEY", ""),
		GeminiModel:        env("GEMINI_MODEL", "models/gemini-2.5-flash"),
		SessionSecret:      env("SESSION_SECRET", ""),
		PublicBaseURL:      env("PUBLIC_BASE_URL", "http://localhost:8080"),
		DashboardURL:       env("DASHBOARD_URL", "http://localhost:3000/dashboard"),
		ResyncUserID:       env("RESYNC_USER_ID", ""),
		ResyncWorkers:      atoi("RESYNC_WORKERS", 3),
		HTTPClientTimeout:  time.Duration(atoi("HTTP_CLIENT_TIMEOUT_SECONDS", 20)) * time.Second,
		CacheTTL:           time.Duration(atoi("CACHE_TTL_SECONDS", 300)) * time.Second,
		LocationTTL:        time.Duration(atoi("LOCATION_CACHE_TTL_SECONDS", 3600)) * time.Second,
		OTelEnabled:        envBool("OTEL_ENABLED", false),
		OTelEndpoint:       env("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelInsecure:       envBool("OTEL_INSECURE", true),
		OTelSampleRatio:    envFloat("OTEL_SAMPLE_RATIO", 1.0),
	}
	for k, v := range map[string]string{
		"GOOGLE_CLIENT_ID":      c.GoogleClientID,
		"GOOGLE_CLIENT_SECRET":  c.GoogleClientSecret,
		"GOOGLE_PLACES_API_KEY": c.GooglePlacesKey,
		"GEMINI_API_KEY":        c.GeminiKey,
	} {
		if v == "" {
			log.Warn().Str("key", k).Msg("optional credential is empty; dependent operations will fail")
		}
	}
	return c
}

// Missing lists the settings the API cannot start without.
func (c Config) Missing() []string {
	var out []string
	if c.MySQLDSN == "" {
		out = append(out, "MYSQL_DSN")
	}
	if c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET")
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
