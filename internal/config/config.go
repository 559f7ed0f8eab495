package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per request deadline (ex: 60s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	SettingsFile   string        // path to the settings.yaml file (optional, empty = defaults)
	ServiceFile    string        // path to the services catalog yaml file
	ReloadInterval time.Duration // interval to reload the service catalog (default: 24h)
	GCInterval     time.Duration // interval between removed services sweeps (default: 1h)
	ArchiveEnabled bool          // allow archiving submissions
	Datastore      string        // "redis" | "memory"
	LocalCacheSize int           // bundles kept in process in front of redis

	// Auth
	JWTSecret string // HS256 signing secret
	JWTIssuer string // optional, expected "iss" claim

	// AI backend
	AIChatURL string        // optional, empty = AI routes answer 502
	AIModel   string        // model name sent upstream
	AIAPIKey  string        // optional, sent as a bearer token
	AITimeout time.Duration // upstream call timeout
	AIRate    float64       // requests per second per client
	AIBurst   int           // burst per client

	// Tracing
	OTelEndpoint string // optional, empty = tracing disabled
	OTelInsecure bool   // plain HTTP to the collector

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict /reload to specific Host headers
	AllowedCIDRS []string // optional, restrict infra routes to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

const (
	DatastoreRedis  = "redis"
	DatastoreMemory = "memory"
)

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SIGDESK_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SIGDESK_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("SIGDESK_REQUEST_TIMEOUT", 60*time.Second),

		// Logging
		LogLevel:  getenv("SIGDESK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SIGDESK_PRETTY_LOG", true),

		// Domain
		SettingsFile:   getenv("SIGDESK_SETTINGS_FILE", ""),
		ServiceFile:    getenv("SIGDESK_SERVICE_FILE", "/app/services.yaml"),
		ReloadInterval: mustDuration("SIGDESK_RELOAD_INTERVAL", 24*time.Hour),
		GCInterval:     mustDuration("SIGDESK_GC_INTERVAL", time.Hour),
		ArchiveEnabled: mustBool("SIGDESK_ARCHIVE_ENABLED", true),
		Datastore:      getenv("SIGDESK_DATASTORE", DatastoreRedis),
		LocalCacheSize: getenvInt("SIGDESK_LOCAL_CACHE_SIZE", 64),

		// Auth
		JWTSecret: requireEnv("SIGDESK_JWT_SECRET"),
		JWTIssuer: getenv("SIGDESK_JWT_ISSUER", ""),

		// AI
		AIChatURL: getenv("SIGDESK_AI_CHAT_URL", ""),
		AIModel:   getenv("SIGDESK_AI_MODEL", "gpt-4o-mini"),
		AIAPIKey:  getenv("SIGDESK_AI_API_KEY", ""),
		AITimeout: mustDuration("SIGDESK_AI_TIMEOUT", 60*time.Second),
		AIRate:    getenvFloat("SIGDESK_AI_RATE", 1),
		AIBurst:   getenvInt("SIGDESK_AI_BURST", 5),

		// Tracing
		OTelEndpoint: getenv("SIGDESK_OTEL_ENDPOINT", ""),
		OTelInsecure: mustBool("SIGDESK_OTEL_INSECURE", false),

		// Redis settings
		RedisAddr:             getenv("SIGDESK_REDIS_ADDR", "localhost:6379"),
		RedisUser:             getenv("SIGDESK_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("SIGDESK_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("SIGDESK_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("SIGDESK_REDIS_DB", 0),
		RedisDT:               mustDuration("SIGDESK_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("SIGDESK_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("SIGDESK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("SIGDESK_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("SIGDESK_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("SIGDESK_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("SIGDESK_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("SIGDESK_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("SIGDESK_REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("SIGDESK_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("SIGDESK_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SIGDESK_TRUST_PROXY", false),
	}

	switch cfg.Datastore {
	case DatastoreRedis:
		// Validate Redis password configuration
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: SIGDESK_REDIS_PASSWORD is required when SIGDESK_REDIS_PASSWORD_REQUIRED=true")
		}
	case DatastoreMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: SIGDESK_DATASTORE must be %q or %q, got %q", DatastoreRedis, DatastoreMemory, cfg.Datastore))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.JWTSecret = "***REDACTED***"
		if cfg.AIAPIKey != "" {
			cfgCopy.AIAPIKey = "***REDACTED***"
		}
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
