package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	AuthProviderFirebase = "firebase"
	AuthProviderClerk    = "clerk"
	AuthProviderHMAC     = "hmac"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8081"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"5"`
	ApplySchema bool   `env:"DB_APPLY_SCHEMA" envDefault:"false"`

	// AuthProvider selects who signs the session tokens the API accepts.
	AuthProvider            string `env:"AUTH_PROVIDER" envDefault:"firebase"`
	FirebaseAPIKey          string `env:"FIREBASE_API_KEY"`
	FirebaseCredentialsFile string `env:"FIREBASE_CREDENTIALS_FILE" envDefault:"./serviceAccountKey.json"`
	FirebaseCredentialsJSON string `env:"FCM_SERVICE_ACCOUNT_JSON"`
	ClerkSecretKey          string `env:"CLERK_SECRET_KEY"`
	SessionSigningKey       string `env:"SESSION_SIGNING_KEY"`

	MetricsUser string `env:"METRICS_USER"`
	MetricsPass string `env:"METRICS_PASS"`

	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"5"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"30"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	NotificationWorkers   int `env:"NOTIFICATION_WORKERS" envDefault:"5"`
	NotificationQueueSize int `env:"NOTIFICATION_QUEUE_SIZE" envDefault:"100"`
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return Parse()
}

// Parse builds a Config from the current environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	switch cfg.AuthProvider {
	case AuthProviderFirebase:
	case AuthProviderClerk:
		if cfg.ClerkSecretKey == "" {
			return nil, fmt.Errorf("CLERK_SECRET_KEY is required when AUTH_PROVIDER=%s", AuthProviderClerk)
		}
	case AuthProviderHMAC:
		if cfg.SessionSigningKey == "" {
			return nil, fmt.Errorf("SESSION_SIGNING_KEY is required when AUTH_PROVIDER=%s", AuthProviderHMAC)
		}
	default:
		return nil, fmt.Errorf("unknown AUTH_PROVIDER %q", cfg.AuthProvider)
	}

	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		return nil, fmt.Errorf("rate limit must be positive")
	}

	return cfg, nil
}
