// Package config loads process-wide configuration from the environment so
// main stays lean. Values are read once at startup and immutable thereafter.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"rollcall/internal/geofence"
	platformstrings "rollcall/pkg/platform/strings"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr string

	// Zone is the single authorized site.
	Zone geofence.Zone

	// BiometricThreshold is the similarity cutoff for a verify match.
	BiometricThreshold float64
	// VerifyTimeout bounds one biometric enroll or verify call.
	VerifyTimeout time.Duration

	JWTSigningKey  string
	JWTIssuer      string
	AccessTokenTTL time.Duration
	AdminToken     string

	// LedgerBackend selects the session store: memory, postgres or redis.
	LedgerBackend string
	// RosterBackend selects the employee store: memory or postgres.
	RosterBackend string

	PostgresURL  string
	RedisURL     string
	KafkaBrokers []string
	AuditBuffer  int
}

// FromEnv builds a Config from ROLLCALL_* environment variables, with
// development defaults for everything but secrets.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr: envOr("ROLLCALL_ADDR", ":8080"),
		Zone: geofence.Zone{
			Center: geofence.Coordinate{
				Lat: envFloat("ROLLCALL_ZONE_LAT", 40.7128),
				Lng: envFloat("ROLLCALL_ZONE_LNG", -74.0060),
			},
			ToleranceKm: envFloat("ROLLCALL_ZONE_TOLERANCE_KM", 0.5),
		},
		BiometricThreshold: envFloat("ROLLCALL_BIOMETRIC_THRESHOLD", 0.8),
		VerifyTimeout:      envDuration("ROLLCALL_VERIFY_TIMEOUT", 5*time.Second),
		JWTSigningKey:      envOr("ROLLCALL_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:          envOr("ROLLCALL_JWT_ISSUER", "rollcall"),
		AccessTokenTTL:     envDuration("ROLLCALL_ACCESS_TOKEN_TTL", 12*time.Hour),
		AdminToken:         envOr("ROLLCALL_ADMIN_TOKEN", "dev-admin-token-change-in-production"),
		LedgerBackend:      envOr("ROLLCALL_LEDGER_BACKEND", "memory"),
		RosterBackend:      envOr("ROLLCALL_ROSTER_BACKEND", "memory"),
		PostgresURL:        os.Getenv("ROLLCALL_POSTGRES_URL"),
		RedisURL:           os.Getenv("ROLLCALL_REDIS_URL"),
		AuditBuffer:        envInt("ROLLCALL_AUDIT_BUFFER", 256),
	}
	if brokers := os.Getenv("ROLLCALL_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = platformstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}

	switch cfg.LedgerBackend {
	case "memory":
	case "postgres":
		if cfg.PostgresURL == "" {
			return Config{}, fmt.Errorf("ROLLCALL_LEDGER_BACKEND=postgres requires ROLLCALL_POSTGRES_URL")
		}
	case "redis":
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("ROLLCALL_LEDGER_BACKEND=redis requires ROLLCALL_REDIS_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
	switch cfg.RosterBackend {
	case "memory":
	case "postgres":
		if cfg.PostgresURL == "" {
			return Config{}, fmt.Errorf("ROLLCALL_ROSTER_BACKEND=postgres requires ROLLCALL_POSTGRES_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown roster backend %q", cfg.RosterBackend)
	}
	if cfg.BiometricThreshold <= 0 || cfg.BiometricThreshold > 1 {
		return Config{}, fmt.Errorf("biometric threshold %.3f outside (0, 1]", cfg.BiometricThreshold)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
