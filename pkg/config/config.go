package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds server configuration.
type Config struct {
	Port        string
	LogLevel    string
	StoreDriver string // "memory" | "sqlite" | "postgres"
	DatabaseURL string // postgres DSN when StoreDriver == "postgres"
	SQLitePath  string
	ProfilePath string // optional YAML policy profile
	BurnGrant   float64
	OTLPTarget  string // empty disables the OTLP exporters
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	driver := os.Getenv("RECEIPT_STORE")
	if driver == "" {
		driver = "sqlite"
	}
	switch driver {
	case "memory", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("config: unknown RECEIPT_STORE %q", driver)
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		// Default to local generic postgres
		dbURL = "postgres://veilmint@localhost:5432/veilmint?sslmode=disable"
	}

	sqlitePath := os.Getenv("SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = "veilmint.db"
	}

	burnGrant := 70.0
	if raw := os.Getenv("BURN_GRANT"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("config: invalid BURN_GRANT %q", raw)
		}
		burnGrant = v
	}

	return &Config{
		Port:        port,
		LogLevel:    logLevel,
		StoreDriver: driver,
		DatabaseURL: dbURL,
		SQLitePath:  sqlitePath,
		ProfilePath: os.Getenv("POLICY_PROFILE"),
		BurnGrant:   burnGrant,
		OTLPTarget:  os.Getenv("OTLP_TARGET"),
	}, nil
}
