package config // package config loads application configuration from environment variables

import (
	"log" // log is used to report configuration errors and halt execution
	"os"  // os provides access to environment variables

	"golang.org/x/crypto/bcrypt"
)

// Config holds the core runtime configuration.  Each field corresponds to
// an environment variable.  Feature-specific settings (rate limiting, the
// lookup guard, caching and the queue) live in their own loaders.
type Config struct {
	Env        string // application environment (e.g. "dev", "prod")
	Port       string // HTTP port to listen on
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	DBMigrate  bool   // apply the embedded schema on startup
	BcryptCost int    // bcrypt cost for booking passwords
	LogLevel   string // debug, info, warn or error
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:        must("APP_ENV"),              // environment (dev/test/prod)
		Port:       must("APP_PORT"),             // port to bind the HTTP server
		DBUser:     must("DB_USER"),              // database user
		DBPass:     os.Getenv("DB_PASS"),         // database password (empty allowed)
		DBHost:     must("DB_HOST"),              // database host
		DBPort:     must("DB_PORT"),              // database port
		DBName:     must("DB_NAME"),              // database name
		DBMigrate:  envBool("DB_MIGRATE", false), // run schema.sql at boot
		BcryptCost: bcryptCost("BCRYPT_COST"),    // bcrypt cost factor
		LogLevel:   envStr("LOG_LEVEL", "info"),  // slog level
	}
}

// bcryptCost reads a bcrypt cost factor; values bcrypt would not use as
// given fall back to 10.
func bcryptCost(key string) int {
	c := envInt(key, 10)
	if c < bcrypt.MinCost || c > bcrypt.MaxCost {
		log.Printf("%s=%d outside [%d, %d], using 10", key, c, bcrypt.MinCost, bcrypt.MaxCost)
		return 10
	}
	return c
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
