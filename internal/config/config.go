// Package config loads application configuration from environment
// variables.  A .env file, when present, is read by the entry points
// before Load is called.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.
type Config struct {
	Env          string // application environment (e.g. "dev", "prod")
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	DBMaxOpen    int
	DBMaxIdle    int
	DBMaxLife    time.Duration
	JWTSecret    string // secret used to verify member JWTs
	AccessTTLMin int    // lifetime of tokens minted by bookctl
	AMQPURL      string // RabbitMQ URL; empty disables cross-instance fan-out

	Booking   BookingConfig
	Mail      MailConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Redis     RedisConfig
}

// Load reads configuration values from environment variables and returns
// a Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:          envStr("APP_ENV", "dev"),
		Port:         envStr("APP_PORT", "8080"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"), // empty allowed
		DBHost:       must("DB_HOST"),
		DBPort:       envStr("DB_PORT", "3306"),
		DBName:       must("DB_NAME"),
		DBMaxOpen:    envInt("DB_MAX_OPEN_CONNS", 20),
		DBMaxIdle:    envInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxLife:    envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),
		AMQPURL:      os.Getenv("AMQP_URL"),
		Booking:      LoadBookingConfig(),
		Mail:         LoadMailConfig(),
		RateLimit:    LoadRateLimitConfig(),
		Cache:        LoadCacheConfig(),
		Redis:        LoadRedisConfig(),
	}
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

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
