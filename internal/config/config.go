package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret  string
	CronSecret string

	// DefaultTimezone is the fallback when a tenant's zone name does not
	// parse.
	DefaultTimezone string
	DayCapacity     int
	TenantPace      time.Duration

	PipelineURL    string
	PipelineSecret string
	PipelineBudget time.Duration

	// In-process cron; external callers can drive /cron/* instead.
	CronEnabled  bool
	TickSpec     string
	RecoverySpec string

	LogLevel  string
	LogPretty bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		JWTSecret:  mustGetenv("JWT_SECRET"),
		CronSecret: mustGetenv("CRON_SECRET"),

		DefaultTimezone: getenv("DEFAULT_TIMEZONE", "America/Denver"),
		DayCapacity:     getenvInt("DAY_CAPACITY", 10),
		TenantPace:      getenvDuration("TENANT_PACE", 2*time.Second),

		PipelineURL:    mustGetenv("PIPELINE_URL"),
		PipelineSecret: getenv("PIPELINE_SECRET", ""),
		PipelineBudget: getenvDuration("PIPELINE_BUDGET", 12*time.Minute),

		CronEnabled:  getenv("CRON_ENABLED", "true") == "true",
		TickSpec:     getenv("CRON_TICK_SPEC", "0 * * * *"),
		RecoverySpec: getenv("CRON_RECOVERY_SPEC", "*/30 * * * *"),

		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogPretty: getenv("LOG_PRETTY", "false") == "true",
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
