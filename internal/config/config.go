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

	RedisURL string

	ResendAPIKey string
	EmailFrom    string
	AppBaseURL   string

	OpenRouterAPIKey string
	OpenRouterModel  string

	S3Bucket        string
	S3Region        string
	S3AccessKeyID   string
	S3SecretKey     string
	S3PublicBaseURL string

	SweepInterval time.Duration
	SendTimeout   time.Duration
	// RetryEvery controls how many delivery sweeps pass between
	// retry passes over failed capsules.
	RetryEvery int
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",

		RedisURL: getenv("REDIS_URL", ""),

		ResendAPIKey: getenv("RESEND_API_KEY", ""),
		EmailFrom:    getenv("EMAIL_FROM", "Pastel <capsules@pastel.local>"),
		AppBaseURL:   getenv("APP_BASE_URL", "http://localhost:3000"),

		OpenRouterAPIKey: getenv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:  getenv("OPENROUTER_MODEL", "mistralai/mistral-7b-instruct:free"),

		S3Bucket:        getenv("S3_BUCKET", ""),
		S3Region:        getenv("S3_REGION", "us-east-1"),
		S3AccessKeyID:   getenv("S3_ACCESS_KEY_ID", ""),
		S3SecretKey:     getenv("S3_SECRET_ACCESS_KEY", ""),
		S3PublicBaseURL: getenv("S3_PUBLIC_BASE_URL", ""),

		SweepInterval: getduration("DELIVERY_SWEEP_INTERVAL", time.Minute),
		SendTimeout:   getduration("DELIVERY_SEND_TIMEOUT", 30*time.Second),
		RetryEvery:    getint("DELIVERY_RETRY_EVERY", 10),
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	cfg.CronSecret = mustGetenv("CRON_SECRET")
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

func getduration(key string, def time.Duration) time.Duration {
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

func getint(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
