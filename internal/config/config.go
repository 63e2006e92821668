package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DBSource    string // empty selects the in-memory backend
	Port        string
	Env         string
	JWTSecret   string
	OpenAIKey   string // empty selects the static strategy provider
	OpenAIModel string
	SettleDelay time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		DBSource:    os.Getenv("DB_SOURCE"),
		Port:        getEnv("SERVER_PORT", "8080"),
		Env:         getEnv("ENVIRONMENT", "development"),
		JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel: os.Getenv("OPENAI_MODEL"),
		SettleDelay: getEnvMillis("SETTLE_DELAY_MS", 1500),
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvMillis(key string, def int) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Millisecond
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return time.Duration(def) * time.Millisecond
	}
	return time.Duration(n) * time.Millisecond
}
