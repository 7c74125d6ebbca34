package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN    string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	ListenAddr     string
	HoldTTL        time.Duration
	SweepInterval  time.Duration
	ServiceFeeRate float64
	TaxRate        float64
	Currency       string
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		PostgresDSN:    os.Getenv("POSTGRES_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		ListenAddr:     envString("LISTEN_ADDR", ":8080"),
		HoldTTL:        envDuration("HOLD_TTL", 5*time.Minute),
		SweepInterval:  envDuration("SWEEP_INTERVAL", 30*time.Second),
		ServiceFeeRate: envFloat("SERVICE_FEE_RATE", 0.05),
		TaxRate:        envFloat("TAX_RATE", 0.18),
		Currency:       envString("CURRENCY", "TRY"),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}
