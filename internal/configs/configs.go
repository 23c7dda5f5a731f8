package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppURL                 string
	DatabaseDSN            string
	RedisAddr              string
	RedisEnabled           bool
	ScanIntervalSeconds    int
	ScanBatchSize          int
	ScanLeaseKey           string
	ScanLeaseTTLSeconds    int
	NotifyWorkers          int
	NotifyQueueSize        int
	RateLimit              int
	ShutdownTimeoutSeconds int
}

func Load() Config {
	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := Config{
		AppURL:                 fmt.Sprintf("%s:%s", appHost, appPort),
		DatabaseDSN:            getEnv("DATABASE_DSN", "taskpact.db"),
		RedisAddr:              fmt.Sprintf("%s:%s", redisHost, redisPort),
		RedisEnabled:           redisHost != "",
		ScanIntervalSeconds:    getEnvAsInt("SCAN_INTERVAL_SECONDS", 60),
		ScanBatchSize:          getEnvAsInt("SCAN_BATCH_SIZE", 100),
		ScanLeaseKey:           getEnv("SCAN_LEASE_KEY", "deadline_scan_lease"),
		ScanLeaseTTLSeconds:    getEnvAsInt("SCAN_LEASE_TTL_SECONDS", 120),
		NotifyWorkers:          getEnvAsInt("NOTIFY_WORKERS", 4),
		NotifyQueueSize:        getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
		RateLimit:              getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeoutSeconds: getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 20),
	}

	validate(cfg)
	return cfg
}

func validate(cfg Config) {
	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN must not be empty")
	}
	if cfg.ScanIntervalSeconds <= 0 {
		log.Fatal("SCAN_INTERVAL_SECONDS must be greater than 0")
	}
	if cfg.ScanBatchSize <= 0 {
		log.Fatal("SCAN_BATCH_SIZE must be greater than 0")
	}
	if cfg.ScanLeaseTTLSeconds < cfg.ScanIntervalSeconds {
		log.Fatal("SCAN_LEASE_TTL_SECONDS must be at least SCAN_INTERVAL_SECONDS")
	}
	if cfg.NotifyWorkers <= 0 {
		log.Fatal("NOTIFY_WORKERS must be greater than 0")
	}
	if cfg.NotifyQueueSize <= 0 {
		log.Fatal("NOTIFY_QUEUE_SIZE must be greater than 0")
	}
	if cfg.RateLimit <= 0 {
		log.Fatal("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value for %s", key)
		}
		return i
	}
	return defaultVal
}
