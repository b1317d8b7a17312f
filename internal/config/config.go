package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	BaseURL         string // used for returning absolute short links
	CodeLength      int
	CreateRateRPS   float64 // 0 disables the create rate limit
	CreateRateBurst int
	AuditURL        string // empty disables the remote audit sink
	AuditClientID   string
	AuditSecret     string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func Load() Config {
	return Config{
		Port:            getint("PORT", 8080),
		BaseURL:         getenv("BASE_URL", ""),
		CodeLength:      getint("CODE_LENGTH", 6),
		CreateRateRPS:   getfloat("CREATE_RATE_RPS", 2.0),
		CreateRateBurst: getint("CREATE_RATE_BURST", 5),
		AuditURL:        getenv("AUDIT_URL", ""),
		AuditClientID:   getenv("AUDIT_CLIENT_ID", ""),
		AuditSecret:     getenv("AUDIT_CLIENT_SECRET", ""),
	}
}
