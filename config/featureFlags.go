package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func IntFromEnv(key string, def int) int {
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

func EnvBoolDefault(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func StringFromEnv(key string, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// ImportBatchSize is the number of submissions processed between pauses.
// Set via IMPORT_BATCH_SIZE (default 10).
func ImportBatchSize() int {
	n := IntFromEnv("IMPORT_BATCH_SIZE", 10)
	if n <= 0 {
		return 10
	}
	return n
}

// ImportBatchDelay is the pause between batches, IMPORT_BATCH_DELAY_MS (default 1000).
func ImportBatchDelay() time.Duration {
	n := IntFromEnv("IMPORT_BATCH_DELAY_MS", 1000)
	if n < 0 {
		n = 0
	}
	return time.Duration(n) * time.Millisecond
}

// DefaultSeason is stamped on imported members that carry no season of their own.
func DefaultSeason() string {
	return StringFromEnv("IMPORT_DEFAULT_SEASON", "2024-2025")
}

// AsyncImportEnabled routes manual import triggers through Pub/Sub instead of running inline.
// Set via IMPORT_ASYNC=true; needs JOTFORM_IMPORT_TOPIC.
func AsyncImportEnabled() bool {
	return EnvBoolDefault("IMPORT_ASYNC", false) && strings.TrimSpace(os.Getenv("JOTFORM_IMPORT_TOPIC")) != ""
}
