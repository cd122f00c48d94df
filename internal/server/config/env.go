package config

import (
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/joho/godotenv"
)

// dotenvFile is loaded (when present) before the environment is read.
// Variables already set in the process environment win over the file.
var dotenvFile = ".env"

// parseEnv overlays BOOKSHELF_* environment variables. Malformed numbers and
// durations panic, like malformed JSON does.
func parseEnv(config *Config) {
	_ = godotenv.Load(dotenvFile)

	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.RedisAddr, "REDIS_ADDR")
	envString(&config.RedisPassword, "REDIS_PASSWORD")
	envInt(&config.RedisDB, "REDIS_DB")
	envString(&config.SecretKey, "SECRET_KEY")
	envDuration(&config.TokenValidityDuration, "TOKEN_VALIDITY_DURATION")
	envString(&config.S3Driver, "S3_DRIVER")
	envString(&config.S3RootUser, "S3_ROOT_USER")
	envString(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	envString(&config.S3Bucket, "S3_BUCKET")
	envString(&config.S3Region, "S3_REGION")
	envString(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	envString(&config.S3PublicURL, "S3_PUBLIC_URL")
	envDuration(&config.IndexInterval, "INDEX_INTERVAL")
	envInt(&config.IndexBatchSize, "INDEX_BATCH_SIZE")
	envInt(&config.IndexMaxAttempts, "INDEX_MAX_ATTEMPTS")
	envInt(&config.WaitMaxAttempts, "WAIT_MAX_ATTEMPTS")
	envDuration(&config.WaitInterval, "WAIT_INTERVAL")
	envString(&config.ReaperSchedule, "REAPER_SCHEDULE")
	envDuration(&config.ReaperMinAge, "REAPER_MIN_AGE")
	envString(&config.LogLevel, "LOG_LEVEL")
}

func envString(dst *string, name string) {
	if v, ok := os.LookupEnv(common.EnvPrefix + name); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, name string) {
	v, ok := os.LookupEnv(common.EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		panic(err)
	}
	*dst = n
}

func envDuration(dst *time.Duration, name string) {
	v, ok := os.LookupEnv(common.EnvPrefix + name)
	if !ok || v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		panic(err)
	}
	*dst = d
}
