package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/bookshelf/internal/flagx"
	"github.com/dmitrijs2005/bookshelf/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration, so both "1s" and integer nanoseconds are accepted. After
// unmarshalling, set fields are copied into the runtime Config.
type JsonConfig struct {
	DatabaseDSN           string         `json:"database_dsn"`
	RedisAddr             string         `json:"redis_addr"`
	RedisPassword         string         `json:"redis_password"`
	RedisDB               int            `json:"redis_db"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	S3Driver              string         `json:"s3_driver"`
	S3RootUser            string         `json:"s3_root_user"`
	S3RootPassword        string         `json:"s3_root_password"`
	S3Bucket              string         `json:"s3_bucket"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	S3PublicURL           string         `json:"s3_public_url"`
	IndexInterval         timex.Duration `json:"index_interval"`
	IndexBatchSize        int            `json:"index_batch_size"`
	IndexMaxAttempts      int            `json:"index_max_attempts"`
	WaitMaxAttempts       int            `json:"wait_max_attempts"`
	WaitInterval          timex.Duration `json:"wait_interval"`
	ReaperSchedule        string         `json:"reaper_schedule"`
	ReaperMinAge          timex.Duration `json:"reaper_min_age"`
	LogLevel              string         `json:"log_level"`
}

// parseJson loads the file named by -c/-config (or $BOOKSHELF_CONFIG) into
// config. Fields absent from the file keep their current value. If the file
// cannot be read or contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFileFlag()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RedisDB, c.RedisDB)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.TokenValidityDuration, c.TokenValidityDuration)
	setString(&config.S3Driver, c.S3Driver)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3PublicURL, c.S3PublicURL)
	setDuration(&config.IndexInterval, c.IndexInterval)
	setInt(&config.IndexBatchSize, c.IndexBatchSize)
	setInt(&config.IndexMaxAttempts, c.IndexMaxAttempts)
	setInt(&config.WaitMaxAttempts, c.WaitMaxAttempts)
	setDuration(&config.WaitInterval, c.WaitInterval)
	setString(&config.ReaperSchedule, c.ReaperSchedule)
	setDuration(&config.ReaperMinAge, c.ReaperMinAge)
	setString(&config.LogLevel, c.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
