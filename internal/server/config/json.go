package config

import (
	"encoding/json"
	"os"

	"github.com/timn835/crypto-chat/internal/flagx"
	"github.com/timn835/crypto-chat/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations
// use timex.Duration so both "5s" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	StorageBackend              string         `json:"storage_backend"`
	DatabaseDSN                 string         `json:"database_dsn"`
	DynamoRegion                string         `json:"dynamo_region"`
	DynamoEndpoint              string         `json:"dynamo_endpoint"`
	DynamoAccessKey             string         `json:"dynamo_access_key"`
	DynamoSecretKey             string         `json:"dynamo_secret_key"`
	DynamoTablePrefix           string         `json:"dynamo_table_prefix"`
	RedisAddr                   string         `json:"redis_addr"`
	UserCacheTTL                timex.Duration `json:"user_cache_ttl"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	EventTimeout                timex.Duration `json:"event_timeout"`
	EventRateLimit              float64        `json:"event_rate_limit"`
	EventBurst                  int            `json:"event_burst"`
	LogFormat                   string         `json:"log_format"`
}

// parseJson overlays values from the file named by -c/-config. Only fields
// present (non-zero) in the file are applied. An unreadable file or invalid
// JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigFilePath(os.Args[1:])

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

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	set(&config.StorageBackend, c.StorageBackend)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.DynamoRegion, c.DynamoRegion)
	set(&config.DynamoEndpoint, c.DynamoEndpoint)
	set(&config.DynamoAccessKey, c.DynamoAccessKey)
	set(&config.DynamoSecretKey, c.DynamoSecretKey)
	set(&config.DynamoTablePrefix, c.DynamoTablePrefix)
	set(&config.RedisAddr, c.RedisAddr)
	set(&config.SecretKey, c.SecretKey)
	set(&config.LogFormat, c.LogFormat)

	if c.UserCacheTTL.Duration != 0 {
		config.UserCacheTTL = c.UserCacheTTL.Duration
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.EventTimeout.Duration != 0 {
		config.EventTimeout = c.EventTimeout.Duration
	}
	if c.EventRateLimit != 0 {
		config.EventRateLimit = c.EventRateLimit
	}
	if c.EventBurst != 0 {
		config.EventBurst = c.EventBurst
	}
}
