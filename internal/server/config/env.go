package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays CHAT_* environment variables. A .env file in the working
// directory is loaded first if present; variables already set in the process
// environment win over it. Malformed numeric or duration values panic, like a
// malformed JSON file does.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}

	str("CHAT_GRPC_ADDR", &config.EndpointAddrGRPC)
	str("CHAT_HTTP_ADDR", &config.EndpointAddrHTTP)
	str("CHAT_STORAGE_BACKEND", &config.StorageBackend)
	str("CHAT_DATABASE_DSN", &config.DatabaseDSN)
	str("CHAT_DYNAMO_REGION", &config.DynamoRegion)
	str("CHAT_DYNAMO_ENDPOINT", &config.DynamoEndpoint)
	str("CHAT_DYNAMO_ACCESS_KEY", &config.DynamoAccessKey)
	str("CHAT_DYNAMO_SECRET_KEY", &config.DynamoSecretKey)
	str("CHAT_DYNAMO_TABLE_PREFIX", &config.DynamoTablePrefix)
	str("CHAT_REDIS_ADDR", &config.RedisAddr)
	dur("CHAT_USER_CACHE_TTL", &config.UserCacheTTL)
	str("CHAT_SECRET_KEY", &config.SecretKey)
	dur("CHAT_ACCESS_TOKEN_TTL", &config.AccessTokenValidityDuration)
	dur("CHAT_EVENT_TIMEOUT", &config.EventTimeout)
	str("CHAT_LOG_FORMAT", &config.LogFormat)

	if v, ok := os.LookupEnv("CHAT_EVENT_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			panic(err)
		}
		config.EventRateLimit = f
	}
	if v, ok := os.LookupEnv("CHAT_EVENT_BURST"); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			panic(err)
		}
		config.EventBurst = i
	}
}
