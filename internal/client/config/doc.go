// Package config loads runtime configuration for the crypto-chat CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-w string   websocket URL of the realtime endpoint
//	-d string   DSN of the local sqlite conversation cache
//	-i int      online status check interval (seconds)
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "server_websocket_url": "ws://127.0.0.1:8080/ws",
//	  "cache_dsn": "file:chat-cache.db",
//	  "online_check_interval": "3s"
//	}
package config
