package config

import "time"

// Config holds runtime settings for the chat CLI.
type Config struct {
	ServerEndpointAddr  string
	ServerWebsocketURL  string
	CacheDSN            string
	OnlineCheckInterval time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.ServerWebsocketURL = "ws://127.0.0.1:8080/ws"
	c.CacheDSN = "file:chat-cache.db?_pragma=busy_timeout(5000)"
	c.OnlineCheckInterval = 3 * time.Second
}

// LoadConfig applies defaults, then the JSON file, then flags. Later sources
// take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
