package config

import "time"

// Config holds runtime settings for the offsync agent.
//
// HealthCheckGRPCAddr takes precedence over HealthCheckURL when both are set.
// An empty HealthCheckURL is derived from ServerBaseURL + "/health".
// RequestsPerSecond <= 0 disables replay rate limiting.
type Config struct {
	DatabasePath        string
	ServerBaseURL       string
	HealthCheckURL      string
	HealthCheckGRPCAddr string
	OnlineCheckInterval time.Duration
	ProbeTimeout        time.Duration
	RequestTimeout      time.Duration
	RequestsPerSecond   float64
	DrainInterval       time.Duration
	BackoffInitial      time.Duration
	BackoffMax          time.Duration
	LogLevel            string
	LogFormat           string
	MetricsEnabled      bool
	OTLPEndpoint        string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabasePath = "offsync.db"
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.HealthCheckURL = ""
	c.HealthCheckGRPCAddr = ""
	c.OnlineCheckInterval = 3 * time.Second
	c.ProbeTimeout = 3 * time.Second
	c.RequestTimeout = 10 * time.Second
	c.RequestsPerSecond = 0
	c.DrainInterval = time.Minute
	c.BackoffInitial = time.Second
	c.BackoffMax = time.Minute
	c.LogLevel = "info"
	c.LogFormat = "text"
	c.MetricsEnabled = false
	c.OTLPEndpoint = "localhost:4318"
}

// HealthURL returns the HTTP reachability probe URL.
func (c *Config) HealthURL() string {
	if c.HealthCheckURL != "" {
		return c.HealthCheckURL
	}
	if c.ServerBaseURL == "" {
		return ""
	}
	return trimSlash(c.ServerBaseURL) + "/health"
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the config file (if present) and command-line flags (if present). Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseFile(cfg)
	parseFlags(cfg)
	return cfg
}
