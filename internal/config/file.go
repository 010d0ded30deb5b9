package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrijs2005/offsync/internal/flagx"
	"github.com/dmitrijs2005/offsync/internal/timex"
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// FileConfig is the DTO decoded from a JSON or YAML file. Pointer fields
// distinguish "absent" from a zero value so a partial file only overrides
// what it mentions.
type FileConfig struct {
	DatabasePath        *string         `json:"database_path" yaml:"database_path"`
	ServerBaseURL       *string         `json:"server_base_url" yaml:"server_base_url"`
	HealthCheckURL      *string         `json:"health_check_url" yaml:"health_check_url"`
	HealthCheckGRPCAddr *string         `json:"health_check_grpc_addr" yaml:"health_check_grpc_addr"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval" yaml:"online_check_interval"`
	ProbeTimeout        *timex.Duration `json:"probe_timeout" yaml:"probe_timeout"`
	RequestTimeout      *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	RequestsPerSecond   *float64        `json:"requests_per_second" yaml:"requests_per_second"`
	DrainInterval       *timex.Duration `json:"drain_interval" yaml:"drain_interval"`
	BackoffInitial      *timex.Duration `json:"backoff_initial" yaml:"backoff_initial"`
	BackoffMax          *timex.Duration `json:"backoff_max" yaml:"backoff_max"`
	LogLevel            *string         `json:"log_level" yaml:"log_level"`
	LogFormat           *string         `json:"log_format" yaml:"log_format"`
	MetricsEnabled      *bool           `json:"metrics_enabled" yaml:"metrics_enabled"`
	OTLPEndpoint        *string         `json:"otlp_endpoint" yaml:"otlp_endpoint"`
}

// parseFile overlays cfg with the file named by -c/-config. It panics on
// read or decode errors.
func parseFile(cfg *Config) {
	path := flagx.ConfigFile()
	if path == "" {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	var fc FileConfig
	if err := decodeFile(path, data, &fc); err != nil {
		panic(err)
	}
	fc.apply(cfg)
}

func decodeFile(path string, data []byte, fc *FileConfig) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, fc)
	default:
		return json.Unmarshal(data, fc)
	}
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.ServerBaseURL, fc.ServerBaseURL)
	setString(&cfg.HealthCheckURL, fc.HealthCheckURL)
	setString(&cfg.HealthCheckGRPCAddr, fc.HealthCheckGRPCAddr)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	setString(&cfg.OTLPEndpoint, fc.OTLPEndpoint)

	setDuration(&cfg.OnlineCheckInterval, fc.OnlineCheckInterval)
	setDuration(&cfg.ProbeTimeout, fc.ProbeTimeout)
	setDuration(&cfg.RequestTimeout, fc.RequestTimeout)
	setDuration(&cfg.DrainInterval, fc.DrainInterval)
	setDuration(&cfg.BackoffInitial, fc.BackoffInitial)
	setDuration(&cfg.BackoffMax, fc.BackoffMax)

	if fc.RequestsPerSecond != nil {
		cfg.RequestsPerSecond = *fc.RequestsPerSecond
	}
	if fc.MetricsEnabled != nil {
		cfg.MetricsEnabled = *fc.MetricsEnabled
	}
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *timex.Duration) {
	if src != nil {
		*dst = src.Duration
	}
}
