// Package config loads runtime configuration for the offsync agent.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected via -c or -config. Files ending in
//     .yaml/.yml are read as YAML, everything else as JSON.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-d string   path of the SQLite database holding the queue
//	-a string   base URL mutations are replayed against
//	-i int      online status check interval (seconds)
//	-g string   host:port of a gRPC health endpoint used as reachability probe
//	-l string   log level (debug, info, warn, error)
//
// # File schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	database_path: offsync.db
//	server_base_url: http://127.0.0.1:8080
//	online_check_interval: 3s
//	drain_interval: 1m
//	requests_per_second: 20
package config
