// Package config reads the engine's process bootstrap configuration from
// environment variables, grounded on cmd/server/main.go's os.Getenv +
// default-fallback style.
package config

import "os"

type Config struct {
	DBPath         string
	CameraNamesCSV string
	MetricsAddr    string
}

func Load() Config {
	return Config{
		DBPath:         getenv("NVRMONITOR_DB_PATH", "./data/monitor.db"),
		CameraNamesCSV: getenv("NVRMONITOR_CAMERA_NAMES_CSV", "camera_names.csv"),
		MetricsAddr:    getenv("NVRMONITOR_METRICS_ADDR", ":9090"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
