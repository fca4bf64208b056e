package config

import "time"

// Backend defaults.
const (
	DefaultGrimoireLabURL  = "http://localhost:8000"
	DefaultOpenSearchURL   = "http://localhost:9200/"
	DefaultOpenSearchIndex = "events"
	DefaultPageSize        = 500
)

// Coordinator defaults.
const (
	DefaultRepositoryTimeout = time.Hour
	DefaultPollInterval      = 25 * time.Second
	DefaultReadyAfter        = 7 * 24 * time.Hour
	DefaultWorkers           = 4
)
