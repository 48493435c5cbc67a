package constants

import "time"

const (
	// idle horizon for the cast correlation caches
	CastCacheIdleTTL     = 60 * time.Second
	BossHPLogInterval    = 1 * time.Second
	MinEncounterDuration = 1 * time.Second
)

const (
	ExternalAPITimeout = 10 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
	MigrationTimeout   = 2 * time.Minute
)

const (
	DBMaxOpenConns    = 100
	DBMaxIdleConns    = 10
	DBConnMaxLifetime = 1 * time.Hour
	DBMaxIdleTime     = 10 * time.Minute
	DBBatchSize       = 100
	DecodeWorkers     = 4
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	EventBuffer     = 1024
)

const (
	AppVersion = "1.14.2"
)
