package params

import "time"

const (
	ServerBodyLimit    = 1048576 // 1 MiB
	ServerIdleTimeout  = 30 * time.Second
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 10 * time.Second

	LastCheckInKeyPrefix = "ci:" // per-employee last accepted check-in snapshot

	EarthRadiusMeters = 6371000.0

	MatchThreshold             = 90.0             // minimum face match score to verify
	DefaultVerificationTimeout = 5 * time.Minute  // pending session lifetime when the caller gives none
	MaxVerificationTimeout     = 60 * time.Minute // upper bound on admin supplied timeout
	SweepInterval              = 30 * time.Second // expiry sweep cadence
	ScorerTimeout              = 15 * time.Second // biometric scorer call budget

	SpoofSpeedThresholdKmh  = 500.0 // faster than any plausible transport between check-ins
	SpoofAccuracyThresholdM = 1000.0
	MinPatternSamples       = 5    // completed sessions required before the time-pattern rule applies
	DuplicateRatioThreshold = 0.30 // share of duplicated check-in timestamps considered implausible
	HistoryWindowSessions   = 10
	HistoryWindowDays       = 30

	GeofenceRefreshInterval = 60 * time.Second // fence snapshot reload cadence
	LastCheckInMaxAge       = 24 * time.Hour   // ttl for the cached last check-in snapshot

	HealthCheckServerAddr = ":3001"
)
