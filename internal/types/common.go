package types

// RunMode is the deployment mode of the service
type RunMode string

const (
	RunModeLocal RunMode = "local"
	RunModeProd  RunMode = "prod"
)

// LogLevel is the logging verbosity
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Status is the lifecycle status of a persisted row
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)
