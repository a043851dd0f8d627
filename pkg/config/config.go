package config

// this holds the resolved configuration values from CLI
var (
	TelemetryDir string // directory containing session telemetry data
	CacheFile    string // path of the segment cache database
	LogLevel     string // sets the log level (zap log level values)
	LogFormat    string // text vs json
	LogConfig    string // path to log config file
	OutputFormat string // output format for query commands (json, yaml)
)
