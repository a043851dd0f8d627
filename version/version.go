package version

import "fmt"

// values are set at build time via -ldflags
var (
	Version   = "dev"
	Commit    = "none"
	Date      = "unknown"
	BuiltBy   = "unknown"
	GoVersion = "unknown"
)

var FullVersion = func() string {
	return fmt.Sprintf("%s (%s) built %s by %s", Version, Commit, Date, BuiltBy)
}()
