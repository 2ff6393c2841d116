package buildinfo

// Set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/sealbid/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/sealbid/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/sealbid/core/buildinfo.Date=2026-01-10T12:00:00Z'
var (
	// Version reports the semantic version or tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders a compact version label for chat replies and startup logs.
func String() string {
	if Commit == "" || Commit == "local" {
		return Version
	}
	short := Commit
	if len(short) > 7 {
		short = short[:7]
	}
	return Version + " (" + short + ")"
}
