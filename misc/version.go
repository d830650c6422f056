// Package misc keeps program identity shared by logging, reporting and the
// command line.
package misc

// Set at build time with -ldflags "-X spriter/misc.version=... -X spriter/misc.gitHash=...".
var (
	version = "dev"
	gitHash = "unknown"
)

const appName = "spriter"

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}

func GetAppName() string {
	return appName
}
