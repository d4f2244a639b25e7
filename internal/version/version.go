package version

// Version and Commit are overridden at build time via -ldflags.
var (
	Version = "development"
	Commit  = "unknown"
)

// GetVersion returns the embedded release version.
func GetVersion() string {
	return Version
}

// GetCommit returns the embedded git commit.
func GetCommit() string {
	return Commit
}
