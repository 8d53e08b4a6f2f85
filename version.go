// Package seqpipe provides the version and commit information for the
// seqpipe application.
package seqpipe

var (
	// Version is set during the build process.
	Version = "dev"
	// Commit is set during the build process.
	Commit = "unknown"
)
