// Package orchestrator drives a conversation through its processing stages.
package orchestrator

const (
	// DefaultSummaryLength is the rune count of the finished summary.
	DefaultSummaryLength = 50

	// DefaultMaxConcurrentJobs bounds Submit when Options leaves it unset.
	DefaultMaxConcurrentJobs = 4

	// idLength is the number of hex characters kept from a UUID.
	idLength = 16
)
