package alerting

// Monitor receives failure notifications from the ingestion layer and
// decides when operators need to hear about them. Selector failures on
// the scraping adapters are the interesting case: a burst of them
// means the upstream markup changed and the selector profile needs
// maintenance.
type Monitor interface {
	// RecordFailure notes one failed fetch, keyed by platform and the
	// apperrors kind string.
	RecordFailure(platform string, kind string)
}
