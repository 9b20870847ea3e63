package messaging

// Subject constants for the combat log bus.
// Follow the pattern: {domain}.{action}.{resource}
const (
	// SubjectBatches prefixes raw log batches; the game is the last token.
	SubjectBatches = "combatlog.batches"

	// SubjectReportsPublished announces a finalized partition.
	SubjectReportsPublished = "combatlog.reports.published"
)

// Stream and durable consumer names.
const (
	StreamBatches   = "COMBATLOG_BATCHES"
	StreamReports   = "COMBATLOG_REPORTS"
	ConsumerWorkers = "combatlog-workers"
)

// BatchSubject returns the subject for batches of one game.
// Example: combatlog.batches.wow
func BatchSubject(game string) string {
	return SubjectBatches + "." + game
}
