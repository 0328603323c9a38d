package duplicate

import "time"

// Confidence thresholds used by the triage policy. The detector only
// produces scores; callers apply the policy.
const (
	// AutoLinkThreshold and above: link to the existing local transaction
	// instead of creating a new one
	AutoLinkThreshold = 95

	// ReviewThreshold up to (but excluding) AutoLinkThreshold: import the
	// external transaction flagged for human review
	ReviewThreshold = 70
)

// Scoring constants.
const (
	exactMatchConfidence = 98
	exactMatchLimit      = 5

	nearWindowDays      = 2
	nearCandidateLimit  = 10
	similarityThreshold = 0.70
	similarityWeight    = 85
	dayPenalty          = 5
	minNearConfidence   = 50
)

// Candidate is an incoming external transaction to be checked against the
// local ledger.
type Candidate struct {
	Date        time.Time
	Amount      float64
	Description string
}

// Match is a scored duplicate candidate. Confidence is in [0, 100].
type Match struct {
	LocalTransactionID string
	Confidence         int
	Reason             string
}
