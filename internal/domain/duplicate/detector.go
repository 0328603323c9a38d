// Package duplicate scores incoming external transactions against the
// local ledger to catch entries the user already recorded by hand.
//
// Matching runs in two phases. The exact phase looks for same-day,
// same-amount transactions whose descriptions overlap; the near phase
// widens the date window and falls back to edit-distance similarity over
// the descriptions. Phase results never mix: near matching only runs when
// the exact phase found nothing.
package duplicate

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/ledgerlink/banksync/internal/infrastructure/storage"
)

// Detector finds probable duplicates of a candidate transaction.
type Detector struct {
	repo   storage.LocalTransactionRepository
	logger *slog.Logger
}

// NewDetector creates a detector backed by the given repository.
func NewDetector(repo storage.LocalTransactionRepository, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{repo: repo, logger: logger}
}

// FindDuplicates returns scored matches ordered by confidence, highest
// first. It never fails: repository errors degrade to an empty result so
// the sync run can proceed and import the transaction as new.
func (d *Detector) FindDuplicates(candidate Candidate, localAccountID string) []Match {
	matches := d.exactMatches(candidate, localAccountID)
	if len(matches) == 0 {
		matches = d.nearMatches(candidate, localAccountID)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	return matches
}

// exactMatches finds same-day same-amount transactions whose description
// overlaps the candidate's (case-insensitive substring, either direction).
func (d *Detector) exactMatches(candidate Candidate, localAccountID string) []Match {
	candidates, err := d.repo.FindLocalCandidatesExact(localAccountID, candidate.Date, candidate.Amount, 0)
	if err != nil {
		d.logger.Warn("exact candidate query failed, skipping duplicate check", "error", err)
		return nil
	}

	candidateDesc := strings.ToLower(strings.TrimSpace(candidate.Description))

	var matches []Match
	for _, tx := range candidates {
		localDesc := strings.ToLower(strings.TrimSpace(tx.Description))
		if !descriptionsOverlap(localDesc, candidateDesc) {
			continue
		}
		matches = append(matches, Match{
			LocalTransactionID: tx.ID,
			Confidence:         exactMatchConfidence,
			Reason:             fmt.Sprintf("exact match: same date, same amount, description overlap with %q", tx.Description),
		})
		if len(matches) >= exactMatchLimit {
			break
		}
	}

	return matches
}

// nearMatches widens the window to ±nearWindowDays and scores candidates by
// description similarity minus a per-day distance penalty.
func (d *Detector) nearMatches(candidate Candidate, localAccountID string) []Match {
	start := candidate.Date.AddDate(0, 0, -nearWindowDays)
	end := candidate.Date.AddDate(0, 0, nearWindowDays)

	candidates, err := d.repo.FindLocalCandidatesNear(localAccountID, start, end, candidate.Amount, nearCandidateLimit)
	if err != nil {
		d.logger.Warn("near candidate query failed, skipping duplicate check", "error", err)
		return nil
	}

	var matches []Match
	for _, tx := range candidates {
		sim := Similarity(candidate.Description, tx.Description)
		if sim <= similarityThreshold {
			continue
		}

		days := daysApart(candidate.Date, tx.Date)
		confidence := int(math.Floor(sim*similarityWeight - float64(days)*dayPenalty))
		if confidence < minNearConfidence {
			confidence = minNearConfidence
		}

		matches = append(matches, Match{
			LocalTransactionID: tx.ID,
			Confidence:         confidence,
			Reason:             fmt.Sprintf("near match: %.0f%% similar to %q, %d day(s) apart", sim*100, tx.Description, days),
		})
	}

	return matches
}

// Similarity returns a [0, 1] score for two descriptions:
// 1 − editDistance / max(len). Comparison is case-insensitive.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1
	}

	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// descriptionsOverlap reports whether either description contains the
// other. Provider descriptions often carry reference suffixes the user's
// manual entry lacks, so containment is checked both ways.
func descriptionsOverlap(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// daysApart returns the whole-day calendar distance between two dates.
func daysApart(a, b time.Time) int {
	d := truncateToDay(a).Sub(truncateToDay(b))
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
