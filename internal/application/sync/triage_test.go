package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlink/banksync/internal/domain/duplicate"
)

func scored(confidence int) []duplicate.Match {
	return []duplicate.Match{{LocalTransactionID: "local-1", Confidence: confidence}}
}

func TestTriageThresholds(t *testing.T) {
	tests := []struct {
		name    string
		matches []duplicate.Match
		want    triageAction
	}{
		{"no matches imports as new", nil, triageImportNew},
		{"at the auto-link threshold", scored(duplicate.AutoLinkThreshold), triageAutoLink},
		{"just below the auto-link threshold", scored(duplicate.AutoLinkThreshold - 1), triageNeedsReview},
		{"at the review threshold", scored(duplicate.ReviewThreshold), triageNeedsReview},
		{"just below the review threshold", scored(duplicate.ReviewThreshold - 1), triageImportNew},
		{"perfect score auto-links", scored(100), triageAutoLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action, best := triage(tt.matches)
			assert.Equal(t, tt.want, action)
			if len(tt.matches) > 0 && tt.want != triageImportNew {
				require.NotNil(t, best)
				assert.Equal(t, "local-1", best.LocalTransactionID)
			} else {
				assert.Nil(t, best)
			}
		})
	}
}

func TestTriageUsesBestMatchOnly(t *testing.T) {
	// Detector output is ordered best first; a weaker second match must
	// not demote the decision.
	matches := []duplicate.Match{
		{LocalTransactionID: "local-1", Confidence: 98},
		{LocalTransactionID: "local-2", Confidence: 72},
	}

	action, best := triage(matches)
	assert.Equal(t, triageAutoLink, action)
	require.NotNil(t, best)
	assert.Equal(t, "local-1", best.LocalTransactionID)
}
