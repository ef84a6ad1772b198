package audit

import (
	"sort"
	"time"

	"github.com/rulekit/rulekit/pkg/models"
)

// Summary condenses a completed trail for compliance review.
type Summary struct {
	TotalEntries   int            `json:"total_entries"`
	ActionCounts   map[string]int `json:"action_counts"`
	UniqueActors   []string       `json:"unique_actors"`
	ErrorCount     int            `json:"error_count"`
	FirstTimestamp time.Time      `json:"first_timestamp"`
	LastTimestamp  time.Time      `json:"last_timestamp"`
}

// Summarize aggregates a trail's entries. Actors are returned sorted so the
// summary is deterministic for a fixed trail.
func Summarize(entries []models.AuditEntry) Summary {
	summary := Summary{
		TotalEntries: len(entries),
		ActionCounts: make(map[string]int),
	}

	actors := make(map[string]struct{})

	for i, entry := range entries {
		summary.ActionCounts[entry.Action]++

		if entry.Action == models.AuditErrorOccurred {
			summary.ErrorCount++
		}

		if entry.Actor != "" {
			actors[entry.Actor] = struct{}{}
		}

		if i == 0 {
			summary.FirstTimestamp = entry.Timestamp
		}

		summary.LastTimestamp = entry.Timestamp
	}

	summary.UniqueActors = make([]string, 0, len(actors))
	for actor := range actors {
		summary.UniqueActors = append(summary.UniqueActors, actor)
	}

	sort.Strings(summary.UniqueActors)

	return summary
}
