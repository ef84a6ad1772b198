// Package decision selects the winning option among condition-gated,
// prioritized candidates.
package decision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rulekit/rulekit/pkg/logic"
	"github.com/rulekit/rulekit/pkg/models"
)

// Selection is the outcome of one selection pass. Pending marks a
// human-in-the-loop decision: nothing was auto-selected and the caller owns
// the approval step.
type Selection struct {
	OptionID   string
	Confidence float64
	Pending    bool
	NextStep   string
	Trace      []string
	// FuncErrors collects custom-function failures from option condition
	// sets for the audit trail.
	FuncErrors []error
}

// Selector evaluates decision options through the logic combinator.
type Selector struct {
	combinator *logic.Combinator
	logger     *slog.Logger
}

// NewSelector creates a selector backed by the given combinator.
func NewSelector(comb *logic.Combinator, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}

	return &Selector{combinator: comb, logger: logger}
}

// Select evaluates every option's condition set independently (AND semantics
// unless the option declares its own logic) and returns the highest-priority
// passing option, ties broken by declaration order, first wins. When nothing
// passes, the configured default is returned with confidence 0. In manual
// mode nothing is evaluated or selected; the result is the pending sentinel.
//
// Cancellation is checked between option evaluations; a cancelled context
// surfaces as the context error with no partial selection.
func (s *Selector) Select(ctx context.Context, options []models.DecisionOption, input map[string]any, defaultID string, manual bool) (Selection, error) {
	if manual {
		return Selection{
			Pending: true,
			Trace:   []string{"manual decision configured, pending human decision"},
		}, nil
	}

	selection := Selection{}

	winner := -1
	winnerScore := 0.0

	for i, option := range options {
		if err := ctx.Err(); err != nil {
			return Selection{}, err
		}

		spec := models.DefaultLogic()
		if option.Logic != nil {
			spec = *option.Logic
		}

		result, err := s.combinator.Combine(spec, option.Conditions, input)
		if err != nil {
			return Selection{}, err
		}

		selection.FuncErrors = append(selection.FuncErrors, result.Errors...)

		selection.Trace = append(selection.Trace, fmt.Sprintf(
			"option %s (priority %d): %s (score: %.2f)",
			option.ID, option.Priority, passLabel(result.Passed), result.Score))
		selection.Trace = append(selection.Trace, indent(result.Trace)...)

		if !result.Passed {
			continue
		}

		// Strictly-greater keeps the first-declared option on priority ties.
		if winner == -1 || option.Priority > options[winner].Priority {
			winner = i
			winnerScore = result.Score
		}
	}

	if winner == -1 {
		selection.OptionID = defaultID
		selection.Confidence = 0
		selection.Trace = append(selection.Trace, "no option matched, using default")

		return selection, nil
	}

	selected := options[winner]
	selection.OptionID = selected.ID
	selection.Confidence = winnerScore
	selection.NextStep = selected.NextStep
	selection.Trace = append(selection.Trace, fmt.Sprintf(
		"selected option %s with confidence %.2f", selected.ID, winnerScore))

	return selection, nil
}

func indent(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = "  " + line
	}

	return out
}

func passLabel(passed bool) string {
	if passed {
		return "PASS"
	}

	return "FAIL"
}
