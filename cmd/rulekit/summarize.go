package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rulekit/rulekit/pkg/audit"
	"github.com/rulekit/rulekit/pkg/models"
)

func NewSummarizeCommand() *cli.Command {
	return &cli.Command{
		Name:    "summarize",
		Aliases: []string{"s"},
		Usage:   "Summarize an audit trail for compliance review",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "trail",
				Aliases:  []string{"t"},
				Usage:    "Path to a trail JSON file, or an evaluation result containing one",
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			entries, err := loadTrail(command.String("trail"))
			if err != nil {
				return err
			}

			summary := audit.Summarize(entries)

			encoded, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode summary: %w", err)
			}

			_, _ = fmt.Fprintln(os.Stdout, string(encoded))

			return nil
		},
	}
}

// loadTrail accepts either a bare JSON array of entries or a full evaluation
// result document with a "trail" member.
func loadTrail(path string) ([]models.AuditEntry, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trail file: %w", err)
	}

	var entries []models.AuditEntry
	if err := json.Unmarshal(document, &entries); err == nil {
		return entries, nil
	}

	var result struct {
		Trail []models.AuditEntry `json:"trail"`
	}

	if err := json.Unmarshal(document, &result); err != nil {
		return nil, fmt.Errorf("failed to decode trail: %w", err)
	}

	return result.Trail, nil
}
