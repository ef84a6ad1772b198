package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"

	"github.com/rulekit/rulekit/pkg/engine"
	"github.com/rulekit/rulekit/pkg/eventbus"
	"github.com/rulekit/rulekit/pkg/log"
	"github.com/rulekit/rulekit/pkg/registry"
	"github.com/rulekit/rulekit/pkg/schema"
	trc "github.com/rulekit/rulekit/pkg/tracer"
)

func NewEvaluateCommand() *cli.Command {
	return &cli.Command{
		Name:    "evaluate",
		Aliases: []string{"e"},
		Usage:   "Run one evaluation and print the result as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the configuration JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Path to the input context JSON file",
				Required: true,
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export spans via OTLP HTTP",
				Sources: cli.EnvVars("RULEKIT_TRACING"),
			},
			&cli.BoolFlag{
				Name:  "events",
				Usage: "Log evaluation events to stderr",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("evaluate")

			cfg, err := schema.LoadConfig(command.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			input, err := loadInput(command.String("input"))
			if err != nil {
				return err
			}

			opts := []engine.Option{engine.WithLogger(logger)}

			if command.Bool("tracing") {
				tracerProvider, err := trc.InitTracer(ctx, "rulekit")
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}
				defer func() {
					if err := tracerProvider.Shutdown(ctx); err != nil {
						slog.Error("Failed to shutdown tracer provider", "error", err)
					}
				}()

				opts = append(opts, engine.WithTracer(otel.Tracer("rulekit")))
			}

			if command.Bool("events") {
				sink := eventbus.NewSlogSink(logger)
				defer func() {
					if err := sink.Close(); err != nil {
						logger.Error("Failed to close event sink", "error", err)
					}
				}()

				opts = append(opts, engine.WithSink(sink))
			}

			eng, err := engine.New(registry.New(logger), opts...)
			if err != nil {
				return fmt.Errorf("failed to create engine: %w", err)
			}

			result, err := eng.Evaluate(ctx, cfg, input)
			if result == nil && err != nil {
				return err
			}

			encoded, encodeErr := json.MarshalIndent(result, "", "  ")
			if encodeErr != nil {
				return fmt.Errorf("failed to encode result: %w", encodeErr)
			}

			_, _ = fmt.Fprintln(os.Stdout, string(encoded))

			return err
		},
	}
}

func loadInput(path string) (map[string]any, error) {
	document, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	var input map[string]any
	if err := json.Unmarshal(document, &input); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}

	return input, nil
}
