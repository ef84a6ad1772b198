package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v3"

	"github.com/rulekit/rulekit/pkg/log"
	"github.com/rulekit/rulekit/pkg/models"
	"github.com/rulekit/rulekit/pkg/schema"
)

var validate *validator.Validate

// Static error variables for linter compliance.
var (
	ErrInvalidFields  = errors.New("invalid fields found")
	ErrInvalidOptions = errors.New("invalid options found")
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate an evaluation configuration file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the configuration JSON file",
				Required: true,
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			validate = validator.New(validator.WithRequiredStructEnabled())

			logger := slog.With(
				"module", "rulekit",
				"action", "validate",
			)

			path := command.String("config")

			cfg, err := schema.LoadConfig(path)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			logger.Info("Validating configuration", "config_id", cfg.ID,
				"fields", len(cfg.Fields), "options", len(cfg.Options))

			_, _ = fmt.Fprintln(os.Stdout, "Configuration Validation Results:")
			_, _ = fmt.Fprintln(os.Stdout, "=================================")
			_, _ = fmt.Fprintf(os.Stdout, "\nConfiguration: %s (%s)\n", cfg.Name, cfg.ID)

			validFields := 0
			invalidFields := 0
			validOptions := 0
			invalidOptions := 0

			for _, field := range cfg.Fields {
				_, _ = fmt.Fprintf(os.Stdout, "  Field: %s (%s)\n", field.Name, field.ID)

				if !checkStruct(field) {
					invalidFields++

					continue
				}

				if !field.Type.Valid() {
					_, _ = fmt.Fprintf(os.Stdout, "    ❌ INVALID: unknown field type %q\n", field.Type)
					invalidFields++

					continue
				}

				if bad := badOperator(field.ShowConditions); bad != "" {
					_, _ = fmt.Fprintf(os.Stdout, "    ❌ INVALID: unknown operator %q\n", bad)
					invalidFields++

					continue
				}

				if bad := badRuleType(field.Rules); bad != "" {
					_, _ = fmt.Fprintf(os.Stdout, "    ❌ INVALID: unknown rule type %q\n", bad)
					invalidFields++

					continue
				}

				_, _ = fmt.Fprintf(os.Stdout, "    ✅ VALID\n")
				validFields++
			}

			for _, option := range cfg.Options {
				_, _ = fmt.Fprintf(os.Stdout, "  Option: %s (%s)\n", option.Name, option.ID)

				if !checkStruct(option) {
					invalidOptions++

					continue
				}

				if option.Logic != nil && !option.Logic.Kind.Valid() {
					_, _ = fmt.Fprintf(os.Stdout, "    ❌ INVALID: unknown logic kind %q\n", option.Logic.Kind)
					invalidOptions++

					continue
				}

				if bad := badOperator(option.Conditions); bad != "" {
					_, _ = fmt.Fprintf(os.Stdout, "    ❌ INVALID: unknown operator %q\n", bad)
					invalidOptions++

					continue
				}

				_, _ = fmt.Fprintf(os.Stdout, "    ✅ VALID\n")
				validOptions++
			}

			_, _ = fmt.Fprintf(os.Stdout, "\nValidation Summary:\n")
			_, _ = fmt.Fprintf(os.Stdout, "  Total fields: %d\n", validFields+invalidFields)
			_, _ = fmt.Fprintf(os.Stdout, "  Valid fields: %d\n", validFields)
			_, _ = fmt.Fprintf(os.Stdout, "  Invalid fields: %d\n", invalidFields)
			_, _ = fmt.Fprintf(os.Stdout, "  Total options: %d\n", validOptions+invalidOptions)
			_, _ = fmt.Fprintf(os.Stdout, "  Valid options: %d\n", validOptions)
			_, _ = fmt.Fprintf(os.Stdout, "  Invalid options: %d\n", invalidOptions)

			if len(cfg.Frameworks) > 0 {
				_, _ = fmt.Fprintf(os.Stdout, "  Declared frameworks: %v (unregistered frameworks report exempt)\n",
					cfg.Frameworks)
			}

			if invalidFields > 0 {
				return fmt.Errorf("%w: %d", ErrInvalidFields, invalidFields)
			}

			if invalidOptions > 0 {
				return fmt.Errorf("%w: %d", ErrInvalidOptions, invalidOptions)
			}

			_, _ = fmt.Fprintln(os.Stdout, "Configuration is valid and ready for evaluation! ✅")

			return nil
		},
	}
}

func checkStruct(v any) bool {
	err := validate.Struct(v)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		_, _ = fmt.Fprintf(os.Stdout, "    ❌ INVALID: %v\n", validationErrors)
	} else {
		_, _ = fmt.Fprintf(os.Stdout, "    ❌ INVALID: %v\n", err)
	}

	return false
}

func badOperator(conds []models.Condition) models.Operator {
	for _, cond := range conds {
		if !cond.Operator.Valid() {
			return cond.Operator
		}
	}

	return ""
}

func badRuleType(rules []models.ValidationRule) models.RuleType {
	for _, rule := range rules {
		if !rule.Type.Valid() {
			return rule.Type
		}
	}

	return ""
}
