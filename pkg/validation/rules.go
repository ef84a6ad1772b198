package validation

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rulekit/rulekit/pkg/condition"
	"github.com/rulekit/rulekit/pkg/dotpath"
	"github.com/rulekit/rulekit/pkg/models"
)

const (
	emailPattern = `^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`
	phonePattern = `^\+?[0-9][0-9 ().\-]{5,18}[0-9]$`
)

// dateLayouts are accepted for date fields and date-range bounds.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// applyRule checks one per-field rule against a non-empty value. A nil issue
// means the rule is satisfied. The returned error is a *models.ConfigError
// for a malformed rule or a *condition.FuncError for a panicking custom
// function.
func (e *Engine) applyRule(field models.Field, rule models.ValidationRule, value any, ctx map[string]any) (*models.ValidationIssue, error) {
	if !rule.Type.Valid() {
		return nil, models.NewConfigError(
			"rule "+rule.ID, "%v: %q", models.ErrUnknownRuleType, rule.Type)
	}

	violation := func(format string, args ...any) *models.ValidationIssue {
		return &models.ValidationIssue{
			Field:    field.ID,
			Rule:     rule.Type,
			Message:  messageOr(rule, fmt.Sprintf(format, args...)),
			Severity: rule.EffectiveSeverity(),
		}
	}

	switch rule.Type {
	case models.RuleRequired:
		// Emptiness is short-circuited before declared rules run; a value
		// reaching this point is present.
		return nil, nil

	case models.RuleMinLength:
		bound, err := numericPayload(rule)
		if err != nil {
			return nil, err
		}

		if length, ok := lengthOf(value); ok && float64(length) < bound {
			return violation("%s must be at least %d characters", displayName(field), int(bound)), nil
		}

	case models.RuleMaxLength:
		bound, err := numericPayload(rule)
		if err != nil {
			return nil, err
		}

		if length, ok := lengthOf(value); ok && float64(length) > bound {
			return violation("%s must be at most %d characters", displayName(field), int(bound)), nil
		}

	case models.RuleMinValue:
		bound, err := numericPayload(rule)
		if err != nil {
			return nil, err
		}

		if number, ok := condition.ToNumber(value); !ok || number < bound {
			return violation("%s must be at least %v", displayName(field), rule.Value), nil
		}

	case models.RuleMaxValue:
		bound, err := numericPayload(rule)
		if err != nil {
			return nil, err
		}

		if number, ok := condition.ToNumber(value); !ok || number > bound {
			return violation("%s must be at most %v", displayName(field), rule.Value), nil
		}

	case models.RulePattern:
		pattern, ok := rule.Value.(string)
		if !ok {
			return nil, models.NewConfigError("rule "+rule.ID, "pattern rule requires a string payload")
		}

		str, ok := value.(string)
		if !ok {
			return violation("%s must be text", displayName(field)), nil
		}

		matched, err := e.evaluator.MatchPattern(pattern, str)
		if err != nil {
			return nil, models.NewConfigError("rule "+rule.ID, "invalid pattern %q: %v", pattern, err)
		}

		if !matched {
			return violation("%s has an invalid format", displayName(field)), nil
		}

	case models.RuleEmail:
		if !e.matchesFormat(emailPattern, value) {
			return violation("%s must be a valid email address", displayName(field)), nil
		}

	case models.RuleURL:
		str, ok := value.(string)
		if !ok {
			return violation("%s must be a valid URL", displayName(field)), nil
		}

		parsed, err := url.Parse(str)
		if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return violation("%s must be a valid URL", displayName(field)), nil
		}

	case models.RulePhone:
		if !e.matchesFormat(phonePattern, value) {
			return violation("%s must be a valid phone number", displayName(field)), nil
		}

	case models.RuleDateRange:
		return e.applyDateRange(field, rule, value)

	case models.RuleFileType:
		return applyFileType(field, rule, value)

	case models.RuleFileSize:
		bound, err := numericPayload(rule)
		if err != nil {
			return nil, err
		}

		size, ok := fileSize(value)
		if !ok || size > bound {
			return violation("%s exceeds the maximum size of %d bytes", displayName(field), int64(bound)), nil
		}

	case models.RuleInSet:
		allowed, ok := rule.Value.([]any)
		if !ok {
			return nil, models.NewConfigError("rule "+rule.ID, "in_set rule requires a list payload")
		}

		for _, item := range allowed {
			if fmt.Sprintf("%v", item) == fmt.Sprintf("%v", value) {
				return nil, nil
			}
		}

		return violation("%s must be one of %v", displayName(field), allowed), nil

	case models.RuleUniqueItems:
		items, ok := value.([]any)
		if !ok {
			return nil, nil
		}

		seen := make(map[string]struct{}, len(items))
		for _, item := range items {
			key := fmt.Sprintf("%v", item)
			if _, dup := seen[key]; dup {
				return violation("%s must not contain duplicates", displayName(field)), nil
			}

			seen[key] = struct{}{}
		}

	case models.RuleCustom:
		return e.applyCustomRule(field, rule, value, ctx)

	case models.RuleDependentField, models.RuleBeforeField, models.RuleAfterField:
		return nil, models.NewConfigError(
			"rule "+rule.ID, "%q must be declared at form level", rule.Type)
	}

	return nil, nil
}

// applyCrossFieldRule checks one form-level rule against submitted values.
func (e *Engine) applyCrossFieldRule(rule models.ValidationRule, values map[string]any) (*models.ValidationIssue, error) {
	if rule.Field == "" {
		return nil, models.NewConfigError("cross-field rule "+rule.ID, "missing target field")
	}

	other, ok := rule.Value.(string)
	if !ok || other == "" {
		return nil, models.NewConfigError(
			"cross-field rule "+rule.ID, "payload must name the referenced field")
	}

	value, _ := dotpath.Resolve(rule.Field, values)
	otherValue, _ := dotpath.Resolve(other, values)

	violation := func(format string, args ...any) *models.ValidationIssue {
		return &models.ValidationIssue{
			Field:    rule.Field,
			Rule:     rule.Type,
			Message:  messageOr(rule, fmt.Sprintf(format, args...)),
			Severity: rule.EffectiveSeverity(),
		}
	}

	switch rule.Type {
	case models.RuleDependentField:
		if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", otherValue) {
			return violation("%s must match %s", rule.Field, other), nil
		}

	case models.RuleBeforeField, models.RuleAfterField:
		first, ok1 := parseDate(value)
		second, ok2 := parseDate(otherValue)

		if !ok1 || !ok2 {
			return violation("%s and %s must both be valid dates", rule.Field, other), nil
		}

		if rule.Type == models.RuleBeforeField && !first.Before(second) {
			return violation("%s must be before %s", rule.Field, other), nil
		}

		if rule.Type == models.RuleAfterField && !first.After(second) {
			return violation("%s must be after %s", rule.Field, other), nil
		}

	default:
		return nil, models.NewConfigError(
			"cross-field rule "+rule.ID, "%q is not a cross-field rule type", rule.Type)
	}

	return nil, nil
}

func (e *Engine) applyDateRange(field models.Field, rule models.ValidationRule, value any) (*models.ValidationIssue, error) {
	bounds, ok := rule.Value.(map[string]any)
	if !ok {
		return nil, models.NewConfigError(
			"rule "+rule.ID, `date_range rule requires a {"min","max"} payload`)
	}

	date, ok := parseDate(value)
	if !ok {
		return &models.ValidationIssue{
			Field:    field.ID,
			Rule:     rule.Type,
			Message:  messageOr(rule, fmt.Sprintf("%s must be a valid date", displayName(field))),
			Severity: rule.EffectiveSeverity(),
		}, nil
	}

	if raw, present := bounds["min"]; present {
		min, ok := parseDate(raw)
		if !ok {
			return nil, models.NewConfigError("rule "+rule.ID, "invalid min date %v", raw)
		}

		if date.Before(min) {
			return &models.ValidationIssue{
				Field:    field.ID,
				Rule:     rule.Type,
				Message:  messageOr(rule, fmt.Sprintf("%s must not be before %v", displayName(field), raw)),
				Severity: rule.EffectiveSeverity(),
			}, nil
		}
	}

	if raw, present := bounds["max"]; present {
		max, ok := parseDate(raw)
		if !ok {
			return nil, models.NewConfigError("rule "+rule.ID, "invalid max date %v", raw)
		}

		if date.After(max) {
			return &models.ValidationIssue{
				Field:    field.ID,
				Rule:     rule.Type,
				Message:  messageOr(rule, fmt.Sprintf("%s must not be after %v", displayName(field), raw)),
				Severity: rule.EffectiveSeverity(),
			}, nil
		}
	}

	return nil, nil
}

// applyCustomRule runs a registered validator, isolating panics so one bad
// function cannot crash the whole evaluation.
func (e *Engine) applyCustomRule(field models.Field, rule models.ValidationRule, value any, ctx map[string]any) (issue *models.ValidationIssue, err error) {
	name := rule.CustomFunc
	if name == "" {
		return nil, models.NewConfigError("rule "+rule.ID, "custom rule requires custom_func")
	}

	fn, ok := e.registry.Validator(name)
	if !ok {
		return nil, models.NewConfigError("rule "+rule.ID, "validator function %q not registered", name)
	}

	defer func() {
		if r := recover(); r != nil {
			issue = nil
			err = &condition.FuncError{Func: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	if callErr := fn(value, ctx); callErr != nil {
		return &models.ValidationIssue{
			Field:    field.ID,
			Rule:     rule.Type,
			Message:  messageOr(rule, callErr.Error()),
			Severity: rule.EffectiveSeverity(),
		}, nil
	}

	return nil, nil
}

func applyFileType(field models.Field, rule models.ValidationRule, value any) (*models.ValidationIssue, error) {
	allowed, ok := rule.Value.([]any)
	if !ok {
		return nil, models.NewConfigError(
			"rule "+rule.ID, "file_type rule requires a list of extensions")
	}

	name, ok := fileName(value)
	extension := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")

	if ok {
		for _, item := range allowed {
			if strings.EqualFold(fmt.Sprintf("%v", item), extension) {
				return nil, nil
			}
		}
	}

	return &models.ValidationIssue{
		Field:    field.ID,
		Rule:     rule.Type,
		Message:  messageOr(rule, fmt.Sprintf("%s must be one of the types %v", displayName(field), allowed)),
		Severity: rule.EffectiveSeverity(),
	}, nil
}

// checkType applies the built-in coercion check for the field's declared
// type. It runs after declared rules so rule violations are reported first.
func checkType(field models.Field, value any) *models.ValidationIssue {
	typeIssue := func(message string) *models.ValidationIssue {
		return &models.ValidationIssue{
			Field:    field.ID,
			Message:  message,
			Severity: models.SeverityError,
		}
	}

	switch field.Type {
	case models.FieldTypeText:
		if _, ok := value.(string); !ok {
			return typeIssue(fmt.Sprintf("%s must be text", displayName(field)))
		}

	case models.FieldTypeNumber:
		if _, ok := condition.ToNumber(value); !ok {
			return typeIssue(fmt.Sprintf("%s must be a number", displayName(field)))
		}

	case models.FieldTypeBoolean:
		switch v := value.(type) {
		case bool:
		case string:
			if v != "true" && v != "false" {
				return typeIssue(fmt.Sprintf("%s must be a boolean", displayName(field)))
			}
		default:
			return typeIssue(fmt.Sprintf("%s must be a boolean", displayName(field)))
		}

	case models.FieldTypeDate:
		if _, ok := parseDate(value); !ok {
			return typeIssue(fmt.Sprintf("%s must be a valid date", displayName(field)))
		}

	case models.FieldTypeSelect:
		if len(field.Options) == 0 {
			return nil
		}

		for _, option := range field.Options {
			if option == fmt.Sprintf("%v", value) {
				return nil
			}
		}

		return typeIssue(fmt.Sprintf("%s must be one of %v", displayName(field), field.Options))

	case models.FieldTypeMultiSelect:
		items, ok := value.([]any)
		if !ok {
			return typeIssue(fmt.Sprintf("%s must be a list", displayName(field)))
		}

		if len(field.Options) == 0 {
			return nil
		}

		for _, item := range items {
			found := false

			for _, option := range field.Options {
				if option == fmt.Sprintf("%v", item) {
					found = true

					break
				}
			}

			if !found {
				return typeIssue(fmt.Sprintf("%s contains an invalid selection %v", displayName(field), item))
			}
		}

	case models.FieldTypeFile:
		if _, ok := fileName(value); !ok {
			return typeIssue(fmt.Sprintf("%s must be a file reference", displayName(field)))
		}

	case models.FieldTypeJSON:
		switch value.(type) {
		case map[string]any, []any:
		default:
			return typeIssue(fmt.Sprintf("%s must be a JSON object or array", displayName(field)))
		}
	}

	return nil
}

func (e *Engine) matchesFormat(pattern string, value any) bool {
	str, ok := value.(string)
	if !ok {
		return false
	}

	matched, err := e.evaluator.MatchPattern(pattern, str)

	return err == nil && matched
}

func numericPayload(rule models.ValidationRule) (float64, error) {
	bound, ok := condition.ToNumber(rule.Value)
	if !ok {
		return 0, models.NewConfigError(
			"rule "+rule.ID, "%s rule requires a numeric payload, got %T", rule.Type, rule.Value)
	}

	return bound, nil
}

func messageOr(rule models.ValidationRule, fallback string) string {
	if rule.Message != "" {
		return rule.Message
	}

	return fallback
}

// lengthOf measures strings in runes and lists in elements.
func lengthOf(value any) (int, bool) {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v), true
	case []any:
		return len(v), true
	default:
		return 0, false
	}
}

// fileName extracts the name from a file reference value: either a plain
// string or an uploaded-file object with a "name" key.
func fileName(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case map[string]any:
		name, ok := v["name"].(string)

		return name, ok && name != ""
	default:
		return "", false
	}
}

// fileSize reads the size from an uploaded-file object.
func fileSize(value any) (float64, bool) {
	object, ok := value.(map[string]any)
	if !ok {
		return 0, false
	}

	return condition.ToNumber(object["size"])
}

// parseDate accepts time.Time values and the supported string layouts.
func parseDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}

	return time.Time{}, false
}
