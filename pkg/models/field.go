package models

// FieldType is the declared type of a form or decision-context field.
type FieldType string

const (
	FieldTypeText        FieldType = "text"
	FieldTypeNumber      FieldType = "number"
	FieldTypeBoolean     FieldType = "boolean"
	FieldTypeDate        FieldType = "date"
	FieldTypeSelect      FieldType = "select"
	FieldTypeMultiSelect FieldType = "multiselect"
	FieldTypeFile        FieldType = "file"
	FieldTypeJSON        FieldType = "json"
)

// Valid reports whether the field type is a member of the closed set.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeBoolean, FieldTypeDate,
		FieldTypeSelect, FieldTypeMultiSelect, FieldTypeFile, FieldTypeJSON:
		return true
	}

	return false
}

// Field is a named, typed slot in a form or decision context. Fields are
// defined at configuration time and immutable during one evaluation pass.
type Field struct {
	ID       string    `json:"id"                 validate:"required"`
	Name     string    `json:"name"               validate:"required"`
	Type     FieldType `json:"type"               validate:"required"`
	Required bool      `json:"required,omitempty"`
	Disabled bool      `json:"disabled,omitempty"`
	// ShowConditions gate whether the field participates in validation at
	// all; a field whose show conditions evaluate false is skipped entirely.
	ShowConditions []Condition      `json:"show_conditions,omitempty" validate:"omitempty,dive"`
	Rules          []ValidationRule `json:"rules,omitempty"           validate:"omitempty,dive"`
	// Options constrains select and multiselect values.
	Options []string `json:"options,omitempty"`
	// ComplianceRequired opts the field into registered framework checks.
	ComplianceRequired bool           `json:"compliance_required,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}
