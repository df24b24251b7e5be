package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Outcome is the result of one decision rule.
type Outcome string

const (
	OutcomePass          Outcome = "Pass"
	OutcomeFail          Outcome = "Fail"
	OutcomeIndeterminate Outcome = "Indeterminate" // a ratio denominator was zero
	OutcomeManual        Outcome = "Manual"        // input must be supplied by a reviewer
	OutcomeNotApplicable Outcome = "N/A"
)

// ValueKind tells which field of a Value is meaningful.
type ValueKind int

const (
	ValueEmpty ValueKind = iota
	ValueNumber
	ValueText
	ValueUndefined
)

// UndefinedMarker is written in place of a ratio whose denominator is zero.
const UndefinedMarker = "UNDEFINED"

// Value is the "actual value" cell of a rule row: a number, a text, nothing,
// or the undefined marker.
type Value struct {
	Kind   ValueKind
	Number decimal.Decimal
	Text   string
}

func NumberValue(d decimal.Decimal) Value { return Value{Kind: ValueNumber, Number: d} }
func TextValue(s string) Value            { return Value{Kind: ValueText, Text: s} }
func UndefinedValue() Value               { return Value{Kind: ValueUndefined, Text: UndefinedMarker} }

// String renders the value the way it appears in the report.
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return v.Number.String()
	case ValueText, ValueUndefined:
		return v.Text
	}
	return ""
}

// MarshalJSON emits numbers as JSON numbers and everything else as strings
// (or null when empty).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ValueNumber:
		return []byte(v.Number.String()), nil
	case ValueText, ValueUndefined:
		return json.Marshal(v.Text)
	}
	return []byte("null"), nil
}

// UnmarshalJSON is the inverse of MarshalJSON. The undefined marker string
// decodes back to an undefined value.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		*v = Value{}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == UndefinedMarker {
			*v = UndefinedValue()
		} else {
			*v = TextValue(s)
		}
		return nil
	}
	d, err := decimal.NewFromString(string(trimmed))
	if err != nil {
		return fmt.Errorf("rule value: %w", err)
	}
	*v = NumberValue(d)
	return nil
}

// Check is the comparison a rule applies to its actual value. Fallback is the
// outcome reported when the value is not of the comparable kind (a missing
// external input, or an undefined ratio).
type Check struct {
	Op        string          `json:"op"` // ">=", "<=", ">", "<", "="
	Threshold decimal.Decimal `json:"threshold"`
	Text      string          `json:"text,omitempty"` // threshold for "=" on text values
	Fallback  Outcome         `json:"fallback"`
}

// IsText reports whether the check compares text instead of numbers.
func (c Check) IsText() bool { return c.Op == "=" && c.Text != "" }

// RuleRow is one line of the decision table.
type RuleRow struct {
	Seq       int     `json:"seq"`
	Parameter string  `json:"parameter"`
	Criterion string  `json:"criterion"`
	Actual    Value   `json:"actual"`
	Outcome   Outcome `json:"outcome"`
	Check     *Check  `json:"check,omitempty"` // nil when the row has no pass/fail expression
}
