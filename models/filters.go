package models

import (
	"fmt"
	"time"
)

// FilterKind tags the operand type a criterion carries
type FilterKind string

const (
	FilterKindText    FilterKind = "text"
	FilterKindNumeric FilterKind = "numeric"
	FilterKindDate    FilterKind = "date"
)

// FilterOperator is the comparison a criterion applies
type FilterOperator string

const (
	OpEqual   FilterOperator = "="
	OpGTE     FilterOperator = ">="
	OpLTE     FilterOperator = "<="
	OpIn      FilterOperator = "IN"
	OpRange   FilterOperator = "RANGE"   // numeric bounds, both inclusive
	OpBetween FilterOperator = "BETWEEN" // date bounds, both inclusive
)

// filterableFields maps an input field name to the column it may filter on.
// Anything not listed here is rejected at validation time.
var filterableFields = map[string]struct {
	Column string
	Kind   FilterKind
}{
	"geography":    {"c.geography", FilterKindText},
	"state":        {"c.state", FilterKindText},
	"city":         {"c.city", FilterKindText},
	"bucket":       {"c.bucket", FilterKindText},
	"agent_id":     {"ca.primary_agent_id", FilterKindNumeric},
	"allocated_at": {"ca.allocated_at", FilterKindDate},
}

// FilterCriterion is one typed filter condition. Operands live in the slot
// matching Kind; the other slots must be empty. Validate is called at
// construction (request decode) so evaluation never interprets loose maps.
type FilterCriterion struct {
	Field    string         `json:"field"`
	Kind     FilterKind     `json:"kind"`
	Operator FilterOperator `json:"operator"`

	TextValue  string   `json:"text_value,omitempty"`
	TextValues []string `json:"text_values,omitempty"` // IN

	NumericValue  *int64  `json:"numeric_value,omitempty"`  // single bound, or RANGE lower bound
	NumericValues []int64 `json:"numeric_values,omitempty"` // IN
	NumericTo     *int64  `json:"numeric_to,omitempty"`     // RANGE upper bound

	DateFrom *time.Time `json:"date_from,omitempty"` // BETWEEN lower bound, or single bound for >=, <=
	DateTo   *time.Time `json:"date_to,omitempty"`   // BETWEEN upper bound
}

// Validate checks the criterion is well-formed: known field, kind matching the
// field, operator legal for the kind, and operands present in the right slot.
func (f *FilterCriterion) Validate() error {
	spec, ok := filterableFields[f.Field]
	if !ok {
		return fmt.Errorf("unknown filter field %q", f.Field)
	}
	if f.Kind == "" {
		f.Kind = spec.Kind
	}
	if f.Kind != spec.Kind {
		return fmt.Errorf("field %q is %s, got kind %s", f.Field, spec.Kind, f.Kind)
	}

	switch f.Kind {
	case FilterKindText:
		switch f.Operator {
		case OpEqual:
			if f.TextValue == "" {
				return fmt.Errorf("field %q: operator = requires text_value", f.Field)
			}
		case OpIn:
			if len(f.TextValues) == 0 {
				return fmt.Errorf("field %q: operator IN requires text_values", f.Field)
			}
		default:
			return fmt.Errorf("field %q: operator %s not valid for text filters", f.Field, f.Operator)
		}
	case FilterKindNumeric:
		switch f.Operator {
		case OpEqual, OpGTE, OpLTE:
			if f.NumericValue == nil {
				return fmt.Errorf("field %q: operator %s requires numeric_value", f.Field, f.Operator)
			}
		case OpIn:
			if len(f.NumericValues) == 0 {
				return fmt.Errorf("field %q: operator IN requires numeric_values", f.Field)
			}
		case OpRange:
			if f.NumericValue == nil || f.NumericTo == nil {
				return fmt.Errorf("field %q: operator RANGE requires numeric_value and numeric_to", f.Field)
			}
			if *f.NumericTo < *f.NumericValue {
				return fmt.Errorf("field %q: numeric_to precedes numeric_value", f.Field)
			}
		default:
			return fmt.Errorf("field %q: operator %s not valid for numeric filters", f.Field, f.Operator)
		}
	case FilterKindDate:
		switch f.Operator {
		case OpGTE, OpLTE:
			if f.DateFrom == nil {
				return fmt.Errorf("field %q: operator %s requires date_from", f.Field, f.Operator)
			}
		case OpBetween:
			if f.DateFrom == nil || f.DateTo == nil {
				return fmt.Errorf("field %q: operator BETWEEN requires date_from and date_to", f.Field)
			}
			if f.DateTo.Before(*f.DateFrom) {
				return fmt.Errorf("field %q: date_to precedes date_from", f.Field)
			}
		default:
			return fmt.Errorf("field %q: operator %s not valid for date filters", f.Field, f.Operator)
		}
	default:
		return fmt.Errorf("unknown filter kind %q", f.Kind)
	}
	return nil
}

// Column returns the SQL column the criterion filters on. Validate must have
// succeeded first.
func (f *FilterCriterion) Column() string {
	return filterableFields[f.Field].Column
}

// SQL renders the criterion as a WHERE fragment with placeholder args.
func (f *FilterCriterion) SQL() (string, []interface{}) {
	col := f.Column()
	switch f.Operator {
	case OpIn:
		var args []interface{}
		var marks string
		if f.Kind == FilterKindText {
			for i, v := range f.TextValues {
				if i > 0 {
					marks += ", "
				}
				marks += "?"
				args = append(args, v)
			}
		} else {
			for i, v := range f.NumericValues {
				if i > 0 {
					marks += ", "
				}
				marks += "?"
				args = append(args, v)
			}
		}
		return fmt.Sprintf("%s IN (%s)", col, marks), args
	case OpRange:
		return fmt.Sprintf("%s BETWEEN ? AND ?", col), []interface{}{*f.NumericValue, *f.NumericTo}
	case OpBetween:
		return fmt.Sprintf("%s BETWEEN ? AND ?", col), []interface{}{*f.DateFrom, *f.DateTo}
	case OpGTE, OpLTE:
		if f.Kind == FilterKindDate {
			return fmt.Sprintf("%s %s ?", col, f.Operator), []interface{}{*f.DateFrom}
		}
		return fmt.Sprintf("%s %s ?", col, f.Operator), []interface{}{*f.NumericValue}
	default: // OpEqual
		if f.Kind == FilterKindNumeric {
			return fmt.Sprintf("%s = ?", col), []interface{}{*f.NumericValue}
		}
		return fmt.Sprintf("%s = ?", col), []interface{}{f.TextValue}
	}
}

// ValidateFilters validates a filter list and rejects empty sets, which would
// otherwise match every allocated case.
func ValidateFilters(filters []FilterCriterion) error {
	if len(filters) == 0 {
		return fmt.Errorf("at least one filter criterion is required")
	}
	for i := range filters {
		if err := filters[i].Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i+1, err)
		}
	}
	return nil
}
