package records

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const DateLayout = "2006-01-02"

var (
	ErrMissingRequiredField = errors.New("missing required field")
	ErrInvalidField         = errors.New("invalid field value")
	ErrInvalidRange         = errors.New("start date is after end date")
)

// FieldError lists every missing or invalid input field of one save attempt.
type FieldError struct {
	Missing []string          `json:"missing,omitempty"`
	Invalid map[string]string `json:"invalid,omitempty"`
}

func (e *FieldError) Error() string {
	parts := []string{}
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	fields := make([]string, 0, len(e.Invalid))
	for field := range e.Invalid {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s %s", field, e.Invalid[field]))
	}
	return "record rejected: " + strings.Join(parts, "; ")
}

func (e *FieldError) Unwrap() []error {
	var errs []error
	if len(e.Missing) > 0 {
		errs = append(errs, ErrMissingRequiredField)
	}
	if len(e.Invalid) > 0 {
		errs = append(errs, ErrInvalidField)
	}
	return errs
}

func (e *FieldError) missing(field string) {
	e.Missing = append(e.Missing, field)
}

func (e *FieldError) invalid(field, problem string) {
	if e.Invalid == nil {
		e.Invalid = map[string]string{}
	}
	e.Invalid[field] = problem
}

func (e *FieldError) orNil() error {
	if len(e.Missing) == 0 && len(e.Invalid) == 0 {
		return nil
	}
	return e
}

// Schema is the fixed ordered column layout of one table kind.
type Schema struct {
	Name       string
	Columns    []string
	Key        []string
	DateColumn string
	Numeric    map[string]bool
	Defaults   map[string]string
}

// Default is the fill value for an absent field. Never null.
func (s Schema) Default(col string) string {
	if v, ok := s.Defaults[col]; ok {
		return v
	}
	return ""
}

func (s Schema) Has(col string) bool {
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

func (s Schema) IsNumeric(col string) bool {
	return s.Numeric[col]
}

// NormalizeDate renders any recognisable date as YYYY-MM-DD.
func NormalizeDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("date is empty")
	}
	if t, err := time.Parse(DateLayout, trimmed); err == nil {
		return t.Format(DateLayout), nil
	}
	t, err := dateparse.ParseIn(trimmed, time.UTC)
	if err != nil {
		return "", fmt.Errorf("unrecognised date %q: %w", raw, err)
	}
	return t.Format(DateLayout), nil
}

// ParseDate parses a canonical or recognisable date in UTC.
func ParseDate(raw string) (time.Time, error) {
	norm, err := NormalizeDate(raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(DateLayout, norm)
}

func canonicalDate(raw string) string {
	if norm, err := NormalizeDate(raw); err == nil {
		return norm
	}
	return strings.TrimSpace(raw)
}
