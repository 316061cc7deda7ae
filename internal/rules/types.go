package rules

import "fmt"

type Status string

const (
	StatusNormal  Status = "Normal"
	StatusWarning Status = "Warning"
	StatusTrouble Status = "Trouble"
)

// Conditions lists the checklist conditions in display order.
var Conditions = []Status{StatusNormal, StatusWarning, StatusTrouble}

func (s Status) Valid() bool {
	switch s {
	case StatusNormal, StatusWarning, StatusTrouble:
		return true
	}
	return false
}

// Severity orders statuses for summaries; higher is worse.
func (s Status) Severity() int {
	switch s {
	case StatusNormal:
		return 0
	case StatusWarning:
		return 1
	case StatusTrouble:
		return 2
	}
	return -1
}

type OutOfRangePolicy string

const (
	OutOfRangeUnclassified OutOfRangePolicy = "unclassified"
	OutOfRangeClamp        OutOfRangePolicy = "clamp"
)

// ThresholdRule matches the closed interval [Min, Max].
type ThresholdRule struct {
	Min         float64 `yaml:"min" json:"min"`
	Max         float64 `yaml:"max" json:"max"`
	Status      Status  `yaml:"status" json:"status"`
	Advisory    string  `yaml:"advisory" json:"advisory"`
	Explanation string  `yaml:"explanation,omitempty" json:"explanation,omitempty"`
}

func (r ThresholdRule) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r ThresholdRule) String() string {
	return fmt.Sprintf("[%g, %g] %s", r.Min, r.Max, r.Status)
}

type Parameter struct {
	Name         string           `yaml:"name" json:"name"`
	Label        string           `yaml:"label,omitempty" json:"label,omitempty"`
	Unit         string           `yaml:"unit,omitempty" json:"unit,omitempty"`
	OutOfRange   OutOfRangePolicy `yaml:"out_of_range,omitempty" json:"outOfRange,omitempty"`
	AllowOverlap bool             `yaml:"allow_overlap,omitempty" json:"allowOverlap,omitempty"`
	Rules        []ThresholdRule  `yaml:"rules" json:"rules"`
}

func (p Parameter) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Name
}

type ConditionText struct {
	Description    string `yaml:"description" json:"description"`
	Recommendation string `yaml:"recommendation" json:"recommendation"`
}

type ChecklistItem struct {
	Equipment  string                   `yaml:"equipment" json:"equipment"`
	Conditions map[Status]ConditionText `yaml:"conditions" json:"conditions"`
}

type Fallback struct {
	Status         string `yaml:"status" json:"status"`
	Explanation    string `yaml:"explanation" json:"explanation"`
	Recommendation string `yaml:"recommendation" json:"recommendation"`
}

type Bundle struct {
	Version    string          `yaml:"version" json:"version"`
	Fallback   Fallback        `yaml:"fallback" json:"fallback"`
	Parameters []Parameter     `yaml:"parameters" json:"parameters"`
	Checklist  []ChecklistItem `yaml:"checklist" json:"checklist"`
}

func (b *Bundle) Parameter(name string) (Parameter, bool) {
	for _, p := range b.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

func (b *Bundle) ParameterNames() []string {
	names := make([]string, len(b.Parameters))
	for i, p := range b.Parameters {
		names[i] = p.Name
	}
	return names
}

func (b *Bundle) EquipmentNames() []string {
	names := make([]string, len(b.Checklist))
	for i, item := range b.Checklist {
		names[i] = item.Equipment
	}
	return names
}

type ErrorDetail struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
	Hint    string `json:"hint,omitempty"`
}

type ValidationError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details"`
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	d := e.Details[0]
	if len(e.Details) == 1 {
		return fmt.Sprintf("%s: %s %s", e.Message, d.Field, d.Problem)
	}
	return fmt.Sprintf("%s: %s %s (and %d more)", e.Message, d.Field, d.Problem, len(e.Details)-1)
}
