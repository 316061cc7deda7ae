package classify

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/agnivade/levenshtein"

	"muxmonitor/internal/rules"
)

type Status string

const (
	StatusNormal       = Status(rules.StatusNormal)
	StatusWarning      = Status(rules.StatusWarning)
	StatusTrouble      = Status(rules.StatusTrouble)
	StatusUnclassified Status = "Unclassified"
)

// Display is the text shown to operators; unclassified renders as the fallback label.
func (s Status) Display(fallback string) string {
	if s == StatusUnclassified {
		return fallback
	}
	return string(s)
}

func (s Status) Finding() bool {
	return s == StatusWarning || s == StatusTrouble
}

type Reading struct {
	Name  string  `json:"name"`
	Label string  `json:"label,omitempty"`
	Value float64 `json:"value"`
}

type Result struct {
	Parameter      string  `json:"parameter"`
	Label          string  `json:"label"`
	Value          float64 `json:"value"`
	Status         Status  `json:"status"`
	StatusText     string  `json:"statusText"`
	Explanation    string  `json:"explanation"`
	Recommendation string  `json:"recommendation"`
}

// Classifier matches readings against a validated rule bundle. It holds no mutable state.
type Classifier struct {
	bundle *rules.Bundle
	logger *slog.Logger
}

func New(bundle *rules.Bundle, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{bundle: bundle, logger: logger}
}

func (c *Classifier) Bundle() *rules.Bundle {
	return c.bundle
}

// Classify returns the first rule in configured order whose closed interval holds value.
// Unknown parameters and unmatched values produce an Unclassified result, never an error.
func (c *Classifier) Classify(name string, value float64) Result {
	return c.classify(Reading{Name: name, Value: value})
}

func (c *Classifier) ClassifyAll(readings []Reading) []Result {
	out := make([]Result, 0, len(readings))
	for _, r := range readings {
		out = append(out, c.classify(r))
	}
	return out
}

func (c *Classifier) classify(r Reading) Result {
	param, ok := c.bundle.Parameter(r.Name)
	label := r.Label
	if label == "" {
		label = r.Name
		if ok {
			label = param.DisplayLabel()
		}
	}
	if !ok {
		res := c.unclassified(r.Name, label, r.Value)
		hint := c.closest(r.Name)
		if hint != "" {
			res.Explanation = fmt.Sprintf("Parameter %q tidak dikenal, mungkin maksudnya %q", r.Name, hint)
		}
		c.logger.Warn("unknown parameter", slog.String("parameter", r.Name), slog.String("closest", hint))
		return res
	}
	if math.IsNaN(r.Value) {
		return c.unclassified(r.Name, label, r.Value)
	}
	for _, rule := range param.Rules {
		if rule.Contains(r.Value) {
			return c.matched(param, label, r.Value, rule)
		}
	}
	if param.OutOfRange == rules.OutOfRangeClamp {
		if rule, ok := clampRule(param, r.Value); ok {
			return c.matched(param, label, r.Value, rule)
		}
	}
	c.logger.Warn("value outside configured ranges", slog.String("parameter", r.Name), slog.Float64("value", r.Value))
	return c.unclassified(r.Name, label, r.Value)
}

func (c *Classifier) matched(p rules.Parameter, label string, value float64, rule rules.ThresholdRule) Result {
	explanation := rule.Explanation
	if explanation == "" {
		explanation = fmt.Sprintf("%s dalam rentang %g - %g", label, rule.Min, rule.Max)
	}
	return Result{
		Parameter:      p.Name,
		Label:          label,
		Value:          value,
		Status:         Status(rule.Status),
		StatusText:     string(rule.Status),
		Explanation:    explanation,
		Recommendation: rule.Advisory,
	}
}

func (c *Classifier) unclassified(name, label string, value float64) Result {
	return Result{
		Parameter:      name,
		Label:          label,
		Value:          value,
		Status:         StatusUnclassified,
		StatusText:     c.bundle.Fallback.Status,
		Explanation:    c.bundle.Fallback.Explanation,
		Recommendation: c.bundle.Fallback.Recommendation,
	}
}

// clampRule picks the rule at the nearest outer boundary. Values inside a gap are not clamped.
func clampRule(p rules.Parameter, value float64) (rules.ThresholdRule, bool) {
	if len(p.Rules) == 0 {
		return rules.ThresholdRule{}, false
	}
	low, high := p.Rules[0], p.Rules[0]
	for _, r := range p.Rules[1:] {
		if r.Min < low.Min {
			low = r
		}
		if r.Max > high.Max {
			high = r
		}
	}
	switch {
	case value < low.Min:
		return low, true
	case value > high.Max:
		return high, true
	}
	return rules.ThresholdRule{}, false
}

func (c *Classifier) closest(name string) string {
	best, bestDist := "", -1
	for _, p := range c.bundle.Parameters {
		for _, candidate := range []string{p.Name, p.Label} {
			if candidate == "" {
				continue
			}
			d := levenshtein.ComputeDistance(name, candidate)
			if bestDist < 0 || d < bestDist {
				best, bestDist = p.Name, d
			}
		}
	}
	if bestDist < 0 || bestDist > len(name)/2+1 {
		return ""
	}
	return best
}

// Worst returns the most severe classified status in results.
func Worst(results []Result) Status {
	worst := StatusNormal
	for _, r := range results {
		if rules.Status(r.Status).Severity() > rules.Status(worst).Severity() {
			worst = r.Status
		}
	}
	return worst
}
