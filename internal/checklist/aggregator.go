package checklist

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"muxmonitor/internal/rules"
)

const placeholder = "N/A"

type Condition = rules.Status

// ParseCondition accepts the three condition names case-insensitively. Empty means Normal.
func ParseCondition(s string) (Condition, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return rules.StatusNormal, nil
	}
	for _, c := range rules.Conditions {
		if strings.EqualFold(trimmed, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown condition %q", s)
}

// ConfigurationError reports a checklist rule entry the aggregation needed but did not find.
type ConfigurationError struct {
	Equipment string
	Condition Condition
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no %s rule configured for %q", e.Condition, e.Equipment)
}

type Entry struct {
	Equipment      string    `json:"equipment"`
	Condition      Condition `json:"condition"`
	Description    string    `json:"description"`
	Recommendation string    `json:"recommendation"`
}

type Aggregation struct {
	Entries []Entry               `json:"entries"`
	Issues  []*ConfigurationError `json:"-"`
	Unknown []string              `json:"unknown,omitempty"`
}

func (a Aggregation) Lookup(equipment string) (Entry, bool) {
	for _, e := range a.Entries {
		if e.Equipment == equipment {
			return e, true
		}
	}
	return Entry{}, false
}

// Counts tallies entries per condition.
func (a Aggregation) Counts() map[Condition]int {
	out := map[Condition]int{}
	for _, e := range a.Entries {
		out[e.Condition]++
	}
	return out
}

// Attention lists the entries that are not Normal, in table order.
func (a Aggregation) Attention() []Entry {
	var out []Entry
	for _, e := range a.Entries {
		if e.Condition != rules.StatusNormal {
			out = append(out, e)
		}
	}
	return out
}

type Aggregator struct {
	items  []rules.ChecklistItem
	logger *slog.Logger
}

func NewAggregator(items []rules.ChecklistItem, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{items: items, logger: logger}
}

func (a *Aggregator) Equipment() []string {
	names := make([]string, len(a.items))
	for i, item := range a.items {
		names[i] = item.Equipment
	}
	return names
}

// Aggregate yields one entry per configured item in table order. Unselected items default to Normal.
// Missing rule text becomes "N/A" and is reported in Issues.
func (a *Aggregator) Aggregate(selections map[string]Condition) Aggregation {
	out := Aggregation{Entries: make([]Entry, 0, len(a.items))}
	known := make(map[string]struct{}, len(a.items))
	for _, item := range a.items {
		known[item.Equipment] = struct{}{}
		cond, ok := selections[item.Equipment]
		if !ok || cond == "" {
			cond = rules.StatusNormal
		}
		entry := Entry{Equipment: item.Equipment, Condition: cond}
		text, found := item.Conditions[cond]
		if !found || text.Description == "" || text.Recommendation == "" {
			cfgErr := &ConfigurationError{Equipment: item.Equipment, Condition: cond}
			out.Issues = append(out.Issues, cfgErr)
			a.logger.Warn("checklist rule missing", slog.String("equipment", item.Equipment), slog.String("condition", string(cond)))
		}
		entry.Description = orPlaceholder(text.Description)
		entry.Recommendation = orPlaceholder(text.Recommendation)
		out.Entries = append(out.Entries, entry)
	}
	for name := range selections {
		if _, ok := known[name]; !ok {
			out.Unknown = append(out.Unknown, name)
		}
	}
	sort.Strings(out.Unknown)
	return out
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
