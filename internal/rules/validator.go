package rules

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validate checks the bundle once at startup. Every problem is reported, not just the first.
func Validate(b *Bundle) error {
	var details []ErrorDetail
	if b == nil {
		return &ValidationError{Code: "RULES_INVALID", Message: "rule bundle failed validation", Details: []ErrorDetail{{Field: "bundle", Problem: "missing"}}}
	}
	if len(b.Parameters) == 0 {
		details = append(details, ErrorDetail{Field: "parameters", Problem: "missing", Hint: "Configure at least one parameter"})
	}
	seen := map[string]struct{}{}
	for i, p := range b.Parameters {
		field := fmt.Sprintf("parameters[%d]", i)
		name := strings.TrimSpace(p.Name)
		if name == "" {
			details = append(details, ErrorDetail{Field: field + ".name", Problem: "missing"})
		} else if _, dup := seen[name]; dup {
			details = append(details, ErrorDetail{Field: field + ".name", Problem: "duplicate", Hint: name})
		}
		seen[name] = struct{}{}
		if p.OutOfRange != OutOfRangeUnclassified && p.OutOfRange != OutOfRangeClamp {
			details = append(details, ErrorDetail{Field: field + ".out_of_range", Problem: "invalid", Hint: "Use unclassified or clamp"})
		}
		if len(p.Rules) == 0 {
			details = append(details, ErrorDetail{Field: field + ".rules", Problem: "missing", Hint: "Provide at least one range"})
		}
		for j, r := range p.Rules {
			rf := fmt.Sprintf("%s.rules[%d]", field, j)
			if math.IsNaN(r.Min) || math.IsNaN(r.Max) || r.Min > r.Max {
				details = append(details, ErrorDetail{Field: rf, Problem: "invalid interval", Hint: "min must be <= max"})
			}
			if !r.Status.Valid() {
				details = append(details, ErrorDetail{Field: rf + ".status", Problem: "invalid", Hint: "Use Normal, Warning or Trouble"})
			}
			if strings.TrimSpace(r.Advisory) == "" {
				details = append(details, ErrorDetail{Field: rf + ".advisory", Problem: "missing"})
			}
		}
		if !p.AllowOverlap {
			for _, pair := range Overlaps(p) {
				details = append(details, ErrorDetail{
					Field:   field + ".rules",
					Problem: "overlap",
					Hint:    fmt.Sprintf("%s overlaps %s; set allow_overlap to rely on rule order", p.Rules[pair[0]], p.Rules[pair[1]]),
				})
			}
		}
	}

	items := map[string]struct{}{}
	for i, item := range b.Checklist {
		field := fmt.Sprintf("checklist[%d]", i)
		name := strings.TrimSpace(item.Equipment)
		if name == "" {
			details = append(details, ErrorDetail{Field: field + ".equipment", Problem: "missing"})
		} else if _, dup := items[name]; dup {
			details = append(details, ErrorDetail{Field: field + ".equipment", Problem: "duplicate", Hint: name})
		}
		items[name] = struct{}{}
		for _, cond := range Conditions {
			text, ok := item.Conditions[cond]
			cf := fmt.Sprintf("%s.conditions.%s", field, cond)
			if !ok {
				details = append(details, ErrorDetail{Field: cf, Problem: "missing"})
				continue
			}
			if strings.TrimSpace(text.Description) == "" || strings.TrimSpace(text.Recommendation) == "" {
				details = append(details, ErrorDetail{Field: cf, Problem: "empty text"})
			}
		}
		for cond := range item.Conditions {
			if !cond.Valid() {
				details = append(details, ErrorDetail{Field: fmt.Sprintf("%s.conditions.%s", field, cond), Problem: "unknown condition"})
			}
		}
	}

	if len(details) > 0 {
		return &ValidationError{Code: "RULES_INVALID", Message: "rule bundle failed validation", Details: details}
	}
	return nil
}

// Overlaps returns index pairs of rules whose closed intervals intersect.
func Overlaps(p Parameter) [][2]int {
	idx := make([]int, len(p.Rules))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p.Rules[idx[a]].Min < p.Rules[idx[b]].Min })
	var out [][2]int
	for a := 0; a < len(idx); a++ {
		for b := a + 1; b < len(idx); b++ {
			ra, rb := p.Rules[idx[a]], p.Rules[idx[b]]
			if rb.Min > ra.Max {
				break
			}
			lo, hi := idx[a], idx[b]
			if lo > hi {
				lo, hi = hi, lo
			}
			out = append(out, [2]int{lo, hi})
		}
	}
	return out
}

// Gaps returns the uncovered stretches between the lowest Min and highest Max.
// Values falling in a gap classify as unclassified.
func Gaps(p Parameter) [][2]float64 {
	if len(p.Rules) == 0 {
		return nil
	}
	sorted := append([]ThresholdRule(nil), p.Rules...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Min < sorted[b].Min })
	var gaps [][2]float64
	reach := sorted[0].Max
	for _, r := range sorted[1:] {
		if r.Min > reach {
			gaps = append(gaps, [2]float64{reach, r.Min})
		}
		if r.Max > reach {
			reach = r.Max
		}
	}
	return gaps
}
