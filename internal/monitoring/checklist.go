package monitoring

import (
	"context"
	"time"

	"muxmonitor/internal/bus"
	"muxmonitor/internal/checklist"
	"muxmonitor/internal/records"
	"muxmonitor/internal/storage"
)

type ChecklistInput struct {
	records.ChecklistHeader
	// Conditions maps equipment name to Normal, Warning or Trouble. Unlisted items are Normal.
	Conditions map[string]string `json:"conditions"`
}

func (s *Service) aggregate(in ChecklistInput) (checklist.Aggregation, error) {
	selections := make(map[string]checklist.Condition, len(in.Conditions))
	fe := &records.FieldError{}
	for equipment, raw := range in.Conditions {
		cond, err := checklist.ParseCondition(raw)
		if err != nil {
			if fe.Invalid == nil {
				fe.Invalid = map[string]string{}
			}
			fe.Invalid[records.ConditionColumn(equipment)] = err.Error()
			continue
		}
		selections[equipment] = cond
	}
	if len(fe.Invalid) > 0 {
		return checklist.Aggregation{}, fe
	}
	agg := s.aggregator.Aggregate(selections)
	if len(agg.Unknown) > 0 {
		fe.Invalid = map[string]string{}
		for _, name := range agg.Unknown {
			fe.Invalid[records.ConditionColumn(name)] = "is not a configured checklist item"
		}
		return checklist.Aggregation{}, fe
	}
	return agg, nil
}

// PreviewChecklist resolves descriptions and recommendations without saving.
func (s *Service) PreviewChecklist(in ChecklistInput) (checklist.Aggregation, error) {
	return s.aggregate(in)
}

type ChecklistSaved struct {
	Table     string    `json:"table"`
	Key       string    `json:"key"`
	Date      string    `json:"date"`
	Shift     string    `json:"shift"`
	Operator  string    `json:"operator"`
	Attention int       `json:"attention"`
	Replaced  bool      `json:"replaced"`
	SavedAt   time.Time `json:"savedAt"`
}

// SaveChecklist persists one shift checklist. The same date, shift and operator
// replaces the earlier submission.
func (s *Service) SaveChecklist(ctx context.Context, in ChecklistInput) (SaveResult, error) {
	agg, err := s.aggregate(in)
	if err != nil {
		return SaveResult{}, err
	}
	row, err := s.checklist.Assemble(in.ChecklistHeader, agg)
	if err != nil {
		return SaveResult{}, err
	}
	res, err := s.save(ctx, s.checklist.Schema, row)
	if err != nil {
		return SaveResult{}, err
	}
	res.Checklist = &agg

	operator := row[records.ColChecklistOperator]
	attention := agg.Attention()
	findings := make([]storage.Finding, 0, len(attention))
	for _, e := range attention {
		findings = append(findings, storage.Finding{
			Subject:        e.Equipment,
			Value:          e.Description,
			Status:         string(e.Condition),
			Recommendation: e.Recommendation,
			Operator:       operator,
		})
	}
	s.recordFindings(ctx, res.Table, res.Key, findings)
	s.publish(bus.SubjectChecklistSaved, ChecklistSaved{
		Table:     res.Table,
		Key:       res.Key,
		Date:      row[records.ColChecklistDate],
		Shift:     row[records.ColChecklistShift],
		Operator:  operator,
		Attention: len(attention),
		Replaced:  res.Replaced,
		SavedAt:   time.Now().UTC(),
	})
	return res, nil
}
