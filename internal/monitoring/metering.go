package monitoring

import (
	"context"
	"time"

	"muxmonitor/internal/bus"
	"muxmonitor/internal/classify"
	"muxmonitor/internal/records"
	"muxmonitor/internal/storage"
)

type Report struct {
	Results  []classify.Result `json:"results"`
	Worst    classify.Status   `json:"worst"`
	Findings int               `json:"findings"`
}

func newReport(results []classify.Result) Report {
	r := Report{Results: results, Worst: classify.Worst(results)}
	for _, res := range results {
		if res.Status.Finding() {
			r.Findings++
		}
	}
	return r
}

// Classify builds a report for arbitrary readings.
func (s *Service) Classify(readings []classify.Reading) Report {
	return newReport(s.classifier.ClassifyAll(readings))
}

// PreviewMetering classifies the form's readings without touching the store.
func (s *Service) PreviewMetering(in records.MeteringInput) (Report, error) {
	if _, err := in.ResolvedVSWR(); err != nil {
		return Report{}, err
	}
	return newReport(s.classifier.ClassifyAll(in.Readings())), nil
}

type MeteringSaved struct {
	Table    string          `json:"table"`
	Key      string          `json:"key"`
	Date     string          `json:"date"`
	Slot     string          `json:"slot"`
	Operator string          `json:"operator"`
	Worst    classify.Status `json:"worst"`
	Replaced bool            `json:"replaced"`
	SavedAt  time.Time       `json:"savedAt"`
}

// SaveMetering validates, merges and persists one slot record. A record with the
// same date and slot as an existing row replaces it.
func (s *Service) SaveMetering(ctx context.Context, in records.MeteringInput) (SaveResult, error) {
	row, err := s.metering.Assemble(in)
	if err != nil {
		return SaveResult{}, err
	}
	report := newReport(s.classifier.ClassifyAll(in.Readings()))

	res, err := s.save(ctx, s.metering.Schema, row)
	if err != nil {
		return SaveResult{}, err
	}
	res.Report = &report

	operator := row[records.ColOperator]
	var findings []storage.Finding
	for _, r := range report.Results {
		if !r.Status.Finding() {
			continue
		}
		findings = append(findings, storage.Finding{
			Subject:        r.Label,
			Value:          records.FormatNumber(r.Value),
			Status:         string(r.Status),
			Recommendation: r.Recommendation,
			Operator:       operator,
		})
	}
	s.recordFindings(ctx, res.Table, res.Key, findings)
	s.publish(bus.SubjectMeteringSaved, MeteringSaved{
		Table:    res.Table,
		Key:      res.Key,
		Date:     row[records.ColDate],
		Slot:     row[records.ColSlot],
		Operator: operator,
		Worst:    report.Worst,
		Replaced: res.Replaced,
		SavedAt:  time.Now().UTC(),
	})
	return res, nil
}
