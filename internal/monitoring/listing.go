package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/samber/lo"

	tablestore "muxmonitor"
	"muxmonitor/internal/records"
)

// LoadTable reads a table for display, aligned to its schema. Store failures
// degrade to an empty table and are only logged.
func (s *Service) LoadTable(ctx context.Context, kind Kind) (tablestore.Table, error) {
	schema, err := s.Schema(kind)
	if err != nil {
		return tablestore.Table{}, err
	}
	readCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	table, err := s.store.ReadTable(readCtx, schema.Name)
	if err != nil {
		if !errors.Is(err, tablestore.ErrTableNotFound) {
			s.logger.Warn("table unreadable, showing empty listing", slog.String("table", schema.Name), slog.String("error", err.Error()))
		}
		table = tablestore.Table{Name: schema.Name}
	}
	return records.Align(schema, table), nil
}

// ListMetering returns the most recent metering rows, newest first. limit <= 0 returns all.
func (s *Service) ListMetering(ctx context.Context, limit int) (tablestore.Table, error) {
	table, err := s.LoadTable(ctx, KindMetering)
	if err != nil {
		return table, err
	}
	records.SortByTime(table.Rows, records.MeteringTime, true)
	if limit > 0 && len(table.Rows) > limit {
		table.Rows = table.Rows[:limit]
	}
	return table, nil
}

// ListChecklist returns every checklist row, newest date and shift first.
func (s *Service) ListChecklist(ctx context.Context) (tablestore.Table, error) {
	table, err := s.LoadTable(ctx, KindChecklist)
	if err != nil {
		return table, err
	}
	records.SortByTime(table.Rows, records.ChecklistTime, true)
	return table, nil
}

type SeriesPoint struct {
	Time   time.Time          `json:"time"`
	Values map[string]float64 `json:"values"`
}

// SeriesColumns are the metering columns charted when no parameter is requested.
var SeriesColumns = []string{
	records.ColPower, records.ColVSWR, records.ColCN, records.ColMargin,
	records.ColVoltageR, records.ColVoltageS, records.ColVoltageT, records.ColTxTemp,
}

// MeteringSeries returns chart points for the inclusive date range, oldest first.
// Cells that are empty or not numeric are left out of a point.
func (s *Service) MeteringSeries(ctx context.Context, from, to time.Time, columns []string) ([]SeriesPoint, error) {
	from, to = truncateDay(from), truncateDay(to)
	if from.After(to) {
		return nil, records.ErrInvalidRange
	}
	if len(columns) == 0 {
		columns = SeriesColumns
	}
	schema := s.metering.Schema
	for _, col := range columns {
		if !schema.IsNumeric(col) {
			return nil, fmt.Errorf("%w: %q is not a numeric metering column", records.ErrInvalidField, col)
		}
	}
	table, err := s.LoadTable(ctx, KindMetering)
	if err != nil {
		return nil, err
	}
	points := lo.FilterMap(table.Rows, func(row tablestore.Row, _ int) (SeriesPoint, bool) {
		at, ok := records.MeteringTime(row)
		if !ok {
			return SeriesPoint{}, false
		}
		day := truncateDay(at)
		if day.Before(from) || day.After(to) {
			return SeriesPoint{}, false
		}
		p := SeriesPoint{Time: at, Values: map[string]float64{}}
		for _, col := range columns {
			if v, ok := records.ParseNumber(row[col]); ok {
				p.Values[col] = v
			}
		}
		return p, true
	})
	sort.SliceStable(points, func(i, j int) bool { return points[i].Time.Before(points[j].Time) })
	return points, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
