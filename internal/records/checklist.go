package records

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	tablestore "muxmonitor"
	"muxmonitor/internal/checklist"
)

const (
	ColChecklistDate     = "TANGGAL_CEKLIST"
	ColChecklistShift    = "JAM_CEKLIST"
	ColChecklistOperator = "OPERATOR_CEKLIST"
)

var DefaultShifts = []string{
	"Shift 1: 00.00 - 08.00",
	"Shift 2: 08:00 - 16.00",
	"Shift 3: 16:00-00.00",
}

func ConditionColumn(equipment string) string {
	return equipment + "_KONDISI"
}

func RecommendationColumn(equipment string) string {
	return equipment + "_REKOMENDASI"
}

// ChecklistSchema lays out the daily checklist log; the operator is part of the key
// so two operators on the same shift keep separate records. Rows stored before an
// item was added keep that item blank: no condition was assessed for it.
func ChecklistSchema(name string, equipment []string) Schema {
	cols := []string{ColChecklistDate, ColChecklistShift, ColChecklistOperator}
	for _, eq := range equipment {
		cols = append(cols, ConditionColumn(eq), RecommendationColumn(eq))
	}
	return Schema{
		Name:       name,
		Columns:    cols,
		Key:        []string{ColChecklistDate, ColChecklistShift, ColChecklistOperator},
		DateColumn: ColChecklistDate,
		Numeric:    map[string]bool{},
		Defaults:   map[string]string{},
	}
}

type ChecklistHeader struct {
	Date     string `json:"date"`
	Shift    string `json:"shift"`
	Operator string `json:"operator"`
}

type ChecklistLayout struct {
	Schema    Schema
	Shifts    []string
	Equipment []string
}

func NewChecklistLayout(table string, shifts, equipment []string) ChecklistLayout {
	if len(shifts) == 0 {
		shifts = DefaultShifts
	}
	return ChecklistLayout{Schema: ChecklistSchema(table, equipment), Shifts: shifts, Equipment: equipment}
}

// Assemble builds the checklist record from the header and a completed aggregation.
func (l ChecklistLayout) Assemble(h ChecklistHeader, agg checklist.Aggregation) (tablestore.Row, error) {
	fe := &FieldError{}
	row := tablestore.Row{}

	if strings.TrimSpace(h.Date) == "" {
		fe.missing(ColChecklistDate)
	} else if date, err := NormalizeDate(h.Date); err != nil {
		fe.invalid(ColChecklistDate, "is not a recognisable date")
	} else {
		row[ColChecklistDate] = date
	}

	shift := strings.TrimSpace(h.Shift)
	switch {
	case shift == "":
		fe.missing(ColChecklistShift)
	case !lo.Contains(l.Shifts, shift):
		fe.invalid(ColChecklistShift, "is not one of "+strings.Join(l.Shifts, ", "))
	default:
		row[ColChecklistShift] = shift
	}

	if op := strings.TrimSpace(h.Operator); op == "" {
		fe.missing(ColChecklistOperator)
	} else {
		row[ColChecklistOperator] = op
	}

	for _, eq := range l.Equipment {
		entry, ok := agg.Lookup(eq)
		if !ok {
			fe.missing(ConditionColumn(eq))
			continue
		}
		row[ConditionColumn(eq)] = string(entry.Condition)
		row[RecommendationColumn(eq)] = entry.Recommendation
	}

	if err := fe.orNil(); err != nil {
		return nil, err
	}
	return row, nil
}

var shiftStart = regexp.MustCompile(`(\d{1,2})[.:](\d{2})`)

// ShiftStart extracts the starting clock time of a shift label such as "Shift 2: 08:00 - 16.00".
func ShiftStart(shift string) (time.Duration, bool) {
	if i := strings.Index(shift, ":"); i >= 0 && strings.HasPrefix(strings.ToLower(strings.TrimSpace(shift)), "shift") {
		shift = shift[i+1:]
	}
	m := shiftStart.FindStringSubmatch(shift)
	if m == nil {
		return 0, false
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, true
}

// ChecklistTime combines the checklist date and shift start of a stored row.
func ChecklistTime(row tablestore.Row) (time.Time, bool) {
	day, err := ParseDate(row[ColChecklistDate])
	if err != nil {
		return time.Time{}, false
	}
	if start, ok := ShiftStart(row[ColChecklistShift]); ok {
		return day.Add(start), true
	}
	return day, true
}
