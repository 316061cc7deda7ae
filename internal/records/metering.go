package records

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	tablestore "muxmonitor"
	"muxmonitor/internal/classify"
)

const (
	ColDate      = "TANGGAL"
	ColSlot      = "WAKTU"
	ColPower     = "POWER OUTPUT (WATT)"
	ColVSWR      = "VSWR"
	ColCN        = "C/N (dB)"
	ColMargin    = "MARGIN (dB)"
	ColVoltageR  = "TEGANGAN LISTRIK R (Volt)"
	ColVoltageS  = "TEGANGAN LISTRIK S (Volt)"
	ColVoltageT  = "TEGANGAN LISTRIK T (Volt)"
	ColTxTemp    = "SUHU TX"
	ColAVQuality = "KUALITAS AUDIO / VIDEO"
	ColOperator  = "OPERATOR"
	ColNote      = "CATATAN/KETERANGAN"

	ChannelOK = "OK"
	ChannelNO = "NO"

	AVOK = "A/V OK"
	AVNO = "A/V NO"
)

// Parameter names the metering form feeds to the classifier.
const (
	ParamPower   = "power_output"
	ParamVSWR    = "vswr"
	ParamCN      = "cn"
	ParamMargin  = "margin"
	ParamVoltage = "voltage"
	ParamTxTemp  = "tx_temperature"
)

var DefaultSlots = []string{"02:00", "06:00", "10:00", "14:00", "18:00", "22:00"}

var DefaultChannels = []string{
	"NET TV", "RTV", "JAMBI TV", "JEK TV", "SINPO TV",
	"TVRI NASIONAL", "TVRI WORLD", "TVRI SPORT", "TVRI JAMBI",
}

func BitrateColumn(channel string) string {
	return "Bitrate " + channel
}

// MeteringSchema lays out the metering log for the given channel list.
func MeteringSchema(name string, channels []string) Schema {
	cols := []string{ColDate, ColSlot, ColPower, ColVSWR, ColCN, ColMargin, ColVoltageR, ColVoltageS, ColVoltageT, ColTxTemp}
	for _, ch := range channels {
		cols = append(cols, ch, BitrateColumn(ch))
	}
	cols = append(cols, ColAVQuality, ColOperator, ColNote)
	numeric := map[string]bool{}
	for _, c := range []string{ColPower, ColVSWR, ColCN, ColMargin, ColVoltageR, ColVoltageS, ColVoltageT, ColTxTemp} {
		numeric[c] = true
	}
	for _, ch := range channels {
		numeric[BitrateColumn(ch)] = true
	}
	return Schema{
		Name:       name,
		Columns:    cols,
		Key:        []string{ColDate, ColSlot},
		DateColumn: ColDate,
		Numeric:    numeric,
		Defaults:   map[string]string{},
	}
}

type ChannelReading struct {
	Name    string   `json:"name"`
	Status  string   `json:"status"`
	Bitrate *float64 `json:"bitrate,omitempty"`
}

// MeteringInput is one slot's operator form. ReflectedPower is used to derive VSWR
// when VSWR itself is not given.
type MeteringInput struct {
	Date           string           `json:"date"`
	Slot           string           `json:"slot"`
	Power          *float64         `json:"power"`
	ReflectedPower *float64         `json:"reflectedPower,omitempty"`
	VSWR           *float64         `json:"vswr"`
	CN             *float64         `json:"cn"`
	Margin         *float64         `json:"margin"`
	VoltageR       *float64         `json:"voltageR"`
	VoltageS       *float64         `json:"voltageS"`
	VoltageT       *float64         `json:"voltageT"`
	TxTemperature  *float64         `json:"txTemperature"`
	Channels       []ChannelReading `json:"channels,omitempty"`
	AVQuality      string           `json:"avQuality,omitempty"`
	Operator       string           `json:"operator"`
	Note           string           `json:"note,omitempty"`
}

// ResolvedVSWR returns the entered VSWR or the one derived from forward and reflected power.
func (in MeteringInput) ResolvedVSWR() (*float64, error) {
	if in.VSWR != nil {
		return in.VSWR, nil
	}
	if in.Power == nil || in.ReflectedPower == nil {
		return nil, nil
	}
	v, err := classify.VSWR(*in.Power, *in.ReflectedPower)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Readings lists the classifiable values present on the form, in report order.
func (in MeteringInput) Readings() []classify.Reading {
	vswr, _ := in.ResolvedVSWR()
	var out []classify.Reading
	add := func(name, label string, v *float64) {
		if v != nil && !math.IsInf(*v, 0) {
			out = append(out, classify.Reading{Name: name, Label: label, Value: *v})
		}
	}
	add(ParamPower, "Power Output (Watt)", in.Power)
	add(ParamVSWR, "VSWR", vswr)
	add(ParamCN, "C/N (dB)", in.CN)
	add(ParamMargin, "Margin (dB)", in.Margin)
	add(ParamVoltage, "Tegangan R (Volt)", in.VoltageR)
	add(ParamVoltage, "Tegangan S (Volt)", in.VoltageS)
	add(ParamVoltage, "Tegangan T (Volt)", in.VoltageT)
	add(ParamTxTemp, "Suhu TX (°C)", in.TxTemperature)
	return out
}

type MeteringLayout struct {
	Schema   Schema
	Slots    []string
	Channels []string
}

func NewMeteringLayout(table string, slots, channels []string) MeteringLayout {
	if len(slots) == 0 {
		slots = DefaultSlots
	}
	if len(channels) == 0 {
		channels = DefaultChannels
	}
	return MeteringLayout{Schema: MeteringSchema(table, channels), Slots: slots, Channels: channels}
}

// Assemble validates the form and builds the complete metering record.
func (l MeteringLayout) Assemble(in MeteringInput) (tablestore.Row, error) {
	fe := &FieldError{}
	row := tablestore.Row{}

	if strings.TrimSpace(in.Date) == "" {
		fe.missing(ColDate)
	} else if date, err := NormalizeDate(in.Date); err != nil {
		fe.invalid(ColDate, "is not a recognisable date")
	} else {
		row[ColDate] = date
	}

	slot := strings.TrimSpace(in.Slot)
	switch {
	case slot == "":
		fe.missing(ColSlot)
	case !lo.Contains(l.Slots, slot):
		fe.invalid(ColSlot, "is not one of "+strings.Join(l.Slots, ", "))
	default:
		row[ColSlot] = slot
	}

	vswr, vswrErr := in.ResolvedVSWR()
	if vswrErr != nil {
		fe.invalid(ColVSWR, vswrErr.Error())
	} else if vswr != nil && math.IsInf(*vswr, 1) {
		fe.invalid(ColVSWR, "is infinite (reflected power not below forward power)")
	}

	numbers := []struct {
		col string
		v   *float64
	}{
		{ColPower, in.Power}, {ColVSWR, vswr}, {ColCN, in.CN}, {ColMargin, in.Margin},
		{ColVoltageR, in.VoltageR}, {ColVoltageS, in.VoltageS}, {ColVoltageT, in.VoltageT},
		{ColTxTemp, in.TxTemperature},
	}
	for _, n := range numbers {
		if n.v == nil {
			if n.col != ColVSWR || vswrErr == nil {
				fe.missing(n.col)
			}
			continue
		}
		if math.IsNaN(*n.v) {
			fe.invalid(n.col, "is not a number")
			continue
		}
		row[n.col] = FormatNumber(*n.v)
	}

	given := map[string]ChannelReading{}
	for _, ch := range in.Channels {
		name := strings.TrimSpace(ch.Name)
		if !lo.Contains(l.Channels, name) {
			fe.invalid(name, "is not a configured channel")
			continue
		}
		given[name] = ch
	}
	for _, name := range l.Channels {
		ch, ok := given[name]
		row[name] = ""
		row[BitrateColumn(name)] = ""
		if !ok {
			continue
		}
		status := strings.ToUpper(strings.TrimSpace(ch.Status))
		if status != "" && status != ChannelOK && status != ChannelNO {
			fe.invalid(name, "status must be OK or NO")
		} else {
			row[name] = status
		}
		if ch.Bitrate != nil {
			if math.IsNaN(*ch.Bitrate) || *ch.Bitrate < 0 {
				fe.invalid(BitrateColumn(name), "must be a non-negative number")
			} else {
				row[BitrateColumn(name)] = FormatNumber(*ch.Bitrate)
			}
		}
	}

	av := strings.TrimSpace(in.AVQuality)
	if av == "" {
		av = AVOK
	}
	switch {
	case strings.EqualFold(av, AVOK):
		row[ColAVQuality] = AVOK
	case strings.EqualFold(av, AVNO):
		row[ColAVQuality] = AVNO
	default:
		fe.invalid(ColAVQuality, "must be "+AVOK+" or "+AVNO)
	}

	if op := strings.TrimSpace(in.Operator); op == "" {
		fe.missing(ColOperator)
	} else {
		row[ColOperator] = op
	}
	row[ColNote] = strings.TrimSpace(in.Note)

	if err := fe.orNil(); err != nil {
		return nil, err
	}
	return row, nil
}

// FormatNumber renders v without trailing zeros.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseNumber reads a stored numeric cell, tolerating a decimal comma.
func ParseNumber(s string) (float64, bool) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MeteringTime combines TANGGAL and WAKTU of a stored row.
func MeteringTime(row tablestore.Row) (time.Time, bool) {
	day, err := ParseDate(row[ColDate])
	if err != nil {
		return time.Time{}, false
	}
	clock, err := time.Parse("15:04", strings.TrimSpace(row[ColSlot]))
	if err != nil {
		return day, true
	}
	return day.Add(time.Duration(clock.Hour())*time.Hour + time.Duration(clock.Minute())*time.Minute), true
}
