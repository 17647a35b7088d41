package features

import (
	"errors"
	"strings"
	"time"
)

// ErrUnparseableDate is returned by CheckDate for a non-empty value that no
// known layout accepts.
var ErrUnparseableDate = errors.New("unparseable date")

// BaseDate is the reference point of the date feature.
var BaseDate = time.Date(1995, time.January, 1, 0, 0, 0, 0, time.UTC)

const secondsPerDay = 24 * 60 * 60

// Ambiguous numeric forms are read month first.
var dateLayouts = []string{
	"2006-1-2",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006/1/2",
	"2006/1/2 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04:05",
	"1.2.2006",
	"20060102",
	"January 2, 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"January 2006",
	"Jan 2006",
	"2006-1",
	"2006/1",
	"2006",
}

// ParseDate parses raw permissively. Values carrying a zone are converted to
// UTC; values without one are taken as UTC.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// CheckDate accepts empty values and anything ParseDate understands.
func CheckDate(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if _, ok := ParseDate(raw); !ok {
		return ErrUnparseableDate
	}
	return nil
}

// DayOffset returns the signed number of days between base and ts,
// including the fraction of a day.
func DayOffset(ts, base time.Time) float64 {
	secs := ts.Unix() - base.Unix()
	nanos := ts.Nanosecond() - base.Nanosecond()
	return (float64(secs) + float64(nanos)/1e9) / secondsPerDay
}
