package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Weekday is the closed set of keys a weekly availability map accepts
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// indexed by time.Weekday
var weekdayByTime = [...]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

func (d Weekday) Valid() bool {
	for _, w := range weekdayByTime {
		if w == d {
			return true
		}
	}
	return false
}

// ParseWeekday accepts a weekday name in any case
func ParseWeekday(s string) (Weekday, error) {
	d := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("invalid weekday %q", s)
	}
	return d, nil
}

// WeekdayOf returns the weekday of t in t's own location
func WeekdayOf(t time.Time) Weekday {
	return weekdayByTime[t.Weekday()]
}

// TimeRange is a half-open interval of minutes since midnight, written "HH:MM-HH:MM"
type TimeRange struct {
	Start int
	End   int
}

var (
	ErrMalformedRange = errors.New("time range must look like HH:MM-HH:MM")
	ErrEmptyRange     = errors.New("time range start must be before its end")
)

func ParseTimeRange(s string) (TimeRange, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrMalformedRange, s)
	}
	if start >= end {
		return TimeRange{}, fmt.Errorf("%w: %q", ErrEmptyRange, s)
	}
	return TimeRange{Start: start, End: end}, nil
}

// parseClock reads "HH:MM"; "24:00" is allowed as an end of day marker
func parseClock(s string) (int, error) {
	hm := strings.Split(strings.TrimSpace(s), ":")
	if len(hm) != 2 || len(hm[0]) != 2 || len(hm[1]) != 2 {
		return 0, ErrMalformedRange
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil {
		return 0, err
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, ErrMalformedRange
	}
	return h*60 + m, nil
}

func (r TimeRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.Start/60, r.Start%60, r.End/60, r.End%60)
}

func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start < o.End && o.Start < r.End
}

func (r TimeRange) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *TimeRange) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrMalformedRange
	}
	parsed, err := ParseTimeRange(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// WeeklyAvailability is a professional's declared bookable windows per weekday.
// Ranges of a day are kept sorted and never overlap.
type WeeklyAvailability map[Weekday][]TimeRange

// Validate checks keys and sorts each day, rejecting overlapping ranges
func (w WeeklyAvailability) Validate() error {
	for day, ranges := range w {
		if !day.Valid() {
			return fmt.Errorf("invalid weekday %q", day)
		}
		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })
		for i := 1; i < len(ranges); i++ {
			if ranges[i-1].Overlaps(ranges[i]) {
				return fmt.Errorf("overlapping ranges on %s: %s and %s", day, ranges[i-1], ranges[i])
			}
		}
	}
	return nil
}

// WindowsFor returns the declared windows for date's weekday, never nil
func (w WeeklyAvailability) WindowsFor(date time.Time) []TimeRange {
	ranges := w[WeekdayOf(date)]
	out := make([]TimeRange, len(ranges))
	copy(out, ranges)
	return out
}

func (w *WeeklyAvailability) UnmarshalJSON(b []byte) error {
	var raw map[string][]TimeRange
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(WeeklyAvailability, len(raw))
	for key, ranges := range raw {
		day, err := ParseWeekday(key)
		if err != nil {
			return err
		}
		out[day] = append(out[day], ranges...)
	}
	if err := out.Validate(); err != nil {
		return err
	}
	*w = out
	return nil
}

// Value stores the map as JSONB
func (w WeeklyAvailability) Value() (driver.Value, error) {
	if w == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(w)
}

func (w *WeeklyAvailability) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*w = WeeklyAvailability{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into WeeklyAvailability", src)
	}
	return json.Unmarshal(b, w)
}
