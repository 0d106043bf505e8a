package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date is a calendar date with no time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts YYYY-MM-DD and rejects dates that do not exist (2024-02-30).
func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("date must be YYYY-MM-DD: %q", raw)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

func (d Date) AddDays(n int) Date {
	return DateOf(d.In(time.UTC).AddDate(0, 0, n))
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is minutes since midnight, 0..1439.
type TimeOfDay int

const MinutesPerDay = 24 * 60

// ParseTimeOfDay accepts HH:MM, and HH:MM:00 as sent by some form libraries.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	raw = strings.TrimSpace(raw)
	parts := strings.Split(raw, ":")
	if len(parts) == 3 && parts[2] == "00" {
		parts = parts[:2]
	}
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("time must be HH:MM: %q", raw)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time must be HH:MM: %q", raw)
	}
	return TimeOfDay(h*60 + m), nil
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Duration converts t to an offset from midnight.
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) * time.Minute }

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Moment is a wall-clock minute in the practice time zone.
type Moment struct {
	Date Date
	Time TimeOfDay
}

// MomentOf converts t to the wall clock of loc, truncated to the minute.
func MomentOf(t time.Time, loc *time.Location) Moment {
	local := t.In(loc)
	return Moment{Date: DateOf(local), Time: TimeOfDayOf(local)}
}

// ParseMoment accepts YYYY-MM-DDTHH:MM (also with a space separator).
func ParseMoment(raw string) (Moment, error) {
	raw = strings.TrimSpace(raw)
	datePart, timePart, ok := strings.Cut(raw, "T")
	if !ok {
		datePart, timePart, ok = strings.Cut(raw, " ")
	}
	if !ok {
		return Moment{}, fmt.Errorf("as_of must be YYYY-MM-DDTHH:MM: %q", raw)
	}
	d, err := ParseDate(datePart)
	if err != nil {
		return Moment{}, err
	}
	t, err := ParseTimeOfDay(timePart)
	if err != nil {
		return Moment{}, err
	}
	return Moment{Date: d, Time: t}, nil
}

func (m Moment) Compare(o Moment) int {
	if c := m.Date.Compare(o.Date); c != 0 {
		return c
	}
	return cmpInt(int(m.Time), int(o.Time))
}

func (m Moment) Before(o Moment) bool { return m.Compare(o) < 0 }
func (m Moment) After(o Moment) bool  { return m.Compare(o) > 0 }

func (m Moment) String() string { return m.Date.String() + "T" + m.Time.String() }

// Clock supplies the current instant; tests pin it.
type Clock func() time.Time

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
