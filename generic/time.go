package generic

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// TIME POINT - A calendar day (this IS a day-granular absence system)
// =============================================================================

// DateLayout is the wire and storage format for every date in the engine.
const DateLayout = "2006-01-02"

// TimePoint is a calendar day. The clock part of Time is always midnight UTC
// once a value has gone through one of the constructors.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime drops the clock part and the location of t.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string. Invalid input is never coerced.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("invalid date %q (use YYYY-MM-DD)", s)}
	}
	return FromTime(t), nil
}

func MustParseDate(s string) TimePoint {
	tp, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return tp
}

func Today() TimePoint {
	return FromTime(time.Now())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return FromTime(tp.normalize().AddDate(0, 0, n)) }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() time.Weekday { return tp.Time.Weekday() }
func (tp TimePoint) IsWeekend() bool       { wd := tp.Weekday(); return wd == time.Saturday || wd == time.Sunday }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }

func (tp TimePoint) String() string { return tp.Time.Format(DateLayout) }

// MarshalText lets TimePoint be used as a JSON map key and value.
func (tp TimePoint) MarshalText() ([]byte, error) { return []byte(tp.String()), nil }

func (tp *TimePoint) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

func StartOfYear(year int) TimePoint { return NewTimePoint(year, time.January, 1) }
func EndOfYear(year int) TimePoint   { return NewTimePoint(year, time.December, 31) }

// =============================================================================
// HOLIDAY CALENDAR - Region-specific holidays
// =============================================================================

// Holiday is a date on which no business day is counted.
type Holiday struct {
	ID        string
	RegionID  string // Empty string = global holiday, applies to every region
	Date      TimePoint
	Name      string // e.g. "Tag der Deutschen Einheit"
	Recurring bool   // true = same month/day every year
}

// OccursIn returns the concrete date of the holiday in year, if any.
func (h Holiday) OccursIn(year int) (TimePoint, bool) {
	if h.Recurring {
		d := time.Date(year, h.Date.Month(), h.Date.Day(), 0, 0, 0, 0, time.UTC)
		// Feb 29 only exists in leap years.
		if d.Month() != h.Date.Month() {
			return TimePoint{}, false
		}
		return TimePoint{Time: d}, true
	}
	if h.Date.Year() != year {
		return TimePoint{}, false
	}
	return h.Date, true
}

// HolidaySet is a set of calendar days keyed by their YYYY-MM-DD form.
type HolidaySet map[string]struct{}

func NewHolidaySet(days ...TimePoint) HolidaySet {
	s := make(HolidaySet, len(days))
	for _, d := range days {
		s.Add(d)
	}
	return s
}

func (s HolidaySet) Add(d TimePoint) { s[d.String()] = struct{}{} }

func (s HolidaySet) Contains(d TimePoint) bool {
	if s == nil {
		return false
	}
	_, ok := s[d.String()]
	return ok
}

// Merge adds every day of other to s.
func (s HolidaySet) Merge(other HolidaySet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Days returns the members in ascending order.
func (s HolidaySet) Days() []TimePoint {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	days := make([]TimePoint, 0, len(keys))
	for _, k := range keys {
		days = append(days, MustParseDate(k))
	}
	return days
}

// HolidayCalendar provides holiday lookup for a region.
type HolidayCalendar interface {
	// HolidaysFor returns every holiday date observed in the region during year,
	// global holidays included.
	HolidaysFor(ctx context.Context, regionID string, year int) (HolidaySet, error)
}

// HolidaysInPeriod merges the calendar's sets for every year the period touches.
func HolidaysInPeriod(ctx context.Context, cal HolidayCalendar, regionID string, p Period) (HolidaySet, error) {
	set := HolidaySet{}
	if cal == nil {
		return set, nil
	}
	for _, year := range p.Years() {
		hs, err := cal.HolidaysFor(ctx, regionID, year)
		if err != nil {
			return nil, fmt.Errorf("holidays for region %q in %d: %w", regionID, year, err)
		}
		set.Merge(hs)
	}
	return set, nil
}

// StaticHolidayCalendar is an in-memory calendar built from a list of holidays.
type StaticHolidayCalendar struct {
	Holidays []Holiday
}

func (c *StaticHolidayCalendar) HolidaysFor(_ context.Context, regionID string, year int) (HolidaySet, error) {
	return HolidaysForYear(c.Holidays, regionID, year), nil
}

// HolidaysForYear projects holidays into year, keeping global ones and those of regionID.
func HolidaysForYear(holidays []Holiday, regionID string, year int) HolidaySet {
	set := HolidaySet{}
	for _, h := range holidays {
		if h.RegionID != "" && h.RegionID != regionID {
			continue
		}
		if d, ok := h.OccursIn(year); ok {
			set.Add(d)
		}
	}
	return set
}
