package factory

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// HOLIDAY IMPORT - JSON and iCalendar
// =============================================================================

// HolidayJSON is one entry of a holiday file:
//
//	[{"date": "2024-10-03", "name": "Tag der Deutschen Einheit", "recurring": true}]
type HolidayJSON struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	Recurring bool   `json:"recurring,omitempty"`
}

// ParseHolidaysJSON reads a JSON array of holidays. IDs and region are left
// for the caller to fill in.
func ParseHolidaysJSON(r io.Reader) ([]generic.Holiday, error) {
	var entries []HolidayJSON
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, &generic.ValidationError{Field: "holidays", Reason: "invalid JSON: " + err.Error()}
	}
	out := make([]generic.Holiday, 0, len(entries))
	for i, e := range entries {
		d, err := generic.ParseDate(e.Date)
		if err != nil {
			return nil, &generic.ValidationError{Field: fmt.Sprintf("holidays[%d].date", i), Reason: err.(*generic.ValidationError).Reason}
		}
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, &generic.ValidationError{Field: fmt.Sprintf("holidays[%d].name", i), Reason: "is required"}
		}
		out = append(out, generic.Holiday{Date: d, Name: name, Recurring: e.Recurring})
	}
	return out, nil
}

// ParseHolidaysICS reads the VEVENTs of an iCalendar file as holidays.
//
//   - SUMMARY becomes the name; events without one are skipped
//   - DTSTART gives the first day; all-day events spanning several days
//     (exclusive DTEND) yield one holiday per day
//   - RRULE:FREQ=YEARLY marks the holiday as recurring
func ParseHolidaysICS(r io.Reader) ([]generic.Holiday, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, &generic.ValidationError{Field: "holidays", Reason: "invalid iCalendar: " + err.Error()}
	}

	var out []generic.Holiday
	for _, evt := range cal.Events() {
		summary := evt.GetProperty(ics.ComponentPropertySummary)
		if summary == nil || strings.TrimSpace(summary.Value) == "" {
			continue
		}
		name := strings.TrimSpace(summary.Value)

		start, err := icsDate(evt, ics.ComponentPropertyDtStart)
		if err != nil {
			return nil, &generic.ValidationError{Field: "DTSTART", Reason: fmt.Sprintf("event %q: %v", name, err)}
		}
		last := start
		if end, err := icsDate(evt, ics.ComponentPropertyDtEnd); err == nil && end.After(start) {
			last = end.AddDays(-1)
		}

		recurring := false
		if rrule := evt.GetProperty(ics.ComponentPropertyRrule); rrule != nil {
			recurring = strings.Contains(strings.ToUpper(rrule.Value), "FREQ=YEARLY")
		}

		for d := start; d.BeforeOrEqual(last); d = d.AddDays(1) {
			out = append(out, generic.Holiday{Date: d, Name: name, Recurring: recurring})
		}
	}
	return out, nil
}

// icsDate reads a DATE or DATE-TIME property as a calendar day.
func icsDate(evt *ics.VEvent, prop ics.ComponentProperty) (generic.TimePoint, error) {
	p := evt.GetProperty(prop)
	if p == nil {
		return generic.TimePoint{}, fmt.Errorf("missing property %s", prop)
	}
	for _, layout := range []string{"20060102", "20060102T150405Z", "20060102T150405"} {
		if t, err := time.Parse(layout, p.Value); err == nil {
			return generic.FromTime(t), nil
		}
	}
	return generic.TimePoint{}, fmt.Errorf("cannot parse date %q", p.Value)
}

// =============================================================================
// PRESETS
// =============================================================================

// GermanPublicHolidays returns the nationwide public holidays of Germany for
// year. Fixed-date holidays are marked recurring; Easter-based ones are not.
func GermanPublicHolidays(year int) []generic.Holiday {
	easter := easterSunday(year)
	fixed := func(m time.Month, d int, name string) generic.Holiday {
		return generic.Holiday{Date: generic.NewTimePoint(year, m, d), Name: name, Recurring: true}
	}
	moving := func(offset int, name string) generic.Holiday {
		return generic.Holiday{Date: easter.AddDays(offset), Name: name}
	}
	return []generic.Holiday{
		fixed(time.January, 1, "Neujahr"),
		moving(-2, "Karfreitag"),
		moving(1, "Ostermontag"),
		fixed(time.May, 1, "Tag der Arbeit"),
		moving(39, "Christi Himmelfahrt"),
		moving(50, "Pfingstmontag"),
		fixed(time.October, 3, "Tag der Deutschen Einheit"),
		fixed(time.December, 25, "1. Weihnachtstag"),
		fixed(time.December, 26, "2. Weihnachtstag"),
	}
}

// easterSunday uses the anonymous Gregorian algorithm.
func easterSunday(year int) generic.TimePoint {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return generic.NewTimePoint(year, time.Month(month), day)
}
