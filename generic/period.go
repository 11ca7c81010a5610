package generic

// =============================================================================
// PERIOD - An inclusive range of calendar days
// =============================================================================

// Period is the inclusive day range [Start, End].
//
// Examples:
//   - A one-day absence: Start == End
//   - Calendar year 2025: Jan 1 - Dec 31
type Period struct {
	Start TimePoint `json:"start"`
	End   TimePoint `json:"end"`
}

// NewPeriod builds a period, failing with a ValidationError when end < start.
func NewPeriod(start, end TimePoint) (Period, error) {
	p := Period{Start: start, End: end}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// ParsePeriod parses two YYYY-MM-DD strings into a validated period.
func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, &ValidationError{Field: "start", Reason: err.(*ValidationError).Reason}
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, &ValidationError{Field: "end", Reason: err.(*ValidationError).Reason}
	}
	return NewPeriod(s, e)
}

func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return &ValidationError{Field: "period", Reason: "start and end dates are required"}
	}
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "period", Reason: "end date " + p.End.String() + " is before start date " + p.Start.String()}
	}
	return nil
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps reports whether the two ranges share at least one day:
// start1 <= end2 AND start2 <= end1.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Intersect returns the shared days of both periods.
func (p Period) Intersect(other Period) (Period, bool) {
	if !p.Overlaps(other) {
		return Period{}, false
	}
	start, end := p.Start, p.End
	if other.Start.After(start) {
		start = other.Start
	}
	if other.End.Before(end) {
		end = other.End
	}
	return Period{Start: start, End: end}, true
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len is the number of calendar days in the period.
func (p Period) Len() int {
	if p.End.Before(p.Start) {
		return 0
	}
	return int(p.End.normalize().Sub(p.Start.normalize()).Hours()/24) + 1
}

// Years lists the calendar years the period touches, ascending.
func (p Period) Years() []int {
	if p.End.Before(p.Start) {
		return nil
	}
	years := make([]int, 0, p.End.Year()-p.Start.Year()+1)
	for y := p.Start.Year(); y <= p.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

// SplitByYear cuts the period at every year boundary.
func (p Period) SplitByYear() []Period {
	var parts []Period
	for _, y := range p.Years() {
		if part, ok := p.Intersect(Period{Start: StartOfYear(y), End: EndOfYear(y)}); ok {
			parts = append(parts, part)
		}
	}
	return parts
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
