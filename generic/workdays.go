package generic

// =============================================================================
// BUSINESS DAYS - Weekends and holidays never count
// =============================================================================

// BusinessDays counts the days in [start, end] that are neither Saturday, Sunday
// nor in holidays. It fails with a ValidationError when end < start.
func BusinessDays(start, end TimePoint, holidays HolidaySet) (int, error) {
	p, err := NewPeriod(start, end)
	if err != nil {
		return 0, err
	}
	return countBusinessDays(p, holidays), nil
}

// BusinessDaysByYear is BusinessDays split per calendar year. Years that
// contribute no business day are omitted.
func BusinessDaysByYear(start, end TimePoint, holidays HolidaySet) (map[int]int, error) {
	p, err := NewPeriod(start, end)
	if err != nil {
		return nil, err
	}
	byYear := make(map[int]int)
	for _, part := range p.SplitByYear() {
		if n := countBusinessDays(part, holidays); n > 0 {
			byYear[part.Start.Year()] = n
		}
	}
	return byYear, nil
}

// IsBusinessDay reports whether d is a working day given holidays.
func IsBusinessDay(d TimePoint, holidays HolidaySet) bool {
	return !d.IsWeekend() && !holidays.Contains(d)
}

func countBusinessDays(p Period, holidays HolidaySet) int {
	n := 0
	for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
		if IsBusinessDay(d, holidays) {
			n++
		}
	}
	return n
}
