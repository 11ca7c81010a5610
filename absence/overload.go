package absence

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// OVERLOAD ANALYZER - Days when too much of a team is away
// =============================================================================

// OverloadAnalyzer flags days on which the absent fraction of a region's
// team exceeds a threshold. It only reads.
type OverloadAnalyzer struct {
	conflicts        *ConflictDetector
	defaultThreshold decimal.Decimal
}

func NewOverloadAnalyzer(conflicts *ConflictDetector, defaultThreshold decimal.Decimal) *OverloadAnalyzer {
	if defaultThreshold.IsZero() {
		defaultThreshold = DefaultOverloadThreshold
	}
	return &OverloadAnalyzer{conflicts: conflicts, defaultThreshold: defaultThreshold}
}

// OverloadDay is one flagged day.
type OverloadDay struct {
	Date     generic.TimePoint
	Absent   int
	TeamSize int
	Ratio    decimal.Decimal // Absent / TeamSize, rounded to 4 places for display
}

// OverloadReport is the outcome of one scan.
type OverloadReport struct {
	RegionID  string
	Period    generic.Period
	Threshold decimal.Decimal
	TeamSize  int
	Days      []OverloadDay // ascending by date
}

// Scan returns the overloaded days of p with their absentee count.
// A zero threshold selects the analyzer's default.
func (a *OverloadAnalyzer) Scan(ctx context.Context, regionID string, p generic.Period, threshold decimal.Decimal) (DayCounts, error) {
	report, err := a.Report(ctx, regionID, p, threshold)
	if err != nil {
		return nil, err
	}
	out := make(DayCounts, len(report.Days))
	for _, d := range report.Days {
		out[d.Date] = d.Absent
	}
	return out, nil
}

// Report is Scan with the team size and ratios attached.
func (a *OverloadAnalyzer) Report(ctx context.Context, regionID string, p generic.Period, threshold decimal.Decimal) (OverloadReport, error) {
	if threshold.IsZero() {
		threshold = a.defaultThreshold
	}
	if err := ValidateThreshold(threshold); err != nil {
		return OverloadReport{}, err
	}
	teamSize, counts, err := a.conflicts.teamConcurrency(ctx, regionID, p)
	if err != nil {
		return OverloadReport{}, err
	}

	report := OverloadReport{RegionID: regionID, Period: p, Threshold: threshold, TeamSize: teamSize}
	if teamSize == 0 {
		return report, nil
	}
	size := decimal.NewFromInt(int64(teamSize))
	limit := threshold.Mul(size)
	for _, day := range counts.Days() {
		absent := counts[day]
		// absent/size > threshold  <=>  absent > threshold*size
		if decimal.NewFromInt(int64(absent)).GreaterThan(limit) {
			report.Days = append(report.Days, OverloadDay{
				Date:     day,
				Absent:   absent,
				TeamSize: teamSize,
				Ratio:    decimal.NewFromInt(int64(absent)).DivRound(size, 4),
			})
		}
	}
	return report, nil
}
