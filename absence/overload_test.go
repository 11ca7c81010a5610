package absence_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// TEAM CONCURRENCY
// =============================================================================

func TestTeamConcurrency_CountsEveryDay(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		// GIVEN: alice pending Fri-Mon, bob approved Mon-Tue, carol rejected Mon
		f := newDefaultFixture(t, open)
		f.submit(t, "alice", absence.TypeVacation, "2024-08-09", "2024-08-12")
		bob := f.submit(t, "bob", absence.TypeVacation, "2024-08-12", "2024-08-13")
		f.approve(t, bob.ID, "mgr")
		carol := f.submit(t, "carol", absence.TypeVacation, "2024-08-12", "2024-08-12")
		_, err := f.engine.Requests.Reject(f.ctx, carol.ID, "mgr", "")
		require.NoError(t, err)
		// München is a different team
		f.submit(t, "tom", absence.TypeVacation, "2024-08-12", "2024-08-16")

		// WHEN
		counts, err := f.engine.Conflicts.TeamConcurrency(f.ctx, "dortmund", period(t, "2024-08-09", "2024-08-14"))

		// THEN: calendar days, zeros included
		require.NoError(t, err)
		assert.Len(t, counts, 6)
		assert.Equal(t, 1, counts.On(generic.MustParseDate("2024-08-09")))
		assert.Equal(t, 1, counts.On(generic.MustParseDate("2024-08-10")))
		assert.Equal(t, 1, counts.On(generic.MustParseDate("2024-08-11")))
		assert.Equal(t, 2, counts.On(generic.MustParseDate("2024-08-12")))
		assert.Equal(t, 1, counts.On(generic.MustParseDate("2024-08-13")))
		assert.Equal(t, 0, counts.On(generic.MustParseDate("2024-08-14")))

		days := counts.Days()
		require.Len(t, days, 6)
		assert.Equal(t, "2024-08-09", days[0].String())
		assert.Equal(t, "2024-08-14", days[5].String())
	})
}

func TestTeamConcurrency_CrossTypeCountsOnce(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		p := absence.DefaultPolicy()
		p.AllowCrossTypeOverlap = true
		f := newFixture(t, open(t), p)
		f.submit(t, "alice", absence.TypeBusinessTrip, "2024-08-12", "2024-08-14")
		f.submit(t, "alice", absence.TypeHomeOffice, "2024-08-13", "2024-08-13")

		counts, err := f.engine.Conflicts.TeamConcurrency(f.ctx, "dortmund", period(t, "2024-08-12", "2024-08-14"))

		require.NoError(t, err)
		assert.Equal(t, 1, counts.On(generic.MustParseDate("2024-08-13")))
	})
}

func TestTeamConcurrency_SkipsInactiveEmployees(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)
		f.submit(t, "alice", absence.TypeVacation, "2024-08-12", "2024-08-12")
		f.submit(t, "carol", absence.TypeVacation, "2024-08-12", "2024-08-12")
		_, err := f.engine.Admin.DeactivateEmployee(f.ctx, "boss", "carol")
		require.NoError(t, err)

		counts, err := f.engine.Conflicts.TeamConcurrency(f.ctx, "dortmund", period(t, "2024-08-12", "2024-08-12"))

		require.NoError(t, err)
		assert.Equal(t, 1, counts.On(generic.MustParseDate("2024-08-12")))
	})
}

func TestTeamConcurrency_UnknownRegion(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)

		_, err := f.engine.Conflicts.TeamConcurrency(f.ctx, "atlantis", period(t, "2024-08-12", "2024-08-12"))

		assert.ErrorIs(t, err, generic.ErrNotFound)
	})
}

func TestTeamConcurrency_RangeIsBounded(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)

		// A whole leap year is allowed
		counts, err := f.engine.Conflicts.TeamConcurrency(f.ctx, "dortmund", period(t, "2024-01-01", "2024-12-31"))
		require.NoError(t, err)
		assert.Len(t, counts, absence.MaxConcurrencyDays)

		// One day more is not, for concurrency and overload alike
		tooLong := period(t, "2024-01-01", "2025-01-01")
		_, err = f.engine.Conflicts.TeamConcurrency(f.ctx, "dortmund", tooLong)
		var ve *generic.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "period", ve.Field)

		_, err = f.engine.Overload.Report(f.ctx, "dortmund", period(t, "1900-01-01", "9999-12-31"), decimal.RequireFromString("0.5"))
		assert.ErrorIs(t, err, generic.ErrValidation)
	})
}

// =============================================================================
// OVERLOAD
// =============================================================================

func TestOverload_FlagsDaysAboveThreshold(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		// GIVEN: 3 of 4 Dortmund employees away on Monday, 2 on Tuesday
		f := newDefaultFixture(t, open)
		f.submit(t, "alice", absence.TypeVacation, "2024-08-12", "2024-08-13")
		f.submit(t, "bob", absence.TypeVacation, "2024-08-12", "2024-08-13")
		f.submit(t, "carol", absence.TypeSickLeave, "2024-08-12", "2024-08-12")
		week := period(t, "2024-08-12", "2024-08-16")

		// WHEN: scanning with the default threshold
		report, err := f.engine.Overload.Report(f.ctx, "dortmund", week, decimal.Zero)

		// THEN: only Monday is flagged; 2/4 is not above 0.5
		require.NoError(t, err)
		assert.Equal(t, 4, report.TeamSize)
		assert.True(t, report.Threshold.Equal(absence.DefaultOverloadThreshold))
		require.Len(t, report.Days, 1)
		day := report.Days[0]
		assert.Equal(t, "2024-08-12", day.Date.String())
		assert.Equal(t, 3, day.Absent)
		assert.Equal(t, 4, day.TeamSize)
		assert.True(t, day.Ratio.Equal(decimal.RequireFromString("0.75")), day.Ratio.String())

		// A lower threshold also flags Tuesday
		report, err = f.engine.Overload.Report(f.ctx, "dortmund", week, decimal.RequireFromString("0.25"))
		require.NoError(t, err)
		assert.Len(t, report.Days, 2)

		// Threshold 1 never flags anything
		report, err = f.engine.Overload.Report(f.ctx, "dortmund", week, decimal.NewFromInt(1))
		require.NoError(t, err)
		assert.Empty(t, report.Days)
	})
}

func TestOverload_LargerTeamDilutesRatio(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		// GIVEN: 3 away, then a fifth team member joins
		f := newDefaultFixture(t, open)
		for _, id := range []string{"alice", "bob", "carol"} {
			f.submit(t, id, absence.TypeVacation, "2024-08-12", "2024-08-12")
		}
		dortmund := "dortmund"
		_, err := f.engine.Admin.CreateEmployee(f.ctx, "boss", "dave", absence.EmployeeInput{Name: "dave", RegionID: &dortmund})
		require.NoError(t, err)

		// WHEN
		days, err := f.engine.Overload.Scan(f.ctx, "dortmund", period(t, "2024-08-12", "2024-08-12"), decimal.Zero)

		// THEN: 3/5 is still above 0.5
		require.NoError(t, err)
		assert.Equal(t, 3, days.On(generic.MustParseDate("2024-08-12")))

		report, err := f.engine.Overload.Report(f.ctx, "dortmund", period(t, "2024-08-12", "2024-08-12"), decimal.Zero)
		require.NoError(t, err)
		require.Len(t, report.Days, 1)
		assert.True(t, report.Days[0].Ratio.Equal(decimal.RequireFromString("0.6")))

		// At 0.6 the day is no longer above the threshold
		report, err = f.engine.Overload.Report(f.ctx, "dortmund", period(t, "2024-08-12", "2024-08-12"), decimal.RequireFromString("0.6"))
		require.NoError(t, err)
		assert.Empty(t, report.Days)
	})
}

func TestOverload_InvalidThreshold(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)
		week := period(t, "2024-08-12", "2024-08-16")

		for _, th := range []string{"-0.1", "1.01", "2"} {
			_, err := f.engine.Overload.Report(f.ctx, "dortmund", week, decimal.RequireFromString(th))
			assert.ErrorIs(t, err, generic.ErrValidation, th)
		}
	})
}

func TestOverload_EmptyTeam(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)
		_, err := f.engine.Admin.CreateRegion(f.ctx, "boss", "hamburg", absence.RegionInput{Name: "Hamburg"})
		require.NoError(t, err)

		report, err := f.engine.Overload.Report(f.ctx, "hamburg", period(t, "2024-08-12", "2024-08-16"), decimal.Zero)

		require.NoError(t, err)
		assert.Zero(t, report.TeamSize)
		assert.Empty(t, report.Days)

		_, err = f.engine.Overload.Report(f.ctx, "atlantis", period(t, "2024-08-12", "2024-08-16"), decimal.Zero)
		assert.ErrorIs(t, err, generic.ErrNotFound)
	})
}
