package absence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

func memberIDs(stats []absence.MemberStatistics) []string {
	out := make([]string, len(stats))
	for i, s := range stats {
		out[i] = s.Employee.ID
	}
	return out
}

func TestStatistics_ScopedAndOrdered(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		// GIVEN: alice has an approved and a pending vacation
		f := newDefaultFixture(t, open)
		approved := f.submit(t, "alice", absence.TypeVacation, "2024-07-01", "2024-07-05")
		f.approve(t, approved.ID, "mgr")
		f.submit(t, "alice", absence.TypeTraining, "2024-09-02", "2024-09-03")

		// WHEN: the Dortmund manager asks
		stats, err := f.engine.Team.Statistics(f.ctx, "mgr", 2024)

		// THEN: the Dortmund team by name, manager included
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol", "mgr"}, memberIDs(stats))

		alice := stats[0]
		assert.Equal(t, "Dortmund", alice.RegionName)
		assert.Equal(t, absence.Balance{EmployeeID: "alice", Year: 2024, Total: 30, Used: 5, Remaining: 25}, alice.Balance)
		assert.Equal(t, map[absence.Type]int{absence.TypeVacation: 5}, alice.DaysByType)
		assert.Equal(t, "16.7", alice.Utilization.String())

		bob := stats[1]
		assert.Empty(t, bob.DaysByType)
		assert.True(t, bob.Utilization.IsZero())
	})
}

func TestStatistics_Visibility(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)

		stats, err := f.engine.Team.Statistics(f.ctx, "boss", 2024)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol", "mgr", "mia", "tom"}, memberIDs(stats))

		stats, err = f.engine.Team.Statistics(f.ctx, "mia", 2024)
		require.NoError(t, err)
		assert.Equal(t, []string{"mia", "tom"}, memberIDs(stats))
		assert.Equal(t, "München", stats[0].RegionName)

		_, err = f.engine.Team.Statistics(f.ctx, "alice", 2024)
		assert.ErrorIs(t, err, generic.ErrForbidden)

		_, err = f.engine.Team.Statistics(f.ctx, "ghost", 2024)
		assert.ErrorIs(t, err, generic.ErrNotFound)
	})
}

func TestStatistics_SplitsByYear(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)
		req := f.submit(t, "alice", absence.TypeVacation, "2024-12-30", "2025-01-03")
		f.approve(t, req.ID, "mgr")

		for year, days := range map[int]int{2024: 2, 2025: 3} {
			stats, err := f.engine.Team.Statistics(f.ctx, "mgr", year)
			require.NoError(t, err)
			assert.Equal(t, days, stats[0].DaysByType[absence.TypeVacation], year)
			assert.Equal(t, days, stats[0].Balance.Used, year)
		}
	})
}

func TestCalendar_ShowsActiveRequestsOfVisibleTeam(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		// GIVEN
		f := newDefaultFixture(t, open)
		bob := f.submit(t, "bob", absence.TypeVacation, "2024-08-14", "2024-08-16")
		f.approve(t, bob.ID, "mgr")
		alice := f.submit(t, "alice", absence.TypeHomeOffice, "2024-08-12", "2024-08-12")
		carol := f.submit(t, "carol", absence.TypeVacation, "2024-08-12", "2024-08-13")
		_, err := f.engine.Requests.Reject(f.ctx, carol.ID, "mgr", "")
		require.NoError(t, err)
		f.submit(t, "tom", absence.TypeVacation, "2024-08-12", "2024-08-16")
		// Outside the window
		f.submit(t, "alice", absence.TypeVacation, "2024-09-02", "2024-09-03")

		// WHEN
		entries, err := f.engine.Team.Calendar(f.ctx, "mgr", period(t, "2024-08-12", "2024-08-18"))

		// THEN: Dortmund's active requests by start date
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, alice.ID, entries[0].Request.ID)
		assert.Equal(t, "alice", entries[0].EmployeeName)
		assert.Equal(t, "Dortmund", entries[0].RegionName)
		assert.Equal(t, bob.ID, entries[1].Request.ID)
		assert.Equal(t, absence.StatusApproved, entries[1].Request.Status)

		// The super manager sees München too
		entries, err = f.engine.Team.Calendar(f.ctx, "boss", period(t, "2024-08-12", "2024-08-18"))
		require.NoError(t, err)
		assert.Len(t, entries, 3)

		_, err = f.engine.Team.Calendar(f.ctx, "bob", period(t, "2024-08-12", "2024-08-18"))
		assert.ErrorIs(t, err, generic.ErrForbidden)
	})
}
