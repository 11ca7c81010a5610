package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

func TestWithTx_BuffersUntilCommit(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.SaveHoliday(ctx, generic.Holiday{ID: "h1", Date: generic.MustParseDate("2024-10-03"), Name: "Einheit"}))

	err := m.WithTx(ctx, func(tx absence.Store) error {
		require.NoError(t, tx.SaveEntitlement(ctx, absence.Entitlement{EmployeeID: "alice", Year: 2024, Total: 30, Used: 4}))
		require.NoError(t, tx.DeleteHoliday(ctx, "h1"))

		// The transaction sees its own writes, the store does not yet
		e, ok, _ := tx.GetEntitlement(ctx, "alice", 2024)
		assert.True(t, ok)
		assert.Equal(t, 4, e.Used)
		_, ok, _ = m.GetEntitlement(ctx, "alice", 2024)
		assert.False(t, ok)

		hs, _ := tx.ListHolidays(ctx, "dortmund")
		assert.Empty(t, hs)
		return nil
	})

	require.NoError(t, err)
	e, ok, _ := m.GetEntitlement(ctx, "alice", 2024)
	require.True(t, ok)
	assert.Equal(t, 4, e.Used)
	hs, _ := m.ListHolidays(ctx, "dortmund")
	assert.Empty(t, hs)
}

func TestWithTx_DiscardsOnError(t *testing.T) {
	ctx := context.Background()
	m := New()
	boom := errors.New("boom")

	err := m.WithTx(ctx, func(tx absence.Store) error {
		require.NoError(t, tx.SaveEntitlement(ctx, absence.Entitlement{EmployeeID: "alice", Year: 2024, Total: 30, Used: 4}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	_, ok, _ := m.GetEntitlement(ctx, "alice", 2024)
	assert.False(t, ok)
}

func TestWithTx_RegionNameCheckedAtCommit(t *testing.T) {
	ctx := context.Background()
	m := New()

	// GIVEN: a transaction that adds "Dortmund" while another writer takes the name
	err := m.WithTx(ctx, func(tx absence.Store) error {
		require.NoError(t, tx.SaveRegion(ctx, absence.Region{ID: "do-1", Name: "Dortmund"}))
		return m.SaveRegion(ctx, absence.Region{ID: "do-2", Name: "Dortmund"})
	})

	// THEN: the commit fails and only the first writer's region exists
	assert.ErrorIs(t, err, generic.ErrConflict)
	regions, _ := m.ListRegions(ctx)
	require.Len(t, regions, 1)
	assert.Equal(t, "do-2", regions[0].ID)
}

func TestRequests_AreCopied(t *testing.T) {
	ctx := context.Background()
	m := New()
	p, _ := generic.ParsePeriod("2024-07-01", "2024-07-05")
	req := absence.Request{ID: "r1", EmployeeID: "alice", Period: p, Status: absence.StatusPending, Allocation: generic.Allocation{2024: 5}}
	require.NoError(t, m.SaveRequest(ctx, req))

	req.Allocation[2024] = 1
	got, err := m.GetRequest(ctx, "r1")
	require.NoError(t, err)
	got.Allocation[2024] = 2

	again, _ := m.GetRequest(ctx, "r1")
	assert.Equal(t, 5, again.Allocation[2024])
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.SaveEmployee(ctx, absence.Employee{ID: "alice", Name: "Alice", Role: absence.RoleEmployee, Active: true}))

	require.NoError(t, m.Reset(ctx))

	_, err := m.GetEmployee(ctx, "alice")
	assert.True(t, generic.IsNotFound(err))
}
