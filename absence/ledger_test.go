package absence_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// BALANCE
// =============================================================================

func TestLedger_UnwrittenEntryDerivesFromEmployee(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)

		bal, err := f.engine.Ledger.GetBalance(f.ctx, "alice", 2024)

		require.NoError(t, err)
		assert.Equal(t, absence.Balance{EmployeeID: "alice", Year: 2024, Total: 30, Used: 0, Remaining: 30}, bal)
	})
}

func TestLedger_UnknownEmployee(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)

		_, err := f.engine.Ledger.GetBalance(f.ctx, "ghost", 2024)

		var nf *generic.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "employee", nf.Kind)
	})
}

// =============================================================================
// COMMIT / RELEASE / RESERVE
// =============================================================================

func TestLedger_CommitAndRelease(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)
		l := f.engine.Ledger

		require.NoError(t, l.Commit(f.ctx, "alice", 2024, 5))
		assert.Equal(t, 5, f.used(t, "alice", 2024))

		require.NoError(t, l.Release(f.ctx, "alice", 2024, 3))
		assert.Equal(t, 2, f.used(t, "alice", 2024))

		// Release never goes below zero
		require.NoError(t, l.Release(f.ctx, "alice", 2024, 10))
		assert.Equal(t, 0, f.used(t, "alice", 2024))

		// Other years are untouched
		assert.Equal(t, 0, f.used(t, "alice", 2025))
	})
}

func TestLedger_CommitBeyondTotal_Fails(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		// GIVEN: 28 of 30 days used
		f := newDefaultFixture(t, open)
		require.NoError(t, f.engine.Ledger.Commit(f.ctx, "alice", 2024, 28))

		// WHEN: committing 3 more
		err := f.engine.Ledger.Commit(f.ctx, "alice", 2024, 3)

		// THEN: the commit fails and nothing changes
		var ib *generic.InsufficientBalanceError
		require.ErrorAs(t, err, &ib)
		assert.Equal(t, generic.PhaseCommit, ib.Phase)
		assert.Equal(t, 2, ib.Remaining())
		assert.Equal(t, 1, ib.Shortfall())
		assert.Equal(t, 28, f.used(t, "alice", 2024))

		// Exactly the remainder still fits
		require.NoError(t, f.engine.Ledger.Commit(f.ctx, "alice", 2024, 2))
		assert.Equal(t, 30, f.used(t, "alice", 2024))
	})
}

func TestLedger_ReserveDoesNotChangeUsed(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)

		require.NoError(t, f.engine.Ledger.Reserve(f.ctx, "alice", 2024, 30))
		assert.Equal(t, 0, f.used(t, "alice", 2024))

		err := f.engine.Ledger.Reserve(f.ctx, "alice", 2024, 31)
		var ib *generic.InsufficientBalanceError
		require.ErrorAs(t, err, &ib)
		assert.Equal(t, generic.PhaseReserve, ib.Phase)
	})
}

func TestLedger_NonPositiveDays_Rejected(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)

		for _, days := range []int{0, -1} {
			assert.ErrorIs(t, f.engine.Ledger.Commit(f.ctx, "alice", 2024, days), generic.ErrValidation)
			assert.ErrorIs(t, f.engine.Ledger.Release(f.ctx, "alice", 2024, days), generic.ErrValidation)
			assert.ErrorIs(t, f.engine.Ledger.Reserve(f.ctx, "alice", 2024, days), generic.ErrValidation)
		}
	})
}

// =============================================================================
// QUOTA
// =============================================================================

func TestLedger_SetTotal(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		f := newDefaultFixture(t, open)
		require.NoError(t, f.engine.Ledger.Commit(f.ctx, "alice", 2024, 10))

		// Below used
		_, err := f.engine.Ledger.SetTotal(f.ctx, "alice", 2024, 8)
		assert.ErrorIs(t, err, generic.ErrValidation)

		// Negative
		_, err = f.engine.Ledger.SetTotal(f.ctx, "alice", 2024, -1)
		assert.ErrorIs(t, err, generic.ErrValidation)

		bal, err := f.engine.Ledger.SetTotal(f.ctx, "alice", 2024, 25)
		require.NoError(t, err)
		assert.Equal(t, absence.Balance{EmployeeID: "alice", Year: 2024, Total: 25, Used: 10, Remaining: 15}, bal)

		// The next year still derives from the employee
		next, err := f.engine.Ledger.GetBalance(f.ctx, "alice", 2025)
		require.NoError(t, err)
		assert.Equal(t, 30, next.Total)
	})
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestLedger_ConcurrentCommits_NeverExceedTotal(t *testing.T) {
	eachStore(t, func(t *testing.T, open func(*testing.T) absence.TxStore) {
		// GIVEN: 30 days and 20 commits of 2 days racing
		f := newDefaultFixture(t, open)
		var wg sync.WaitGroup
		var succeeded atomic.Int32

		// WHEN: all run at once
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := f.engine.Ledger.Commit(f.ctx, "alice", 2024, 2); err == nil {
					succeeded.Add(1)
				} else {
					assert.ErrorIs(t, err, generic.ErrInsufficientBalance)
				}
			}()
		}
		wg.Wait()

		// THEN: exactly 15 fit
		assert.EqualValues(t, 15, succeeded.Load())
		assert.Equal(t, 30, f.used(t, "alice", 2024))
	})
}
