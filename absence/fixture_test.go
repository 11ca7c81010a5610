package absence_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
	"github.com/warp/absence-engine/store/memory"
	"github.com/warp/absence-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fixture struct {
	ctx    context.Context
	store  absence.TxStore
	engine *absence.Engine
	audit  *generic.MemoryAuditSink
}

type storeFactory struct {
	name string
	open func(t *testing.T) absence.TxStore
}

var storeFactories = []storeFactory{
	{"memory", func(t *testing.T) absence.TxStore { return memory.New() }},
	{"sqlite", func(t *testing.T) absence.TxStore {
		s, err := sqlite.New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}},
}

// eachStore runs test once per store implementation.
func eachStore(t *testing.T, test func(t *testing.T, open func(t *testing.T) absence.TxStore)) {
	for _, sf := range storeFactories {
		sf := sf
		t.Run(sf.name, func(t *testing.T) { test(t, sf.open) })
	}
}

// newFixture seeds two regions:
//
//	dortmund: mgr (MANAGER), alice, bob, carol
//	muenchen: mia (MANAGER), tom
//	no region: boss (SUPER_MANAGER)
//
// Everyone has 30 days.
func newFixture(t *testing.T, store absence.TxStore, policy absence.Policy) *fixture {
	t.Helper()
	ctx := context.Background()
	audit := &generic.MemoryAuditSink{}
	engine := absence.New(store, absence.Config{Policy: policy, Audit: audit})

	for _, r := range []struct{ id, name string }{{"dortmund", "Dortmund"}, {"muenchen", "München"}} {
		_, err := engine.Admin.CreateRegion(ctx, "boss", r.id, absence.RegionInput{Name: r.name, City: r.name})
		require.NoError(t, err)
	}
	for _, e := range []struct {
		id, region string
		role       absence.Role
	}{
		{"mgr", "dortmund", absence.RoleManager},
		{"alice", "dortmund", absence.RoleEmployee},
		{"bob", "dortmund", absence.RoleEmployee},
		{"carol", "dortmund", absence.RoleEmployee},
		{"mia", "muenchen", absence.RoleManager},
		{"tom", "muenchen", absence.RoleEmployee},
		{"boss", "", absence.RoleSuperManager},
	} {
		region := e.region
		_, err := engine.Admin.CreateEmployee(ctx, "boss", e.id, absence.EmployeeInput{Name: e.id, Role: e.role, RegionID: &region})
		require.NoError(t, err)
	}
	return &fixture{ctx: ctx, store: store, engine: engine, audit: audit}
}

func newDefaultFixture(t *testing.T, open func(t *testing.T) absence.TxStore) *fixture {
	return newFixture(t, open(t), absence.DefaultPolicy())
}

func reversalPolicy() absence.Policy {
	p := absence.DefaultPolicy()
	p.AllowReversal = true
	return p
}

func period(t *testing.T, start, end string) generic.Period {
	t.Helper()
	p, err := generic.ParsePeriod(start, end)
	require.NoError(t, err)
	return p
}

func (f *fixture) trySubmit(t *testing.T, employeeID string, typ absence.Type, start, end string) (absence.Request, error) {
	t.Helper()
	return f.engine.Requests.Submit(f.ctx, absence.SubmitInput{EmployeeID: employeeID, Type: typ, Period: period(t, start, end)})
}

func (f *fixture) submit(t *testing.T, employeeID string, typ absence.Type, start, end string) absence.Request {
	t.Helper()
	req, err := f.trySubmit(t, employeeID, typ, start, end)
	require.NoError(t, err)
	return req
}

func (f *fixture) approve(t *testing.T, requestID, approverID string) absence.Request {
	t.Helper()
	req, err := f.engine.Requests.Approve(f.ctx, requestID, approverID, "")
	require.NoError(t, err)
	return req
}

func (f *fixture) used(t *testing.T, employeeID string, year int) int {
	t.Helper()
	bal, err := f.engine.Ledger.GetBalance(f.ctx, employeeID, year)
	require.NoError(t, err)
	return bal.Used
}
