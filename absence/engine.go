package absence

import (
	"time"

	"go.uber.org/zap"

	"github.com/warp/absence-engine/generic"
)

// Config wires the engine's collaborators. Zero values get defaults.
type Config struct {
	Policy Policy            // zero value = DefaultPolicy()
	Audit  generic.AuditSink // nil = NopAuditSink
	Logger *zap.Logger       // nil = zap.NewNop()
	Now    func() time.Time  // nil = time.Now
}

// Engine bundles every service over one store.
type Engine struct {
	Store     TxStore
	Policy    Policy
	Ledger    *Ledger
	Conflicts *ConflictDetector
	Requests  *RequestService
	Overload  *OverloadAnalyzer
	Team      *TeamService
	Admin     *AdminService
}

func New(store TxStore, cfg Config) *Engine {
	if cfg.Policy.ID == "" && cfg.Policy.OverloadThreshold.IsZero() {
		cfg.Policy = DefaultPolicy()
	}
	if cfg.Policy.OverloadThreshold.IsZero() {
		cfg.Policy.OverloadThreshold = DefaultOverloadThreshold
	}
	if cfg.Audit == nil {
		cfg.Audit = generic.NopAuditSink{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	ledger := NewLedger(store)
	conflicts := NewConflictDetector(store)
	return &Engine{
		Store:     store,
		Policy:    cfg.Policy,
		Ledger:    ledger,
		Conflicts: conflicts,
		Requests: &RequestService{
			store:     store,
			ledger:    ledger,
			conflicts: conflicts,
			policy:    cfg.Policy,
			audit:     cfg.Audit,
			logger:    cfg.Logger.Named("requests"),
			now:       cfg.Now,
		},
		Overload: NewOverloadAnalyzer(conflicts, cfg.Policy.OverloadThreshold),
		Team:     NewTeamService(store, ledger),
		Admin: &AdminService{
			store:  store,
			ledger: ledger,
			policy: cfg.Policy,
			audit:  cfg.Audit,
			logger: cfg.Logger.Named("admin"),
			now:    cfg.Now,
		},
	}
}
