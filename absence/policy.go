package absence

import (
	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// POLICY - Tunable rules of the engine
// =============================================================================

// Policy holds the rules that vary between deployments. Use DefaultPolicy
// as a starting point; factory.ParsePolicy builds one from JSON.
type Policy struct {
	ID string

	// AllowCrossTypeOverlap lets a request overlap an active request of a
	// different type (e.g. HOME_OFFICE during a BUSINESS_TRIP). Same-type
	// overlap is always rejected.
	AllowCrossTypeOverlap bool

	// AllowReversal enables APPROVED -> CANCELED, which gives the days back.
	AllowReversal bool

	// OverloadThreshold is the absent fraction of a team above which a day
	// is flagged. Must be in (0, 1].
	OverloadThreshold decimal.Decimal

	// DefaultEntitlementDays is used for employees created without a quota.
	DefaultEntitlementDays int

	// DebitingTypes lists the types that consume entitlement. nil = all types.
	DebitingTypes map[Type]bool
}

// DefaultOverloadThreshold flags a day when more than half of a team is absent.
var DefaultOverloadThreshold = decimal.RequireFromString("0.5")

// DefaultEntitlementDays is the yearly quota of a new employee.
const DefaultEntitlementDays = 30

func DefaultPolicy() Policy {
	return Policy{
		ID:                     "default",
		OverloadThreshold:      DefaultOverloadThreshold,
		DefaultEntitlementDays: DefaultEntitlementDays,
	}
}

// Debits reports whether approving a request of type t consumes entitlement.
func (p Policy) Debits(t Type) bool {
	if p.DebitingTypes == nil {
		return true
	}
	return p.DebitingTypes[t]
}

func (p Policy) Validate() error {
	if err := ValidateThreshold(p.OverloadThreshold); err != nil {
		return err
	}
	if p.DefaultEntitlementDays < 0 {
		return &generic.ValidationError{Field: "default_entitlement_days", Reason: "must not be negative"}
	}
	for t := range p.DebitingTypes {
		if _, err := ParseType(string(t)); err != nil {
			return err
		}
	}
	return nil
}

// ValidateThreshold checks that t is a fraction in (0, 1].
func ValidateThreshold(t decimal.Decimal) error {
	if !t.IsPositive() || t.GreaterThan(decimal.NewFromInt(1)) {
		return &generic.ValidationError{Field: "threshold", Reason: "must be greater than 0 and at most 1, got " + t.String()}
	}
	return nil
}
