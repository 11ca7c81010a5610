/*
Package factory provides JSON to Go conversion for engine configuration.

PURPOSE:
  Converts JSON policy definitions into absence.Policy and holiday files
  (JSON or iCalendar) into generic.Holiday lists. This enables configuration
  without code changes - HR can maintain policies and calendars as files,
  and the factory creates the proper Go structs.

POLICY JSON SCHEMA:
  {
    "id": "default",
    "allow_cross_type_overlap": false,
    "allow_reversal": false,
    "overload_threshold": "0.5",
    "default_entitlement_days": 30,
    "debiting_types": ["VACATION", "SICK_LEAVE"]
  }

  overload_threshold is a decimal string (a JSON number is accepted too).
  Omitting debiting_types makes every absence type consume entitlement.

USAGE:
  policy, err := factory.ParsePolicy([]byte(factory.DefaultPolicyJSON))
  engine := absence.New(store, absence.Config{Policy: policy})

SEE ALSO:
  - absence/policy.go: Policy type definition
  - holidays.go: Holiday import
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PolicyJSON is the JSON representation of a policy.
type PolicyJSON struct {
	ID                     string           `json:"id"`
	AllowCrossTypeOverlap  bool             `json:"allow_cross_type_overlap,omitempty"`
	AllowReversal          bool             `json:"allow_reversal,omitempty"`
	OverloadThreshold      *decimal.Decimal `json:"overload_threshold,omitempty"`
	DefaultEntitlementDays *int             `json:"default_entitlement_days,omitempty"`
	DebitingTypes          []string         `json:"debiting_types"`
}

// =============================================================================
// PRESETS
// =============================================================================

// DefaultPolicyJSON: every type debits, no cross-type overlap, no reversal.
const DefaultPolicyJSON = `{
  "id": "default",
  "allow_cross_type_overlap": false,
  "allow_reversal": false,
  "overload_threshold": "0.5",
  "default_entitlement_days": 30,
  "debiting_types": ["VACATION", "SICK_LEAVE", "HOME_OFFICE", "BUSINESS_TRIP", "TRAINING"]
}`

// StrictVacationPolicyJSON: only vacation consumes entitlement; home office
// may overlap other types; approved vacation can be canceled.
const StrictVacationPolicyJSON = `{
  "id": "vacation-only",
  "allow_cross_type_overlap": true,
  "allow_reversal": true,
  "overload_threshold": "0.5",
  "default_entitlement_days": 30,
  "debiting_types": ["VACATION"]
}`

// =============================================================================
// PARSING
// =============================================================================

// ParsePolicy converts a JSON document into a validated policy. Missing
// fields fall back to absence.DefaultPolicy.
func ParsePolicy(data []byte) (absence.Policy, error) {
	var pj PolicyJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return absence.Policy{}, &generic.ValidationError{Field: "policy", Reason: "invalid JSON: " + err.Error()}
	}
	return pj.ToPolicy()
}

// LoadPolicyFile reads and parses a policy file.
func LoadPolicyFile(path string) (absence.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return absence.Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return absence.Policy{}, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// ToPolicy applies defaults and validates.
func (pj PolicyJSON) ToPolicy() (absence.Policy, error) {
	p := absence.DefaultPolicy()
	if pj.ID != "" {
		p.ID = pj.ID
	}
	p.AllowCrossTypeOverlap = pj.AllowCrossTypeOverlap
	p.AllowReversal = pj.AllowReversal
	if pj.OverloadThreshold != nil {
		p.OverloadThreshold = *pj.OverloadThreshold
	}
	if pj.DefaultEntitlementDays != nil {
		p.DefaultEntitlementDays = *pj.DefaultEntitlementDays
	}
	if pj.DebitingTypes != nil {
		p.DebitingTypes = make(map[absence.Type]bool, len(pj.DebitingTypes))
		for _, s := range pj.DebitingTypes {
			t, err := absence.ParseType(s)
			if err != nil {
				return absence.Policy{}, err
			}
			p.DebitingTypes[t] = true
		}
	}
	if err := p.Validate(); err != nil {
		return absence.Policy{}, err
	}
	return p, nil
}

// PolicyToJSON is the inverse of ParsePolicy, used by the API to show the
// active policy.
func PolicyToJSON(p absence.Policy) PolicyJSON {
	threshold := p.OverloadThreshold
	days := p.DefaultEntitlementDays
	pj := PolicyJSON{
		ID:                     p.ID,
		AllowCrossTypeOverlap:  p.AllowCrossTypeOverlap,
		AllowReversal:          p.AllowReversal,
		OverloadThreshold:      &threshold,
		DefaultEntitlementDays: &days,
		DebitingTypes:          []string{},
	}
	for _, ti := range absence.Types() {
		if p.Debits(ti.Type) {
			pj.DebitingTypes = append(pj.DebitingTypes, string(ti.Type))
		}
	}
	return pj
}
