package factory_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/absence-engine/absence"
	"github.com/warp/absence-engine/factory"
	"github.com/warp/absence-engine/generic"
)

// =============================================================================
// POLICY
// =============================================================================

func TestParsePolicy_Presets(t *testing.T) {
	def, err := factory.ParsePolicy([]byte(factory.DefaultPolicyJSON))
	require.NoError(t, err)
	assert.Equal(t, "default", def.ID)
	assert.False(t, def.AllowReversal)
	assert.False(t, def.AllowCrossTypeOverlap)
	assert.True(t, def.OverloadThreshold.Equal(decimal.RequireFromString("0.5")))
	for _, ti := range absence.Types() {
		assert.True(t, def.Debits(ti.Type), ti.Type)
	}

	strict, err := factory.ParsePolicy([]byte(factory.StrictVacationPolicyJSON))
	require.NoError(t, err)
	assert.Equal(t, "vacation-only", strict.ID)
	assert.True(t, strict.AllowReversal)
	assert.True(t, strict.AllowCrossTypeOverlap)
	assert.True(t, strict.Debits(absence.TypeVacation))
	assert.False(t, strict.Debits(absence.TypeSickLeave))
	assert.False(t, strict.Debits(absence.TypeHomeOffice))
}

func TestParsePolicy_Defaults(t *testing.T) {
	p, err := factory.ParsePolicy([]byte(`{}`))

	require.NoError(t, err)
	assert.Equal(t, "default", p.ID)
	assert.Equal(t, absence.DefaultEntitlementDays, p.DefaultEntitlementDays)
	assert.True(t, p.OverloadThreshold.Equal(absence.DefaultOverloadThreshold))
	assert.True(t, p.Debits(absence.TypeTraining))
}

func TestParsePolicy_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"id":`,
		"threshold above 1": `{"overload_threshold": "1.5"}`,
		"threshold zero":    `{"overload_threshold": "0"}`,
		"negative quota":    `{"default_entitlement_days": -5}`,
		"unknown type":      `{"debiting_types": ["NAP"]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := factory.ParsePolicy([]byte(doc))
			assert.ErrorIs(t, err, generic.ErrValidation)
		})
	}
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(factory.StrictVacationPolicyJSON), 0o600))

	p, err := factory.LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, "vacation-only", p.ID)

	_, err = factory.LoadPolicyFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestPolicyToJSON_ListsDebitingTypes(t *testing.T) {
	strict, err := factory.ParsePolicy([]byte(factory.StrictVacationPolicyJSON))
	require.NoError(t, err)

	pj := factory.PolicyToJSON(strict)

	assert.Equal(t, []string{"VACATION"}, pj.DebitingTypes)
	require.NotNil(t, pj.DefaultEntitlementDays)
	assert.Equal(t, 30, *pj.DefaultEntitlementDays)

	back, err := pj.ToPolicy()
	require.NoError(t, err)
	assert.Equal(t, strict.DebitingTypes, back.DebitingTypes)
}

// =============================================================================
// HOLIDAYS
// =============================================================================

func holidayDates(hs []generic.Holiday) map[string]string {
	out := make(map[string]string, len(hs))
	for _, h := range hs {
		out[h.Name] = h.Date.String()
	}
	return out
}

func TestGermanPublicHolidays(t *testing.T) {
	tests := []struct {
		year int
		want map[string]string
	}{
		{2024, map[string]string{
			"Karfreitag":          "2024-03-29",
			"Ostermontag":         "2024-04-01",
			"Christi Himmelfahrt": "2024-05-09",
			"Pfingstmontag":       "2024-05-20",
		}},
		{2025, map[string]string{
			"Karfreitag":          "2025-04-18",
			"Ostermontag":         "2025-04-21",
			"Christi Himmelfahrt": "2025-05-29",
			"Pfingstmontag":       "2025-06-09",
		}},
	}
	for _, tt := range tests {
		hs := factory.GermanPublicHolidays(tt.year)
		require.Len(t, hs, 9)
		got := holidayDates(hs)
		for name, date := range tt.want {
			assert.Equal(t, date, got[name], "%s %d", name, tt.year)
		}
		assert.True(t, strings.HasSuffix(got["Tag der Deutschen Einheit"], "-10-03"))
	}

	// Only the Easter-based holidays move between years
	for _, h := range factory.GermanPublicHolidays(2024) {
		_, moving := tests[0].want[h.Name]
		assert.Equal(t, !moving, h.Recurring, h.Name)
	}
}

func TestParseHolidaysJSON(t *testing.T) {
	hs, err := factory.ParseHolidaysJSON(strings.NewReader(`[
		{"date": "2024-10-03", "name": " Tag der Deutschen Einheit ", "recurring": true},
		{"date": "2024-11-01", "name": "Allerheiligen"}
	]`))

	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, "Tag der Deutschen Einheit", hs[0].Name)
	assert.True(t, hs[0].Recurring)
	assert.Equal(t, "2024-11-01", hs[1].Date.String())
	assert.False(t, hs[1].Recurring)
}

func TestParseHolidaysJSON_Invalid(t *testing.T) {
	for _, doc := range []string{
		`{"date": "2024-10-03"}`,
		`[{"date": "03.10.2024", "name": "Einheit"}]`,
		`[{"date": "2024-10-03", "name": ""}]`,
	} {
		_, err := factory.ParseHolidaysJSON(strings.NewReader(doc))
		assert.ErrorIs(t, err, generic.ErrValidation, doc)
	}
}

func TestParseHolidaysICS(t *testing.T) {
	doc := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//Warp//Feiertage//DE",
		"BEGIN:VEVENT",
		"UID:einheit@example.com",
		"DTSTART;VALUE=DATE:20241003",
		"DTEND;VALUE=DATE:20241004",
		"SUMMARY:Tag der Deutschen Einheit",
		"RRULE:FREQ=YEARLY",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ferien@example.com",
		"DTSTART;VALUE=DATE:20241224",
		"DTEND;VALUE=DATE:20241227",
		"SUMMARY:Betriebsferien",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:unnamed@example.com",
		"DTSTART;VALUE=DATE:20241231",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	hs, err := factory.ParseHolidaysICS(strings.NewReader(doc))

	require.NoError(t, err)
	require.Len(t, hs, 4)
	assert.Equal(t, "Tag der Deutschen Einheit", hs[0].Name)
	assert.Equal(t, "2024-10-03", hs[0].Date.String())
	assert.True(t, hs[0].Recurring)
	for i, want := range []string{"2024-12-24", "2024-12-25", "2024-12-26"} {
		assert.Equal(t, "Betriebsferien", hs[i+1].Name)
		assert.Equal(t, want, hs[i+1].Date.String())
		assert.False(t, hs[i+1].Recurring)
	}
}
