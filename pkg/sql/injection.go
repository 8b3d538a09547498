package sql

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult contains the result of an injection check on an
// entity value bound for a SQL string literal.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Slot        string // Template placeholder the value was bound for
	Value       string // The value that was checked
}

// CheckValueForInjection uses libinjection to detect SQL injection patterns
// in an entity value before it is interpolated into a generated statement.
// Values come from gazetteer normalization, so a hit here means either a
// poisoned gazetteer entry or a context-supplied location name trying to
// smuggle SQL; both are rejected.
//
// Returns nil if no injection is detected.
func CheckValueForInjection(slot, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Slot:        slot,
			Value:       value,
		}
	}
	return nil
}
