package domain

import "fmt"

// Code formats are load-bearing: reconciliation decodes the period/org-unit/
// sequence segments, so widths are fixed and sequences are zero-padded.

// MovementCode formats a movement identifier from the active period code, the
// approver's org-unit code and a per-prefix sequence.
func MovementCode(periodCode, orgUnitCode string, seq int) string {
	return fmt.Sprintf("%s%s%05d", periodCode, orgUnitCode, seq)
}

// BeneficiaryCode formats a beneficiary identifier from the current year, the
// org unit's sigil and a per-year-per-unit sequence.
func BeneficiaryCode(year int, sigil string, seq int) string {
	return fmt.Sprintf("%d%s%05d", year, sigil, seq)
}

// DomiciliationCode formats a domiciliation identifier. The sequence is global
// per year, not per org unit.
func DomiciliationCode(year, seq int) string {
	return fmt.Sprintf("%d%04d", year, seq)
}

// PaymentDetailCode formats a payment line-item identifier, sequenced across
// all details of the payment's period.
func PaymentDetailCode(periodCode string, seq int) string {
	return fmt.Sprintf("%s%06d", periodCode, seq)
}
