package domain

import "fmt"

// EntityStatus is the shared lifecycle for beneficiaries and domiciliations.
// The numeric values are the legacy wire format and must not change: downstream
// reports read them straight from the tables.
type EntityStatus int

const (
	StatusDraft     EntityStatus = 0 // also "inactive" for a superseded domiciliation
	StatusSubmitted EntityStatus = 1
	StatusApproved  EntityStatus = 2
	StatusRejected  EntityStatus = 3
)

func (s EntityStatus) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusSubmitted:
		return "submitted"
	case StatusApproved:
		return "approved"
	case StatusRejected:
		return "rejected"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// CanSubmit reports whether a submit transition is allowed from s.
// Submitted and approved records cannot be re-submitted; rejected records can.
func (s EntityStatus) CanSubmit() bool {
	return s != StatusSubmitted && s != StatusApproved
}

// CanApprove reports whether an approve transition is allowed from s.
// Approval from draft is allowed: first-tier review can short-circuit.
func (s EntityStatus) CanApprove() bool {
	return s != StatusApproved
}

// PaymentStatus is the payment lifecycle. Same wire values as EntityStatus but
// status 1 means "validated" (first-tier cleared), the stage gating transfers.
type PaymentStatus int

const (
	PaymentDraft     PaymentStatus = 0
	PaymentValidated PaymentStatus = 1
	PaymentApproved  PaymentStatus = 2
	PaymentRejected  PaymentStatus = 3
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentDraft:
		return "draft"
	case PaymentValidated:
		return "validated"
	case PaymentApproved:
		return "approved"
	case PaymentRejected:
		return "rejected"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// CanSubmit reports whether the payment can move to validated.
func (s PaymentStatus) CanSubmit() bool {
	return s != PaymentValidated && s != PaymentApproved
}

// CanApprove reports whether the payment can move to approved.
func (s PaymentStatus) CanApprove() bool {
	return s != PaymentApproved
}

// CanRecordTransfer reports whether a transfer execution may be counted.
// Transfers require the payment to have at least reached validation.
func (s PaymentStatus) CanRecordTransfer() bool {
	return s == PaymentValidated || s == PaymentApproved
}

// SubjectKind discriminates which entity a movement concerns.
type SubjectKind string

const (
	KindBeneficiary   SubjectKind = "beneficiary"
	KindDomiciliation SubjectKind = "domiciliation"
	KindPayment       SubjectKind = "payment"
)

// MovementType is the closed enumeration of transition events recorded in the
// audit trail. It replaces the legacy magic numeric discriminator strings; the
// legacy digits remain reachable through Wire for report compatibility.
type MovementType string

const (
	MovementBeneficiarySubmission   MovementType = "beneficiary_submission"
	MovementBeneficiaryApproval     MovementType = "beneficiary_approval"
	MovementBeneficiaryRejection    MovementType = "beneficiary_rejection"
	MovementDomiciliationSubmission MovementType = "domiciliation_submission"
	MovementDomiciliationApproval   MovementType = "domiciliation_approval"
	MovementDomiciliationRejection  MovementType = "domiciliation_rejection"
	MovementPaymentSubmission       MovementType = "payment_submission"
	MovementPaymentApproval         MovementType = "payment_approval"
	MovementPaymentRejection        MovementType = "payment_rejection"
)

// Kind returns the subject entity of the movement type.
func (t MovementType) Kind() SubjectKind {
	switch t {
	case MovementBeneficiarySubmission, MovementBeneficiaryApproval, MovementBeneficiaryRejection:
		return KindBeneficiary
	case MovementDomiciliationSubmission, MovementDomiciliationApproval, MovementDomiciliationRejection:
		return KindDomiciliation
	default:
		return KindPayment
	}
}

// Wire returns the legacy numeric discriminator used by downstream reports:
// "1" beneficiary, "2" payment, "3" domiciliation.
func (t MovementType) Wire() string {
	switch t.Kind() {
	case KindBeneficiary:
		return "1"
	case KindPayment:
		return "2"
	default:
		return "3"
	}
}

// Valid reports whether t is one of the closed enumeration values.
func (t MovementType) Valid() bool {
	switch t {
	case MovementBeneficiarySubmission, MovementBeneficiaryApproval, MovementBeneficiaryRejection,
		MovementDomiciliationSubmission, MovementDomiciliationApproval, MovementDomiciliationRejection,
		MovementPaymentSubmission, MovementPaymentApproval, MovementPaymentRejection:
		return true
	}
	return false
}
