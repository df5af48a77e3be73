/**
 * @description
 * This file defines the core domain models for the quotes-parts approval service.
 * These structs represent the subject entities moving through the approval state
 * machine (Beneficiary, Domiciliation, Payment), the paired audit records
 * (Movement, ValidationHistory), and the reference-data views the engine reads.
 *
 * @notes
 * - Primary keys are human-readable string codes (period/year + org-unit +
 *   sequence segments). Downstream reconciliation decodes them, so the format is
 *   part of the contract.
 * - Monetary amounts are stored as `int64` in centimes to avoid floating-point
 *   inaccuracies with financial data.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActorContext identifies the approver performing an engine operation. It is
// resolved once at the API boundary and passed explicitly into every call;
// nothing in the engine reads ambient auth state.
type ActorContext struct {
	UserID      string `json:"user_id"`
	OrgUnitCode string `json:"org_unit_code"` // regie code, embedded in movement codes
	Level       int    `json:"level"`         // 1 = intake reviewer, 2 = cross-check reviewer
}

// Beneficiary is a person eligible to receive quotes-parts disbursements.
// Maps to the `beneficiaries` table.
type Beneficiary struct {
	Code         string       `json:"code"` // {year}{org-sigil}{5-digit sequence}
	Name         string       `json:"name"`
	Matricule    *string      `json:"matricule,omitempty"` // unique when present
	Sex          string       `json:"sex"`
	TypeCode     string       `json:"type_code"`
	FunctionCode string       `json:"function_code"`
	GradeCode    string       `json:"grade_code"`
	Status       EntityStatus `json:"status"`
	Version      int          `json:"version"`
	CreatedBy    string       `json:"created_by"`
	UpdatedBy    *string      `json:"updated_by,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Domiciliation binds a beneficiary to a bank account (RIB). Maps to the
// `domiciliations` table. At most one per beneficiary may be submitted, and at
// most one approved, at any time.
type Domiciliation struct {
	Code            string       `json:"code"` // {year}{4-digit sequence}
	BeneficiaryCode string       `json:"beneficiary_code"`
	AccountNumber   string       `json:"account_number"`
	RIBKey          string       `json:"rib_key"` // mod-97 check key over bank+branch+account
	BankCode        string       `json:"bank_code"`
	BranchCode      string       `json:"branch_code"`
	DocumentRef     *string      `json:"document_ref,omitempty"` // attached proof document
	Status          EntityStatus `json:"status"`
	Version         int          `json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Payment is one beneficiary's computed disbursement for one fiscal period.
// Maps to the `payments` table. Name and account number are denormalized
// snapshots captured from the beneficiary's approved domiciliation.
type Payment struct {
	Code            string        `json:"code"` // {period code}{4-digit sequence}
	BeneficiaryCode string        `json:"beneficiary_code"`
	PeriodCode      string        `json:"period_code"`
	BeneficiaryName string        `json:"beneficiary_name"`
	AccountNumber   string        `json:"account_number"`
	Status          PaymentStatus `json:"status"`
	TransferCount   int           `json:"transfer_count"` // incremented by RecordTransfer
	Version         int           `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// PaymentDetail is one signed line item of a payment. Direction is denormalized
// from the referenced element so net amounts can be computed without a second
// lookup.
type PaymentDetail struct {
	Code        string           `json:"code"` // {period code}{6-digit sequence}
	PaymentCode string           `json:"payment_code"`
	ElementCode string           `json:"element_code"`
	Label       string           `json:"label"`
	Direction   ElementDirection `json:"direction"`
	Amount      int64            `json:"amount"` // centimes, always positive; direction carries the sign
}

// PaymentWithDetails is the read-side composition of a payment and its lines.
// NetAmount is computed on read, never stored.
type PaymentWithDetails struct {
	Payment   Payment         `json:"payment"`
	Details   []PaymentDetail `json:"details"`
	NetAmount int64           `json:"net_amount"`
}

// NetAmount sums credit lines and subtracts debit lines.
func NetAmount(details []PaymentDetail) int64 {
	var net int64
	for _, d := range details {
		if d.Direction == DirectionDebit {
			net -= d.Amount
		} else {
			net += d.Amount
		}
	}
	return net
}

// Movement is the append-only operational audit record of one transition event.
// At most one of the three subject references is populated, according to Type.
// The snapshot fields capture the subject's key display values at transition
// time; they are resolved once, explicitly, when the movement is written.
type Movement struct {
	Code              string       `json:"code"` // {active period}{org unit}{5-digit sequence}
	BeneficiaryCode   *string      `json:"beneficiary_code,omitempty"`
	DomiciliationCode *string      `json:"domiciliation_code,omitempty"`
	PaymentCode       *string      `json:"payment_code,omitempty"`
	Name              string       `json:"name"`
	BankCode          *string      `json:"bank_code,omitempty"`
	BranchCode        *string      `json:"branch_code,omitempty"`
	AccountNumber     *string      `json:"account_number,omitempty"`
	RIBKey            *string      `json:"rib_key,omitempty"`
	Date              time.Time    `json:"date"`
	Time              string       `json:"time"` // HH:MM:SS, kept separate for legacy report decoding
	Level             int          `json:"level"`
	UserID            string       `json:"user_id"`
	Type              MovementType `json:"type"`
}

// ValidationHistory is the permanent, non-purged copy of a Movement, written in
// the same transaction and sharing the same code. Identical shape by contract.
type ValidationHistory struct {
	Code              string       `json:"code"`
	BeneficiaryCode   *string      `json:"beneficiary_code,omitempty"`
	DomiciliationCode *string      `json:"domiciliation_code,omitempty"`
	PaymentCode       *string      `json:"payment_code,omitempty"`
	Name              string       `json:"name"`
	BankCode          *string      `json:"bank_code,omitempty"`
	BranchCode        *string      `json:"branch_code,omitempty"`
	AccountNumber     *string      `json:"account_number,omitempty"`
	RIBKey            *string      `json:"rib_key,omitempty"`
	Date              time.Time    `json:"date"`
	Time              string       `json:"time"`
	Level             int          `json:"level"`
	UserID            string       `json:"user_id"`
	Type              MovementType `json:"type"`
}

// HistoryFromMovement builds the permanent audit copy of a movement.
func HistoryFromMovement(m Movement) ValidationHistory {
	return ValidationHistory{
		Code:              m.Code,
		BeneficiaryCode:   m.BeneficiaryCode,
		DomiciliationCode: m.DomiciliationCode,
		PaymentCode:       m.PaymentCode,
		Name:              m.Name,
		BankCode:          m.BankCode,
		BranchCode:        m.BranchCode,
		AccountNumber:     m.AccountNumber,
		RIBKey:            m.RIBKey,
		Date:              m.Date,
		Time:              m.Time,
		Level:             m.Level,
		UserID:            m.UserID,
		Type:              m.Type,
	}
}

// Period is a fiscal/disbursement cycle. Exactly one is active at a time.
type Period struct {
	Code   string `json:"code"`
	Year   int    `json:"year"`
	Active bool   `json:"active"`
}

// Regie is the organizational unit scoping approvers and code sequences.
type Regie struct {
	Code  string `json:"code"`
	Sigil string `json:"sigil"` // short mnemonic embedded in beneficiary codes
}

// Bank is a reference bank. Worklists resolve domiciliation snapshots against it.
type Bank struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

// Branch is a reference bank branch, keyed by bank plus branch code.
type Branch struct {
	BankCode string `json:"bank_code"`
	Code     string `json:"code"`
	Label    string `json:"label"`
}

// ElementDirection flags a payment line-item category as gain or deduction.
type ElementDirection int

const (
	DirectionCredit ElementDirection = 1 // gain
	DirectionDebit  ElementDirection = 2 // deduction
)

// Element is a named payment line-item category.
type Element struct {
	Code      string           `json:"code"`
	Label     string           `json:"label"`
	Direction ElementDirection `json:"direction"`
}

// BatchItemFailure records one failed item of a batch operation.
type BatchItemFailure struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// BatchResult partitions a batch operation's outcome. Items are processed in
// input order, each in its own transaction, so one bad item never rolls back
// its siblings.
type BatchResult struct {
	BatchID uuid.UUID          `json:"batch_id"`
	Updated int                `json:"updated"`
	Success []string           `json:"success"`
	Failed  []BatchItemFailure `json:"failed"`
}

// CombinedSubmitOutcome reports the two-phase combined submission of a
// beneficiary and its most recent domiciliation. When ConfirmationRequired is
// set, nothing was written: the caller must repeat the request with the
// confirmed flag to perform the submissions described by the Pending fields.
type CombinedSubmitOutcome struct {
	ConfirmationRequired   bool    `json:"confirmation_required"`
	PendingBeneficiary     bool    `json:"pending_beneficiary"`
	PendingDomiciliation   bool    `json:"pending_domiciliation"`
	DomiciliationCode      *string `json:"domiciliation_code,omitempty"`
	BeneficiarySubmitted   bool    `json:"beneficiary_submitted"`
	DomiciliationSubmitted bool    `json:"domiciliation_submitted"`
	DomiciliationError     *string `json:"domiciliation_error,omitempty"`
}

// WorklistFilter restricts pending-movement queries for second-tier approvers.
// RestrictToLevel == 0 means unscoped.
type WorklistFilter struct {
	RestrictToLevel int
	OrgUnitCode     string
}

// BeneficiaryWorkItem is a pending beneficiary movement enriched with
// descriptive labels for the approver's worklist.
type BeneficiaryWorkItem struct {
	MovementCode  string    `json:"movement_code"`
	SubjectCode   string    `json:"subject_code"`
	Name          string    `json:"name"`
	FunctionLabel string    `json:"function_label"`
	GradeLabel    string    `json:"grade_label"`
	TypeLabel     string    `json:"type_label"`
	Level         int       `json:"level"`
	UserID        string    `json:"user_id"`
	Date          time.Time `json:"date"`
}

// DomiciliationWorkItem is a pending domiciliation movement with its bank
// snapshot resolved to display labels.
type DomiciliationWorkItem struct {
	MovementCode  string    `json:"movement_code"`
	SubjectCode   string    `json:"subject_code"`
	Name          string    `json:"name"`
	BankLabel     string    `json:"bank_label"`
	BranchLabel   string    `json:"branch_label"`
	AccountNumber string    `json:"account_number"`
	RIBKey        string    `json:"rib_key"`
	Level         int       `json:"level"`
	UserID        string    `json:"user_id"`
	Date          time.Time `json:"date"`
}

// PaymentWorkItem is a pending payment movement with its period and net amount.
type PaymentWorkItem struct {
	MovementCode string    `json:"movement_code"`
	SubjectCode  string    `json:"subject_code"`
	Name         string    `json:"name"`
	PeriodCode   string    `json:"period_code"`
	NetAmount    int64     `json:"net_amount"`
	Level        int       `json:"level"`
	UserID       string    `json:"user_id"`
	Date         time.Time `json:"date"`
}

// WorklistCounts aggregates pending items per category plus the grand total.
type WorklistCounts struct {
	Beneficiaries  int `json:"beneficiaries"`
	Domiciliations int `json:"domiciliations"`
	Payments       int `json:"payments"`
	Total          int `json:"total"`
}

// PendingWorklists is the read-side view of everything awaiting the caller.
type PendingWorklists struct {
	Beneficiaries  []BeneficiaryWorkItem   `json:"beneficiaries"`
	Domiciliations []DomiciliationWorkItem `json:"domiciliations"`
	Payments       []PaymentWorkItem       `json:"payments"`
	Counts         WorklistCounts          `json:"counts"`
}
