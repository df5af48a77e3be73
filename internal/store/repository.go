/**
 * @description
 * This file defines the `Repository` interface, the contract for all data access
 * the validation engine needs. The interface decouples the engine from the
 * PostgreSQL implementation and lets tests substitute hand-written stubs.
 *
 * Transition methods are transactional by contract: each one runs in its own
 * database transaction, locks the subject row before evaluating preconditions,
 * and writes the entity update plus the Movement/ValidationHistory pair
 * atomically. The returned Movement is what was persisted (nil for rejections
 * when rejection auditing is disabled).
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Reference reads
	ResolveActor(ctx context.Context, userID string) (*domain.ActorContext, error)
	GetActivePeriod(ctx context.Context) (*domain.Period, error)

	// Entity reads
	GetBeneficiary(ctx context.Context, code string) (*domain.Beneficiary, error)
	GetDomiciliation(ctx context.Context, code string) (*domain.Domiciliation, error)
	GetLatestDomiciliation(ctx context.Context, beneficiaryCode string) (*domain.Domiciliation, error)
	GetPayment(ctx context.Context, code string) (*domain.Payment, error)
	GetPaymentWithDetails(ctx context.Context, code string) (*domain.PaymentWithDetails, error)

	// Beneficiary transitions
	SubmitBeneficiary(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error)
	ApproveBeneficiary(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error)
	RejectBeneficiary(ctx context.Context, code string, actor domain.ActorContext, recordMovement bool) (*domain.Movement, error)

	// Domiciliation transitions
	SubmitDomiciliation(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error)
	ApproveDomiciliation(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error)
	RejectDomiciliation(ctx context.Context, code string, actor domain.ActorContext, recordMovement bool) (*domain.Movement, error)

	// Payment transitions
	SubmitPayment(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error)
	ApprovePayment(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error)
	RejectPayment(ctx context.Context, code string, actor domain.ActorContext, recordMovement bool) (*domain.Movement, error)
	RecordTransfer(ctx context.Context, code string) (*domain.Payment, error)

	// Code generation for records created outside the engine. Generation and the
	// consuming insert share one transaction; a unique constraint on the code
	// column backstops the MAX+1 read.
	NextBeneficiaryCode(ctx context.Context, year int, sigil string) (string, error)
	NextDomiciliationCode(ctx context.Context, year int) (string, error)
	AddPaymentDetail(ctx context.Context, paymentCode, elementCode string, amount int64) (*domain.PaymentDetail, error)

	// Worklist reads
	PendingBeneficiaryMovements(ctx context.Context, filter domain.WorklistFilter) ([]domain.BeneficiaryWorkItem, error)
	PendingDomiciliationMovements(ctx context.Context, filter domain.WorklistFilter) ([]domain.DomiciliationWorkItem, error)
	PendingPaymentMovements(ctx context.Context, filter domain.WorklistFilter) ([]domain.PaymentWorkItem, error)
}
