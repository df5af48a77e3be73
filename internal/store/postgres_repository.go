/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL for the approval workflow: reference lookups, the
 * row-locked status transitions, movement-code generation and the paired
 * Movement/ValidationHistory audit writes.
 *
 * Tables: beneficiaries, domiciliations, payments, payment_details, elements,
 * movements, validation_histories, plus the reference tables users, groupes,
 * regies, periods, banks, branches. All subject and audit tables use the
 * human-readable string codes as primary keys; the unique constraint on each
 * code column is the correctness backstop for the MAX+1 sequence reads.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
)

var (
	ErrBeneficiaryNotFound   = errors.New("beneficiary not found")
	ErrDomiciliationNotFound = errors.New("domiciliation not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrElementNotFound       = errors.New("element not found")
	ErrActorNotFound         = errors.New("approver not found")
	ErrNoActivePeriod        = errors.New("no active period")
	ErrAlreadySubmitted      = errors.New("already submitted")
	ErrAlreadyApproved       = errors.New("already approved")
	ErrConcurrentSubmission  = errors.New("another domiciliation is already submitted for this beneficiary")
	ErrNoApprovedAccount     = errors.New("beneficiary has no approved domiciliation")
	ErrTransferNotReady      = errors.New("payment has not been validated")
	ErrPaymentNotEditable    = errors.New("payment is no longer editable")
	ErrDuplicateCode         = errors.New("generated code already exists")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505), the backstop for generated-code races.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ResolveActor builds the explicit approver context from the reference tables:
// the user's group determines the approval level, the user's regie the org unit.
func (r *PostgresRepository) ResolveActor(ctx context.Context, userID string) (*domain.ActorContext, error) {
	var actor domain.ActorContext
	query := `
		SELECT u.id, COALESCE(rg.code, ''), COALESCE(g.level_value, 0)
		FROM users u
		LEFT JOIN groupes g ON g.code = u.group_code
		LEFT JOIN regies rg ON rg.code = u.regie_code
		WHERE u.id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(&actor.UserID, &actor.OrgUnitCode, &actor.Level)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrActorNotFound
		}
		return nil, err
	}
	return &actor, nil
}

// GetActivePeriod returns the single active fiscal period. Zero or multiple
// active rows are both configuration faults and map to ErrNoActivePeriod.
func (r *PostgresRepository) GetActivePeriod(ctx context.Context) (*domain.Period, error) {
	rows, err := r.db.Query(ctx, `SELECT code, year, active FROM periods WHERE active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []domain.Period
	for rows.Next() {
		var p domain.Period
		if err := rows.Scan(&p.Code, &p.Year, &p.Active); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	if len(periods) != 1 {
		return nil, ErrNoActivePeriod
	}
	return &periods[0], nil
}

const beneficiaryColumns = `code, name, matricule, sex, type_code, function_code, grade_code, status, version, created_by, updated_by, created_at, updated_at`

func scanBeneficiary(row pgx.Row) (*domain.Beneficiary, error) {
	var b domain.Beneficiary
	err := row.Scan(
		&b.Code, &b.Name, &b.Matricule, &b.Sex, &b.TypeCode, &b.FunctionCode, &b.GradeCode,
		&b.Status, &b.Version, &b.CreatedBy, &b.UpdatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, err
	}
	return &b, nil
}

// GetBeneficiary retrieves a beneficiary by its code.
func (r *PostgresRepository) GetBeneficiary(ctx context.Context, code string) (*domain.Beneficiary, error) {
	query := `SELECT ` + beneficiaryColumns + ` FROM beneficiaries WHERE code = $1`
	return scanBeneficiary(r.db.QueryRow(ctx, query, code))
}

const domiciliationColumns = `code, beneficiary_code, account_number, rib_key, bank_code, branch_code, document_ref, status, version, created_at, updated_at`

func scanDomiciliation(row pgx.Row) (*domain.Domiciliation, error) {
	var d domain.Domiciliation
	err := row.Scan(
		&d.Code, &d.BeneficiaryCode, &d.AccountNumber, &d.RIBKey, &d.BankCode, &d.BranchCode,
		&d.DocumentRef, &d.Status, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDomiciliationNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetDomiciliation retrieves a domiciliation by its code.
func (r *PostgresRepository) GetDomiciliation(ctx context.Context, code string) (*domain.Domiciliation, error) {
	query := `SELECT ` + domiciliationColumns + ` FROM domiciliations WHERE code = $1`
	return scanDomiciliation(r.db.QueryRow(ctx, query, code))
}

// GetLatestDomiciliation retrieves the most recently created domiciliation of a
// beneficiary, the one the combined submission considers.
func (r *PostgresRepository) GetLatestDomiciliation(ctx context.Context, beneficiaryCode string) (*domain.Domiciliation, error) {
	query := `SELECT ` + domiciliationColumns + ` FROM domiciliations WHERE beneficiary_code = $1 ORDER BY created_at DESC, code DESC LIMIT 1`
	return scanDomiciliation(r.db.QueryRow(ctx, query, beneficiaryCode))
}

const paymentColumns = `code, beneficiary_code, period_code, beneficiary_name, account_number, status, transfer_count, version, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.Code, &p.BeneficiaryCode, &p.PeriodCode, &p.BeneficiaryName, &p.AccountNumber,
		&p.Status, &p.TransferCount, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetPayment retrieves a payment by its code.
func (r *PostgresRepository) GetPayment(ctx context.Context, code string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE code = $1`
	return scanPayment(r.db.QueryRow(ctx, query, code))
}

// GetPaymentWithDetails retrieves a payment, its line items and the net amount
// computed from them. The net is never stored.
func (r *PostgresRepository) GetPaymentWithDetails(ctx context.Context, code string) (*domain.PaymentWithDetails, error) {
	payment, err := r.GetPayment(ctx, code)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT pd.code, pd.payment_code, pd.element_code, e.label, e.direction, pd.amount
		FROM payment_details pd
		JOIN elements e ON e.code = pd.element_code
		WHERE pd.payment_code = $1
		ORDER BY pd.code
	`
	rows, err := r.db.Query(ctx, query, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []domain.PaymentDetail
	for rows.Next() {
		var d domain.PaymentDetail
		if err := rows.Scan(&d.Code, &d.PaymentCode, &d.ElementCode, &d.Label, &d.Direction, &d.Amount); err != nil {
			return nil, err
		}
		details = append(details, d)
	}

	return &domain.PaymentWithDetails{
		Payment:   *payment,
		Details:   details,
		NetAmount: domain.NetAmount(details),
	}, nil
}

// activePeriodTx reads the single active period inside a transaction so the
// generated movement code and the consuming insert observe the same period.
func activePeriodTx(ctx context.Context, tx pgx.Tx) (*domain.Period, error) {
	rows, err := tx.Query(ctx, `SELECT code, year, active FROM periods WHERE active`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var periods []domain.Period
	for rows.Next() {
		var p domain.Period
		if err := rows.Scan(&p.Code, &p.Year, &p.Active); err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	if len(periods) != 1 {
		return nil, ErrNoActivePeriod
	}
	return &periods[0], nil
}

// nextMovementCodeTx computes the next movement code for a period+org-unit
// prefix. MAX+1 inside the transaction is a known race under concurrency; the
// unique constraint on movements.code is the backstop, and the engine retries
// on ErrDuplicateCode.
func nextMovementCodeTx(ctx context.Context, tx pgx.Tx, periodCode, orgUnitCode string) (string, error) {
	prefix := periodCode + orgUnitCode
	var maxSeq int
	query := `SELECT COALESCE(MAX(CAST(RIGHT(code, 5) AS INTEGER)), 0) FROM movements WHERE code LIKE $1 || '%'`
	if err := tx.QueryRow(ctx, query, prefix).Scan(&maxSeq); err != nil {
		return "", err
	}
	return domain.MovementCode(periodCode, orgUnitCode, maxSeq+1), nil
}

// writeMovementPairTx inserts the Movement and its ValidationHistory copy.
// Exactly one of each, same code, same transaction as the status update.
func writeMovementPairTx(ctx context.Context, tx pgx.Tx, m domain.Movement) error {
	movementQuery := `
		INSERT INTO movements (
			code, beneficiary_code, domiciliation_code, payment_code, name,
			bank_code, branch_code, account_number, rib_key,
			movement_date, movement_time, level, user_id, movement_type
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if _, err := tx.Exec(ctx, movementQuery,
		m.Code, m.BeneficiaryCode, m.DomiciliationCode, m.PaymentCode, m.Name,
		m.BankCode, m.BranchCode, m.AccountNumber, m.RIBKey,
		m.Date, m.Time, m.Level, m.UserID, string(m.Type),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, m.Code)
		}
		return err
	}

	h := domain.HistoryFromMovement(m)
	historyQuery := `
		INSERT INTO validation_histories (
			code, beneficiary_code, domiciliation_code, payment_code, name,
			bank_code, branch_code, account_number, rib_key,
			movement_date, movement_time, level, user_id, movement_type
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	if _, err := tx.Exec(ctx, historyQuery,
		h.Code, h.BeneficiaryCode, h.DomiciliationCode, h.PaymentCode, h.Name,
		h.BankCode, h.BranchCode, h.AccountNumber, h.RIBKey,
		h.Date, h.Time, h.Level, h.UserID, string(h.Type),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, h.Code)
		}
		return err
	}
	return nil
}

// newMovementTx generates the next code and stamps the shared movement fields.
func newMovementTx(ctx context.Context, tx pgx.Tx, actor domain.ActorContext, movementType domain.MovementType) (*domain.Movement, error) {
	period, err := activePeriodTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	code, err := nextMovementCodeTx(ctx, tx, period.Code, actor.OrgUnitCode)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &domain.Movement{
		Code:   code,
		Date:   now,
		Time:   now.Format("15:04:05"),
		Level:  actor.Level,
		UserID: actor.UserID,
		Type:   movementType,
	}, nil
}

// SubmitBeneficiary moves a beneficiary to submitted. The row is locked before
// the precondition check so two concurrent submissions serialize.
func (r *PostgresRepository) SubmitBeneficiary(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var name string
	var status domain.EntityStatus
	err = tx.QueryRow(ctx, `SELECT name, status FROM beneficiaries WHERE code = $1 FOR UPDATE`, code).Scan(&name, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, err
	}
	if status == domain.StatusSubmitted {
		return nil, ErrAlreadySubmitted
	}
	if status == domain.StatusApproved {
		return nil, ErrAlreadyApproved
	}

	if _, err := tx.Exec(ctx,
		`UPDATE beneficiaries SET status = $1, version = version + 1, updated_by = $2, updated_at = NOW() WHERE code = $3`,
		domain.StatusSubmitted, actor.UserID, code,
	); err != nil {
		return nil, err
	}

	movement, err := newMovementTx(ctx, tx, actor, domain.MovementBeneficiarySubmission)
	if err != nil {
		return nil, err
	}
	movement.BeneficiaryCode = &code
	movement.Name = name
	if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// ApproveBeneficiary moves a beneficiary to approved. Approving twice fails and
// writes nothing.
func (r *PostgresRepository) ApproveBeneficiary(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var name string
	var status domain.EntityStatus
	err = tx.QueryRow(ctx, `SELECT name, status FROM beneficiaries WHERE code = $1 FOR UPDATE`, code).Scan(&name, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, err
	}
	if !status.CanApprove() {
		return nil, ErrAlreadyApproved
	}

	if _, err := tx.Exec(ctx,
		`UPDATE beneficiaries SET status = $1, version = version + 1, updated_by = $2, updated_at = NOW() WHERE code = $3`,
		domain.StatusApproved, actor.UserID, code,
	); err != nil {
		return nil, err
	}

	movement, err := newMovementTx(ctx, tx, actor, domain.MovementBeneficiaryApproval)
	if err != nil {
		return nil, err
	}
	movement.BeneficiaryCode = &code
	movement.Name = name
	if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// RejectBeneficiary moves a beneficiary to rejected from any state. The audit
// pair is written only when recordMovement is set; historically rejections were
// not treated as movements.
func (r *PostgresRepository) RejectBeneficiary(ctx context.Context, code string, actor domain.ActorContext, recordMovement bool) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var name string
	var status domain.EntityStatus
	err = tx.QueryRow(ctx, `SELECT name, status FROM beneficiaries WHERE code = $1 FOR UPDATE`, code).Scan(&name, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE beneficiaries SET status = $1, version = version + 1, updated_by = $2, updated_at = NOW() WHERE code = $3`,
		domain.StatusRejected, actor.UserID, code,
	); err != nil {
		return nil, err
	}

	var movement *domain.Movement
	if recordMovement {
		movement, err = newMovementTx(ctx, tx, actor, domain.MovementBeneficiaryRejection)
		if err != nil {
			return nil, err
		}
		movement.BeneficiaryCode = &code
		movement.Name = name
		if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// domiciliationSubject is the locked view of a domiciliation plus the owner
// name used for the denormalized audit snapshot.
type domiciliationSubject struct {
	beneficiaryCode string
	beneficiaryName string
	accountNumber   string
	ribKey          string
	bankCode        string
	branchCode      string
	status          domain.EntityStatus
}

func lockDomiciliationTx(ctx context.Context, tx pgx.Tx, code string) (*domiciliationSubject, error) {
	var d domiciliationSubject
	// Lock the domiciliation row only; the beneficiary name is read-only here.
	query := `
		SELECT d.beneficiary_code, b.name, d.account_number, d.rib_key, d.bank_code, d.branch_code, d.status
		FROM domiciliations d
		JOIN beneficiaries b ON b.code = d.beneficiary_code
		WHERE d.code = $1
		FOR UPDATE OF d
	`
	err := tx.QueryRow(ctx, query, code).Scan(
		&d.beneficiaryCode, &d.beneficiaryName, &d.accountNumber, &d.ribKey, &d.bankCode, &d.branchCode, &d.status,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDomiciliationNotFound
		}
		return nil, err
	}
	return &d, nil
}

func domiciliationMovementSnapshot(m *domain.Movement, code string, d *domiciliationSubject) {
	m.DomiciliationCode = &code
	m.BeneficiaryCode = &d.beneficiaryCode
	m.Name = d.beneficiaryName
	bank, branch, account, key := d.bankCode, d.branchCode, d.accountNumber, d.ribKey
	m.BankCode = &bank
	m.BranchCode = &branch
	m.AccountNumber = &account
	m.RIBKey = &key
}

// SubmitDomiciliation moves a domiciliation to submitted. At most one
// domiciliation per beneficiary may be in submitted state, so a sibling already
// at status 1 blocks the transition.
func (r *PostgresRepository) SubmitDomiciliation(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	subject, err := lockDomiciliationTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if subject.status == domain.StatusSubmitted {
		return nil, ErrAlreadySubmitted
	}
	if subject.status == domain.StatusApproved {
		return nil, ErrAlreadyApproved
	}

	var pendingSiblings int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM domiciliations WHERE beneficiary_code = $1 AND status = $2 AND code <> $3`,
		subject.beneficiaryCode, domain.StatusSubmitted, code,
	).Scan(&pendingSiblings)
	if err != nil {
		return nil, err
	}
	if pendingSiblings > 0 {
		return nil, ErrConcurrentSubmission
	}

	if _, err := tx.Exec(ctx,
		`UPDATE domiciliations SET status = $1, version = version + 1, updated_at = NOW() WHERE code = $2`,
		domain.StatusSubmitted, code,
	); err != nil {
		return nil, err
	}

	movement, err := newMovementTx(ctx, tx, actor, domain.MovementDomiciliationSubmission)
	if err != nil {
		return nil, err
	}
	domiciliationMovementSnapshot(movement, code, subject)
	if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// ApproveDomiciliation moves a domiciliation to approved and, in the same
// transaction, demotes any previously approved sibling of the same beneficiary
// to inactive. Post-state: exactly one approved domiciliation per beneficiary.
func (r *PostgresRepository) ApproveDomiciliation(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	subject, err := lockDomiciliationTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if !subject.status.CanApprove() {
		return nil, ErrAlreadyApproved
	}

	// Demote the superseded account first so the invariant holds at commit.
	if _, err := tx.Exec(ctx,
		`UPDATE domiciliations SET status = $1, version = version + 1, updated_at = NOW() WHERE beneficiary_code = $2 AND status = $3 AND code <> $4`,
		domain.StatusDraft, subject.beneficiaryCode, domain.StatusApproved, code,
	); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE domiciliations SET status = $1, version = version + 1, updated_at = NOW() WHERE code = $2`,
		domain.StatusApproved, code,
	); err != nil {
		return nil, err
	}

	movement, err := newMovementTx(ctx, tx, actor, domain.MovementDomiciliationApproval)
	if err != nil {
		return nil, err
	}
	domiciliationMovementSnapshot(movement, code, subject)
	if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// RejectDomiciliation moves a domiciliation to rejected from any state.
func (r *PostgresRepository) RejectDomiciliation(ctx context.Context, code string, actor domain.ActorContext, recordMovement bool) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	subject, err := lockDomiciliationTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE domiciliations SET status = $1, version = version + 1, updated_at = NOW() WHERE code = $2`,
		domain.StatusRejected, code,
	); err != nil {
		return nil, err
	}

	var movement *domain.Movement
	if recordMovement {
		movement, err = newMovementTx(ctx, tx, actor, domain.MovementDomiciliationRejection)
		if err != nil {
			return nil, err
		}
		domiciliationMovementSnapshot(movement, code, subject)
		if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// paymentSubject is the locked view of a payment used by the transitions.
type paymentSubject struct {
	beneficiaryCode string
	beneficiaryName string
	accountNumber   string
	status          domain.PaymentStatus
}

func lockPaymentTx(ctx context.Context, tx pgx.Tx, code string) (*paymentSubject, error) {
	var p paymentSubject
	query := `SELECT beneficiary_code, beneficiary_name, account_number, status FROM payments WHERE code = $1 FOR UPDATE`
	err := tx.QueryRow(ctx, query, code).Scan(&p.beneficiaryCode, &p.beneficiaryName, &p.accountNumber, &p.status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

func paymentMovementSnapshot(m *domain.Movement, code string, p *paymentSubject) {
	m.PaymentCode = &code
	m.BeneficiaryCode = &p.beneficiaryCode
	m.Name = p.beneficiaryName
	account := p.accountNumber
	m.AccountNumber = &account
}

// SubmitPayment moves a payment to validated (the first approval stage).
func (r *PostgresRepository) SubmitPayment(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	subject, err := lockPaymentTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if subject.status == domain.PaymentValidated {
		return nil, ErrAlreadySubmitted
	}
	if subject.status == domain.PaymentApproved {
		return nil, ErrAlreadyApproved
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $1, version = version + 1, updated_at = NOW() WHERE code = $2`,
		domain.PaymentValidated, code,
	); err != nil {
		return nil, err
	}

	movement, err := newMovementTx(ctx, tx, actor, domain.MovementPaymentSubmission)
	if err != nil {
		return nil, err
	}
	paymentMovementSnapshot(movement, code, subject)
	if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// ApprovePayment moves a payment to approved. The beneficiary must have an
// approved domiciliation; a payment with nowhere to send funds fails with
// ErrNoApprovedAccount.
func (r *PostgresRepository) ApprovePayment(ctx context.Context, code string, actor domain.ActorContext) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	subject, err := lockPaymentTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if !subject.status.CanApprove() {
		return nil, ErrAlreadyApproved
	}

	var approvedAccounts int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM domiciliations WHERE beneficiary_code = $1 AND status = $2`,
		subject.beneficiaryCode, domain.StatusApproved,
	).Scan(&approvedAccounts)
	if err != nil {
		return nil, err
	}
	if approvedAccounts == 0 {
		return nil, ErrNoApprovedAccount
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $1, version = version + 1, updated_at = NOW() WHERE code = $2`,
		domain.PaymentApproved, code,
	); err != nil {
		return nil, err
	}

	movement, err := newMovementTx(ctx, tx, actor, domain.MovementPaymentApproval)
	if err != nil {
		return nil, err
	}
	paymentMovementSnapshot(movement, code, subject)
	if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// RejectPayment moves a payment to rejected from any state.
func (r *PostgresRepository) RejectPayment(ctx context.Context, code string, actor domain.ActorContext, recordMovement bool) (*domain.Movement, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	subject, err := lockPaymentTx(ctx, tx, code)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE payments SET status = $1, version = version + 1, updated_at = NOW() WHERE code = $2`,
		domain.PaymentRejected, code,
	); err != nil {
		return nil, err
	}

	var movement *domain.Movement
	if recordMovement {
		movement, err = newMovementTx(ctx, tx, actor, domain.MovementPaymentRejection)
		if err != nil {
			return nil, err
		}
		paymentMovementSnapshot(movement, code, subject)
		if err := writeMovementPairTx(ctx, tx, *movement); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return movement, nil
}

// RecordTransfer increments the transfer-executed counter of a validated or
// approved payment. Draft and rejected payments cannot have transfers.
func (r *PostgresRepository) RecordTransfer(ctx context.Context, code string) (*domain.Payment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var status domain.PaymentStatus
	err = tx.QueryRow(ctx, `SELECT status FROM payments WHERE code = $1 FOR UPDATE`, code).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if !status.CanRecordTransfer() {
		return nil, ErrTransferNotReady
	}

	row := tx.QueryRow(ctx,
		`UPDATE payments SET transfer_count = transfer_count + 1, updated_at = NOW() WHERE code = $1 RETURNING `+paymentColumns,
		code,
	)
	payment, err := scanPayment(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return payment, nil
}

// NextBeneficiaryCode computes the next beneficiary code for the year and org
// sigil. The caller must insert under a unique constraint and retry on
// conflict; the MAX+1 read alone is not race-free.
func (r *PostgresRepository) NextBeneficiaryCode(ctx context.Context, year int, sigil string) (string, error) {
	prefix := fmt.Sprintf("%d%s", year, sigil)
	var maxSeq int
	query := `SELECT COALESCE(MAX(CAST(RIGHT(code, 5) AS INTEGER)), 0) FROM beneficiaries WHERE code LIKE $1 || '%'`
	if err := r.db.QueryRow(ctx, query, prefix).Scan(&maxSeq); err != nil {
		return "", err
	}
	return domain.BeneficiaryCode(year, sigil, maxSeq+1), nil
}

// NextDomiciliationCode computes the next domiciliation code. The sequence is
// global per year, not per org unit.
func (r *PostgresRepository) NextDomiciliationCode(ctx context.Context, year int) (string, error) {
	prefix := fmt.Sprintf("%d", year)
	var maxSeq int
	query := `SELECT COALESCE(MAX(CAST(RIGHT(code, 4) AS INTEGER)), 0) FROM domiciliations WHERE code LIKE $1 || '%'`
	if err := r.db.QueryRow(ctx, query, prefix).Scan(&maxSeq); err != nil {
		return "", err
	}
	return domain.DomiciliationCode(year, maxSeq+1), nil
}

// AddPaymentDetail appends a line item to a draft payment, generating the
// detail code inside the same transaction as the insert. The sequence spans all
// details under payments of the payment's period.
func (r *PostgresRepository) AddPaymentDetail(ctx context.Context, paymentCode, elementCode string, amount int64) (*domain.PaymentDetail, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var periodCode string
	var status domain.PaymentStatus
	err = tx.QueryRow(ctx, `SELECT period_code, status FROM payments WHERE code = $1 FOR UPDATE`, paymentCode).Scan(&periodCode, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	if status != domain.PaymentDraft {
		return nil, ErrPaymentNotEditable
	}

	var element domain.Element
	err = tx.QueryRow(ctx, `SELECT code, label, direction FROM elements WHERE code = $1`, elementCode).
		Scan(&element.Code, &element.Label, &element.Direction)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrElementNotFound
		}
		return nil, err
	}

	var maxSeq int
	seqQuery := `
		SELECT COALESCE(MAX(CAST(RIGHT(pd.code, 6) AS INTEGER)), 0)
		FROM payment_details pd
		JOIN payments p ON p.code = pd.payment_code
		WHERE p.period_code = $1
	`
	if err := tx.QueryRow(ctx, seqQuery, periodCode).Scan(&maxSeq); err != nil {
		return nil, err
	}

	detail := domain.PaymentDetail{
		Code:        domain.PaymentDetailCode(periodCode, maxSeq+1),
		PaymentCode: paymentCode,
		ElementCode: element.Code,
		Label:       element.Label,
		Direction:   element.Direction,
		Amount:      amount,
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO payment_details (code, payment_code, element_code, amount) VALUES ($1, $2, $3, $4)`,
		detail.Code, detail.PaymentCode, detail.ElementCode, detail.Amount,
	); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, detail.Code)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &detail, nil
}
