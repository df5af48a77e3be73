/**
 * @description
 * Worklist read side: pending-approval queries over the movements table. An
 * item is pending while its subject sits in submitted/validated state; the
 * submission movement is what the approver sees, enriched with display labels
 * from the reference tables (functions, grades, beneficiary_types, banks,
 * branches).
 *
 * The level filter implements the approval-chain asymmetry: second-tier
 * approvers only see movements recorded at level 1 that originate from their
 * own org unit; everyone else sees all pending items.
 */

package store

import (
	"context"

	"github.com/Miriol236/GESTION-QP-sub001/internal/domain"
)

// worklistScope renders the shared filter clause. RestrictToLevel == 0 disables
// scoping entirely.
const worklistScope = `
	AND ($2 = 0 OR (
		m.level = $2
		AND EXISTS (SELECT 1 FROM users u WHERE u.id = m.user_id AND u.regie_code = $3)
	))
`

// PendingBeneficiaryMovements lists submission movements of beneficiaries still
// awaiting approval, scoped by the caller's filter.
func (r *PostgresRepository) PendingBeneficiaryMovements(ctx context.Context, filter domain.WorklistFilter) ([]domain.BeneficiaryWorkItem, error) {
	query := `
		SELECT m.code, b.code, b.name,
		       COALESCE(f.label, ''), COALESCE(g.label, ''), COALESCE(t.label, ''),
		       m.level, m.user_id, m.movement_date
		FROM movements m
		JOIN beneficiaries b ON b.code = m.beneficiary_code
		LEFT JOIN functions f ON f.code = b.function_code
		LEFT JOIN grades g ON g.code = b.grade_code
		LEFT JOIN beneficiary_types t ON t.code = b.type_code
		WHERE m.movement_type = $1 AND b.status = ` + "1" + worklistScope + `
		ORDER BY m.code
	`
	rows, err := r.db.Query(ctx, query, string(domain.MovementBeneficiarySubmission), filter.RestrictToLevel, filter.OrgUnitCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.BeneficiaryWorkItem
	for rows.Next() {
		var it domain.BeneficiaryWorkItem
		if err := rows.Scan(
			&it.MovementCode, &it.SubjectCode, &it.Name,
			&it.FunctionLabel, &it.GradeLabel, &it.TypeLabel,
			&it.Level, &it.UserID, &it.Date,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// PendingDomiciliationMovements lists submission movements of domiciliations
// still awaiting approval, with the audit snapshot's bank references resolved
// to display labels.
func (r *PostgresRepository) PendingDomiciliationMovements(ctx context.Context, filter domain.WorklistFilter) ([]domain.DomiciliationWorkItem, error) {
	query := `
		SELECT m.code, d.code, m.name,
		       COALESCE(bk.label, COALESCE(m.bank_code, '')),
		       COALESCE(br.label, COALESCE(m.branch_code, '')),
		       COALESCE(m.account_number, ''), COALESCE(m.rib_key, ''),
		       m.level, m.user_id, m.movement_date
		FROM movements m
		JOIN domiciliations d ON d.code = m.domiciliation_code
		LEFT JOIN banks bk ON bk.code = m.bank_code
		LEFT JOIN branches br ON br.code = m.branch_code
		WHERE m.movement_type = $1 AND d.status = ` + "1" + worklistScope + `
		ORDER BY m.code
	`
	rows, err := r.db.Query(ctx, query, string(domain.MovementDomiciliationSubmission), filter.RestrictToLevel, filter.OrgUnitCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.DomiciliationWorkItem
	for rows.Next() {
		var it domain.DomiciliationWorkItem
		if err := rows.Scan(
			&it.MovementCode, &it.SubjectCode, &it.Name,
			&it.BankLabel, &it.BranchLabel, &it.AccountNumber, &it.RIBKey,
			&it.Level, &it.UserID, &it.Date,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// PendingPaymentMovements lists submission movements of validated payments
// still awaiting final approval. Net amounts are computed from the line items
// on read.
func (r *PostgresRepository) PendingPaymentMovements(ctx context.Context, filter domain.WorklistFilter) ([]domain.PaymentWorkItem, error) {
	query := `
		SELECT m.code, p.code, p.beneficiary_name, p.period_code,
		       COALESCE((
		           SELECT SUM(CASE WHEN e.direction = 2 THEN -pd.amount ELSE pd.amount END)
		           FROM payment_details pd
		           JOIN elements e ON e.code = pd.element_code
		           WHERE pd.payment_code = p.code
		       ), 0),
		       m.level, m.user_id, m.movement_date
		FROM movements m
		JOIN payments p ON p.code = m.payment_code
		WHERE m.movement_type = $1 AND p.status = ` + "1" + worklistScope + `
		ORDER BY m.code
	`
	rows, err := r.db.Query(ctx, query, string(domain.MovementPaymentSubmission), filter.RestrictToLevel, filter.OrgUnitCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.PaymentWorkItem
	for rows.Next() {
		var it domain.PaymentWorkItem
		if err := rows.Scan(
			&it.MovementCode, &it.SubjectCode, &it.Name, &it.PeriodCode, &it.NetAmount,
			&it.Level, &it.UserID, &it.Date,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
