package affiliation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billus/billus-server/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence for the ledger.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepositoryPort) error) error {
	if r == nil || r.pool == nil {
		return fmt.Errorf("affiliation: repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// FindCompany loads the ledger view of a company.
func (r *Repository) FindCompany(ctx context.Context, companyID uuid.UUID) (CompanyInfo, error) {
	var c CompanyInfo
	err := r.pool.QueryRow(ctx,
		`SELECT id, company_name, enabled FROM companies WHERE id = $1`,
		companyID).Scan(&c.ID, &c.Name, &c.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CompanyInfo{}, ErrCompanyNotFound
		}
		return CompanyInfo{}, err
	}
	return c, nil
}

// FindStore loads the ledger view of a store.
func (r *Repository) FindStore(ctx context.Context, storeID uuid.UUID) (StoreInfo, error) {
	var s StoreInfo
	err := r.pool.QueryRow(ctx,
		`SELECT id, store_name, enabled FROM stores WHERE id = $1`,
		storeID).Scan(&s.ID, &s.Name, &s.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoreInfo{}, ErrStoreNotFound
		}
		return StoreInfo{}, err
	}
	return s, nil
}

// HasPendingRequest reports whether the member holds any pending request.
func (r *Repository) HasPendingRequest(ctx context.Context, memberID uuid.UUID) (bool, error) {
	return hasPendingRequest(ctx, r.pool, memberID)
}

// FindPending returns the pending request for (companyID, memberID).
func (r *Repository) FindPending(ctx context.Context, companyID, memberID uuid.UUID) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx,
		`SELECT id, member_id, company_id, store_id, is_approved, is_rejected, is_off, created_at
		 FROM applies
		 WHERE member_id = $1 AND company_id = $2
		   AND NOT is_approved AND NOT is_rejected AND NOT is_off`,
		memberID, companyID))
}

// FindApproved returns the live approved request for (companyID, memberID).
func (r *Repository) FindApproved(ctx context.Context, companyID, memberID uuid.UUID) (Request, error) {
	return scanRequest(r.pool.QueryRow(ctx,
		`SELECT id, member_id, company_id, store_id, is_approved, is_rejected, is_off, created_at
		 FROM applies
		 WHERE member_id = $1 AND company_id = $2
		   AND is_approved AND NOT is_off`,
		memberID, companyID))
}

// PendingForCompany lists applicants awaiting a decision at the company.
func (r *Repository) PendingForCompany(ctx context.Context, companyID uuid.UUID) ([]Applicant, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.id, m.id, m.member_name, a.created_at
		 FROM applies a
		 JOIN members m ON m.id = a.member_id
		 WHERE a.company_id = $1
		   AND NOT a.is_approved AND NOT a.is_rejected AND NOT a.is_off
		 ORDER BY a.created_at ASC`,
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var applicants []Applicant
	for rows.Next() {
		var a Applicant
		if err := rows.Scan(&a.ApplyID, &a.MemberID, &a.MemberName, &a.AppliedAt); err != nil {
			return nil, err
		}
		applicants = append(applicants, a)
	}
	return applicants, rows.Err()
}

// MemberCompany returns the member's current company pointer, nil when
// unaffiliated.
func (r *Repository) MemberCompany(ctx context.Context, memberID uuid.UUID) (*uuid.UUID, error) {
	var companyID *uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT company_id FROM members WHERE id = $1`, memberID).Scan(&companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return companyID, nil
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) HasPendingRequest(ctx context.Context, memberID uuid.UUID) (bool, error) {
	return hasPendingRequest(ctx, t.tx, memberID)
}

func (t *txRepository) InsertRequest(ctx context.Context, memberID, companyID uuid.UUID, storeID *uuid.UUID) (Request, error) {
	req, err := scanRequest(t.tx.QueryRow(ctx,
		`INSERT INTO applies (member_id, company_id, store_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, member_id, company_id, store_id, is_approved, is_rejected, is_off, created_at`,
		memberID, companyID, storeID))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Request{}, ErrDuplicateApply
		}
		return Request{}, err
	}
	return req, nil
}

// The transition updates re-assert the prior state in the WHERE clause.
// A request resolved by a concurrent transaction matches zero rows and
// surfaces as ErrApplyNotFound instead of being replayed.

func (t *txRepository) MarkApproved(ctx context.Context, applyID int64) error {
	return t.exec(ctx,
		`UPDATE applies SET is_approved = TRUE
		 WHERE id = $1 AND NOT is_approved AND NOT is_rejected AND NOT is_off`,
		applyID)
}

func (t *txRepository) MarkRetired(ctx context.Context, applyID int64) error {
	return t.exec(ctx,
		`UPDATE applies SET is_approved = FALSE, is_rejected = TRUE, is_off = TRUE
		 WHERE id = $1 AND is_approved AND NOT is_off`,
		applyID)
}

func (t *txRepository) MarkOff(ctx context.Context, applyID int64) error {
	return t.exec(ctx,
		`UPDATE applies SET is_off = TRUE
		 WHERE id = $1 AND NOT is_approved AND NOT is_rejected AND NOT is_off`,
		applyID)
}

func (t *txRepository) OffMemberRequests(ctx context.Context, memberID, companyID uuid.UUID) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE applies SET is_off = TRUE
		 WHERE member_id = $1 AND company_id = $2 AND NOT is_rejected AND NOT is_off`,
		memberID, companyID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) OffPendingForCompany(ctx context.Context, companyID uuid.UUID) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE applies SET is_off = TRUE
		 WHERE company_id = $1 AND NOT is_approved AND NOT is_rejected AND NOT is_off`,
		companyID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) OffPendingForStore(ctx context.Context, storeID uuid.UUID) (int64, error) {
	tag, err := t.tx.Exec(ctx,
		`UPDATE applies SET is_off = TRUE
		 WHERE store_id = $1 AND NOT is_approved AND NOT is_rejected AND NOT is_off`,
		storeID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) SetMemberCompany(ctx context.Context, memberID uuid.UUID, companyID *uuid.UUID) error {
	return t.exec(ctx, `UPDATE members SET company_id = $2 WHERE id = $1`, memberID, companyID)
}

func (t *txRepository) SetCompanyEnabled(ctx context.Context, companyID uuid.UUID, enabled bool) error {
	return t.exec(ctx, `UPDATE companies SET enabled = $2 WHERE id = $1`, companyID, enabled)
}

func (t *txRepository) SetStoreEnabled(ctx context.Context, storeID uuid.UUID, enabled bool) error {
	return t.exec(ctx, `UPDATE stores SET enabled = $2 WHERE id = $1`, storeID, enabled)
}

func (t *txRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrApplyNotFound
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func hasPendingRequest(ctx context.Context, q queryRower, memberID uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM applies
		   WHERE member_id = $1 AND NOT is_approved AND NOT is_rejected AND NOT is_off
		 )`, memberID).Scan(&exists)
	return exists, err
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	err := row.Scan(&req.ID, &req.MemberID, &req.CompanyID, &req.StoreID,
		&req.Approved, &req.Rejected, &req.Off, &req.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, ErrApplyNotFound
		}
		return Request{}, err
	}
	return req, nil
}
