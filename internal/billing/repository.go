package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billus/billus-server/internal/platform/db"
)

// PivotCell is one (entity, date) count produced by the grouped pivot
// query before it is spread into day columns.
type PivotCell struct {
	Label  string
	Date   string
	Count  int64
	Amount int64
}

// Repository provides PostgreSQL backed persistence for bills.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository using the provided pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindStore loads the billing view of a store.
func (r *Repository) FindStore(ctx context.Context, storeID uuid.UUID) (StoreInfo, error) {
	var s StoreInfo
	var token *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, store_name, price, fcm_token, enabled FROM stores WHERE id = $1`,
		storeID).Scan(&s.ID, &s.Name, &s.Price, &token, &s.Enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoreInfo{}, ErrStoreNotFound
		}
		return StoreInfo{}, err
	}
	if token != nil {
		s.FCMToken = *token
	}
	return s, nil
}

// FindMember loads the billing view of a member.
func (r *Repository) FindMember(ctx context.Context, memberID uuid.UUID) (MemberInfo, error) {
	var m MemberInfo
	err := r.pool.QueryRow(ctx,
		`SELECT id, member_name, company_id FROM members WHERE id = $1`,
		memberID).Scan(&m.ID, &m.Name, &m.CompanyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MemberInfo{}, ErrMemberNotFound
		}
		return MemberInfo{}, err
	}
	return m, nil
}

// CompanyName resolves a company display name.
func (r *Repository) CompanyName(ctx context.Context, companyID uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx,
		`SELECT company_name FROM companies WHERE id = $1`, companyID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoCompany
		}
		return "", err
	}
	return name, nil
}

// CreateWithVisitors inserts the member bill plus the requested number of
// visitor bills in one transaction and returns the member bill.
func (r *Repository) CreateWithVisitors(ctx context.Context, bill Bill, visitors int) (Bill, error) {
	var created Bill
	err := db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`INSERT INTO bills (store_id, company_id, member_id, date)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id, store_id, company_id, member_id, date, created_at`,
			bill.StoreID, bill.CompanyID, bill.MemberID, bill.Date)
		if err := row.Scan(&created.ID, &created.StoreID, &created.CompanyID,
			&created.MemberID, &created.Date, &created.CreatedAt); err != nil {
			return err
		}
		for i := 0; i < visitors; i++ {
			if _, err := tx.Exec(ctx,
				`INSERT INTO bills (store_id, company_id, member_id, date)
				 VALUES ($1, $2, NULL, $3)`,
				bill.StoreID, bill.CompanyID, bill.Date); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return created, nil
}

// Sum totals store prices over the scope and window.
func (r *Repository) Sum(ctx context.Context, scope Scope, period Period) (Summary, error) {
	scopeCol, err := scopeColumn(scope.Kind)
	if err != nil {
		return Summary{}, err
	}
	sql := fmt.Sprintf(
		`SELECT COALESCE(SUM(s.price), 0), COUNT(*)
		 FROM bills b
		 JOIN stores s ON s.id = b.store_id
		 WHERE %s = $1 AND %s`, scopeCol, datePredicate(period, "$2"))

	var sum Summary
	if err := r.pool.QueryRow(ctx, sql, scope.ID, period.Value).Scan(&sum.Total, &sum.Count); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

// GroupedTotals sums prices per group label over the scope and window,
// ordered by label ascending.
func (r *Repository) GroupedTotals(ctx context.Context, scope Scope, period Period, groupBy GroupKey) ([]GroupTotal, error) {
	scopeCol, err := scopeColumn(scope.Kind)
	if err != nil {
		return nil, err
	}
	labelExpr, joinClause, err := labelJoin(groupBy)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(
		`SELECT %s AS label, COALESCE(SUM(s.price), 0)
		 FROM bills b
		 JOIN stores s ON s.id = b.store_id
		 %s
		 WHERE %s = $1 AND %s
		 GROUP BY label
		 ORDER BY label ASC`, labelExpr, joinClause, scopeCol, datePredicate(period, "$2"))

	rows, err := r.pool.Query(ctx, sql, scope.ID, period.Value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []GroupTotal
	for rows.Next() {
		var t GroupTotal
		if err := rows.Scan(&t.Label, &t.Total); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// PivotCells counts bills per (entity, date) over the scoped month, the
// raw material the pivot matrix is built from.
func (r *Repository) PivotCells(ctx context.Context, scope Scope, month Period, entity GroupKey) ([]PivotCell, error) {
	scopeCol, err := scopeColumn(scope.Kind)
	if err != nil {
		return nil, err
	}
	labelExpr, joinClause, err := labelJoin(entity)
	if err != nil {
		return nil, err
	}
	sql := fmt.Sprintf(
		`SELECT %s AS label, b.date, COUNT(*), COALESCE(SUM(s.price), 0)
		 FROM bills b
		 JOIN stores s ON s.id = b.store_id
		 %s
		 WHERE %s = $1 AND %s
		 GROUP BY label, b.date
		 ORDER BY label ASC, b.date ASC`, labelExpr, joinClause, scopeCol, datePredicate(month, "$2"))

	rows, err := r.pool.Query(ctx, sql, scope.ID, month.Value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cells []PivotCell
	for rows.Next() {
		var c PivotCell
		if err := rows.Scan(&c.Label, &c.Date, &c.Count, &c.Amount); err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// MemberMonthBills lists a member's bills within the month, most recent
// last.
func (r *Repository) MemberMonthBills(ctx context.Context, memberID uuid.UUID, month Period) ([]BillDetail, error) {
	sql := fmt.Sprintf(
		`SELECT s.store_name, m.member_name, c.company_name, s.price, b.date
		 FROM bills b
		 JOIN stores s ON s.id = b.store_id
		 JOIN companies c ON c.id = b.company_id
		 JOIN members m ON m.id = b.member_id
		 WHERE b.member_id = $1 AND %s
		 ORDER BY b.date ASC, b.id ASC`, datePredicate(month, "$2"))

	rows, err := r.pool.Query(ctx, sql, memberID, month.Value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []BillDetail
	for rows.Next() {
		var d BillDetail
		if err := rows.Scan(&d.StoreName, &d.MemberName, &d.CompanyName, &d.Price, &d.Date); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

func scopeColumn(kind ScopeKind) (string, error) {
	switch kind {
	case ScopeStore:
		return "b.store_id", nil
	case ScopeCompany:
		return "b.company_id", nil
	case ScopeMember:
		return "b.member_id", nil
	}
	return "", fmt.Errorf("%w: unknown scope %q", ErrInvalidScope, kind)
}

func labelJoin(groupBy GroupKey) (labelExpr, joinClause string, err error) {
	switch groupBy {
	case GroupByStore:
		return "s.store_name", "", nil
	case GroupByCompany:
		return "c.company_name", "JOIN companies c ON c.id = b.company_id", nil
	case GroupByMember:
		return fmt.Sprintf("COALESCE(m.member_name, '%s')", VisitorLabel),
			"LEFT JOIN members m ON m.id = b.member_id", nil
	}
	return "", "", fmt.Errorf("%w: unknown group key %q", ErrInvalidScope, groupBy)
}

// datePredicate renders the window filter. Period values are validated
// before they reach the repository; the value itself is always bound as a
// parameter.
func datePredicate(period Period, placeholder string) string {
	if period.Kind == PeriodDay {
		return fmt.Sprintf("b.date = %s", placeholder)
	}
	return fmt.Sprintf("b.date LIKE %s || '%%'", placeholder)
}
