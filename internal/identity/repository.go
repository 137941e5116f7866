package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/billus/billus-server/internal/platform/db"
)

// Repository persists accounts in postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds a Repository over the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) CreateMember(ctx context.Context, m Member) (Member, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO members (member_name, email, account, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		m.Name, m.Email, m.Account, m.PasswordHash,
	).Scan(&m.ID, &m.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Member{}, ErrDuplicateAccount
	}
	if err != nil {
		return Member{}, fmt.Errorf("insert member: %w", err)
	}
	return m, nil
}

func (r *Repository) CreateStore(ctx context.Context, s Store) (Store, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO stores (store_name, biz_num, account, password_hash, price, fcm_token)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		s.Name, s.BizNum, s.Account, s.PasswordHash, s.Price, s.FCMToken,
	).Scan(&s.ID, &s.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Store{}, ErrDuplicateAccount
	}
	if err != nil {
		return Store{}, fmt.Errorf("insert store: %w", err)
	}
	s.Enabled = true
	return s, nil
}

func (r *Repository) CreateCompany(ctx context.Context, c Company) (Company, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO companies (company_name, biz_num, account, password_hash)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		c.Name, c.BizNum, c.Account, c.PasswordHash,
	).Scan(&c.ID, &c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Company{}, ErrDuplicateAccount
	}
	if err != nil {
		return Company{}, fmt.Errorf("insert company: %w", err)
	}
	c.Enabled = true
	return c, nil
}

func (r *Repository) FindMember(ctx context.Context, memberID uuid.UUID) (Member, error) {
	return r.scanMember(r.pool.QueryRow(ctx,
		`SELECT id, member_name, email, account, password_hash, company_id, banned, created_at
		 FROM members WHERE id = $1`, memberID))
}

// MemberByAccount resolves a member from their login account.
func (r *Repository) MemberByAccount(ctx context.Context, account string) (Member, error) {
	return r.scanMember(r.pool.QueryRow(ctx,
		`SELECT id, member_name, email, account, password_hash, company_id, banned, created_at
		 FROM members WHERE account = $1`, account))
}

func (r *Repository) scanMember(row pgx.Row) (Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Account, &m.PasswordHash,
		&m.CompanyID, &m.Banned, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, ErrMemberNotFound
	}
	if err != nil {
		return Member{}, fmt.Errorf("scan member: %w", err)
	}
	return m, nil
}

func (r *Repository) FindStore(ctx context.Context, storeID uuid.UUID) (Store, error) {
	return r.scanStore(r.pool.QueryRow(ctx,
		`SELECT id, store_name, biz_num, account, password_hash, price, fcm_token, enabled, created_at
		 FROM stores WHERE id = $1`, storeID))
}

func (r *Repository) StoreByAccount(ctx context.Context, account string) (Store, error) {
	return r.scanStore(r.pool.QueryRow(ctx,
		`SELECT id, store_name, biz_num, account, password_hash, price, fcm_token, enabled, created_at
		 FROM stores WHERE account = $1`, account))
}

func (r *Repository) scanStore(row pgx.Row) (Store, error) {
	var s Store
	err := row.Scan(&s.ID, &s.Name, &s.BizNum, &s.Account, &s.PasswordHash,
		&s.Price, &s.FCMToken, &s.Enabled, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, ErrStoreNotFound
	}
	if err != nil {
		return Store{}, fmt.Errorf("scan store: %w", err)
	}
	return s, nil
}

func (r *Repository) FindCompany(ctx context.Context, companyID uuid.UUID) (Company, error) {
	return r.scanCompany(r.pool.QueryRow(ctx,
		`SELECT id, company_name, biz_num, account, password_hash, enabled, created_at
		 FROM companies WHERE id = $1`, companyID))
}

func (r *Repository) CompanyByAccount(ctx context.Context, account string) (Company, error) {
	return r.scanCompany(r.pool.QueryRow(ctx,
		`SELECT id, company_name, biz_num, account, password_hash, enabled, created_at
		 FROM companies WHERE account = $1`, account))
}

func (r *Repository) scanCompany(row pgx.Row) (Company, error) {
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.BizNum, &c.Account, &c.PasswordHash,
		&c.Enabled, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Company{}, ErrCompanyNotFound
	}
	if err != nil {
		return Company{}, fmt.Errorf("scan company: %w", err)
	}
	return c, nil
}

// AdminByAccount resolves an admin from their login account.
func (r *Repository) AdminByAccount(ctx context.Context, account string) (Admin, error) {
	var a Admin
	err := r.pool.QueryRow(ctx,
		`SELECT id, account, password_hash, created_at FROM admins WHERE account = $1`,
		account,
	).Scan(&a.ID, &a.Account, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Admin{}, ErrAdminNotFound
	}
	if err != nil {
		return Admin{}, fmt.Errorf("scan admin: %w", err)
	}
	return a, nil
}

// ListCompanies returns enabled companies, name ascending. Members browse
// this list when applying.
func (r *Repository) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, company_name, biz_num, account, password_hash, enabled, created_at
		 FROM companies WHERE enabled ORDER BY company_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.BizNum, &c.Account, &c.PasswordHash,
			&c.Enabled, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListStores returns enabled stores, name ascending.
func (r *Repository) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, store_name, biz_num, account, password_hash, price, fcm_token, enabled, created_at
		 FROM stores WHERE enabled ORDER BY store_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	var out []Store
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.Name, &s.BizNum, &s.Account, &s.PasswordHash,
			&s.Price, &s.FCMToken, &s.Enabled, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateStoreFCMToken stores the push token registered by the store app.
func (r *Repository) UpdateStoreFCMToken(ctx context.Context, storeID uuid.UUID, token string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE stores SET fcm_token = $2 WHERE id = $1`, storeID, token)
	if err != nil {
		return fmt.Errorf("update fcm token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStoreNotFound
	}
	return nil
}
