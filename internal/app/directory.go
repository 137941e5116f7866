package app

import (
	"context"

	"github.com/billus/billus-server/internal/auth"
	"github.com/billus/billus-server/internal/identity"
)

// AccountDirectory adapts the identity repository to the auth login
// contract.
type AccountDirectory struct {
	repo *identity.Repository
}

// NewAccountDirectory constructs an AccountDirectory.
func NewAccountDirectory(repo *identity.Repository) *AccountDirectory {
	return &AccountDirectory{repo: repo}
}

// Credential resolves the account for the given principal kind.
func (d *AccountDirectory) Credential(ctx context.Context, kind auth.Kind, account string) (auth.Credential, error) {
	switch kind {
	case auth.KindAdmin:
		admin, err := d.repo.AdminByAccount(ctx, account)
		if err != nil {
			return auth.Credential{}, err
		}
		return auth.Credential{ID: admin.ID, PasswordHash: admin.PasswordHash}, nil
	case auth.KindMember:
		member, err := d.repo.MemberByAccount(ctx, account)
		if err != nil {
			return auth.Credential{}, err
		}
		return auth.Credential{
			ID:           member.ID,
			Email:        member.Email,
			PasswordHash: member.PasswordHash,
			Disabled:     member.Banned,
		}, nil
	case auth.KindStore:
		store, err := d.repo.StoreByAccount(ctx, account)
		if err != nil {
			return auth.Credential{}, err
		}
		return auth.Credential{
			ID:           store.ID,
			PasswordHash: store.PasswordHash,
			Disabled:     !store.Enabled,
		}, nil
	case auth.KindCompany:
		company, err := d.repo.CompanyByAccount(ctx, account)
		if err != nil {
			return auth.Credential{}, err
		}
		return auth.Credential{
			ID:           company.ID,
			PasswordHash: company.PasswordHash,
			Disabled:     !company.Enabled,
		}, nil
	}
	return auth.Credential{}, auth.ErrInvalidCredentials
}
