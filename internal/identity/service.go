package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RepositoryPort defines the persistence surface the service needs.
type RepositoryPort interface {
	CreateMember(ctx context.Context, m Member) (Member, error)
	CreateStore(ctx context.Context, s Store) (Store, error)
	CreateCompany(ctx context.Context, c Company) (Company, error)
	FindMember(ctx context.Context, memberID uuid.UUID) (Member, error)
	FindStore(ctx context.Context, storeID uuid.UUID) (Store, error)
	FindCompany(ctx context.Context, companyID uuid.UUID) (Company, error)
	ListCompanies(ctx context.Context) ([]Company, error)
	ListStores(ctx context.Context) ([]Store, error)
	UpdateStoreFCMToken(ctx context.Context, storeID uuid.UUID, token string) error
}

// RegisterMemberInput carries a member signup.
type RegisterMemberInput struct {
	Name     string
	Email    string
	Account  string
	Password string
}

// RegisterStoreInput carries a store signup.
type RegisterStoreInput struct {
	Name     string
	BizNum   string
	Account  string
	Password string
	Price    int64
	FCMToken string
}

// RegisterCompanyInput carries a company signup.
type RegisterCompanyInput struct {
	Name     string
	BizNum   string
	Account  string
	Password string
}

// Service registers and looks up accounts. Passwords are hashed here;
// nothing below this layer sees plaintext.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) RegisterMember(ctx context.Context, in RegisterMemberInput) (Member, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return Member{}, err
	}
	member, err := s.repo.CreateMember(ctx, Member{
		Name:         in.Name,
		Email:        in.Email,
		Account:      in.Account,
		PasswordHash: hash,
	})
	if err != nil {
		return Member{}, err
	}
	s.logger.Info("member registered", slog.String("member_id", member.ID.String()))
	return member, nil
}

func (s *Service) RegisterStore(ctx context.Context, in RegisterStoreInput) (Store, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return Store{}, err
	}
	store, err := s.repo.CreateStore(ctx, Store{
		Name:         in.Name,
		BizNum:       in.BizNum,
		Account:      in.Account,
		PasswordHash: hash,
		Price:        in.Price,
		FCMToken:     in.FCMToken,
	})
	if err != nil {
		return Store{}, err
	}
	s.logger.Info("store registered", slog.String("store_id", store.ID.String()))
	return store, nil
}

func (s *Service) RegisterCompany(ctx context.Context, in RegisterCompanyInput) (Company, error) {
	hash, err := hashPassword(in.Password)
	if err != nil {
		return Company{}, err
	}
	company, err := s.repo.CreateCompany(ctx, Company{
		Name:         in.Name,
		BizNum:       in.BizNum,
		Account:      in.Account,
		PasswordHash: hash,
	})
	if err != nil {
		return Company{}, err
	}
	s.logger.Info("company registered", slog.String("company_id", company.ID.String()))
	return company, nil
}

func (s *Service) GetMember(ctx context.Context, memberID uuid.UUID) (Member, error) {
	return s.repo.FindMember(ctx, memberID)
}

func (s *Service) GetStore(ctx context.Context, storeID uuid.UUID) (Store, error) {
	return s.repo.FindStore(ctx, storeID)
}

func (s *Service) GetCompany(ctx context.Context, companyID uuid.UUID) (Company, error) {
	return s.repo.FindCompany(ctx, companyID)
}

func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	return s.repo.ListCompanies(ctx)
}

func (s *Service) ListStores(ctx context.Context) ([]Store, error) {
	return s.repo.ListStores(ctx)
}

func (s *Service) UpdateStoreToken(ctx context.Context, storeID uuid.UUID, token string) error {
	return s.repo.UpdateStoreFCMToken(ctx, storeID, token)
}

func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
