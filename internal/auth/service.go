package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Credential is the slice of an account record login needs. Disabled
// covers banned members and disabled stores/companies alike.
type Credential struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	Disabled     bool
}

// Directory resolves login accounts to credentials. The identity module
// implements it behind an adapter at wiring time.
type Directory interface {
	Credential(ctx context.Context, kind Kind, account string) (Credential, error)
}

// OTPEnqueuer hands one-time codes to the email delivery queue.
type OTPEnqueuer interface {
	EnqueueOTPEmail(ctx context.Context, email, code string) error
}

const otpTTL = 5 * time.Minute

// Service implements login, refresh rotation, and email one-time codes.
type Service struct {
	tokens    *TokenManager
	store     *TokenStore
	directory Directory
	enqueuer  OTPEnqueuer
	logger    *slog.Logger
}

// NewService constructs a Service. enqueuer may be nil when no mail
// delivery is configured; codes are then only logged.
func NewService(tokens *TokenManager, store *TokenStore, directory Directory, enqueuer OTPEnqueuer, logger *slog.Logger) *Service {
	return &Service{
		tokens:    tokens,
		store:     store,
		directory: directory,
		enqueuer:  enqueuer,
		logger:    logger,
	}
}

// Login verifies credentials and issues a token pair. Failures bump a
// redis counter; reaching the limit locks the account for the failure
// window.
func (s *Service) Login(ctx context.Context, kind Kind, account, password string) (TokenPair, error) {
	if !kind.Valid() {
		return TokenPair{}, ErrInvalidCredentials
	}
	locked, err := s.store.Locked(ctx, kind, account)
	if err != nil {
		return TokenPair{}, err
	}
	if locked {
		return TokenPair{}, ErrLocked
	}

	cred, err := s.directory.Credential(ctx, kind, account)
	if err != nil {
		s.countFailure(ctx, kind, account)
		return TokenPair{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		s.countFailure(ctx, kind, account)
		return TokenPair{}, ErrInvalidCredentials
	}
	if cred.Disabled {
		return TokenPair{}, ErrInvalidCredentials
	}

	if err := s.store.ClearFailures(ctx, kind, account); err != nil {
		s.logger.Warn("clear login failures", slog.Any("error", err))
	}
	return s.issue(ctx, Principal{ID: cred.ID, Kind: kind})
}

// Refresh rotates a refresh token: the presented token's jti is consumed
// and a new pair issued. Presenting an already-rotated token fails with
// ErrTokenReused.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	principal, jti, err := s.tokens.Validate(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.ConsumeRefresh(ctx, jti); err != nil {
		return TokenPair{}, err
	}
	return s.issue(ctx, principal)
}

// Logout revokes the refresh token so it cannot be rotated again.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	_, jti, err := s.tokens.Validate(refreshToken, TokenRefresh)
	if err != nil {
		return err
	}
	return s.store.RevokeRefresh(ctx, jti)
}

// RequestOTP issues a 6-digit code for the address and queues the email.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.store.SaveOTP(ctx, email, code, otpTTL); err != nil {
		return err
	}
	if s.enqueuer == nil {
		s.logger.Info("otp issued without delivery", slog.String("email", email))
		return nil
	}
	if err := s.enqueuer.EnqueueOTPEmail(ctx, email, code); err != nil {
		return fmt.Errorf("enqueue otp email: %w", err)
	}
	return nil
}

// VerifyOTP checks a submitted code.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	return s.store.VerifyOTP(ctx, email, code)
}

func (s *Service) issue(ctx context.Context, principal Principal) (TokenPair, error) {
	pair, err := s.tokens.GeneratePair(principal)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign tokens: %w", err)
	}
	if err := s.store.SaveRefresh(ctx, pair.RefreshJTI, principal, s.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, err
	}
	return pair, nil
}

func (s *Service) countFailure(ctx context.Context, kind Kind, account string) {
	count, err := s.store.RecordFailure(ctx, kind, account)
	if err != nil {
		s.logger.Warn("record login failure", slog.Any("error", err))
		return
	}
	if count >= MaxLoginFailures {
		s.logger.Warn("account locked after repeated failures",
			slog.String("kind", string(kind)), slog.String("account", account))
	}
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
