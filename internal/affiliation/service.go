package affiliation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort defines the data access surface of the ledger.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepositoryPort) error) error

	FindCompany(ctx context.Context, companyID uuid.UUID) (CompanyInfo, error)
	FindStore(ctx context.Context, storeID uuid.UUID) (StoreInfo, error)
	HasPendingRequest(ctx context.Context, memberID uuid.UUID) (bool, error)
	FindPending(ctx context.Context, companyID, memberID uuid.UUID) (Request, error)
	FindApproved(ctx context.Context, companyID, memberID uuid.UUID) (Request, error)
	PendingForCompany(ctx context.Context, companyID uuid.UUID) ([]Applicant, error)
	MemberCompany(ctx context.Context, memberID uuid.UUID) (*uuid.UUID, error)
}

// TxRepositoryPort exposes the write operations available inside one
// transaction. State transitions that touch both the request and the
// member record run as a unit through WithTx.
type TxRepositoryPort interface {
	HasPendingRequest(ctx context.Context, memberID uuid.UUID) (bool, error)
	InsertRequest(ctx context.Context, memberID, companyID uuid.UUID, storeID *uuid.UUID) (Request, error)
	MarkApproved(ctx context.Context, applyID int64) error
	MarkRetired(ctx context.Context, applyID int64) error
	MarkOff(ctx context.Context, applyID int64) error
	OffMemberRequests(ctx context.Context, memberID, companyID uuid.UUID) (int64, error)
	OffPendingForCompany(ctx context.Context, companyID uuid.UUID) (int64, error)
	OffPendingForStore(ctx context.Context, storeID uuid.UUID) (int64, error)
	SetMemberCompany(ctx context.Context, memberID uuid.UUID, companyID *uuid.UUID) error
	SetCompanyEnabled(ctx context.Context, companyID uuid.UUID, enabled bool) error
	SetStoreEnabled(ctx context.Context, storeID uuid.UUID, enabled bool) error
}

// Service enforces the affiliation request lifecycle.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ApplyToCompany records a new pending request for memberID at companyID.
// A member may hold only one pending request across all companies at a
// time. Approval releases the slot: an affiliated member may apply to
// another company, and approval there moves them.
func (s *Service) ApplyToCompany(ctx context.Context, memberID, companyID uuid.UUID) error {
	pending, err := s.repo.HasPendingRequest(ctx, memberID)
	if err != nil {
		return err
	}
	if pending {
		return ErrDuplicateApply
	}

	company, err := s.repo.FindCompany(ctx, companyID)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepositoryPort) error {
		// Re-check under the transaction; a concurrent apply may have
		// slipped in between the first check and this insert. The
		// partial unique index on pending requests backs this up.
		pending, err := tx.HasPendingRequest(ctx, memberID)
		if err != nil {
			return err
		}
		if pending {
			return ErrDuplicateApply
		}
		_, err = tx.InsertRequest(ctx, memberID, company.ID, nil)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("affiliation apply created",
		slog.String("member_id", memberID.String()),
		slog.String("company_id", companyID.String()))
	return nil
}

// ApproveMember approves the pending request for (memberID, companyID) and
// sets the member's current company. Both writes commit atomically; a second
// call finds no pending request and fails with ErrApplyNotFound. The update
// itself re-checks the pending state, so a request rejected or withdrawn
// between the lookup and the transaction fails the same way.
func (s *Service) ApproveMember(ctx context.Context, companyID, memberID uuid.UUID) error {
	req, err := s.repo.FindPending(ctx, companyID, memberID)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepositoryPort) error {
		if err := tx.MarkApproved(ctx, req.ID); err != nil {
			return err
		}
		return tx.SetMemberCompany(ctx, memberID, &companyID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("affiliation approved",
		slog.String("member_id", memberID.String()),
		slog.String("company_id", companyID.String()))
	return nil
}

// RejectApply declines a still-pending request without approving it.
func (s *Service) RejectApply(ctx context.Context, companyID, memberID uuid.UUID) error {
	req, err := s.repo.FindPending(ctx, companyID, memberID)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepositoryPort) error {
		return tx.MarkOff(ctx, req.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("affiliation apply rejected",
		slog.String("member_id", memberID.String()),
		slog.String("company_id", companyID.String()))
	return nil
}

// DisableMember retires an approved registration: the request becomes
// rejected and soft deleted, and the member is detached from the company.
func (s *Service) DisableMember(ctx context.Context, companyID, memberID uuid.UUID) error {
	req, err := s.repo.FindApproved(ctx, companyID, memberID)
	if err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepositoryPort) error {
		if err := tx.MarkRetired(ctx, req.ID); err != nil {
			return err
		}
		return tx.SetMemberCompany(ctx, memberID, nil)
	})
	if err != nil {
		return err
	}

	s.logger.Info("affiliation member retired",
		slog.String("member_id", memberID.String()),
		slog.String("company_id", companyID.String()))
	return nil
}

// QuitCompany withdraws the member from their current company and closes
// every live request between the two, the approved one included.
func (s *Service) QuitCompany(ctx context.Context, memberID uuid.UUID) error {
	companyID, err := s.repo.MemberCompany(ctx, memberID)
	if err != nil {
		return err
	}
	if companyID == nil {
		return ErrNoCompany
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepositoryPort) error {
		if err := tx.SetMemberCompany(ctx, memberID, nil); err != nil {
			return err
		}
		_, err := tx.OffMemberRequests(ctx, memberID, *companyID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("affiliation quit",
		slog.String("member_id", memberID.String()),
		slog.String("company_id", companyID.String()))
	return nil
}

// DisableCompany deactivates a company and soft-deletes its still-pending
// requests. Approved registrations are left untouched.
func (s *Service) DisableCompany(ctx context.Context, companyID uuid.UUID) error {
	company, err := s.repo.FindCompany(ctx, companyID)
	if err != nil {
		return err
	}

	var closed int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepositoryPort) error {
		if err := tx.SetCompanyEnabled(ctx, company.ID, false); err != nil {
			return err
		}
		closed, err = tx.OffPendingForCompany(ctx, company.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("company disabled",
		slog.String("company_id", companyID.String()),
		slog.Int64("pending_closed", closed))
	return nil
}

// DisableStore deactivates a store and soft-deletes its still-pending
// requests.
func (s *Service) DisableStore(ctx context.Context, storeID uuid.UUID) error {
	store, err := s.repo.FindStore(ctx, storeID)
	if err != nil {
		return err
	}

	var closed int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepositoryPort) error {
		if err := tx.SetStoreEnabled(ctx, store.ID, false); err != nil {
			return err
		}
		closed, err = tx.OffPendingForStore(ctx, store.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("store disabled",
		slog.String("store_id", storeID.String()),
		slog.Int64("pending_closed", closed))
	return nil
}

// PendingRequests lists the applicants awaiting a decision at companyID.
func (s *Service) PendingRequests(ctx context.Context, companyID uuid.UUID) ([]Applicant, error) {
	return s.repo.PendingForCompany(ctx, companyID)
}

// LookupCompany checks a company identifier before applying.
func (s *Service) LookupCompany(ctx context.Context, companyID uuid.UUID) (CompanyStatus, error) {
	company, err := s.repo.FindCompany(ctx, companyID)
	switch {
	case err == nil:
	case errors.Is(err, ErrCompanyNotFound):
		return CompanyUnknown, nil
	default:
		return 0, err
	}
	if company.Enabled {
		return CompanyActive, nil
	}
	return CompanyDisabled, nil
}
