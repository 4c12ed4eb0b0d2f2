package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"can-collector/internal/domain"
	"can-collector/internal/repository"
)

var (
	// ErrInvalidVoucherType is returned for redemption requests outside {10k, 25k}.
	ErrInvalidVoucherType = errors.New("invalid voucher type")
	// ErrInsufficientPoints is returned when the caller's balance does not
	// cover the requested voucher.
	ErrInsufficientPoints = errors.New("not enough points to redeem voucher")
)

// casRetries bounds the optimistic-concurrency retry loop on counter updates.
const casRetries = 5

// DepositService covers the can-deposit flow: collection sessions, per-can
// accrual and voucher redemption.
type DepositService interface {
	StartCollection() string
	CanDetected(ctx context.Context, userID int64) (*domain.User, error)
	EndCollection(ctx context.Context, userID int64) (*domain.User, error)
	RedeemVoucher(ctx context.Context, userID int64, voucherType domain.VoucherType) (*domain.User, *domain.Voucher, error)
}

type depositService struct {
	users repository.UserRepository
}

func NewDepositService(users repository.UserRepository) DepositService {
	return &depositService{users: users}
}

// StartCollection hands out an opaque session identifier. The server keeps no
// state for it; the machine and the browser use it for their own bookkeeping.
func (s *depositService) StartCollection() string {
	return uuid.NewString()
}

// CanDetected credits one can and one point to the user. The write is guarded
// by a version compare-and-swap so two machines feeding the same account do
// not lose increments.
func (s *depositService) CanDetected(ctx context.Context, userID int64) (*domain.User, error) {
	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, err
		}

		user.TotalCans++
		user.Points++

		err = s.users.UpdateCounters(ctx, userID, user.TotalCans, user.Points, user.Version)
		if err == nil {
			return sanitizeUser(user), nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *depositService) EndCollection(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

// RedeemVoucher exchanges points for a voucher: 40 points for a 10k, 80 for a
// 25k. The decrement and the voucher append commit together or not at all.
func (s *depositService) RedeemVoucher(ctx context.Context, userID int64, voucherType domain.VoucherType) (*domain.User, *domain.Voucher, error) {
	required := voucherType.RequiredPoints()
	if required == 0 {
		return nil, nil, ErrInvalidVoucherType
	}

	var lastErr error
	for attempt := 0; attempt < casRetries; attempt++ {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, nil, err
		}

		if user.Points < required {
			return nil, nil, ErrInsufficientPoints
		}

		voucher := &domain.Voucher{
			Type:  voucherType,
			Value: voucherType.FaceValue(),
		}

		newPoints := user.Points - required
		err = s.users.RedeemVoucher(ctx, userID, newPoints, user.Version, voucher)
		if err == nil {
			user.Points = newPoints
			user.Vouchers = append(user.Vouchers, *voucher)
			return sanitizeUser(user), voucher, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, nil, err
		}
		lastErr = err
	}
	return nil, nil, lastErr
}
