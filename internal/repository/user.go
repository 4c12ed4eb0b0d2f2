package repository

import (
	"context"

	"can-collector/internal/domain"
)

// UserRepository defines persistence operations for User entities and their
// embedded vouchers.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) (int64, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// UpdateCounters writes new totalCans/points values guarded by the
	// user's version; returns ErrVersionConflict if another writer got
	// there first.
	UpdateCounters(ctx context.Context, id int64, totalCans, points, version int64) error

	// RedeemVoucher decrements points and appends one voucher in a single
	// transaction, guarded by the user's version.
	RedeemVoucher(ctx context.Context, id int64, newPoints, version int64, voucher *domain.Voucher) error

	ListVouchers(ctx context.Context, userID int64) ([]domain.Voucher, error)
}
