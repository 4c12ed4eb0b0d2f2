package domain

import (
	"fmt"
	"time"
)

// VoucherType identifies the face value tier of a redeemable voucher.
type VoucherType string

const (
	Voucher10K VoucherType = "10k"
	Voucher25K VoucherType = "25k"
)

// Voucher is a reward fixed at redemption time. Vouchers are append-only:
// once created they are never mutated or deleted.
type Voucher struct {
	ID        int64
	UserID    int64
	Type      VoucherType
	Value     int64
	CreatedAt time.Time
}

// ParseVoucherType validates a wire-level voucher type string.
func ParseVoucherType(s string) (VoucherType, error) {
	switch VoucherType(s) {
	case Voucher10K, Voucher25K:
		return VoucherType(s), nil
	}
	return "", fmt.Errorf("unknown voucher type %q", s)
}

// RequiredPoints returns the point cost of redeeming a voucher of this type.
func (t VoucherType) RequiredPoints() int64 {
	switch t {
	case Voucher10K:
		return 40
	case Voucher25K:
		return 80
	}
	return 0
}

// FaceValue returns the voucher face amount in currency minor units.
func (t VoucherType) FaceValue() int64 {
	switch t {
	case Voucher10K:
		return 10000
	case Voucher25K:
		return 25000
	}
	return 0
}
