package domain

import "time"

// User represents a registered collector account. PasswordHash never leaves
// the service layer.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	TotalCans    int64
	Points       int64
	Vouchers     []Voucher
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
