package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"can-collector/internal/domain"
	"can-collector/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	total_cans INTEGER NOT NULL DEFAULT 0,
	points INTEGER NOT NULL DEFAULT 0,
	version INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

const createVouchersTable = `
CREATE TABLE IF NOT EXISTS vouchers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	value INTEGER NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vouchers_user_id ON vouchers(user_id);
`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, createVouchersTable); err != nil {
		return fmt.Errorf("create vouchers table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) (int64, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, password_hash, total_cans, points, version, created_at, updated_at)
VALUES (?, ?, ?, ?, 0, ?, ?)`,
		user.Username,
		user.PasswordHash,
		user.TotalCans,
		user.Points,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return 0, repository.ErrDuplicateUsername
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("user last insert id: %w", err)
	}
	user.ID = id
	return id, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, total_cans, points, version, created_at, updated_at
FROM users
WHERE username = ?`,
		username,
	)
	return r.scanUser(ctx, row)
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, total_cans, points, version, created_at, updated_at
FROM users
WHERE id = ?`,
		id,
	)
	return r.scanUser(ctx, row)
}

func (r *UserRepository) UpdateCounters(ctx context.Context, id int64, totalCans, points, version int64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET total_cans = ?, points = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`,
		totalCans,
		points,
		time.Now().UTC(),
		id,
		version,
	)
	if err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	return checkVersionedUpdate(res)
}

func (r *UserRepository) RedeemVoucher(ctx context.Context, id int64, newPoints, version int64, voucher *domain.Voucher) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin redeem tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE users
SET points = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`,
		newPoints,
		time.Now().UTC(),
		id,
		version,
	)
	if err != nil {
		return fmt.Errorf("update points: %w", err)
	}
	if err := checkVersionedUpdate(res); err != nil {
		return err
	}

	voucher.UserID = id
	voucher.CreatedAt = time.Now().UTC()
	ins, err := tx.ExecContext(ctx, `
INSERT INTO vouchers (user_id, type, value, created_at)
VALUES (?, ?, ?, ?)`,
		voucher.UserID,
		string(voucher.Type),
		voucher.Value,
		voucher.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert voucher: %w", err)
	}
	if voucherID, err := ins.LastInsertId(); err == nil {
		voucher.ID = voucherID
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit redeem tx: %w", err)
	}
	return nil
}

func (r *UserRepository) ListVouchers(ctx context.Context, userID int64) ([]domain.Voucher, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, type, value, created_at
FROM vouchers
WHERE user_id = ?
ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	var vouchers []domain.Voucher
	for rows.Next() {
		var v domain.Voucher
		var typ string
		if err := rows.Scan(&v.ID, &v.UserID, &typ, &v.Value, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		v.Type = domain.VoucherType(typ)
		vouchers = append(vouchers, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vouchers: %w", err)
	}
	return vouchers, nil
}

func (r *UserRepository) scanUser(ctx context.Context, row *sql.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.TotalCans,
		&user.Points,
		&user.Version,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	vouchers, err := r.ListVouchers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Vouchers = vouchers
	return &user, nil
}

func checkVersionedUpdate(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return repository.ErrVersionConflict
	}
	return nil
}
