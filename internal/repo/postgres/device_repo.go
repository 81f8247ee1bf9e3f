package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vadesso/account-service/internal/domain"
)

type DeviceRepository interface {
	FindConfirmedByUser(ctx context.Context, userID int64) (*domain.OTPDevice, error)
	FindByIDAndUser(ctx context.Context, deviceID uuid.UUID, userID int64) (*domain.OTPDevice, error)
	SetEmail(ctx context.Context, deviceID uuid.UUID, email *string) error
	ReplaceChallenge(ctx context.Context, deviceID uuid.UUID, codeHash string, expiresAt time.Time) error
	LiveChallenge(ctx context.Context, deviceID uuid.UUID) (*domain.OTPChallenge, error)
	IncrementAttempts(ctx context.Context, challengeID int64) error
	MarkUsed(ctx context.Context, challengeID int64) error
}

type deviceRepository struct {
	pool *pgxpool.Pool
}

func NewDeviceRepository(pool *pgxpool.Pool) DeviceRepository {
	return &deviceRepository{pool: pool}
}

const deviceCols = `id, user_id, name, confirmed, email, created_at`

func scanDevice(row pgx.Row) (*domain.OTPDevice, error) {
	var d domain.OTPDevice
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Confirmed, &d.Email, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepository) FindConfirmedByUser(ctx context.Context, userID int64) (*domain.OTPDevice, error) {
	const q = `
		SELECT ` + deviceCols + `
		FROM otp_devices
		WHERE user_id = $1 AND confirmed
		ORDER BY created_at
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	d, err := scanDevice(r.pool.QueryRow(ctx, q, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *deviceRepository) FindByIDAndUser(ctx context.Context, deviceID uuid.UUID, userID int64) (*domain.OTPDevice, error) {
	const q = `SELECT ` + deviceCols + ` FROM otp_devices WHERE id = $1 AND user_id = $2`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	d, err := scanDevice(r.pool.QueryRow(ctx, q, deviceID, userID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return d, err
}

func (r *deviceRepository) SetEmail(ctx context.Context, deviceID uuid.UUID, email *string) error {
	const q = `UPDATE otp_devices SET email = $2 WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, deviceID, email)
	return err
}

// ReplaceChallenge discards any unconsumed challenge for the device before
// storing the new one: issuing a code is last-write-wins.
func (r *deviceRepository) ReplaceChallenge(ctx context.Context, deviceID uuid.UUID, codeHash string, expiresAt time.Time) error {
	const del = `DELETE FROM otp_challenges WHERE device_id = $1 AND used_at IS NULL`
	const ins = `
		INSERT INTO otp_challenges (device_id, code_hash, expires_at, attempts)
		VALUES ($1, $2, $3, 0)`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, del, deviceID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, ins, deviceID, codeHash, expiresAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// LiveChallenge returns the latest unconsumed challenge for the device, or
// nil when none exists. Expiry and attempt checks belong to the caller.
func (r *deviceRepository) LiveChallenge(ctx context.Context, deviceID uuid.UUID) (*domain.OTPChallenge, error) {
	const q = `
		SELECT id, device_id, code_hash, expires_at, used_at, attempts
		FROM otp_challenges
		WHERE device_id = $1 AND used_at IS NULL
		ORDER BY id DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var c domain.OTPChallenge
	err := r.pool.QueryRow(ctx, q, deviceID).Scan(
		&c.ID, &c.DeviceID, &c.CodeHash, &c.ExpiresAt, &c.UsedAt, &c.Attempts,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *deviceRepository) IncrementAttempts(ctx context.Context, challengeID int64) error {
	const q = `UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, challengeID)
	return err
}

func (r *deviceRepository) MarkUsed(ctx context.Context, challengeID int64) error {
	const q = `UPDATE otp_challenges SET used_at = now() WHERE id = $1 AND used_at IS NULL`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, challengeID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
