package attempt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"workguard/internal/auth/models"
	id "workguard/pkg/domain"
	"workguard/pkg/platform/tx"
)

// PostgresStore appends to and reads from login_attempts. Rows are never updated.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, attempt *models.LoginAttempt) error {
	var userID *string
	if attempt.UserID != nil {
		v := attempt.UserID.String()
		userID = &v
	}
	query := `
		INSERT INTO login_attempts (id, user_id, email, device_fingerprint, ip_address, success, reason, user_agent, is_mobile, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		attempt.ID.String(),
		userID,
		attempt.Email,
		attempt.DeviceFingerprint,
		attempt.IPAddress,
		attempt.Success,
		attempt.Reason,
		attempt.UserAgent,
		attempt.IsMobile,
		attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append login attempt: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.AttemptFilter) ([]models.LoginAttempt, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, filter.UserID.String())
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if email := models.NormalizeEmail(filter.Email); email != "" {
		args = append(args, email)
		where = append(where, fmt.Sprintf("LOWER(email) = $%d", len(args)))
	}
	args = append(args, filter.EffectiveLimit())

	query := `SELECT id, user_id, email, device_fingerprint, ip_address, success, reason, user_agent, is_mobile, created_at
		FROM login_attempts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list login attempts: %w", err)
	}
	defer rows.Close()

	var out []models.LoginAttempt
	for rows.Next() {
		var (
			a       models.LoginAttempt
			rawID   string
			rawUser sql.NullString
		)
		if err := rows.Scan(&rawID, &rawUser, &a.Email, &a.DeviceFingerprint, &a.IPAddress,
			&a.Success, &a.Reason, &a.UserAgent, &a.IsMobile, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		if err := a.ID.UnmarshalText([]byte(rawID)); err != nil {
			return nil, fmt.Errorf("scan login attempt: %w", err)
		}
		if rawUser.Valid {
			uid, err := id.ParseUserID(rawUser.String)
			if err != nil {
				return nil, fmt.Errorf("scan login attempt: %w", err)
			}
			a.UserID = &uid
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list login attempts: %w", err)
	}
	return out, nil
}
