package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"workguard/internal/auth/models"
	id "workguard/pkg/domain"
	"workguard/pkg/platform/sentinel"
	"workguard/pkg/platform/tx"
)

const userColumns = `id, name, email, password_hash, role, department, is_online, last_activity`

// PostgresStore reads and writes the users table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			department = EXCLUDED.department
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		user.ID.String(),
		user.Name,
		models.NormalizeEmail(user.Email),
		user.PasswordHash,
		string(user.Role),
		user.Department,
		user.IsOnline,
		user.LastActivity,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("save user: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID.String())
	return scanOne(row, "find user by id")
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = $1`, models.NormalizeEmail(email))
	return scanOne(row, "find user by email")
}

func (s *PostgresStore) ListIDsByRole(ctx context.Context, role models.Role) ([]id.UserID, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx,
		`SELECT id FROM users WHERE role = $1 ORDER BY id`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	var out []id.UserID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		uid, err := id.ParseUserID(raw)
		if err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) SetOnline(ctx context.Context, userID id.UserID, online bool, at time.Time) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE users SET is_online = $2, last_activity = $3 WHERE id = $1`,
		userID.String(), online, at)
	if err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user online: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

// LockForUpdate takes a row lock on the user for the rest of the
// transaction in ctx. Logins for the same user serialize on it.
func (s *PostgresStore) LockForUpdate(ctx context.Context, userID id.UserID) error {
	conn, ok := tx.From(ctx)
	if !ok {
		return errors.New("lock user: no transaction in context")
	}
	var locked string
	err := conn.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID.String()).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

func scanOne(row *sql.Row, op string) (*models.User, error) {
	var (
		u            models.User
		uid, role    string
		lastActivity sql.NullTime
	)
	err := row.Scan(&uid, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Department, &u.IsOnline, &lastActivity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	parsed, err := id.ParseUserID(uid)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.ID = parsed
	u.Role = models.Role(role)
	if lastActivity.Valid {
		u.LastActivity = &lastActivity.Time
	}
	return &u, nil
}
