package session

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

const sessionColumns = `id, user_id, token_hash, device_fingerprint, device_name, browser_name, os_name,
	ip_address, is_mobile, is_tablet, login_time, last_activity_time, status, reason`

// PostgresStore persists sessions in the active_sessions table. Methods run on
// the transaction carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO active_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		session.ID.String(),
		session.UserID.String(),
		session.TokenHash,
		session.DeviceFingerprint,
		session.DeviceName,
		session.BrowserName,
		session.OSName,
		session.IPAddress,
		session.IsMobile,
		session.IsTablet,
		session.LoginTime,
		session.LastActivityTime,
		string(session.Status),
		session.Reason,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create session: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM active_sessions WHERE id = $1`, sessionID.String())
	return scanOne(row, "find session by id")
}

func (s *PostgresStore) FindByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM active_sessions WHERE token_hash = $1`, tokenHash)
	return scanOne(row, "find session by token")
}

func (s *PostgresStore) ListActiveByUser(ctx context.Context, userID id.UserID) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM active_sessions
		WHERE user_id = $1 AND status = 'ACTIVE'
		ORDER BY login_time DESC, id DESC
	`
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountActiveByUser(ctx context.Context, userID id.UserID) (int, error) {
	var n int
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM active_sessions WHERE user_id = $1 AND status = 'ACTIVE'`,
		userID.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return n, nil
}

// CloseIfActive uses a conditional UPDATE so concurrent closers race on the
// row, not on a read-then-write.
func (s *PostgresStore) CloseIfActive(ctx context.Context, sessionID id.SessionID, status models.SessionStatus, reason string) (*models.Session, error) {
	if status != models.SessionStatusInvalidated && status != models.SessionStatusExpired {
		return nil, fmt.Errorf("close session to %q: %w", status, sentinel.ErrInvalidState)
	}
	reason = models.TruncateReason(reason)
	query := `
		UPDATE active_sessions
		SET status = $2, reason = $3
		WHERE id = $1 AND status = 'ACTIVE'
		RETURNING ` + sessionColumns
	conn := tx.Conn(ctx, s.db)
	session, err := scanSession(conn.QueryRowContext(ctx, query, sessionID.String(), string(status), reason))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("close session: %w", err)
	}

	var exists bool
	if err := conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM active_sessions WHERE id = $1)`, sessionID.String(),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("close session: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
	}
	return nil, sentinel.ErrInvalidState
}

func (s *PostgresStore) TouchActivity(ctx context.Context, sessionID id.SessionID, at time.Time) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		UPDATE active_sessions
		SET last_activity_time = GREATEST(last_activity_time, $2)
		WHERE id = $1 AND status = 'ACTIVE'
	`, sessionID.String(), at)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if n == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOne(row scanner, op string) (*models.Session, error) {
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return session, nil
}

func scanSession(row scanner) (*models.Session, error) {
	var (
		session  models.Session
		sid, uid string
		status   string
		reason   sql.NullString
	)
	err := row.Scan(
		&sid,
		&uid,
		&session.TokenHash,
		&session.DeviceFingerprint,
		&session.DeviceName,
		&session.BrowserName,
		&session.OSName,
		&session.IPAddress,
		&session.IsMobile,
		&session.IsTablet,
		&session.LoginTime,
		&session.LastActivityTime,
		&status,
		&reason,
	)
	if err != nil {
		return nil, err
	}
	parsedSID, err := id.ParseSessionID(sid)
	if err != nil {
		return nil, err
	}
	parsedUID, err := id.ParseUserID(uid)
	if err != nil {
		return nil, err
	}
	session.ID = parsedSID
	session.UserID = parsedUID
	session.Status = models.SessionStatus(status)
	if reason.Valid {
		session.Reason = &reason.String
	}
	return &session, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
