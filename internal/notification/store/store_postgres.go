package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"workguard/internal/notification/models"
	id "workguard/pkg/domain"
	"workguard/pkg/platform/sentinel"
	"workguard/pkg/platform/tx"
)

const notificationColumns = `id, user_id, type, title, message, related_data, is_read, priority, action_required, created_at`

// PostgresStore persists notifications in the notifications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InsertMany writes the whole batch in one statement.
func (s *PostgresStore) InsertMany(ctx context.Context, batch []*models.Notification) error {
	if len(batch) == 0 {
		return nil
	}
	var (
		ids, userIDs, types, titles, messages []string
		related, priorities, createdAt        []string
		actionRequired                        []bool
	)
	for _, n := range batch {
		raw, err := models.EncodeRelatedData(n.RelatedData)
		if err != nil {
			return err
		}
		ids = append(ids, n.ID.String())
		userIDs = append(userIDs, n.UserID.String())
		types = append(types, string(n.Type))
		titles = append(titles, n.Title)
		messages = append(messages, n.Message)
		related = append(related, string(raw))
		priorities = append(priorities, string(n.Priority))
		actionRequired = append(actionRequired, n.ActionRequired)
		createdAt = append(createdAt, n.CreatedAt.UTC().Format(time.RFC3339Nano))
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		SELECT t.id::uuid, t.user_id::uuid, t.type, t.title, t.message,
			NULLIF(t.related_data, '')::jsonb, FALSE, t.priority, t.action_required, t.created_at::timestamptz
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[], $7::text[], $8::bool[], $9::text[])
			AS t(id, user_id, type, title, message, related_data, priority, action_required, created_at)
	`
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, query,
		pq.Array(ids),
		pq.Array(userIDs),
		pq.Array(types),
		pq.Array(titles),
		pq.Array(messages),
		pq.Array(related),
		pq.Array(priorities),
		pq.Array(actionRequired),
		pq.Array(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID id.UserID, filter models.ListFilter) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = $1`
	if filter.UnreadOnly {
		query += ` AND NOT is_read`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, query, userID.String(), filter.EffectiveLimit())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountUnread(ctx context.Context, userID id.UserID) (int, error) {
	var n int
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID.String(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, userID id.UserID, notificationID id.NotificationID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		notificationID.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireOneRow(res, "mark notification read")
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID id.UserID) (int, error) {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(n), nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID, notificationID id.NotificationID) error {
	res, err := tx.Conn(ctx, s.db).ExecContext(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		notificationID.String(), userID.String(),
	)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return requireOneRow(res, "delete notification")
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("notification not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*models.Notification, error) {
	var (
		n           models.Notification
		nid, uid    string
		kind, prio  string
		relatedData []byte
	)
	if err := row.Scan(&nid, &uid, &kind, &n.Title, &n.Message, &relatedData,
		&n.IsRead, &prio, &n.ActionRequired, &n.CreatedAt); err != nil {
		return nil, err
	}
	parsedID, err := id.ParseNotificationID(nid)
	if err != nil {
		return nil, err
	}
	parsedUser, err := id.ParseUserID(uid)
	if err != nil {
		return nil, err
	}
	n.ID = parsedID
	n.UserID = parsedUser
	n.Type = models.Type(kind)
	n.Priority = models.Priority(prio)
	n.RelatedData, err = models.DecodeRelatedData(n.Type, relatedData)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
