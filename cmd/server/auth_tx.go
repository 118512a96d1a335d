package main

import (
	"context"
	"database/sql"
	"time"

	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
	"workguard/pkg/platform/tx"
)

const defaultAuthTxTimeout = 5 * time.Second

// userLocker takes the per-user row lock that serializes logins.
type userLocker interface {
	LockForUpdate(ctx context.Context, userID id.UserID) error
}

type authPostgresTx struct {
	db      *sql.DB
	users   userLocker
	timeout time.Duration
}

func newAuthPostgresTx(db *sql.DB, users userLocker) *authPostgresTx {
	return &authPostgresTx{db: db, users: users}
}

func (t *authPostgresTx) RunInTx(ctx context.Context, userID id.UserID, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultAuthTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	txCtx := tx.WithTx(ctx, sqlTx)
	if err := t.users.LockForUpdate(txCtx, userID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock user")
	}
	if err := fn(txCtx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}
