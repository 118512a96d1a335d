package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	id "workguard/pkg/domain"
	dErrors "workguard/pkg/domain-errors"
)

// AuthStoreTx serializes the read-conflict-write part of a login, and the
// logouts that race with it, per user. Postgres implementations open a
// transaction and lock the user row; the in-memory one takes a lock.
type AuthStoreTx interface {
	RunInTx(ctx context.Context, userID id.UserID, fn func(txCtx context.Context) error) error
}

const numAuthShards = 128

const defaultAuthTxTimeout = 5 * time.Second

// InMemoryTx maps users onto a fixed set of mutexes. Two users may share a
// shard; one user always maps to the same one. There is no rollback.
type InMemoryTx struct {
	shards  [numAuthShards]sync.Mutex
	timeout time.Duration
}

func NewInMemoryTx() *InMemoryTx {
	return &InMemoryTx{timeout: defaultAuthTxTimeout}
}

func (t *InMemoryTx) RunInTx(ctx context.Context, userID id.UserID, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := shardFor(userID)
	t.shards[shard].Lock()
	defer t.shards[shard].Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx)
}

func shardFor(userID id.UserID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID.String()))
	return int(h.Sum32() % numAuthShards)
}
