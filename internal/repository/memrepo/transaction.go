package memrepo

import (
	"context"
	"errors"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/shopspring/decimal"
)

type eventUpdate func(e *domain.TransferEvent, now time.Time)

// transaction копит записи до commit и держит блокировки строк.
type transaction struct {
	store *Store

	locked   []int64
	lockedAt map[int64]struct{}

	accounts     []domain.Account
	balances     map[int64]decimal.Decimal
	transfers    []domain.Transfer
	events       []domain.TransferEvent
	claimed      []int64
	eventUpdates map[int64]eventUpdate
}

func newTransaction(s *Store) *transaction {
	return &transaction{
		store:        s,
		lockedAt:     make(map[int64]struct{}),
		balances:     make(map[int64]decimal.Decimal),
		eventUpdates: make(map[int64]eventUpdate),
	}
}

func (t *transaction) Get(name uow.RepositoryName) (uow.Repository, error) {
	return t.store.repository(name, t)
}

// lock берет блокировку строки id. Повторный вызов в той же транзакции ничего не делает.
func (t *transaction) lock(ctx context.Context, id int64) error {
	if _, ok := t.lockedAt[id]; ok {
		return nil
	}

	lockCtx := ctx
	if t.store.lockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, t.store.lockTimeout)
		defer cancel()
	}

	if err := t.store.rowLock(id).Acquire(lockCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrLockTimeout
		}
		return err //nolint:wrapcheck
	}
	t.locked = append(t.locked, id)
	t.lockedAt[id] = struct{}{}
	return nil
}

func (t *transaction) holds(id int64) bool {
	_, ok := t.lockedAt[id]
	return ok
}

func (t *transaction) release() {
	for i := len(t.locked) - 1; i >= 0; i-- {
		t.store.rowLock(t.locked[i]).Release(1)
	}
	t.locked = nil

	if len(t.claimed) > 0 {
		t.store.mu.Lock()
		for _, id := range t.claimed {
			delete(t.store.claimed, id)
		}
		t.store.mu.Unlock()
		t.claimed = nil
	}
}

func (t *transaction) stagedAccount(id int64) (domain.Account, bool) {
	for _, a := range t.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Account{}, false
}
