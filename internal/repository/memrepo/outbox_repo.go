package memrepo

import (
	"context"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
)

type OutboxRepository struct {
	store *Store
	tx    *transaction
}

func (r *OutboxRepository) Create(_ context.Context, args repoargs.TransferEventCreate) (*domain.TransferEvent, error) {
	if r.tx == nil {
		return nil, wrapErr(domain.ErrNoTransaction, "creating event for transfer %d", args.TransferID)
	}
	event := domain.TransferEvent{
		ID:         r.store.nextEventID(),
		EventID:    args.EventID,
		CreatedAt:  r.store.now(),
		TransferID: args.TransferID,
		Payload:    args.Payload,
		Status:     domain.EventStatusPending,
	}
	r.tx.events = append(r.tx.events, event)
	return &event, nil
}

// FetchPending внутри транзакции забирает события в работу, другие транзакции их пропускают
// до ее завершения.
func (r *OutboxRepository) FetchPending(_ context.Context, limit uint) ([]domain.TransferEvent, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var events = make([]domain.TransferEvent, 0, limit)
	for _, e := range r.store.events {
		if uint(len(events)) >= limit {
			break
		}
		if e.Status != domain.EventStatusPending {
			continue
		}
		if _, busy := r.store.claimed[e.ID]; busy {
			continue
		}
		if r.tx != nil {
			r.store.claimed[e.ID] = struct{}{}
			r.tx.claimed = append(r.tx.claimed, e.ID)
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *OutboxRepository) MarkSent(_ context.Context, ids []int64) error {
	return r.stage(ids, "marking events as sent", func(e *domain.TransferEvent, now time.Time) {
		sentAt := now
		e.Status = domain.EventStatusSent
		e.SentAt = &sentAt
	})
}

func (r *OutboxRepository) IncrementAttempts(_ context.Context, ids []int64) error {
	return r.stage(ids, "incrementing attempts", func(e *domain.TransferEvent, _ time.Time) {
		e.Attempts++
	})
}

func (r *OutboxRepository) stage(ids []int64, op string, update eventUpdate) error {
	if r.tx == nil {
		return wrapErr(domain.ErrNoTransaction, "%s", op)
	}
	for _, id := range ids {
		prev, ok := r.tx.eventUpdates[id]
		if !ok {
			r.tx.eventUpdates[id] = update
			continue
		}
		r.tx.eventUpdates[id] = func(e *domain.TransferEvent, now time.Time) {
			prev(e, now)
			update(e, now)
		}
	}
	return nil
}
