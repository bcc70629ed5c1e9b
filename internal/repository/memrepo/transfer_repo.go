package memrepo

import (
	"context"
	"sort"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
)

type TransferRepository struct {
	store *Store
	tx    *transaction
}

// Create добавляет запись в журнал. Номер выдается сразу (как sequence), пропуски после отката допустимы.
func (r *TransferRepository) Create(_ context.Context, args repoargs.TransferCreate) (*domain.Transfer, error) {
	if r.tx == nil {
		return nil, wrapErr(domain.ErrNoTransaction, "creating transfer %d -> %d", args.SenderID, args.ReceiverID)
	}
	if args.SenderID == args.ReceiverID || !args.Amount.IsPositive() {
		return nil, wrapErr(domain.ErrCheckViolation, "creating transfer %d -> %d", args.SenderID, args.ReceiverID)
	}
	accounts := &AccountRepository{store: r.store, tx: r.tx}
	for _, id := range []int64{args.SenderID, args.ReceiverID} {
		if _, ok := accounts.lookup(id); !ok {
			return nil, wrapErr(domain.ErrUnknown, "creating transfer: account %d does not exist", id)
		}
	}

	transfer := domain.Transfer{
		ID:         r.store.nextTransferID(),
		CreatedAt:  r.store.now(),
		SenderID:   args.SenderID,
		ReceiverID: args.ReceiverID,
		Amount:     args.Amount,
		Status:     domain.TransferStatusSuccess,
	}
	r.tx.transfers = append(r.tx.transfers, transfer)
	return &transfer, nil
}

func (r *TransferRepository) ListByAccount(_ context.Context, accountID int64) ([]domain.Transfer, error) {
	var transfers = make([]domain.Transfer, 0)
	for _, t := range r.visible() {
		if t.SenderID == accountID || t.ReceiverID == accountID {
			transfers = append(transfers, t)
		}
	}
	sort.Slice(transfers, func(i, j int) bool {
		if transfers[i].CreatedAt.Equal(transfers[j].CreatedAt) {
			return transfers[i].ID > transfers[j].ID
		}
		return transfers[i].CreatedAt.After(transfers[j].CreatedAt)
	})
	return transfers, nil
}

func (r *TransferRepository) StatsByAccount(_ context.Context, accountID int64) (*domain.AccountStats, error) {
	var stats domain.AccountStats
	for _, t := range r.visible() {
		switch accountID {
		case t.SenderID:
			stats.TotalSent = stats.TotalSent.Add(t.Amount)
		case t.ReceiverID:
			stats.TotalReceived = stats.TotalReceived.Add(t.Amount)
		default:
			continue
		}
		stats.Count++
	}
	return &stats, nil
}

func (r *TransferRepository) visible() []domain.Transfer {
	r.store.mu.RLock()
	transfers := make([]domain.Transfer, len(r.store.transfers))
	copy(transfers, r.store.transfers)
	r.store.mu.RUnlock()

	if r.tx != nil {
		transfers = append(transfers, r.tx.transfers...)
	}
	return transfers
}
