package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/shopspring/decimal"
)

// HistoryService отчеты по журналу переводов. Только чтение, юниты работы не открывает.
type HistoryService struct {
	accountRepo  AccountRepository
	transferRepo TransferRepository
}

func NewHistoryService(u uow.UOW) (*HistoryService, error) {
	accountRepo, err := uow.GetRepositoryAs[AccountRepository](u, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	transferRepo, err := uow.GetRepositoryAs[TransferRepository](u, uow.RepositoryName(repoargs.TransferRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &HistoryService{
		accountRepo:  accountRepo,
		transferRepo: transferRepo,
	}, nil
}

type HistoryItem struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Amount     decimal.Decimal
	CreatedAt  time.Time
	Direction  domain.DirectionType
}

// History возвращает переводы счета, новые первыми. Направление считается относительно accountID.
func (h *HistoryService) History(ctx context.Context, accountID int64) ([]HistoryItem, error) {
	transfers, err := h.transferRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("history of account %d: %w", accountID, err)
	}

	var items = make([]HistoryItem, len(transfers))
	for i, t := range transfers {
		direction := domain.DirectionReceived
		if t.SenderID == accountID {
			direction = domain.DirectionSent
		}
		items[i] = HistoryItem{
			ID:         t.ID,
			SenderID:   t.SenderID,
			ReceiverID: t.ReceiverID,
			Amount:     t.Amount,
			CreatedAt:  t.CreatedAt,
			Direction:  direction,
		}
	}
	return items, nil
}

type DashboardStats struct {
	Username      string
	Balance       decimal.Decimal
	TotalSent     decimal.Decimal
	TotalReceived decimal.Decimal
	TxCount       int64
}

// Dashboard собирает текущий баланс и агрегаты журнала. Для неизвестного счета вернет domain.ErrRecordNotFound.
func (h *HistoryService) Dashboard(ctx context.Context, accountID int64) (*DashboardStats, error) {
	account, err := h.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("dashboard of account %d: %w", accountID, err)
	}
	stats, err := h.transferRepo.StatsByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("dashboard of account %d: %w", accountID, err)
	}
	return &DashboardStats{
		Username:      account.Username,
		Balance:       account.Balance,
		TotalSent:     stats.TotalSent,
		TotalReceived: stats.TotalReceived,
		TxCount:       stats.Count,
	}, nil
}
