package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/service"
	"github.com/shopspring/decimal"
)

// UserServicer интерфейс исключительно для моков.
type UserServicer interface {
	Register(ctx context.Context, args service.RegisterUserArgs) (*domain.Account, string, error)
	Login(ctx context.Context, args service.LoginUserArgs) (*domain.Account, string, error)
}

type TransferServicer interface {
	Transfer(
		ctx context.Context,
		senderID, receiverID int64,
		amount decimal.Decimal,
	) (*service.TransferResult, error)
}

type HistoryServicer interface {
	History(ctx context.Context, accountID int64) ([]service.HistoryItem, error)
	Dashboard(ctx context.Context, accountID int64) (*service.DashboardStats, error)
}
