package service

import (
	"context"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePassword(password string, hashedPassword string) bool
}

type AccountRepository interface {
	Create(ctx context.Context, args repoargs.CreateAccount) (*domain.Account, error)
	FindByUsername(ctx context.Context, username string) (*domain.Account, error)
	FindByID(ctx context.Context, id int64) (*domain.Account, error)
	// LockByID допустим только внутри юнита работы.
	LockByID(ctx context.Context, id int64) (*domain.Account, error)
	// UpdateBalance допустим только в юните работы, держащем блокировку строки.
	UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error
}

type TransferRepository interface {
	Create(ctx context.Context, args repoargs.TransferCreate) (*domain.Transfer, error)
	ListByAccount(ctx context.Context, accountID int64) ([]domain.Transfer, error)
	StatsByAccount(ctx context.Context, accountID int64) (*domain.AccountStats, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, args repoargs.TransferEventCreate) (*domain.TransferEvent, error)
}
