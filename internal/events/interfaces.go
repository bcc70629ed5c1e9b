package events

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/segmentio/kafka-go"
)

type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxRepository interface {
	// FetchPending внутри юнита работы забирает события так, что параллельный релей их пропускает.
	FetchPending(ctx context.Context, limit uint) ([]domain.TransferEvent, error)
	MarkSent(ctx context.Context, ids []int64) error
	IncrementAttempts(ctx context.Context, ids []int64) error
}
