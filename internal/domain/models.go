package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Account struct {
	ID                int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Username          string
	EncryptedPassword string
	Balance           decimal.Decimal
}

// Transfer запись журнала переводов. Создается только вместе с изменением балансов и больше не меняется.
type Transfer struct {
	ID         int64
	CreatedAt  time.Time
	SenderID   int64
	ReceiverID int64
	Amount     decimal.Decimal
	Status     TransferStatusType
}

// TransferEvent событие о проведенном переводе для отправки во внешнюю шину (outbox).
type TransferEvent struct {
	ID         int64
	EventID    uuid.UUID
	CreatedAt  time.Time
	SentAt     *time.Time
	TransferID int64
	Payload    []byte
	Status     EventStatusType
	Attempts   uint
}

// AccountStats агрегаты по журналу переводов для одного счета.
type AccountStats struct {
	TotalSent     decimal.Decimal
	TotalReceived decimal.Decimal
	Count         int64
}

const TransferCompletedEventType = "transfer.completed"

// TransferCompleted тело события TransferCompletedEventType.
type TransferCompleted struct {
	EventID    uuid.UUID       `json:"eventId"`
	TransferID int64           `json:"transferId"`
	SenderID   int64           `json:"senderId"`
	ReceiverID int64           `json:"receiverId"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"createdAt"`
}
