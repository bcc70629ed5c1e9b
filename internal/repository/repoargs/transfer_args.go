package repoargs

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransferCreate struct {
	SenderID   int64
	ReceiverID int64
	Amount     decimal.Decimal
}

type TransferEventCreate struct {
	EventID    uuid.UUID
	TransferID int64
	Payload    []byte
}
