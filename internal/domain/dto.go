package domain

type TransferStatusType string

const (
	TransferStatusSuccess TransferStatusType = "SUCCESS"
	// TransferStatusFailed зарезервирован схемой, неуспешные попытки в журнал не пишутся.
	TransferStatusFailed TransferStatusType = "FAILED"
)

type DirectionType string

const (
	DirectionSent     DirectionType = "SENT"
	DirectionReceived DirectionType = "RECEIVED"
)

type EventStatusType string

const (
	EventStatusPending EventStatusType = "PENDING"
	EventStatusSent    EventStatusType = "SENT"
)
