package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AmountScale максимальное число знаков после запятой в сумме перевода.
const AmountScale = 2

type TransferService struct {
	uow uow.UOW
	l   *logrus.Entry
}

func NewTransferService(u uow.UOW, l *logrus.Logger) *TransferService {
	return &TransferService{
		uow: u,
		l:   l.WithField("module", "service/transfer"),
	}
}

type TransferResult struct {
	LedgerID         int64
	SenderNewBalance decimal.Decimal
	ReceiverID       int64
	Amount           decimal.Decimal
	CreatedAt        time.Time
}

// Transfer переводит amount со счета senderID на счет receiverID одним юнитом работы.
//
// senderID должен быть идентификатором уже проверенного пользователя, а не значением из тела запроса.
//
// Алгоритм работы:
//  1. Проверяет сумму и несовпадение счетов. Ошибки этого шага не обращаются к хранилищу.
//  2. Блокирует строки счетов по возрастанию id, независимо от направления перевода.
//  3. Проверяет существование счетов и достаточность средств по значениям, прочитанным под блокировкой.
//  4. Пишет оба баланса, запись журнала и событие outbox, затем фиксирует транзакцию.
//
// Любая ошибка возвращается как *domain.TransferError, состояние хранилища при этом не меняется.
func (s *TransferService) Transfer(
	ctx context.Context,
	senderID, receiverID int64,
	amount decimal.Decimal,
) (*TransferResult, error) {
	if err := validateTransfer(senderID, receiverID, amount); err != nil {
		return nil, err
	}

	var result *TransferResult
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var err error
		result, err = s.transfer(c, tx, senderID, receiverID, amount)
		return err
	})

	if txErr != nil {
		tErr := classifyTransferErr(txErr)
		entry := s.l.WithFields(logrus.Fields{
			"senderID":   senderID,
			"receiverID": receiverID,
			"amount":     amount.String(),
			"kind":       tErr.Kind,
		})
		if tErr.Internal() {
			entry.WithError(txErr).Error("transfer failed")
		} else {
			entry.Info(tErr.Message)
		}
		return nil, tErr
	}

	s.l.WithFields(logrus.Fields{
		"ledgerID":   result.LedgerID,
		"senderID":   senderID,
		"receiverID": receiverID,
		"amount":     amount.String(),
	}).Debug("transfer committed")
	return result, nil
}

func (s *TransferService) transfer(
	ctx context.Context,
	tx uow.TX,
	senderID, receiverID int64,
	amount decimal.Decimal,
) (*TransferResult, error) {
	accountRepo, err := uow.GetAs[AccountRepository](tx, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	transferRepo, err := uow.GetAs[TransferRepository](tx, uow.RepositoryName(repoargs.TransferRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	outboxRepo, err := uow.GetAs[OutboxRepository](tx, uow.RepositoryName(repoargs.OutboxRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	sender, receiver, lockErr := lockPair(ctx, accountRepo, senderID, receiverID)
	if lockErr != nil {
		return nil, lockErr
	}

	if sender.Balance.LessThan(amount) {
		return nil, domain.NewTransferError(domain.KindInsufficientFunds,
			"account %d balance %s is less than %s", sender.ID, sender.Balance.StringFixed(AmountScale),
			amount.StringFixed(AmountScale))
	}

	senderBalance := sender.Balance.Sub(amount)
	if err = accountRepo.UpdateBalance(ctx, sender.ID, senderBalance); err != nil {
		return nil, fmt.Errorf("debiting account %d: %w", sender.ID, err)
	}
	if err = accountRepo.UpdateBalance(ctx, receiver.ID, receiver.Balance.Add(amount)); err != nil {
		return nil, fmt.Errorf("crediting account %d: %w", receiver.ID, err)
	}

	record, err := transferRepo.Create(ctx, repoargs.TransferCreate{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     amount,
	})
	if err != nil {
		return nil, fmt.Errorf("appending ledger record: %w", err)
	}

	if err = createTransferEvent(ctx, outboxRepo, record); err != nil {
		return nil, err
	}

	return &TransferResult{
		LedgerID:         record.ID,
		SenderNewBalance: senderBalance,
		ReceiverID:       record.ReceiverID,
		Amount:           record.Amount,
		CreatedAt:        record.CreatedAt,
	}, nil
}

// lockPair блокирует оба счета, начиная с меньшего id. Единый порядок исключает взаимоблокировку
// встречных переводов. Возвращает счета в порядке (отправитель, получатель).
func lockPair(
	ctx context.Context,
	repo AccountRepository,
	senderID, receiverID int64,
) (*domain.Account, *domain.Account, error) {
	first, second := senderID, receiverID
	if first > second {
		first, second = second, first
	}

	locked := make(map[int64]*domain.Account, 2) //nolint:mnd
	for _, id := range []int64{first, second} {
		account, err := repo.LockByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				return nil, nil, domain.NewTransferError(domain.KindAccountNotFound, "account %d not found", id)
			}
			return nil, nil, fmt.Errorf("locking account %d: %w", id, err)
		}
		locked[id] = account
	}
	return locked[senderID], locked[receiverID], nil
}

func createTransferEvent(ctx context.Context, repo OutboxRepository, record *domain.Transfer) error {
	eventID := uuid.New()
	payload, err := json.Marshal(domain.TransferCompleted{
		EventID:    eventID,
		TransferID: record.ID,
		SenderID:   record.SenderID,
		ReceiverID: record.ReceiverID,
		Amount:     record.Amount,
		CreatedAt:  record.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encoding transfer event: %w", err)
	}
	if _, err = repo.Create(ctx, repoargs.TransferEventCreate{
		EventID:    eventID,
		TransferID: record.ID,
		Payload:    payload,
	}); err != nil {
		return fmt.Errorf("creating transfer event: %w", err)
	}
	return nil
}

func validateTransfer(senderID, receiverID int64, amount decimal.Decimal) *domain.TransferError {
	if !amount.IsPositive() {
		return domain.NewTransferError(domain.KindInvalidAmount, "amount must be positive")
	}
	if !amount.Equal(amount.Round(AmountScale)) {
		return domain.NewTransferError(domain.KindInvalidAmount,
			"amount must have at most %d decimal places", AmountScale)
	}
	if senderID == receiverID {
		return domain.NewTransferError(domain.KindSameAccount, "cannot transfer to the same account")
	}
	return nil
}

// classifyTransferErr приводит любую ошибку юнита работы к *domain.TransferError.
// Текст исходной ошибки в сообщение не попадает.
func classifyTransferErr(err error) *domain.TransferError {
	var tErr *domain.TransferError
	if errors.As(err, &tErr) {
		return tErr
	}

	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		return domain.NewTransferError(domain.KindAccountNotFound, "account not found")
	case errors.Is(err, domain.ErrLockTimeout),
		errors.Is(err, domain.ErrSerialization),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return domain.NewTransferError(domain.KindConflict, "transfer was not applied, retry later")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return domain.NewTransferError(domain.KindStoreUnavailable, "service temporarily unavailable")
	}
	return domain.NewTransferError(domain.KindInternal, "internal error")
}
