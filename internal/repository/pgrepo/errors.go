package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolationCode      = "23505"
	checkViolationCode       = "23514"
	lockNotAvailableCode     = "55P03"
	serializationFailureCode = "40001"
	deadlockDetectedCode     = "40P01"
	adminShutdownCode        = "57P01"
	cannotConnectNowCode     = "57P03"
)

// convertErr преобразует ошибку к стандартному виду для слоя репозитория.
// Добавляет форматированное сообщение контекста, тип бизнес-ошибки и оригинальное сообщение.
// Особенности:
//   - Для ошибок отсутствия данных (pgx.ErrNoRows) возвращает ErrRecordNotFound из domain.
//   - Отмена или таймаут контекста пробрасываются как есть, чтобы их можно было проверить через errors.Is.
//   - Коды Postgres раскладываются по доменным ошибкам в classify.
//   - Все остальные ошибки возвращаются как ErrUnknown с оригинальным сообщением.
func convertErr(err error, format string, formatArgs ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, formatArgs...)

	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("[repository/%s] %w", msg, domain.ErrRecordNotFound)
	}

	if ctxErr := contextErr(err); ctxErr != nil {
		return fmt.Errorf("[repository/%s] %w", msg, ctxErr)
	}

	return fmt.Errorf("[repository/%s] %w: %s", msg, classify(err), err.Error())
}

// ConvertTxErr используется юнитом работы для ошибок begin/commit/rollback.
func ConvertTxErr(err error, op string) error {
	return convertErr(err, "%s", op)
}

func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return domain.ErrDuplicateKey
		case checkViolationCode:
			return domain.ErrCheckViolation
		case lockNotAvailableCode:
			return domain.ErrLockTimeout
		case serializationFailureCode, deadlockDetectedCode:
			return domain.ErrSerialization
		case adminShutdownCode, cannotConnectNowCode:
			return domain.ErrStoreUnavailable
		}
		return domain.ErrUnknown
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return domain.ErrStoreUnavailable
	}
	return domain.ErrUnknown
}

func contextErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return context.Canceled
	}
	return nil
}
