package uow

import "errors"

var (
	ErrRepositoryNotRegistered     = errors.New("[uow] repository not registered")
	ErrRepositoryAlreadyRegistered = errors.New("[uow] repository already registered")
	ErrInvalidRepositoryType       = errors.New("[uow] invalid repository type")
)

// ErrorConverter приводит ошибки драйвера, возникшие при открытии/фиксации транзакции, к виду вызывающего слоя.
type ErrorConverter func(err error, op string) error

func passErr(err error, _ string) error {
	return err
}
