package uow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepositoryName string
type Repository any
type RepositoryFactory func(DBTX) Repository

type UnitOfWork struct {
	conn         *pgxpool.Pool
	repositories map[RepositoryName]RepositoryFactory
	lockTimeout  time.Duration
	convertErr   ErrorConverter
}

type Option func(*UnitOfWork)

// WithLockTimeout ограничивает ожидание блокировок строк внутри транзакции (SET LOCAL lock_timeout).
// Нулевое значение - ждать без ограничения.
func WithLockTimeout(d time.Duration) Option {
	return func(u *UnitOfWork) {
		u.lockTimeout = d
	}
}

// WithErrorConverter задает функцию преобразования ошибок begin/commit.
func WithErrorConverter(fn ErrorConverter) Option {
	return func(u *UnitOfWork) {
		if fn != nil {
			u.convertErr = fn
		}
	}
}

func NewUnitOfWork(conn *pgxpool.Pool, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		conn:         conn,
		repositories: make(map[RepositoryName]RepositoryFactory),
		convertErr:   passErr,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Register регистрирует репозиторий у себя в мапе. Если репозиторий уже зарегистрирован, возвращает
// ошибку ErrRepositoryAlreadyRegistered.
func (u *UnitOfWork) Register(name RepositoryName, factory RepositoryFactory) error {
	if _, ok := u.repositories[name]; ok {
		return ErrRepositoryAlreadyRegistered
	}
	u.repositories[name] = factory
	return nil
}

// Do выполняет функцию fn внутри транзакции. Транзакция фиксируется только если fn вернула nil,
// во всех остальных случаях откатывается вместе со всеми блокировками.
func (u *UnitOfWork) Do(ctx context.Context, fn func(context.Context, TX) error) (err error) {
	tx, txErr := u.conn.BeginTx(ctx, pgx.TxOptions{})
	if txErr != nil {
		return u.convertErr(txErr, "begin transaction")
	}
	defer func() {
		// откат выполняем с отдельным контекстом: при отмене ctx транзакцию все равно нужно закрыть.
		rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
		defer cancel()
		if rollbackErr := tx.Rollback(rollbackCtx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			if err == nil {
				err = u.convertErr(rollbackErr, "rollback transaction")
			} else {
				err = errors.Join(err, rollbackErr)
			}
		}
	}()

	if u.lockTimeout > 0 {
		if _, setErr := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", lockTimeoutValue(u.lockTimeout)); setErr != nil {
			return u.convertErr(setErr, "set lock timeout")
		}
	}

	transErr := fn(ctx, NewTransaction(tx, u.repositories))
	if transErr != nil {
		return transErr
	}
	if commitErr := tx.Commit(ctx); commitErr != nil {
		return u.convertErr(commitErr, "commit transaction")
	}
	return nil
}

// GetRepository возвращает репозиторий или ошибку ErrRepositoryNotRegistered.
func (u *UnitOfWork) GetRepository(name RepositoryName) (Repository, error) {
	if repoFactory, ok := u.repositories[name]; ok {
		return repoFactory(u.conn), nil
	}
	return nil, ErrRepositoryNotRegistered
}

// GetRepositoryAs возвращает репозиторий по имени name и приводит его к типу T. Возвращает ошибки
// ErrRepositoryNotRegistered и ErrInvalidRepositoryType.
func GetRepositoryAs[T any](u UOW, name RepositoryName) (T, error) {
	var res T
	repo, err := u.GetRepository(name)
	if err != nil {
		return res, err //nolint:wrapcheck
	}
	r, ok := repo.(T)

	if !ok {
		return res, ErrInvalidRepositoryType
	}

	return r, nil
}

const rollbackTimeout = 5 * time.Second

// lockTimeoutValue форматирует длительность для lock_timeout в миллисекундах (минимум 1ms).
func lockTimeoutValue(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("%dms", ms)
}
