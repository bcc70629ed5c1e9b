// Package memrepo хранилище счетов, журнала переводов и outbox в памяти процесса.
//
// Реализует те же контракты, что и pgrepo: блокировки строк счетов живут до конца юнита работы,
// изменения видны другим только после commit, ожидание блокировки ограничено lockTimeout.
package memrepo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"golang.org/x/sync/semaphore"
)

type Store struct {
	mu        sync.RWMutex
	accounts  map[int64]domain.Account
	usernames map[string]int64
	transfers []domain.Transfer
	events    []domain.TransferEvent
	claimed   map[int64]struct{} // события, взятые в работу открытой транзакцией

	locksMu sync.Mutex
	locks   map[int64]*semaphore.Weighted

	accountSeq  int64
	transferSeq int64
	eventSeq    int64

	lockTimeout time.Duration
	now         func() time.Time
}

type Option func(*Store)

// WithLockTimeout ограничивает ожидание блокировки строки счета. Нулевое значение - ждать до отмены контекста.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		accounts:  make(map[int64]domain.Account),
		usernames: make(map[string]int64),
		claimed:   make(map[int64]struct{}),
		locks:     make(map[int64]*semaphore.Weighted),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Do выполняет fn в юните работы. Все записи применяются одним шагом при успешном завершении fn,
// блокировки снимаются после применения.
func (s *Store) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	if err := ctx.Err(); err != nil {
		return wrapErr(err, "begin transaction")
	}
	tx := newTransaction(s)
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrapErr(err, "commit transaction")
	}
	return s.commit(tx)
}

// GetRepository возвращает репозиторий без транзакции: чтение последних зафиксированных данных.
func (s *Store) GetRepository(name uow.RepositoryName) (uow.Repository, error) {
	return s.repository(name, nil)
}

func (s *Store) repository(name uow.RepositoryName, tx *transaction) (uow.Repository, error) {
	switch repoargs.RepositoryName(name) {
	case repoargs.AccountRepoName:
		return &AccountRepository{store: s, tx: tx}, nil
	case repoargs.TransferRepoName:
		return &TransferRepository{store: s, tx: tx}, nil
	case repoargs.OutboxRepoName:
		return &OutboxRepository{store: s, tx: tx}, nil
	}
	return nil, uow.ErrRepositoryNotRegistered
}

func (s *Store) rowLock(id int64) *semaphore.Weighted {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = semaphore.NewWeighted(1)
		s.locks[id] = l
	}
	return l
}

func (s *Store) commit(tx *transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range tx.accounts {
		if _, exists := s.usernames[a.Username]; exists {
			return wrapErr(domain.ErrDuplicateKey, "commit account `%s`", a.Username)
		}
	}

	now := s.now()
	for _, a := range tx.accounts {
		s.accounts[a.ID] = a
		s.usernames[a.Username] = a.ID
	}
	for id, balance := range tx.balances {
		a := s.accounts[id]
		a.Balance = balance
		a.UpdatedAt = now
		s.accounts[id] = a
	}
	s.transfers = append(s.transfers, tx.transfers...)
	s.events = append(s.events, tx.events...)
	for i := range s.events {
		if update, ok := tx.eventUpdates[s.events[i].ID]; ok {
			update(&s.events[i], now)
		}
	}
	return nil
}

func (s *Store) nextAccountID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountSeq++
	return s.accountSeq
}

func (s *Store) nextTransferID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transferSeq++
	return s.transferSeq
}

func (s *Store) nextEventID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventSeq++
	return s.eventSeq
}

func wrapErr(err error, format string, args ...any) error {
	return fmt.Errorf("[memrepo/%s] %w", fmt.Sprintf(format, args...), err)
}
