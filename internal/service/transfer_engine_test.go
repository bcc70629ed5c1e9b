package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/memrepo"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// TransferEngineTestSuite гоняет TransferService на хранилище в памяти с настоящими горутинами.
type TransferEngineTestSuite struct {
	suite.Suite
	store   *memrepo.Store
	service *TransferService
	logger  *logrus.Logger
}

func TestTransferEngineSuite(t *testing.T) {
	suite.Run(t, new(TransferEngineTestSuite))
}

func (s *TransferEngineTestSuite) SetupTest() {
	s.logger = logrus.New()
	s.logger.SetOutput(io.Discard)
	s.store = memrepo.New(memrepo.WithLockTimeout(5 * time.Second))
	s.service = NewTransferService(s.store, s.logger)
}

func (s *TransferEngineTestSuite) createAccount(username string, balance int64) int64 {
	var id int64
	err := s.store.Do(s.T().Context(), func(ctx context.Context, tx uow.TX) error {
		repo, err := uow.GetAs[AccountRepository](tx, uow.RepositoryName(repoargs.AccountRepoName))
		if err != nil {
			return err
		}
		account, err := repo.Create(ctx, repoargs.CreateAccount{
			Username: username,
			Password: "hash",
			Balance:  decimal.NewFromInt(balance),
		})
		if err != nil {
			return err
		}
		id = account.ID
		return nil
	})
	s.Require().NoError(err)
	return id
}

func (s *TransferEngineTestSuite) balance(id int64) decimal.Decimal {
	repo, err := uow.GetRepositoryAs[AccountRepository](s.store, uow.RepositoryName(repoargs.AccountRepoName))
	s.Require().NoError(err)
	account, err := repo.FindByID(s.T().Context(), id)
	s.Require().NoError(err)
	return account.Balance
}

func (s *TransferEngineTestSuite) ledger(id int64) []domain.Transfer {
	repo, err := uow.GetRepositoryAs[TransferRepository](s.store, uow.RepositoryName(repoargs.TransferRepoName))
	s.Require().NoError(err)
	transfers, err := repo.ListByAccount(s.T().Context(), id)
	s.Require().NoError(err)
	return transfers
}

func (s *TransferEngineTestSuite) requireBalance(id int64, want int64) {
	s.Require().Truef(decimal.NewFromInt(want).Equal(s.balance(id)),
		"account %d balance %s, want %d", id, s.balance(id), want)
}

// holdLock держит блокировку строки id в отдельном юните работы до закрытия release.
func (s *TransferEngineTestSuite) holdLock(id int64) (release func()) {
	locked := make(chan struct{})
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		_ = s.store.Do(context.Background(), func(ctx context.Context, tx uow.TX) error {
			repo, _ := uow.GetAs[AccountRepository](tx, uow.RepositoryName(repoargs.AccountRepoName))
			if _, err := repo.LockByID(ctx, id); err != nil {
				return err
			}
			close(locked)
			<-done
			return nil
		})
	}()
	<-locked
	return func() {
		close(done)
		<-finished
	}
}

func (s *TransferEngineTestSuite) TestSimpleTransfer() {
	a := s.createAccount("a", 1000)
	b := s.createAccount("b", 1000)

	result, err := s.service.Transfer(s.T().Context(), a, b, decimal.NewFromInt(300))
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(700).Equal(result.SenderNewBalance))

	s.requireBalance(a, 700)
	s.requireBalance(b, 1300)

	records := s.ledger(a)
	s.Require().Len(records, 1)
	s.Equal(result.LedgerID, records[0].ID)
	s.True(decimal.NewFromInt(300).Equal(records[0].Amount))
	s.Equal(domain.TransferStatusSuccess, records[0].Status)
}

func (s *TransferEngineTestSuite) TestInsufficientFundsLeavesStateUntouched() {
	a := s.createAccount("a", 200)
	b := s.createAccount("b", 1000)

	_, err := s.service.Transfer(s.T().Context(), a, b, decimal.NewFromInt(500))
	s.Require().ErrorIs(err, domain.ErrInsufficientFunds)

	s.requireBalance(a, 200)
	s.requireBalance(b, 1000)
	s.Empty(s.ledger(a))
}

func (s *TransferEngineTestSuite) TestSelfTransferRejectedBeforeLock() {
	a := s.createAccount("a", 1000)
	release := s.holdLock(a)
	defer release()

	// Строка занята, но отказ приходит сразу, без ожидания блокировки.
	_, err := s.service.Transfer(s.T().Context(), a, a, decimal.NewFromInt(1))
	s.Require().ErrorIs(err, domain.ErrSameAccount)
}

func (s *TransferEngineTestSuite) TestExactBalanceTransfer() {
	a := s.createAccount("a", 250)
	b := s.createAccount("b", 0)

	result, err := s.service.Transfer(s.T().Context(), a, b, decimal.NewFromInt(250))
	s.Require().NoError(err)
	s.True(result.SenderNewBalance.IsZero())
	s.requireBalance(a, 0)
	s.requireBalance(b, 250)
}

func (s *TransferEngineTestSuite) TestUnknownReceiver() {
	a := s.createAccount("a", 1000)

	_, err := s.service.Transfer(s.T().Context(), a, a+100, decimal.NewFromInt(1))
	s.Require().ErrorIs(err, domain.ErrAccountNotFound)
	s.requireBalance(a, 1000)
	s.Empty(s.ledger(a))
}

func (s *TransferEngineTestSuite) TestOpposingConcurrentTransfers() {
	a := s.createAccount("a", 1000)
	b := s.createAccount("b", 1000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, pair := range [][2]int64{{a, b}, {b, a}} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.service.Transfer(context.Background(), pair[0], pair[1], decimal.NewFromInt(600))
		}()
	}
	wg.Wait()

	s.Require().NoError(errors.Join(errs...))
	s.True(decimal.NewFromInt(2000).Equal(s.balance(a).Add(s.balance(b))))
	s.Len(s.ledger(a), 2)
}

func (s *TransferEngineTestSuite) TestAlternatingDirectionsDoNotDeadlock() {
	a := s.createAccount("a", 1000)
	b := s.createAccount("b", 1000)
	const n = 100

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sender, receiver := a, b
			if i%2 == 1 {
				sender, receiver = b, a
			}
			if _, err := s.service.Transfer(context.Background(), sender, receiver, decimal.NewFromInt(5)); err != nil {
				errs <- err
			}
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		s.FailNow("transfers did not complete")
	}
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	s.requireBalance(a, 1000)
	s.requireBalance(b, 1000)
	s.Len(s.ledger(a), n)
}

// Из 10 параллельных списаний по 200 с баланса 1000 проходят ровно 5.
func (s *TransferEngineTestSuite) TestNoDoubleSpend() {
	a := s.createAccount("a", 1000)
	b := s.createAccount("b", 0)

	var wg sync.WaitGroup
	results := make([]error, 10)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = s.service.Transfer(context.Background(), a, b, decimal.NewFromInt(200))
		}()
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientFunds):
			insufficient++
		default:
			s.Failf("unexpected error", "%v", err)
		}
	}
	s.Equal(5, ok)
	s.Equal(5, insufficient)
	s.requireBalance(a, 0)
	s.requireBalance(b, 1000)
	s.Len(s.ledger(a), ok)
}

// Конкурирующий юнит работы на паре (a, b) не задерживает перевод между c и d.
func (s *TransferEngineTestSuite) TestDisjointPairsDoNotSerialise() {
	a := s.createAccount("a", 1000)
	b := s.createAccount("b", 1000)
	c := s.createAccount("c", 1000)
	d := s.createAccount("d", 1000)

	releaseA := s.holdLock(a)
	defer releaseA()
	releaseB := s.holdLock(b)
	defer releaseB()

	ctx, cancel := context.WithTimeout(s.T().Context(), time.Second)
	defer cancel()
	_, err := s.service.Transfer(ctx, c, d, decimal.NewFromInt(10))
	s.Require().NoError(err)
	s.requireBalance(c, 990)
	s.requireBalance(d, 1010)
}

func (s *TransferEngineTestSuite) TestLockWaitBoundReturnsConflict() {
	store := memrepo.New(memrepo.WithLockTimeout(20 * time.Millisecond))
	s.store = store
	s.service = NewTransferService(store, s.logger)

	a := s.createAccount("a", 1000)
	b := s.createAccount("b", 1000)
	release := s.holdLock(b)

	_, err := s.service.Transfer(s.T().Context(), a, b, decimal.NewFromInt(10))
	s.Require().ErrorIs(err, domain.ErrConflict)
	release()

	s.requireBalance(a, 1000)
	s.requireBalance(b, 1000)
	s.Empty(s.ledger(a))

	// Та же операция после освобождения строки проходит.
	_, err = s.service.Transfer(s.T().Context(), a, b, decimal.NewFromInt(10))
	s.Require().NoError(err)
}

func (s *TransferEngineTestSuite) TestCallerTimeoutRollsBack() {
	a := s.createAccount("a", 1000)
	b := s.createAccount("b", 1000)
	release := s.holdLock(a)
	defer release()

	ctx, cancel := context.WithTimeout(s.T().Context(), 20*time.Millisecond)
	defer cancel()
	_, err := s.service.Transfer(ctx, b, a, decimal.NewFromInt(10))

	var tErr *domain.TransferError
	s.Require().ErrorAs(err, &tErr)
	s.Equal(domain.KindConflict, tErr.Kind)
	s.True(tErr.Retryable())
}

func (s *TransferEngineTestSuite) TestFailureAfterWritesIsAtomic() {
	a := s.createAccount("a", 1000)
	b := s.createAccount("b", 1000)

	service := NewTransferService(failingOutboxUOW{s.store}, s.logger)
	_, err := service.Transfer(s.T().Context(), a, b, decimal.NewFromInt(100))

	var tErr *domain.TransferError
	s.Require().ErrorAs(err, &tErr)
	s.Equal(domain.KindStoreUnavailable, tErr.Kind)
	s.NotContains(tErr.Message, "outbox")

	s.requireBalance(a, 1000)
	s.requireBalance(b, 1000)
	s.Empty(s.ledger(a))
}

// failingOutboxUOW подменяет outbox репозиторий внутри юнита работы на всегда падающий.
type failingOutboxUOW struct {
	*memrepo.Store
}

func (u failingOutboxUOW) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	return u.Store.Do(ctx, func(c context.Context, tx uow.TX) error { //nolint:wrapcheck
		return fn(c, failingOutboxTX{tx})
	})
}

type failingOutboxTX struct {
	uow.TX
}

func (t failingOutboxTX) Get(name uow.RepositoryName) (uow.Repository, error) {
	if name == uow.RepositoryName(repoargs.OutboxRepoName) {
		return failingOutbox{}, nil
	}
	return t.TX.Get(name) //nolint:wrapcheck
}

type failingOutbox struct{}

func (failingOutbox) Create(context.Context, repoargs.TransferEventCreate) (*domain.TransferEvent, error) {
	return nil, fmt.Errorf("outbox insert: %w", domain.ErrStoreUnavailable)
}
