package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/internal/service/mocks"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	uowmocks "github.com/fsdevblog/p2p-wallet/pkg/uow/mocks"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type TransferServiceTestSuite struct {
	suite.Suite
	mockCtrl      *gomock.Controller
	mockUOW       *uowmocks.MockUOW
	mockTX        *uowmocks.MockTX
	mockAccounts  *mocks.MockAccountRepository
	mockTransfers *mocks.MockTransferRepository
	mockOutbox    *mocks.MockOutboxRepository
	service       *TransferService
}

func TestTransferServiceSuite(t *testing.T) {
	suite.Run(t, new(TransferServiceTestSuite))
}

func (s *TransferServiceTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockUOW = uowmocks.NewMockUOW(s.mockCtrl)
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockAccounts = mocks.NewMockAccountRepository(s.mockCtrl)
	s.mockTransfers = mocks.NewMockTransferRepository(s.mockCtrl)
	s.mockOutbox = mocks.NewMockOutboxRepository(s.mockCtrl)

	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.AccountRepoName)).Return(s.mockAccounts, nil).AnyTimes()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.TransferRepoName)).Return(s.mockTransfers, nil).AnyTimes()
	s.mockTX.EXPECT().Get(uow.RepositoryName(repoargs.OutboxRepoName)).Return(s.mockOutbox, nil).AnyTimes()

	l := logrus.New()
	l.SetOutput(io.Discard)
	s.service = NewTransferService(s.mockUOW, l)
}

func (s *TransferServiceTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

// expectDo настраивает uow на выполнение fn с мок транзакцией.
func (s *TransferServiceTestSuite) expectDo() {
	s.mockUOW.EXPECT().
		Do(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, uow.TX) error) error {
			return fn(ctx, s.mockTX)
		})
}

func (s *TransferServiceTestSuite) TestTransferLocksLowerIDFirst() {
	const senderID, receiverID = 7, 3
	amount := decimal.RequireFromString("30.50")
	createdAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	s.expectDo()
	gomock.InOrder(
		s.mockAccounts.EXPECT().LockByID(gomock.Any(), int64(receiverID)).
			Return(&domain.Account{ID: receiverID, Balance: decimal.NewFromInt(100)}, nil),
		s.mockAccounts.EXPECT().LockByID(gomock.Any(), int64(senderID)).
			Return(&domain.Account{ID: senderID, Balance: decimal.NewFromInt(100)}, nil),
		s.mockAccounts.EXPECT().UpdateBalance(gomock.Any(), int64(senderID), decEq("69.50")).Return(nil),
		s.mockAccounts.EXPECT().UpdateBalance(gomock.Any(), int64(receiverID), decEq("130.50")).Return(nil),
		s.mockTransfers.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, args repoargs.TransferCreate) (*domain.Transfer, error) {
				s.Equal(int64(senderID), args.SenderID)
				s.Equal(int64(receiverID), args.ReceiverID)
				s.True(amount.Equal(args.Amount))
				return &domain.Transfer{
					ID:         11,
					CreatedAt:  createdAt,
					SenderID:   args.SenderID,
					ReceiverID: args.ReceiverID,
					Amount:     args.Amount,
					Status:     domain.TransferStatusSuccess,
				}, nil
			}),
		s.mockOutbox.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, args repoargs.TransferEventCreate) (*domain.TransferEvent, error) {
				var payload domain.TransferCompleted
				s.Require().NoError(json.Unmarshal(args.Payload, &payload))
				s.Equal(args.EventID, payload.EventID)
				s.Equal(int64(11), payload.TransferID)
				s.Equal(int64(senderID), payload.SenderID)
				s.True(amount.Equal(payload.Amount))
				return &domain.TransferEvent{ID: 1, EventID: args.EventID}, nil
			}),
	)

	result, err := s.service.Transfer(s.T().Context(), senderID, receiverID, amount)
	s.Require().NoError(err)
	s.Equal(int64(11), result.LedgerID)
	s.Equal("69.50", result.SenderNewBalance.StringFixed(AmountScale))
	s.Equal(int64(receiverID), result.ReceiverID)
	s.Equal(createdAt, result.CreatedAt)
}

func (s *TransferServiceTestSuite) TestPreLockRejectionNeverTouchesStore() {
	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).Times(0)

	cases := []struct {
		name     string
		sender   int64
		receiver int64
		amount   decimal.Decimal
		wantKind domain.ErrorKind
	}{
		{name: "zero", sender: 1, receiver: 2, amount: decimal.Zero, wantKind: domain.KindInvalidAmount},
		{name: "negative", sender: 1, receiver: 2, amount: decimal.NewFromInt(-5), wantKind: domain.KindInvalidAmount},
		{name: "too precise", sender: 1, receiver: 2, amount: decimal.RequireFromString("1.001"),
			wantKind: domain.KindInvalidAmount},
		{name: "same account", sender: 3, receiver: 3, amount: decimal.NewFromInt(10), wantKind: domain.KindSameAccount},
		{name: "same account with bad amount", sender: 3, receiver: 3, amount: decimal.Zero,
			wantKind: domain.KindInvalidAmount},
	}

	for _, c := range cases {
		s.Run(c.name, func() {
			result, err := s.service.Transfer(s.T().Context(), c.sender, c.receiver, c.amount)
			s.Nil(result)
			var tErr *domain.TransferError
			s.Require().ErrorAs(err, &tErr)
			s.Equal(c.wantKind, tErr.Kind)
		})
	}
}

func (s *TransferServiceTestSuite) TestInsufficientFunds() {
	s.expectDo()
	s.mockAccounts.EXPECT().LockByID(gomock.Any(), int64(1)).
		Return(&domain.Account{ID: 1, Balance: decimal.NewFromInt(200)}, nil)
	s.mockAccounts.EXPECT().LockByID(gomock.Any(), int64(2)).
		Return(&domain.Account{ID: 2, Balance: decimal.NewFromInt(1000)}, nil)

	_, err := s.service.Transfer(s.T().Context(), 1, 2, decimal.NewFromInt(500))
	s.Require().ErrorIs(err, domain.ErrInsufficientFunds)
}

func (s *TransferServiceTestSuite) TestStoreErrorsAreClassified() {
	raw := "connection refused on 10.0.0.1:5432"
	cases := []struct {
		name        string
		firstErr    error
		secondErr   error
		wantKind    domain.ErrorKind
		wantMessage string
	}{
		{name: "first not found", firstErr: domain.ErrRecordNotFound,
			wantKind: domain.KindAccountNotFound, wantMessage: "account 1 not found"},
		{name: "second not found", secondErr: fmt.Errorf("wrapped: %w", domain.ErrRecordNotFound),
			wantKind: domain.KindAccountNotFound, wantMessage: "account 2 not found"},
		{name: "lock timeout", secondErr: fmt.Errorf("%s: %w", raw, domain.ErrLockTimeout),
			wantKind: domain.KindConflict},
		{name: "serialization", firstErr: domain.ErrSerialization, wantKind: domain.KindConflict},
		{name: "caller timeout", firstErr: context.DeadlineExceeded, wantKind: domain.KindConflict},
		{name: "unavailable", firstErr: fmt.Errorf("%s: %w", raw, domain.ErrStoreUnavailable),
			wantKind: domain.KindStoreUnavailable},
		{name: "unknown", firstErr: errors.New(raw), wantKind: domain.KindInternal},
	}

	for _, c := range cases {
		s.Run(c.name, func() {
			s.expectDo()
			if c.firstErr != nil {
				s.mockAccounts.EXPECT().LockByID(gomock.Any(), int64(1)).Return(nil, c.firstErr)
			} else {
				s.mockAccounts.EXPECT().LockByID(gomock.Any(), int64(1)).
					Return(&domain.Account{ID: 1, Balance: decimal.NewFromInt(100)}, nil)
				s.mockAccounts.EXPECT().LockByID(gomock.Any(), int64(2)).Return(nil, c.secondErr)
			}

			_, err := s.service.Transfer(s.T().Context(), 2, 1, decimal.NewFromInt(10))
			var tErr *domain.TransferError
			s.Require().ErrorAs(err, &tErr)
			s.Equal(c.wantKind, tErr.Kind)
			s.NotContains(tErr.Message, raw)
			if c.wantMessage != "" {
				s.Equal(c.wantMessage, tErr.Message)
			}
		})
	}
}

func (s *TransferServiceTestSuite) TestLedgerFailureAbortsUnitOfWork() {
	s.expectDo()
	s.mockAccounts.EXPECT().LockByID(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, id int64) (*domain.Account, error) {
			return &domain.Account{ID: id, Balance: decimal.NewFromInt(100)}, nil
		}).Times(2)
	s.mockAccounts.EXPECT().UpdateBalance(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(2)
	s.mockTransfers.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, domain.ErrCheckViolation)
	s.mockOutbox.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

	_, err := s.service.Transfer(s.T().Context(), 1, 2, decimal.NewFromInt(10))
	s.Require().ErrorIs(err, domain.ErrInternal)
}

func (s *TransferServiceTestSuite) TestCommitFailureIsClassified() {
	s.mockUOW.EXPECT().Do(gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("commit transaction: %w", domain.ErrSerialization))

	_, err := s.service.Transfer(s.T().Context(), 1, 2, decimal.NewFromInt(10))
	s.Require().ErrorIs(err, domain.ErrConflict)
}

type decimalMatcher struct {
	want decimal.Decimal
}

func decEq(v string) gomock.Matcher {
	return decimalMatcher{want: decimal.RequireFromString(v)}
}

func (m decimalMatcher) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalMatcher) String() string {
	return "is equal to decimal " + m.want.String()
}
