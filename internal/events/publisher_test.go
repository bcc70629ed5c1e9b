package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/events/mocks"
	"github.com/fsdevblog/p2p-wallet/internal/repository/memrepo"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type PublisherTestSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	store      *memrepo.Store
	mockWriter *mocks.MockWriter
	publisher  *Publisher
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherTestSuite))
}

func (s *PublisherTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockWriter = mocks.NewMockWriter(s.ctrl)
	s.store = memrepo.New()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s.publisher = NewPublisher(s.store, s.mockWriter, logger).
		SetIdleInterval(10 * time.Millisecond)
}

func (s *PublisherTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

// addEvents кладет в outbox события переводов от senderID.
func (s *PublisherTestSuite) addEvents(senderID int64, n int) {
	err := s.store.Do(s.T().Context(), func(ctx context.Context, tx uow.TX) error {
		repo, _ := uow.GetAs[*memrepo.OutboxRepository](tx, uow.RepositoryName(repoargs.OutboxRepoName))
		for i := range n {
			eventID := uuid.New()
			payload, _ := json.Marshal(domain.TransferCompleted{
				EventID:    eventID,
				TransferID: int64(i + 1),
				SenderID:   senderID,
				ReceiverID: senderID + 1,
				Amount:     decimal.NewFromInt(10),
				CreatedAt:  time.Now(),
			})
			if _, err := repo.Create(ctx, repoargs.TransferEventCreate{
				EventID:    eventID,
				TransferID: int64(i + 1),
				Payload:    payload,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	s.Require().NoError(err)
}

func (s *PublisherTestSuite) pending() []domain.TransferEvent {
	repo, err := uow.GetRepositoryAs[*memrepo.OutboxRepository](s.store, uow.RepositoryName(repoargs.OutboxRepoName))
	s.Require().NoError(err)
	events, err := repo.FetchPending(s.T().Context(), 100)
	s.Require().NoError(err)
	return events
}

func (s *PublisherTestSuite) TestProcess_NoEvents() {
	s.mockWriter.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Times(0)

	err := s.publisher.process(s.T().Context())
	s.Require().ErrorIs(err, ErrNoEvents)
}

func (s *PublisherTestSuite) TestProcess_PublishesAndMarksSent() {
	s.addEvents(42, 2)

	s.mockWriter.EXPECT().
		WriteMessages(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs ...kafka.Message) error {
			s.Require().Len(msgs, 2)
			for _, msg := range msgs {
				s.Equal("42", string(msg.Key))
				s.Equal(domain.TransferCompletedEventType, string(msg.Headers[0].Value))
			}
			return nil
		})

	s.Require().NoError(s.publisher.process(s.T().Context()))
	s.Empty(s.pending())

	// Повторная итерация ничего не отправляет.
	s.Require().ErrorIs(s.publisher.process(s.T().Context()), ErrNoEvents)
}

func (s *PublisherTestSuite) TestProcess_RespectsLimit() {
	s.addEvents(1, 3)
	s.publisher.SetLimitPerIteration(2)

	s.mockWriter.EXPECT().WriteMessages(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	s.Require().NoError(s.publisher.process(s.T().Context()))
	s.Len(s.pending(), 1)
}

func (s *PublisherTestSuite) TestProcess_WriteFailureKeepsPending() {
	s.addEvents(7, 1)
	writeErr := errors.New("broker not available")

	s.mockWriter.EXPECT().WriteMessages(gomock.Any(), gomock.Any()).Return(writeErr)

	err := s.publisher.process(s.T().Context())
	s.Require().ErrorIs(err, writeErr)

	pending := s.pending()
	s.Require().Len(pending, 1)
	s.Equal(uint(1), pending[0].Attempts)
}

func (s *PublisherTestSuite) TestRun_StopsOnCancel() {
	s.mockWriter.EXPECT().Close().Return(nil).Times(1)

	ctx, cancel := context.WithCancel(s.T().Context())
	done := make(chan struct{})
	go func() {
		s.publisher.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.FailNow("publisher did not stop")
	}
}
