// Package events переносит события переводов из outbox таблицы в Kafka.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	defaultLimitPerIteration uint = 100
	defaultIdleInterval           = time.Second
	defaultWriteTimeout           = 10 * time.Second
)

// Publisher читает неотправленные события outbox и пишет их в Kafka. Событие помечается отправленным в том же
// юните работы, что и чтение, поэтому несколько экземпляров могут работать параллельно.
type Publisher struct {
	uow               uow.UOW
	writer            Writer
	l                 *logrus.Entry
	limitPerIteration uint
	idleInterval      time.Duration
	writeTimeout      time.Duration
}

func NewPublisher(u uow.UOW, writer Writer, l *logrus.Logger) *Publisher {
	loggerEntry := l.WithFields(logrus.Fields{
		"component": "events",
		"module":    "publisher",
	})

	return &Publisher{
		uow:               u,
		writer:            writer,
		l:                 loggerEntry,
		limitPerIteration: defaultLimitPerIteration,
		idleInterval:      defaultIdleInterval,
		writeTimeout:      defaultWriteTimeout,
	}
}

// SetLimitPerIteration устанавливает кол-во событий, отправляемых за одну итерацию.
func (p *Publisher) SetLimitPerIteration(limit uint) *Publisher {
	p.limitPerIteration = limit
	return p
}

// SetIdleInterval устанавливает паузу между итерациями, когда событий нет или произошла ошибка.
func (p *Publisher) SetIdleInterval(d time.Duration) *Publisher {
	p.idleInterval = d
	return p
}

// Run отправляет события в цикле до отмены контекста. Writer закрывается при выходе.
func (p *Publisher) Run(ctx context.Context) {
	p.l.WithFields(logrus.Fields{
		"limitPerIteration": p.limitPerIteration,
		"idleInterval":      p.idleInterval,
	}).Info("Starting")

	defer func() {
		if err := p.writer.Close(); err != nil {
			p.l.WithError(err).Error("closing writer")
		}
	}()

	for {
		err := p.process(ctx)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNoEvents) && ctx.Err() == nil {
			p.l.WithError(err).Error("process error")
		}

		select {
		case <-ctx.Done():
			p.l.Info("Got stop signal, exiting...")
			return
		case <-time.After(jitter(p.idleInterval, 0.15, 0.15)): //nolint:mnd
		}
	}
}

// process отправляет одну пачку событий. Возвращает ErrNoEvents если отправлять нечего.
//
// Алгоритм работы:
//  1. Внутри юнита работы забирает до limitPerIteration событий в статусе PENDING.
//  2. Пишет их в Kafka одним вызовом.
//  3. При успехе помечает события отправленными, при ошибке увеличивает счетчик попыток. Фиксирует юнит работы
//     в обоих случаях.
func (p *Publisher) process(ctx context.Context) error {
	var writeErr error
	txErr := p.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		repo, repoErr := uow.GetAs[OutboxRepository](tx, uow.RepositoryName(repoargs.OutboxRepoName))
		if repoErr != nil {
			return errors.Wrap(repoErr, "outbox repository")
		}

		events, fetchErr := repo.FetchPending(c, p.limitPerIteration)
		if fetchErr != nil {
			return errors.Wrap(fetchErr, "fetching pending events")
		}
		if len(events) == 0 {
			return ErrNoEvents
		}

		msgs, ids := p.messages(events)

		writeCtx, cancel := context.WithTimeout(c, p.writeTimeout)
		defer cancel()
		if err := p.writer.WriteMessages(writeCtx, msgs...); err != nil {
			writeErr = errors.Wrapf(err, "writing %d events", len(msgs))
			return errors.Wrap(repo.IncrementAttempts(c, ids), "incrementing attempts")
		}

		if err := repo.MarkSent(c, ids); err != nil {
			return errors.Wrap(err, "marking events as sent")
		}
		p.l.WithField("count", len(ids)).Debug("events published")
		return nil
	})

	if txErr != nil {
		return errors.Wrap(txErr, "process")
	}
	return writeErr
}

func (p *Publisher) messages(events []domain.TransferEvent) ([]kafka.Message, []int64) {
	var msgs = make([]kafka.Message, len(events))
	var ids = make([]int64, len(events))
	for i, e := range events {
		msgs[i] = kafka.Message{
			Key:   p.messageKey(e),
			Value: e.Payload,
			Time:  e.CreatedAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(domain.TransferCompletedEventType)},
				{Key: "eventId", Value: []byte(e.EventID.String())},
			},
		}
		ids[i] = e.ID
	}
	return msgs, ids
}

// messageKey ключ сообщения - id отправителя. Если тело не разбирается, сообщение уходит без ключа.
func (p *Publisher) messageKey(e domain.TransferEvent) []byte {
	var payload domain.TransferCompleted
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		p.l.WithError(err).WithField("eventID", e.EventID).Warn("malformed event payload")
		return nil
	}
	return []byte(strconv.FormatInt(payload.SenderID, 10))
}
