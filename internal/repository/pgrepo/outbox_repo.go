package pgrepo

import (
	"context"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const eventColumns = "id, event_id, created_at, sent_at, transfer_id, payload, status, attempts"

type OutboxRepository struct {
	conn uow.DBTX
}

func NewOutboxRepository(conn uow.DBTX) *OutboxRepository {
	return &OutboxRepository{conn: conn}
}

func (r *OutboxRepository) Create(ctx context.Context, args repoargs.TransferEventCreate) (*domain.TransferEvent, error) {
	row := r.conn.QueryRow(ctx,
		`INSERT INTO transfer_events (event_id, transfer_id, payload) VALUES ($1, $2, $3) RETURNING `+eventColumns,
		args.EventID, args.TransferID, args.Payload,
	)
	event, err := scanEvent(row)
	if err != nil {
		return nil, convertErr(err, "creating event for transfer %d", args.TransferID)
	}
	return event, nil
}

// FetchPending блокирует и возвращает до limit неотправленных событий. Строки, заблокированные другим
// отправителем, пропускаются (SKIP LOCKED).
func (r *OutboxRepository) FetchPending(ctx context.Context, limit uint) ([]domain.TransferEvent, error) {
	safeLimit, limitErr := safeConvertUintToInt32(limit)
	if limitErr != nil {
		return nil, convertErr(limitErr, "converting limit to int32")
	}

	rows, err := r.conn.Query(ctx,
		`SELECT `+eventColumns+` FROM transfer_events
		WHERE status = $1
		ORDER BY id
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		string(domain.EventStatusPending), safeLimit,
	)
	if err != nil {
		return nil, convertErr(err, "fetching pending events")
	}
	defer rows.Close()

	var events = make([]domain.TransferEvent, 0, limit)
	for rows.Next() {
		event, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning pending event")
		}
		events = append(events, *event)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "fetching pending events")
	}
	return events, nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, ids []int64) error {
	if _, err := r.conn.Exec(ctx,
		`UPDATE transfer_events SET status = $2, sent_at = now() WHERE id = ANY($1)`,
		ids, string(domain.EventStatusSent),
	); err != nil {
		return convertErr(err, "marking events `%v` as sent", ids)
	}
	return nil
}

func (r *OutboxRepository) IncrementAttempts(ctx context.Context, ids []int64) error {
	if _, err := r.conn.Exec(ctx,
		`UPDATE transfer_events SET attempts = attempts + 1 WHERE id = ANY($1)`,
		ids,
	); err != nil {
		return convertErr(err, "incrementing attempts for events `%v`", ids)
	}
	return nil
}

func scanEvent(row pgx.Row) (*domain.TransferEvent, error) {
	var e domain.TransferEvent
	var status string
	var attempts int32
	if err := row.Scan(
		&e.ID, &e.EventID, &e.CreatedAt, &e.SentAt, &e.TransferID, &e.Payload, &status, &attempts,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	e.Status = domain.EventStatusType(status)
	e.Attempts = uint(attempts) //nolint:gosec
	return &e, nil
}
