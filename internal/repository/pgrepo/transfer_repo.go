package pgrepo

import (
	"context"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const transferColumns = "id, created_at, sender_id, receiver_id, amount, status"

type TransferRepository struct {
	conn uow.DBTX
}

func NewTransferRepository(conn uow.DBTX) *TransferRepository {
	return &TransferRepository{conn: conn}
}

// Create добавляет запись в журнал переводов. id и created_at назначает база.
func (r *TransferRepository) Create(ctx context.Context, args repoargs.TransferCreate) (*domain.Transfer, error) {
	row := r.conn.QueryRow(ctx,
		`INSERT INTO transfers (sender_id, receiver_id, amount, status) VALUES ($1, $2, $3, $4) RETURNING `+transferColumns,
		args.SenderID, args.ReceiverID, args.Amount, string(domain.TransferStatusSuccess),
	)
	transfer, err := scanTransfer(row)
	if err != nil {
		return nil, convertErr(err, "creating transfer %d -> %d", args.SenderID, args.ReceiverID)
	}
	return transfer, nil
}

// ListByAccount возвращает переводы, где счет отправитель или получатель, от новых к старым.
func (r *TransferRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Transfer, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+transferColumns+` FROM transfers
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, id DESC`,
		accountID,
	)
	if err != nil {
		return nil, convertErr(err, "listing transfers of account %d", accountID)
	}
	defer rows.Close()

	var transfers = make([]domain.Transfer, 0)
	for rows.Next() {
		transfer, scanErr := scanTransfer(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning transfer of account %d", accountID)
		}
		transfers = append(transfers, *transfer)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "listing transfers of account %d", accountID)
	}
	return transfers, nil
}

// StatsByAccount считает суммы отправленного/полученного и количество переводов счета.
func (r *TransferRepository) StatsByAccount(ctx context.Context, accountID int64) (*domain.AccountStats, error) {
	var stats domain.AccountStats
	err := r.conn.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(amount) FILTER (WHERE sender_id = $1), 0),
			COALESCE(SUM(amount) FILTER (WHERE receiver_id = $1), 0),
			COUNT(*)
		FROM transfers
		WHERE sender_id = $1 OR receiver_id = $1`,
		accountID,
	).Scan(&stats.TotalSent, &stats.TotalReceived, &stats.Count)
	if err != nil {
		return nil, convertErr(err, "aggregating transfers of account %d", accountID)
	}
	return &stats, nil
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	var status string
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.SenderID, &t.ReceiverID, &t.Amount, &status); err != nil {
		return nil, err //nolint:wrapcheck
	}
	t.Status = domain.TransferStatusType(status)
	return &t, nil
}
