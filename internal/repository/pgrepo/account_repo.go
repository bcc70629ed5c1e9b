package pgrepo

import (
	"context"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = "id, created_at, updated_at, username, encrypted_password, balance"

type AccountRepository struct {
	conn uow.DBTX
}

func NewAccountRepository(conn uow.DBTX) *AccountRepository {
	return &AccountRepository{conn: conn}
}

// Create создает счет с начальным балансом. В случае конфликта юзернейма возвращает ошибку domain.ErrDuplicateKey.
func (r *AccountRepository) Create(ctx context.Context, args repoargs.CreateAccount) (*domain.Account, error) {
	row := r.conn.QueryRow(ctx,
		`INSERT INTO accounts (username, encrypted_password, balance) VALUES ($1, $2, $3) RETURNING `+accountColumns,
		args.Username, args.Password, args.Balance,
	)
	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "creating account `%s`", args.Username)
	}
	return account, nil
}

// FindByUsername ищет счет по юзернейму. Возвращает ошибку domain.ErrRecordNotFound если запись не найдена.
func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "finding account by username `%s`", username)
	}
	return account, nil
}

// FindByID читает счет без блокировки.
func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "finding account by id %d", id)
	}
	return account, nil
}

// LockByID берет эксклюзивную блокировку строки счета (SELECT ... FOR UPDATE) и возвращает ее актуальное
// состояние. Имеет смысл только внутри транзакции: блокировка держится до commit/rollback.
// Если ожидание превысило lock_timeout транзакции, вернется domain.ErrLockTimeout.
func (r *AccountRepository) LockByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "locking account %d", id)
	}
	return account, nil
}

// UpdateBalance записывает новый баланс счета. Вызывается в той же транзакции, что и LockByID.
// Отрицательный баланс отклоняется ограничением таблицы (domain.ErrCheckViolation).
func (r *AccountRepository) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = now() WHERE id = $1`,
		id, balance,
	)
	if err != nil {
		return convertErr(err, "updating balance of account %d", id)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "updating balance of account %d", id)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt, &a.Username, &a.EncryptedPassword, &a.Balance); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &a, nil
}
