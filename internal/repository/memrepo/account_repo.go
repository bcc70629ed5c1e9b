package memrepo

import (
	"context"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/shopspring/decimal"
)

type AccountRepository struct {
	store *Store
	tx    *transaction
}

func (r *AccountRepository) Create(_ context.Context, args repoargs.CreateAccount) (*domain.Account, error) {
	if r.tx == nil {
		return nil, wrapErr(domain.ErrNoTransaction, "creating account `%s`", args.Username)
	}
	if _, exists := r.findIDByUsername(args.Username); exists {
		return nil, wrapErr(domain.ErrDuplicateKey, "creating account `%s`", args.Username)
	}

	now := r.store.now()
	account := domain.Account{
		ID:                r.store.nextAccountID(),
		CreatedAt:         now,
		UpdatedAt:         now,
		Username:          args.Username,
		EncryptedPassword: args.Password,
		Balance:           args.Balance,
	}
	r.tx.accounts = append(r.tx.accounts, account)
	return &account, nil
}

func (r *AccountRepository) FindByUsername(_ context.Context, username string) (*domain.Account, error) {
	id, ok := r.findIDByUsername(username)
	if !ok {
		return nil, wrapErr(domain.ErrRecordNotFound, "finding account by username `%s`", username)
	}
	account, _ := r.lookup(id)
	return &account, nil
}

func (r *AccountRepository) FindByID(_ context.Context, id int64) (*domain.Account, error) {
	account, ok := r.lookup(id)
	if !ok {
		return nil, wrapErr(domain.ErrRecordNotFound, "finding account by id %d", id)
	}
	return &account, nil
}

// LockByID блокирует строку счета до конца транзакции и возвращает значение, прочитанное уже под блокировкой.
func (r *AccountRepository) LockByID(ctx context.Context, id int64) (*domain.Account, error) {
	if r.tx == nil {
		return nil, wrapErr(domain.ErrNoTransaction, "locking account %d", id)
	}
	if _, ok := r.lookup(id); !ok {
		return nil, wrapErr(domain.ErrRecordNotFound, "locking account %d", id)
	}
	if err := r.tx.lock(ctx, id); err != nil {
		return nil, wrapErr(err, "locking account %d", id)
	}
	account, _ := r.lookup(id)
	return &account, nil
}

func (r *AccountRepository) UpdateBalance(_ context.Context, id int64, balance decimal.Decimal) error {
	if r.tx == nil {
		return wrapErr(domain.ErrNoTransaction, "updating balance of account %d", id)
	}
	if _, ok := r.lookup(id); !ok {
		return wrapErr(domain.ErrRecordNotFound, "updating balance of account %d", id)
	}
	if _, created := r.tx.stagedAccount(id); !created && !r.tx.holds(id) {
		return wrapErr(domain.ErrRowNotLocked, "updating balance of account %d", id)
	}
	if balance.IsNegative() {
		return wrapErr(domain.ErrCheckViolation, "updating balance of account %d", id)
	}
	r.tx.balances[id] = balance
	return nil
}

// lookup читает счет с учетом незафиксированных записей своей транзакции.
func (r *AccountRepository) lookup(id int64) (domain.Account, bool) {
	account, ok := domain.Account{}, false
	if r.tx != nil {
		account, ok = r.tx.stagedAccount(id)
	}
	if !ok {
		r.store.mu.RLock()
		account, ok = r.store.accounts[id]
		r.store.mu.RUnlock()
	}
	if !ok {
		return domain.Account{}, false
	}
	if r.tx != nil {
		if balance, staged := r.tx.balances[id]; staged {
			account.Balance = balance
		}
	}
	return account, true
}

func (r *AccountRepository) findIDByUsername(username string) (int64, bool) {
	if r.tx != nil {
		for _, a := range r.tx.accounts {
			if a.Username == username {
				return a.ID, true
			}
		}
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	id, ok := r.store.usernames[username]
	return id, ok
}
