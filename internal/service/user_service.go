package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/domain"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/internal/service/tokens"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/shopspring/decimal"
)

const JWTTokenExpire = 1 * time.Hour

type UserService struct {
	uow             uow.UOW
	accountRepo     AccountRepository
	jwtTokenSecret  []byte
	psswd           PasswordHasher
	startingBalance decimal.Decimal
}

func NewUserService(
	u uow.UOW,
	jwtTokenSecret []byte,
	psswd PasswordHasher,
	startingBalance decimal.Decimal,
) (*UserService, error) {
	accountRepo, err := uow.GetRepositoryAs[AccountRepository](u, uow.RepositoryName(repoargs.AccountRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &UserService{
		uow:             u,
		accountRepo:     accountRepo,
		jwtTokenSecret:  jwtTokenSecret,
		psswd:           psswd,
		startingBalance: startingBalance,
	}, nil
}

type RegisterUserArgs struct {
	Username string
	Password string
}

// Register создает счет пользователя со стартовым балансом. После успешного создания генерирует jwt token.
// Возвращает 3 значения: созданный счет, токен и ошибку.
func (s *UserService) Register(ctx context.Context, args RegisterUserArgs) (*domain.Account, string, error) {
	password, hashErr := s.psswd.HashPassword(args.Password)
	if hashErr != nil {
		return nil, "", fmt.Errorf("registering user: %s", hashErr.Error())
	}
	var account *domain.Account
	var token string
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		var accountErr, tokenErr error
		accountRepo, repoErr := uow.GetAs[AccountRepository](tx, uow.RepositoryName(repoargs.AccountRepoName))
		if repoErr != nil {
			return repoErr //nolint:wrapcheck
		}
		account, accountErr = accountRepo.Create(c, repoargs.CreateAccount{
			Username: args.Username,
			Password: password,
			Balance:  s.startingBalance,
		})
		if accountErr != nil {
			return accountErr //nolint:wrapcheck
		}

		token, tokenErr = tokens.GenerateUserJWT(account.ID, JWTTokenExpire, s.jwtTokenSecret)
		if tokenErr != nil {
			return tokenErr //nolint:wrapcheck
		}
		return nil
	})

	if txErr != nil {
		return nil, "", fmt.Errorf("registering user: %w", txErr)
	}
	return account, token, nil
}

type LoginUserArgs struct {
	Username string
	Password string
}

// Login проверяет пару логин/пароль и выпускает новый jwt token.
// Возвращает domain.ErrRecordNotFound или domain.ErrPasswordMissMatch при неверных данных.
func (s *UserService) Login(ctx context.Context, args LoginUserArgs) (*domain.Account, string, error) {
	account, err := s.accountRepo.FindByUsername(ctx, args.Username)
	if err != nil {
		return nil, "", fmt.Errorf("login user: %w", err)
	}

	if !s.psswd.ComparePassword(args.Password, account.EncryptedPassword) {
		return nil, "", fmt.Errorf("login user: %w", domain.ErrPasswordMissMatch)
	}

	token, tokenErr := tokens.GenerateUserJWT(account.ID, JWTTokenExpire, s.jwtTokenSecret)
	if tokenErr != nil {
		return nil, "", fmt.Errorf("login user: %w", tokenErr)
	}
	return account, token, nil
}

// IsCredentialsErr true для ошибок Login, означающих неверную пару логин/пароль.
func IsCredentialsErr(err error) bool {
	return errors.Is(err, domain.ErrRecordNotFound) || errors.Is(err, domain.ErrPasswordMissMatch)
}
