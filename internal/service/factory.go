package service

import (
	"fmt"

	"github.com/fsdevblog/p2p-wallet/internal/service/psswd"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type AppServices struct {
	UserService     *UserService
	TransferService *TransferService
	HistoryService  *HistoryService
}

type FactoryArgs struct {
	JWTSecret       []byte
	StartingBalance decimal.Decimal
	Logger          *logrus.Logger
}

func Factory(unitOfWork uow.UOW, args FactoryArgs) (*AppServices, error) {
	userService, userServiceErr := NewUserService(unitOfWork, args.JWTSecret, psswd.New(bcrypt.DefaultCost),
		args.StartingBalance)
	if userServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", userServiceErr.Error())
	}

	historyService, historyServiceErr := NewHistoryService(unitOfWork)
	if historyServiceErr != nil {
		return nil, fmt.Errorf("service factory: %s", historyServiceErr.Error())
	}

	return &AppServices{
		UserService:     userService,
		TransferService: NewTransferService(unitOfWork, args.Logger),
		HistoryService:  historyService,
	}, nil
}
