package api

import (
	"fmt"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultServiceTimeout должен быть больше ожидания блокировки, иначе перевод упрется в таймаут запроса
	// раньше, чем хранилище вернет конфликт.
	DefaultServiceTimeout = 5 * time.Second
)

const (
	RouteGroup     = "/api"
	RegisterRoute  = "/user/register"
	LoginRoute     = "/user/login"
	TransfersRoute = "/transfers"
	DashboardRoute = "/dashboard"
)

type RouterArgs struct {
	Logger          *logrus.Logger
	UserService     UserServicer
	TransferService TransferServicer
	HistoryService  HistoryServicer
	JWTSecretKey    []byte
}

func New(args RouterArgs) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	r.Use(middlewares.Errors())

	authHandler := NewAuthHandler(args.UserService)
	transferHandler := NewTransferHandler(args.TransferService)
	historyHandler := NewHistoryHandler(args.HistoryService)

	api := r.Group(RouteGroup)

	api.POST(RegisterRoute, middlewares.NonAuthRequired(args.JWTSecretKey), authHandler.Register)
	api.POST(LoginRoute, middlewares.NonAuthRequired(args.JWTSecretKey), authHandler.Login)

	api.Use(middlewares.AuthRequired(args.JWTSecretKey))
	// ниже все роуты группы требуют авторизованного пользователя.
	api.POST(TransfersRoute, transferHandler.Create)
	api.GET(TransfersRoute, historyHandler.Index)
	api.GET(DashboardRoute, historyHandler.Dashboard)
	return r, nil
}
