package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsdevblog/p2p-wallet/internal/config"
	"github.com/fsdevblog/p2p-wallet/internal/events"
	"github.com/fsdevblog/p2p-wallet/internal/repository/memrepo"
	"github.com/fsdevblog/p2p-wallet/internal/repository/pgrepo"
	"github.com/fsdevblog/p2p-wallet/internal/repository/repoargs"
	"github.com/fsdevblog/p2p-wallet/internal/service"
	"github.com/fsdevblog/p2p-wallet/internal/transport/api"
	"github.com/fsdevblog/p2p-wallet/pkg/uow"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	// driver for migration applying postgres.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// driver to get migrations from files (*.sql in our case).
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 5 * time.Second
)

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.WithFields(logrus.Fields{
		"address":     a.Config.RunAddress,
		"storage":     a.Config.Storage,
		"lockTimeout": a.Config.LockTimeout,
		"kafka":       a.Config.KafkaEnabled(),
	}).Info("Starting app")

	unitOfWork, closeStore, storeErr := a.initStore(notifyCtx)
	if storeErr != nil {
		return fmt.Errorf("app run: %s", storeErr.Error())
	}
	defer closeStore()

	services, sErr := service.Factory(unitOfWork, service.FactoryArgs{
		JWTSecret:       []byte(a.Config.JWTUserSecret),
		StartingBalance: a.Config.StartingBalance,
		Logger:          a.Logger,
	})
	if sErr != nil {
		return fmt.Errorf("app run: %s", sErr.Error())
	}

	router, routerErr := api.New(api.RouterArgs{
		Logger:          a.Logger,
		UserService:     services.UserService,
		TransferService: services.TransferService,
		HistoryService:  services.HistoryService,
		JWTSecretKey:    []byte(a.Config.JWTUserSecret),
	})
	if routerErr != nil {
		return fmt.Errorf("app run: %s", routerErr.Error())
	}

	srv := &http.Server{
		Addr:              a.Config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gCtx := errgroup.WithContext(notifyCtx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if a.Config.KafkaEnabled() {
		publisher := events.NewPublisher(
			unitOfWork,
			events.NewKafkaWriter(a.Config.KafkaBrokers, a.Config.KafkaTopic),
			a.Logger,
		)
		g.Go(func() error {
			publisher.Run(gCtx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err //nolint:wrapcheck
	}
	return notifyCtx.Err() //nolint:wrapcheck
}

// initStore создает юнит работы выбранного хранилища. Возвращаемая функция освобождает ресурсы хранилища.
func (a *App) initStore(ctx context.Context) (uow.UOW, func(), error) {
	switch a.Config.Storage {
	case config.StorageMemory:
		return memrepo.New(memrepo.WithLockTimeout(a.Config.LockTimeout)), func() {}, nil
	case config.StoragePostgres:
		conn, connErr := pgrepo.Connect(ctx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
		if connErr != nil {
			return nil, nil, connErr
		}
		unitOfWork, uowErr := initUOW(conn, a.Config.LockTimeout)
		if uowErr != nil {
			conn.Close()
			return nil, nil, uowErr
		}
		return unitOfWork, conn.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage `%s`", a.Config.Storage)
	}
}

func initUOW(conn *pgxpool.Pool, lockTimeout time.Duration) (*uow.UnitOfWork, error) {
	unitOfWork := uow.NewUnitOfWork(conn,
		uow.WithLockTimeout(lockTimeout),
		uow.WithErrorConverter(pgrepo.ConvertTxErr),
	)

	// account repo
	accountRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewAccountRepository(dbtx)
	}
	if regErr := unitOfWork.Register(uow.RepositoryName(repoargs.AccountRepoName), accountRepoFactoryFn); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	// transfer (ledger) repo
	transferRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewTransferRepository(dbtx)
	}
	if regErr := unitOfWork.Register(uow.RepositoryName(repoargs.TransferRepoName), transferRepoFactoryFn); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	// outbox repo
	outboxRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewOutboxRepository(dbtx)
	}
	if regErr := unitOfWork.Register(uow.RepositoryName(repoargs.OutboxRepoName), outboxRepoFactoryFn); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	return unitOfWork, nil
}
