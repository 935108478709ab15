package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rentalengine/internal/config"
	"rentalengine/internal/events"
	"rentalengine/internal/handler"
	"rentalengine/internal/infra/db"
	"rentalengine/internal/infra/memory"
	infraRepo "rentalengine/internal/infra/repository"
	"rentalengine/internal/logger"
	"rentalengine/internal/metrics"
	"rentalengine/internal/repository"
	"rentalengine/internal/server"
	"rentalengine/internal/tracing"
	"rentalengine/internal/usecase"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	//.envはローカル用（無くてもよい）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OtelEndpoint, !cfg.IsProd())
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown", zap.Error(err))
		}
	}()

	//ストア生成（postgres / memory）
	txm, customers, err := openStore(cfg, log)
	if err != nil {
		return err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				log.Warn("kafka close", zap.Error(err))
			}
		}()
		publisher = kp
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs := usecase.Observability{
		Log:       log,
		Metrics:   metrics.NewEngineMetrics(reg),
		Publisher: publisher,
	}

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}

	//Usecase生成
	orderUC := usecase.NewOrderUsecase(txm, customers, idGen, clock, obs)
	adminUC := usecase.NewAdminOrderUsecase(txm, clock, obs)
	returnUC := usecase.NewReturnUsecase(txm, clock, obs)

	//Handler生成
	e := server.New(cfg, log, server.Handlers{
		Orders:      handler.NewOrderHandler(orderUC, returnUC),
		AdminOrders: handler.NewAdminOrderHandler(adminUC, returnUC),
	}, reg)

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}
	return server.Run(ctx, e, addr, log)
}

func openStore(cfg config.Config, log *zap.Logger) (repository.TransactionManager, repository.CustomerRepository, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		store, err := memory.NewStore()
		if err != nil {
			return nil, nil, err
		}
		if cfg.MemorySeedFile != "" {
			f, err := os.Open(cfg.MemorySeedFile)
			if err != nil {
				return nil, nil, fmt.Errorf("open seed: %w", err)
			}
			defer f.Close()
			if err := memory.LoadSeed(store, f); err != nil {
				return nil, nil, err
			}
		}
		log.Info("store ready", zap.String("driver", cfg.StoreDriver))
		return memory.NewTxManager(store), store.Customers(), nil
	}

	if err := db.Migrate(cfg.DSN()); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("db connect: %w", err)
	}
	log.Info("store ready", zap.String("driver", cfg.StoreDriver))
	return infraRepo.NewTxManagerGorm(gormDB), infraRepo.NewCustomerGormRepository(gormDB), nil
}
