package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/date-night/backend/internal/config"
	"github.com/zhouzirui/date-night/backend/internal/handler"
	"github.com/zhouzirui/date-night/backend/internal/logger"
	"github.com/zhouzirui/date-night/backend/internal/model/session"
	"github.com/zhouzirui/date-night/backend/internal/service/ai"
	"github.com/zhouzirui/date-night/backend/internal/service/notify"
	"github.com/zhouzirui/date-night/backend/internal/service/pairing"
	"github.com/zhouzirui/date-night/backend/internal/store/gormstore"
	"github.com/zhouzirui/date-night/backend/internal/store/redisstore"
)

// expirer is implemented by stores that need an explicit sweep to drop
// expired sessions. Redis expires keys on its own.
type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	appLog, err := logger.New(cfg.Server.LogMode)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer appLog.Sync()

	store, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		appLog.Fatal("failed to open session store", "driver", cfg.Store.Driver, "error", err.Error())
	}
	defer closeStore()
	appLog.Info("session store ready", "driver", cfg.Store.Driver, "ttl", cfg.Store.SessionTTL.String())

	chatModel, err := ai.NewChatModel(ctx, cfg.Generation)
	if err != nil {
		appLog.Fatal("failed to initialize chat model", "provider", cfg.Generation.Provider, "error", err.Error())
	}
	planner, err := ai.NewPlanService(ctx, chatModel, appLog)
	if err != nil {
		appLog.Fatal("failed to initialize plan service", "error", err.Error())
	}
	appLog.Info("plan generator ready", "provider", cfg.Generation.Provider, "timeout", cfg.Generation.Timeout.String())

	svc, err := pairing.NewService(store, planner, appLog, pairing.Options{
		GenerationTimeout: cfg.Generation.Timeout,
		Hub:               notify.NewHub(),
	})
	if err != nil {
		appLog.Fatal("failed to initialize pairing service", "error", err.Error())
	}

	if sweeper, ok := store.(expirer); ok && cfg.Store.SessionTTL > 0 {
		go sweepExpired(ctx, sweeper, cfg.Store.SessionTTL, appLog)
	}

	router := handler.NewRouter(svc, appLog, cfg.Server.WatchPollInterval)

	startServer(ctx, cfg.Server, router, appLog)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (session.Store, func(), error) {
	switch cfg.Driver {
	case config.StoreRedis:
		rdb, err := redisstore.Dial(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return redisstore.New(rdb, cfg.RedisKeyPrefix, cfg.SessionTTL), func() { _ = rdb.Close() }, nil
	case config.StorePostgres, config.StoreSQLite:
		db, err := gormstore.Open(cfg.Driver, cfg.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := gormstore.New(db, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		return store, closeDB, nil
	case config.StoreMemory:
		return session.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

func sweepExpired(ctx context.Context, store expirer, ttl time.Duration, log *logger.Logger) {
	interval := ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.DeleteExpired(ctx)
			if err != nil {
				log.Warn("expired session sweep failed", "error", err.Error())
				continue
			}
			if removed > 0 {
				log.Info("expired sessions removed", "count", removed)
			}
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, log *logger.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info("date night backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatal("server error", "error", err.Error())
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
