package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxviazov/member-search-service/internal/config"
	"github.com/maxviazov/member-search-service/internal/logger"
	"github.com/maxviazov/member-search-service/internal/model"
	"github.com/maxviazov/member-search-service/internal/repository"
	"github.com/maxviazov/member-search-service/internal/repository/memory"
	"github.com/maxviazov/member-search-service/internal/repository/postgres"
	"github.com/maxviazov/member-search-service/internal/service"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
)

// stores bundles what the service needs from one storage driver.
type stores struct {
	search  repository.MemberSearchStore
	members repository.MemberRepository
	pinger  repository.Pinger
	tx      repository.TxManager
	writeTx repository.TxManager
	close   func()
}

func main() {
	configPath := "config.yaml"
	if p := os.Getenv("APP_CONFIG"); p != "" {
		configPath = p
	}

	// Load application config
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("❌ Config loading failed: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(&cfg.Logger)
	if err != nil {
		log.Fatalf("❌ Logger initialization failed: %v", err)
	}
	appLogger.Info().Msg("✅ Logger initialized successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, &appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("❌ Store initialization failed")
	}
	defer st.close()

	// Telemetry providers are whatever the process installed globally; noop by default.
	exec, err := repository.NewPageExecutor[model.MemberTeam](st.search, otel.GetTracerProvider(), otel.GetMeterProvider(), appLogger)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("❌ Page executor initialization failed")
	}
	svc := service.NewMemberService(st.members, exec, st.tx, st.writeTx, cfg.Search, appLogger)

	readyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := st.pinger.Ping(readyCtx); err != nil {
		appLogger.Fatal().Err(err).Msg("❌ Store is not ready")
	}

	// Warm-up search proves the whole path (validation, content, count) end to end.
	page, err := svc.SearchMemberPage(readyCtx, model.MemberSearchCondition{}, svc.DefaultPageable())
	if err != nil {
		appLogger.Fatal().Err(err).Msg("❌ Warm-up search failed")
	}

	appLogger.Info().
		Str("driver", cfg.Store.Driver).
		Int64("members", page.TotalElements()).
		Int("default_page_size", cfg.Search.DefaultPageSize).
		Int("max_page_size", cfg.Search.MaxPageSize).
		Msg("🚀 Service started")

	<-ctx.Done()
	appLogger.Info().Msg("Shutting down")
}

func openStores(ctx context.Context, cfg *config.Config, l *zerolog.Logger) (stores, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		s := memory.NewStore()
		l.Info().Msg("Using in-memory store")
		return stores{search: s, members: s, pinger: s, close: func() {}}, nil
	}

	conn, err := repository.New(ctx, cfg, l)
	if err != nil {
		return stores{}, err
	}
	pool := conn.Pool()
	st := stores{
		search:  postgres.NewMemberSearchStore(pool),
		members: postgres.NewMemberRepository(pool),
		pinger:  postgres.NewPinger(pool),
		writeTx: postgres.NewTxManager(pool),
		close:   conn.Close,
	}
	if cfg.Search.Snapshot {
		st.tx = postgres.NewSnapshotTxManager(pool)
	}
	return st, nil
}
