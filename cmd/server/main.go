// Command server wires the record store, the credential workflow, and the
// audit pipeline behind the HTTP surface. Business logic lives in the
// internal service packages; main only selects backends from config and
// manages the process lifecycle.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"registra/internal/credential/hasher"
	"registra/internal/credential/history"
	credential "registra/internal/credential/service"
	identity "registra/internal/identity/service"
	"registra/internal/identity/store/user"
	"registra/internal/jwttoken"
	"registra/internal/platform/config"
	"registra/internal/platform/httpserver"
	"registra/internal/platform/logger"
	"registra/internal/platform/metrics"
	platformredis "registra/internal/platform/redis"
	"registra/internal/transport/httpapi"
	"registra/migrations"
	"registra/pkg/platform/audit"
	"registra/pkg/platform/audit/consumer"
	"registra/pkg/platform/audit/outbox"
	"registra/pkg/platform/audit/publisher"
	auditmemory "registra/pkg/platform/audit/store/memory"
	auditpostgres "registra/pkg/platform/audit/store/postgres"
	"registra/pkg/platform/audit/worker"
	txcontext "registra/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)

	m := metrics.New()
	h := hasher.NewBcrypt(cfg.BcryptCost)

	health := make(map[string]httpapi.HealthChecker)

	// Record store: Postgres when a DSN is configured, in-memory otherwise.
	var users identity.UserStore
	var db *sql.DB
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if err := migrations.Up(ctx, db); err != nil {
			return err
		}
		users = user.NewPostgres(db)
		health["postgres"] = db.PingContext
		log.Info("using postgres record store")
	} else {
		users = user.NewInMemory()
		log.Info("using in-memory record store")
	}

	// Password history: Redis when configured, in-memory otherwise.
	var histStore history.Store
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		histStore = history.NewRedisStore(redisClient.Client)
		health["redis"] = redisClient.Health
		log.Info("using redis password history")
	} else {
		histStore = history.NewInMemoryStore()
		log.Info("using in-memory password history")
	}
	hist := history.New(histStore, h)

	// Audit trail: transactional outbox on Postgres; in-memory wiring goes
	// through the channel worker so audit writes stay off the request path.
	var auditStore audit.Store
	if db != nil {
		auditStore = auditpostgres.New(db)
	} else {
		queue, auditWorker := worker.NewQueue(auditmemory.New(), 256)
		auditStore = queue
		group.Go(func() error {
			if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	auditor := publisher.New(auditStore)

	records := identity.New(users, hist, h,
		identity.WithLogger(log),
		identity.WithAuditor(auditor),
		identity.WithMetrics(m))

	credentialOpts := []credential.Option{
		credential.WithLogger(log),
		credential.WithAuditor(auditor),
		credential.WithMetrics(m),
	}
	if db != nil {
		// Credential write and audit outbox row commit or roll back together.
		credentialOpts = append(credentialOpts, credential.WithTxRunner(sqlTxRunner(db)))
	}
	credentials := credential.New(users, hist, h, credentialOpts...)

	if email := os.Getenv("REGISTRA_SEED_ADMIN_EMAIL"); email != "" {
		if err := records.SeedAdmin(ctx,
			email,
			os.Getenv("REGISTRA_SEED_ADMIN_NATIONAL_ID"),
			os.Getenv("REGISTRA_SEED_ADMIN_PASSWORD")); err != nil {
			return err
		}
	}

	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, "registra", "registra-admin")
	handler := httpapi.NewHandler(records, credentials, httpapi.NewTokenValidator(jwtSvc), log, health)
	srv := httpserver.New(cfg.Addr, handler.Routes())

	group.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// The relay ships outbox rows to Kafka and the materializer projects them
	// back into the queryable audit_events table. Both need Postgres and seed
	// brokers configured.
	if db != nil && len(cfg.Kafka.Seeds) > 0 {
		relay, err := outbox.NewRelay(db, cfg.Kafka.Seeds, cfg.Kafka.AuditTopic, log)
		if err != nil {
			return err
		}
		defer relay.Close()
		if err := relay.EnsureTopic(ctx); err != nil {
			return err
		}
		group.Go(func() error {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})

		materializer, err := consumer.NewMaterializer(
			cfg.Kafka.Seeds, cfg.Kafka.AuditTopic, "registra-audit-materializer",
			auditpostgres.New(db), log)
		if err != nil {
			return err
		}
		defer materializer.Close()
		group.Go(func() error {
			if err := materializer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
		log.Info("audit pipeline started", "topic", cfg.Kafka.AuditTopic)
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("server stopped")
	return nil
}

// sqlTxRunner opens one transaction around fn and carries it in context so
// participating stores join it.
func sqlTxRunner(db *sql.DB) credential.TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		sqlTx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(txcontext.WithTx(ctx, sqlTx)); err != nil {
			_ = sqlTx.Rollback()
			return err
		}
		return sqlTx.Commit()
	}
}
