// Command durableworker is the durable host runtime: it blocks on a Redis
// work queue for work items (a workflow definition plus the organization,
// deployment and monitoring-session ids it runs under), and runs each one
// through the runtime core with the Postgres-backed durable seam. Each item
// gets a freshly generated step-store execution id, and dequeuing removes
// the item from the list, so a restarted worker does not resume an item a
// previous process had started.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/fluxwell/runtime/internal/config"
	"github.com/fluxwell/runtime/internal/domain"
	"github.com/fluxwell/runtime/internal/logging"
	"github.com/fluxwell/runtime/internal/node"
	"github.com/fluxwell/runtime/internal/node/builtin"
	"github.com/fluxwell/runtime/internal/runtime/core"
	"github.com/fluxwell/runtime/internal/runtime/mapper"
	"github.com/fluxwell/runtime/internal/runtime/nodeexec"
	"github.com/fluxwell/runtime/internal/runtime/step"
	"github.com/fluxwell/runtime/internal/services/credential"
	"github.com/fluxwell/runtime/internal/services/credit"
	"github.com/fluxwell/runtime/internal/services/database"
	"github.com/fluxwell/runtime/internal/services/execstore"
	"github.com/fluxwell/runtime/internal/services/monitoring"
	"github.com/fluxwell/runtime/internal/services/objectstore"
	"github.com/fluxwell/runtime/internal/services/queue"
)

// workItem is the payload a producer pushes onto an org's work queue: a
// full workflow definition plus the identifiers this run executes under.
// Shipping the whole definition (rather than just an id) keeps the worker
// stateless with respect to a workflow catalog it does not own.
type workItem struct {
	Workflow            domain.Workflow
	OrganizationID      string
	DeploymentID        string
	MonitoringSessionID string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogPretty)

	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required for the durable worker")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DatabaseURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	objStore := objectstore.NewBunStore(db)
	execStore := execstore.NewBunStore(db)
	stepStore := execstore.NewBunStepStore(db)
	ctx := context.Background()
	if err := objStore.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize object store schema")
	}
	if err := execStore.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize execution store schema")
	}
	if err := stepStore.InitSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize step store schema")
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	dbResolve := func(ctx context.Context, handle, orgID string) (*pgxpool.Pool, bool, error) {
		return pool, true, nil
	}

	registry := node.NewRegistry()
	builtin.Register(registry)

	executor := &nodeexec.Executor{
		Mapper:      mapper.New(objStore),
		Registry:    registry,
		Credentials: credential.NewVault(),
		Queues:      queue.NewRedisQueueService(redisClient),
		Databases:   database.NewService(dbResolve),
		Datasets:    nil,
		Logger:      logger,
	}

	c := &core.Core{
		Executor:       executor,
		Credits:        credit.NewLedger(),
		Executions:     execStore,
		Monitoring:     monitoring.NewHub(logger),
		Metrics:        monitoring.NewMetrics(prometheus.NewRegistry()),
		Logger:         logger,
		MaxParallelism: cfg.MaxParallelism,
	}

	sigCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("durable worker started")
	runLoop(sigCtx, logger, c, redisClient, stepStore, cfg.StepTimeout)
}

// runLoop blocks on the default organization's work queue, one item at a
// time, until ctx is cancelled. A production deployment would shard this
// across organizations and worker goroutines; this loop exists to prove
// the durable seam end to end.
func runLoop(ctx context.Context, logger zerolog.Logger, c *core.Core, redisClient *redis.Client, stepStore step.StepStore, stepTimeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, err := queue.Dequeue(ctx, redisClient, "default", "workflow-runs")
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("dequeue failed")
			continue
		}
		if payload == nil {
			continue
		}

		var item workItem
		if err := json.Unmarshal(payload, &item); err != nil {
			logger.Error().Err(err).Msg("failed to decode work item")
			continue
		}

		if err := c.Executor.Credentials.Initialize(ctx, item.OrganizationID); err != nil {
			logger.Error().Err(err).Str("organization_id", item.OrganizationID).Msg("failed to initialize credential vault for organization")
			continue
		}

		executionID := uuid.New().String()
		seam := step.NewDurable(stepStore, executionID)
		seam.Timeout = stepTimeout

		exec, err := c.Run(ctx, core.RunParams{
			Workflow:            item.Workflow,
			OrganizationID:      item.OrganizationID,
			DeploymentID:        item.DeploymentID,
			MonitoringSessionID: item.MonitoringSessionID,
			Seam:                seam,
		})
		if err != nil {
			logger.Error().Err(err).Msg("run failed")
			continue
		}
		logger.Info().Str("execution_id", exec.ID.String()).Str("status", string(exec.Status)).Msg("execution finished")
	}
}
