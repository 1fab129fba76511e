// cmd/loan-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loan-origination/internal/account"
	"loan-origination/internal/api"
	"loan-origination/internal/application"
	"loan-origination/internal/common/auth"
	"loan-origination/internal/common/camunda"
	"loan-origination/internal/common/config"
	"loan-origination/internal/common/database"
	"loan-origination/internal/common/logger"
	"loan-origination/internal/common/observability"
	"loan-origination/internal/document"
	"loan-origination/internal/mcpserver"
	"loan-origination/internal/storage"
	"loan-origination/internal/user"
	"loan-origination/internal/wizard"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// draftTTL bounds how long an untouched wizard draft survives in redis.
const draftTTL = 30 * 24 * time.Hour

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err.Error(),
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	if err := run(cfg, log); err != nil {
		zapLog.Fatal("loan-api stopped with error", zap.Error(err))
	}
	log.Info("loan-api stopped gracefully", nil)
}

func run(cfg *config.Config, log logger.Logger) error {
	log.Info("starting loan-api", map[string]interface{}{
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	})

	obs, err := observability.New(cfg.Observability.ServiceName, cfg.Observability.JaegerEndpoint)
	if err != nil {
		log.Warn("observability partially initialized", map[string]interface{}{"error": err.Error()})
	}
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer pg.Close()
	log.Info("PostgreSQL connected successfully", nil)

	if cfg.Database.Migrations.Enabled {
		version, err := pg.Migrate()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		log.Info("migrations applied", map[string]interface{}{"version": version})
	}

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, log, "Redis connection")
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("Redis connected successfully", nil)

	health := map[string]api.HealthCheck{
		"postgres": pg.Ping,
		"redis":    rdb.Ping,
	}
	appOpts := []application.Option{
		application.WithObservability(obs),
		application.WithReviewProcess(cfg.Camunda.ReviewProcess),
	}

	// --- Init Elasticsearch with retry ---
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			return err
		}
		indexer := application.NewElasticIndexer(es.Client, cfg.Database.Elasticsearch.Index)
		if err := es.EnsureIndex(ctx, indexer.IndexName(), application.IndexMapping); err != nil {
			return fmt.Errorf("ensure search index: %w", err)
		}
		appOpts = append(appOpts, application.WithIndexer(indexer))
		health["elasticsearch"] = es.Ping
		log.Info("Elasticsearch connected successfully", nil)
	}

	// --- Init Zeebe with retry ---
	var zeebe *camunda.Client
	if cfg.Camunda.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			zeebe, err = camunda.NewClientFromConfig(cfg.Camunda)
			return err
		}, 10, 2*time.Second, log, "Zeebe client initialization")
		if err != nil {
			return err
		}
		defer zeebe.Close()
		appOpts = append(appOpts, application.WithWorkflow(zeebe))
		health["zeebe"] = zeebe.HealthCheck
		log.Info("Zeebe client connected successfully", nil)
	}

	// --- Storage ---
	storageEnv, err := storage.EnvFromOS()
	if err != nil {
		return err
	}
	if storageEnv.InfraProvider == "" {
		storageEnv.InfraProvider = cfg.Storage.Provider
	}
	registry := storage.NewRegistry(storageEnv, log, storage.WithWrapper(func(p storage.Provider) storage.Provider {
		return storage.NewInstrumented(p, obs)
	}))
	health["storage"] = func(ctx context.Context) error {
		_, err := registry.Default(ctx)
		return err
	}

	// --- Services ---
	users := user.NewService(user.NewPostgresRepository(pg.X), cfg.Auth.BcryptCost, log)
	accounts := account.NewService(users, auth.NewTokenManager(cfg.Auth), account.NewRedisTokenStore(rdb.Client), log)
	applications := application.NewService(application.NewPostgresRepository(pg), log, appOpts...)
	documents := document.NewService(document.NewPostgresRepository(pg.X), registry, cfg.Upload.MaxFileSize, log)
	wizards := wizard.NewManager(
		wizard.NewRedisDraftStore(rdb.Client, draftTTL),
		applications,
		documents,
		log,
		wizard.WithMaxUploadSize(documents.MaxUploadSize()),
	)

	var mcp *mcpserver.Handler
	var mcpHTTP http.Handler
	if cfg.MCP.Enabled {
		mcp = mcpserver.NewHandler(cfg.MCP, users, log)
		defer mcp.Close()
		mcpHTTP = mcp
	}

	server := api.NewServer(api.Deps{
		Auth:         accounts,
		Users:        users,
		Applications: applications,
		Documents:    documents,
		Wizard:       wizards,
		MCP:          mcpHTTP,
		Health:       health,
		Logger:       log,
		Production:   cfg.App.IsProduction(),
		CORS:         cfg.CORS,
		RateLimit:    cfg.RateLimit,
		MaxUpload:    documents.MaxUploadSize(),
	})

	// --- Workers ---
	if zeebe != nil {
		workers, err := startWorkers(ctx, cfg, zeebe, pg, applications, log)
		if err != nil {
			return err
		}
		defer func() {
			for _, w := range workers {
				w.Stop()
			}
		}()
	}

	// --- Scheduler ---
	scheduler, err := newScheduler(cfg.Scheduler, applications, mcp, server, log)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	// --- HTTP ---
	apiServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddress, Handler: metricsMux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(apiServer, "api", log) })
	g.Go(func() error { return serve(metricsServer, "metrics", log) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections", nil)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), metricsServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

// serve runs srv until it is shut down. Any other exit is fatal and cancels
// the group.
func serve(srv *http.Server, name string, log logger.Logger) error {
	log.Info(name+" server listening", map[string]interface{}{"address": srv.Addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}
