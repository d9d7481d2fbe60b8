package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duckmesh/askhr/internal/api"
	"github.com/duckmesh/askhr/internal/audit"
	"github.com/duckmesh/askhr/internal/auth"
	"github.com/duckmesh/askhr/internal/chat"
	"github.com/duckmesh/askhr/internal/config"
	"github.com/duckmesh/askhr/internal/engine"
	"github.com/duckmesh/askhr/internal/hr"
	"github.com/duckmesh/askhr/internal/migrations"
	"github.com/duckmesh/askhr/internal/modelclient"
	"github.com/duckmesh/askhr/internal/nl2sql"
	"github.com/duckmesh/askhr/internal/observability"
	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/router"
	"github.com/duckmesh/askhr/internal/security"
	"github.com/duckmesh/askhr/internal/session"
	s3store "github.com/duckmesh/askhr/internal/storage/s3"
	"github.com/duckmesh/askhr/internal/store"
	"github.com/duckmesh/askhr/internal/store/memory"
	"github.com/duckmesh/askhr/internal/store/sqlstore"
)

func main() {
	cfg, err := config.LoadFromEnv("askhr-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("askhr api exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	catalog := hr.Catalog()
	group, groupCtx := errgroup.WithContext(ctx)

	var policies policy.Source = policy.Static(basePolicy(cfg))
	if cfg.Text2SQL.PolicyFile != "" {
		watcher, err := policy.NewWatcher(cfg.Text2SQL.PolicyFile, basePolicy(cfg), logger)
		if err != nil {
			return fmt.Errorf("load policy file: %w", err)
		}
		policies = watcher
		if cfg.Text2SQL.PolicyWatch {
			group.Go(func() error { return watcher.Run(groupCtx) })
		}
	}

	records, healthCheck, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	provider := modelclient.NewProvider(modelclient.Settings{
		Provider:       cfg.AI.Provider,
		Endpoint:       cfg.AI.Endpoint,
		APIKey:         cfg.AI.APIKey,
		Model:          cfg.AI.Model,
		ChatModel:      cfg.AI.ChatModel,
		Text2SQLModel:  cfg.AI.Text2SQLModel,
		RouterModel:    cfg.AI.RouterModel,
		OllamaEndpoint: cfg.AI.OllamaEndpoint,
		Temperature:    cfg.AI.Temperature,
		Retry: modelclient.RetryPolicy{
			Timeout:    cfg.AI.Timeout,
			RetryCount: cfg.AI.RetryCount,
			Backoff:    cfg.AI.RetryBackoff,
		},
	}, observability.ModelMetrics{}, logger)
	defer func() { _ = provider.Close() }()

	validator := security.NewValidator(catalog, policies)
	queryEngine := &engine.Engine{
		Registry: hr.Registry(),
		Catalog:  catalog,
		Security: validator,
		Permissions: auth.NewPermissionValidator(catalog, policies, auth.PermissionRules{
			RestrictedEntities: map[string]string{hr.EntityPayrollRecord: auth.CapabilityPayrollRead},
			OwnEntity:          hr.EntityEmployee,
		}),
		Store:    records,
		Policies: policies,
		Logger:   logger,
		Observers: []engine.Observer{
			engine.ObserverFunc(func(_ context.Context, execution engine.Execution) {
				observability.ObserveQuery(
					execution.Query.TargetEntity,
					string(execution.Query.Operation),
					execution.Result.Success,
					execution.Result.ErrorCode,
					execution.Result.Duration,
				)
			}),
		},
	}

	readiness := []api.ReadinessCheck{healthCheck}
	var auditReader api.AuditSummarizer
	if cfg.Audit.Enabled {
		objectStore, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
			ExpireAfterDays:  bucketExpiryDays(cfg.ObjectStore.AutoCreateBucket, cfg.Audit.RetentionDays),
		})
		if err != nil {
			return fmt.Errorf("initialize object store: %w", err)
		}
		writer := audit.NewWriter(objectStore, audit.WriterConfig{
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: cfg.Audit.FlushInterval,
		}, logger)
		queryEngine.Observers = append(queryEngine.Observers, writer)
		group.Go(func() error { return writer.Run(groupCtx) })
		if cfg.Audit.RetentionDays > 0 {
			pruner := &audit.Pruner{
				Store:  objectStore,
				Config: audit.RetentionConfig{KeepDays: cfg.Audit.RetentionDays},
				Logger: logger,
			}
			group.Go(func() error { return pruner.Run(groupCtx) })
		}
		auditReader = audit.NewReader(objectStore)
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg), objectStore.HealthCheck)
	}

	translator := nl2sql.NewTranslator(provider.For(modelclient.PurposeText2SQL), catalog, validator, policies, logger)
	chatService := &chat.Service{
		Router: router.New(provider.For(modelclient.PurposeRouter), router.Options{
			RouteThreshold:  cfg.Routing.RouteThreshold,
			IgnoreThreshold: cfg.Routing.IgnoreThreshold,
			ContextTurns:    cfg.Routing.ContextTurns,
		}, logger),
		Translator: translator,
		Executor:   queryEngine,
		Model:      provider.For(modelclient.PurposeChat),
		Sessions:   session.NewMemoryStore(cfg.Session.MaxTurns),
		Policies:   policies,
		Logger:     logger,
	}

	deps := api.Dependencies{
		Logger:           logger,
		Readiness:        api.CombineReadinessChecks(readiness...),
		DependencyTimout: time.Second,
		Chat:             chatService,
		Catalog:          catalog,
		Translator:       translator,
		Previewer:        queryEngine,
		Audit:            auditReader,
	}
	if cfg.Auth.Required || cfg.Auth.StaticKeys != "" {
		keys, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			return fmt.Errorf("parse static auth keys: %w", err)
		}
		if cfg.Auth.Required {
			deps.AuthMiddleware = auth.Middleware(logger, keys)
		} else {
			deps.AuthMiddleware = auth.OptionalMiddleware(logger, keys)
		}
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	group.Go(func() error {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("store_backend", cfg.Store.Backend),
			slog.String("ai_provider", cfg.AI.Provider),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// basePolicy maps the text2sql settings onto the built-in policy; a policy file overlays it.
func basePolicy(cfg config.Config) policy.Policy {
	p := policy.Default()
	p.Enabled = cfg.Text2SQL.Enabled
	p.EnableCrud = cfg.Text2SQL.EnableCrud
	p.MaxJoinTables = cfg.Text2SQL.MaxJoinTables
	p.MaxFilters = cfg.Text2SQL.MaxFilters
	p.MaxResultRows = cfg.Text2SQL.MaxResultRows
	p.DefaultResultRows = cfg.Text2SQL.DefaultResultRows
	p.MaxComplexityScore = cfg.Text2SQL.MaxComplexityScore
	p.QueryTimeoutSeconds = int(cfg.Text2SQL.QueryTimeout / time.Second)
	p.IncludeGeneratedQuery = cfg.Text2SQL.IncludeGeneratedQuery
	if len(cfg.Text2SQL.AllowedEntities) > 0 {
		p.AllowedEntities = cfg.Text2SQL.AllowedEntities
	}
	return p
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, api.ReadinessCheck, func(), error) {
	if cfg.Store.Backend == "memory" {
		logger.Warn("using in-memory record store; data is lost on restart")
		records := memory.New()
		return records, records.HealthCheck, func() {}, nil
	}

	dialect, err := sqlstore.ParseDialect(cfg.Store.Backend)
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := sqlstore.Open(ctx, sqlstore.DBConfig{
		Dialect:         dialect,
		DSN:             cfg.Store.DSN,
		MaxOpenConns:    cfg.Store.MaxOpenConns,
		MaxIdleConns:    cfg.Store.MaxIdleConns,
		ConnMaxIdleTime: cfg.Store.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Store.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Store.AutoMigrate {
		if err := migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
	}
	records := sqlstore.New(db, dialect, hr.Catalog())
	return records, records.HealthCheck, func() { _ = db.Close() }, nil
}

func migrate(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	applied, err := migrations.NewRunner().Up(ctx, db, 0)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	logger.Info("store migrations applied", slog.Int("count", applied))
	return nil
}

// bucketExpiryDays backs the retention pruner with a lifecycle rule one day behind it. Buckets the
// service did not create keep their own lifecycle.
func bucketExpiryDays(ownsBucket bool, retentionDays int) int {
	if !ownsBucket || retentionDays <= 0 {
		return 0
	}
	return retentionDays + 1
}
