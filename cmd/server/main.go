package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"orgaccess/internal/audit"
	"orgaccess/internal/config"
	"orgaccess/internal/health"
	"orgaccess/internal/logging"
	"orgaccess/internal/membership/domain"
	"orgaccess/internal/membership/resolver"
	"orgaccess/internal/membership/service"
	"orgaccess/internal/organization/client"
	"orgaccess/internal/orgcontext"
	"orgaccess/internal/platform/rbac"
	"orgaccess/internal/querycache"
	"orgaccess/internal/server"
	"orgaccess/internal/server/httpapi"
	otelsetup "orgaccess/internal/telemetry/otel"
)

const (
	serviceName     = "orgaccess"
	shutdownTimeout = 10 * time.Second
	healthInterval  = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, nil)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, otelsetup.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Insecure:    cfg.OTLPInsecure,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = providers.Shutdown(sctx)
	}()

	orgClient := client.New(cfg.OrgAPIBaseURL, cfg.OrgAPIKey)
	orgClient.HTTPClient.Transport = otelhttp.NewTransport(http.DefaultTransport)

	checker := health.NewChecker(2*time.Second, logger)
	store, closeStore, err := newMemberStore(ctx, cfg)
	if err != nil {
		return err
	}
	if p, ok := store.(health.Pinger); ok {
		checker.Add("membership_cache", p)
	}
	defer closeStore()
	cache := querycache.New[*domain.Member]("membership", store,
		querycache.WithErrorHandler(func(op string, key querycache.Key, err error) {
			logger.WithFields(logrus.Fields{"op": op, "key": key.String()}).WithError(err).Warn("membership cache failure")
		}),
	)

	selection := orgcontext.NewStore(cfg.InitialOrgID)
	selection.Subscribe(func(prev, next string) {
		logger.WithFields(logrus.Fields{"from": prev, "to": next}).Info("active organization changed")
	})
	members := resolver.New(orgClient, cache, resolver.WithEnabled(cfg.SaaS()), resolver.WithLogger(logger))
	guard := rbac.NewGuard(selection, members,
		rbac.WithRedirect(cfg.GuardRedirectPath),
		rbac.WithBypass(!cfg.SaaS()),
		rbac.WithGuardLogger(logger),
	)
	auditLogger := audit.NewLogger(providers.LoggerProvider, logger)
	roles := service.NewRoleService(selection, members, orgClient, auditLogger, logger)

	httpSrv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Orgs:      orgClient,
			Selection: selection,
			Members:   members,
			Roles:     roles,
			Guard:     guard,
			Audit:     auditLogger,
			Logger:    logger,
			Health:    checker,
			SaaS:      cfg.SaaS(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcSrv, grpcHealth := server.NewGRPCServer(server.GRPCDeps{Guard: guard})

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		checker.Watch(gctx, grpcHealth, healthInterval)
		return nil
	})
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "mode": cfg.Mode}).Info("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down servers...")
		grpcHealth.Shutdown()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(sctx)
		grpcSrv.GracefulStop()
		logger.Info("servers stopped")
		return err
	})
	return g.Wait()
}

// newMemberStore returns the membership cache store for cfg.CacheBackend and a close func.
func newMemberStore(ctx context.Context, cfg *config.Config) (querycache.Store[*domain.Member], func(), error) {
	if cfg.CacheBackend == config.CacheRedis {
		rdb, err := querycache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		return querycache.NewRedisStore[*domain.Member](rdb, serviceName+":", cfg.CacheTTL()), func() { _ = rdb.Close() }, nil
	}
	return querycache.NewMemoryStore[*domain.Member](cfg.CacheSize, cfg.CacheTTL()), func() {}, nil
}
