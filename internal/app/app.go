// Package app arma el gateway a partir de la configuración: backend,
// cache, limiters, canales de touch, providers, módulos y router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wenex-org/platform-sub000/internal/cache"
	"github.com/wenex-org/platform-sub000/internal/config"
	"github.com/wenex-org/platform-sub000/internal/domain/auth"
	"github.com/wenex-org/platform-sub000/internal/domain/essential"
	"github.com/wenex-org/platform-sub000/internal/domain/resource"
	"github.com/wenex-org/platform-sub000/internal/domain/touch"
	"github.com/wenex-org/platform-sub000/internal/graphql"
	"github.com/wenex-org/platform-sub000/internal/http/crud"
	mw "github.com/wenex-org/platform-sub000/internal/http/middlewares"
	"github.com/wenex-org/platform-sub000/internal/http/router"
	jwtx "github.com/wenex-org/platform-sub000/internal/jwt"
	"github.com/wenex-org/platform-sub000/internal/modules"
	"github.com/wenex-org/platform-sub000/internal/notify"
	"github.com/wenex-org/platform-sub000/internal/observability/logger"
	"github.com/wenex-org/platform-sub000/internal/rate"
	"github.com/wenex-org/platform-sub000/internal/store"

	// drivers de store
	_ "github.com/wenex-org/platform-sub000/internal/store/memory"
	_ "github.com/wenex-org/platform-sub000/internal/store/pg"
)

// App es el gateway armado.
type App struct {
	Config    *config.Config
	Backend   store.Backend
	Cache     cache.Client
	Issuer    *jwtx.Issuer
	Providers modules.Providers
	Modules   []crud.Module
	Handler   http.Handler

	closers []func() error
}

// New arma todas las dependencias. Si algo falla cierra lo ya abierto.
func New(ctx context.Context, cfg *config.Config) (a *App, err error) {
	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()
	log := logger.From(ctx).With(logger.Layer("app"))

	a.Backend, err = store.Open(ctx, store.Config{
		Driver:       cfg.Storage.Driver,
		DSN:          cfg.Storage.DSN,
		Schema:       cfg.Storage.Schema,
		MaxConns:     cfg.Storage.MaxConns,
		MinConns:     cfg.Storage.MinConns,
		ConnectRetry: cfg.Storage.ConnectRetry,
	})
	if err != nil {
		return nil, fmt.Errorf("app: open storage: %w", err)
	}
	a.closers = append(a.closers, a.Backend.Close)
	log.Info("storage ready", logger.Component(a.Backend.Name()))

	if cfg.Cache.Kind != "none" {
		a.Cache, err = cache.New(ctx, cache.Config{
			Driver:     cfg.Cache.Kind,
			Addr:       cfg.Cache.Redis.Addr,
			Password:   cfg.Cache.Redis.Password,
			DB:         cfg.Cache.Redis.DB,
			Prefix:     cfg.Cache.Redis.Prefix,
			DefaultTTL: cfg.Cache.DefaultTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("app: cache: %w", err)
		}
		a.closers = append(a.closers, a.Cache.Close)
	}

	var limiters *rate.Pool
	if cfg.Rate.Enabled {
		limiters, err = a.limiters(ctx)
		if err != nil {
			return nil, err
		}
	}

	delivery, err := a.delivery(ctx)
	if err != nil {
		return nil, err
	}

	a.Issuer = jwtx.NewIssuer(cfg.Auth.Issuer, []byte(cfg.Auth.Secret))
	a.Issuer.AccessTTL = cfg.Auth.AccessTTL

	a.Providers = modules.NewProviders(a.Backend, essential.Config{
		DefaultTTL: cfg.Sagas.DefaultTTL,
		MaxTTL:     cfg.Sagas.MaxTTL,
	}, delivery)
	a.Modules = modules.Build(a.Providers, crud.Options{
		Cache:    a.Cache,
		CacheTTL: cfg.Cache.DefaultTTL,
		MaxBody:  cfg.Server.MaxBodyBytes,
	})
	a.Providers.Essential.Sagas.OnClose(modules.FlushTenant(a.Modules))

	deps := router.Deps{
		Modules:     a.Modules,
		Verifier:    &jwtx.Verifier{Iss: cfg.Auth.Issuer, Secret: []byte(cfg.Auth.Secret), Leeway: cfg.Auth.Leeway},
		Sagas:       a.Providers.Essential.Sagas,
		Limiters:    limiters,
		Rate:        rate.Policy{Max: cfg.Rate.MaxRequests, Window: cfg.Rate.Window},
		Audit:       true,
		Ready:       a.ready,
		MetricsPath: cfg.Metrics.Path,
		GraphQLPath: cfg.GraphQL.Path,
		CORSOrigins: cfg.Server.CORSAllowedOrigins,
		MaxBody:     cfg.Server.MaxBodyBytes,
		Version:     cfg.App.Version,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics, err = mw.RegisterMetrics(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, fmt.Errorf("app: metrics: %w", err)
		}
	}
	if cfg.GraphQL.Enabled {
		schema, err := graphql.Build(a.Modules, cfg.App.Version)
		if err != nil {
			return nil, fmt.Errorf("app: graphql schema: %w", err)
		}
		deps.GraphQL = &schema
	}
	a.Handler = router.New(deps)
	return a, nil
}

// limiters elige el backend del rate limit. Redis reutiliza la conexión
// del cache cuando también es Redis.
func (a *App) limiters(ctx context.Context) (*rate.Pool, error) {
	cfg := a.Config
	if cfg.Rate.Driver != "redis" {
		return rate.NewPool(func(p rate.Policy) rate.Limiter { return rate.NewMemoryLimiter(p) }), nil
	}
	var client *redis.Client
	if rc, ok := a.Cache.(interface{ Redis() *redis.Client }); ok {
		client = rc.Redis()
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("app: rate limit redis: %w", err)
		}
		a.closers = append(a.closers, client.Close)
	}
	prefix := cfg.Cache.Redis.Prefix + "rl:"
	return rate.NewPool(func(p rate.Policy) rate.Limiter { return rate.NewRedisLimiter(client, prefix, p) }), nil
}

// delivery arma los canales de touch. Sin host SMTP o sin brokers el canal
// queda deshabilitado y send marca la entidad como failed.
func (a *App) delivery(ctx context.Context) (touch.Options, error) {
	cfg := a.Config
	log := logger.From(ctx).With(logger.Layer("app"))
	out := touch.Options{From: cfg.SMTP.From, PushTopic: cfg.Kafka.PushTopic}

	if cfg.SMTP.Host != "" {
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			From:               cfg.SMTP.From,
			TLSMode:            cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})
		if err != nil {
			return out, fmt.Errorf("app: smtp: %w", err)
		}
		out.Mailer = m
	} else {
		log.Warn("smtp not configured; email send is disabled")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		p, err := notify.NewKafkaPublisher(notify.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			WriteTimeout: cfg.Kafka.WriteTimeout,
			MaxRetries:   3,
		})
		if err != nil {
			return out, fmt.Errorf("app: kafka: %w", err)
		}
		out.Publisher = p
		a.closers = append(a.closers, p.Close)
	} else {
		log.Warn("kafka not configured; push send is disabled")
	}
	return out, nil
}

func (a *App) ready(ctx context.Context) error {
	if err := a.Backend.Ping(ctx); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if a.Cache != nil {
		if err := a.Cache.Ping(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Run sirve HTTP y barre las sagas vencidas hasta que ctx se cancele; luego
// apaga el servidor con el timeout configurado.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config
	log := logger.From(ctx).With(logger.Layer("app"))
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Providers.Essential.Sagas.Run(gctx, cfg.Sagas.SweepInterval)
		return nil
	})
	g.Go(func() error {
		log.Info("gateway listening",
			zap.String("addr", cfg.Server.Addr), zap.String("storage", a.Backend.Name()), zap.Int("modules", len(a.Modules)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close libera las dependencias en orden inverso.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// PermsFor junta los perms de los grants vigentes de subject, en el formato
// del claim "perms".
func (a *App) PermsFor(ctx context.Context, tenant, subject string) ([]string, error) {
	meta := resource.Metadata{Tenant: tenant, Subject: "system:token"}
	grants, err := a.Providers.Auth.Grants.Find(ctx, meta, resource.Filter{
		Query: resource.Query{"subject": subject},
	})
	if err != nil {
		return nil, err
	}
	return activePerms(grants, time.Now()), nil
}

func activePerms(grants []*auth.Grant, now time.Time) []string {
	set := map[string]struct{}{}
	for _, g := range grants {
		if g.Active(now) {
			set[g.Perm()] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
