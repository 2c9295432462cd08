package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"federation/cache"
	"federation/config"
	httpserver "federation/http"
	"federation/health"
	"federation/kafka"
	"federation/logger"
	"federation/sso"
	"federation/telemetry"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env, err := config.LoadEnv()
	if err != nil {
		logger.DefaultLogger("federation").Fatal(ctx, "invalid environment", logger.F("error", err.Error()))
	}

	tel, err := telemetry.Setup(ctx, telemetry.Config{ServiceName: env.ServiceName, Global: true})
	if err != nil {
		logger.DefaultLogger(env.ServiceName).Fatal(ctx, "telemetry setup failed", logger.F("error", err.Error()))
	}

	level, err := logger.ParseLevel(env.LogLevel)
	if err != nil {
		level = logger.InfoLevel
	}
	log := logger.NewLogger(
		logger.WithService(env.ServiceName),
		logger.WithLevel(level),
		logger.WithHandler(logger.NewConsoleHandler(&logger.JsonFormatter{})),
		logger.WithHandler(logger.NewOTelHandler(tel.Logger, "federation")),
	)

	finish(run(ctx, env, log), tel.Shutdown, log)
}

// finish flushes telemetry and exits non-zero through log.Fatal when the
// service stopped for any reason other than a shutdown signal.
func finish(runErr error, flush func(context.Context) error, log *logger.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := flush(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "telemetry shutdown failed", logger.F("error", err.Error()))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Fatal(shutdownCtx, "service stopped with error", logger.F("error", runErr.Error()))
		return
	}
	log.Close()
}

func run(ctx context.Context, env *config.Env, log *logger.Logger) error {
	registry := sso.NewDefaultRegistry()
	registry.Seal()

	file, err := config.Load(env.ProvidersFile)
	if err != nil {
		return err
	}

	opts := []sso.ClientOption{sso.WithLogger(log)}
	if len(env.KafkaBrokers) > 0 {
		kcfg := kafka.NewDefaultConfig()
		kcfg.Brokers = env.KafkaBrokers
		kcfg.Topic = env.KafkaTopic
		kcfg.ClientID = env.ServiceName
		if err := kafka.EnsureTopic(ctx, kcfg); err != nil {
			log.With(logger.F("topic", kcfg.Topic)).WithError(err).Context(ctx).Warn("could not ensure login topic")
		}
		publisher := kafka.NewLoginPublisher(kafka.NewProducer(kcfg))
		defer publisher.Close()
		opts = append(opts, sso.WithPublisher(publisher))
	}

	bindings, err := config.Bind(ctx, registry, file, log, opts...)
	if err != nil {
		return err
	}

	var states sso.StateStore = sso.NewMemoryStateStore()
	if env.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Address:   env.RedisAddr,
			Password:  env.RedisPassword,
			DB:        env.RedisDB,
			Namespace: env.ServiceName,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		states = sso.NewCacheStateStore(rc)
	}

	codec, err := sso.NewStateCodec([]byte(env.StateSecret))
	if err != nil {
		return err
	}

	handler := sso.NewHandler(config.Clients(bindings), states, codec, sso.HandlerConfig{
		DefaultRedirectURL: env.DefaultRedirectURL,
		AllowedHosts:       env.AllowedHosts,
	}, log)
	handler.Next = sessionHandler(bindings, log)

	mux := http.NewServeMux()
	handler.RegisterHandlers(mux)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.NewServer(httpserver.DefaultConfig(env.HTTPAddr), mux, log).Run(ctx)
	})
	g.Go(func() error {
		return health.NewServer(registry, log).Serve(ctx, env.GRPCAddr)
	})
	return g.Wait()
}

// sessionHandler returns the authenticated identity, renamed through the
// provider's configured properties.
func sessionHandler(bindings map[string]*config.Binding, log *logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := sso.IdentityFromContext(r.Context())
		var props config.Properties
		if b, ok := bindings[r.URL.Query().Get("provider")]; ok {
			props = b.Properties
		}

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"provider":    identity.Provider,
			"provider_id": identity.ProviderID,
			"identity":    props.Apply(identity),
			"redirect":    sso.RedirectURLFromContext(r.Context()),
		})
		if err != nil {
			log.With().Context(r.Context()).WithError(err).Error("failed to write identity")
		}
	})
}
