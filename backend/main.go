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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mivchk/splus-bot/backend/bot"
	"github.com/mivchk/splus-bot/backend/paramstore"
	"github.com/mivchk/splus-bot/backend/session"
	"github.com/mivchk/splus-bot/backend/store"
	"github.com/mivchk/splus-bot/backend/telemetry"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := newLogger(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "SPLUS_LOG_LEVEL:", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("splus-bot stopped")
	}
	log.Info().Msg("splus-bot stopped")
}

func run(ctx context.Context, cfg Config, log zerolog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, "splus-bot", cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Error().Err(err).Msg("shutdown tracing")
		}
	}()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	var awsLoader lazyAWS
	sessions, sweeper, err := newSessionStore(ctx, cfg, &awsLoader)
	if err != nil {
		return err
	}
	secret, err := gatewaySecret(ctx, cfg, &awsLoader)
	if err != nil {
		return err
	}

	gw := NewGateway([]byte(secret), cfg.AllowedOrigins, func(ctx context.Context) context.Context {
		return store.WithLoaders(ctx, st.NewLoaders())
	}, log)

	dispatcher, err := bot.NewDispatcher(bot.Deps{
		Members:   st,
		Reference: st,
		Sessions:  sessions,
		Locker:    session.NewLocker(),
		Transport: gw,
		Logger:    log,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(st, gw, dispatcher, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("sessions", cfg.SessionBackend).Msg("starting splus-bot")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if sweeper != nil {
		g.Go(func() error {
			sweepSessions(gctx, sweeper, cfg.SweepInterval, cfg.SessionTTL, log)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		gw.CloseAll()
		gw.Wait()
		return err
	})
	return g.Wait()
}

func newMux(st *store.Store, gw *Gateway, h eventHandler, origins []string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", healthHandler(st))
	mux.Handle("/ws/gateway", gw.Handler(h))
	return withCORS(origins)(mux)
}

// lazyAWS loads the default AWS configuration on first use so that
// deployments without AWS features never touch credentials.
type lazyAWS struct {
	cfg    aws.Config
	loaded bool
}

func (l *lazyAWS) config(ctx context.Context) (aws.Config, error) {
	if l.loaded {
		return l.cfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	l.cfg, l.loaded = cfg, true
	return cfg, nil
}

// newSessionStore returns the configured store and, for the in-memory
// backend, the store to sweep.
func newSessionStore(ctx context.Context, cfg Config, l *lazyAWS) (session.Store, *session.MemoryStore, error) {
	if cfg.SessionBackend == sessionBackendDynamo {
		awsCfg, err := l.config(ctx)
		if err != nil {
			return nil, nil, err
		}
		ds, err := session.NewDynamoStore(dynamodb.NewFromConfig(awsCfg), cfg.SessionTable, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		return ds, nil, nil
	}
	ms := session.NewMemoryStore()
	return ms, ms, nil
}

func gatewaySecret(ctx context.Context, cfg Config, l *lazyAWS) (string, error) {
	if cfg.GatewaySecret != "" {
		return cfg.GatewaySecret, nil
	}
	awsCfg, err := l.config(ctx)
	if err != nil {
		return "", err
	}
	client, err := paramstore.New(ssm.NewFromConfig(awsCfg))
	if err != nil {
		return "", err
	}
	return paramstore.Secret(ctx, client, "", cfg.GatewaySecretParam)
}

// sweepSessions drops in-memory sessions idle for longer than ttl until ctx
// is done.
func sweepSessions(ctx context.Context, ms *session.MemoryStore, every, ttl time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := ms.Sweep(now.Add(-ttl)); n > 0 {
				log.Info().Int("removed", n).Msg("swept stale sessions")
			}
		}
	}
}
