package factory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lisst-auth/internal/backend"
	"lisst-auth/internal/config"
	"lisst-auth/internal/events"
	"lisst-auth/internal/gate"
	"lisst-auth/internal/session"
	"lisst-auth/internal/storage"
	"lisst-auth/internal/tls"
	"lisst-auth/internal/util"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config     *config.Config
	tlsManager *tls.Manager

	redisStore    *storage.RedisStore
	store         storage.KeyValue
	producer      *events.Producer
	backendClient *backend.Client
	sessions      *session.Store
	authGate      *gate.Gate

	closeOnce sync.Once
}

// NewFactory loads configuration and initializes every dependency, then
// restores the persisted session so the gate never sees an uninitialized
// store.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)
	logger := util.Get()

	f := &Factory{config: cfg}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewManager(&tls.Config{
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
		})
	}

	// Durable session storage. Redis when configured; otherwise an in-memory
	// store that loses sessions on restart, which is fine for local work.
	if cfg.Redis.URL != "" {
		redisStore, err := storage.NewRedisStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		f.redisStore = redisStore
		f.store = redisStore
	} else {
		util.Warn("REDIS_URL not set - sessions will not survive restarts")
		f.store = storage.NewMemoryStore()
	}

	// Audit events are optional; the service proceeds without Kafka.
	if producer, err := events.NewProducer(cfg, logger); err != nil {
		util.Warn("Auth event producer unavailable - proceeding without audit events",
			util.ErrorField(err))
	} else {
		f.producer = producer
	}

	f.backendClient = backend.NewClient(cfg, logger)
	f.sessions = session.New(f.backendClient, f.store, f.producer, cfg, logger)
	f.authGate = gate.New(f.sessions, cfg, logger)

	f.runHealthChecks()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	f.sessions.Restore(ctx)

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
		util.Bool("redis_backed", f.redisStore != nil),
		util.Bool("audit_events", f.producer != nil),
	)

	return f, nil
}

// runHealthChecks probes the wired collaborators in parallel. Failures are
// logged, not fatal: the backend may come up later and every call site
// degrades to a user-visible message.
func (f *Factory) runHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	if f.redisStore != nil {
		g.Go(func() error {
			if err := f.redisStore.HealthCheck(ctx); err != nil {
				util.Warn("Redis health check failed", util.ErrorField(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		if !f.backendClient.TestConnection(ctx) {
			util.Warn("Finance backend unreachable at startup")
		}
		return nil
	})

	_ = g.Wait()
}

func (f *Factory) Config() *config.Config         { return f.config }
func (f *Factory) TLSManager() *tls.Manager       { return f.tlsManager }
func (f *Factory) Sessions() *session.Store       { return f.sessions }
func (f *Factory) BackendClient() *backend.Client { return f.backendClient }
func (f *Factory) AuthGate() *gate.Gate           { return f.authGate }
func (f *Factory) Producer() *events.Producer     { return f.producer }

func (f *Factory) Close() {
	f.closeOnce.Do(func() {
		if f.producer != nil {
			_ = f.producer.Close()
		}
		if f.redisStore != nil {
			_ = f.redisStore.Close()
		}
		util.Info("Factory closed")
		util.Sync()
	})
}
