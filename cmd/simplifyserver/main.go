// Command simplifyserver serves the test models over REST using the
// configuration found by config.NewManager.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/spf13/pflag"
	"github.com/uptrace/bunrouter"

	"github.com/bitechdev/SimplifySpec/pkg/cache"
	"github.com/bitechdev/SimplifySpec/pkg/common"
	"github.com/bitechdev/SimplifySpec/pkg/config"
	"github.com/bitechdev/SimplifySpec/pkg/dbmanager"
	"github.com/bitechdev/SimplifySpec/pkg/dialect"
	"github.com/bitechdev/SimplifySpec/pkg/errortracking"
	"github.com/bitechdev/SimplifySpec/pkg/fields"
	"github.com/bitechdev/SimplifySpec/pkg/logger"
	"github.com/bitechdev/SimplifySpec/pkg/metadata"
	"github.com/bitechdev/SimplifySpec/pkg/metrics"
	"github.com/bitechdev/SimplifySpec/pkg/middleware"
	"github.com/bitechdev/SimplifySpec/pkg/server"
	"github.com/bitechdev/SimplifySpec/pkg/simplifyspec"
	"github.com/bitechdev/SimplifySpec/pkg/sqlexec"
	"github.com/bitechdev/SimplifySpec/pkg/testmodels"
	"github.com/bitechdev/SimplifySpec/pkg/tracing"
)

func main() {
	configFile := pflag.StringP("config", "c", "", "configuration file")
	initSchema := pflag.Bool("init-schema", false, "create the test tables on a sqlite default connection")
	pflag.Parse()

	if err := run(*configFile, *initSchema); err != nil {
		fmt.Fprintf(os.Stderr, "simplifyserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string, initSchema bool) error {
	var opts []config.Option
	if configFile != "" {
		opts = append(opts, config.WithConfigFile(configFile))
	}
	cfgMgr := config.NewManager(opts...)
	if err := cfgMgr.Load(); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg, err := cfgMgr.GetConfig()
	if err != nil {
		return fmt.Errorf("read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Configure(logger.Options{Dev: cfg.Logger.Dev, Path: cfg.Logger.Path, Level: cfg.Logger.Level}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	defer logger.Sync()
	if used := cfgMgr.ConfigFileUsed(); used != "" {
		logger.Info("Loaded configuration from %s", used)
	}

	tracker, err := errortracking.NewProviderFromConfig(cfg.ErrorTracking)
	if err != nil {
		return err
	}
	logger.InitErrorTracking(tracker)

	shutdownTracer, err := tracing.InitTracer(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: cfg.Tracing.ServiceVersion,
		Endpoint:       cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
		SampleRatio:    cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	if cfg.Encryption.Key != "" {
		codec, err := fields.NewAEADCodec(cfg.Encryption.Key)
		if err != nil {
			return fmt.Errorf("encryption key: %w", err)
		}
		fields.SetCodec(codec)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbMgr, err := dbmanager.NewManager(cfg.Database)
	if err != nil {
		return err
	}
	if err := dbMgr.Connect(ctx); err != nil {
		return err
	}
	if err := registerModels(dbMgr); err != nil {
		_ = dbMgr.Close()
		return err
	}
	if initSchema {
		if err := createSchema(ctx, dbMgr); err != nil {
			_ = dbMgr.Close()
			return err
		}
	}

	handler, respCache, err := newHandler(cfg, dbMgr)
	if err != nil {
		_ = dbMgr.Close()
		return err
	}

	var prom *metrics.PrometheusProvider
	if cfg.Metrics.Enabled {
		prom = metrics.NewPrometheusProvider(&metrics.Config{
			Namespace:          cfg.Metrics.Namespace,
			HTTPRequestBuckets: cfg.Metrics.Buckets,
		})
		if err := prom.Register(dbMgr.Collector()); err != nil {
			_ = dbMgr.Close()
			return fmt.Errorf("register database metrics: %w", err)
		}
		metrics.SetProvider(prom)
	}

	root := mux.NewRouter()
	srv, err := server.New(server.Config{
		Addr:            cfg.Server.Addr,
		Handler:         root,
		GZIP:            cfg.Server.GZIP,
		SSLCert:         cfg.Server.SSLCert,
		SSLKey:          cfg.Server.SSLKey,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		DrainTimeout:    cfg.Server.DrainTimeout,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
	})
	if err != nil {
		_ = dbMgr.Close()
		return err
	}
	root.Handle("/health", srv.HealthHandler())
	root.Handle("/ready", readiness(srv, dbMgr))
	if prom != nil {
		root.Handle(cfg.Metrics.Path, prom.Handler())
	}
	root.PathPrefix("/").Handler(routes(cfg, handler, prom))

	srv.OnShutdown(func(context.Context) error { return dbMgr.Close() })
	if respCache != nil {
		srv.OnShutdown(func(context.Context) error { return respCache.Close() })
	}
	srv.OnShutdown(shutdownTracer)
	srv.OnShutdown(func(context.Context) error { return logger.CloseErrorTracking() })

	logger.Info("SimplifySpec server listening on %s (router %s)", cfg.Server.Addr, cfg.Server.Router)
	return srv.Run(ctx)
}

// newHandler registers the demo resources on the default connection.
func newHandler(cfg *config.Config, dbMgr *dbmanager.Manager) (*simplifyspec.Handler, *cache.Cache, error) {
	db, err := dbMgr.Database("")
	if err != nil {
		return nil, nil, err
	}
	provider := metadata.NewProvider(nil)
	if err := testmodels.Register(provider); err != nil {
		return nil, nil, err
	}

	h := simplifyspec.NewHandler(db, provider)
	h.SetDatabaseResolver(dbMgr.Database)
	for _, res := range resources() {
		if err := h.Register(res); err != nil {
			return nil, nil, err
		}
	}

	var respCache *cache.Cache
	if cfg.Cache.Enabled {
		p, err := newCacheProvider(cfg.Cache)
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		respCache = cache.NewCache(p)
		h.SetCache(respCache)
	}

	if cfg.Procedures.Enabled {
		pdb, err := dbMgr.Database(cfg.Procedures.Connection)
		if err != nil {
			return nil, nil, err
		}
		exec, err := sqlexec.New(pdb)
		if err != nil {
			return nil, nil, err
		}
		h.SetProcedureRunner(exec.Allow(cfg.Procedures.Allowed...))
	}

	if cfg.CORS.Enabled {
		cors := common.DefaultCORSConfig()
		if len(cfg.CORS.AllowedOrigins) > 0 {
			cors.AllowedOrigins = cfg.CORS.AllowedOrigins
		}
		if len(cfg.CORS.AllowedMethods) > 0 {
			cors.AllowedMethods = cfg.CORS.AllowedMethods
		}
		if len(cfg.CORS.AllowedHeaders) > 0 {
			cors.AllowedHeaders = cfg.CORS.AllowedHeaders
		}
		if len(cfg.CORS.ExposedHeaders) > 0 {
			cors.ExposedHeaders = cfg.CORS.ExposedHeaders
		}
		if cfg.CORS.MaxAge > 0 {
			cors.MaxAge = cfg.CORS.MaxAge
		}
		h.SetCORS(cors)
	}
	logger.Debug("Handler ready with %d resources", len(h.Resources()))
	return h, respCache, nil
}

// readiness fails while any connection is unhealthy.
func readiness(srv *server.Server, dbMgr *dbmanager.Manager) http.HandlerFunc {
	ready := srv.ReadinessHandler()
	return func(w http.ResponseWriter, r *http.Request) {
		if err := dbMgr.HealthCheck(r.Context()); err != nil {
			logger.Warn("Readiness check failed: %v", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		ready(w, r)
	}
}

func newCacheProvider(cfg config.CacheConfig) (cache.Provider, error) {
	opts := &cache.Options{DefaultTTL: cfg.DefaultTTL, MaxSize: cfg.MaxSize}
	switch cfg.Provider {
	case "redis":
		return cache.NewRedisProvider(&cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
			Options:  opts,
		})
	case "memcache":
		return cache.NewMemcacheProvider(&cache.MemcacheConfig{
			Servers:      cfg.Memcache.Servers,
			MaxIdleConns: cfg.Memcache.MaxIdleConns,
			Timeout:      cfg.Memcache.Timeout,
			Options:      opts,
		})
	default:
		return cache.NewMemoryProvider(opts), nil
	}
}

// routes builds the API handler below the configured base path.
func routes(cfg *config.Config, h *simplifyspec.Handler, prom *metrics.PrometheusProvider) http.Handler {
	base := strings.TrimSuffix(cfg.Server.BasePath, "/")

	var api http.Handler
	switch cfg.Server.Router {
	case "bunrouter":
		r := bunrouter.New()
		simplifyspec.SetupBunRouterRoutes(r, h)
		api = r
		if base != "" {
			api = http.StripPrefix(base, api)
		}
		if prom != nil {
			api = prom.Middleware(api)
		}
	default:
		r := mux.NewRouter()
		sub := r
		if base != "" {
			sub = r.PathPrefix(base).Subrouter()
		}
		if prom != nil {
			sub.Use(prom.Middleware)
		}
		simplifyspec.SetupMuxRoutes(sub, h, nil)
		api = r
	}
	api = tracing.Middleware(api)

	if cfg.Middleware.RateLimitRPS > 0 {
		api = middleware.NewRateLimiter(cfg.Middleware.RateLimitRPS, cfg.Middleware.RateLimitBurst).Middleware(api)
	}
	maxSize := cfg.Middleware.MaxRequestSize
	if maxSize <= 0 {
		maxSize = middleware.DefaultMaxRequestSize
	}
	return middleware.RequestSizeLimit(maxSize)(api)
}

// registerModels registers the many-to-many join models on every Bun handle.
func registerModels(dbMgr *dbmanager.Manager) error {
	for _, name := range dbMgr.Names() {
		conn, err := dbMgr.Get(name)
		if err != nil {
			return err
		}
		db, err := conn.Bun()
		if err != nil {
			return err
		}
		testmodels.RegisterBun(db)
	}
	return nil
}

// createSchema creates the test tables on a sqlite default connection.
func createSchema(ctx context.Context, dbMgr *dbmanager.Manager) error {
	conn, err := dbMgr.Get("")
	if err != nil {
		return err
	}
	if conn.Engine() != dialect.SQLite {
		logger.Warn("Skipping schema creation on %s connection %s", conn.Engine(), conn.Name())
		return nil
	}
	sqldb, err := conn.Native()
	if err != nil {
		return err
	}
	for _, stmt := range testmodels.SQLiteSchema {
		if _, err := sqldb.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	logger.Info("Created %d test tables on %s", len(testmodels.SQLiteSchema), conn.Name())
	return nil
}
