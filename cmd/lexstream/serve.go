package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lexstream/auth/jwt"
	"github.com/kbukum/lexstream/bootstrap"
	"github.com/kbukum/lexstream/dictionary"
	"github.com/kbukum/lexstream/logger"
	"github.com/kbukum/lexstream/lookupd"
	"github.com/kbukum/lexstream/observability"
	"github.com/kbukum/lexstream/server"
	"github.com/kbukum/lexstream/server/endpoint"
	"github.com/kbukum/lexstream/server/middleware"
)

// serveCmd runs the lookup backend until SIGINT or SIGTERM.
func serveCmd(args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("serve", stderr)
	addr := fs.String("addr", "", "Listen address host:port (overrides server.host and server.port)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		host, port, err := net.SplitHostPort(*addr)
		if err != nil {
			return fmt.Errorf("invalid -addr: %w", err)
		}
		cfg.Server.Host = host
		if cfg.Server.Port, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid -addr port: %w", err)
		}
	}

	app, err := bootstrap.NewApp(cfg, bootstrap.WithSummary(stdout))
	if err != nil {
		return err
	}

	telemetry := observability.NewComponent(cfg.Telemetry)
	if err := app.RegisterComponent(telemetry); err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return err
	}
	srv, err := newLookupServer(cfg, app.Logger, metrics, app.Components.HealthAll)
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
		return err
	}
	return app.Run(context.Background())
}

// newLookupServer builds the HTTP server with the default endpoints and the
// lookup routes behind auth and rate limiting.
func newLookupServer(cfg *Config, log *logger.Logger, metrics *observability.Metrics, health endpoint.HealthChecker) (*server.Server, error) {
	store, err := dictionary.NewStoreFromConfig(cfg.Lookup.Dictionary)
	if err != nil {
		return nil, fmt.Errorf("dictionary: %w", err)
	}
	mw, err := lookupMiddleware(cfg)
	if err != nil {
		return nil, err
	}

	srv := server.New(cfg.Server, log)
	srv.ApplyDefaults(cfg.Name, health, metrics)
	lookupd.NewHandler(store, cfg.Lookup, lookupd.WithLogger(log), lookupd.WithMetrics(metrics)).
		Register(srv.GinEngine(), mw...)

	log.Info("Dictionary loaded", logger.Fields("words", store.Len(), "auth", cfg.Auth.Describe()))
	return srv, nil
}

func lookupMiddleware(cfg *Config) ([]gin.HandlerFunc, error) {
	var mw []gin.HandlerFunc
	if cfg.Auth.Enabled {
		svc, err := jwt.NewService(cfg.Auth.JWT, func() *jwt.Claims { return &jwt.Claims{} })
		if err != nil {
			return nil, err
		}
		mw = append(mw, middleware.Auth(middleware.AuthConfig{TokenValidator: svc.MapValidator()}))
		if cfg.Auth.RequiredScope != "" {
			mw = append(mw, middleware.RequireScope(cfg.Auth.RequiredScope))
		}
	}
	if cfg.RateLimit != nil {
		rl := *cfg.RateLimit
		if cfg.Auth.Enabled {
			rl.KeyFunc = middleware.SubjectBasedKey
		}
		mw = append(mw, middleware.RateLimit(rl))
	}
	return mw, nil
}
