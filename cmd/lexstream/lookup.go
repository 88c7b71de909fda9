package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kbukum/lexstream/bootstrap"
	"github.com/kbukum/lexstream/dictionary"
	apperrors "github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/httpclient"
	"github.com/kbukum/lexstream/logger"
	"github.com/kbukum/lexstream/observability"
	"github.com/kbukum/lexstream/stream"
)

type lookupFlags struct {
	retry  bool
	asJSON bool
	quiet  bool
}

// lookupCmd streams one word and prints the entry.
func lookupCmd(args []string, stdout, stderr io.Writer) error {
	fs, configPath := newFlagSet("lookup", stderr)
	baseURL := fs.String("url", "", "Backend base URL (overrides client.base_url)")
	token := fs.String("token", "", "Bearer token (overrides token)")
	var lf lookupFlags
	fs.BoolVar(&lf.retry, "retry", false, "Retry retryable failures using stream.retry")
	fs.BoolVar(&lf.asJSON, "json", false, "Print the entry as JSON")
	fs.BoolVar(&lf.quiet, "quiet", false, "Do not report progress")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("lookup takes exactly one word\n%w", errUsage)
	}
	word := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
	}
	if *token != "" {
		cfg.Token = *token
	}
	// Logs go to stderr so stdout carries only the entry.
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "warn"
	}

	app, err := bootstrap.NewApp(cfg, bootstrap.WithSummary(nil))
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(observability.NewComponent(cfg.Telemetry)); err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(observability.Meter(serviceName))
	if err != nil {
		return err
	}
	mgr, err := newManager(cfg, app.Logger, metrics)
	if err != nil {
		return err
	}
	if err := app.RegisterComponent(stream.NewComponent(mgr)); err != nil {
		return err
	}

	return app.RunTask(context.Background(), func(ctx context.Context) error {
		return runLookup(ctx, mgr, cfg, word, lf, stdout, stderr)
	})
}

// newManager builds the stream manager over the HTTP client. A configured
// token is sent as is; otherwise a token is minted per request when the
// JWT signing settings are available.
func newManager(cfg *Config, log *logger.Logger, metrics *observability.Metrics) (*stream.Manager, error) {
	clientCfg := cfg.Client
	switch {
	case cfg.Token != "":
		clientCfg.Auth = httpclient.BearerAuth(cfg.Token)
	case cfg.Auth.Enabled && cfg.Auth.JWT != nil:
		jwtCfg, scope := cfg.Auth.JWT, cfg.Auth.RequiredScope
		clientCfg.Auth = httpclient.BearerTokenSource(func() (string, error) {
			return mintToken(jwtCfg, serviceName+"-cli", scopesOr("", scope), 0)
		})
	}
	adapter, err := httpclient.New(clientCfg)
	if err != nil {
		return nil, err
	}
	return stream.NewManager(stream.NewHTTPTransport(adapter, cfg.Stream), cfg.Stream,
		stream.WithLogger(log), stream.WithMetrics(metrics))
}

func runLookup(ctx context.Context, mgr *stream.Manager, cfg *Config, word string, lf lookupFlags, stdout, stderr io.Writer) error {
	var opts []stream.Option
	var bar *progressBar
	if !lf.quiet {
		bar = newProgressBar(stderr, terminalWidth())
		opts = append(opts,
			stream.WithProgress(bar.Progress),
			stream.WithPartialResult(bar.Partial),
			stream.WithWarning(func(e *apperrors.AppError) { bar.Warn(e.Message) }),
		)
	}

	var (
		entry dictionary.Entry
		err   error
	)
	if lf.retry {
		entry, err = stream.DoWithRetry[dictionary.Entry](ctx, mgr, word, cfg.Stream.Retry, opts...)
	} else {
		entry, err = stream.Do[dictionary.Entry](ctx, mgr, word, opts...)
	}
	if bar != nil {
		bar.Done()
	}
	if err != nil {
		return err
	}

	if lf.asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	}
	_, err = io.WriteString(stdout, renderEntry(entry, terminalWidth())+"\n")
	return err
}

func terminalWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 20 {
		return n
	}
	return 80
}
