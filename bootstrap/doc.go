// Package bootstrap drives the lifecycle of a lexstream binary: typed
// config, the component registry, start and stop hooks, and signal
// handling. Long-running commands use Run; one-shot commands use RunTask.
//
//	app, err := bootstrap.NewApp(&cfg, bootstrap.WithSummary(nil))
//	err = app.RunTask(ctx, func(ctx context.Context) error {
//	    _, err := stream.Do[dictionary.Entry](ctx, mgr, word)
//	    return err
//	})
package bootstrap
