// Package lookupd is the reference lookup backend. It streams a dictionary
// lookup as server-sent events: a config event with stage weights, progress
// for the search and synthesize stages, then the entry either inline on the
// complete event or as completion chunks followed by a payload-less
// complete. Unknown words end with a non-retryable WORD_NOT_FOUND error
// event.
//
//	h := lookupd.NewHandler(store, cfg, lookupd.WithLogger(log))
//	h.Register(srv.GinEngine(), middleware.Auth(authCfg))
package lookupd
