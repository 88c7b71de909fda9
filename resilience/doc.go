// Package resilience provides the fault-tolerance primitives lexstream layers
// around stream transports.
//
//   - Retry: re-runs a failed lookup with exponential backoff, honouring the
//     retryability carried by *errors.AppError
//   - Bulkhead: caps concurrently open streams (Acquire/release for holders
//     that outlive one call)
//   - CircuitBreaker: fails fast while the lookup backend keeps failing and
//     says when it will admit a trial call
//   - RateLimiter: token bucket pacing stream opens; Wait reserves a token
//     and Delay feeds Retry-After headers
//
// The HTTP adapter composes them per stream open:
//
//	if err := rl.Wait(ctx); err != nil {
//	    return err // *LimitedError when the token is beyond MaxWait
//	}
//	done, err := cb.Allow()
//	if err != nil {
//	    return err // *OpenError carrying RetryIn
//	}
//	resp, err := openStream(ctx)
//	done(err)
package resilience
