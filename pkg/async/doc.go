// Package async provides safe goroutine helpers for fire-and-forget work.
//
// SafeGo wraps `go func()` with panic recovery, a bounded timeout, and error
// logging so that best-effort side effects (cache invalidation, push
// notifications) can never crash the process or block a request. Detached
// yields a context that keeps request-scoped values but drops cancellation,
// for work that must outlive the request that spawned it.
package async
