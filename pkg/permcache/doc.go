// Package permcache holds the permission snapshot cache and the
// invalidation dispatcher invoked after membership mutations.
//
// The dispatcher is pluggable: deployments without redis get a no-op
// implementation, so mutations never depend on the cache backend being
// reachable. Dispatch failures are logged and swallowed.
package permcache
