// Package storage wires the durable backends: a PostgreSQL connection pool
// behind database/sql, an optional Redis client for the permission cache and
// push channel, and a small versioned in-code migration runner.
package storage
