// Package database owns the relational store gateway: a gorm/postgres
// connection pool with startup pre-warming, a background health probe,
// bounded-backoff reconnection and fetch helpers that retry exactly once on
// connection-class errors. IsConnected is O(1) and reflects the last known
// state so request paths can fail fast without touching the network.
//
// This package is internal and should not be imported by external projects.
package database
