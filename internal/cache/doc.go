// Package cache provides the two-tier cache substrate: an in-process LRU
// with per-entry TTL (L1) in front of a shared redis store (L2) with
// transparent compression for large values.
//
// Reads come in two flavors. The fast path is used on request-critical
// reads: a single L2 attempt under a small budget with no retry, falling
// back to L1 so cached reads keep working through an L2 outage. The
// reliable path retries L2 a bounded number of times and is used for writes
// and non-critical reads. Scan-invalidate deletes every key matching a
// pattern in both tiers.
//
// Keys are versioned (<family>:<subject>:<version>:<hash>) so bumping the
// configured cache version invalidates an entire family without a scan.
//
// This package is internal and should not be imported by external projects.
package cache
