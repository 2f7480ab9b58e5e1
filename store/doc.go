// Package store implements the persistence repositories over the relational
// gateway, together with the cache policy for the derived read views
// (session lists, message lists, session+messages, user info, IP
// observations). Chat answers themselves are never cached; every write path
// here evicts the cache families its entity participates in, so a live
// cache key always reflects a snapshot no older than the last write.
package store
