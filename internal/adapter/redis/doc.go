// Package redis holds the Redis-backed adapters: the summary cache, the
// cross-process tab channel and the guarded client they share.
package redis
