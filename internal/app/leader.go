package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotLeader is returned by Renew when the lease is held by someone else or expired.
var ErrNotLeader = errors.New("not leader")

const (
	RetentionLeaderKey = "screentime:retention:leader"

	renewScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("PEXPIRE", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
	releaseScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

// LeaderElector implements a Redis lease using SETNX with TTL, so only one
// server instance runs the retention schedule.
type LeaderElector struct {
	rdb        *redis.Client
	instanceID string
	lockKey    string
	lockTTL    time.Duration
}

// NewLeaderElector creates a lease on key. instanceID must be unique per process.
func NewLeaderElector(rdb *redis.Client, instanceID, key string, ttl time.Duration) *LeaderElector {
	return &LeaderElector{
		rdb:        rdb,
		instanceID: instanceID,
		lockKey:    key,
		lockTTL:    ttl,
	}
}

func (l *LeaderElector) InstanceID() string { return l.instanceID }

// TryAcquire returns true if this instance took the lease.
func (l *LeaderElector) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.rdb.SetNX(ctx, l.lockKey, l.instanceID, l.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire leader lock: %w", err)
	}
	return ok, nil
}

// Renew extends the lease if this instance still holds it.
func (l *LeaderElector) Renew(ctx context.Context) error {
	res, err := l.rdb.Eval(ctx, renewScript, []string{l.lockKey}, l.instanceID, l.lockTTL.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to renew leader lock: %w", err)
	}
	if res == 0 {
		return ErrNotLeader
	}
	return nil
}

// Release drops the lease if this instance holds it. Called on shutdown.
func (l *LeaderElector) Release(ctx context.Context) error {
	if err := l.rdb.Eval(ctx, releaseScript, []string{l.lockKey}, l.instanceID).Err(); err != nil {
		return fmt.Errorf("failed to release leader lock: %w", err)
	}
	return nil
}
