package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Presence bookkeeping. The connection registry inside the process is the
// authoritative source of who is online right now; Redis only remembers
// when a user was last seen so the HTTP presence endpoint can answer for
// offline users and across gateway restarts.

const lastSeenKeyPrefix = "presence:last_seen:"

// lastSeenTTL keeps the key set long enough for "last seen N days ago"
// UI while letting stale accounts age out of Redis.
const lastSeenTTL = 30 * 24 * time.Hour

// TouchLastSeen records the moment a user was last connected.
func (rc *RedisClient) TouchLastSeen(ctx context.Context, userID string, at time.Time) error {
	return rc.SetEx(ctx, lastSeenKeyPrefix+userID, at.UTC().UnixMilli(), lastSeenTTL)
}

// LastSeen returns the last recorded connection time for a user.
// The bool result is false when nothing is recorded.
func (rc *RedisClient) LastSeen(ctx context.Context, userID string) (time.Time, bool, error) {
	val, err := rc.Get(ctx, lastSeenKeyPrefix+userID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms).UTC(), true, nil
}
