package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix            = "user:%d"
	ModerationStatsKeyPrefix = "moderation:stats:%s"
)

const (
	UserTTL = 5 * time.Minute
	// DefaultStatsTTL applies when MODERATION_STATS_CACHE_SECONDS is unset.
	DefaultStatsTTL = 15 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// ModerationStatsKey caches the per-kind stats block of the report listings.
func ModerationStatsKey(kind string) string {
	return fmt.Sprintf(ModerationStatsKeyPrefix, kind)
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

// InvalidateModerationStats drops the cached stats for every kind given.
func InvalidateModerationStats(ctx context.Context, kinds ...string) {
	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, ModerationStatsKey(k))
	}
	Invalidate(ctx, keys...)
}
