package notifications

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"warden/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKey        = "moderation:online_admins"
	defaultPresenceTTL = 90 * time.Second
)

// Presence tracks which admins have the moderation stream open. Each API
// instance keeps local connection counts and mirrors them into a Redis
// sorted set scored by last-seen time, so every instance sees the union.
type Presence struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	local map[uint]int
}

// NewPresence returns a tracker. rdb may be nil, in which case only local
// connections are reported.
func NewPresence(rdb *redis.Client, ttl time.Duration) *Presence {
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &Presence{
		rdb:   rdb,
		ttl:   ttl,
		now:   time.Now,
		local: make(map[uint]int),
	}
}

// Join counts one more connection for userID.
func (p *Presence) Join(ctx context.Context, userID uint) {
	p.mu.Lock()
	p.local[userID]++
	p.mu.Unlock()
	p.touch(ctx, userID)
}

// Leave drops one connection. The admin goes offline with their last one.
func (p *Presence) Leave(ctx context.Context, userID uint) {
	p.mu.Lock()
	n := p.local[userID] - 1
	if n > 0 {
		p.local[userID] = n
		p.mu.Unlock()
		return
	}
	delete(p.local, userID)
	p.mu.Unlock()

	if p.rdb == nil {
		return
	}
	if err := p.rdb.ZRem(ctx, presenceKey, member(userID)).Err(); err != nil {
		observability.GlobalLogger.Warn("presence ZREM failed", "user_id", userID, "error", err)
	}
}

// Refresh re-stamps every local admin and prunes entries other instances
// stopped refreshing.
func (p *Presence) Refresh(ctx context.Context) {
	if p.rdb == nil {
		return
	}
	for _, id := range p.localIDs() {
		p.touch(ctx, id)
	}
	p.prune(ctx)
}

// Online lists admin IDs with an open stream on any instance, ascending.
func (p *Presence) Online(ctx context.Context) ([]uint, error) {
	seen := make(map[uint]struct{})
	for _, id := range p.localIDs() {
		seen[id] = struct{}{}
	}

	if p.rdb != nil {
		p.prune(ctx)
		members, err := p.rdb.ZRange(ctx, presenceKey, 0, -1).Result()
		if err != nil {
			return nil, err
		}
		for _, raw := range members {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				continue
			}
			seen[uint(id)] = struct{}{}
		}
	}

	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Run refreshes presence until ctx is done.
func (p *Presence) Run(ctx context.Context) {
	ticker := time.NewTicker(p.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Refresh(ctx)
		}
	}
}

func (p *Presence) touch(ctx context.Context, userID uint) {
	if p.rdb == nil {
		return
	}
	z := redis.Z{Score: float64(p.now().Unix()), Member: member(userID)}
	if err := p.rdb.ZAdd(ctx, presenceKey, z).Err(); err != nil {
		observability.GlobalLogger.Warn("presence ZADD failed", "user_id", userID, "error", err)
	}
}

func (p *Presence) prune(ctx context.Context) {
	cutoff := strconv.FormatInt(p.now().Add(-p.ttl).Unix(), 10)
	if err := p.rdb.ZRemRangeByScore(ctx, presenceKey, "-inf", "("+cutoff).Err(); err != nil {
		observability.GlobalLogger.Warn("presence prune failed", "error", err)
	}
}

func (p *Presence) localIDs() []uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]uint, 0, len(p.local))
	for id := range p.local {
		ids = append(ids, id)
	}
	return ids
}

func member(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}
