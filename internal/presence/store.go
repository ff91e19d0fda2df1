// Package presence mirrors session participants into Redis so processes
// other than the coordinator can see who is online.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Keys:
//   - roomKey(sessionID): ZSET<userID, expireAtUnix>
//   - sessionsKey:        SET<sessionID> of every session ever mirrored
const (
	keyRoomFmt  = "querydraft:presence:room:{%s}"
	sessionsKey = "querydraft:presence:sessions"
)

func roomKey(sessionID uuid.UUID) string { return fmt.Sprintf(keyRoomFmt, sessionID) }

// pruneScript drops every member whose expiry score is <= ARGV[1].
var pruneScript = redis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
if #expired > 0 then
	redis.call("ZREMRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
end
return #expired
`)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Store{rdb: rdb, ttl: ttl, now: time.Now}
}

// Touch marks userID online in sessionID until now+ttl. Calling it again
// extends the deadline.
func (s *Store) Touch(ctx context.Context, sessionID, userID uuid.UUID) error {
	expireAt := s.now().Add(s.ttl).Unix()

	tx := s.rdb.TxPipeline()
	tx.ZAdd(ctx, roomKey(sessionID), redis.Z{Score: float64(expireAt), Member: userID.String()})
	tx.Expire(ctx, roomKey(sessionID), 2*s.ttl)
	tx.SAdd(ctx, sessionsKey, sessionID.String())
	_, err := tx.Exec(ctx)
	return err
}

func (s *Store) Remove(ctx context.Context, sessionID, userID uuid.UUID) error {
	return s.rdb.ZRem(ctx, roomKey(sessionID), userID.String()).Err()
}

// Online prunes expired members and returns the ones still alive.
func (s *Store) Online(ctx context.Context, sessionID uuid.UUID) ([]uuid.UUID, error) {
	now := s.now().Unix()

	if err := pruneScript.Run(ctx, s.rdb, []string{roomKey(sessionID)}, now).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to prune presence: %w", err)
	}

	members, err := s.rdb.ZRangeByScore(ctx, roomKey(sessionID), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(now, 10),
		Max: "+inf",
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}

	users := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	return users, nil
}

// Sessions lists every session id that has been mirrored.
func (s *Store) Sessions(ctx context.Context) ([]uuid.UUID, error) {
	raw, err := s.rdb.SMembers(ctx, sessionsKey).Result()
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		if id, err := uuid.Parse(r); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
