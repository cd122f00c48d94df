package index

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

const (
	keyPrefix     = "bookshelf:"
	allBooksKey   = keyPrefix + "books"
	removedKey    = keyPrefix + "removed"
	creatorPrefix = keyPrefix + "creator:"
	dateLayout    = "2006-01-02"
)

func bookKey(id string) string { return keyPrefix + "book:" + id }
func creatorKey(creator string) string { return creatorPrefix + creator }

// upsertScript writes the hash and moves the id between creator sets in one
// step. It skips removed ids and records whose version is older than the
// stored one.
//
// KEYS: book hash, all-books set, removed set.
// ARGV: id, title, author, published_on, creator_id, cover_key, updated_at,
// version, creator key prefix.
const upsertScript = `
if redis.call('SISMEMBER', KEYS[3], ARGV[1]) == 1 then return 0 end
local cur = redis.call('HGET', KEYS[1], 'version')
if cur and tonumber(cur) > tonumber(ARGV[8]) then return 0 end
local prev = redis.call('HGET', KEYS[1], 'creator_id')
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'title', ARGV[2], 'author', ARGV[3],
  'published_on', ARGV[4], 'creator_id', ARGV[5], 'cover_key', ARGV[6],
  'updated_at', ARGV[7], 'version', ARGV[8])
redis.call('SADD', KEYS[2], ARGV[1])
if prev and prev ~= '' and prev ~= ARGV[5] then redis.call('SREM', ARGV[9] .. prev, ARGV[1]) end
if ARGV[5] ~= '' then redis.call('SADD', ARGV[9] .. ARGV[5], ARGV[1]) end
return 1
`

// removeScript tombstones the id and drops it from every set.
//
// KEYS: book hash, all-books set, removed set.
// ARGV: id, creator key prefix.
const removeScript = `
redis.call('SADD', KEYS[3], ARGV[1])
local prev = redis.call('HGET', KEYS[1], 'creator_id')
redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
if prev and prev ~= '' then redis.call('SREM', ARGV[2] .. prev, ARGV[1]) end
return 1
`

// redisClient is the subset of *redis.Client used by RedisIndex.
type redisClient interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisIndex stores each record as the hash bookshelf:book:{id}, with the
// sets bookshelf:books and bookshelf:creator:{id} for listing and
// bookshelf:removed for tombstones. Writes run as Lua scripts so concurrent
// propagators cannot interleave them.
type RedisIndex struct {
	client redisClient
}

func NewRedisIndex(client redisClient) *RedisIndex {
	return &RedisIndex{client: client}
}

// DialRedis connects to addr and checks the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*RedisIndex, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping error: %w", err)
	}
	return NewRedisIndex(client), nil
}

func (r *RedisIndex) Close() error {
	return r.client.Close()
}

func (r *RedisIndex) Upsert(ctx context.Context, rec models.IndexRecord) error {
	published := ""
	if rec.PublishedOn != nil {
		published = rec.PublishedOn.UTC().Format(dateLayout)
	}

	err := r.client.Eval(ctx, upsertScript,
		[]string{bookKey(rec.ID), allBooksKey, removedKey},
		rec.ID,
		rec.Title,
		rec.Author,
		published,
		rec.CreatorID,
		rec.CoverKey,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
		rec.UpdatedAt.UnixMicro(),
		creatorPrefix,
	).Err()
	if err != nil {
		return fmt.Errorf("redis upsert: %w", err)
	}
	return nil
}

func (r *RedisIndex) Remove(ctx context.Context, id string) error {
	err := r.client.Eval(ctx, removeScript,
		[]string{bookKey(id), allBooksKey, removedKey},
		id,
		creatorPrefix,
	).Err()
	if err != nil {
		return fmt.Errorf("redis remove: %w", err)
	}
	return nil
}

func (r *RedisIndex) Find(ctx context.Context, id string) (*models.IndexRecord, bool, error) {
	fields, err := r.client.HGetAll(ctx, bookKey(id)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	rec := &models.IndexRecord{
		ID:        fields["id"],
		Title:     fields["title"],
		Author:    fields["author"],
		CreatorID: fields["creator_id"],
		CoverKey:  fields["cover_key"],
	}
	if rec.ID == "" {
		rec.ID = id
	}
	if v := fields["published_on"]; v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, false, fmt.Errorf("bad published_on %q: %w", v, err)
		}
		rec.PublishedOn = &d
	}
	if v := fields["updated_at"]; v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, false, fmt.Errorf("bad updated_at %q: %w", v, err)
		}
		rec.UpdatedAt = ts.UTC()
	}
	return rec, true, nil
}

func (r *RedisIndex) IDs(ctx context.Context, creatorID string) ([]string, error) {
	key := allBooksKey
	if creatorID != "" {
		key = creatorKey(creatorID)
	}
	ids, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
