package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wirejam/wirejam/internal/models"
)

// RedisShapeRepo stores each room as a hash of shape id -> JSON shape. Every write refreshes the
// room TTL so abandoned rooms expire on their own.
type RedisShapeRepo struct {
	rdb    *redis.Client
	ttlSec int
}

func NewRedisShapeRepo(rdb *redis.Client, ttlSec int) *RedisShapeRepo {
	return &RedisShapeRepo{rdb: rdb, ttlSec: ttlSec}
}

func shapesKey(roomId string) string {
	return fmt.Sprintf("rooms:%s:shapes", roomId)
}

func sec(v int) time.Duration {
	return time.Duration(v) * time.Second
}

// replaceScript writes the field only when it already exists.
const replaceScript = `
	local shapes_key = KEYS[1]
	local shape_id = ARGV[1]
	local body = ARGV[2]
	local ttl = tonumber(ARGV[3])

	if redis.call('HEXISTS', shapes_key, shape_id) == 0 then
		return 0
	end
	redis.call('HSET', shapes_key, shape_id, body)
	if ttl > 0 then
		redis.call('EXPIRE', shapes_key, ttl)
	end
	return 1
`

func (rr *RedisShapeRepo) Upsert(ctx context.Context, roomId string, s models.Shape) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := rr.rdb.TxPipeline()
	pipe.HSet(ctx, shapesKey(roomId), s.ID, b)
	if rr.ttlSec > 0 {
		pipe.Expire(ctx, shapesKey(roomId), sec(rr.ttlSec))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (rr *RedisShapeRepo) Replace(ctx context.Context, roomId string, s models.Shape) (bool, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return false, err
	}
	n, err := rr.rdb.Eval(ctx, replaceScript, []string{shapesKey(roomId)}, s.ID, string(b), rr.ttlSec).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (rr *RedisShapeRepo) Remove(ctx context.Context, roomId, shapeId string) error {
	return rr.rdb.HDel(ctx, shapesKey(roomId), shapeId).Err()
}

func (rr *RedisShapeRepo) Clear(ctx context.Context, roomId string) error {
	return rr.rdb.Del(ctx, shapesKey(roomId)).Err()
}

func (rr *RedisShapeRepo) ReplaceAll(ctx context.Context, roomId string, shapes []models.Shape) error {
	fields := make([]any, 0, 2*len(shapes))
	for _, s := range shapes {
		b, err := json.Marshal(s)
		if err != nil {
			return err
		}
		fields = append(fields, s.ID, b)
	}
	pipe := rr.rdb.TxPipeline()
	pipe.Del(ctx, shapesKey(roomId))
	if len(fields) > 0 {
		pipe.HSet(ctx, shapesKey(roomId), fields...)
		if rr.ttlSec > 0 {
			pipe.Expire(ctx, shapesKey(roomId), sec(rr.ttlSec))
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (rr *RedisShapeRepo) Snapshot(ctx context.Context, roomId string) ([]models.Shape, error) {
	vals, err := rr.rdb.HGetAll(ctx, shapesKey(roomId)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.Shape, 0, len(vals))
	for id, v := range vals {
		var s models.Shape
		if err := json.Unmarshal([]byte(v), &s); err != nil {
			log.Printf("skipping corrupt shape: roomId=%s, shapeId=%s, error=%v", roomId, id, err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (rr *RedisShapeRepo) Count(ctx context.Context, roomId string) (int, error) {
	n, err := rr.rdb.HLen(ctx, shapesKey(roomId)).Result()
	return int(n), err
}

// Touch extends the room TTL without writing.
func (rr *RedisShapeRepo) Touch(ctx context.Context, roomId string) error {
	if rr.ttlSec <= 0 {
		return nil
	}
	return rr.rdb.Expire(ctx, shapesKey(roomId), sec(rr.ttlSec)).Err()
}
