package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"huddle/api/internal/content"
	"huddle/api/internal/shortid"
)

// Directory is a read-through cache in front of another directory. Found
// records are cached for ttl; missing ids are not cached, so a task created
// after a miss resolves on the next parse. Redis failures fall through to
// the wrapped directory.
type Directory struct {
	next   content.Directory
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewDirectory(next content.Directory, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *Directory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Directory{next: next, client: client, ttl: ttl, logger: logger}
}

func (d *Directory) TasksByIDs(ctx context.Context, ids []string) ([]content.TaskRecord, error) {
	return readThrough(ctx, d, "task", ids, func(r content.TaskRecord) string { return r.ID }, d.next.TasksByIDs)
}

func (d *Directory) UsersByIDs(ctx context.Context, ids []string) ([]content.UserRecord, error) {
	return readThrough(ctx, d, "user", ids, func(r content.UserRecord) string { return r.ID }, d.next.UsersByIDs)
}

// TasksByPrefix caches prefix matches under the prefix itself. It finds
// nothing when the wrapped directory cannot look up prefixes.
func (d *Directory) TasksByPrefix(ctx context.Context, prefixes []string) ([]content.TaskRecord, error) {
	pd, ok := d.next.(content.PrefixDirectory)
	if !ok {
		return nil, nil
	}
	return readThrough(ctx, d, "taskprefix", prefixes, func(r content.TaskRecord) string { return shortid.Prefix(r.ID) }, pd.TasksByPrefix)
}

// Forget drops cached entries for a task. A newly created task can take over
// a short-id prefix, so callers forget it after every insert.
func (d *Directory) Forget(ctx context.Context, taskID string) {
	keys := []string{cacheKey("task", taskID)}
	if prefix := shortid.Prefix(taskID); prefix != "" {
		keys = append(keys, cacheKey("taskprefix", prefix))
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		d.logger.Warn().Err(err).Str("task_id", taskID).Msg("cache: forget task")
	}
}

func cacheKey(kind, id string) string {
	return keyPrefix + kind + ":" + strings.ToLower(id)
}

func readThrough[T any](
	ctx context.Context,
	d *Directory,
	kind string,
	ids []string,
	keyOf func(T) string,
	load func(context.Context, []string) ([]T, error),
) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = cacheKey(kind, id)
	}

	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		d.logger.Warn().Err(err).Str("kind", kind).Msg("cache: read failed, using directory")
		return load(ctx, ids)
	}

	out := make([]T, 0, len(ids))
	var missing []string
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		out = append(out, rec)
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := load(ctx, missing)
	if err != nil {
		return nil, err
	}

	pipe := d.client.Pipeline()
	for _, rec := range loaded {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		pipe.Set(ctx, cacheKey(kind, keyOf(rec)), data, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.Warn().Err(err).Str("kind", kind).Msg("cache: write failed")
	}
	return append(out, loaded...), nil
}
