package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis keeps batch status and reports in Redis hashes with a TTL, so
// restarts and multiple instances see the same progress.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(redisURL string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: c, ttl: ttl}, nil
}

func (s *Redis) statusKey(id string) string { return fmt.Sprintf("batch:%s:status", id) }
func (s *Redis) reportKey(id string) string { return fmt.Sprintf("batch:%s:report", id) }

func (s *Redis) SetStatus(ctx context.Context, batchID string, st Status) error {
	m := map[string]interface{}{
		"state":   st.State,
		"done":    st.Done,
		"total":   st.Total,
		"message": st.Message,
	}
	if st.Start != nil {
		m["start"] = st.Start.Format(time.RFC3339Nano)
	}
	if st.End != nil {
		m["end"] = st.End.Format(time.RFC3339Nano)
	}
	key := s.statusKey(batchID)
	if err := s.client.HSet(ctx, key, m).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *Redis) GetStatus(ctx context.Context, batchID string) (Status, error) {
	res, err := s.client.HGetAll(ctx, s.statusKey(batchID)).Result()
	if err != nil {
		return Status{}, err
	}
	if len(res) == 0 {
		return Status{}, ErrNotFound
	}
	st := Status{State: res["state"], Message: res["message"]}
	fmt.Sscan(res["done"], &st.Done)
	fmt.Sscan(res["total"], &st.Total)
	if v := res["start"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.Start = &t
		}
	}
	if v := res["end"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.End = &t
		}
	}
	return st, nil
}

func (s *Redis) SetReport(ctx context.Context, batchID string, report []byte) error {
	if !json.Valid(report) {
		return fmt.Errorf("report for batch %s is not valid JSON", batchID)
	}
	return s.client.Set(ctx, s.reportKey(batchID), report, s.ttl).Err()
}

func (s *Redis) GetReport(ctx context.Context, batchID string) ([]byte, error) {
	b, err := s.client.Get(ctx, s.reportKey(batchID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	return b, err
}

// Ping checks connectivity, for health endpoints.
func (s *Redis) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *Redis) Close() error { return s.client.Close() }
