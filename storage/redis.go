// Package storage persists analytics rows in Redis streams.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/huykn/assessment-cache/types"
)

// rowField is the stream entry field holding the serialized row.
const rowField = "row"

// RedisRowStore appends analytics rows to one Redis stream per table.
type RedisRowStore struct {
	client     *redis.Client
	serializer Serializer
	maxLen     int64
}

// NewRedisRowStore creates a Redis-backed row store.
func NewRedisRowStore(addr, password string, db int) (*RedisRowStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedisRowStoreFromClient(client), nil
}

// NewRedisRowStoreFromClient wraps an existing client. Rows are stored as
// JSON.
func NewRedisRowStoreFromClient(client *redis.Client) *RedisRowStore {
	return &RedisRowStore{
		client:     client,
		serializer: NewJSONSerializer(),
	}
}

// WithSerializer replaces the row encoding.
func (rs *RedisRowStore) WithSerializer(s Serializer) *RedisRowStore {
	rs.serializer = s
	return rs
}

// WithMaxLen caps every stream at roughly n entries. Zero means unbounded.
func (rs *RedisRowStore) WithMaxLen(n int64) *RedisRowStore {
	rs.maxLen = n
	return rs
}

// StreamName returns the stream key for table.
func StreamName(table types.TableRef) string {
	return "rows:" + table.String()
}

// InsertRows appends rows to the table stream in a single pipeline.
func (rs *RedisRowStore) InsertRows(ctx context.Context, table types.TableRef, rows []types.Row) error {
	if len(rows) == 0 {
		return nil
	}

	stream := StreamName(table)
	pipe := rs.client.Pipeline()
	for _, row := range rows {
		data, err := rs.serializer.Marshal(row)
		if err != nil {
			return fmt.Errorf("storage: marshal row: %w", err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: stream,
			MaxLen: rs.maxLen,
			Approx: rs.maxLen > 0,
			Values: map[string]any{rowField: data},
		})
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: insert rows into %s: %w", stream, err)
	}
	return nil
}

// Rows returns up to count of the oldest rows stored for table.
func (rs *RedisRowStore) Rows(ctx context.Context, table types.TableRef, count int64) ([]types.Row, error) {
	entries, err := rs.client.XRangeN(ctx, StreamName(table), "-", "+", count).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: read rows: %w", err)
	}

	rows := make([]types.Row, 0, len(entries))
	for _, entry := range entries {
		raw, ok := entry.Values[rowField].(string)
		if !ok {
			continue
		}
		var row types.Row
		if err := rs.serializer.Unmarshal([]byte(raw), &row); err != nil {
			return nil, fmt.Errorf("storage: decode row %s: %w", entry.ID, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Clear removes the stream for table.
func (rs *RedisRowStore) Clear(ctx context.Context, table types.TableRef) error {
	return rs.client.Del(ctx, StreamName(table)).Err()
}

// Close closes the Redis connection.
func (rs *RedisRowStore) Close() error {
	return rs.client.Close()
}

// GetClient returns the underlying Redis client.
func (rs *RedisRowStore) GetClient() *redis.Client {
	return rs.client
}
