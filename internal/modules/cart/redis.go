package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisRepo keeps each cart in a hash: cart:{userID} -> productID -> JSON line.
type redisRepo struct {
	client *redis.Client
}

func NewRedisRepository(client *redis.Client) Repository {
	return &redisRepo{client: client}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func (r *redisRepo) Lines(ctx context.Context, userID string) ([]Line, error) {
	raw, err := r.client.HGetAll(ctx, cacheKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	lines := make([]Line, 0, len(raw))
	for field, value := range raw {
		var l Line
		if err := json.Unmarshal([]byte(value), &l); err != nil {
			return nil, fmt.Errorf("failed to decode cart line %s: %w", field, err)
		}
		lines = append(lines, l)
	}
	sortLines(lines)
	return lines, nil
}

func (r *redisRepo) Put(ctx context.Context, userID string, line Line) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to encode cart line: %w", err)
	}
	if err := r.client.HSet(ctx, cacheKey(userID), line.ProductID.String(), data).Err(); err != nil {
		return fmt.Errorf("failed to write cart line: %w", err)
	}
	return nil
}

func (r *redisRepo) Remove(ctx context.Context, userID string, productIDs ...uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	fields := make([]string, len(productIDs))
	for i, id := range productIDs {
		fields[i] = id.String()
	}
	if err := r.client.HDel(ctx, cacheKey(userID), fields...).Err(); err != nil {
		return fmt.Errorf("failed to remove cart lines: %w", err)
	}
	return nil
}

func sortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].AddedAt != lines[j].AddedAt {
			return lines[i].AddedAt < lines[j].AddedAt
		}
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})
}
