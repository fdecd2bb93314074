package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"assessment-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultStream publishes finished results to a Redis stream for downstream consumers.
type ResultStream struct {
	client *redis.Client
	stream string
}

func NewResultStream(client *redis.Client, stream string) *ResultStream {
	if stream == "" {
		stream = "quiz:results"
	}
	return &ResultStream{client: client, stream: stream}
}

func (r *ResultStream) PersistResult(ctx context.Context, rec domain.ResultRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]any{
			"id":       rec.ID,
			"group_id": rec.Participant.GroupID,
			"grade":    strconv.Itoa(rec.Grade),
			"payload":  string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", r.stream, err)
	}
	return nil
}
