// Package events announces committed meet batches on a Redis stream so
// downstream systems (rankings, records) can refresh without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/swimresults/internal/core"
)

// DefaultStream is the stream committed batches are added to.
const DefaultStream = "results.committed"

// Committed is the JSON payload of one stream entry.
type Committed struct {
	UploadID           string        `json:"upload_id"`
	FileName           string        `json:"file_name"`
	Source             string        `json:"source,omitempty"`
	Meet               core.MeetInfo `json:"meet"`
	MeetID             int64         `json:"meet_id"`
	Inserted           int           `json:"inserted"`
	Duplicates         int           `json:"duplicates"`
	CorrectionsApplied int           `json:"corrections_applied"`
	CommittedAt        time.Time     `json:"committed_at"`
}

// streamClient is the part of *redis.Client the publisher uses.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// RedisPublisher implements core.Publisher with XADD.
type RedisPublisher struct {
	client streamClient
	stream string
	maxLen int64
	now    func() time.Time
}

var _ core.Publisher = (*RedisPublisher)(nil)

// NewRedisPublisher connects to redisURL and verifies the connection.
// maxLen caps the stream approximately; 0 leaves it untrimmed.
func NewRedisPublisher(ctx context.Context, redisURL, stream string, maxLen int64) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newPublisher(client, stream, maxLen), nil
}

func newPublisher(client streamClient, stream string, maxLen int64) *RedisPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisPublisher{client: client, stream: stream, maxLen: maxLen, now: time.Now}
}

// PublishCommitted adds one entry describing a committed meet grouping.
func (p *RedisPublisher) PublishCommitted(ctx context.Context, uploadID, fileName string, batch core.BatchResult) error {
	msg := Committed{
		UploadID:           uploadID,
		FileName:           fileName,
		Source:             core.SourceFromContext(ctx),
		Meet:               batch.Meet,
		MeetID:             batch.MeetID,
		Inserted:           batch.Inserted,
		Duplicates:         batch.Duplicates,
		CorrectionsApplied: batch.CorrectionsApplied,
		CommittedAt:        p.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode committed event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"upload_id": uploadID,
			"meet_id":   batch.MeetID,
			"data":      string(data),
			"timestamp": msg.CommittedAt.Unix(),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (p *RedisPublisher) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
