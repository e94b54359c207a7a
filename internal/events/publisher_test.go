package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/swimresults/internal/core"
)

type fakeStream struct {
	added  []*redis.XAddArgs
	err    error
	closed bool
}

func (f *fakeStream) XAdd(_ context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.added = append(f.added, a)
	return redis.NewStringResult("1700000000000-0", f.err)
}

func (f *fakeStream) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", f.err)
}

func (f *fakeStream) Close() error {
	f.closed = true
	return nil
}

func TestPublishCommitted(t *testing.T) {
	fake := &fakeStream{}
	p := newPublisher(fake, "", 5000)
	fixed := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	ctx := core.ContextWithSource(context.Background(), "cli")
	batch := core.BatchResult{
		Meet:               core.MeetInfo{Name: "Malaysia Open", StartDate: "2024-06-01"},
		MeetID:             42,
		Inserted:           120,
		Duplicates:         4,
		CorrectionsApplied: 2,
	}
	require.NoError(t, p.PublishCommitted(ctx, "upload-1", "open.xlsx", batch))
	require.Len(t, fake.added, 1)

	args := fake.added[0]
	assert.Equal(t, DefaultStream, args.Stream)
	assert.Equal(t, int64(5000), args.MaxLen)
	assert.True(t, args.Approx)

	values, ok := args.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "upload-1", values["upload_id"])
	assert.Equal(t, int64(42), values["meet_id"])
	assert.Equal(t, fixed.Unix(), values["timestamp"])

	var msg Committed
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &msg))
	assert.Equal(t, "cli", msg.Source)
	assert.Equal(t, "open.xlsx", msg.FileName)
	assert.Equal(t, "Malaysia Open", msg.Meet.Name)
	assert.Equal(t, 120, msg.Inserted)
	assert.True(t, msg.CommittedAt.Equal(fixed))
}

func TestPublishCommitted_NoTrim(t *testing.T) {
	fake := &fakeStream{}
	p := newPublisher(fake, "custom.stream", 0)

	require.NoError(t, p.PublishCommitted(context.Background(), "u", "f.csv", core.BatchResult{}))
	assert.Equal(t, "custom.stream", fake.added[0].Stream)
	assert.Zero(t, fake.added[0].MaxLen)
	assert.False(t, fake.added[0].Approx)
}

func TestPublishCommitted_Error(t *testing.T) {
	fake := &fakeStream{err: errors.New("READONLY You can't write against a read only replica")}
	p := newPublisher(fake, "", 0)

	err := p.PublishCommitted(context.Background(), "u", "f.csv", core.BatchResult{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xadd results.committed")
	assert.Error(t, p.HealthCheck(context.Background()))

	require.NoError(t, p.Close())
	assert.True(t, fake.closed)
}

func TestNewRedisPublisher_BadURL(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "not-a-url", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}
