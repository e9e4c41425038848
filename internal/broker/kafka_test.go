package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestHandleWithRetry_RetriesSameMessage(t *testing.T) {
	var offsets []int64
	handler := func(ctx context.Context, msg kafka.Message) error {
		offsets = append(offsets, msg.Offset)
		if len(offsets) < 3 {
			return errors.New("redis timeout")
		}
		return nil
	}

	err := handleWithRetry(context.Background(), handler, kafka.Message{Offset: 42}, time.Millisecond)

	assert.NoError(t, err)
	assert.Equal(t, []int64{42, 42, 42}, offsets)
}

func TestHandleWithRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		return boom
	}

	err := handleWithRetry(context.Background(), handler, kafka.Message{}, time.Millisecond)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, maxHandleAttempts, calls)
}

func TestHandleWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(ctx context.Context, msg kafka.Message) error {
		calls++
		cancel()
		return errors.New("boom")
	}

	err := handleWithRetry(ctx, handler, kafka.Message{}, time.Hour)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
