package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGroupAndConsumerNaming(t *testing.T) {
	assert.Equal(t, "classifier_group_dev", GroupName("dev"))
	assert.Equal(t, "classifier_group_prd", GroupName("prd"))

	name := ConsumerName("dev")
	assert.Contains(t, name, "classifier_dev_")
	assert.NotEqual(t, name, ConsumerName("dev"), "consumer names are process-unique")
}

func TestParseQueuedMessage(t *testing.T) {
	groupTS := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	values := map[string]interface{}{
		"id":         "42",
		"message_id": "wamid.abc",
		"raw_text":   "looking for a dentist",
		"sender_id":  "7",
		"group_id":   "3",
		"timestamp":  groupTS.Format(time.RFC3339),
	}

	msg, err := parseQueuedMessage(values)
	require.NoError(t, err)
	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, "wamid.abc", msg.MessageID)
	assert.Equal(t, "looking for a dentist", msg.RawText)
	assert.Equal(t, int64(7), msg.SenderID)
	require.NotNil(t, msg.GroupID)
	assert.Equal(t, int64(3), *msg.GroupID)
	assert.True(t, groupTS.Equal(msg.Timestamp))
}

func TestParseQueuedMessageWithoutGroup(t *testing.T) {
	values := map[string]interface{}{
		"id":        "1",
		"raw_text":  "direct message text",
		"sender_id": "2",
	}

	msg, err := parseQueuedMessage(values)
	require.NoError(t, err)
	assert.Nil(t, msg.GroupID)
}

func TestParseQueuedMessageRejectsMalformedEntries(t *testing.T) {
	_, err := parseQueuedMessage(map[string]interface{}{"raw_text": "x", "sender_id": "2"})
	assert.Error(t, err, "missing id")

	_, err = parseQueuedMessage(map[string]interface{}{"id": "abc", "raw_text": "x", "sender_id": "2"})
	assert.Error(t, err, "non-numeric id")

	_, err = parseQueuedMessage(map[string]interface{}{"id": "1", "sender_id": "2"})
	assert.Error(t, err, "missing raw_text")

	_, err = parseQueuedMessage(map[string]interface{}{"id": "1", "raw_text": "x", "sender_id": "2", "timestamp": "not-a-time"})
	assert.Error(t, err, "bad timestamp")
}

func newMockedQueue(t *testing.T) (*StreamsQueue, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	t.Cleanup(func() { client.Close() })
	return &StreamsQueue{
		client:        client,
		stream:        DefaultStream,
		logger:        zap.NewNop(),
		claimMinIdle:  defaultClaimMinIdle,
		claimInterval: defaultClaimInterval,
		claimBatch:    defaultClaimBatch,
	}, mock
}

func pendingEntry(id string) redis.XMessage {
	return redis.XMessage{ID: id, Values: map[string]interface{}{
		"id":         "42",
		"message_id": "wamid.pending",
		"raw_text":   "looking for a dentist",
		"sender_id":  "7",
	}}
}

func TestClaimStaleRedeliversPendingEntries(t *testing.T) {
	q, mock := newMockedQueue(t)

	mock.ExpectXAutoClaim(&redis.XAutoClaimArgs{
		Stream:   DefaultStream,
		Group:    "classifier_group_dev",
		Consumer: "classifier_dev_abc",
		MinIdle:  defaultClaimMinIdle,
		Start:    "0-0",
		Count:    defaultClaimBatch,
	}).SetVal([]redis.XMessage{pendingEntry("1-0")}, "0-0")
	mock.ExpectXAck(DefaultStream, "classifier_group_dev", "1-0").SetVal(1)

	var handled []int64
	q.claimStale(context.Background(), "classifier_group_dev", "classifier_dev_abc",
		func(ctx context.Context, msg QueuedMessage) error {
			handled = append(handled, msg.ID)
			return nil
		})

	assert.Equal(t, []int64{42}, handled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimStaleLeavesFailedEntriesPending(t *testing.T) {
	q, mock := newMockedQueue(t)

	mock.ExpectXAutoClaim(&redis.XAutoClaimArgs{
		Stream:   DefaultStream,
		Group:    "classifier_group_dev",
		Consumer: "classifier_dev_abc",
		MinIdle:  defaultClaimMinIdle,
		Start:    "0-0",
		Count:    defaultClaimBatch,
	}).SetVal([]redis.XMessage{pendingEntry("1-0")}, "0-0")
	// No XAck expected: the handler error keeps the entry pending so a
	// later sweep tries again.

	q.claimStale(context.Background(), "classifier_group_dev", "classifier_dev_abc",
		func(ctx context.Context, msg QueuedMessage) error {
			return fmt.Errorf("still deferred")
		})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleEntryAcksOnlyOnSuccess(t *testing.T) {
	q, mock := newMockedQueue(t)
	mock.ExpectXAck(DefaultStream, "g", "3-0").SetVal(1)

	q.handleEntry(context.Background(), "g", pendingEntry("3-0"),
		func(ctx context.Context, msg QueuedMessage) error { return nil })
	assert.NoError(t, mock.ExpectationsWereMet())

	// A failing handler must not acknowledge.
	q.handleEntry(context.Background(), "g", pendingEntry("4-0"),
		func(ctx context.Context, msg QueuedMessage) error { return fmt.Errorf("boom") })
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleEntryAcksMalformedEntries(t *testing.T) {
	q, mock := newMockedQueue(t)
	mock.ExpectXAck(DefaultStream, "g", "5-0").SetVal(1)

	entry := redis.XMessage{ID: "5-0", Values: map[string]interface{}{"raw_text": "no id field"}}
	q.handleEntry(context.Background(), "g", entry,
		func(ctx context.Context, msg QueuedMessage) error {
			t.Fatal("handler must not run for malformed entries")
			return nil
		})
	assert.NoError(t, mock.ExpectationsWereMet())
}
