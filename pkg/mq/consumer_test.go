package mq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"EngageHub.com/cmd/model"
	"EngageHub.com/pkg/constants"
	"EngageHub.com/pkg/fanout"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deliveryFor(t *testing.T, event *model.InteractionEvent) amqp091.Delivery {
	t.Helper()
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return amqp091.Delivery{Body: body}
}

func TestHandleDelivery(t *testing.T) {
	registry := fanout.NewRegistry()
	consumer := &EventConsumer{registry: registry}
	ctx := context.Background()

	sub := registry.Subscribe(constants.TargetTypeMoment, 100)
	defer sub.Cancel()

	t.Run("comment added is bridged to local subscribers", func(t *testing.T) {
		payload, err := json.Marshal(&model.Comment{
			CommentId:  7,
			TargetType: constants.TargetTypeMoment,
			TargetId:   100,
			Content:    "from another instance",
		})
		require.NoError(t, err)

		consumer.handleDelivery(ctx, deliveryFor(t, &model.InteractionEvent{
			EventId:   "evt-1",
			EventType: constants.EventTypeCommentAdded,
			Payload:   string(payload),
		}))

		select {
		case comment := <-sub.C:
			assert.Equal(t, int64(7), comment.CommentId)
			assert.Equal(t, "from another instance", comment.Content)
		case <-time.After(2 * time.Second):
			t.Fatal("bridged comment never arrived")
		}
	})

	t.Run("self-originated events are not replayed locally", func(t *testing.T) {
		payload, err := json.Marshal(&model.Comment{
			CommentId:  8,
			TargetType: constants.TargetTypeMoment,
			TargetId:   100,
		})
		require.NoError(t, err)

		d := deliveryFor(t, &model.InteractionEvent{
			EventId:   "evt-self",
			EventType: constants.EventTypeCommentAdded,
			Payload:   string(payload),
		})
		d.Headers = amqp091.Table{OriginInstanceHeader: instanceId}
		consumer.handleDelivery(ctx, d)

		select {
		case comment := <-sub.C:
			t.Fatalf("own event must not be bridged back, got comment %d", comment.CommentId)
		case <-time.After(50 * time.Millisecond):
		}

		// 别的实例发的同类事件正常桥接
		d = deliveryFor(t, &model.InteractionEvent{
			EventId:   "evt-remote",
			EventType: constants.EventTypeCommentAdded,
			Payload:   string(payload),
		})
		d.Headers = amqp091.Table{OriginInstanceHeader: "another-instance"}
		consumer.handleDelivery(ctx, d)

		select {
		case comment := <-sub.C:
			assert.Equal(t, int64(8), comment.CommentId)
		case <-time.After(2 * time.Second):
			t.Fatal("remote comment never arrived")
		}
	})

	t.Run("non-comment events are ignored", func(t *testing.T) {
		consumer.handleDelivery(ctx, deliveryFor(t, &model.InteractionEvent{
			EventId:   "evt-2",
			EventType: constants.EventTypeLikeAdded,
			Payload:   `{"user_id":1}`,
		}))

		select {
		case comment := <-sub.C:
			t.Fatalf("unexpected fanout for like event, got comment %d", comment.CommentId)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("malformed event body does not panic", func(t *testing.T) {
		consumer.handleDelivery(ctx, amqp091.Delivery{Body: []byte("not json")})
	})

	t.Run("malformed comment payload is dropped", func(t *testing.T) {
		consumer.handleDelivery(ctx, deliveryFor(t, &model.InteractionEvent{
			EventId:   "evt-3",
			EventType: constants.EventTypeCommentAdded,
			Payload:   "{broken",
		}))

		select {
		case comment := <-sub.C:
			t.Fatalf("unexpected fanout for broken payload, got comment %d", comment.CommentId)
		case <-time.After(50 * time.Millisecond):
		}
	})
}
