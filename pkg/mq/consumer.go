package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"EngageHub.com/cmd/model"
	"EngageHub.com/pkg/constants"
	"EngageHub.com/pkg/fanout"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/rabbitmq/amqp091-go"
)

// EventConsumer 把broker上的评论事件桥接到本地fanout注册表
// 每个实例用独占的auto-delete队列各收一份，实现跨实例的实时广播
type EventConsumer struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	registry *fanout.Registry
	queue    string
}

func NewEventConsumer(rabbitmqURL string, registry *fanout.Registry) (*EventConsumer, error) {
	conn, err := amqp091.Dial(rabbitmqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	consumer := &EventConsumer{
		conn:     conn,
		channel:  ch,
		registry: registry,
	}

	if err := consumer.setupQueue(); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("failed to setup consumer queue: %w", err)
	}

	return consumer, nil
}

func (c *EventConsumer) setupQueue() error {
	err := c.channel.ExchangeDeclare(
		InteractionExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare interaction exchange: %w", err)
	}

	// 匿名独占队列，实例退出即删除
	q, err := c.channel.QueueDeclare(
		"",    // name, broker生成
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare fanout bridge queue: %w", err)
	}
	c.queue = q.Name

	// 只关心评论事件
	for _, key := range []string{
		RoutingKeyPrefix + "comment_added",
		RoutingKeyPrefix + "comment_updated",
		RoutingKeyPrefix + "comment_deleted",
	} {
		if err := c.channel.QueueBind(c.queue, key, InteractionExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind fanout bridge queue: %w", err)
		}
	}

	return nil
}

// Start 启动消费循环，ctx取消时退出
func (c *EventConsumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		true,  // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					hlog.Warn("fanout bridge delivery channel closed")
					return
				}
				c.handleDelivery(ctx, d)
			}
		}
	}()

	hlog.Infof("fanout bridge consumer started, queue=%s", c.queue)
	return nil
}

func (c *EventConsumer) handleDelivery(ctx context.Context, d amqp091.Delivery) {
	// 自己发的事件已直推过本地订阅者，再桥接会重复推送
	if origin, ok := d.Headers[OriginInstanceHeader].(string); ok && origin == instanceId {
		_ = d.Ack(false)
		return
	}

	var event model.InteractionEvent
	if err := json.Unmarshal(d.Body, &event); err != nil {
		hlog.CtxErrorf(ctx, "fanout bridge: bad event payload: %v", err)
		_ = d.Nack(false, false) // 进死信，不重回队列
		return
	}

	// 只有新增评论需要推给实时订阅者
	if event.EventType == constants.EventTypeCommentAdded && event.Payload != "" {
		var comment model.Comment
		if err := json.Unmarshal([]byte(event.Payload), &comment); err != nil {
			hlog.CtxErrorf(ctx, "fanout bridge: bad comment payload in event %s: %v", event.EventId, err)
			_ = d.Nack(false, false)
			return
		}
		c.registry.Publish(comment.TargetType, comment.TargetId, &comment)
	}

	_ = d.Ack(false)
}

func (c *EventConsumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
