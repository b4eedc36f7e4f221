package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"EngageHub.com/cmd/model"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/rabbitmq/amqp091-go"
)

type Producer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel

	publishTimeout time.Duration
}

func NewProducer(rabbitmqURL string) (*Producer, error) {
	conn, err := amqp091.Dial(rabbitmqURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	producer := &Producer{
		conn:           conn,
		channel:        ch,
		publishTimeout: 30 * time.Second,
	}

	// 声明exchanges和queues
	if err := producer.setupTopology(); err != nil {
		producer.Close()
		return nil, fmt.Errorf("failed to setup topology: %w", err)
	}

	return producer, nil
}

func (p *Producer) setupTopology() error {
	// 声明主交换机
	err := p.channel.ExchangeDeclare(
		InteractionExchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare interaction exchange: %w", err)
	}

	// 声明死信交换机
	err = p.channel.ExchangeDeclare(
		DeadLetterExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare dead letter exchange: %w", err)
	}

	// 声明主队列，消费失败的消息进入死信交换机
	_, err = p.channel.QueueDeclare(
		InteractionEventQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp091.Table{
			"x-message-ttl":             int32(24 * 60 * 60 * 1000), // 24小时TTL
			"x-dead-letter-exchange":    DeadLetterExchange,
			"x-dead-letter-routing-key": "dlx." + InteractionEventQueue,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to declare interaction event queue: %w", err)
	}

	err = p.channel.QueueBind(
		InteractionEventQueue,
		RoutingKeyPrefix+"*",
		InteractionExchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind interaction event queue: %w", err)
	}

	// 声明死信队列
	_, err = p.channel.QueueDeclare(
		DeadLetterQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare dead letter queue: %w", err)
	}

	err = p.channel.QueueBind(
		DeadLetterQueue,
		"dlx."+InteractionEventQueue,
		DeadLetterExchange,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind dead letter queue: %w", err)
	}

	return nil
}

// PublishInteractionEvent 发布互动事件，分区键放在消息头供下游做顺序消费
func (p *Producer) PublishInteractionEvent(ctx context.Context, event *model.InteractionEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction event: %w", err)
	}

	routingKey := RoutingKeyPrefix + strings.ToLower(event.EventType)

	publishCtx, cancel := context.WithTimeout(ctx, p.publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		publishCtx,
		InteractionExchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			MessageId:    event.EventId,
			Headers: amqp091.Table{
				PartitionKeyHeader:   event.PartitionKey,
				EventIdHeader:        event.EventId,
				OriginInstanceHeader: instanceId,
			},
			Body: body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish interaction event: %w", err)
	}

	hlog.CtxInfof(ctx, "Published interaction event: type=%s, id=%s, partition=%s",
		event.EventType, event.EventId, event.PartitionKey)
	return nil
}

func (p *Producer) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
