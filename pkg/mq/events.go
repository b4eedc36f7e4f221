package mq

import "github.com/google/uuid"

// instanceId 本进程的唯一标识
// 本实例发的评论事件在审核通过时已直推过本地注册表，桥接消费时据此跳过
var instanceId = uuid.New().String()

// 交换机与队列常量
const (
	// 互动事件主交换机（topic）
	InteractionExchange = "interaction_exchange"
	// 死信交换机
	DeadLetterExchange = "dlx_exchange"

	// 下游消费者共享的互动事件队列
	InteractionEventQueue = "interaction_event_queue"
	// 死信队列
	DeadLetterQueue = "interaction_dead_letter_queue"

	// 路由键前缀，完整路由键形如 interaction.comment_added
	RoutingKeyPrefix = "interaction."

	// 分区键消息头，下游按此保证同目标事件的顺序消费
	PartitionKeyHeader = "x-partition-key"
	EventIdHeader      = "x-event-id"
	// 事件来源实例消息头
	OriginInstanceHeader = "x-origin-instance"
)
