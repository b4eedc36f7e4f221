package mq

import (
	"context"

	"EngageHub.com/cmd/model"
)

// MessageProducer 消息生产者接口
type MessageProducer interface {
	PublishInteractionEvent(ctx context.Context, event *model.InteractionEvent) error
}

// 确保Producer实现MessageProducer接口
var _ MessageProducer = (*Producer)(nil)
