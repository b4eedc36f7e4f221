package service

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"EngageHub.com/cmd/model"
	"EngageHub.com/config"
	"EngageHub.com/pkg/constants"
	"EngageHub.com/pkg/mq"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/google/uuid"
)

// EventService 互动事件管道：先持久化，再异步投递
// 投递失败按 重试次数×基础间隔 线性退避，超过上限进入死信
// 任何失败都不会冒泡到触发事件的业务调用方
type EventService struct {
	store        EventStore
	broker       mq.MessageProducer
	maxRetry     int
	baseDelay    time.Duration
	partitionNum int
}

func NewEventService(store EventStore, broker mq.MessageProducer) *EventService {
	maxRetry := config.ConfigInfo.Event.MaxRetry
	if maxRetry <= 0 {
		maxRetry = constants.MaxRetryAttempts
	}
	baseDelay := time.Duration(config.ConfigInfo.Event.RetryBaseMs) * time.Millisecond
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	partitionNum := config.ConfigInfo.Event.PartitionNum
	if partitionNum <= 0 {
		partitionNum = 100
	}

	return &EventService{
		store:        store,
		broker:       broker,
		maxRetry:     maxRetry,
		baseDelay:    baseDelay,
		partitionNum: partitionNum,
	}
}

// Publish 接收事件进管道，返回值表示事件是否已持久化
func (s *EventService) Publish(ctx context.Context, event *model.InteractionEvent) bool {
	// 1. 补默认值
	if event.EventId == "" {
		event.EventId = uuid.New().String()
	}
	event.Status = constants.EventStatusCreated
	event.RetryCount = 0
	if event.Priority == "" {
		event.Priority = constants.EventPriorityNormal
	}
	if event.PartitionKey == "" {
		event.PartitionKey = s.partitionKey(event)
	}
	if event.TimeBucket == "" {
		event.TimeBucket = model.GenerateTimeBucket(time.Now())
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// 2. 先落库，落库失败就放弃投递
	if err := s.store.CreateEvent(ctx, event); err != nil {
		hlog.CtxErrorf(ctx, "failed to persist interaction event %s: %v", event.EventId, err)
		return false
	}

	// 3. 异步投递，用独立context避免被请求生命周期取消
	go func() {
		deliverCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.deliverWithRetry(deliverCtx, event)
	}()

	return true
}

// Redeliver 对落库但未送达的事件重新走投递流程，恢复用
func (s *EventService) Redeliver(ctx context.Context, event *model.InteractionEvent) {
	s.deliverWithRetry(ctx, event)
}

// deliverWithRetry 投递主循环
// 第k次重试前等待 k×baseDelay，重试满maxRetry次后进死信
func (s *EventService) deliverWithRetry(ctx context.Context, event *model.InteractionEvent) {
	if err := s.store.UpdateEventStatus(ctx, event.EventId, constants.EventStatusProcessing); err != nil {
		hlog.CtxWarnf(ctx, "failed to mark event %s processing: %v", event.EventId, err)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		err := s.broker.PublishInteractionEvent(ctx, event)
		if err == nil {
			result := fmt.Sprintf("delivered, retries=%d, partition=%s", attempt, event.PartitionKey)
			if err := s.store.MarkEventProcessed(ctx, event.EventId, result); err != nil {
				hlog.CtxWarnf(ctx, "failed to mark event %s processed: %v", event.EventId, err)
			}
			return
		}
		lastErr = err
		hlog.CtxWarnf(ctx, "event %s delivery attempt %d failed: %v", event.EventId, attempt+1, err)

		if attempt >= s.maxRetry {
			break
		}

		retryCount := attempt + 1
		event.RetryCount = retryCount
		if err := s.store.MarkEventRetrying(ctx, event.EventId, retryCount, lastErr.Error()); err != nil {
			hlog.CtxWarnf(ctx, "failed to mark event %s retrying: %v", event.EventId, err)
		}

		select {
		case <-time.After(time.Duration(retryCount) * s.baseDelay):
		case <-ctx.Done():
			// 投递窗口被截断，留给周期巡检补投
			if err := s.store.UpdateEventStatus(context.Background(), event.EventId, constants.EventStatusFailed); err != nil {
				hlog.Warnf("failed to mark event %s failed: %v", event.EventId, err)
			}
			return
		}
	}

	hlog.CtxErrorf(ctx, "event %s exhausted %d retries, moving to dead letter: %v",
		event.EventId, s.maxRetry, lastErr)
	if err := s.store.MarkEventDeadLetter(ctx, event.EventId, lastErr.Error()); err != nil {
		hlog.CtxErrorf(ctx, "failed to mark event %s dead letter: %v", event.EventId, err)
	}
}

// partitionKey 同一目标的事件落在同一分区，保证下游按序消费
func (s *EventService) partitionKey(event *model.InteractionEvent) string {
	if event.TargetType != "" {
		return fmt.Sprintf("%s:%d", event.TargetType, hashMod(event.TargetId, s.partitionNum))
	}
	return fmt.Sprintf("default:%d", hashMod(event.UserId, s.partitionNum))
}

func hashMod(id int64, mod int) int {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(id, 10)))
	return int(h.Sum32()) % mod
}
