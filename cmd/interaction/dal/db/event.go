package db

import (
	"context"
	"time"

	"EngageHub.com/cmd/model"
	"EngageHub.com/pkg/constants"
	"gorm.io/gorm"
)

// CreateEvent 事件先落库，投递之前必须持久化
func CreateEvent(ctx context.Context, event *model.InteractionEvent) error {
	return DB.WithContext(ctx).Create(event).Error
}

func GetEvent(ctx context.Context, eventId string) (*model.InteractionEvent, error) {
	event := &model.InteractionEvent{}
	err := DB.WithContext(ctx).Where("event_id = ?", eventId).First(event).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return event, nil
}

func UpdateEventStatus(ctx context.Context, eventId, status string) error {
	return DB.WithContext(ctx).Model(&model.InteractionEvent{}).
		Where("event_id = ?", eventId).
		Update("status", status).Error
}

// MarkEventProcessed 投递成功，记录处理结果摘要
func MarkEventProcessed(ctx context.Context, eventId, result string) error {
	now := time.Now()
	return DB.WithContext(ctx).Model(&model.InteractionEvent{}).
		Where("event_id = ?", eventId).
		Updates(map[string]interface{}{
			"status":            constants.EventStatusProcessed,
			"processing_result": result,
			"processed_at":      &now,
		}).Error
}

// MarkEventRetrying 投递失败，记录重试次数和失败原因
func MarkEventRetrying(ctx context.Context, eventId string, retryCount int, reason string) error {
	return DB.WithContext(ctx).Model(&model.InteractionEvent{}).
		Where("event_id = ?", eventId).
		Updates(map[string]interface{}{
			"status":         constants.EventStatusRetrying,
			"retry_count":    retryCount,
			"failure_reason": reason,
		}).Error
}

// MarkEventDeadLetter 重试耗尽进入死信，终态
func MarkEventDeadLetter(ctx context.Context, eventId, reason string) error {
	return DB.WithContext(ctx).Model(&model.InteractionEvent{}).
		Where("event_id = ?", eventId).
		Updates(map[string]interface{}{
			"status":         constants.EventStatusDeadLetter,
			"failure_reason": reason,
		}).Error
}

// ListEventsByStatus 按状态捞事件，供启动恢复和周期巡检用
func ListEventsByStatus(ctx context.Context, status string, limit int) ([]*model.InteractionEvent, error) {
	events := make([]*model.InteractionEvent, 0)
	err := DB.WithContext(ctx).Model(&model.InteractionEvent{}).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// ListStuckEvents 卡在中间态超过阈值的事件，视为投递中断需要补投
func ListStuckEvents(ctx context.Context, before time.Time, limit int) ([]*model.InteractionEvent, error) {
	events := make([]*model.InteractionEvent, 0)
	err := DB.WithContext(ctx).Model(&model.InteractionEvent{}).
		Where("status IN ? AND updated_at < ?",
			[]string{constants.EventStatusCreated, constants.EventStatusProcessing, constants.EventStatusRetrying}, before).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}
