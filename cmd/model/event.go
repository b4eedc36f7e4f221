package model

import (
	"fmt"
	"time"
)

// InteractionEvent 互动事件表，先落库再投递
type InteractionEvent struct {
	EventId          string     `gorm:"primaryKey;size:36" json:"event_id"`
	EventType        string     `gorm:"not null;size:50;index" json:"event_type"` // LIKE_ADDED, LIKE_REMOVED, COMMENT_ADDED, COMMENT_UPDATED, COMMENT_DELETED
	UserId           int64      `gorm:"not null;index" json:"user_id"`
	TargetType       string     `gorm:"size:20" json:"target_type"`
	TargetId         int64      `gorm:"index" json:"target_id"`
	PartitionKey     string     `gorm:"not null;size:64;index" json:"partition_key"`
	TimeBucket       string     `gorm:"size:16;index" json:"time_bucket"` // YYYYMMDDHH
	Payload          string     `gorm:"type:text" json:"payload"`
	Priority         string     `gorm:"not null;size:10;default:'NORMAL'" json:"priority"`      // HIGH, NORMAL, LOW
	Status           string     `gorm:"not null;size:20;default:'CREATED';index" json:"status"` // CREATED, PROCESSING, PROCESSED, RETRYING, FAILED, DEAD_LETTER
	RetryCount       int        `gorm:"default:0" json:"retry_count"`
	FailureReason    string     `gorm:"type:text" json:"failure_reason"`
	ProcessingResult string     `gorm:"size:255" json:"processing_result"`
	ProcessedAt      *time.Time `json:"processed_at"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (InteractionEvent) TableName() string {
	return "interaction_events"
}

// GenerateTimeBucket 按小时分桶，便于按时间段归档和排查
func GenerateTimeBucket(t time.Time) string {
	return t.Format("2006010215")
}

// AutoMigrateInteractionTables 自动迁移所有互动相关表
func AutoMigrateInteractionTables(db interface{}) error {
	type Migrator interface {
		AutoMigrate(dst ...interface{}) error
	}

	migrator, ok := db.(Migrator)
	if !ok {
		return fmt.Errorf("database does not support auto migration")
	}

	return migrator.AutoMigrate(
		&Like{},
		&LikeCount{},
		&Comment{},
		&CommentCount{},
		&InteractionEvent{},
	)
}
