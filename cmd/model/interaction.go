package model

import "time"

// Like 点赞记录表，(UserId, TargetType, TargetId)唯一
type Like struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId     int64     `gorm:"not null;uniqueIndex:uk_user_target,priority:1" json:"user_id"`
	TargetType string    `gorm:"not null;size:20;uniqueIndex:uk_user_target,priority:2;index:idx_target,priority:1" json:"target_type"`
	TargetId   int64     `gorm:"not null;uniqueIndex:uk_user_target,priority:3;index:idx_target,priority:2" json:"target_id"`
	Status     string    `gorm:"not null;size:20;default:'ACTIVE'" json:"status"` // ACTIVE, CANCELLED
	DeviceType string    `gorm:"size:20" json:"device_type"`
	DeviceId   string    `gorm:"size:64" json:"device_id"`
	CreatedAt  time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Like) TableName() string {
	return "likes"
}

// LikeCount 点赞计数表，作为缓存计数的持久化兜底
type LikeCount struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetType string    `gorm:"not null;size:20;uniqueIndex:uk_target,priority:1" json:"target_type"`
	TargetId   int64     `gorm:"not null;uniqueIndex:uk_target,priority:2" json:"target_id"`
	Count      int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LikeCount) TableName() string {
	return "like_counts"
}

// Comment 评论表
// 树形结构约束：顶级评论 ParentId=0 RootId=0 Level=0；
// 回复的 Level = 父评论Level+1，RootId 指向顶级祖先
type Comment struct {
	CommentId        int64      `gorm:"primaryKey" json:"comment_id"`
	UserId           int64      `gorm:"not null;index" json:"user_id"`
	TargetType       string     `gorm:"not null;size:20;index:idx_target,priority:1" json:"target_type"`
	TargetId         int64      `gorm:"not null;index:idx_target,priority:2" json:"target_id"`
	ParentId         int64      `gorm:"not null;default:0;index" json:"parent_id"`
	RootId           int64      `gorm:"not null;default:0;index" json:"root_id"`
	Level            int32      `gorm:"not null;default:0" json:"level"`
	Content          string     `gorm:"not null;type:varchar(512)" json:"content"`
	Status           string     `gorm:"not null;size:20;default:'PENDING';index" json:"status"` // PENDING, APPROVED, REJECTED, DELETED
	LikeCount        int64      `gorm:"not null;default:0" json:"like_count"`
	ReplyCount       int64      `gorm:"not null;default:0" json:"reply_count"`
	ModerationScore  float64    `gorm:"default:0" json:"moderation_score"`
	ModerationLabels string     `gorm:"size:255" json:"moderation_labels"` // 逗号分隔
	CreatedAt        time.Time  `gorm:"not null;index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at"`

	// 展示用冗余字段，不落库
	UserName   string `gorm:"-" json:"user_name,omitempty"`
	UserAvatar string `gorm:"-" json:"user_avatar,omitempty"`
}

func (Comment) TableName() string {
	return "comments"
}

// CommentCount 评论计数表
type CommentCount struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetType string    `gorm:"not null;size:20;uniqueIndex:uk_target,priority:1" json:"target_type"`
	TargetId   int64     `gorm:"not null;uniqueIndex:uk_target,priority:2" json:"target_id"`
	Count      int64     `gorm:"not null;default:0" json:"count"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (CommentCount) TableName() string {
	return "comment_counts"
}
