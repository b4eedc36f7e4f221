package db

import (
	"context"
	"time"

	"EngageHub.com/cmd/model"
	"EngageHub.com/pkg/constants"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func CreateComment(ctx context.Context, comment *model.Comment) error {
	return DB.WithContext(ctx).Create(comment).Error
}

// GetCommentInfo 获取某一条评论的全部信息，不存在时返回nil
func GetCommentInfo(ctx context.Context, commentId int64) (*model.Comment, error) {
	comment := &model.Comment{}
	err := DB.WithContext(ctx).Where("comment_id = ?", commentId).First(comment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return comment, nil
}

// UpdateCommentContent 更新评论内容和审核结果
func UpdateCommentContent(ctx context.Context, commentId int64, content, status string, score float64, labels string) error {
	return DB.WithContext(ctx).Model(&model.Comment{}).
		Where("comment_id = ?", commentId).
		Updates(map[string]interface{}{
			"content":           content,
			"status":            status,
			"moderation_score":  score,
			"moderation_labels": labels,
		}).Error
}

func UpdateCommentStatus(ctx context.Context, commentId int64, status string) error {
	return DB.WithContext(ctx).Model(&model.Comment{}).
		Where("comment_id = ?", commentId).
		Update("status", status).Error
}

// SoftDeleteComment 软删除，DELETED为终态
func SoftDeleteComment(ctx context.Context, commentId int64) error {
	now := time.Now()
	return DB.WithContext(ctx).Model(&model.Comment{}).
		Where("comment_id = ?", commentId).
		Updates(map[string]interface{}{
			"status":     constants.CommentStatusDeleted,
			"deleted_at": &now,
		}).Error
}

// ListTopComments 目标下可见的顶级评论分页
// sort为hot时按点赞数预排，服务层再按热度权重精排
func ListTopComments(ctx context.Context, targetType string, targetId, pageNum, pageSize int64, sort string) ([]*model.Comment, error) {
	order := "created_at DESC"
	switch sort {
	case constants.SortByOldest:
		order = "created_at ASC"
	case constants.SortByHot:
		order = "like_count DESC, created_at DESC"
	}

	comments := make([]*model.Comment, 0)
	err := DB.WithContext(ctx).Model(&model.Comment{}).
		Where("target_type = ? AND target_id = ? AND parent_id = 0 AND status = ?",
			targetType, targetId, constants.CommentStatusApproved).
		Order(order).
		Limit(int(pageSize)).
		Offset(int((pageNum - 1) * pageSize)).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func CountTopComments(ctx context.Context, targetType string, targetId int64) (int64, error) {
	var count int64
	err := DB.WithContext(ctx).Model(&model.Comment{}).
		Where("target_type = ? AND target_id = ? AND parent_id = 0 AND status = ?",
			targetType, targetId, constants.CommentStatusApproved).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListReplies 某条评论下可见的回复分页，按时间正序
func ListReplies(ctx context.Context, parentId, pageNum, pageSize int64) ([]*model.Comment, error) {
	comments := make([]*model.Comment, 0)
	err := DB.WithContext(ctx).Model(&model.Comment{}).
		Where("parent_id = ? AND status = ?", parentId, constants.CommentStatusApproved).
		Order("created_at ASC").
		Limit(int(pageSize)).
		Offset(int((pageNum - 1) * pageSize)).
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func CountReplies(ctx context.Context, parentId int64) (int64, error) {
	var count int64
	err := DB.WithContext(ctx).Model(&model.Comment{}).
		Where("parent_id = ? AND status = ?", parentId, constants.CommentStatusApproved).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ListCommentsByTimeRange 目标+时间范围扫描，供对账和归档用
func ListCommentsByTimeRange(ctx context.Context, targetType string, targetId int64, start, end time.Time) ([]*model.Comment, error) {
	comments := make([]*model.Comment, 0)
	err := DB.WithContext(ctx).Model(&model.Comment{}).
		Where("target_type = ? AND target_id = ? AND created_at BETWEEN ? AND ?",
			targetType, targetId, start, end).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// IncrCommentLikeCount 原子调整评论自身的点赞数
func IncrCommentLikeCount(ctx context.Context, commentId, delta int64) error {
	return DB.WithContext(ctx).Model(&model.Comment{}).
		Where("comment_id = ?", commentId).
		Update("like_count", gorm.Expr("GREATEST(like_count + ?, 0)", delta)).Error
}

// IncrReplyCount 原子调整父评论的回复数
func IncrReplyCount(ctx context.Context, parentId, delta int64) error {
	return DB.WithContext(ctx).Model(&model.Comment{}).
		Where("comment_id = ?", parentId).
		Update("reply_count", gorm.Expr("GREATEST(reply_count + ?, 0)", delta)).Error
}

// CountVisibleComments 重算目标的可见评论数，恢复流程的权威来源
func CountVisibleComments(ctx context.Context, targetType string, targetId int64) (int64, error) {
	var count int64
	err := DB.WithContext(ctx).Model(&model.Comment{}).
		Where("target_type = ? AND target_id = ? AND status = ?",
			targetType, targetId, constants.CommentStatusApproved).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IncrCommentCount 原子调整目标的评论计数表
func IncrCommentCount(ctx context.Context, targetType string, targetId, delta int64) error {
	return DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("GREATEST(count + ?, 0)", delta)}),
	}).Create(&model.CommentCount{
		TargetType: targetType,
		TargetId:   targetId,
		Count:      maxInt64(delta, 0),
	}).Error
}

// GetCommentCount 读取评论计数表，行不存在返回0
func GetCommentCount(ctx context.Context, targetType string, targetId int64) (int64, error) {
	row := &model.CommentCount{}
	err := DB.WithContext(ctx).
		Where("target_type = ? AND target_id = ?", targetType, targetId).
		First(row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, nil
		}
		return 0, err
	}
	return row.Count, nil
}
