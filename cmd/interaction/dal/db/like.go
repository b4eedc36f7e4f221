package db

import (
	"context"

	"EngageHub.com/cmd/model"
	"EngageHub.com/pkg/constants"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertLike 写入或更新点赞记录，靠(user,target_type,target_id)唯一键幂等
func UpsertLike(ctx context.Context, like *model.Like) error {
	return DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "target_type"}, {Name: "target_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"status", "device_type", "device_id", "updated_at"}),
	}).Create(like).Error
}

// GetLike 点查单条点赞记录，不存在时返回nil
func GetLike(ctx context.Context, userId int64, targetType string, targetId int64) (*model.Like, error) {
	like := &model.Like{}
	err := DB.WithContext(ctx).
		Where("user_id = ? AND target_type = ? AND target_id = ?", userId, targetType, targetId).
		First(like).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return like, nil
}

// CountActiveLikes 重算目标的有效点赞数，恢复流程的权威来源
func CountActiveLikes(ctx context.Context, targetType string, targetId int64) (int64, error) {
	var count int64
	err := DB.WithContext(ctx).Model(&model.Like{}).
		Where("target_type = ? AND target_id = ? AND status = ?", targetType, targetId, constants.LikeStatusActive).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GetActiveLikerIds 目标的全部有效点赞者，按用户ID升序
func GetActiveLikerIds(ctx context.Context, targetType string, targetId int64) ([]int64, error) {
	userIds := make([]int64, 0)
	err := DB.WithContext(ctx).Model(&model.Like{}).
		Where("target_type = ? AND target_id = ? AND status = ?", targetType, targetId, constants.LikeStatusActive).
		Order("user_id ASC").
		Pluck("user_id", &userIds).Error
	if err != nil {
		return nil, err
	}
	return userIds, nil
}

// GetActiveLikerIdsByPage 点赞者分页，按用户ID升序保证翻页稳定
func GetActiveLikerIdsByPage(ctx context.Context, targetType string, targetId, pageNum, pageSize int64) ([]int64, error) {
	userIds := make([]int64, 0)
	err := DB.WithContext(ctx).Model(&model.Like{}).
		Where("target_type = ? AND target_id = ? AND status = ?", targetType, targetId, constants.LikeStatusActive).
		Order("user_id ASC").
		Limit(int(pageSize)).
		Offset(int((pageNum - 1) * pageSize)).
		Pluck("user_id", &userIds).Error
	if err != nil {
		return nil, err
	}
	return userIds, nil
}

// GetActiveLikesByUser 用户的全部有效点赞，用于重建用户维度缓存
func GetActiveLikesByUser(ctx context.Context, userId int64) ([]*model.Like, error) {
	likes := make([]*model.Like, 0)
	err := DB.WithContext(ctx).Model(&model.Like{}).
		Where("user_id = ? AND status = ?", userId, constants.LikeStatusActive).
		Find(&likes).Error
	if err != nil {
		return nil, err
	}
	return likes, nil
}

// IncrLikeCount 原子调整计数表，行不存在时先插入
func IncrLikeCount(ctx context.Context, targetType string, targetId, delta int64) error {
	return DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("GREATEST(count + ?, 0)", delta)}),
	}).Create(&model.LikeCount{
		TargetType: targetType,
		TargetId:   targetId,
		Count:      maxInt64(delta, 0),
	}).Error
}

// SetLikeCount 以权威值覆盖计数表
func SetLikeCount(ctx context.Context, targetType string, targetId, count int64) error {
	return DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "target_type"}, {Name: "target_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"count": count}),
	}).Create(&model.LikeCount{
		TargetType: targetType,
		TargetId:   targetId,
		Count:      count,
	}).Error
}

// GetLikeCount 读取计数表，行不存在返回0
func GetLikeCount(ctx context.Context, targetType string, targetId int64) (int64, error) {
	row := &model.LikeCount{}
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

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
