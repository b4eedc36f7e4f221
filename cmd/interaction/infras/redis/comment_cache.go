package redis

import (
	"context"
	"fmt"
	"time"

	"EngageHub.com/pkg/constants"
	"EngageHub.com/pkg/utils"
	"github.com/go-redis/redis"
)

// CommentCacheManager 评论频控和去重
type CommentCacheManager struct {
	client redis.Cmdable
}

func NewCommentCacheManager(client redis.Cmdable) *CommentCacheManager {
	return &CommentCacheManager{client: client}
}

// CheckRateLimit 滑动窗口内的发评计数，超限返回false
func (ccm *CommentCacheManager) CheckRateLimit(ctx context.Context, userId int64, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := fmt.Sprintf(constants.CommentLimitKey, userId)

	count, err := ccm.client.Incr(key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to incr comment rate limit: %w", err)
	}
	if count == 1 {
		ccm.client.Expire(key, time.Minute)
	}
	return count <= int64(limit), nil
}

// CheckDuplicate 窗口期内同一用户发布相同内容视为重复
func (ccm *CommentCacheManager) CheckDuplicate(ctx context.Context, userId int64, content string, window time.Duration) (bool, error) {
	if window <= 0 {
		return false, nil
	}
	key := fmt.Sprintf(constants.CommentDedupKey, userId) + ":" + utils.MD5(content)

	ok, err := ccm.client.SetNX(key, 1, window).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check comment duplicate: %w", err)
	}
	return !ok, nil
}
