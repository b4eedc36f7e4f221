package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"EngageHub.com/pkg/constants"
	"github.com/go-redis/redis"
)

// toggleLikeScript 点赞切换脚本，判断+写入+计数在Redis侧一次完成
// KEYS[1] 用户点赞集合 like:user:{uid}
// KEYS[2] 目标点赞者集合 like:target:{T}:{id}
// KEYS[3] 计数 like:count:{T}:{id}
// ARGV[1] 集合成员 {T}:{id}
// ARGV[2] 用户ID
// ARGV[3] 过期秒数
// 返回 {1|0, 新计数}，1表示本次为点赞，0表示取消
const toggleLikeScript = `
if redis.call('SISMEMBER', KEYS[1], ARGV[1]) == 1 then
	redis.call('SREM', KEYS[1], ARGV[1])
	redis.call('SREM', KEYS[2], ARGV[2])
	local count = redis.call('DECR', KEYS[3])
	if count < 0 then
		redis.call('SET', KEYS[3], 0)
		count = 0
	end
	redis.call('EXPIRE', KEYS[1], ARGV[3])
	redis.call('EXPIRE', KEYS[2], ARGV[3])
	redis.call('EXPIRE', KEYS[3], ARGV[3])
	return {0, count}
else
	redis.call('SADD', KEYS[1], ARGV[1])
	redis.call('SADD', KEYS[2], ARGV[2])
	local count = redis.call('INCR', KEYS[3])
	redis.call('EXPIRE', KEYS[1], ARGV[3])
	redis.call('EXPIRE', KEYS[2], ARGV[3])
	redis.call('EXPIRE', KEYS[3], ARGV[3])
	return {1, count}
end
`

// LikeCacheManager 点赞缓存管理器
type LikeCacheManager struct {
	client     redis.Cmdable
	defaultTTL time.Duration
}

func NewLikeCacheManager(client redis.Cmdable) *LikeCacheManager {
	return &LikeCacheManager{
		client:     client,
		defaultTTL: constants.LikeCacheTTL,
	}
}

func likeCountKey(targetType string, targetId int64) string {
	return fmt.Sprintf(constants.LikeCountKey, targetType, targetId)
}

func userLikeKey(userId int64) string {
	return fmt.Sprintf(constants.UserLikeKey, userId)
}

func targetLikerKey(targetType string, targetId int64) string {
	return fmt.Sprintf(constants.TargetLikerKey, targetType, targetId)
}

func likeMember(targetType string, targetId int64) string {
	return fmt.Sprintf("%s:%d", targetType, targetId)
}

// ToggleLike 原子切换点赞状态，返回(是否为点赞, 最新计数)
func (lcm *LikeCacheManager) ToggleLike(ctx context.Context, userId int64, targetType string, targetId int64) (bool, int64, error) {
	keys := []string{
		userLikeKey(userId),
		targetLikerKey(targetType, targetId),
		likeCountKey(targetType, targetId),
	}
	args := []interface{}{
		likeMember(targetType, targetId),
		strconv.FormatInt(userId, 10),
		int64(lcm.defaultTTL.Seconds()),
	}

	res, err := lcm.client.Eval(toggleLikeScript, keys, args...).Result()
	if err != nil {
		return false, 0, fmt.Errorf("failed to toggle like: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 2 {
		return false, 0, fmt.Errorf("unexpected toggle like script result: %v", res)
	}

	liked, _ := values[0].(int64)
	count, _ := values[1].(int64)
	return liked == 1, count, nil
}

// GetLikeCount 读取点赞计数，第二个返回值表示缓存是否命中
func (lcm *LikeCacheManager) GetLikeCount(ctx context.Context, targetType string, targetId int64) (int64, bool, error) {
	val, err := lcm.client.Get(likeCountKey(targetType, targetId)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get like count: %w", err)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse like count: %w", err)
	}
	return count, true, nil
}

// SetLikeCount 回填点赞计数
func (lcm *LikeCacheManager) SetLikeCount(ctx context.Context, targetType string, targetId, count int64) error {
	if err := lcm.client.Set(likeCountKey(targetType, targetId), count, lcm.defaultTTL).Err(); err != nil {
		return fmt.Errorf("failed to set like count: %w", err)
	}
	return nil
}

// IsLiked 检查用户是否点赞了目标
func (lcm *LikeCacheManager) IsLiked(ctx context.Context, userId int64, targetType string, targetId int64) (bool, error) {
	liked, err := lcm.client.SIsMember(userLikeKey(userId), likeMember(targetType, targetId)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check like status: %w", err)
	}
	return liked, nil
}

// HasUserLikeSet 用户点赞集合是否存在，不存在时需要回源DB
func (lcm *LikeCacheManager) HasUserLikeSet(ctx context.Context, userId int64) (bool, error) {
	n, err := lcm.client.Exists(userLikeKey(userId)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check user like set: %w", err)
	}
	return n > 0, nil
}

// BatchIsLiked 批量检查点赞状态
func (lcm *LikeCacheManager) BatchIsLiked(ctx context.Context, userId int64, targetType string, targetIds []int64) (map[int64]bool, error) {
	if len(targetIds) == 0 {
		return make(map[int64]bool), nil
	}

	key := userLikeKey(userId)
	pipe := lcm.client.Pipeline()
	cmds := make(map[int64]*redis.BoolCmd, len(targetIds))
	for _, targetId := range targetIds {
		cmds[targetId] = pipe.SIsMember(key, likeMember(targetType, targetId))
	}

	if _, err := pipe.Exec(); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to batch check like status: %w", err)
	}

	result := make(map[int64]bool, len(targetIds))
	for targetId, cmd := range cmds {
		liked, err := cmd.Result()
		result[targetId] = err == nil && liked
	}
	return result, nil
}

// GetTargetLikers 获取目标的点赞者，按用户ID升序保证分页稳定
func (lcm *LikeCacheManager) GetTargetLikers(ctx context.Context, targetType string, targetId int64) ([]int64, bool, error) {
	key := targetLikerKey(targetType, targetId)

	n, err := lcm.client.Exists(key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check target liker set: %w", err)
	}
	if n == 0 {
		return nil, false, nil
	}

	members, err := lcm.client.SMembers(key).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get target likers: %w", err)
	}

	userIds := make([]int64, 0, len(members))
	for _, m := range members {
		if userId, err := strconv.ParseInt(m, 10, 64); err == nil {
			userIds = append(userIds, userId)
		}
	}
	sort.Slice(userIds, func(i, j int) bool { return userIds[i] < userIds[j] })
	return userIds, true, nil
}

// RebuildTarget 用DB权威数据整体覆盖目标的缓存
func (lcm *LikeCacheManager) RebuildTarget(ctx context.Context, targetType string, targetId, count int64, likerIds []int64) error {
	countKey := likeCountKey(targetType, targetId)
	likerKey := targetLikerKey(targetType, targetId)
	member := likeMember(targetType, targetId)

	pipe := lcm.client.TxPipeline()
	pipe.Del(likerKey)
	pipe.Set(countKey, count, lcm.defaultTTL)
	if len(likerIds) > 0 {
		members := make([]interface{}, 0, len(likerIds))
		for _, userId := range likerIds {
			members = append(members, strconv.FormatInt(userId, 10))
		}
		pipe.SAdd(likerKey, members...)
	}
	pipe.Expire(likerKey, lcm.defaultTTL)

	// 把成员补回各点赞者的用户集合，避免IsLiked假阴性
	for _, userId := range likerIds {
		key := userLikeKey(userId)
		pipe.SAdd(key, member)
		pipe.Expire(key, lcm.defaultTTL)
	}

	if _, err := pipe.Exec(); err != nil {
		return fmt.Errorf("failed to rebuild target cache: %w", err)
	}
	return nil
}

// RebuildUserLikes 用DB权威数据整体覆盖用户的点赞集合
func (lcm *LikeCacheManager) RebuildUserLikes(ctx context.Context, userId int64, members []string) error {
	key := userLikeKey(userId)

	pipe := lcm.client.TxPipeline()
	pipe.Del(key)
	if len(members) > 0 {
		vals := make([]interface{}, 0, len(members))
		for _, m := range members {
			vals = append(vals, m)
		}
		pipe.SAdd(key, vals...)
	}
	pipe.Expire(key, lcm.defaultTTL)

	if _, err := pipe.Exec(); err != nil {
		return fmt.Errorf("failed to rebuild user like cache: %w", err)
	}
	return nil
}

// DeleteTarget 删除目标的点赞缓存
func (lcm *LikeCacheManager) DeleteTarget(ctx context.Context, targetType string, targetId int64) error {
	pipe := lcm.client.TxPipeline()
	pipe.Del(likeCountKey(targetType, targetId))
	pipe.Del(targetLikerKey(targetType, targetId))

	if _, err := pipe.Exec(); err != nil {
		return fmt.Errorf("failed to delete target like cache: %w", err)
	}
	return nil
}

func (lcm *LikeCacheManager) HealthCheck(ctx context.Context) error {
	return lcm.client.Ping().Err()
}
