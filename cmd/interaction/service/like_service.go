package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EngageHub.com/cmd/model"
	"EngageHub.com/pkg/constants"
	"EngageHub.com/pkg/errno"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// LikeService 点赞服务：缓存侧原子切换，DB异步兜底
type LikeService struct {
	ctx       context.Context
	cache     LikeCache
	store     LikeStore
	publisher EventPublisher
}

func NewLikeService(ctx context.Context, cache LikeCache, store LikeStore, publisher EventPublisher) *LikeService {
	return &LikeService{
		ctx:       ctx,
		cache:     cache,
		store:     store,
		publisher: publisher,
	}
}

// ToggleLike 点赞切换，状态判断和计数增减由缓存侧脚本原子完成
func (s *LikeService) ToggleLike(ctx context.Context, req *ToggleLikeRequest) (*ToggleLikeResponse, error) {
	// 1. 参数验证
	if err := validateTarget(req.TargetType, req.TargetId); err != nil {
		return nil, err
	}
	if req.UserId <= 0 {
		return nil, errno.ParamErr.WithMessage("invalid user id")
	}

	// 2. 缓存侧原子切换，瞬时故障做有界重试
	var isLiked bool
	var likeCount int64
	err := withRetry(constants.MaxRetryAttempts, func() error {
		var err error
		isLiked, likeCount, err = s.cache.ToggleLike(ctx, req.UserId, req.TargetType, req.TargetId)
		return err
	})
	if err != nil {
		hlog.CtxErrorf(ctx, "toggle like cache failed after retries: %v", err)
		return nil, errno.TransientStoreErr.WithMessage(err.Error())
	}

	// 3. 持久化和事件投递异步进行，不阻塞响应
	go s.persistToggle(req, isLiked, likeCount)

	return &ToggleLikeResponse{
		IsLiked:   isLiked,
		LikeCount: likeCount,
	}, nil
}

// persistToggle 异步落库：点赞记录、计数表、互动事件
func (s *LikeService) persistToggle(req *ToggleLikeRequest, isLiked bool, likeCount int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := constants.LikeStatusCancelled
	delta := int64(-1)
	eventType := constants.EventTypeLikeRemoved
	if isLiked {
		status = constants.LikeStatusActive
		delta = 1
		eventType = constants.EventTypeLikeAdded
	}

	like := &model.Like{
		UserId:     req.UserId,
		TargetType: req.TargetType,
		TargetId:   req.TargetId,
		Status:     status,
		DeviceType: req.DeviceType,
		DeviceId:   req.DeviceId,
		CreatedAt:  time.Now(),
	}
	if err := s.store.UpsertLike(ctx, like); err != nil {
		hlog.CtxErrorf(ctx, "failed to persist like record (user=%d, target=%s:%d): %v",
			req.UserId, req.TargetType, req.TargetId, err)
	}

	if err := s.store.IncrLikeCount(ctx, req.TargetType, req.TargetId, delta); err != nil {
		hlog.CtxErrorf(ctx, "failed to persist like count delta (target=%s:%d): %v",
			req.TargetType, req.TargetId, err)
	}

	// 评论被点赞时同步维护评论行自身的like_count，热度排序依赖它
	if req.TargetType == constants.TargetTypeComment {
		if err := s.store.IncrCommentLikeCount(ctx, req.TargetId, delta); err != nil {
			hlog.CtxErrorf(ctx, "failed to persist comment like count (comment=%d): %v",
				req.TargetId, err)
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"user_id":     req.UserId,
		"target_type": req.TargetType,
		"target_id":   req.TargetId,
		"like_count":  likeCount,
		"device_type": req.DeviceType,
	})
	s.publisher.Publish(ctx, &model.InteractionEvent{
		EventType:  eventType,
		UserId:     req.UserId,
		TargetType: req.TargetType,
		TargetId:   req.TargetId,
		Payload:    string(payload),
	})
}

// GetLikeCount 缓存优先读计数，未命中回源DB并回填
func (s *LikeService) GetLikeCount(ctx context.Context, targetType string, targetId int64) (int64, error) {
	if err := validateTarget(targetType, targetId); err != nil {
		return 0, err
	}

	count, hit, err := s.cache.GetLikeCount(ctx, targetType, targetId)
	if err != nil {
		hlog.CtxWarnf(ctx, "like count cache read failed, falling back to db: %v", err)
	} else if hit {
		return count, nil
	}

	count, err = s.store.GetLikeCount(ctx, targetType, targetId)
	if err != nil {
		return 0, errno.MysqlErr.WithMessage(err.Error())
	}

	if err := s.cache.SetLikeCount(ctx, targetType, targetId, count); err != nil {
		hlog.CtxWarnf(ctx, "failed to repopulate like count cache: %v", err)
	}
	return count, nil
}

// IsLiked 查询用户是否点赞，用户集合不存在时回源DB并异步重建
func (s *LikeService) IsLiked(ctx context.Context, req *LikeStatusRequest) (bool, error) {
	if err := validateTarget(req.TargetType, req.TargetId); err != nil {
		return false, err
	}

	hasSet, err := s.cache.HasUserLikeSet(ctx, req.UserId)
	if err != nil {
		hlog.CtxWarnf(ctx, "user like set check failed, falling back to db: %v", err)
	} else if hasSet {
		liked, err := s.cache.IsLiked(ctx, req.UserId, req.TargetType, req.TargetId)
		if err == nil {
			return liked, nil
		}
		hlog.CtxWarnf(ctx, "like status cache read failed, falling back to db: %v", err)
	}

	like, err := s.store.GetLike(ctx, req.UserId, req.TargetType, req.TargetId)
	if err != nil {
		return false, errno.MysqlErr.WithMessage(err.Error())
	}

	go s.rebuildUserLikeCache(req.UserId)

	return like != nil && like.Status == constants.LikeStatusActive, nil
}

// BatchLikeStatus 批量查询点赞状态
func (s *LikeService) BatchLikeStatus(ctx context.Context, req *BatchLikeStatusRequest) (map[int64]bool, error) {
	if !validTargetType(req.TargetType) {
		return nil, errno.ParamErr.WithMessage("invalid target type")
	}
	if len(req.TargetIds) == 0 {
		return map[int64]bool{}, nil
	}
	if len(req.TargetIds) > constants.MaxPageSize {
		return nil, errno.ParamErr.WithMessage("too many targets in one batch")
	}

	hasSet, err := s.cache.HasUserLikeSet(ctx, req.UserId)
	if err == nil && hasSet {
		result, err := s.cache.BatchIsLiked(ctx, req.UserId, req.TargetType, req.TargetIds)
		if err == nil {
			return result, nil
		}
		hlog.CtxWarnf(ctx, "batch like status cache read failed, falling back to db: %v", err)
	}

	likes, err := s.store.GetActiveLikesByUser(ctx, req.UserId)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}
	active := make(map[string]struct{}, len(likes))
	for _, like := range likes {
		active[fmt.Sprintf("%s:%d", like.TargetType, like.TargetId)] = struct{}{}
	}

	result := make(map[int64]bool, len(req.TargetIds))
	for _, targetId := range req.TargetIds {
		_, ok := active[fmt.Sprintf("%s:%d", req.TargetType, targetId)]
		result[targetId] = ok
	}

	go s.rebuildUserLikeCache(req.UserId)
	return result, nil
}

// ListLikers 目标的点赞者分页，按用户ID升序保证翻页稳定
func (s *LikeService) ListLikers(ctx context.Context, req *ListLikersRequest) (*ListLikersResponse, error) {
	if err := validateTarget(req.TargetType, req.TargetId); err != nil {
		return nil, err
	}
	pageNum, pageSize := normalizePage(req.PageNum, req.PageSize)

	likerIds, hit, err := s.cache.GetTargetLikers(ctx, req.TargetType, req.TargetId)
	if err != nil {
		hlog.CtxWarnf(ctx, "target liker cache read failed, falling back to db: %v", err)
	} else if hit {
		total := int64(len(likerIds))
		start := (pageNum - 1) * pageSize
		if start >= total {
			return &ListLikersResponse{UserIds: []int64{}, Total: total}, nil
		}
		end := start + pageSize
		if end > total {
			end = total
		}
		return &ListLikersResponse{UserIds: likerIds[start:end], Total: total}, nil
	}

	total, err := s.store.CountActiveLikes(ctx, req.TargetType, req.TargetId)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}
	userIds, err := s.store.GetActiveLikerIdsByPage(ctx, req.TargetType, req.TargetId, pageNum, pageSize)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}

	go s.rebuildTargetLikeCache(req.TargetType, req.TargetId)

	return &ListLikersResponse{UserIds: userIds, Total: total}, nil
}

// rebuildUserLikeCache 以DB为准重建用户点赞集合
func (s *LikeService) rebuildUserLikeCache(userId int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	likes, err := s.store.GetActiveLikesByUser(ctx, userId)
	if err != nil {
		hlog.CtxWarnf(ctx, "failed to load user likes for cache rebuild: %v", err)
		return
	}
	members := make([]string, 0, len(likes))
	for _, like := range likes {
		members = append(members, fmt.Sprintf("%s:%d", like.TargetType, like.TargetId))
	}
	if err := s.cache.RebuildUserLikes(ctx, userId, members); err != nil {
		hlog.CtxWarnf(ctx, "failed to rebuild user like cache for %d: %v", userId, err)
	}
}

// rebuildTargetLikeCache 以DB为准重建目标的计数和点赞者集合
func (s *LikeService) rebuildTargetLikeCache(targetType string, targetId int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	count, err := s.store.CountActiveLikes(ctx, targetType, targetId)
	if err != nil {
		hlog.CtxWarnf(ctx, "failed to count active likes for cache rebuild: %v", err)
		return
	}
	likerIds, err := s.store.GetActiveLikerIds(ctx, targetType, targetId)
	if err != nil {
		hlog.CtxWarnf(ctx, "failed to load likers for cache rebuild: %v", err)
		return
	}
	if err := s.cache.RebuildTarget(ctx, targetType, targetId, count, likerIds); err != nil {
		hlog.CtxWarnf(ctx, "failed to rebuild target like cache for %s:%d: %v", targetType, targetId, err)
	}
}

func validTargetType(targetType string) bool {
	switch targetType {
	case constants.TargetTypeMoment, constants.TargetTypeComment, constants.TargetTypeMessage:
		return true
	}
	return false
}

func validateTarget(targetType string, targetId int64) error {
	if !validTargetType(targetType) {
		return errno.ParamErr.WithMessage("invalid target type: " + targetType)
	}
	if targetId <= 0 {
		return errno.ParamErr.WithMessage("invalid target id")
	}
	return nil
}

func normalizePage(pageNum, pageSize int64) (int64, int64) {
	if pageNum <= 0 {
		pageNum = 1
	}
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	return pageNum, pageSize
}

// withRetry 有界重试，间隔随次数线性增长
func withRetry(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
		}
	}
	return err
}
