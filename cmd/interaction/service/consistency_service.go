package service

import (
	"context"
	"time"

	"EngageHub.com/config"
	"EngageHub.com/pkg/constants"
	"EngageHub.com/pkg/errno"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// ConsistencyService 缓存与DB的对账和恢复
// 点赞数据以ACTIVE点赞行的重算结果为权威，缓存整体覆盖重建
type ConsistencyService struct {
	likeCache  LikeCache
	likeStore  LikeStore
	eventStore EventStore
	events     *EventService

	sweepInterval time.Duration
	stopCh        chan struct{}
}

// CheckReport 单个目标的对账结果
type CheckReport struct {
	TargetType string `json:"target_type"`
	TargetId   int64  `json:"target_id"`
	CacheCount int64  `json:"cache_count"`
	DBCount    int64  `json:"db_count"`
	Consistent bool   `json:"consistent"`
	Healed     bool   `json:"healed"`
}

func NewConsistencyService(likeCache LikeCache, likeStore LikeStore,
	eventStore EventStore, events *EventService) *ConsistencyService {
	interval := time.Duration(config.ConfigInfo.Event.SweepInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ConsistencyService{
		likeCache:     likeCache,
		likeStore:     likeStore,
		eventStore:    eventStore,
		events:        events,
		sweepInterval: interval,
		stopCh:        make(chan struct{}),
	}
}

// RecoverTarget 缓存丢失后用DB重算并整体覆盖目标的点赞缓存
func (s *ConsistencyService) RecoverTarget(ctx context.Context, targetType string, targetId int64) (int64, error) {
	if err := validateTarget(targetType, targetId); err != nil {
		return 0, err
	}

	count, err := s.likeStore.CountActiveLikes(ctx, targetType, targetId)
	if err != nil {
		return 0, errno.MysqlErr.WithMessage(err.Error())
	}
	likerIds, err := s.likeStore.GetActiveLikerIds(ctx, targetType, targetId)
	if err != nil {
		return 0, errno.MysqlErr.WithMessage(err.Error())
	}

	if err := s.likeCache.RebuildTarget(ctx, targetType, targetId, count, likerIds); err != nil {
		return 0, errno.RedisErr.WithMessage(err.Error())
	}

	// 计数表同步修正，保持和重算结果一致
	if err := s.likeStore.SetLikeCount(ctx, targetType, targetId, count); err != nil {
		hlog.CtxWarnf(ctx, "failed to sync like count table for %s:%d: %v", targetType, targetId, err)
	}

	hlog.CtxInfof(ctx, "recovered like cache for %s:%d, count=%d, likers=%d",
		targetType, targetId, count, len(likerIds))
	return count, nil
}

// CheckTarget 对比缓存计数和DB重算值，发现分歧立即自愈
func (s *ConsistencyService) CheckTarget(ctx context.Context, targetType string, targetId int64) (*CheckReport, error) {
	if err := validateTarget(targetType, targetId); err != nil {
		return nil, err
	}

	report := &CheckReport{TargetType: targetType, TargetId: targetId}

	dbCount, err := s.likeStore.CountActiveLikes(ctx, targetType, targetId)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}
	report.DBCount = dbCount

	cacheCount, hit, err := s.likeCache.GetLikeCount(ctx, targetType, targetId)
	if err != nil {
		return nil, errno.RedisErr.WithMessage(err.Error())
	}
	report.CacheCount = cacheCount

	if hit && cacheCount == dbCount {
		report.Consistent = true
		return report, nil
	}

	if _, err := s.RecoverTarget(ctx, targetType, targetId); err != nil {
		return report, err
	}
	report.Healed = true
	return report, nil
}

// RecoverPendingEvents 补投落库但未送达的事件
// 覆盖两类：卡在中间态超时的，和投递窗口被截断标记FAILED的
func (s *ConsistencyService) RecoverPendingEvents(ctx context.Context) int {
	recovered := 0

	stuck, err := s.eventStore.ListStuckEvents(ctx, time.Now().Add(-5*time.Minute), 100)
	if err != nil {
		hlog.CtxErrorf(ctx, "failed to list stuck events: %v", err)
	} else {
		for _, event := range stuck {
			s.events.Redeliver(ctx, event)
			recovered++
		}
	}

	failed, err := s.eventStore.ListEventsByStatus(ctx, constants.EventStatusFailed, 100)
	if err != nil {
		hlog.CtxErrorf(ctx, "failed to list failed events: %v", err)
	} else {
		for _, event := range failed {
			s.events.Redeliver(ctx, event)
			recovered++
		}
	}

	if recovered > 0 {
		hlog.CtxInfof(ctx, "event recovery sweep redelivered %d events", recovered)
	}
	return recovered
}

// StartSweep 启动周期巡检
func (s *ConsistencyService) StartSweep() {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				s.RecoverPendingEvents(ctx)
				cancel()
			}
		}
	}()
	hlog.Infof("consistency sweep started, interval=%s", s.sweepInterval)
}

func (s *ConsistencyService) Stop() {
	close(s.stopCh)
}
