package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"EngageHub.com/cmd/model"
	"EngageHub.com/pkg/constants"
	"EngageHub.com/pkg/errno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLikeCache 内存实现，切换逻辑在锁内完成，语义上等价于缓存侧的原子脚本
type fakeLikeCache struct {
	mu         sync.Mutex
	counts     map[string]int64
	userSets   map[int64]map[string]bool
	likerSets  map[string]map[int64]bool
	failToggle int
	failAll    bool
}

func newFakeLikeCache() *fakeLikeCache {
	return &fakeLikeCache{
		counts:    make(map[string]int64),
		userSets:  make(map[int64]map[string]bool),
		likerSets: make(map[string]map[int64]bool),
	}
}

func targetKey(targetType string, targetId int64) string {
	return fmt.Sprintf("%s:%d", targetType, targetId)
}

func (c *fakeLikeCache) ToggleLike(ctx context.Context, userId int64, targetType string, targetId int64) (bool, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return false, 0, errors.New("cache down")
	}
	if c.failToggle > 0 {
		c.failToggle--
		return false, 0, errors.New("transient cache error")
	}

	key := targetKey(targetType, targetId)
	member := key
	if c.userSets[userId] == nil {
		c.userSets[userId] = make(map[string]bool)
	}
	if c.likerSets[key] == nil {
		c.likerSets[key] = make(map[int64]bool)
	}

	if c.userSets[userId][member] {
		delete(c.userSets[userId], member)
		delete(c.likerSets[key], userId)
		if c.counts[key] > 0 {
			c.counts[key]--
		}
		return false, c.counts[key], nil
	}
	c.userSets[userId][member] = true
	c.likerSets[key][userId] = true
	c.counts[key]++
	return true, c.counts[key], nil
}

func (c *fakeLikeCache) GetLikeCount(ctx context.Context, targetType string, targetId int64) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return 0, false, errors.New("cache down")
	}
	count, ok := c.counts[targetKey(targetType, targetId)]
	return count, ok, nil
}

func (c *fakeLikeCache) SetLikeCount(ctx context.Context, targetType string, targetId, count int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[targetKey(targetType, targetId)] = count
	return nil
}

func (c *fakeLikeCache) IsLiked(ctx context.Context, userId int64, targetType string, targetId int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userSets[userId][targetKey(targetType, targetId)], nil
}

func (c *fakeLikeCache) HasUserLikeSet(ctx context.Context, userId int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return false, errors.New("cache down")
	}
	return len(c.userSets[userId]) > 0, nil
}

func (c *fakeLikeCache) BatchIsLiked(ctx context.Context, userId int64, targetType string, targetIds []int64) (map[int64]bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make(map[int64]bool, len(targetIds))
	for _, targetId := range targetIds {
		result[targetId] = c.userSets[userId][targetKey(targetType, targetId)]
	}
	return result, nil
}

func (c *fakeLikeCache) GetTargetLikers(ctx context.Context, targetType string, targetId int64) ([]int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.likerSets[targetKey(targetType, targetId)]
	if !ok || len(set) == 0 {
		return nil, false, nil
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, true, nil
}

func (c *fakeLikeCache) RebuildTarget(ctx context.Context, targetType string, targetId, count int64, likerIds []int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := targetKey(targetType, targetId)
	c.counts[key] = count
	c.likerSets[key] = make(map[int64]bool, len(likerIds))
	for _, id := range likerIds {
		c.likerSets[key][id] = true
		if c.userSets[id] == nil {
			c.userSets[id] = make(map[string]bool)
		}
		c.userSets[id][key] = true
	}
	return nil
}

func (c *fakeLikeCache) RebuildUserLikes(ctx context.Context, userId int64, members []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set := make(map[string]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	c.userSets[userId] = set
	return nil
}

// fakeLikeStore 内存点赞表和计数表
type fakeLikeStore struct {
	mu           sync.Mutex
	likes        map[string]*model.Like
	counts       map[string]int64
	commentLikes map[string]int64
}

func newFakeLikeStore() *fakeLikeStore {
	return &fakeLikeStore{
		likes:        make(map[string]*model.Like),
		counts:       make(map[string]int64),
		commentLikes: make(map[string]int64),
	}
}

func likeKey(userId int64, targetType string, targetId int64) string {
	return fmt.Sprintf("%d:%s:%d", userId, targetType, targetId)
}

func (s *fakeLikeStore) UpsertLike(ctx context.Context, like *model.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *like
	s.likes[likeKey(like.UserId, like.TargetType, like.TargetId)] = &clone
	return nil
}

func (s *fakeLikeStore) GetLike(ctx context.Context, userId int64, targetType string, targetId int64) (*model.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if like, ok := s.likes[likeKey(userId, targetType, targetId)]; ok {
		clone := *like
		return &clone, nil
	}
	return nil, nil
}

func (s *fakeLikeStore) CountActiveLikes(ctx context.Context, targetType string, targetId int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, like := range s.likes {
		if like.TargetType == targetType && like.TargetId == targetId && like.Status == constants.LikeStatusActive {
			count++
		}
	}
	return count, nil
}

func (s *fakeLikeStore) GetActiveLikerIds(ctx context.Context, targetType string, targetId int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, like := range s.likes {
		if like.TargetType == targetType && like.TargetId == targetId && like.Status == constants.LikeStatusActive {
			ids = append(ids, like.UserId)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *fakeLikeStore) GetActiveLikerIdsByPage(ctx context.Context, targetType string, targetId, pageNum, pageSize int64) ([]int64, error) {
	ids, _ := s.GetActiveLikerIds(ctx, targetType, targetId)
	start := (pageNum - 1) * pageSize
	if start >= int64(len(ids)) {
		return []int64{}, nil
	}
	end := start + pageSize
	if end > int64(len(ids)) {
		end = int64(len(ids))
	}
	return ids[start:end], nil
}

func (s *fakeLikeStore) GetActiveLikesByUser(ctx context.Context, userId int64) ([]*model.Like, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Like
	for _, like := range s.likes {
		if like.UserId == userId && like.Status == constants.LikeStatusActive {
			clone := *like
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *fakeLikeStore) IncrLikeCount(ctx context.Context, targetType string, targetId, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := targetKey(targetType, targetId)
	s.counts[key] += delta
	if s.counts[key] < 0 {
		s.counts[key] = 0
	}
	return nil
}

func (s *fakeLikeStore) SetLikeCount(ctx context.Context, targetType string, targetId, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[targetKey(targetType, targetId)] = count
	return nil
}

func (s *fakeLikeStore) GetLikeCount(ctx context.Context, targetType string, targetId int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[targetKey(targetType, targetId)], nil
}

func (s *fakeLikeStore) IncrCommentLikeCount(ctx context.Context, commentId, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := targetKey(constants.TargetTypeComment, commentId)
	s.commentLikes[key] += delta
	if s.commentLikes[key] < 0 {
		s.commentLikes[key] = 0
	}
	return nil
}

// fakePublisher 记录进入管道的事件
type fakePublisher struct {
	mu     sync.Mutex
	events []*model.InteractionEvent
	ch     chan *model.InteractionEvent
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{ch: make(chan *model.InteractionEvent, 64)}
}

func (p *fakePublisher) Publish(ctx context.Context, event *model.InteractionEvent) bool {
	p.mu.Lock()
	clone := *event
	p.events = append(p.events, &clone)
	p.mu.Unlock()
	p.ch <- &clone
	return true
}

func (p *fakePublisher) waitEvent(t *testing.T) *model.InteractionEvent {
	t.Helper()
	select {
	case e := <-p.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func newTestLikeService() (*LikeService, *fakeLikeCache, *fakeLikeStore, *fakePublisher) {
	cache := newFakeLikeCache()
	store := newFakeLikeStore()
	publisher := newFakePublisher()
	svc := NewLikeService(context.Background(), cache, store, publisher)
	return svc, cache, store, publisher
}

func TestToggleLikeParity(t *testing.T) {
	svc, _, store, publisher := newTestLikeService()
	ctx := context.Background()
	req := &ToggleLikeRequest{UserId: 1, TargetType: constants.TargetTypeMoment, TargetId: 100}

	// 第一次切换：点赞
	resp, err := svc.ToggleLike(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.IsLiked)
	assert.Equal(t, int64(1), resp.LikeCount)

	event := publisher.waitEvent(t)
	assert.Equal(t, constants.EventTypeLikeAdded, event.EventType)

	assert.Eventually(t, func() bool {
		like, _ := store.GetLike(ctx, 1, constants.TargetTypeMoment, 100)
		return like != nil && like.Status == constants.LikeStatusActive
	}, 2*time.Second, 10*time.Millisecond)

	// 第二次切换：取消，回到原点
	resp, err = svc.ToggleLike(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.IsLiked)
	assert.Equal(t, int64(0), resp.LikeCount)

	event = publisher.waitEvent(t)
	assert.Equal(t, constants.EventTypeLikeRemoved, event.EventType)

	assert.Eventually(t, func() bool {
		like, _ := store.GetLike(ctx, 1, constants.TargetTypeMoment, 100)
		count, _ := store.GetLikeCount(ctx, constants.TargetTypeMoment, 100)
		return like != nil && like.Status == constants.LikeStatusCancelled && count == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestToggleLikeCommentTarget(t *testing.T) {
	svc, _, store, publisher := newTestLikeService()
	ctx := context.Background()
	req := &ToggleLikeRequest{UserId: 1, TargetType: constants.TargetTypeComment, TargetId: 42}

	resp, err := svc.ToggleLike(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.IsLiked)
	publisher.waitEvent(t)

	// 评论行自身的like_count也要跟着走，热度排序读它
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.commentLikes[targetKey(constants.TargetTypeComment, 42)] == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = svc.ToggleLike(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.IsLiked)
	publisher.waitEvent(t)

	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.commentLikes[targetKey(constants.TargetTypeComment, 42)] == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestToggleLikeConcurrent(t *testing.T) {
	svc, cache, _, _ := newTestLikeService()
	ctx := context.Background()

	const toggles = 9 // 奇数次，终态应为已点赞
	var wg sync.WaitGroup
	for i := 0; i < toggles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ToggleLike(ctx, &ToggleLikeRequest{
				UserId: 1, TargetType: constants.TargetTypeMoment, TargetId: 200,
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	liked, err := cache.IsLiked(ctx, 1, constants.TargetTypeMoment, 200)
	require.NoError(t, err)
	assert.True(t, liked)

	count, hit, err := cache.GetLikeCount(ctx, constants.TargetTypeMoment, 200)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, int64(1), count, "count must match membership after concurrent toggles")
}

func TestToggleLikeValidation(t *testing.T) {
	svc, _, _, _ := newTestLikeService()
	ctx := context.Background()

	cases := []struct {
		name string
		req  *ToggleLikeRequest
	}{
		{"unknown target type", &ToggleLikeRequest{UserId: 1, TargetType: "video", TargetId: 1}},
		{"zero target id", &ToggleLikeRequest{UserId: 1, TargetType: constants.TargetTypeMoment, TargetId: 0}},
		{"zero user id", &ToggleLikeRequest{UserId: 0, TargetType: constants.TargetTypeMoment, TargetId: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ToggleLike(ctx, tc.req)
			require.Error(t, err)
			assert.Equal(t, errno.ParamErrCode, errno.ConvertErr(err).ErrCode)
		})
	}
}

func TestToggleLikeTransientFailure(t *testing.T) {
	t.Run("recovers within retry budget", func(t *testing.T) {
		svc, cache, _, _ := newTestLikeService()
		cache.failToggle = 2

		resp, err := svc.ToggleLike(context.Background(), &ToggleLikeRequest{
			UserId: 1, TargetType: constants.TargetTypeMoment, TargetId: 300,
		})
		require.NoError(t, err)
		assert.True(t, resp.IsLiked)
	})

	t.Run("surfaces transient error after budget exhausted", func(t *testing.T) {
		svc, cache, _, _ := newTestLikeService()
		cache.failToggle = constants.MaxRetryAttempts

		_, err := svc.ToggleLike(context.Background(), &ToggleLikeRequest{
			UserId: 1, TargetType: constants.TargetTypeMoment, TargetId: 300,
		})
		require.Error(t, err)
		assert.Equal(t, errno.TransientStoreErrCode, errno.ConvertErr(err).ErrCode)
	})
}

func TestGetLikeCountFallback(t *testing.T) {
	svc, cache, store, _ := newTestLikeService()
	ctx := context.Background()

	require.NoError(t, store.SetLikeCount(ctx, constants.TargetTypeMoment, 400, 17))

	// 缓存未命中，回源DB
	count, err := svc.GetLikeCount(ctx, constants.TargetTypeMoment, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(17), count)

	// 回填后再读走缓存
	cached, hit, err := cache.GetLikeCount(ctx, constants.TargetTypeMoment, 400)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, int64(17), cached)
}

func TestIsLikedFallback(t *testing.T) {
	svc, _, store, _ := newTestLikeService()
	ctx := context.Background()

	require.NoError(t, store.UpsertLike(ctx, &model.Like{
		UserId: 5, TargetType: constants.TargetTypeMoment, TargetId: 500,
		Status: constants.LikeStatusActive,
	}))

	liked, err := svc.IsLiked(ctx, &LikeStatusRequest{
		UserId: 5, TargetType: constants.TargetTypeMoment, TargetId: 500,
	})
	require.NoError(t, err)
	assert.True(t, liked)

	liked, err = svc.IsLiked(ctx, &LikeStatusRequest{
		UserId: 6, TargetType: constants.TargetTypeMoment, TargetId: 500,
	})
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestBatchLikeStatus(t *testing.T) {
	svc, _, store, _ := newTestLikeService()
	ctx := context.Background()

	for _, targetId := range []int64{601, 603} {
		require.NoError(t, store.UpsertLike(ctx, &model.Like{
			UserId: 7, TargetType: constants.TargetTypeMoment, TargetId: targetId,
			Status: constants.LikeStatusActive,
		}))
	}

	result, err := svc.BatchLikeStatus(ctx, &BatchLikeStatusRequest{
		UserId: 7, TargetType: constants.TargetTypeMoment, TargetIds: []int64{601, 602, 603},
	})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{601: true, 602: false, 603: true}, result)

	t.Run("empty batch returns empty map", func(t *testing.T) {
		result, err := svc.BatchLikeStatus(ctx, &BatchLikeStatusRequest{
			UserId: 7, TargetType: constants.TargetTypeMoment,
		})
		require.NoError(t, err)
		assert.Empty(t, result)
	})

	t.Run("oversized batch rejected", func(t *testing.T) {
		ids := make([]int64, constants.MaxPageSize+1)
		for i := range ids {
			ids[i] = int64(i + 1)
		}
		_, err := svc.BatchLikeStatus(ctx, &BatchLikeStatusRequest{
			UserId: 7, TargetType: constants.TargetTypeMoment, TargetIds: ids,
		})
		require.Error(t, err)
		assert.Equal(t, errno.ParamErrCode, errno.ConvertErr(err).ErrCode)
	})
}

func TestListLikers(t *testing.T) {
	svc, cache, store, _ := newTestLikeService()
	ctx := context.Background()

	for userId := int64(1); userId <= 5; userId++ {
		require.NoError(t, store.UpsertLike(ctx, &model.Like{
			UserId: userId, TargetType: constants.TargetTypeMoment, TargetId: 700,
			Status: constants.LikeStatusActive,
		}))
	}

	t.Run("db paging is stable and ascending", func(t *testing.T) {
		resp, err := svc.ListLikers(ctx, &ListLikersRequest{
			TargetType: constants.TargetTypeMoment, TargetId: 700, PageNum: 1, PageSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5), resp.Total)
		assert.Equal(t, []int64{1, 2}, resp.UserIds)

		resp, err = svc.ListLikers(ctx, &ListLikersRequest{
			TargetType: constants.TargetTypeMoment, TargetId: 700, PageNum: 2, PageSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{3, 4}, resp.UserIds)
	})

	t.Run("cache hit paging", func(t *testing.T) {
		require.NoError(t, cache.RebuildTarget(ctx, constants.TargetTypeMoment, 700, 5, []int64{1, 2, 3, 4, 5}))

		resp, err := svc.ListLikers(ctx, &ListLikersRequest{
			TargetType: constants.TargetTypeMoment, TargetId: 700, PageNum: 3, PageSize: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(5), resp.Total)
		assert.Equal(t, []int64{5}, resp.UserIds)
	})

	t.Run("page beyond range is empty", func(t *testing.T) {
		resp, err := svc.ListLikers(ctx, &ListLikersRequest{
			TargetType: constants.TargetTypeMoment, TargetId: 700, PageNum: 9, PageSize: 10,
		})
		require.NoError(t, err)
		assert.Empty(t, resp.UserIds)
		assert.Equal(t, int64(5), resp.Total)
	})
}
