package service

import (
	"context"
	"time"

	"EngageHub.com/cmd/interaction/dal/db"
	"EngageHub.com/cmd/model"
)

// LikeCache 点赞缓存能力，生产实现为redis.LikeCacheManager
type LikeCache interface {
	ToggleLike(ctx context.Context, userId int64, targetType string, targetId int64) (bool, int64, error)
	GetLikeCount(ctx context.Context, targetType string, targetId int64) (int64, bool, error)
	SetLikeCount(ctx context.Context, targetType string, targetId, count int64) error
	IsLiked(ctx context.Context, userId int64, targetType string, targetId int64) (bool, error)
	HasUserLikeSet(ctx context.Context, userId int64) (bool, error)
	BatchIsLiked(ctx context.Context, userId int64, targetType string, targetIds []int64) (map[int64]bool, error)
	GetTargetLikers(ctx context.Context, targetType string, targetId int64) ([]int64, bool, error)
	RebuildTarget(ctx context.Context, targetType string, targetId, count int64, likerIds []int64) error
	RebuildUserLikes(ctx context.Context, userId int64, members []string) error
}

// LikeStore 点赞持久化能力
type LikeStore interface {
	UpsertLike(ctx context.Context, like *model.Like) error
	GetLike(ctx context.Context, userId int64, targetType string, targetId int64) (*model.Like, error)
	CountActiveLikes(ctx context.Context, targetType string, targetId int64) (int64, error)
	GetActiveLikerIds(ctx context.Context, targetType string, targetId int64) ([]int64, error)
	GetActiveLikerIdsByPage(ctx context.Context, targetType string, targetId, pageNum, pageSize int64) ([]int64, error)
	GetActiveLikesByUser(ctx context.Context, userId int64) ([]*model.Like, error)
	IncrLikeCount(ctx context.Context, targetType string, targetId, delta int64) error
	SetLikeCount(ctx context.Context, targetType string, targetId, count int64) error
	GetLikeCount(ctx context.Context, targetType string, targetId int64) (int64, error)
	IncrCommentLikeCount(ctx context.Context, commentId, delta int64) error
}

// CommentStore 评论持久化能力
type CommentStore interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetCommentInfo(ctx context.Context, commentId int64) (*model.Comment, error)
	UpdateCommentContent(ctx context.Context, commentId int64, content, status string, score float64, labels string) error
	UpdateCommentStatus(ctx context.Context, commentId int64, status string) error
	SoftDeleteComment(ctx context.Context, commentId int64) error
	ListTopComments(ctx context.Context, targetType string, targetId, pageNum, pageSize int64, sort string) ([]*model.Comment, error)
	CountTopComments(ctx context.Context, targetType string, targetId int64) (int64, error)
	ListReplies(ctx context.Context, parentId, pageNum, pageSize int64) ([]*model.Comment, error)
	CountReplies(ctx context.Context, parentId int64) (int64, error)
	IncrReplyCount(ctx context.Context, parentId, delta int64) error
	CountVisibleComments(ctx context.Context, targetType string, targetId int64) (int64, error)
	IncrCommentCount(ctx context.Context, targetType string, targetId, delta int64) error
}

// EventStore 事件持久化能力
type EventStore interface {
	CreateEvent(ctx context.Context, event *model.InteractionEvent) error
	UpdateEventStatus(ctx context.Context, eventId, status string) error
	MarkEventProcessed(ctx context.Context, eventId, result string) error
	MarkEventRetrying(ctx context.Context, eventId string, retryCount int, reason string) error
	MarkEventDeadLetter(ctx context.Context, eventId, reason string) error
	ListEventsByStatus(ctx context.Context, status string, limit int) ([]*model.InteractionEvent, error)
	ListStuckEvents(ctx context.Context, before time.Time, limit int) ([]*model.InteractionEvent, error)
}

// EventPublisher 事件管道入口，投递失败绝不向调用方冒泡
type EventPublisher interface {
	Publish(ctx context.Context, event *model.InteractionEvent) bool
}

// === 生产实现：直接代理到dal/db ===

type DBLikeStore struct{}

func (DBLikeStore) UpsertLike(ctx context.Context, like *model.Like) error {
	return db.UpsertLike(ctx, like)
}

func (DBLikeStore) GetLike(ctx context.Context, userId int64, targetType string, targetId int64) (*model.Like, error) {
	return db.GetLike(ctx, userId, targetType, targetId)
}

func (DBLikeStore) CountActiveLikes(ctx context.Context, targetType string, targetId int64) (int64, error) {
	return db.CountActiveLikes(ctx, targetType, targetId)
}

func (DBLikeStore) GetActiveLikerIds(ctx context.Context, targetType string, targetId int64) ([]int64, error) {
	return db.GetActiveLikerIds(ctx, targetType, targetId)
}

func (DBLikeStore) GetActiveLikerIdsByPage(ctx context.Context, targetType string, targetId, pageNum, pageSize int64) ([]int64, error) {
	return db.GetActiveLikerIdsByPage(ctx, targetType, targetId, pageNum, pageSize)
}

func (DBLikeStore) GetActiveLikesByUser(ctx context.Context, userId int64) ([]*model.Like, error) {
	return db.GetActiveLikesByUser(ctx, userId)
}

func (DBLikeStore) IncrLikeCount(ctx context.Context, targetType string, targetId, delta int64) error {
	return db.IncrLikeCount(ctx, targetType, targetId, delta)
}

func (DBLikeStore) SetLikeCount(ctx context.Context, targetType string, targetId, count int64) error {
	return db.SetLikeCount(ctx, targetType, targetId, count)
}

func (DBLikeStore) GetLikeCount(ctx context.Context, targetType string, targetId int64) (int64, error) {
	return db.GetLikeCount(ctx, targetType, targetId)
}

func (DBLikeStore) IncrCommentLikeCount(ctx context.Context, commentId, delta int64) error {
	return db.IncrCommentLikeCount(ctx, commentId, delta)
}

type DBCommentStore struct{}

func (DBCommentStore) CreateComment(ctx context.Context, comment *model.Comment) error {
	return db.CreateComment(ctx, comment)
}

func (DBCommentStore) GetCommentInfo(ctx context.Context, commentId int64) (*model.Comment, error) {
	return db.GetCommentInfo(ctx, commentId)
}

func (DBCommentStore) UpdateCommentContent(ctx context.Context, commentId int64, content, status string, score float64, labels string) error {
	return db.UpdateCommentContent(ctx, commentId, content, status, score, labels)
}

func (DBCommentStore) UpdateCommentStatus(ctx context.Context, commentId int64, status string) error {
	return db.UpdateCommentStatus(ctx, commentId, status)
}

func (DBCommentStore) SoftDeleteComment(ctx context.Context, commentId int64) error {
	return db.SoftDeleteComment(ctx, commentId)
}

func (DBCommentStore) ListTopComments(ctx context.Context, targetType string, targetId, pageNum, pageSize int64, sort string) ([]*model.Comment, error) {
	return db.ListTopComments(ctx, targetType, targetId, pageNum, pageSize, sort)
}

func (DBCommentStore) CountTopComments(ctx context.Context, targetType string, targetId int64) (int64, error) {
	return db.CountTopComments(ctx, targetType, targetId)
}

func (DBCommentStore) ListReplies(ctx context.Context, parentId, pageNum, pageSize int64) ([]*model.Comment, error) {
	return db.ListReplies(ctx, parentId, pageNum, pageSize)
}

func (DBCommentStore) CountReplies(ctx context.Context, parentId int64) (int64, error) {
	return db.CountReplies(ctx, parentId)
}

func (DBCommentStore) IncrReplyCount(ctx context.Context, parentId, delta int64) error {
	return db.IncrReplyCount(ctx, parentId, delta)
}

func (DBCommentStore) CountVisibleComments(ctx context.Context, targetType string, targetId int64) (int64, error) {
	return db.CountVisibleComments(ctx, targetType, targetId)
}

func (DBCommentStore) IncrCommentCount(ctx context.Context, targetType string, targetId, delta int64) error {
	return db.IncrCommentCount(ctx, targetType, targetId, delta)
}

type DBEventStore struct{}

func (DBEventStore) CreateEvent(ctx context.Context, event *model.InteractionEvent) error {
	return db.CreateEvent(ctx, event)
}

func (DBEventStore) UpdateEventStatus(ctx context.Context, eventId, status string) error {
	return db.UpdateEventStatus(ctx, eventId, status)
}

func (DBEventStore) MarkEventProcessed(ctx context.Context, eventId, result string) error {
	return db.MarkEventProcessed(ctx, eventId, result)
}

func (DBEventStore) MarkEventRetrying(ctx context.Context, eventId string, retryCount int, reason string) error {
	return db.MarkEventRetrying(ctx, eventId, retryCount, reason)
}

func (DBEventStore) MarkEventDeadLetter(ctx context.Context, eventId, reason string) error {
	return db.MarkEventDeadLetter(ctx, eventId, reason)
}

func (DBEventStore) ListEventsByStatus(ctx context.Context, status string, limit int) ([]*model.InteractionEvent, error) {
	return db.ListEventsByStatus(ctx, status, limit)
}

func (DBEventStore) ListStuckEvents(ctx context.Context, before time.Time, limit int) ([]*model.InteractionEvent, error) {
	return db.ListStuckEvents(ctx, before, limit)
}
