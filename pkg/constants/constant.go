package constants

import "time"

// 互动目标类型
const (
	TargetTypeMoment  = "MOMENT"
	TargetTypeComment = "COMMENT"
	TargetTypeMessage = "MESSAGE"
)

// 点赞状态
const (
	LikeStatusActive    = "ACTIVE"
	LikeStatusCancelled = "CANCELLED"
)

// 评论状态机：PENDING -> APPROVED/REJECTED -> DELETED（终态）
const (
	CommentStatusPending  = "PENDING"
	CommentStatusApproved = "APPROVED"
	CommentStatusRejected = "REJECTED"
	CommentStatusDeleted  = "DELETED"
)

// 互动事件类型
const (
	EventTypeLikeAdded      = "LIKE_ADDED"
	EventTypeLikeRemoved    = "LIKE_REMOVED"
	EventTypeCommentAdded   = "COMMENT_ADDED"
	EventTypeCommentUpdated = "COMMENT_UPDATED"
	EventTypeCommentDeleted = "COMMENT_DELETED"
)

// 事件优先级，未指定时按NORMAL处理
const (
	EventPriorityHigh   = "HIGH"
	EventPriorityNormal = "NORMAL"
	EventPriorityLow    = "LOW"
)

// 事件处理状态
const (
	EventStatusCreated    = "CREATED"
	EventStatusProcessing = "PROCESSING"
	EventStatusProcessed  = "PROCESSED"
	EventStatusRetrying   = "RETRYING"
	EventStatusFailed     = "FAILED"
	EventStatusDeadLetter = "DEAD_LETTER"
)

// 审核结论
const (
	VerdictApprove = "APPROVE"
	VerdictReview  = "REVIEW"
	VerdictReject  = "REJECT"
)

// Redis键模板
const (
	LikeCountKey     = "like:count:%s:%d"  // like:count:{targetType}:{targetId}
	UserLikeKey      = "like:user:%d"      // like:user:{userId}
	TargetLikerKey   = "like:target:%s:%d" // like:target:{targetType}:{targetId}
	CommentLimitKey  = "comment:limit:%d"  // comment:limit:{userId}
	CommentDedupKey  = "comment:dedup:%d"  // comment:dedup:{userId}
	UserInfoCacheKey = "user:info:%d"      // user:info:{userId}
)

// 缓存过期时间
const (
	LikeCacheTTL     = 7 * 24 * time.Hour
	UserInfoCacheTTL = 30 * time.Minute
)

// 业务限制
const (
	MaxCommentLength  = 500
	MaxTextScanLength = 5000
	MaxPageSize       = 100
	DefaultPageSize   = 20
	MaxRetryAttempts  = 3
	EnricherTimeout   = 3 * time.Second
)

// 评论排序方式
const (
	SortByLatest = "latest"
	SortByOldest = "oldest"
	SortByHot    = "hot"
)
