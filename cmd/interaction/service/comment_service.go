package service

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"EngageHub.com/cmd/interaction/infras/client"
	"EngageHub.com/cmd/model"
	"EngageHub.com/config"
	"EngageHub.com/pkg/constants"
	"EngageHub.com/pkg/errno"
	"EngageHub.com/pkg/fanout"
	"EngageHub.com/pkg/moderation"
	"EngageHub.com/pkg/utils"
	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// CommentLimiter 评论频控能力，故障时放行不拦截
type CommentLimiter interface {
	CheckRateLimit(ctx context.Context, userId int64, limit int) (bool, error)
	CheckDuplicate(ctx context.Context, userId int64, content string, window time.Duration) (bool, error)
}

// UserProvider 用户摘要查询能力
type UserProvider interface {
	GetUserInfo(ctx context.Context, userId int64) *client.UserInfo
	BatchGetUserInfo(ctx context.Context, userIds []int64) map[int64]*client.UserInfo
}

// CommentService 评论服务：审核前置，通过后才可见、才广播
type CommentService struct {
	ctx       context.Context
	store     CommentStore
	pipeline  *moderation.Pipeline
	publisher EventPublisher
	registry  *fanout.Registry
	limiter   CommentLimiter
	users     UserProvider
	idgen     *utils.IDGenerator
}

func NewCommentService(ctx context.Context, store CommentStore, pipeline *moderation.Pipeline,
	publisher EventPublisher, registry *fanout.Registry, limiter CommentLimiter,
	users UserProvider, idgen *utils.IDGenerator) *CommentService {
	return &CommentService{
		ctx:       ctx,
		store:     store,
		pipeline:  pipeline,
		publisher: publisher,
		registry:  registry,
		limiter:   limiter,
		users:     users,
		idgen:     idgen,
	}
}

// AddComment 发布评论
// 状态机入口：审核通过APPROVED、待复核PENDING、拒绝REJECTED（留档不可见）
func (s *CommentService) AddComment(ctx context.Context, req *AddCommentRequest) (*model.Comment, error) {
	// 1. 参数验证
	if err := validateTarget(req.TargetType, req.TargetId); err != nil {
		return nil, err
	}
	contentLen := utf8.RuneCountInString(req.Content)
	if contentLen == 0 {
		return nil, errno.ParamErr.WithMessage("comment content is empty")
	}
	if contentLen > constants.MaxCommentLength {
		return nil, errno.ParamErr.WithMessage("comment content too long")
	}

	// 2. 父评论解析，回复的层级和根节点由父评论推导
	parentId, rootId, level := int64(0), int64(0), int32(0)
	if req.ParentId > 0 {
		parent, err := s.store.GetCommentInfo(ctx, req.ParentId)
		if err != nil {
			return nil, errno.MysqlErr.WithMessage(err.Error())
		}
		if parent == nil || parent.Status == constants.CommentStatusDeleted ||
			parent.Status == constants.CommentStatusRejected {
			return nil, errno.NotFoundErr.WithMessage("parent comment not found")
		}
		if parent.TargetType != req.TargetType || parent.TargetId != req.TargetId {
			return nil, errno.ParamErr.WithMessage("parent comment belongs to another target")
		}
		parentId = parent.CommentId
		level = parent.Level + 1
		rootId = parent.RootId
		if rootId == 0 {
			rootId = parent.CommentId
		}
	}

	// 3. 频控和重复检测，依赖故障时放行
	if ok, err := s.limiter.CheckRateLimit(ctx, req.UserId, config.ConfigInfo.Comment.RateLimitPerMinute); err != nil {
		hlog.CtxWarnf(ctx, "comment rate limit check failed, allowing: %v", err)
	} else if !ok {
		return nil, errno.RateLimitErr
	}
	window := time.Duration(config.ConfigInfo.Comment.DuplicateWindowSec) * time.Second
	if dup, err := s.limiter.CheckDuplicate(ctx, req.UserId, req.Content, window); err != nil {
		hlog.CtxWarnf(ctx, "comment duplicate check failed, allowing: %v", err)
	} else if dup {
		return nil, errno.RateLimitErr.WithMessage("duplicate comment in a short window")
	}

	// 4. 审核：快检足以定论的纯文本直接短路拒绝
	// 其余走全量审核，快检命中的最多进入人工复核，不会直接放行
	content := &moderation.Content{
		Text:      req.Content,
		ImageRefs: req.ImageRefs,
		Links:     req.Links,
	}
	quickHits := s.pipeline.QuickCheck(req.Content)
	modResult := s.pipeline.QuickReject(content)
	if modResult == nil {
		modResult = s.pipeline.Moderate(ctx, content)
	}
	verdict := modResult.Verdict
	if len(quickHits) > 0 && verdict == constants.VerdictApprove {
		verdict = constants.VerdictReview
	}

	status := constants.CommentStatusPending
	switch verdict {
	case constants.VerdictApprove:
		status = constants.CommentStatusApproved
	case constants.VerdictReject:
		status = constants.CommentStatusRejected
	}

	// 5. 落库，被拒绝的评论也留档供审计
	comment := &model.Comment{
		CommentId:        s.idgen.NextID(),
		UserId:           req.UserId,
		TargetType:       req.TargetType,
		TargetId:         req.TargetId,
		ParentId:         parentId,
		RootId:           rootId,
		Level:            level,
		Content:          req.Content,
		Status:           status,
		ModerationScore:  modResult.Score,
		ModerationLabels: strings.Join(modResult.Labels, ","),
		CreatedAt:        time.Now(),
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}

	if status == constants.CommentStatusRejected {
		hlog.CtxInfof(ctx, "comment %d rejected by moderation, labels=%s",
			comment.CommentId, comment.ModerationLabels)
		return nil, errno.ModerationRejected.WithMessage(
			"content rejected: " + comment.ModerationLabels)
	}

	// 6. 审核通过才计数、广播、发事件
	if status == constants.CommentStatusApproved {
		s.attachUserInfo(ctx, comment)
		go s.afterCommentApproved(comment)
	}

	return comment, nil
}

// afterCommentApproved 可见评论的异步后置：计数、实时推送、事件
func (s *CommentService) afterCommentApproved(comment *model.Comment) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.IncrCommentCount(ctx, comment.TargetType, comment.TargetId, 1); err != nil {
		hlog.CtxErrorf(ctx, "failed to incr comment count for %s:%d: %v",
			comment.TargetType, comment.TargetId, err)
	}
	if comment.ParentId > 0 {
		if err := s.store.IncrReplyCount(ctx, comment.ParentId, 1); err != nil {
			hlog.CtxErrorf(ctx, "failed to incr reply count for %d: %v", comment.ParentId, err)
		}
	}

	// 本实例的订阅者直接推，跨实例靠broker桥接
	s.registry.Publish(comment.TargetType, comment.TargetId, comment)

	payload, _ := json.Marshal(comment)
	s.publisher.Publish(ctx, &model.InteractionEvent{
		EventType:  constants.EventTypeCommentAdded,
		UserId:     comment.UserId,
		TargetType: comment.TargetType,
		TargetId:   comment.TargetId,
		Payload:    string(payload),
	})
}

// GetComments 目标下可见的顶级评论分页
func (s *CommentService) GetComments(ctx context.Context, req *GetCommentsRequest) (*GetCommentsResponse, error) {
	if err := validateTarget(req.TargetType, req.TargetId); err != nil {
		return nil, err
	}
	pageNum, pageSize := normalizePage(req.PageNum, req.PageSize)

	comments, err := s.store.ListTopComments(ctx, req.TargetType, req.TargetId, pageNum, pageSize, req.SortBy)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}
	if req.SortBy == constants.SortByHot {
		sortCommentsByHot(comments)
	}

	total, err := s.store.CountTopComments(ctx, req.TargetType, req.TargetId)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}

	s.attachUserInfoBatch(ctx, comments)
	return &GetCommentsResponse{Comments: comments, Total: total}, nil
}

// GetCommentReplies 某条评论下可见的回复分页
func (s *CommentService) GetCommentReplies(ctx context.Context, req *GetRepliesRequest) (*GetCommentsResponse, error) {
	parent, err := s.store.GetCommentInfo(ctx, req.ParentId)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}
	if parent == nil || parent.Status == constants.CommentStatusDeleted {
		return nil, errno.NotFoundErr.WithMessage("parent comment not found")
	}
	pageNum, pageSize := normalizePage(req.PageNum, req.PageSize)

	replies, err := s.store.ListReplies(ctx, req.ParentId, pageNum, pageSize)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}
	total, err := s.store.CountReplies(ctx, req.ParentId)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}

	s.attachUserInfoBatch(ctx, replies)
	return &GetCommentsResponse{Comments: replies, Total: total}, nil
}

// UpdateComment 仅作者可改，改后重新过审，已通过的评论可能回退
func (s *CommentService) UpdateComment(ctx context.Context, req *UpdateCommentRequest) (*model.Comment, error) {
	contentLen := utf8.RuneCountInString(req.Content)
	if contentLen == 0 || contentLen > constants.MaxCommentLength {
		return nil, errno.ParamErr.WithMessage("invalid comment content")
	}

	comment, err := s.store.GetCommentInfo(ctx, req.CommentId)
	if err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}
	if comment == nil || comment.Status == constants.CommentStatusDeleted {
		return nil, errno.NotFoundErr.WithMessage("comment not found")
	}
	if comment.UserId != req.UserId {
		return nil, errno.PermissionErr
	}
	if comment.Status == constants.CommentStatusRejected {
		return nil, errno.ParamErr.WithMessage("rejected comment cannot be updated")
	}

	wasVisible := comment.Status == constants.CommentStatusApproved

	content := &moderation.Content{Text: req.Content}
	quickHits := s.pipeline.QuickCheck(req.Content)
	modResult := s.pipeline.QuickReject(content)
	if modResult == nil {
		modResult = s.pipeline.Moderate(ctx, content)
	}
	verdict := modResult.Verdict
	if len(quickHits) > 0 && verdict == constants.VerdictApprove {
		verdict = constants.VerdictReview
	}

	status := constants.CommentStatusPending
	switch verdict {
	case constants.VerdictApprove:
		status = constants.CommentStatusApproved
	case constants.VerdictReject:
		status = constants.CommentStatusRejected
	}

	labels := strings.Join(modResult.Labels, ",")
	if err := s.store.UpdateCommentContent(ctx, req.CommentId, req.Content, status, modResult.Score, labels); err != nil {
		return nil, errno.MysqlErr.WithMessage(err.Error())
	}

	comment.Content = req.Content
	comment.Status = status
	comment.ModerationScore = modResult.Score
	comment.ModerationLabels = labels

	// 事件载荷和返回体共用同一份结构，用户信息必须在异步发布前填完
	s.attachUserInfo(ctx, comment)

	// 可见性发生回退时同步修正计数
	if wasVisible && status != constants.CommentStatusApproved {
		go s.afterCommentHidden(comment)
	}

	go s.publishCommentEvent(constants.EventTypeCommentUpdated, comment)

	if status == constants.CommentStatusRejected {
		return nil, errno.ModerationRejected.WithMessage("content rejected: " + labels)
	}

	return comment, nil
}

// DeleteComment 仅作者可删，软删除且不可恢复
func (s *CommentService) DeleteComment(ctx context.Context, req *DeleteCommentRequest) error {
	comment, err := s.store.GetCommentInfo(ctx, req.CommentId)
	if err != nil {
		return errno.MysqlErr.WithMessage(err.Error())
	}
	if comment == nil {
		return errno.NotFoundErr.WithMessage("comment not found")
	}
	if comment.UserId != req.UserId {
		return errno.PermissionErr
	}
	if comment.Status == constants.CommentStatusDeleted {
		return nil // 重复删除幂等
	}

	wasVisible := comment.Status == constants.CommentStatusApproved

	if err := s.store.SoftDeleteComment(ctx, req.CommentId); err != nil {
		return errno.MysqlErr.WithMessage(err.Error())
	}
	comment.Status = constants.CommentStatusDeleted

	if wasVisible {
		go s.afterCommentHidden(comment)
	}
	go s.publishCommentEvent(constants.EventTypeCommentDeleted, comment)

	return nil
}

// ModerateContent 独立的审核入口，供调试和接入方预检用
func (s *CommentService) ModerateContent(ctx context.Context, content *moderation.Content) *moderation.Result {
	return s.pipeline.Moderate(ctx, content)
}

// afterCommentHidden 评论从可见转为不可见后的计数回退
func (s *CommentService) afterCommentHidden(comment *model.Comment) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.store.IncrCommentCount(ctx, comment.TargetType, comment.TargetId, -1); err != nil {
		hlog.CtxErrorf(ctx, "failed to decr comment count for %s:%d: %v",
			comment.TargetType, comment.TargetId, err)
	}
	if comment.ParentId > 0 {
		if err := s.store.IncrReplyCount(ctx, comment.ParentId, -1); err != nil {
			hlog.CtxErrorf(ctx, "failed to decr reply count for %d: %v", comment.ParentId, err)
		}
	}
}

func (s *CommentService) publishCommentEvent(eventType string, comment *model.Comment) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, _ := json.Marshal(comment)
	s.publisher.Publish(ctx, &model.InteractionEvent{
		EventType:  eventType,
		UserId:     comment.UserId,
		TargetType: comment.TargetType,
		TargetId:   comment.TargetId,
		Payload:    string(payload),
	})
}

func (s *CommentService) attachUserInfo(ctx context.Context, comment *model.Comment) {
	if s.users == nil {
		return
	}
	if info := s.users.GetUserInfo(ctx, comment.UserId); info != nil {
		comment.UserName = info.UserName
		comment.UserAvatar = info.AvatarUrl
	}
}

func (s *CommentService) attachUserInfoBatch(ctx context.Context, comments []*model.Comment) {
	if s.users == nil || len(comments) == 0 {
		return
	}
	userIds := make([]int64, 0, len(comments))
	for _, c := range comments {
		userIds = append(userIds, c.UserId)
	}
	infos := s.users.BatchGetUserInfo(ctx, userIds)
	for _, c := range comments {
		if info, ok := infos[c.UserId]; ok && info != nil {
			c.UserName = info.UserName
			c.UserAvatar = info.AvatarUrl
		}
	}
}

// sortCommentsByHot 热度权重 = 点赞数×10 + 时间分（24小时半衰）
func sortCommentsByHot(comments []*model.Comment) {
	now := time.Now()
	weight := func(c *model.Comment) float64 {
		hours := now.Sub(c.CreatedAt).Hours()
		if hours < 0 {
			hours = 0
		}
		return float64(c.LikeCount)*10 + 100*math.Pow(0.5, hours/24)
	}
	sort.SliceStable(comments, func(i, j int) bool {
		return weight(comments[i]) > weight(comments[j])
	})
}
