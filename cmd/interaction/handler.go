package main

import (
	"context"
	"encoding/json"
	"strconv"

	"EngageHub.com/cmd/interaction/service"
	"EngageHub.com/pkg/errno"
	"EngageHub.com/pkg/fanout"
	"EngageHub.com/pkg/moderation"
	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"
)

type Response struct {
	Code    int64       `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// SendResponse pack response
func SendResponse(c *app.RequestContext, err error, data interface{}) {
	Err := errno.ConvertErr(err)
	c.JSON(consts.StatusOK, Response{
		Code:    Err.ErrCode,
		Message: Err.ErrMsg,
		Data:    data,
	})
}

// Handlers 聚合各服务的HTTP入口
type Handlers struct {
	likeService        *service.LikeService
	commentService     *service.CommentService
	consistencyService *service.ConsistencyService
	registry           *fanout.Registry
}

func NewHandlers(likeService *service.LikeService, commentService *service.CommentService,
	consistencyService *service.ConsistencyService, registry *fanout.Registry) *Handlers {
	return &Handlers{
		likeService:        likeService,
		commentService:     commentService,
		consistencyService: consistencyService,
		registry:           registry,
	}
}

func (h *Handlers) ToggleLike(ctx context.Context, c *app.RequestContext) {
	var req service.ToggleLikeRequest
	if err := c.BindAndValidate(&req); err != nil {
		hlog.CtxInfof(ctx, "bind toggle like request failed: %v", err)
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	resp, err := h.likeService.ToggleLike(ctx, &req)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, resp)
}

func (h *Handlers) GetLikeCount(ctx context.Context, c *app.RequestContext) {
	targetType := c.Query("target_type")
	targetId, _ := strconv.ParseInt(c.Query("target_id"), 10, 64)

	count, err := h.likeService.GetLikeCount(ctx, targetType, targetId)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, map[string]int64{"like_count": count})
}

func (h *Handlers) IsLiked(ctx context.Context, c *app.RequestContext) {
	var req service.LikeStatusRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	liked, err := h.likeService.IsLiked(ctx, &req)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, map[string]bool{"is_liked": liked})
}

func (h *Handlers) BatchLikeStatus(ctx context.Context, c *app.RequestContext) {
	var req service.BatchLikeStatusRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	result, err := h.likeService.BatchLikeStatus(ctx, &req)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, result)
}

func (h *Handlers) ListLikers(ctx context.Context, c *app.RequestContext) {
	var req service.ListLikersRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	resp, err := h.likeService.ListLikers(ctx, &req)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, resp)
}

func (h *Handlers) AddComment(ctx context.Context, c *app.RequestContext) {
	var req service.AddCommentRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	comment, err := h.commentService.AddComment(ctx, &req)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, comment)
}

func (h *Handlers) GetComments(ctx context.Context, c *app.RequestContext) {
	var req service.GetCommentsRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	resp, err := h.commentService.GetComments(ctx, &req)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, resp)
}

func (h *Handlers) GetCommentReplies(ctx context.Context, c *app.RequestContext) {
	var req service.GetRepliesRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	resp, err := h.commentService.GetCommentReplies(ctx, &req)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, resp)
}

func (h *Handlers) UpdateComment(ctx context.Context, c *app.RequestContext) {
	var req service.UpdateCommentRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	comment, err := h.commentService.UpdateComment(ctx, &req)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, comment)
}

func (h *Handlers) DeleteComment(ctx context.Context, c *app.RequestContext) {
	var req service.DeleteCommentRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	if err := h.commentService.DeleteComment(ctx, &req); err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, nil)
}

func (h *Handlers) Moderate(ctx context.Context, c *app.RequestContext) {
	var content moderation.Content
	if err := c.BindAndValidate(&content); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	result := h.commentService.ModerateContent(ctx, &content)
	SendResponse(c, errno.Success, result)
}

func (h *Handlers) RecoverTarget(ctx context.Context, c *app.RequestContext) {
	var req service.RecoverTargetRequest
	if err := c.BindAndValidate(&req); err != nil {
		SendResponse(c, errno.ParamErr.WithMessage(err.Error()), nil)
		return
	}
	count, err := h.consistencyService.RecoverTarget(ctx, req.TargetType, req.TargetId)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, map[string]int64{"like_count": count})
}

func (h *Handlers) CheckTarget(ctx context.Context, c *app.RequestContext) {
	targetType := c.Query("target_type")
	targetId, _ := strconv.ParseInt(c.Query("target_id"), 10, 64)

	report, err := h.consistencyService.CheckTarget(ctx, targetType, targetId)
	if err != nil {
		SendResponse(c, errno.ConvertErr(err), nil)
		return
	}
	SendResponse(c, errno.Success, report)
}

func (h *Handlers) Ping(ctx context.Context, c *app.RequestContext) {
	SendResponse(c, errno.Success, "pong")
}

var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(c *app.RequestContext) bool {
		return true
	},
}

// SubscribeComments 实时评论订阅，连接断开即退订
func (h *Handlers) SubscribeComments(ctx context.Context, c *app.RequestContext) {
	targetType := c.Query("target_type")
	targetId, _ := strconv.ParseInt(c.Query("target_id"), 10, 64)
	if targetType == "" || targetId <= 0 {
		SendResponse(c, errno.ParamErr.WithMessage("invalid subscribe target"), nil)
		return
	}

	err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
		sub := h.registry.Subscribe(targetType, targetId)
		defer sub.Cancel()

		// 读协程只为感知客户端断开
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-done:
				return
			case comment, ok := <-sub.C:
				if !ok {
					return
				}
				b, err := json.Marshal(comment)
				if err != nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}
	})
	if err != nil {
		hlog.CtxErrorf(ctx, "websocket upgrade failed: %v", err)
		SendResponse(c, errno.ServiceErr.WithMessage("websocket upgrade failed"), nil)
	}
}
