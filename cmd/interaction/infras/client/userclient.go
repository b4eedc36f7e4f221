package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"EngageHub.com/config"
	"EngageHub.com/pkg/constants"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/go-redis/redis"
)

// UserClient 用户服务的HTTP客户端，带Redis读穿缓存
// 查询失败时退化为占位信息，绝不阻塞互动主链路
type UserClient struct {
	httpClient *client.Client
	cache      redis.Cmdable
	baseURL    string
	timeout    time.Duration
}

// UserInfo 评论展示所需的用户摘要
type UserInfo struct {
	UserId    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	AvatarUrl string `json:"avatar_url"`
}

type userInfoResponse struct {
	Code int64     `json:"code"`
	Msg  string    `json:"msg"`
	Data *UserInfo `json:"data"`
}

func NewUserClient(cache redis.Cmdable) (*UserClient, error) {
	timeout := time.Duration(config.ConfigInfo.UserService.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 2 * time.Second
	}

	c, err := client.NewClient(
		client.WithDialTimeout(timeout),
		client.WithClientReadTimeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user service client: %w", err)
	}

	return &UserClient{
		httpClient: c,
		cache:      cache,
		baseURL:    config.ConfigInfo.UserService.Addr,
		timeout:    timeout,
	}, nil
}

// GetUserInfo 先查缓存，未命中时走用户服务并回填
func (uc *UserClient) GetUserInfo(ctx context.Context, userId int64) *UserInfo {
	if info := uc.getFromCache(ctx, userId); info != nil {
		return info
	}

	info, err := uc.fetchUserInfo(ctx, userId)
	if err != nil {
		hlog.CtxWarnf(ctx, "fetch user info failed for %d: %v, using placeholder", userId, err)
		return defaultUserInfo(userId)
	}

	uc.setToCache(ctx, info)
	return info
}

// BatchGetUserInfo 批量获取用户摘要，单个失败不影响其他
func (uc *UserClient) BatchGetUserInfo(ctx context.Context, userIds []int64) map[int64]*UserInfo {
	result := make(map[int64]*UserInfo, len(userIds))
	seen := make(map[int64]struct{}, len(userIds))
	for _, userId := range userIds {
		if _, ok := seen[userId]; ok {
			continue
		}
		seen[userId] = struct{}{}
		result[userId] = uc.GetUserInfo(ctx, userId)
	}
	return result
}

func (uc *UserClient) fetchUserInfo(ctx context.Context, userId int64) (*UserInfo, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetRequestURI(fmt.Sprintf("%s/user/info?user_id=%d", uc.baseURL, userId))
	req.SetMethod("GET")

	reqCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	if err := uc.httpClient.Do(reqCtx, req, resp); err != nil {
		return nil, fmt.Errorf("user service request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("user service returned status %d", resp.StatusCode())
	}

	var body userInfoResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("failed to decode user info response: %w", err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("user %d not found", userId)
	}
	return body.Data, nil
}

func (uc *UserClient) getFromCache(ctx context.Context, userId int64) *UserInfo {
	if uc.cache == nil {
		return nil
	}
	val, err := uc.cache.Get(fmt.Sprintf(constants.UserInfoCacheKey, userId)).Result()
	if err != nil {
		return nil
	}
	var info UserInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return nil
	}
	return &info
}

func (uc *UserClient) setToCache(ctx context.Context, info *UserInfo) {
	if uc.cache == nil || info == nil {
		return
	}
	b, err := json.Marshal(info)
	if err != nil {
		return
	}
	uc.cache.Set(fmt.Sprintf(constants.UserInfoCacheKey, info.UserId), b, constants.UserInfoCacheTTL)
}

func defaultUserInfo(userId int64) *UserInfo {
	return &UserInfo{
		UserId:   userId,
		UserName: fmt.Sprintf("user_%d", userId),
	}
}
