package service

import "EngageHub.com/cmd/model"

// ToggleLikeRequest 点赞切换请求，同一接口既点赞也取消
type ToggleLikeRequest struct {
	UserId     int64  `json:"user_id" query:"user_id" vd:"$>0"`
	TargetType string `json:"target_type" query:"target_type" vd:"len($)>0"`
	TargetId   int64  `json:"target_id" query:"target_id" vd:"$>0"`
	DeviceType string `json:"device_type" query:"device_type"`
	DeviceId   string `json:"device_id" query:"device_id"`
}

type ToggleLikeResponse struct {
	IsLiked   bool  `json:"is_liked"`
	LikeCount int64 `json:"like_count"`
}

type LikeStatusRequest struct {
	UserId     int64  `json:"user_id" query:"user_id" vd:"$>0"`
	TargetType string `json:"target_type" query:"target_type" vd:"len($)>0"`
	TargetId   int64  `json:"target_id" query:"target_id" vd:"$>0"`
}

type BatchLikeStatusRequest struct {
	UserId     int64   `json:"user_id" vd:"$>0"`
	TargetType string  `json:"target_type" vd:"len($)>0"`
	TargetIds  []int64 `json:"target_ids"`
}

type ListLikersRequest struct {
	TargetType string `json:"target_type" query:"target_type" vd:"len($)>0"`
	TargetId   int64  `json:"target_id" query:"target_id" vd:"$>0"`
	PageNum    int64  `json:"page_num" query:"page_num"`
	PageSize   int64  `json:"page_size" query:"page_size"`
}

type ListLikersResponse struct {
	UserIds []int64 `json:"user_ids"`
	Total   int64   `json:"total"`
}

type AddCommentRequest struct {
	UserId     int64    `json:"user_id" vd:"$>0"`
	TargetType string   `json:"target_type" vd:"len($)>0"`
	TargetId   int64    `json:"target_id" vd:"$>0"`
	ParentId   int64    `json:"parent_id"`
	Content    string   `json:"content"`
	ImageRefs  []string `json:"image_refs"`
	Links      []string `json:"links"`
}

type GetCommentsRequest struct {
	TargetType string `json:"target_type" query:"target_type" vd:"len($)>0"`
	TargetId   int64  `json:"target_id" query:"target_id" vd:"$>0"`
	PageNum    int64  `json:"page_num" query:"page_num"`
	PageSize   int64  `json:"page_size" query:"page_size"`
	SortBy     string `json:"sort_by" query:"sort_by"`
}

type GetCommentsResponse struct {
	Comments []*model.Comment `json:"comments"`
	Total    int64            `json:"total"`
}

type GetRepliesRequest struct {
	ParentId int64 `json:"parent_id" query:"parent_id" vd:"$>0"`
	PageNum  int64 `json:"page_num" query:"page_num"`
	PageSize int64 `json:"page_size" query:"page_size"`
}

type UpdateCommentRequest struct {
	UserId    int64  `json:"user_id" vd:"$>0"`
	CommentId int64  `json:"comment_id" vd:"$>0"`
	Content   string `json:"content"`
}

type DeleteCommentRequest struct {
	UserId    int64 `json:"user_id" vd:"$>0"`
	CommentId int64 `json:"comment_id" vd:"$>0"`
}

type RecoverTargetRequest struct {
	TargetType string `json:"target_type" vd:"len($)>0"`
	TargetId   int64  `json:"target_id" vd:"$>0"`
}
