package handler

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/dealercare/service"
	"github.com/gin-gonic/gin"
)

// PublicHandler 客户侧页面：审批链接、决策提交、反馈、视频播放。
// 全部靠不可猜测的 publicUrl 鉴权，不走登录。
type PublicHandler struct {
	orderSvc    *service.OrderService
	decisionSvc *service.DecisionService
	reviewSvc   *service.ReviewService
	videoSvc    *service.VideoService
}

func NewPublicHandler(orderSvc *service.OrderService, decisionSvc *service.DecisionService, reviewSvc *service.ReviewService, videoSvc *service.VideoService) *PublicHandler {
	return &PublicHandler{
		orderSvc:    orderSvc,
		decisionSvc: decisionSvc,
		reviewSvc:   reviewSvc,
		videoSvc:    videoSvc,
	}
}

// Show 客户审批页面数据
// GET /services/:publicUrl/show
func (h *PublicHandler) Show(c *gin.Context) {
	publicURL := c.Param("publicUrl")

	order, err := h.orderSvc.GetByPublicURL(c.Request.Context(), publicURL)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "链接无效或已失效")
			return
		}
		InternalError(c, "查询工单失败: "+err.Error())
		return
	}

	// 首次打开链接记入审计历史
	if _, err := h.orderSvc.RecordStatus(c.Request.Context(), order, entity.StatusApprovalLinkOpened); err != nil {
		InternalError(c, "记录状态失败: "+err.Error())
		return
	}

	items, err := h.reviewSvc.BuildReviewItems(c.Request.Context(), order)
	if err != nil {
		InternalError(c, "构建审批条目失败: "+err.Error())
		return
	}

	data := gin.H{
		"service": h.orderSvc.Payload(order),
		"items":   items,
	}
	if video, err := h.videoSvc.Get(c.Request.Context(), order.ID); err == nil {
		data["video_url"] = fmt.Sprintf("/video/play/%d", video.ID)
	}

	Success(c, data)
}

// DecisionRequest 决策提交请求体
type DecisionRequest struct {
	Items []service.DecisionItem `json:"items" binding:"required,min=1"`
}

// SubmitDecisions 客户决策提交
// POST /services/:publicUrl/decisions
func (h *PublicHandler) SubmitDecisions(c *gin.Context) {
	publicURL := c.Param("publicUrl")

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	result, err := h.decisionSvc.ApplyDecisions(c.Request.Context(), publicURL, req.Items)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "链接无效或已失效")
			return
		}
		InternalError(c, "保存决策失败: "+err.Error())
		return
	}

	Success(c, result)
}

// SubmitFeedback 审批体验反馈
// POST /services/:publicUrl/review
func (h *PublicHandler) SubmitFeedback(c *gin.Context) {
	publicURL := c.Param("publicUrl")

	var input service.FeedbackInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	order, err := h.orderSvc.GetByPublicURL(c.Request.Context(), publicURL)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "链接无效或已失效")
			return
		}
		InternalError(c, "查询工单失败: "+err.Error())
		return
	}

	review, err := h.reviewSvc.SubmitFeedback(c.Request.Context(), order.ID, input)
	if err != nil {
		InternalError(c, "保存反馈失败: "+err.Error())
		return
	}
	Success(c, gin.H{"review": review})
}

// PlayVideo 浏览器内播放视频
// GET /video/play/:id
func (h *PublicHandler) PlayVideo(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的视频ID")
		return
	}

	path, mimeType, err := h.videoSvc.PlayPath(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, service.ErrVideoMissing) {
			NotFound(c, "视频不存在")
			return
		}
		InternalError(c, "读取视频失败: "+err.Error())
		return
	}

	c.Header("Content-Type", mimeType)
	c.Header("Content-Disposition", "inline")
	c.File(path)
}
