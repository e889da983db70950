package handler

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/dealercare/service"
	"github.com/gin-gonic/gin"
)

// OrderHandler 后台工单管理
type OrderHandler struct {
	orderSvc *service.OrderService
	videoSvc *service.VideoService
}

func NewOrderHandler(orderSvc *service.OrderService, videoSvc *service.VideoService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc, videoSvc: videoSvc}
}

// List 工单列表
// GET /api/v1/admin/services?search=&page=&page_size=
func (h *OrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	search := c.Query("search")

	orders, total, err := h.orderSvc.List(c.Request.Context(), page, pageSize, search)
	if err != nil {
		InternalError(c, "获取工单列表失败: "+err.Error())
		return
	}

	Success(c, ListResponse{
		Items: orders,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages(total, pageSize),
		},
	})
}

// Get 工单详情（完整上报视图）
// GET /api/v1/admin/services/:id
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的工单ID")
		return
	}

	order, err := h.orderSvc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "工单不存在")
			return
		}
		InternalError(c, "查询工单失败: "+err.Error())
		return
	}

	data := gin.H{
		"service":    order,
		"payload":    h.orderSvc.Payload(order),
		"public_url": "/services/" + order.PublicURL + "/show",
	}
	if video, err := h.videoSvc.Get(c.Request.Context(), order.ID); err == nil {
		data["video"] = video
		data["video_url"] = fmt.Sprintf("/video/play/%d", video.ID)
	}

	Success(c, data)
}

// Delete 删除工单
// DELETE /api/v1/admin/services/:id
func (h *OrderHandler) Delete(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的工单ID")
		return
	}

	// 有视频先删视频（文件与截图跟着走）
	if err := h.videoSvc.Delete(c.Request.Context(), id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		InternalError(c, "删除视频失败: "+err.Error())
		return
	}

	if err := h.orderSvc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "工单不存在")
			return
		}
		InternalError(c, "删除工单失败: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "deleted"})
}
