package handler

import (
	"fmt"
	"time"

	"github.com/bitfantasy/dealercare/internal/dealercare/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler 后台首页统计与导出
type AdminHandler struct {
	svc *service.DashboardService
}

func NewAdminHandler(svc *service.DashboardService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// Dashboard 首页统计
// GET /api/v1/admin/dashboard
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		InternalError(c, "获取统计失败: "+err.Error())
		return
	}
	Success(c, stats)
}

// ExportOrders 工单导出xlsx
// GET /api/v1/admin/services/export
func (h *AdminHandler) ExportOrders(c *gin.Context) {
	f, err := h.svc.ExportOrders(c.Request.Context())
	if err != nil {
		InternalError(c, "导出失败: "+err.Error())
		return
	}

	filename := fmt.Sprintf("service_orders_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "写出文件失败: "+err.Error())
		return
	}
}
