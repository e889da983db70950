package handler

import (
	"errors"
	"mime/multipart"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/dealercare/service"
	"github.com/gin-gonic/gin"
)

// DealerHandler 经销商管理
type DealerHandler struct {
	svc *service.DealerService
}

func NewDealerHandler(svc *service.DealerService) *DealerHandler {
	return &DealerHandler{svc: svc}
}

func (h *DealerHandler) dealerView(c *gin.Context, dealer *entity.Dealer) gin.H {
	return gin.H{
		"dealer":   dealer,
		"logo_url": h.svc.LogoURL(c.Request.Context(), dealer),
	}
}

// List 经销商列表
// GET /api/v1/admin/dealers?search=&page=&page_size=
func (h *DealerHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	search := c.Query("search")

	dealers, total, err := h.svc.List(c.Request.Context(), page, pageSize, search)
	if err != nil {
		InternalError(c, "获取经销商列表失败: "+err.Error())
		return
	}

	Success(c, ListResponse{
		Items: dealers,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages(total, pageSize),
		},
	})
}

// ListAll 全量经销商（下拉选择用）
// GET /api/v1/admin/dealers/all
func (h *DealerHandler) ListAll(c *gin.Context) {
	dealers, err := h.svc.ListAll(c.Request.Context())
	if err != nil {
		InternalError(c, "获取经销商列表失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": dealers})
}

// Get 经销商详情
// GET /api/v1/admin/dealers/:id
func (h *DealerHandler) Get(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的经销商ID")
		return
	}
	dealer, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "经销商不存在")
			return
		}
		InternalError(c, "查询经销商失败: "+err.Error())
		return
	}
	Success(c, h.dealerView(c, dealer))
}

func bindDealerForm(c *gin.Context) (service.DealerInput, *multipart.FileHeader, bool) {
	var input service.DealerInput
	if err := c.ShouldBind(&input); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return input, nil, false
	}
	logo, _ := c.FormFile("logo")
	return input, logo, true
}

// Create 新建经销商（multipart，含可选logo）
// POST /api/v1/admin/dealers
func (h *DealerHandler) Create(c *gin.Context) {
	input, logo, ok := bindDealerForm(c)
	if !ok {
		return
	}

	dealer, err := h.svc.Create(c.Request.Context(), input, logo)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrExternalIDTaken):
			BadRequest(c, "外部编号已被占用")
		case errors.Is(err, service.ErrBadLogo):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "创建经销商失败: "+err.Error())
		}
		return
	}
	Created(c, h.dealerView(c, dealer))
}

// Update 编辑经销商
// PUT /api/v1/admin/dealers/:id
func (h *DealerHandler) Update(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的经销商ID")
		return
	}
	input, logo, ok := bindDealerForm(c)
	if !ok {
		return
	}

	dealer, err := h.svc.Update(c.Request.Context(), id, input, logo)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "经销商不存在")
		case errors.Is(err, service.ErrExternalIDTaken):
			BadRequest(c, "外部编号已被占用")
		case errors.Is(err, service.ErrBadLogo):
			BadRequest(c, err.Error())
		default:
			InternalError(c, "更新经销商失败: "+err.Error())
		}
		return
	}
	Success(c, h.dealerView(c, dealer))
}

// Delete 删除经销商
// DELETE /api/v1/admin/dealers/:id
func (h *DealerHandler) Delete(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的经销商ID")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "经销商不存在")
			return
		}
		InternalError(c, "删除经销商失败: "+err.Error())
		return
	}
	Success(c, gin.H{"message": "deleted"})
}
