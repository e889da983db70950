package handler

import (
	"errors"

	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/dealercare/service"
	"github.com/gin-gonic/gin"
)

// UserHandler 后台用户管理
type UserHandler struct {
	svc       *service.UserService
	dealerSvc *service.DealerService
}

func NewUserHandler(svc *service.UserService, dealerSvc *service.DealerService) *UserHandler {
	return &UserHandler{svc: svc, dealerSvc: dealerSvc}
}

// List 用户列表
// GET /api/v1/admin/users?search=&page=&page_size=
func (h *UserHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	search := c.Query("search")

	users, total, err := h.svc.List(c.Request.Context(), page, pageSize, search)
	if err != nil {
		InternalError(c, "获取用户列表失败: "+err.Error())
		return
	}

	Success(c, ListResponse{
		Items: users,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: totalPages(total, pageSize),
		},
	})
}

// Get 用户详情
// GET /api/v1/admin/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的用户ID")
		return
	}
	user, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "用户不存在")
			return
		}
		InternalError(c, "查询用户失败: "+err.Error())
		return
	}
	Success(c, gin.H{"user": user})
}

// Create 新建用户
// POST /api/v1/admin/users
func (h *UserHandler) Create(c *gin.Context) {
	var input service.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	user, err := h.svc.Create(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			BadRequest(c, "邮箱已被占用")
			return
		}
		InternalError(c, "创建用户失败: "+err.Error())
		return
	}
	Created(c, gin.H{"user": user})
}

// Update 编辑用户
// PUT /api/v1/admin/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的用户ID")
		return
	}
	var input service.UserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	user, err := h.svc.Update(c.Request.Context(), id, input)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "用户不存在")
		case errors.Is(err, service.ErrEmailTaken):
			BadRequest(c, "邮箱已被占用")
		default:
			InternalError(c, "更新用户失败: "+err.Error())
		}
		return
	}
	Success(c, gin.H{"user": user})
}

// Delete 删除用户，禁止删自己
// DELETE /api/v1/admin/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := ParseUintParam(c, "id")
	if !ok {
		BadRequest(c, "无效的用户ID")
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id, GetUserID(c)); err != nil {
		switch {
		case errors.Is(err, service.ErrSelfDelete):
			Forbidden(c, "不能删除自己的账号")
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "用户不存在")
		default:
			InternalError(c, "删除用户失败: "+err.Error())
		}
		return
	}
	Success(c, gin.H{"message": "deleted"})
}
