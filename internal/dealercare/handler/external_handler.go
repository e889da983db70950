package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"

	"github.com/bitfantasy/dealercare/internal/dealercare/entity"
	"github.com/bitfantasy/dealercare/internal/dealercare/repository"
	"github.com/bitfantasy/dealercare/internal/dealercare/service"
	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

// ExternalHandler 外部系统对接：工单回传、缺陷报价、视频上传
type ExternalHandler struct {
	orderSvc  *service.OrderService
	defectSvc *service.DefectService
	videoSvc  *service.VideoService
}

func NewExternalHandler(orderSvc *service.OrderService, defectSvc *service.DefectService, videoSvc *service.VideoService) *ExternalHandler {
	return &ExternalHandler{
		orderSvc:  orderSvc,
		defectSvc: defectSvc,
		videoSvc:  videoSvc,
	}
}

// IngestOrder 工单回传（按 referenceObject.orderId 幂等）
// POST /api/v1/external/services
func (h *ExternalHandler) IngestOrder(c *gin.Context) {
	var payload service.IngestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	order, created, err := h.orderSvc.Upsert(c.Request.Context(), &payload)
	if err != nil {
		if errors.Is(err, service.ErrMissingOrderID) {
			BadRequest(c, err.Error())
			return
		}
		InternalError(c, "保存工单失败: "+err.Error())
		return
	}

	data := gin.H{
		"success":  true,
		"order_id": order.OrderID,
		"id":       order.ID,
	}
	if created {
		Created(c, data)
		return
	}
	Success(c, data)
}

// SubmitDefectsRequest 缺陷报价请求体
type SubmitDefectsRequest struct {
	ServiceID uint              `json:"service_id" binding:"required"`
	Defects   entity.DefectList `json:"defects" binding:"required,min=1"`
}

// SubmitDefects 缺陷报价提交
// POST /api/v1/external/video/defects
func (h *ExternalHandler) SubmitDefects(c *gin.Context) {
	var req SubmitDefectsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}
	for _, d := range req.Defects {
		if d.ID == "" || d.Title == "" {
			BadRequest(c, "每个缺陷必须带 id 和 title")
			return
		}
	}

	var actor *uint
	if id := GetUserID(c); id != 0 {
		actor = &id
	}

	order, err := h.defectSvc.SubmitDefects(c.Request.Context(), req.ServiceID, req.Defects, actor)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			NotFound(c, "工单不存在")
		case errors.Is(err, service.ErrVideoMissing):
			BadRequest(c, "工单视频缺失: "+err.Error())
		default:
			InternalError(c, "保存缺陷失败: "+err.Error())
		}
		return
	}

	Success(c, gin.H{
		"message": "defects saved, tasks updated",
		"tasks":   order.Tasks,
	})
}

// UploadChunks 分片上传视频
// POST /api/v1/external/video/upload-chunks
// multipart 字段：service_order_id、total_chunks、total_duration、
// 可选 timecodes（JSON）与 defects（JSON），分片文件 chunk_0..chunk_{N-1}
func (h *ExternalHandler) UploadChunks(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.PostForm("service_order_id"), 10, 64)
	if err != nil || orderID == 0 {
		BadRequest(c, "service_order_id 必填且为数字")
		return
	}
	totalChunks, err := strconv.Atoi(c.PostForm("total_chunks"))
	if err != nil || totalChunks < 1 {
		BadRequest(c, "total_chunks 必填且>=1")
		return
	}
	totalDuration, _ := strconv.ParseFloat(c.PostForm("total_duration"), 64)

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "读取上传文件失败: "+err.Error())
		return
	}

	// 分片全部到齐才动手
	chunks := make([]*multipart.FileHeader, 0, totalChunks)
	for i := 0; i < totalChunks; i++ {
		key := fmt.Sprintf("chunk_%d", i)
		files := form.File[key]
		if len(files) == 0 {
			BadRequest(c, "缺少分片 "+key)
			return
		}
		chunks = append(chunks, files[0])
	}

	var timecodes datatypes.JSON
	if tc := c.PostForm("timecodes"); tc != "" {
		if !json.Valid([]byte(tc)) {
			BadRequest(c, "timecodes 不是合法JSON")
			return
		}
		timecodes = datatypes.JSON(tc)
	}

	mimeType := chunks[0].Header.Get("Content-Type")
	video, err := h.videoSvc.SaveChunks(c.Request.Context(), uint(orderID), service.ChunkUpload{
		TotalDuration: totalDuration,
		Timecodes:     timecodes,
		MimeType:      mimeType,
		Chunks:        chunks,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "工单不存在")
			return
		}
		InternalError(c, "视频上传失败: "+err.Error())
		return
	}

	// 携带缺陷则顺手走缺陷合并与抽帧
	if raw := c.PostForm("defects"); raw != "" {
		var defects entity.DefectList
		if err := json.Unmarshal([]byte(raw), &defects); err != nil {
			BadRequest(c, "defects 不是合法JSON: "+err.Error())
			return
		}
		if len(defects) > 0 {
			var actor *uint
			if id := GetUserID(c); id != 0 {
				actor = &id
			}
			if _, err := h.defectSvc.SubmitDefects(c.Request.Context(), uint(orderID), defects, actor); err != nil {
				InternalError(c, "缺陷处理失败: "+err.Error())
				return
			}
		}
	}

	Success(c, gin.H{
		"success": true,
		"message": "video uploaded successfully",
		"video":   video,
	})
}

// UploadVideo 整文件上传
// POST /api/v1/external/video
func (h *ExternalHandler) UploadVideo(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.PostForm("service_order_id"), 10, 64)
	if err != nil || orderID == 0 {
		BadRequest(c, "service_order_id 必填且为数字")
		return
	}
	file, err := c.FormFile("video")
	if err != nil {
		BadRequest(c, "缺少视频文件")
		return
	}
	totalDuration, _ := strconv.ParseFloat(c.PostForm("total_duration"), 64)

	var timecodes datatypes.JSON
	if tc := c.PostForm("timecodes"); tc != "" {
		if !json.Valid([]byte(tc)) {
			BadRequest(c, "timecodes 不是合法JSON")
			return
		}
		timecodes = datatypes.JSON(tc)
	}

	video, err := h.videoSvc.SaveFile(c.Request.Context(), uint(orderID), file, totalDuration, timecodes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "工单不存在")
			return
		}
		InternalError(c, "视频上传失败: "+err.Error())
		return
	}
	Success(c, gin.H{
		"success": true,
		"video":   video,
	})
}

// ShowVideo 查询工单视频
// GET /api/v1/external/video?service_order_id=
func (h *ExternalHandler) ShowVideo(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Query("service_order_id"), 10, 64)
	if err != nil || orderID == 0 {
		BadRequest(c, "service_order_id 必填且为数字")
		return
	}

	video, err := h.videoSvc.Get(c.Request.Context(), uint(orderID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			Success(c, gin.H{"video": nil})
			return
		}
		InternalError(c, "查询视频失败: "+err.Error())
		return
	}

	Success(c, gin.H{
		"video": video,
		"url":   fmt.Sprintf("/video/play/%d", video.ID),
	})
}

// DeleteVideoRequest 删除视频请求体
type DeleteVideoRequest struct {
	VideoID uint `json:"video_id" binding:"required"`
}

// DeleteVideo 删除视频
// DELETE /api/v1/external/video
func (h *ExternalHandler) DeleteVideo(c *gin.Context) {
	var req DeleteVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "无效的请求参数: "+err.Error())
		return
	}

	if err := h.videoSvc.DeleteByID(c.Request.Context(), req.VideoID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "视频不存在")
			return
		}
		InternalError(c, "删除视频失败: "+err.Error())
		return
	}
	Success(c, gin.H{"success": true})
}
