package handler

import (
	"errors"
	"net/http"
	"strconv"

	"file-share-bot/internal/middleware"
	"file-share-bot/internal/service"
	"file-share-bot/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// GetStats 返回用户数、文件数等统计信息。
func (h *AdminHandler) GetStats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		log.Error("GetStats: Failed to load stats", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取统计信息失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": stats})
}

// GetSettings 返回设置存储中的全部键值。
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.adminService.Settings(c.Request.Context())
	if err != nil {
		log.Error("GetSettings: Failed to load settings", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取设置失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": settings})
}

// AddForceSubChannelRequest 定义了添加强制订阅频道 API 的请求体结构。
type AddForceSubChannelRequest struct {
	ChannelID int64 `json:"channelId" binding:"required"`
}

// AddForceSubChannel 处理添加强制订阅频道的请求。
func (h *AdminHandler) AddForceSubChannel(c *gin.Context) {
	var req AddForceSubChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("AddForceSubChannel: Invalid request payload, error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}

	detail, added, err := h.adminService.AddForceSubChannel(c.Request.Context(), req.ChannelID)
	if errors.Is(err, service.ErrBotNotAdmin) {
		c.JSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "message": "机器人不是该频道的管理员", "data": detail})
		return
	}
	if err != nil {
		log.Error("AddForceSubChannel: Failed to add channel", err)
		c.JSON(http.StatusBadGateway, gin.H{"code": http.StatusBadGateway, "message": "无法访问该频道", "data": nil})
		return
	}

	log.Infof("Admin %d added force-sub channel %d via API (new: %t)", c.GetInt64(middleware.ContextUserID), req.ChannelID, added)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"channel": detail, "added": added}})
}

// RemoveForceSubChannel 处理移除强制订阅频道的请求。
func (h *AdminHandler) RemoveForceSubChannel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的频道 ID", "data": nil})
		return
	}
	removed, err := h.adminService.RemoveForceSubChannel(c.Request.Context(), id)
	if err != nil {
		log.Error("RemoveForceSubChannel: Failed to remove channel", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "移除频道失败", "data": nil})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "频道不在列表中", "data": nil})
		return
	}
	log.Infof("Admin %d removed force-sub channel %d via API", c.GetInt64(middleware.ContextUserID), id)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// SetAutoDeleteTimeRequest 定义了修改自动删除时长 API 的请求体结构。
type SetAutoDeleteTimeRequest struct {
	Seconds *int `json:"seconds" binding:"required"`
}

// SetAutoDeleteTime 处理修改自动删除时长的请求，0 表示关闭。
func (h *AdminHandler) SetAutoDeleteTime(c *gin.Context) {
	var req SetAutoDeleteTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	err := h.adminService.SetAutoDeleteTime(c.Request.Context(), *req.Seconds)
	if errors.Is(err, service.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "时长必须为 0 或正数", "data": nil})
		return
	}
	if err != nil {
		log.Error("SetAutoDeleteTime: Failed to save setting", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "保存设置失败", "data": nil})
		return
	}
	log.Infof("Admin %d changed auto-delete time to %ds via API", c.GetInt64(middleware.ContextUserID), *req.Seconds)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"seconds":  *req.Seconds,
		"readable": service.HumanDuration(*req.Seconds),
	}})
}

// CreateLinkRequest 定义了生成分享链接 API 的请求体结构。Last 为空或等于 First 时生成单文件链接。
type CreateLinkRequest struct {
	First int `json:"first" binding:"required"`
	Last  int `json:"last"`
}

// CreateLink 处理生成深链接的请求。
func (h *AdminHandler) CreateLink(c *gin.Context) {
	var req CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	link, err := h.adminService.CreateLink(req.First, req.Last)
	switch {
	case errors.Is(err, service.ErrBatchOrder), errors.Is(err, service.ErrBatchTooLarge), errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
		return
	case err != nil:
		log.Error("CreateLink: Failed to create link", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "生成链接失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"link": link}})
}

// GetFile 返回注册表中的一条文件记录。
func (h *AdminHandler) GetFile(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的文件 ID", "data": nil})
		return
	}
	view, err := h.adminService.GetFile(c.Request.Context(), id)
	if errors.Is(err, service.ErrFileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文件不存在", "data": nil})
		return
	}
	if err != nil {
		log.Error("GetFile: Failed to load file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取文件失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": view})
}

// DeleteFile 从注册表中删除一条文件记录，之后该文件的链接不再可用。
func (h *AdminHandler) DeleteFile(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的文件 ID", "data": nil})
		return
	}
	deleted, err := h.adminService.DeleteFile(c.Request.Context(), id)
	if err != nil {
		log.Error("DeleteFile: Failed to delete file", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "删除文件失败", "data": nil})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "文件不存在", "data": nil})
		return
	}
	log.Infof("Admin %d deleted file %d via API", c.GetInt64(middleware.ContextUserID), id)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "File deleted successfully", "data": nil})
}
