package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/hardware"
	"github.com/wfunc/uart-panel/internal/middleware"
	"github.com/wfunc/uart-panel/internal/runner"
)

// PanelHandler 面板API
type PanelHandler struct {
	controller runner.Controller
	listPorts  func() ([]string, error)
}

// NewPanelHandler 创建面板API
func NewPanelHandler(controller runner.Controller) *PanelHandler {
	return &PanelHandler{
		controller: controller,
		listPorts:  hardware.ListPorts,
	}
}

// KeyResponse 按键响应
type KeyResponse struct {
	Success bool `json:"success"`
	Key     int  `json:"key"`
}

// RegisterRoutes 注册路由
func (h *PanelHandler) RegisterRoutes(router *gin.RouterGroup) {
	panel := router.Group("/panel")
	{
		panel.GET("/status", h.GetStatus)
		panel.POST("/keys/:key", h.PressKey)
		panel.GET("/ports", h.ListPorts)
	}
}

// Health 健康检查
// 链路关闭时返回503
func (h *PanelHandler) Health(c *gin.Context) {
	status := h.controller.Status()
	if !status.LinkOpen {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "degraded",
			"message":    "串口未连接",
			"last_error": status.Stats.LastError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
		"device":  status.DevicePath,
	})
}

// GetStatus 获取面板状态
func (h *PanelHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Status())
}

// PressKey 按键
func (h *PanelHandler) PressKey(c *gin.Context) {
	key, err := strconv.Atoi(c.Param("key"))
	if err != nil {
		h.fail(c, apperrors.Newf(apperrors.ErrInvalidParam, "invalid key %q", c.Param("key")))
		return
	}

	if err := h.controller.PressKey(key); err != nil {
		h.fail(c, apperrors.Wrap(err, apperrors.ErrCommandFailed))
		return
	}

	c.JSON(http.StatusAccepted, KeyResponse{Success: true, Key: key})
}

// ListPorts 列出系统串口
func (h *PanelHandler) ListPorts(c *gin.Context) {
	ports, err := h.listPorts()
	if err != nil {
		h.fail(c, apperrors.Wrap(err, apperrors.ErrDeviceNotFound))
		return
	}
	if ports == nil {
		ports = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"ports": ports})
}

func (h *PanelHandler) fail(c *gin.Context, err *apperrors.AppError) {
	c.JSON(err.HTTPStatus(), apperrors.NewErrorResponse(err, middleware.GetRequestID(c)))
}
