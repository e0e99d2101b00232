package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/uart-panel/internal/errors"
	"github.com/wfunc/uart-panel/internal/middleware"
	"github.com/wfunc/uart-panel/internal/runner"
	"github.com/wfunc/uart-panel/internal/websocket"
	"go.uber.org/zap"
)

// Router API路由器
type Router struct {
	engine *gin.Engine
	panel  *PanelHandler
	hub    *websocket.Hub
	wsPath string
	log    *zap.Logger
}

// NewRouter 创建路由器
// hub为nil时不注册WebSocket路由
func NewRouter(controller runner.Controller, hub *websocket.Hub, wsPath string, log *zap.Logger) *Router {
	engine := gin.New()

	// 全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery())
	engine.Use(middleware.RequestLogger())

	router := &Router{
		engine: engine,
		panel:  NewPanelHandler(controller),
		hub:    hub,
		wsPath: wsPath,
		log:    log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.panel.Health)

	v1 := r.engine.Group("/api/v1")
	{
		r.panel.RegisterRoutes(v1)
	}

	// 接口文档
	registerOpenAPIRoutes(r.engine)
	registerSwaggerRoutes(r.engine)

	if r.hub != nil && r.wsPath != "" {
		r.engine.GET(r.wsPath, gin.WrapF(r.hub.ServeWS))
		r.log.Info("WebSocket路由已注册", zap.String("path", r.wsPath))
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		err := apperrors.Newf(apperrors.ErrNotFound, "%s %s", c.Request.Method, c.Request.URL.Path)
		c.JSON(http.StatusNotFound, apperrors.NewErrorResponse(err, middleware.GetRequestID(c)))
	})
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
