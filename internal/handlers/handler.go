package handlers

import (
	"net/http"
	"time"

	"controlling_dehumidifier/internal/logger"
	"controlling_dehumidifier/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler serves the REST API and the state stream.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes registers every route. Everything except /health, /swagger and
// /auth requires a bearer token.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.accessLog)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)

	h.registerAuthRoutes(router)

	h.registerAPIRoutes(router)

	router.GET("/ws", h.requireUser(true), h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.requireUser(false))
	{
		h.registerDehumidifierRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerDehumidifierRoutes(api *gin.RouterGroup) {
	d := api.Group("/dehumidifier")
	{
		d.POST("/power/on", h.powerOn)
		d.POST("/power/off", h.powerOff)
		// Body example: {"mode":"SETPOINT","humidity_setpoint":45}
		d.POST("/mode", h.setMode)
		// Body example: {"fan_speed":"HIGH"}
		d.POST("/fan", h.setFanSpeed)
		d.GET("/state", h.getState)
		// Push producer, raw integer values
		d.POST("/ingest", h.ingestState)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

// accessLog writes one line per request; 5xx at warn, the rest at debug.
func (h *Handler) accessLog(c *gin.Context) {
	if h.log == nil {
		c.Next()
		return
	}
	start := time.Now()
	c.Next()

	kv := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"latency", time.Since(start),
	}
	if c.Writer.Status() >= http.StatusInternalServerError {
		h.log.Warnw("http_request", withUser(c, kv)...)
		return
	}
	h.log.Debugw("http_request", withUser(c, kv)...)
}
