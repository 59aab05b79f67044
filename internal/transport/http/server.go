package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServer создает и настраивает HTTP-роутер с middleware.
// Регистрирует эндпоинты API и /metrics для Prometheus.
func NewServer(log *slog.Logger, h *Handler) http.Handler {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		corsMiddleware(),
		requestIDMiddleware(),
		loggingMiddleware(log),
		metricsMiddleware(),
	)

	api := router.Group("/api")
	api.GET("/news", h.getNews)
	api.POST("/news/read", h.markRead)
	api.GET("/feed", h.getFeed)
	api.GET("/stream", h.stream)
	api.POST("/refresh", h.refresh)
	api.POST("/refresh/cancel", h.cancelRefresh)
	api.GET("/sources", h.listSources)
	api.POST("/sources", h.addSource)
	api.DELETE("/sources", h.removeSource)
	api.PUT("/sources/tier", h.updateTier)
	api.GET("/health", h.healthCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}
