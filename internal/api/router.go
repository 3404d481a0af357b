package api

import (
	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware())
	r.Use(RequestIDMiddleware())

	r.GET("/access", h.Access)
	r.GET("/status", h.Status)
	r.GET("/remove", h.Remove)
	r.GET("/remove-all", h.RemoveAll)
	r.GET("/events", h.Events)
	r.GET("/health", h.Health)

	return r
}
