package http

import (
	"time"

	"github.com/labstack/echo/v4"

	middleware "taskpact.com/taskpact/internal/http/middlewares"
)

func Register(e *echo.Echo, h *Handler, rateLimitPerMinute int) {
	e.Use(middleware.RateLimiter(rateLimitPerMinute, time.Minute))

	e.POST("/tasks", h.CreateTask)
	e.GET("/tasks", h.ListTasks)
	e.GET("/tasks/:id", h.GetTask)
	e.POST("/tasks/:id/proof", h.SubmitProof)
	e.POST("/tasks/:id/approve", h.Approve)
	e.POST("/tasks/:id/reject", h.Reject)
	e.POST("/tasks/:id/pause", h.Pause)
	e.POST("/tasks/:id/reassign", h.Reassign)
	e.GET("/tasks/:id/penalty", h.GetPenalty)

	e.GET("/events", h.Events)
	e.POST("/logout", h.Logout)
}
