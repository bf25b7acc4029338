package event

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/herald/internal/handler"
	"github.com/jwalitptl/herald/internal/middleware"
	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/internal/service/event"
)

type Handler struct {
	service event.Service
}

func NewHandler(service event.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	events := r.Group("/events")
	{
		events.POST("/system", h.HandleSystemEvent)
		events.POST("/custom", h.HandleCustomEvent)
	}
}

type systemEventRequest struct {
	Type    string                 `json:"type" binding:"required"`
	Payload map[string]interface{} `json:"payload"`
}

type customEventRequest struct {
	Title    string `json:"title" binding:"required"`
	Message  string `json:"message" binding:"required"`
	Category string `json:"category" binding:"required"`
}

func (h *Handler) HandleSystemEvent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unknown user"))
		return
	}

	var req systemEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.HandleSystemEvent(c.Request.Context(), model.EventType(req.Type), userID, req.Payload); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "ok"}))
}

func (h *Handler) HandleCustomEvent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unknown user"))
		return
	}

	var req customEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := h.service.HandleCustomEvent(c.Request.Context(), userID, req.Title, req.Message, model.EventCategory(req.Category)); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "ok"}))
}
