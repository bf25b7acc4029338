package notification

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/herald/internal/handler"
	"github.com/jwalitptl/herald/internal/middleware"
	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/internal/sender"
	"github.com/jwalitptl/herald/internal/service/notification"
	"github.com/jwalitptl/herald/pkg/logger"
	"github.com/jwalitptl/herald/pkg/messaging"
)

// streamKeepAlive bounds how long the SSE loop blocks before emitting a
// comment frame, so dead connections are noticed.
const streamKeepAlive = 30 * time.Second

type Handler struct {
	service notification.Service
	broker  messaging.Broker
	logger  *logger.Logger
}

func NewHandler(service notification.Service, broker messaging.Broker, logger *logger.Logger) *Handler {
	return &Handler{service: service, broker: broker, logger: logger}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("", h.ListByUser)
		notifications.GET("/inapp", h.ListSent)
		notifications.GET("/stream", h.Stream)
		notifications.GET("/:id", h.GetByID)
		notifications.POST("/:id/read", h.MarkRead)
	}
}

type notificationResponse struct {
	ID        uuid.UUID `json:"id"`
	Title     *string   `json:"title"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(n *model.Notification) notificationResponse {
	resp := notificationResponse{
		ID:        n.ID,
		Message:   n.Message,
		Status:    string(n.Status),
		Channel:   string(n.Channel),
		CreatedAt: n.CreatedAt,
	}
	if n.Title.Valid {
		title := n.Title.String
		resp.Title = &title
	}
	return resp
}

func toResponses(notifications []*model.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		out = append(out, toResponse(n))
	}
	return out
}

func (h *Handler) ListByUser(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unknown user"))
		return
	}

	var status *model.NotificationStatus
	if raw := c.Query("status"); raw != "" {
		s := model.NotificationStatus(raw)
		status = &s
	}

	limit := 20
	notifications, err := h.service.NotificationsByUser(c.Request.Context(), userID, status, limit)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(toResponses(notifications)))
}

// ListSent returns delivered in-app notifications for the caller.
func (h *Handler) ListSent(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unknown user"))
		return
	}

	notifications, err := h.service.GetSent(c.Request.Context(), userID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(toResponses(notifications)))
}

// Stream is the live transport: a server-sent-event loop fed by the
// broker channel the in-app sender publishes to. The connection opens
// with a snapshot of already-delivered notifications, then forwards
// deliveries for this user as they land.
func (h *Handler) Stream(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unknown user"))
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ctx := c.Request.Context()

	deliveries, err := h.broker.Subscribe(ctx, sender.DeliveryChannel)
	if err != nil {
		h.logger.Error(err, "stream subscribe failed", "user_id", userID.String())
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("stream unavailable"))
		return
	}

	backlog, err := h.service.GetSent(ctx, userID)
	if err != nil {
		h.logger.Error(err, "stream backlog failed", "user_id", userID.String())
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("stream unavailable"))
		return
	}
	for _, n := range backlog {
		c.SSEvent("message", toResponse(n))
	}
	c.Writer.Flush()

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case raw, open := <-deliveries:
			if !open {
				return false
			}
			var event model.DeliveryEvent
			if err := json.Unmarshal(raw, &event); err != nil {
				h.logger.Error(err, "stream event decode failed")
				return true
			}
			if event.UserID != userID {
				return true
			}
			c.SSEvent("message", event)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().UTC())
			return true
		}
	})
}

func (h *Handler) GetByID(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unknown user"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return
	}

	n, err := h.service.NotificationByID(c.Request.Context(), id, userID)
	if err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(toResponse(n)))
}

func (h *Handler) MarkRead(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("unknown user"))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid notification ID"))
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), id, userID); err != nil {
		handler.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"status": "ok"}))
}
