package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/herald/pkg/errors"
)

type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// Error writes err with the HTTP status its code maps to, so callers
// can tell an ownership failure from a state machine violation.
func Error(c *gin.Context, err error) {
	c.JSON(statusFor(err), NewErrorResponse(err.Error()))
}

func statusFor(err error) int {
	switch apperrors.Code(err) {
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest
	case apperrors.ErrForbidden:
		return http.StatusForbidden
	case apperrors.ErrInvalidTransition:
		return http.StatusConflict
	case apperrors.ErrTemplateNotFound:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
