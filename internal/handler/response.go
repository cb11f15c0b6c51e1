package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// envelope is the shape of every API response. Data and Meta are set on
// success, Err on failure; clients can branch on the presence of "error".
type envelope struct {
	Data any            `json:"data,omitempty"`
	Meta map[string]any `json:"meta,omitempty"`
	Err  string         `json:"error,omitempty"`
}

func Ok(c *gin.Context, data any, meta map[string]any) {
	c.JSON(http.StatusOK, envelope{Data: data, Meta: meta})
}

func Error(c *gin.Context, status int, message string, meta map[string]any) {
	c.JSON(status, envelope{Err: message, Meta: meta})
}
