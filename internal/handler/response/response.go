package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the envelope of every admin API reply. Code is a short
// machine-readable tag the dashboard can branch on.
type Response struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: "ok", Data: data})
}

func Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, Response{Code: code, Message: message})
}
