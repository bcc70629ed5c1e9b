package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// statusErrorText текст статуса в нижнем регистре, для неизвестных статусов - internal server error.
func statusErrorText(status int) string {
	text := http.StatusText(status)
	if text == "" || status < http.StatusBadRequest {
		text = http.StatusText(http.StatusInternalServerError)
	}
	return strings.ToLower(text)
}

// Errors отдает клиенту первую ошибку из c.Errors, если обработчик сам не записал тело ответа.
// Текст показывается только для gin.ErrorTypePublic, для остальных - текст статуса.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Size() > 0 {
			return
		}

		// обрабатываем только первую ошибку
		firstErr := c.Errors[0]
		var msg string
		if firstErr.IsType(gin.ErrorTypePublic) {
			msg = firstErr.Error()
		} else {
			msg = statusErrorText(c.Writer.Status())
		}

		accept := c.GetHeader("Accept")
		contentType := c.GetHeader("Content-Type")
		switch {
		case strings.Contains(accept, "application/json"),
			strings.Contains(contentType, "application/json"):
			c.JSON(c.Writer.Status(), gin.H{"error": msg})
		default:
			c.String(c.Writer.Status(), msg)
		}
		c.Abort()
	}
}
