package middleware

import (
	"collab_editor/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ErrorHandler отвечает на ошибку, добавленную через c.Error, если ответ еще не записан
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last()
		c.JSON(errors.HTTPStatusFromError(err.Err), gin.H{
			"error": errors.ClientMessage(err.Err),
		})
	}
}
