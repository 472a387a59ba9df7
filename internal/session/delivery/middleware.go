package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"appointment-system/internal/session/usecase"
)

// SessionGuard rejects requests made without a signed-in session. The guarded
// handlers resolve the identity themselves through the same usecase, so the
// guard carries nothing into the context.
func SessionGuard(sessionUsecase usecase.SessionUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := sessionUsecase.Current(); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			c.Abort()
			return
		}
		c.Next()
	}
}
