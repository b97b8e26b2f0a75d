package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"raceday-api/apperror"
	"raceday-api/services"
	"raceday-api/utils"
)

// AdminSubjectKey holds the authenticated admin's name in the gin context.
const AdminSubjectKey = "admin_subject"

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// AdminAuth requires a valid admin bearer token. Every failure, including a
// missing header, is answered with 403.
func AdminAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := services.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			utils.SendError(c, http.StatusForbidden, services.UnauthorizedMessage)
			c.Abort()
			return
		}

		subject, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, apperror.ErrForbidden) {
				utils.SendError(c, http.StatusForbidden, services.UnauthorizedMessage)
			} else {
				utils.SendAppError(c, err)
			}
			c.Abort()
			return
		}

		c.Set(AdminSubjectKey, subject)
		c.Next()
	}
}
