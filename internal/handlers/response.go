package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/iamCapel/mopc-reportes/internal/middleware"
	"github.com/iamCapel/mopc-reportes/internal/models"
)

// StatusFor maps a Result code onto an HTTP status.
func StatusFor(code models.ErrorCode) int {
	switch code {
	case models.CodeValidation:
		return http.StatusBadRequest
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeDuplicateUsername:
		return http.StatusConflict
	case models.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case models.CodeNotVerified, models.CodeForbidden:
		return http.StatusForbidden
	case models.CodeRemoteWriteFailure:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// respond writes res with successStatus when it is OK, or with the status of
// its code otherwise. The body is the Result itself.
func respond[T any](c *gin.Context, successStatus int, res models.Result[T]) {
	if !res.OK {
		c.JSON(StatusFor(res.Code), res)
		return
	}
	c.JSON(successStatus, res)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"ok":    false,
		"error": "Datos inválidos: " + err.Error(),
		"code":  models.CodeValidation,
	})
}

func actor(c *gin.Context) *models.User {
	return middleware.Actor(c)
}
