package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/helpdesk-client/internal/backend"
	"github.com/psds-microservice/helpdesk-client/internal/errs"
)

// statusOf maps a backend error kind to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errs.ErrInvalidCredentials), errors.Is(err, errs.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrIllegalTransition):
		return http.StatusConflict
	case errors.Is(err, errs.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// abort writes {"detail": ...} the way the helpdesk API reports errors.
func abort(c *gin.Context, err error) {
	code := statusOf(err)
	detail := "Error interno del servidor"
	var be *backend.Error
	if errors.As(err, &be) {
		detail = be.Detail
	}
	if code == http.StatusUnauthorized {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(code, gin.H{"detail": detail})
}

func invalidBody(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": "Cuerpo de la petición inválido"})
}
