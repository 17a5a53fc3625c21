package web

import (
	"errors"
	"net/http"

	"github.com/deemkeen/burrow/activitypub"
	"github.com/deemkeen/burrow/domain"
	"github.com/gin-gonic/gin"
)

// statusFor maps a federation error to the HTTP status answered to the peer.
func statusFor(err error) int {
	switch activitypub.KindOf(err) {
	case activitypub.KindProtocolViolation, activitypub.KindValidation:
		return http.StatusBadRequest
	case activitypub.KindForbidden:
		return http.StatusForbidden
	case activitypub.KindNotFound:
		return http.StatusNotFound
	case activitypub.KindFetchBudgetExceeded:
		return http.StatusUnprocessableEntity
	case activitypub.KindPersistence:
		return http.StatusInternalServerError
	}
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
