package web

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/activitypub"
	"github.com/gin-gonic/gin"
)

// handleInbox serves the shared inbox and every actor inbox. The target
// does not matter: activities are routed by their content.
func (s *server) handleInbox(c *gin.Context) {
	ctx := c.Request.Context()
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	keyID, err := activitypub.KeyIDFromRequest(c.Request)
	if err != nil {
		log.Warnf("Inbox: Unsigned request to %s: %v", c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
		return
	}
	publicKey, err := s.fed.ResolvePublicKey(ctx, keyID)
	if err != nil {
		log.Warnf("Inbox: Failed to resolve key %s: %v", keyID, err)
		if activitypub.KindOf(err) != 0 {
			abortWithError(c, err)
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown signing key"})
		return
	}
	if err := activitypub.VerifyRequest(c.Request, body, publicKey); err != nil {
		log.Warnf("Inbox: Invalid signature by %s: %v", keyID, err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	out := s.fed.ProcessSigned(ctx, body, activitypub.ActorIDFromKeyID(keyID))
	if !out.Applied() {
		abortWithError(c, out.Err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": out.ActivityID, "state": out.State.String(), "duplicate": out.Duplicate})
}
