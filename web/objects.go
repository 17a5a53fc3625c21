package web

import (
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/activitypub"
	"github.com/deemkeen/burrow/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const activityJSON = activitypub.ContentType + "; charset=utf-8"

// writeObject answers with the encoded object, or 410 when it was deleted.
func writeObject(c *gin.Context, obj any, deleted bool) {
	body, err := json.Marshal(obj)
	if err != nil {
		log.Errorf("HTTP: Failed to marshal %T: %v", obj, err)
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if deleted {
		status = http.StatusGone
	}
	c.Data(status, activityJSON, body)
}

func (s *server) localPerson(c *gin.Context) (*domain.Person, bool) {
	p, err := s.store.ReadPersonByActorID(c.Request.Context(), s.fed.PersonURL(c.Param("name")))
	if err == nil && !p.Local {
		err = domain.ErrNotFound
	}
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return p, true
}

func (s *server) localCommunity(c *gin.Context) (*domain.Community, bool) {
	community, err := s.store.ReadCommunityByActorID(c.Request.Context(), s.fed.CommunityURL(c.Param("name")))
	if err == nil && !community.Local {
		err = domain.ErrNotFound
	}
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return community, true
}

// objectID parses the :id parameter into the identifier minted by url.
func objectID(c *gin.Context, url func(uuid.UUID) string) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "invalid id"})
		return "", false
	}
	return url(id), true
}

func (s *server) handlePerson(c *gin.Context) {
	p, ok := s.localPerson(c)
	if !ok {
		return
	}
	writeObject(c, s.fed.EncodePerson(p), p.Deleted)
}

func (s *server) handleCommunity(c *gin.Context) {
	community, ok := s.localCommunity(c)
	if !ok {
		return
	}
	obj, err := s.fed.EncodeCommunity(c.Request.Context(), community)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeObject(c, obj, community.Deleted || community.Removed)
}

func (s *server) handlePost(c *gin.Context) {
	apID, ok := objectID(c, s.fed.PostURL)
	if !ok {
		return
	}
	post, err := s.store.ReadPostByApID(c.Request.Context(), apID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	obj, err := s.fed.EncodePost(c.Request.Context(), post)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeObject(c, obj, post.Deleted || post.Removed)
}

func (s *server) handleComment(c *gin.Context) {
	apID, ok := objectID(c, s.fed.CommentURL)
	if !ok {
		return
	}
	comment, err := s.store.ReadCommentByApID(c.Request.Context(), apID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	obj, err := s.fed.EncodeComment(c.Request.Context(), comment)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeObject(c, obj, comment.Deleted || comment.Removed)
}

func (s *server) handlePrivateMessage(c *gin.Context) {
	apID, ok := objectID(c, s.fed.PrivateMessageURL)
	if !ok {
		return
	}
	pm, err := s.store.ReadPrivateMessageByApID(c.Request.Context(), apID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	obj, err := s.fed.EncodePrivateMessage(c.Request.Context(), pm)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeObject(c, obj, pm.Deleted)
}
