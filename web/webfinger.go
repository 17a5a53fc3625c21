package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/deemkeen/burrow/activitypub"
	"github.com/deemkeen/burrow/domain"
	"github.com/gin-gonic/gin"
)

type webfingerLink struct {
	Rel        string            `json:"rel"`
	Type       string            `json:"type,omitempty"`
	Href       string            `json:"href"`
	Properties map[string]string `json:"properties,omitempty"`
}

type webfingerResponse struct {
	Subject string          `json:"subject"`
	Links   []webfingerLink `json:"links"`
}

const profileTypeKey = "https://www.w3.org/ns/activitystreams#type"

// parseResource extracts the name from acct:name@host for this instance.
func parseResource(resource, hostname string) (string, bool) {
	acct, ok := strings.CutPrefix(resource, "acct:")
	if !ok {
		return "", false
	}
	name, host, ok := strings.Cut(acct, "@")
	if !ok || name == "" || !strings.EqualFold(host, hostname) {
		return "", false
	}
	return name, true
}

// handleWebfinger resolves a name to the local person and/or community
// carrying it. Both may exist; each gets its own link.
func (s *server) handleWebfinger(c *gin.Context) {
	resource := c.Query("resource")
	name, ok := parseResource(resource, s.fed.Settings().Hostname)
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}
	ctx := c.Request.Context()
	resp := webfingerResponse{Subject: resource}

	person, err := s.store.ReadPersonByActorID(ctx, s.fed.PersonURL(name))
	switch {
	case err == nil && person.Local && !person.Deleted:
		resp.Links = append(resp.Links, webfingerLink{
			Rel:        "self",
			Type:       activitypub.ContentType,
			Href:       person.ActorID,
			Properties: map[string]string{profileTypeKey: "Person"},
		})
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		abortWithError(c, err)
		return
	}

	community, err := s.store.ReadCommunityByActorID(ctx, s.fed.CommunityURL(name))
	switch {
	case err == nil && community.Local && !community.Deleted:
		resp.Links = append(resp.Links, webfingerLink{
			Rel:        "self",
			Type:       activitypub.ContentType,
			Href:       community.ActorID,
			Properties: map[string]string{profileTypeKey: "Group"},
		})
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		abortWithError(c, err)
		return
	}

	if len(resp.Links) == 0 {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not Found"})
		return
	}
	c.JSON(http.StatusOK, resp)
}
