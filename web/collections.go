package web

import (
	"github.com/deemkeen/burrow/activitypub"
	"github.com/gin-gonic/gin"
)

type orderedCollection struct {
	Context      string `json:"@context"`
	ID           string `json:"id"`
	Type         string `json:"type"`
	TotalItems   int    `json:"totalItems"`
	OrderedItems []any  `json:"orderedItems"`
}

func newCollection(id string, total int) *orderedCollection {
	return &orderedCollection{
		Context:      activitypub.ActivityStreamsContext,
		ID:           id,
		Type:         "OrderedCollection",
		TotalItems:   total,
		OrderedItems: []any{},
	}
}

// handleFollowers publishes the follower count only; members are not listed.
func (s *server) handleFollowers(c *gin.Context) {
	community, ok := s.localCommunity(c)
	if !ok {
		return
	}
	followers, err := s.store.ReadCommunityFollowers(c.Request.Context(), community.Id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	writeObject(c, newCollection(community.FollowersURL, len(followers)), false)
}

// Outboxes are served empty. Peers learn about content through delivery.
func (s *server) handlePersonOutbox(c *gin.Context) {
	p, ok := s.localPerson(c)
	if !ok {
		return
	}
	writeObject(c, newCollection(activitypub.OutboxURL(p.ActorID), 0), false)
}

func (s *server) handleCommunityOutbox(c *gin.Context) {
	community, ok := s.localCommunity(c)
	if !ok {
		return
	}
	writeObject(c, newCollection(activitypub.OutboxURL(community.ActorID), 0), false)
}
