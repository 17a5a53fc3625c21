package activitypub

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
)

// UpdateCommunity changes the descriptive fields of a community. The actor
// is either the community itself or one of its moderators.
type UpdateCommunity struct {
	envelope
	Actor  string      `json:"actor"`
	To     URLs        `json:"to"`
	Object GroupObject `json:"object"`
	Cc     URLs        `json:"cc,omitempty"`
}

func (a *UpdateCommunity) ActorID() string { return a.Actor }

func (a *UpdateCommunity) communityID() string { return a.Object.ID }

func (a *UpdateCommunity) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.Actor); err != nil {
		return err
	}
	if a.Object.ID == "" {
		return protocolError("verify update community", "object without id")
	}
	if err := verifyAddressed(a.Object.ID, a.Cc, a.To); err != nil {
		return err
	}
	communityID := NewObjectID[*domain.Community](a.Object.ID)
	var community *domain.Community
	var err error
	if a.Actor == a.Object.ID {
		community, err = Dereference(ctx, rc, communityID)
	} else {
		_, community, err = rc.verifyPersonInCommunity(ctx, NewObjectID[*domain.Person](a.Actor), communityID)
	}
	if err != nil {
		return err
	}
	if err := rc.verifyModAction(ctx, a.Actor, community); err != nil {
		return err
	}
	return rc.checkGroup(&a.Object)
}

func (a *UpdateCommunity) receive(ctx context.Context, rc *RequestContext) error {
	community, err := Dereference(ctx, rc, NewObjectID[*domain.Community](a.Object.ID))
	if err != nil {
		return err
	}
	updated, err := rc.store.UpdateCommunity(ctx, community.Id, rc.updateForm(&a.Object))
	if err != nil {
		return persistence("update community", err)
	}
	rc.resolved[updated.ActorID] = updated
	log.Infof("Inbox: %s updated %s", a.Actor, updated.ActorID)
	return nil
}
