package activitypub

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
)

// BlockUserFromCommunity bans a person from a community. The community is
// named by target, or by cc on older peers.
type BlockUserFromCommunity struct {
	envelope
	Actor  ObjectID[*domain.Person] `json:"actor"`
	To     URLs                     `json:"to"`
	Object ObjectID[*domain.Person] `json:"object"`
	Cc     URLs                     `json:"cc,omitempty"`
	Target string                   `json:"target,omitempty"`
}

func (a *BlockUserFromCommunity) ActorID() string { return a.Actor.String() }

func (a *BlockUserFromCommunity) communityID() string {
	if a.Target != "" {
		return a.Target
	}
	return a.Cc.firstNonPublic()
}

func (a *BlockUserFromCommunity) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	communityID := a.communityID()
	if communityID == "" {
		return protocolError("verify block", "no community in %s", a.ID)
	}
	_, community, err := rc.verifyPersonInCommunity(ctx, a.Actor, NewObjectID[*domain.Community](communityID))
	if err != nil {
		return err
	}
	return rc.verifyModAction(ctx, a.ActorID(), community)
}

// receive bans the person and drops their subscription, if any.
func (a *BlockUserFromCommunity) receive(ctx context.Context, rc *RequestContext) error {
	community, err := Dereference(ctx, rc, NewObjectID[*domain.Community](a.communityID()))
	if err != nil {
		return err
	}
	blocked, err := Dereference(ctx, rc, a.Object)
	if err != nil {
		return err
	}
	if err := rc.store.Ban(ctx, community.Id, blocked.Id); err != nil {
		return persistence("ban", err)
	}
	if err := rc.store.Unfollow(ctx, community.Id, blocked.Id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return persistence("unfollow banned person", err)
	}
	log.Infof("Inbox: %s banned %s from %s", a.ActorID(), blocked.ActorID, community.ActorID)
	return nil
}

// UndoBlockUserFromCommunity lifts a community ban.
type UndoBlockUserFromCommunity struct {
	envelope
	Actor  ObjectID[*domain.Person] `json:"actor"`
	To     URLs                     `json:"to"`
	Object BlockUserFromCommunity   `json:"object"`
	Cc     URLs                     `json:"cc,omitempty"`
}

func (a *UndoBlockUserFromCommunity) ActorID() string { return a.Actor.String() }

func (a *UndoBlockUserFromCommunity) communityID() string { return a.Object.communityID() }

func (a *UndoBlockUserFromCommunity) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	communityID := a.communityID()
	if communityID == "" {
		return protocolError("verify undo block", "no community in %s", a.ID)
	}
	_, community, err := rc.verifyPersonInCommunity(ctx, a.Actor, NewObjectID[*domain.Community](communityID))
	if err != nil {
		return err
	}
	if err := rc.verifyModAction(ctx, a.ActorID(), community); err != nil {
		return err
	}
	return a.Object.verify(ctx, rc)
}

func (a *UndoBlockUserFromCommunity) receive(ctx context.Context, rc *RequestContext) error {
	community, err := Dereference(ctx, rc, NewObjectID[*domain.Community](a.communityID()))
	if err != nil {
		return err
	}
	blocked, err := Dereference(ctx, rc, a.Object.Object)
	if err != nil {
		return err
	}
	if err := rc.store.Unban(ctx, community.Id, blocked.Id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return persistence("unban", err)
	}
	return nil
}
