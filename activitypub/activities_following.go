package activitypub

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
)

// FollowCommunity is sent by a person to subscribe to a community.
type FollowCommunity struct {
	envelope
	Actor  ObjectID[*domain.Person]    `json:"actor"`
	To     URLs                        `json:"to,omitempty"`
	Object ObjectID[*domain.Community] `json:"object"`
}

func (a *FollowCommunity) ActorID() string { return a.Actor.String() }

func (a *FollowCommunity) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	if len(a.To) > 0 {
		if err := verifyURLsMatch(a.To.First(), a.Object.String()); err != nil {
			return err
		}
	}
	_, _, err := rc.verifyPersonInCommunity(ctx, a.Actor, a.Object)
	return err
}

// receive accepts follows of local communities right away and answers with
// an Accept once the follower row is committed.
func (a *FollowCommunity) receive(ctx context.Context, rc *RequestContext) error {
	community, err := Dereference(ctx, rc, a.Object)
	if err != nil {
		return err
	}
	if !community.Local {
		return notFound("receive follow", "%s is not a community of this instance", community.ActorID)
	}
	person, err := Dereference(ctx, rc, a.Actor)
	if err != nil {
		return err
	}
	if err := rc.store.Follow(ctx, community.Id, person.Id, false); err != nil {
		return persistence("follow", err)
	}
	log.Infof("Inbox: %s now follows %s", person.ActorID, community.ActorID)

	follow := *a
	rc.onCommit(func(ctx context.Context) error {
		return rc.fed.sendAcceptFollow(ctx, &follow, community, person)
	})
	return nil
}

// AcceptFollowCommunity is the community's answer to a FollowCommunity.
type AcceptFollowCommunity struct {
	envelope
	Actor  ObjectID[*domain.Community] `json:"actor"`
	To     URLs                        `json:"to,omitempty"`
	Object FollowCommunity             `json:"object"`
}

func (a *AcceptFollowCommunity) ActorID() string { return a.Actor.String() }

func (a *AcceptFollowCommunity) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	if err := verifyURLsMatch(a.ActorID(), a.Object.Object.String()); err != nil {
		return err
	}
	if len(a.To) > 0 {
		if err := verifyURLsMatch(a.To.First(), a.Object.ActorID()); err != nil {
			return err
		}
	}
	return a.Object.verify(ctx, rc)
}

func (a *AcceptFollowCommunity) receive(ctx context.Context, rc *RequestContext) error {
	community, err := Dereference(ctx, rc, a.Actor)
	if err != nil {
		return err
	}
	person, err := Dereference(ctx, rc, a.Object.Actor)
	if err != nil {
		return err
	}
	if err := rc.store.FollowAccepted(ctx, community.Id, person.Id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFound("receive accept", "no follow of %s by %s", community.ActorID, person.ActorID)
		}
		return persistence("accept follow", err)
	}
	log.Infof("Inbox: %s accepted follow by %s", community.ActorID, person.ActorID)
	return nil
}

// UndoFollowCommunity unsubscribes a person from a community.
type UndoFollowCommunity struct {
	envelope
	Actor  ObjectID[*domain.Person] `json:"actor"`
	To     URLs                     `json:"to,omitempty"`
	Object FollowCommunity          `json:"object"`
}

func (a *UndoFollowCommunity) ActorID() string { return a.Actor.String() }

func (a *UndoFollowCommunity) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	if err := verifyURLsMatch(a.ActorID(), a.Object.ActorID()); err != nil {
		return err
	}
	return a.Object.verify(ctx, rc)
}

func (a *UndoFollowCommunity) receive(ctx context.Context, rc *RequestContext) error {
	community, err := Dereference(ctx, rc, a.Object.Object)
	if err != nil {
		return err
	}
	person, err := Dereference(ctx, rc, a.Actor)
	if err != nil {
		return err
	}
	err = rc.store.Unfollow(ctx, community.Id, person.Id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return persistence("unfollow", err)
	}
	return nil
}
