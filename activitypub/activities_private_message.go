package activitypub

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
)

// CreateOrUpdatePrivateMessage delivers a direct message to a local person.
type CreateOrUpdatePrivateMessage struct {
	envelope
	Actor  ObjectID[*domain.Person] `json:"actor"`
	To     URLs                     `json:"to"`
	Object ChatMessageObject        `json:"object"`
}

func (a *CreateOrUpdatePrivateMessage) ActorID() string { return a.Actor.String() }

func (a *CreateOrUpdatePrivateMessage) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	if _, err := rc.verifyPerson(ctx, a.Actor); err != nil {
		return err
	}
	if err := verifyDomainsMatch(a.ActorID(), a.Object.ID); err != nil {
		return err
	}
	if err := verifyURLsMatch(a.ActorID(), a.Object.AttributedTo); err != nil {
		return err
	}
	recipient, err := Dereference(ctx, rc, NewObjectID[*domain.Person](a.Object.To.First()))
	if err != nil {
		return err
	}
	if !recipient.Local {
		return protocolError("verify private message", "recipient %s is not a local person", recipient.ActorID)
	}
	return nil
}

func (a *CreateOrUpdatePrivateMessage) receive(ctx context.Context, rc *RequestContext) error {
	pm, err := rc.privateMessageFromApub(ctx, &a.Object)
	if err != nil {
		return err
	}
	log.Infof("Inbox: Stored private message %s", pm.ApID)
	return nil
}

// DeletePrivateMessage is sent by the author of a private message.
type DeletePrivateMessage struct {
	envelope
	Actor  ObjectID[*domain.Person]         `json:"actor"`
	To     URLs                             `json:"to"`
	Object ObjectID[*domain.PrivateMessage] `json:"object"`
}

func (a *DeletePrivateMessage) ActorID() string { return a.Actor.String() }

// stored returns the local copy of the message, or nil.
func (a *DeletePrivateMessage) stored(ctx context.Context, rc *RequestContext) (*domain.PrivateMessage, error) {
	pm, err := rc.store.ReadPrivateMessageByApID(ctx, a.Object.String())
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistence("read private message", err)
	}
	return pm, nil
}

func (a *DeletePrivateMessage) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	person, err := rc.verifyPerson(ctx, a.Actor)
	if err != nil {
		return err
	}
	if err := verifyDomainsMatch(a.ActorID(), a.Object.String()); err != nil {
		return err
	}
	pm, err := a.stored(ctx, rc)
	if err != nil || pm == nil {
		return err
	}
	if pm.CreatorId != person.Id {
		return forbidden("verify delete private message", "%s did not write %s", person.ActorID, pm.ApID)
	}
	return nil
}

func (a *DeletePrivateMessage) receive(ctx context.Context, rc *RequestContext) error {
	pm, err := a.stored(ctx, rc)
	if err != nil || pm == nil {
		return err
	}
	if err := rc.store.UpdatePrivateMessageDeleted(ctx, pm.Id, true); err != nil {
		return persistence("delete private message", err)
	}
	return nil
}

// UndoDeletePrivateMessage restores a deleted private message.
type UndoDeletePrivateMessage struct {
	envelope
	Actor  ObjectID[*domain.Person] `json:"actor"`
	To     URLs                     `json:"to"`
	Object DeletePrivateMessage     `json:"object"`
}

func (a *UndoDeletePrivateMessage) ActorID() string { return a.Actor.String() }

func (a *UndoDeletePrivateMessage) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	if _, err := rc.verifyPerson(ctx, a.Actor); err != nil {
		return err
	}
	if err := verifyDomainsMatch(a.ActorID(), a.Object.ActorID()); err != nil {
		return err
	}
	if err := verifyDomainsMatch(a.ActorID(), a.Object.Object.String()); err != nil {
		return err
	}
	return a.Object.verify(ctx, rc)
}

func (a *UndoDeletePrivateMessage) receive(ctx context.Context, rc *RequestContext) error {
	pm, err := a.Object.stored(ctx, rc)
	if err != nil {
		return err
	}
	if pm == nil {
		return notFound("receive undo delete", "private message %s is unknown", a.Object.Object.String())
	}
	if err := rc.store.UpdatePrivateMessageDeleted(ctx, pm.Id, false); err != nil {
		return persistence("restore private message", err)
	}
	return nil
}
