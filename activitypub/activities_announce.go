package activitypub

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/deemkeen/burrow/domain"
)

// AnnounceActivity is how a community forwards an activity to its followers.
type AnnounceActivity struct {
	envelope
	Actor  ObjectID[*domain.Community] `json:"actor"`
	To     URLs                        `json:"to"`
	Object json.RawMessage             `json:"object"`
	Cc     URLs                        `json:"cc,omitempty"`

	inner announcable
}

func (a *AnnounceActivity) ActorID() string { return a.Actor.String() }

// Inner returns the announced activity.
func (a *AnnounceActivity) Inner() Activity { return a.inner }

func decodeAnnounce(raw, object json.RawMessage) (Activity, error) {
	inner, err := decodeActivity(object)
	if err != nil {
		return nil, err
	}
	ann, ok := inner.(announcable)
	if !ok {
		return nil, protocolError("decode announce", "%s cannot be announced", inner.ActivityType())
	}
	a := &AnnounceActivity{}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, protocolError("decode announce", "%v", err)
	}
	a.inner = ann
	return a, nil
}

func (a *AnnounceActivity) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	if err := verifyURLsMatch(a.inner.communityID(), a.ActorID()); err != nil {
		return err
	}
	if _, err := Dereference(ctx, rc, a.Actor); err != nil {
		return err
	}
	return a.inner.verify(ctx, rc)
}

// receive applies the announced activity unless it already arrived, directly
// or through another announce.
func (a *AnnounceActivity) receive(ctx context.Context, rc *RequestContext) error {
	err := rc.store.CreateActivity(ctx, &domain.Activity{
		ActivityURI:  a.inner.ActivityID(),
		ActivityType: a.inner.ActivityType(),
		ActorURI:     a.inner.ActorID(),
		ObjectURI:    objectURI(a.Object),
		RawJSON:      string(a.Object),
		Processed:    true,
	})
	if errors.Is(err, domain.ErrDuplicate) {
		return nil
	}
	if err != nil {
		return persistence("record announced activity", err)
	}
	return a.inner.receive(ctx, rc)
}
