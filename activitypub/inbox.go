package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
)

// State is where an inbound activity ended up.
type State int

const (
	StateReceived State = iota
	StateVerified
	StateApplied
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateVerified:
		return "verified"
	case StateApplied:
		return "applied"
	case StateRejected:
		return "rejected"
	}
	return "unknown"
}

// Outcome reports the result of processing one inbound activity.
type Outcome struct {
	State      State
	ActivityID string
	Type       string
	ActorID    string
	// Duplicate is set when the activity had been applied before.
	Duplicate bool
	Err       error
}

func (o Outcome) Applied() bool { return o.State == StateApplied }

// ProcessInbound decodes, verifies and applies one activity payload.
// Malformed input never panics; it is rejected with a ProtocolViolation.
func (f *Federation) ProcessInbound(ctx context.Context, payload []byte) Outcome {
	return f.process(ctx, payload, "")
}

// ProcessSigned is ProcessInbound for payloads whose HTTP signature was made
// with the key of signerID. The activity's actor must live on the signer's instance.
func (f *Federation) ProcessSigned(ctx context.Context, payload []byte, signerID string) Outcome {
	return f.process(ctx, payload, signerID)
}

func (f *Federation) process(ctx context.Context, payload []byte, signerID string) (out Outcome) {
	out.State = StateReceived
	defer func() {
		if r := recover(); r != nil {
			out.State = StateRejected
			out.Err = protocolError("process", "malformed activity: %v", r)
			log.Warnf("Inbox: Recovered from panic while processing %s: %v", out.ActivityID, r)
		}
		activitiesTotal.WithLabelValues(typeLabel(out.Type), out.State.String()).Inc()
	}()

	reject := func(err error) Outcome {
		out.State = StateRejected
		out.Err = err
		log.Warnf("Inbox: Rejected %s %s from %s: %v", out.Type, out.ActivityID, out.ActorID, err)
		return out
	}

	activity, err := decodeActivity(payload)
	if err != nil {
		return reject(err)
	}
	out.ActivityID, out.Type, out.ActorID = activity.ActivityID(), activity.ActivityType(), activity.ActorID()
	log.Infof("Inbox: Received %s from %s", out.Type, out.ActorID)

	if signerID != "" {
		if err := verifyDomainsMatch(signerID, out.ActorID); err != nil {
			return reject(err)
		}
	}

	if known, err := f.store.ReadActivityByURI(ctx, out.ActivityID); err == nil && known != nil {
		out.State = StateApplied
		out.Duplicate = true
		return out
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return reject(persistence("read activity", err))
	}

	rc := f.NewRequestContext()
	if err := activity.verify(ctx, rc); err != nil {
		return reject(err)
	}
	out.State = StateVerified

	duplicate := false
	cp := rc.checkpoint()
	// a busy database retries the closure on a fresh transaction
	err = f.store.InTransaction(ctx, func(tx domain.Store) error {
		rc.restore(cp)
		duplicate = false
		rc.store = tx
		defer func() { rc.store = f.store }()

		err := tx.CreateActivity(ctx, &domain.Activity{
			ActivityURI:  out.ActivityID,
			ActivityType: out.Type,
			ActorURI:     out.ActorID,
			ObjectURI:    objectURIOf(payload),
			RawJSON:      string(payload),
			Processed:    true,
		})
		if errors.Is(err, domain.ErrDuplicate) {
			duplicate = true
			return nil
		}
		if err != nil {
			return persistence("record activity", err)
		}
		if err := activity.receive(ctx, rc); err != nil {
			return err
		}
		return f.relay(ctx, rc, activity, payload)
	})
	if err != nil {
		return reject(err)
	}
	rc.runAfterCommit(ctx)

	out.State = StateApplied
	out.Duplicate = duplicate
	log.Debugf("Inbox: Applied %s %s (%d fetches)", out.Type, out.ActivityID, rc.Fetches())
	return out
}

// relay schedules an Announce when a community of this instance receives a
// community scoped activity directly from a remote actor.
func (f *Federation) relay(ctx context.Context, rc *RequestContext, activity Activity, payload []byte) error {
	a, ok := activity.(announcable)
	if !ok {
		return nil
	}
	community, err := rc.store.ReadCommunityByActorID(ctx, a.communityID())
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return persistence("read community", err)
	}
	if !community.Local {
		return nil
	}
	inner := bytes.Clone(payload)
	rc.onCommit(func(ctx context.Context) error {
		return f.announce(ctx, community, inner, nil)
	})
	return nil
}

// ResolveObject dereferences any supported object by its identifier.
func (f *Federation) ResolveObject(ctx context.Context, id string) (any, error) {
	return f.NewRequestContext().dereference(ctx, kindAny, id)
}

// ResolvePublicKey returns the PEM public key of the actor owning keyID.
func (f *Federation) ResolvePublicKey(ctx context.Context, keyID string) (string, error) {
	v, err := f.NewRequestContext().resolveActor(ctx, ActorIDFromKeyID(keyID))
	if err != nil {
		return "", err
	}
	switch actor := v.(type) {
	case *domain.Person:
		return actor.PublicKey, nil
	case *domain.Community:
		return actor.PublicKey, nil
	}
	return "", fmt.Errorf("unexpected actor %T", v)
}

func objectURIOf(payload []byte) string {
	var env struct {
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return ""
	}
	return objectURI(env.Object)
}

// objectURI returns the identifier of an object given inline or by reference.
func objectURI(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		var s string
		_ = json.Unmarshal(raw, &s)
		return s
	}
	h, _ := readHeader(raw)
	return h.ID
}
