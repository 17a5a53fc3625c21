package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
)

type objectKind int

const (
	kindPerson objectKind = iota
	kindCommunity
	kindPost
	kindComment
	kindPrivateMessage
	kindPostOrComment
	kindActor
	kindAny
)

func (k objectKind) String() string {
	switch k {
	case kindPerson:
		return "person"
	case kindCommunity:
		return "community"
	case kindPost:
		return "post"
	case kindComment:
		return "comment"
	case kindPrivateMessage:
		return "private message"
	case kindPostOrComment:
		return "post or comment"
	case kindActor:
		return "actor"
	default:
		return "object"
	}
}

// acceptsType reports whether a fetched object of wire type typ satisfies k.
func (k objectKind) acceptsType(typ string) bool {
	switch typ {
	case "Person", "Service":
		return k == kindPerson || k == kindActor || k == kindAny
	case "Group":
		return k == kindCommunity || k == kindActor || k == kindAny
	case "Page":
		return k == kindPost || k == kindPostOrComment || k == kindAny
	case "Note":
		return k == kindComment || k == kindPostOrComment || k == kindAny
	case "ChatMessage":
		return k == kindPrivateMessage || k == kindAny
	}
	return false
}

func (k objectKind) accepts(v any) bool {
	switch v.(type) {
	case *domain.Person:
		return k.acceptsType("Person")
	case *domain.Community:
		return k.acceptsType("Group")
	case *domain.Post:
		return k.acceptsType("Page")
	case *domain.Comment:
		return k.acceptsType("Note")
	case *domain.PrivateMessage:
		return k.acceptsType("ChatMessage")
	}
	return false
}

func (rc *RequestContext) dereference(ctx context.Context, kind objectKind, id string) (any, error) {
	if id == "" {
		return nil, protocolError("dereference", "missing %s identifier", kind)
	}
	if err := rc.fed.checkIsApubIDValid(id); err != nil {
		return nil, err
	}
	if v, ok := rc.resolved[id]; ok {
		if !kind.accepts(v) {
			return nil, protocolError("dereference", "%s is not a %s", id, kind)
		}
		return v, nil
	}
	if rc.inFlight[id] {
		return nil, protocolError("dereference", "circular reference to %s", id)
	}

	cached, err := rc.readLocal(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if cached != nil && !rc.isStale(cached) {
		rc.resolved[id] = cached
		return cached, nil
	}
	if cached == nil && rc.fed.isLocalURL(id) {
		return nil, notFound("dereference", "local %s %s does not exist", kind, id)
	}
	return rc.fetch(ctx, kind, id, cached)
}

// readLocal returns the stored object for id, or nil.
func (rc *RequestContext) readLocal(ctx context.Context, kind objectKind, id string) (any, error) {
	lookups := []struct {
		typ  string
		read func() (any, error)
	}{
		{"Person", func() (any, error) { return rc.store.ReadPersonByActorID(ctx, id) }},
		{"Group", func() (any, error) { return rc.store.ReadCommunityByActorID(ctx, id) }},
		{"Page", func() (any, error) { return rc.store.ReadPostByApID(ctx, id) }},
		{"Note", func() (any, error) { return rc.store.ReadCommentByApID(ctx, id) }},
		{"ChatMessage", func() (any, error) { return rc.store.ReadPrivateMessageByApID(ctx, id) }},
	}
	for _, l := range lookups {
		if !kind.acceptsType(l.typ) {
			continue
		}
		v, err := l.read()
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, persistence("read "+kind.String(), err)
		}
		return v, nil
	}
	return nil, nil
}

// isStale reports whether a remote actor is due for a refetch. Content
// objects are immutable from our point of view until an Update arrives.
func (rc *RequestContext) isStale(v any) bool {
	var local bool
	var refreshed *time.Time
	switch e := v.(type) {
	case *domain.Person:
		local, refreshed = e.Local, e.LastRefreshedAt
	case *domain.Community:
		local, refreshed = e.Local, e.LastRefreshedAt
	default:
		return false
	}
	if local {
		return false
	}
	return refreshed == nil || time.Since(*refreshed) > rc.settings().RefreshInterval
}

func (rc *RequestContext) fetch(ctx context.Context, kind objectKind, id string, cached any) (any, error) {
	if rc.budget <= 0 {
		fetchBudgetExceeded.Inc()
		return nil, &Error{Kind: KindFetchBudgetExceeded, Op: "dereference", Err: fmt.Errorf("no fetches left for %s", id)}
	}
	rc.budget--
	rc.fetches++
	fetchesTotal.Inc()

	rc.inFlight[id] = true
	defer delete(rc.inFlight, id)

	log.Debugf("Resolver: Fetching %s %s (%d left)", kind, id, rc.budget)
	body, err := rc.fed.transport.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, ErrGone) {
			rc.markDeleted(ctx, cached)
			return nil, notFound("fetch", "%s is gone", id)
		}
		if cached != nil {
			log.Warnf("Resolver: Refetch of %s failed, using stored copy: %v", id, err)
			rc.resolved[id] = cached
			return cached, nil
		}
		return nil, &Error{Kind: KindNotFound, Op: "fetch " + id, Err: err}
	}

	h, err := readHeader(body)
	if err != nil {
		return nil, protocolError("fetch", "invalid object at %s: %v", id, err)
	}
	if h.Type == "Tombstone" {
		rc.markDeleted(ctx, cached)
		return nil, notFound("fetch", "%s was deleted", id)
	}
	if !kind.acceptsType(h.Type) {
		return nil, protocolError("fetch", "expected %s at %s, got %q", kind, id, h.Type)
	}
	if h.ID == "" || hostOf(h.ID) != hostOf(id) {
		return nil, protocolError("fetch", "object id %q does not match domain of %s", h.ID, id)
	}

	v, err := rc.fromApub(ctx, h.Type, body)
	if err != nil {
		return nil, err
	}
	rc.resolved[id] = v
	rc.resolved[h.ID] = v
	return v, nil
}

// fromApub decodes a fetched object and materializes it in the store.
func (rc *RequestContext) fromApub(ctx context.Context, typ string, body []byte) (any, error) {
	decode := func(v any) error {
		if err := json.Unmarshal(body, v); err != nil {
			return protocolError("decode "+typ, "%v", err)
		}
		return nil
	}
	switch typ {
	case "Person", "Service":
		var obj PersonObject
		if err := decode(&obj); err != nil {
			return nil, err
		}
		return rc.personFromApub(ctx, &obj)
	case "Group":
		var obj GroupObject
		if err := decode(&obj); err != nil {
			return nil, err
		}
		return rc.communityFromApub(ctx, &obj)
	case "Page":
		var obj PageObject
		if err := decode(&obj); err != nil {
			return nil, err
		}
		return rc.postFromApub(ctx, &obj)
	case "Note":
		var obj NoteObject
		if err := decode(&obj); err != nil {
			return nil, err
		}
		return rc.commentFromApub(ctx, &obj)
	case "ChatMessage":
		var obj ChatMessageObject
		if err := decode(&obj); err != nil {
			return nil, err
		}
		return rc.privateMessageFromApub(ctx, &obj)
	}
	return nil, protocolError("decode", "unsupported object type %q", typ)
}

// markDeleted flags the stored copy of an object its home instance reports gone.
func (rc *RequestContext) markDeleted(ctx context.Context, cached any) {
	var err error
	switch e := cached.(type) {
	case *domain.Person:
		err = rc.store.UpdatePersonDeleted(ctx, e.Id, true)
	case *domain.Community:
		err = rc.store.UpdateCommunityDeleted(ctx, e.Id, true)
	case *domain.Post:
		err = rc.store.UpdatePostDeleted(ctx, e.Id, true)
	case *domain.Comment:
		err = rc.store.UpdateCommentDeleted(ctx, e.Id, true)
	case *domain.PrivateMessage:
		err = rc.store.UpdatePrivateMessageDeleted(ctx, e.Id, true)
	default:
		return
	}
	if err != nil {
		log.Errorf("Resolver: Failed to mark %T deleted: %v", cached, err)
	}
}

// resolveActor returns the person or community behind id.
func (rc *RequestContext) resolveActor(ctx context.Context, id string) (any, error) {
	return rc.dereference(ctx, kindActor, id)
}
