package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/deemkeen/burrow/domain"
)

// Object lists the entity types an ObjectID can point to.
type Object interface {
	*domain.Person | *domain.Community | *domain.Post | *domain.Comment | *domain.PrivateMessage | *PostOrComment
}

// PostOrComment is the target of a reply: exactly one field is set.
type PostOrComment struct {
	Post    *domain.Post
	Comment *domain.Comment
}

func (p *PostOrComment) ApID() string {
	if p.Post != nil {
		return p.Post.ApID
	}
	if p.Comment != nil {
		return p.Comment.ApID
	}
	return ""
}

// ObjectID is a typed reference to a protocol object. It encodes as the
// plain identifier URL and is resolved with Dereference.
type ObjectID[T Object] struct {
	id string
}

func NewObjectID[T Object](id string) ObjectID[T] {
	return ObjectID[T]{id: id}
}

func (o ObjectID[T]) String() string { return o.id }

func (o ObjectID[T]) IsZero() bool { return o.id == "" }

func (o ObjectID[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.id)
}

// UnmarshalJSON accepts a bare identifier or an embedded object with an id.
func (o *ObjectID[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		h, err := readHeader(data)
		if err != nil {
			return err
		}
		o.id = h.ID
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("object reference: %w", err)
	}
	o.id = s
	return nil
}

// Dereference resolves id within the chain of rc: from the chain cache, the
// store or, when missing or stale, by fetching it from its home instance.
func Dereference[T Object](ctx context.Context, rc *RequestContext, id ObjectID[T]) (T, error) {
	var zero T
	kind := kindFor[T]()
	v, err := rc.dereference(ctx, kind, id.id)
	if err != nil {
		return zero, err
	}
	if kind == kindPostOrComment {
		poc := &PostOrComment{}
		switch e := v.(type) {
		case *domain.Post:
			poc.Post = e
		case *domain.Comment:
			poc.Comment = e
		}
		v = poc
	}
	t, ok := v.(T)
	if !ok {
		return zero, protocolError("dereference", "%s resolved to unexpected %T", id.id, v)
	}
	return t, nil
}

func kindFor[T Object]() objectKind {
	var zero T
	switch any(zero).(type) {
	case *domain.Person:
		return kindPerson
	case *domain.Community:
		return kindCommunity
	case *domain.Post:
		return kindPost
	case *domain.Comment:
		return kindComment
	case *domain.PrivateMessage:
		return kindPrivateMessage
	default:
		return kindPostOrComment
	}
}
