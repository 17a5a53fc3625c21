package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/deemkeen/burrow/domain"
)

// replyShape records which wire form an inReplyTo arrived in.
type replyShape int

const (
	// replyPointer is the URL of the immediate parent, a post or a comment.
	replyPointer replyShape = iota
	// replyChain is the ancestor list [post] or [post, parent comment] of
	// older peers.
	replyChain
)

// replyTarget is the inReplyTo of a Note, normalized when decoded. parent
// is always the immediate parent. post is known up front only for the
// chain shape; for a pointer it is found by resolving parent.
type replyTarget struct {
	post   string
	parent string
	shape  replyShape
}

// replyTo points at the immediate parent of a new comment.
func replyTo(parent string) replyTarget {
	return replyTarget{parent: parent, shape: replyPointer}
}

func (r *replyTarget) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var parent string
		if err := json.Unmarshal(data, &parent); err != nil {
			return fmt.Errorf("inReplyTo: %w", err)
		}
		*r = replyTo(parent)
		return nil
	}
	var chain []string
	if err := json.Unmarshal(data, &chain); err != nil {
		return fmt.Errorf("inReplyTo: %w", err)
	}
	if len(chain) == 0 || len(chain) > 2 {
		return fmt.Errorf("inReplyTo: expected 1 or 2 entries, got %d", len(chain))
	}
	*r = replyTarget{post: chain[0], parent: chain[len(chain)-1], shape: replyChain}
	return nil
}

// MarshalJSON always writes the pointer shape.
func (r replyTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.parent)
}

func (r replyTarget) resolve(ctx context.Context, rc *RequestContext) (*domain.Post, *domain.Comment, error) {
	if r.parent == "" {
		return nil, nil, protocolError("resolve reply", "missing inReplyTo")
	}
	switch r.shape {
	case replyChain:
		post, err := Dereference(ctx, rc, NewObjectID[*domain.Post](r.post))
		if err != nil || r.parent == r.post {
			return post, nil, err
		}
		parent, err := Dereference(ctx, rc, NewObjectID[*domain.Comment](r.parent))
		if err != nil {
			return nil, nil, err
		}
		if parent.PostId != post.Id {
			return nil, nil, protocolError("resolve reply", "comment %s does not belong to post %s", parent.ApID, post.ApID)
		}
		return post, parent, nil
	default:
		target, err := Dereference(ctx, rc, NewObjectID[*PostOrComment](r.parent))
		if err != nil {
			return nil, nil, err
		}
		if target.Post != nil {
			return target.Post, nil, nil
		}
		post, err := rc.store.ReadPost(ctx, target.Comment.PostId)
		if err != nil {
			return nil, nil, persistence("read parent post", err)
		}
		return post, target.Comment, nil
	}
}
