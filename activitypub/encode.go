package activitypub

import (
	"context"
	"time"

	"github.com/deemkeen/burrow/domain"
)

func tombstone(id, formerType string, deleted *time.Time) *Tombstone {
	t := &Tombstone{Context: ActivityStreamsContext, ID: id, Type: "Tombstone", FormerType: formerType}
	if deleted != nil {
		t.Deleted = deleted.UTC().Format(time.RFC3339)
	}
	return t
}

// EncodePerson returns the document served for a person, or a Tombstone.
func (f *Federation) EncodePerson(p *domain.Person) any {
	if p.Deleted {
		return tombstone(p.ActorID, "Person", p.Updated)
	}
	return toApubPerson(p)
}

func (f *Federation) EncodeCommunity(ctx context.Context, c *domain.Community) (any, error) {
	if c.Deleted || c.Removed {
		return tombstone(c.ActorID, "Group", c.Updated), nil
	}
	return f.toApubCommunity(ctx, c)
}

func (f *Federation) EncodePost(ctx context.Context, p *domain.Post) (any, error) {
	if p.Deleted || p.Removed {
		return tombstone(p.ApID, "Page", p.Updated), nil
	}
	return f.toApubPost(ctx, p)
}

func (f *Federation) EncodeComment(ctx context.Context, c *domain.Comment) (any, error) {
	if c.Deleted || c.Removed {
		return tombstone(c.ApID, "Note", c.Updated), nil
	}
	return f.toApubComment(ctx, c)
}

func (f *Federation) EncodePrivateMessage(ctx context.Context, pm *domain.PrivateMessage) (any, error) {
	if pm.Deleted {
		return tombstone(pm.ApID, "ChatMessage", pm.Updated), nil
	}
	return f.toApubPrivateMessage(ctx, pm)
}
