package activitypub

import (
	"context"
	"time"

	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
)

// NoteObject is the wire form of a comment.
type NoteObject struct {
	Context      any         `json:"@context,omitempty"`
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	AttributedTo string      `json:"attributedTo"`
	To           URLs        `json:"to"`
	Cc           URLs        `json:"cc,omitempty"`
	Audience     string      `json:"audience,omitempty"`
	Content      string      `json:"content"`
	MediaType    string      `json:"mediaType,omitempty"`
	Source       *Source     `json:"source,omitempty"`
	InReplyTo    replyTarget `json:"inReplyTo"`
	Published    *time.Time  `json:"published,omitempty"`
	Updated      *time.Time  `json:"updated,omitempty"`
}

func (f *Federation) toApubComment(ctx context.Context, c *domain.Comment) (*NoteObject, error) {
	creator, err := f.store.ReadPerson(ctx, c.CreatorId)
	if err != nil {
		return nil, persistence("read comment creator", err)
	}
	post, err := f.store.ReadPost(ctx, c.PostId)
	if err != nil {
		return nil, persistence("read comment post", err)
	}
	community, err := f.store.ReadCommunity(ctx, post.CommunityId)
	if err != nil {
		return nil, persistence("read comment community", err)
	}
	parent := post.ApID
	if c.ParentId != nil {
		pc, err := f.store.ReadComment(ctx, *c.ParentId)
		if err != nil {
			return nil, persistence("read parent comment", err)
		}
		parent = pc.ApID
	}
	return &NoteObject{
		Context:      defaultContext,
		ID:           c.ApID,
		Type:         "Note",
		AttributedTo: creator.ActorID,
		To:           URLs{PublicURL},
		Cc:           URLs{community.ActorID},
		Audience:     community.ActorID,
		Content:      util.MarkdownToHTML(c.Content),
		MediaType:    "text/html",
		Source:       markdownSource(c.Content),
		InReplyTo:    replyTo(parent),
		Published:    &c.Published,
		Updated:      c.Updated,
	}, nil
}

func (rc *RequestContext) commentFromApub(ctx context.Context, note *NoteObject) (*domain.Comment, error) {
	if note.ID == "" || note.AttributedTo == "" {
		return nil, protocolError("decode comment", "missing id or attributedTo")
	}
	creator, err := Dereference(ctx, rc, NewObjectID[*domain.Person](note.AttributedTo))
	if err != nil {
		return nil, err
	}
	post, parent, err := note.InReplyTo.resolve(ctx, rc)
	if err != nil {
		return nil, err
	}

	form := &domain.CommentForm{
		CreatorId: creator.Id,
		PostId:    post.Id,
		Content:   util.RemoveSlurs(sourceOrHTML(note.Source, note.Content), rc.settings().SlurFilter),
		ApID:      note.ID,
		Local:     rc.fed.isLocalURL(note.ID),
		Published: note.Published,
		Updated:   note.Updated,
	}
	if parent != nil {
		form.ParentId = &parent.Id
	}
	comment, err := rc.store.UpsertComment(ctx, form)
	if err != nil {
		return nil, persistence("upsert comment", err)
	}
	return comment, nil
}
