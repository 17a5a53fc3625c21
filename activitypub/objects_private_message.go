package activitypub

import (
	"context"
	"time"

	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
)

// ChatMessageObject is the wire form of a private message.
type ChatMessageObject struct {
	Context      any        `json:"@context,omitempty"`
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	AttributedTo string     `json:"attributedTo"`
	To           URLs       `json:"to"`
	Content      string     `json:"content"`
	MediaType    string     `json:"mediaType,omitempty"`
	Source       *Source    `json:"source,omitempty"`
	Published    *time.Time `json:"published,omitempty"`
	Updated      *time.Time `json:"updated,omitempty"`
}

func (f *Federation) toApubPrivateMessage(ctx context.Context, pm *domain.PrivateMessage) (*ChatMessageObject, error) {
	creator, err := f.store.ReadPerson(ctx, pm.CreatorId)
	if err != nil {
		return nil, persistence("read message creator", err)
	}
	recipient, err := f.store.ReadPerson(ctx, pm.RecipientId)
	if err != nil {
		return nil, persistence("read message recipient", err)
	}
	return &ChatMessageObject{
		Context:      defaultContext,
		ID:           pm.ApID,
		Type:         "ChatMessage",
		AttributedTo: creator.ActorID,
		To:           URLs{recipient.ActorID},
		Content:      util.MarkdownToHTML(pm.Content),
		MediaType:    "text/html",
		Source:       markdownSource(pm.Content),
		Published:    &pm.Published,
		Updated:      pm.Updated,
	}, nil
}

func (rc *RequestContext) privateMessageFromApub(ctx context.Context, msg *ChatMessageObject) (*domain.PrivateMessage, error) {
	if msg.ID == "" || msg.AttributedTo == "" || len(msg.To) == 0 {
		return nil, protocolError("decode private message", "missing id, attributedTo or recipient")
	}
	creator, err := Dereference(ctx, rc, NewObjectID[*domain.Person](msg.AttributedTo))
	if err != nil {
		return nil, err
	}
	recipient, err := Dereference(ctx, rc, NewObjectID[*domain.Person](msg.To.First()))
	if err != nil {
		return nil, err
	}
	form := &domain.PrivateMessageForm{
		CreatorId:   creator.Id,
		RecipientId: recipient.Id,
		Content:     util.RemoveSlurs(sourceOrHTML(msg.Source, msg.Content), rc.settings().SlurFilter),
		ApID:        msg.ID,
		Local:       rc.fed.isLocalURL(msg.ID),
		Published:   msg.Published,
		Updated:     msg.Updated,
	}
	pm, err := rc.store.UpsertPrivateMessage(ctx, form)
	if err != nil {
		return nil, persistence("upsert private message", err)
	}
	return pm, nil
}
