package activitypub

import (
	"context"
	"time"

	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
)

// PersonObject is the wire form of a person. Bot accounts are sent as Service.
type PersonObject struct {
	Context           any          `json:"@context,omitempty"`
	ID                string       `json:"id"`
	Type              string       `json:"type"`
	PreferredUsername string       `json:"preferredUsername"`
	Name              string       `json:"name,omitempty"`
	Summary           string       `json:"summary,omitempty"`
	Source            *Source      `json:"source,omitempty"`
	Icon              *ImageObject `json:"icon,omitempty"`
	Image             *ImageObject `json:"image,omitempty"`
	MatrixUserID      string       `json:"matrixUserId,omitempty"`
	Inbox             string       `json:"inbox"`
	Outbox            string       `json:"outbox,omitempty"`
	Endpoints         *Endpoints   `json:"endpoints,omitempty"`
	PublicKey         PublicKey    `json:"publicKey"`
	Published         *time.Time   `json:"published,omitempty"`
	Updated           *time.Time   `json:"updated,omitempty"`
}

func toApubPerson(p *domain.Person) *PersonObject {
	typ := "Person"
	if p.BotAccount {
		typ = "Service"
	}
	obj := &PersonObject{
		Context:           defaultContext,
		ID:                p.ActorID,
		Type:              typ,
		PreferredUsername: p.Name,
		Name:              p.DisplayName,
		Summary:           util.MarkdownToHTML(p.Bio),
		Source:            markdownSource(p.Bio),
		Icon:              imageObject(p.Avatar),
		Image:             imageObject(p.Banner),
		MatrixUserID:      p.MatrixUserID,
		Inbox:             p.InboxURL,
		Outbox:            OutboxURL(p.ActorID),
		PublicKey: PublicKey{
			ID:           KeyID(p.ActorID),
			Owner:        p.ActorID,
			PublicKeyPem: p.PublicKey,
		},
		Published: &p.Published,
		Updated:   p.Updated,
	}
	if p.SharedInboxURL != "" {
		obj.Endpoints = &Endpoints{SharedInbox: p.SharedInboxURL}
	}
	return obj
}

func (rc *RequestContext) personFromApub(ctx context.Context, obj *PersonObject) (*domain.Person, error) {
	if obj.ID == "" || obj.Inbox == "" || obj.PreferredUsername == "" {
		return nil, protocolError("decode person", "missing id, inbox or preferredUsername")
	}
	if obj.PublicKey.PublicKeyPem == "" {
		return nil, protocolError("decode person", "%s has no public key", obj.ID)
	}
	if err := rc.fed.checkIsApubIDValid(obj.Inbox); err != nil {
		return nil, err
	}
	filter := rc.settings().SlurFilter
	if err := util.CheckSlursAll(filter, obj.PreferredUsername, obj.Name); err != nil {
		return nil, validationError("decode person", "%s: %v", obj.ID, err)
	}

	now := time.Now().UTC()
	form := &domain.PersonForm{
		Name:            obj.PreferredUsername,
		DisplayName:     obj.Name,
		Bio:             util.RemoveSlurs(sourceOrHTML(obj.Source, obj.Summary), filter),
		Avatar:          obj.Icon.url(),
		Banner:          obj.Image.url(),
		ActorID:         obj.ID,
		InboxURL:        obj.Inbox,
		MatrixUserID:    obj.MatrixUserID,
		PublicKey:       obj.PublicKey.PublicKeyPem,
		BotAccount:      obj.Type == "Service",
		Local:           false,
		Published:       obj.Published,
		Updated:         obj.Updated,
		LastRefreshedAt: &now,
	}
	if obj.Endpoints != nil {
		form.SharedInboxURL = obj.Endpoints.SharedInbox
	}
	person, err := rc.store.UpsertPerson(ctx, form)
	if err != nil {
		return nil, persistence("upsert person", err)
	}
	return person, nil
}

// sourceOrHTML prefers the markdown source and falls back to the rendered
// HTML for implementations that do not send one.
func sourceOrHTML(source *Source, html string) string {
	if source != nil && source.Content != "" {
		return source.Content
	}
	return util.HTMLToText(html)
}
