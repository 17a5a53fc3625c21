package activitypub

import (
	"context"
	"time"

	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
)

// PageObject is the wire form of a post.
type PageObject struct {
	Context         any          `json:"@context,omitempty"`
	ID              string       `json:"id"`
	Type            string       `json:"type"`
	AttributedTo    string       `json:"attributedTo"`
	To              URLs         `json:"to"`
	Cc              URLs         `json:"cc,omitempty"`
	Audience        string       `json:"audience,omitempty"`
	Name            string       `json:"name"`
	Content         string       `json:"content,omitempty"`
	MediaType       string       `json:"mediaType,omitempty"`
	Source          *Source      `json:"source,omitempty"`
	URL             string       `json:"url,omitempty"`
	Image           *ImageObject `json:"image,omitempty"`
	Sensitive       bool         `json:"sensitive"`
	CommentsEnabled *bool        `json:"commentsEnabled,omitempty"`
	Stickied        *bool        `json:"stickied,omitempty"`
	Published       *time.Time   `json:"published,omitempty"`
	Updated         *time.Time   `json:"updated,omitempty"`
}

// communityID finds the community a page was posted to. Newer peers set
// audience; older ones only list the community in to or cc.
func (p *PageObject) communityID() string {
	if p.Audience != "" {
		return p.Audience
	}
	if id := p.To.firstNonPublic(); id != "" {
		return id
	}
	return p.Cc.firstNonPublic()
}

func (f *Federation) toApubPost(ctx context.Context, p *domain.Post) (*PageObject, error) {
	creator, err := f.store.ReadPerson(ctx, p.CreatorId)
	if err != nil {
		return nil, persistence("read post creator", err)
	}
	community, err := f.store.ReadCommunity(ctx, p.CommunityId)
	if err != nil {
		return nil, persistence("read post community", err)
	}
	commentsEnabled := !p.Locked
	stickied := p.Stickied
	return &PageObject{
		Context:         defaultContext,
		ID:              p.ApID,
		Type:            "Page",
		AttributedTo:    creator.ActorID,
		To:              URLs{community.ActorID, PublicURL},
		Audience:        community.ActorID,
		Name:            p.Name,
		Content:         util.MarkdownToHTML(p.Body),
		MediaType:       "text/html",
		Source:          markdownSource(p.Body),
		URL:             p.URL,
		Image:           imageObject(p.ThumbnailURL),
		Sensitive:       p.Nsfw,
		CommentsEnabled: &commentsEnabled,
		Stickied:        &stickied,
		Published:       &p.Published,
		Updated:         p.Updated,
	}, nil
}

// lockedFlag maps commentsEnabled to the locked flag, keeping nil as "unchanged".
func (p *PageObject) lockedFlag() *bool {
	if p.CommentsEnabled == nil {
		return nil
	}
	locked := !*p.CommentsEnabled
	return &locked
}

func (rc *RequestContext) postFromApub(ctx context.Context, page *PageObject) (*domain.Post, error) {
	if page.ID == "" || page.AttributedTo == "" {
		return nil, protocolError("decode post", "missing id or attributedTo")
	}
	communityID := page.communityID()
	if communityID == "" {
		return nil, protocolError("decode post", "%s is not addressed to a community", page.ID)
	}
	filter := rc.settings().SlurFilter
	if err := util.CheckSlurs(page.Name, filter); err != nil {
		return nil, validationError("decode post", "%s: %v", page.ID, err)
	}

	creator, err := Dereference(ctx, rc, NewObjectID[*domain.Person](page.AttributedTo))
	if err != nil {
		return nil, err
	}
	community, err := Dereference(ctx, rc, NewObjectID[*domain.Community](communityID))
	if err != nil {
		return nil, err
	}

	form := &domain.PostForm{
		Name:         page.Name,
		URL:          page.URL,
		Body:         util.RemoveSlurs(sourceOrHTML(page.Source, page.Content), filter),
		ThumbnailURL: page.Image.url(),
		CreatorId:    creator.Id,
		CommunityId:  community.Id,
		ApID:         page.ID,
		Nsfw:         page.Sensitive,
		Locked:       page.lockedFlag(),
		Stickied:     page.Stickied,
		Local:        rc.fed.isLocalURL(page.ID),
		Published:    page.Published,
		Updated:      page.Updated,
	}
	post, err := rc.store.UpsertPost(ctx, form)
	if err != nil {
		return nil, persistence("upsert post", err)
	}
	return post, nil
}
