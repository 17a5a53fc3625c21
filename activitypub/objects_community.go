package activitypub

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
	"github.com/deemkeen/burrow/util"
)

// GroupObject is the wire form of a community. Moderators are listed inline
// so receivers can authorize moderation activities without extra fetches.
type GroupObject struct {
	Context           any          `json:"@context,omitempty"`
	ID                string       `json:"id"`
	Type              string       `json:"type"`
	PreferredUsername string       `json:"preferredUsername"`
	Name              string       `json:"name"`
	Summary           string       `json:"summary,omitempty"`
	Source            *Source      `json:"source,omitempty"`
	Sensitive         bool         `json:"sensitive"`
	Icon              *ImageObject `json:"icon,omitempty"`
	Image             *ImageObject `json:"image,omitempty"`
	AttributedTo      string       `json:"attributedTo,omitempty"`
	Moderators        []string     `json:"moderators,omitempty"`
	Inbox             string       `json:"inbox"`
	Outbox            string       `json:"outbox,omitempty"`
	Followers         string       `json:"followers,omitempty"`
	Endpoints         *Endpoints   `json:"endpoints,omitempty"`
	PublicKey         PublicKey    `json:"publicKey"`
	Published         *time.Time   `json:"published,omitempty"`
	Updated           *time.Time   `json:"updated,omitempty"`
}

func (f *Federation) toApubCommunity(ctx context.Context, c *domain.Community) (*GroupObject, error) {
	moderators, err := f.store.ReadModerators(ctx, c.Id)
	if err != nil {
		return nil, persistence("read moderators", err)
	}
	obj := &GroupObject{
		Context:           defaultContext,
		ID:                c.ActorID,
		Type:              "Group",
		PreferredUsername: c.Name,
		Name:              c.Title,
		Summary:           util.MarkdownToHTML(c.Description),
		Source:            markdownSource(c.Description),
		Sensitive:         c.Nsfw,
		Icon:              imageObject(c.Icon),
		Image:             imageObject(c.Banner),
		AttributedTo:      c.CreatorActorID,
		Moderators:        moderators,
		Inbox:             c.InboxURL,
		Outbox:            OutboxURL(c.ActorID),
		Followers:         c.FollowersURL,
		PublicKey: PublicKey{
			ID:           KeyID(c.ActorID),
			Owner:        c.ActorID,
			PublicKeyPem: c.PublicKey,
		},
		Published: &c.Published,
		Updated:   c.Updated,
	}
	if c.SharedInboxURL != "" {
		obj.Endpoints = &Endpoints{SharedInbox: c.SharedInboxURL}
	}
	return obj, nil
}

// checkGroup applies the content policy to the descriptive fields of a group.
func (rc *RequestContext) checkGroup(obj *GroupObject) error {
	if err := util.CheckSlursAll(rc.settings().SlurFilter, obj.PreferredUsername, obj.Name); err != nil {
		return validationError("decode community", "%s: %v", obj.ID, err)
	}
	return nil
}

func (rc *RequestContext) communityFromApub(ctx context.Context, obj *GroupObject) (*domain.Community, error) {
	if obj.ID == "" || obj.Inbox == "" || obj.PreferredUsername == "" {
		return nil, protocolError("decode community", "missing id, inbox or preferredUsername")
	}
	if obj.PublicKey.PublicKeyPem == "" {
		return nil, protocolError("decode community", "%s has no public key", obj.ID)
	}
	if err := rc.fed.checkIsApubIDValid(obj.Inbox); err != nil {
		return nil, err
	}
	if err := rc.checkGroup(obj); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	form := &domain.CommunityForm{
		Name:            obj.PreferredUsername,
		Title:           obj.Name,
		Description:     util.RemoveSlurs(sourceOrHTML(obj.Source, obj.Summary), rc.settings().SlurFilter),
		Icon:            obj.Icon.url(),
		Banner:          obj.Image.url(),
		Nsfw:            obj.Sensitive,
		ActorID:         obj.ID,
		InboxURL:        obj.Inbox,
		FollowersURL:    obj.Followers,
		PublicKey:       obj.PublicKey.PublicKeyPem,
		CreatorActorID:  obj.AttributedTo,
		Local:           false,
		Published:       obj.Published,
		Updated:         obj.Updated,
		LastRefreshedAt: &now,
	}
	if obj.Endpoints != nil {
		form.SharedInboxURL = obj.Endpoints.SharedInbox
	}
	community, err := rc.store.UpsertCommunity(ctx, form)
	if err != nil {
		return nil, persistence("upsert community", err)
	}
	// the home instance is authoritative: moderators it no longer lists lose their standing
	mods := make([]string, 0, len(obj.Moderators))
	for _, mod := range obj.Moderators {
		if hostOf(mod) == "" {
			log.Warnf("Resolver: Ignoring invalid moderator %q of %s", mod, obj.ID)
			continue
		}
		mods = append(mods, mod)
	}
	if err := rc.store.ReplaceModerators(ctx, community.Id, mods); err != nil {
		return nil, persistence("replace moderators", err)
	}
	return community, nil
}

// updateForm holds the fields an Update activity may change.
func (rc *RequestContext) updateForm(obj *GroupObject) *domain.CommunityUpdateForm {
	return &domain.CommunityUpdateForm{
		Name:        obj.PreferredUsername,
		Title:       obj.Name,
		Description: util.RemoveSlurs(sourceOrHTML(obj.Source, obj.Summary), rc.settings().SlurFilter),
		Nsfw:        obj.Sensitive,
		Icon:        obj.Icon.url(),
		Banner:      obj.Image.url(),
		Updated:     obj.Updated,
	}
}
