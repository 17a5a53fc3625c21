package activitypub

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
	"github.com/google/uuid"
)

// CreateOrUpdateType selects between Create and Update for content
// activities. Receivers treat both the same way: an upsert.
type CreateOrUpdateType string

const (
	Create CreateOrUpdateType = "Create"
	Update CreateOrUpdateType = "Update"
)

// CreateOrUpdatePost carries a post to the community it was posted to.
type CreateOrUpdatePost struct {
	envelope
	Actor    ObjectID[*domain.Person] `json:"actor"`
	To       URLs                     `json:"to"`
	Object   PageObject               `json:"object"`
	Cc       URLs                     `json:"cc,omitempty"`
	Audience string                   `json:"audience,omitempty"`
}

func (a *CreateOrUpdatePost) ActorID() string { return a.Actor.String() }

func (a *CreateOrUpdatePost) communityID() string {
	if a.Audience != "" {
		return a.Audience
	}
	if id := a.Cc.firstNonPublic(); id != "" {
		return id
	}
	return a.Object.communityID()
}

// modAction reports whether an update of a stored post changes only what
// moderators control, and returns the stored post.
func (a *CreateOrUpdatePost) modAction(ctx context.Context, rc *RequestContext) (*domain.Post, bool, error) {
	if a.Type != string(Update) {
		return nil, false, nil
	}
	stored, err := rc.store.ReadPostByApID(ctx, a.Object.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, persistence("read post", err)
	}
	changed := false
	if locked := a.Object.lockedFlag(); locked != nil && *locked != stored.Locked {
		changed = true
	}
	if a.Object.Stickied != nil && *a.Object.Stickied != stored.Stickied {
		changed = true
	}
	return stored, changed, nil
}

func (a *CreateOrUpdatePost) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	communityID := a.communityID()
	if communityID == "" {
		return protocolError("verify post", "no community in %s", a.ID)
	}
	if err := verifyURLsMatch(a.Object.communityID(), communityID); err != nil {
		return err
	}
	_, community, err := rc.verifyPersonInCommunity(ctx, a.Actor, NewObjectID[*domain.Community](communityID))
	if err != nil {
		return err
	}
	stored, isMod, err := a.modAction(ctx, rc)
	if err != nil {
		return err
	}
	// posts never move between communities
	if stored != nil && stored.CommunityId != community.Id {
		return protocolError("verify post", "%s belongs to another community than %s", stored.ApID, communityID)
	}
	if isMod && a.ActorID() != a.Object.AttributedTo {
		return rc.verifyModAction(ctx, a.ActorID(), community)
	}
	if err := verifyDomainsMatch(a.ActorID(), a.Object.ID); err != nil {
		return err
	}
	return verifyURLsMatch(a.ActorID(), a.Object.AttributedTo)
}

// receive upserts the post. A moderator's update only touches the locked
// and stickied flags.
func (a *CreateOrUpdatePost) receive(ctx context.Context, rc *RequestContext) error {
	stored, isMod, err := a.modAction(ctx, rc)
	if err != nil {
		return err
	}
	if isMod && a.ActorID() != a.Object.AttributedTo {
		form := &domain.PostForm{
			Name:         stored.Name,
			URL:          stored.URL,
			Body:         stored.Body,
			ThumbnailURL: stored.ThumbnailURL,
			CreatorId:    stored.CreatorId,
			CommunityId:  stored.CommunityId,
			ApID:         stored.ApID,
			Nsfw:         stored.Nsfw,
			Locked:       a.Object.lockedFlag(),
			Stickied:     a.Object.Stickied,
			Local:        stored.Local,
			Published:    &stored.Published,
			Updated:      stored.Updated,
		}
		if _, err := rc.store.UpsertPost(ctx, form); err != nil {
			return persistence("moderate post", err)
		}
		return nil
	}
	post, err := rc.postFromApub(ctx, &a.Object)
	if err != nil {
		return err
	}
	log.Infof("Inbox: Stored post %s", post.ApID)
	return nil
}

// CreateOrUpdateComment carries a comment. cc holds the community and,
// optionally, the author of the parent.
type CreateOrUpdateComment struct {
	envelope
	Actor    ObjectID[*domain.Person] `json:"actor"`
	To       URLs                     `json:"to"`
	Object   NoteObject               `json:"object"`
	Cc       URLs                     `json:"cc,omitempty"`
	Audience string                   `json:"audience,omitempty"`
}

func (a *CreateOrUpdateComment) ActorID() string { return a.Actor.String() }

func (a *CreateOrUpdateComment) communityID() string {
	if a.Audience != "" {
		return a.Audience
	}
	if a.Object.Audience != "" {
		return a.Object.Audience
	}
	return a.Cc.firstNonPublic()
}

func (a *CreateOrUpdateComment) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	post, _, err := a.Object.InReplyTo.resolve(ctx, rc)
	if err != nil {
		return err
	}
	if err := verifyPostNotLocked(post); err != nil {
		return err
	}
	community, err := rc.store.ReadCommunity(ctx, post.CommunityId)
	if err != nil {
		return persistence("read community", err)
	}
	if id := a.communityID(); id != "" {
		if err := verifyURLsMatch(id, community.ActorID); err != nil {
			return err
		}
	}
	if _, _, err := rc.verifyPersonInCommunity(ctx, a.Actor, NewObjectID[*domain.Community](community.ActorID)); err != nil {
		return err
	}
	stored, err := rc.store.ReadCommentByApID(ctx, a.Object.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return persistence("read comment", err)
	}
	if err == nil && stored.PostId != post.Id {
		return protocolError("verify comment", "%s belongs to another post than %s", stored.ApID, post.ApID)
	}
	if err := verifyDomainsMatch(a.ActorID(), a.Object.ID); err != nil {
		return err
	}
	return verifyURLsMatch(a.ActorID(), a.Object.AttributedTo)
}

func (a *CreateOrUpdateComment) receive(ctx context.Context, rc *RequestContext) error {
	comment, err := rc.commentFromApub(ctx, &a.Object)
	if err != nil {
		return err
	}
	log.Infof("Inbox: Stored comment %s", comment.ApID)
	return nil
}

// DeletePostOrComment is sent by the author (delete) or by a moderator
// (removal) of a post or comment.
type DeletePostOrComment struct {
	envelope
	Actor   ObjectID[*domain.Person] `json:"actor"`
	To      URLs                     `json:"to"`
	Object  ObjectID[*PostOrComment] `json:"object"`
	Cc      URLs                     `json:"cc,omitempty"`
	Summary string                   `json:"summary,omitempty"`
}

func (a *DeletePostOrComment) ActorID() string { return a.Actor.String() }

func (a *DeletePostOrComment) communityID() string { return a.Cc.firstNonPublic() }

// lookup finds the deleted object in the store only. Objects we never saw
// need no deletion.
func (a *DeletePostOrComment) lookup(ctx context.Context, rc *RequestContext) (*PostOrComment, error) {
	post, err := rc.store.ReadPostByApID(ctx, a.Object.String())
	if err == nil {
		return &PostOrComment{Post: post}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, persistence("read post", err)
	}
	comment, err := rc.store.ReadCommentByApID(ctx, a.Object.String())
	if err == nil {
		return &PostOrComment{Comment: comment}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, persistence("read comment", err)
	}
	return nil, nil
}

// ownership returns the creator and community id of a stored post or comment.
func (rc *RequestContext) ownership(ctx context.Context, target *PostOrComment) (creatorID, communityID string, err error) {
	post := target.Post
	var creatorUUID uuid.UUID
	if post != nil {
		creatorUUID = post.CreatorId
	} else {
		creatorUUID = target.Comment.CreatorId
		post, err = rc.store.ReadPost(ctx, target.Comment.PostId)
		if err != nil {
			return "", "", persistence("read post", err)
		}
	}
	person, err := rc.store.ReadPerson(ctx, creatorUUID)
	if err != nil {
		return "", "", persistence("read creator", err)
	}
	community, err := rc.store.ReadCommunity(ctx, post.CommunityId)
	if err != nil {
		return "", "", persistence("read community", err)
	}
	return person.ActorID, community.ActorID, nil
}

func (a *DeletePostOrComment) verify(ctx context.Context, rc *RequestContext) error {
	if err := rc.verifyActivity(a.ID, a.ActorID()); err != nil {
		return err
	}
	communityID := a.communityID()
	if communityID == "" {
		return protocolError("verify delete", "no community in %s", a.ID)
	}
	_, community, err := rc.verifyPersonInCommunity(ctx, a.Actor, NewObjectID[*domain.Community](communityID))
	if err != nil {
		return err
	}
	target, err := a.lookup(ctx, rc)
	if err != nil || target == nil {
		return err
	}
	creatorID, targetCommunity, err := rc.ownership(ctx, target)
	if err != nil {
		return err
	}
	if err := verifyURLsMatch(targetCommunity, community.ActorID); err != nil {
		return err
	}
	if creatorID == a.ActorID() {
		return nil
	}
	return rc.verifyModAction(ctx, a.ActorID(), community)
}

func (a *DeletePostOrComment) receive(ctx context.Context, rc *RequestContext) error {
	target, err := a.lookup(ctx, rc)
	if err != nil || target == nil {
		return err
	}
	creatorID, _, err := rc.ownership(ctx, target)
	if err != nil {
		return err
	}
	byCreator := creatorID == a.ActorID()
	switch {
	case target.Post != nil && byCreator:
		err = rc.store.UpdatePostDeleted(ctx, target.Post.Id, true)
	case target.Post != nil:
		err = rc.store.UpdatePostRemoved(ctx, target.Post.Id, true)
	case byCreator:
		err = rc.store.UpdateCommentDeleted(ctx, target.Comment.Id, true)
	default:
		err = rc.store.UpdateCommentRemoved(ctx, target.Comment.Id, true)
	}
	if err != nil {
		return persistence("delete "+a.Object.String(), err)
	}
	log.Infof("Inbox: %s deleted %s", a.ActorID(), a.Object.String())
	return nil
}
