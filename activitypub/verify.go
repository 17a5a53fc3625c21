package activitypub

import (
	"context"

	"github.com/deemkeen/burrow/domain"
)

// verifyActivity checks the envelope: both identifiers are acceptable and
// the activity was minted on the actor's instance.
func (rc *RequestContext) verifyActivity(id, actor string) error {
	if id == "" || actor == "" {
		return protocolError("verify", "activity without id or actor")
	}
	if err := rc.fed.checkIsApubIDValid(actor); err != nil {
		return err
	}
	return verifyDomainsMatch(id, actor)
}

// verifyPerson resolves the actor and rejects site-banned persons.
func (rc *RequestContext) verifyPerson(ctx context.Context, actor ObjectID[*domain.Person]) (*domain.Person, error) {
	person, err := Dereference(ctx, rc, actor)
	if err != nil {
		return nil, err
	}
	if person.Banned {
		return nil, forbidden("verify person", "%s is banned from this instance", person.ActorID)
	}
	return person, nil
}

// verifyPersonInCommunity resolves both sides and rejects persons banned
// from the site or from the community.
func (rc *RequestContext) verifyPersonInCommunity(ctx context.Context, actor ObjectID[*domain.Person], communityID ObjectID[*domain.Community]) (*domain.Person, *domain.Community, error) {
	community, err := Dereference(ctx, rc, communityID)
	if err != nil {
		return nil, nil, err
	}
	person, err := rc.verifyPerson(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	banned, err := rc.store.IsBanned(ctx, community.Id, person.Id)
	if err != nil {
		return nil, nil, persistence("check ban", err)
	}
	if banned {
		return nil, nil, forbidden("verify person in community", "%s is banned from %s", person.ActorID, community.ActorID)
	}
	return person, community, nil
}

// verifyModAction accepts the community itself, its creator, a recorded
// moderator or an admin of this instance.
func (rc *RequestContext) verifyModAction(ctx context.Context, actorID string, community *domain.Community) error {
	if actorID == community.ActorID || (community.CreatorActorID != "" && actorID == community.CreatorActorID) {
		return nil
	}
	isMod, err := rc.store.IsModerator(ctx, community.Id, actorID)
	if err != nil {
		return persistence("check moderator", err)
	}
	if isMod {
		return nil
	}
	person, err := rc.store.ReadPersonByActorID(ctx, actorID)
	if err == nil && person.Local && person.Admin {
		return nil
	}
	return forbidden("verify mod action", "%s is not a moderator of %s", actorID, community.ActorID)
}

func verifyURLsMatch(a, b string) error {
	if a != b {
		return protocolError("verify", "%s does not match %s", a, b)
	}
	return nil
}

func verifyDomainsMatch(a, b string) error {
	ha, hb := hostOf(a), hostOf(b)
	if ha == "" || ha != hb {
		return protocolError("verify", "domain of %s does not match %s", a, b)
	}
	return nil
}

func verifyPostNotLocked(post *domain.Post) error {
	if post.Locked {
		return protocolError("verify", "post %s is locked", post.ApID)
	}
	return nil
}

// verifyAddressed requires the community among the recipients of a
// community scoped activity.
func verifyAddressed(communityID string, recipients ...URLs) error {
	for _, r := range recipients {
		if r.Contains(communityID) {
			return nil
		}
	}
	return protocolError("verify", "activity is not addressed to %s", communityID)
}
