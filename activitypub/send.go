package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/burrow/domain"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// signer is a local actor whose key signs outgoing activities.
type signer struct {
	actorID       string
	privateKeyPem string
}

func personSigner(p *domain.Person) signer {
	return signer{actorID: p.ActorID, privateKeyPem: p.PrivateKey}
}

func communitySigner(c *domain.Community) signer {
	return signer{actorID: c.ActorID, privateKeyPem: c.PrivateKey}
}

// recipients drops empty and own-host inboxes and removes duplicates.
func (f *Federation) recipients(inboxes []string) []string {
	seen := make(map[string]bool, len(inboxes))
	var out []string
	for _, inbox := range inboxes {
		if inbox == "" || seen[inbox] || f.isLocalURL(inbox) {
			continue
		}
		seen[inbox] = true
		out = append(out, inbox)
	}
	slices.Sort(out)
	return out
}

// sendActivity records the activity and delivers it to every inbox.
// Delivery errors are combined and returned.
func (f *Federation) sendActivity(ctx context.Context, activity Activity, from signer, inboxes []string) error {
	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	return f.sendRaw(ctx, activity.ActivityID(), activity.ActivityType(), body, from, inboxes)
}

func (f *Federation) sendRaw(ctx context.Context, activityID, typ string, body []byte, from signer, inboxes []string) error {
	if from.privateKeyPem == "" {
		return fmt.Errorf("%s has no private key", from.actorID)
	}
	err := f.store.CreateActivity(ctx, &domain.Activity{
		ActivityURI:  activityID,
		ActivityType: typ,
		ActorURI:     from.actorID,
		ObjectURI:    objectURIOf(body),
		RawJSON:      string(body),
		Processed:    true,
		Local:        true,
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicate) {
		return persistence("record activity", err)
	}

	targets := f.recipients(inboxes)
	if len(targets) == 0 {
		return nil
	}
	log.Infof("Outbox: Sending %s %s to %d inboxes", typ, activityID, len(targets))

	out := &OutgoingActivity{
		ActivityID:    activityID,
		ActorID:       from.actorID,
		Body:          body,
		KeyID:         KeyID(from.actorID),
		PrivateKeyPem: from.privateKeyPem,
	}

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	g.SetLimit(max(f.settings.DeliveryConcurrency, 1))
	for _, inbox := range targets {
		g.Go(func() error {
			if err := f.transport.Deliver(ctx, inbox, out); err != nil {
				log.Warnf("Outbox: Failed to deliver %s to %s: %v", activityID, inbox, err)
				deliveriesTotal.WithLabelValues("failed").Inc()
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("deliver to %s: %w", inbox, err))
				mu.Unlock()
				return nil
			}
			deliveriesTotal.WithLabelValues("sent").Inc()
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// sendToCommunity distributes a community scoped activity. A local community
// announces it to its followers; a remote one receives it in its inbox and
// does the announcing itself.
func (f *Federation) sendToCommunity(ctx context.Context, activity announcable, from signer, community *domain.Community, extra []string) error {
	if !community.Local {
		return f.sendActivity(ctx, activity, from, append([]string{community.InboxOrSharedInbox()}, extra...))
	}
	body, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}
	err = f.store.CreateActivity(ctx, &domain.Activity{
		ActivityURI:  activity.ActivityID(),
		ActivityType: activity.ActivityType(),
		ActorURI:     from.actorID,
		ObjectURI:    objectURIOf(body),
		RawJSON:      string(body),
		Processed:    true,
		Local:        true,
	})
	if err != nil && !errors.Is(err, domain.ErrDuplicate) {
		return persistence("record activity", err)
	}
	return f.announce(ctx, community, body, extra)
}

// announce wraps inner in an Announce by community and sends it to the
// community's followers and the extra inboxes.
func (f *Federation) announce(ctx context.Context, community *domain.Community, inner []byte, extra []string) error {
	followers, err := f.store.ReadCommunityFollowers(ctx, community.Id)
	if err != nil {
		return persistence("read followers", err)
	}
	inboxes := slices.Clone(extra)
	for _, p := range followers {
		inboxes = append(inboxes, p.InboxOrSharedInbox())
	}
	a := &AnnounceActivity{
		envelope: newEnvelope(f.generateActivityID("Announce"), "Announce"),
		Actor:    NewObjectID[*domain.Community](community.ActorID),
		To:       URLs{PublicURL},
		Object:   json.RawMessage(inner),
		Cc:       URLs{community.FollowersURL},
	}
	return f.sendActivity(ctx, a, communitySigner(community), inboxes)
}

// SendFollowCommunity subscribes a local person to a community. Follows of
// remote communities stay pending until the community accepts them.
func (f *Federation) SendFollowCommunity(ctx context.Context, person *domain.Person, community *domain.Community) error {
	if community.Local {
		if err := f.store.Follow(ctx, community.Id, person.Id, false); err != nil {
			return persistence("follow", err)
		}
		return nil
	}
	if err := f.store.Follow(ctx, community.Id, person.Id, true); err != nil {
		return persistence("follow", err)
	}
	follow := f.newFollow(person, community)
	return f.sendActivity(ctx, follow, personSigner(person), []string{community.InboxURL})
}

func (f *Federation) newFollow(person *domain.Person, community *domain.Community) *FollowCommunity {
	return &FollowCommunity{
		envelope: newEnvelope(f.generateActivityID("Follow"), "Follow"),
		Actor:    NewObjectID[*domain.Person](person.ActorID),
		To:       URLs{community.ActorID},
		Object:   NewObjectID[*domain.Community](community.ActorID),
	}
}

// SendUndoFollowCommunity removes the subscription and tells the community.
func (f *Federation) SendUndoFollowCommunity(ctx context.Context, person *domain.Person, community *domain.Community) error {
	if err := f.store.Unfollow(ctx, community.Id, person.Id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return persistence("unfollow", err)
	}
	if community.Local {
		return nil
	}
	undo := &UndoFollowCommunity{
		envelope: newEnvelope(f.generateActivityID("Undo"), "Undo"),
		Actor:    NewObjectID[*domain.Person](person.ActorID),
		To:       URLs{community.ActorID},
		Object:   *f.newFollow(person, community),
	}
	return f.sendActivity(ctx, undo, personSigner(person), []string{community.InboxURL})
}

func (f *Federation) sendAcceptFollow(ctx context.Context, follow *FollowCommunity, community *domain.Community, person *domain.Person) error {
	accept := &AcceptFollowCommunity{
		envelope: newEnvelope(f.generateActivityID("Accept"), "Accept"),
		Actor:    NewObjectID[*domain.Community](community.ActorID),
		To:       URLs{person.ActorID},
		Object:   *follow,
	}
	return f.sendActivity(ctx, accept, communitySigner(community), []string{person.InboxURL})
}

func (f *Federation) newBlock(mod *domain.Person, community *domain.Community, target *domain.Person) *BlockUserFromCommunity {
	return &BlockUserFromCommunity{
		envelope: newEnvelope(f.generateActivityID("Block"), "Block"),
		Actor:    NewObjectID[*domain.Person](mod.ActorID),
		To:       URLs{PublicURL},
		Object:   NewObjectID[*domain.Person](target.ActorID),
		Cc:       URLs{community.ActorID},
		Target:   community.ActorID,
	}
}

// SendBlockUser announces a community ban the moderator already applied locally.
func (f *Federation) SendBlockUser(ctx context.Context, mod *domain.Person, community *domain.Community, target *domain.Person) error {
	block := f.newBlock(mod, community, target)
	return f.sendToCommunity(ctx, block, personSigner(mod), community, []string{target.InboxOrSharedInbox()})
}

func (f *Federation) SendUndoBlockUser(ctx context.Context, mod *domain.Person, community *domain.Community, target *domain.Person) error {
	undo := &UndoBlockUserFromCommunity{
		envelope: newEnvelope(f.generateActivityID("Undo"), "Undo"),
		Actor:    NewObjectID[*domain.Person](mod.ActorID),
		To:       URLs{PublicURL},
		Object:   *f.newBlock(mod, community, target),
		Cc:       URLs{community.ActorID},
	}
	return f.sendToCommunity(ctx, undo, personSigner(mod), community, []string{target.InboxOrSharedInbox()})
}

// SendUpdateCommunity publishes the current description of a community.
func (f *Federation) SendUpdateCommunity(ctx context.Context, mod *domain.Person, community *domain.Community) error {
	group, err := f.toApubCommunity(ctx, community)
	if err != nil {
		return err
	}
	group.Context = nil
	update := &UpdateCommunity{
		envelope: newEnvelope(f.generateActivityID("Update"), "Update"),
		Actor:    mod.ActorID,
		To:       URLs{PublicURL},
		Object:   *group,
		Cc:       URLs{community.ActorID},
	}
	return f.sendToCommunity(ctx, update, personSigner(mod), community, nil)
}

// SendCreateOrUpdatePost publishes a post of a local person.
func (f *Federation) SendCreateOrUpdatePost(ctx context.Context, typ CreateOrUpdateType, post *domain.Post) error {
	creator, err := f.store.ReadPerson(ctx, post.CreatorId)
	if err != nil {
		return persistence("read creator", err)
	}
	community, err := f.store.ReadCommunity(ctx, post.CommunityId)
	if err != nil {
		return persistence("read community", err)
	}
	page, err := f.toApubPost(ctx, post)
	if err != nil {
		return err
	}
	page.Context = nil
	activity := &CreateOrUpdatePost{
		envelope: newEnvelope(f.generateActivityID(string(typ)), string(typ)),
		Actor:    NewObjectID[*domain.Person](creator.ActorID),
		To:       URLs{PublicURL},
		Object:   *page,
		Cc:       URLs{community.ActorID},
		Audience: community.ActorID,
	}
	return f.sendToCommunity(ctx, activity, personSigner(creator), community, nil)
}

// SendCreateOrUpdateComment publishes a comment of a local person. The
// author of the parent is addressed directly as well.
func (f *Federation) SendCreateOrUpdateComment(ctx context.Context, typ CreateOrUpdateType, comment *domain.Comment) error {
	creator, err := f.store.ReadPerson(ctx, comment.CreatorId)
	if err != nil {
		return persistence("read creator", err)
	}
	post, err := f.store.ReadPost(ctx, comment.PostId)
	if err != nil {
		return persistence("read post", err)
	}
	community, err := f.store.ReadCommunity(ctx, post.CommunityId)
	if err != nil {
		return persistence("read community", err)
	}
	parentCreatorID := post.CreatorId
	if comment.ParentId != nil {
		parent, err := f.store.ReadComment(ctx, *comment.ParentId)
		if err != nil {
			return persistence("read parent comment", err)
		}
		parentCreatorID = parent.CreatorId
	}
	parentCreator, err := f.store.ReadPerson(ctx, parentCreatorID)
	if err != nil {
		return persistence("read parent creator", err)
	}

	note, err := f.toApubComment(ctx, comment)
	if err != nil {
		return err
	}
	note.Context = nil
	cc := URLs{community.ActorID}
	var extra []string
	if parentCreator.Id != creator.Id {
		cc = append(cc, parentCreator.ActorID)
		extra = append(extra, parentCreator.InboxOrSharedInbox())
	}
	activity := &CreateOrUpdateComment{
		envelope: newEnvelope(f.generateActivityID(string(typ)), string(typ)),
		Actor:    NewObjectID[*domain.Person](creator.ActorID),
		To:       URLs{PublicURL},
		Object:   *note,
		Cc:       cc,
		Audience: community.ActorID,
	}
	return f.sendToCommunity(ctx, activity, personSigner(creator), community, extra)
}

// SendDeletePostOrComment announces the deletion (by its author) or removal
// (by a moderator) of the post or comment objectID.
func (f *Federation) SendDeletePostOrComment(ctx context.Context, actor *domain.Person, community *domain.Community, objectID string) error {
	del := &DeletePostOrComment{
		envelope: newEnvelope(f.generateActivityID("Delete"), "Delete"),
		Actor:    NewObjectID[*domain.Person](actor.ActorID),
		To:       URLs{PublicURL},
		Object:   NewObjectID[*PostOrComment](objectID),
		Cc:       URLs{community.ActorID},
	}
	return f.sendToCommunity(ctx, del, personSigner(actor), community, nil)
}

func (f *Federation) privateMessageParties(ctx context.Context, pm *domain.PrivateMessage) (*domain.Person, *domain.Person, error) {
	creator, err := f.store.ReadPerson(ctx, pm.CreatorId)
	if err != nil {
		return nil, nil, persistence("read creator", err)
	}
	recipient, err := f.store.ReadPerson(ctx, pm.RecipientId)
	if err != nil {
		return nil, nil, persistence("read recipient", err)
	}
	return creator, recipient, nil
}

func (f *Federation) SendCreateOrUpdatePrivateMessage(ctx context.Context, typ CreateOrUpdateType, pm *domain.PrivateMessage) error {
	creator, recipient, err := f.privateMessageParties(ctx, pm)
	if err != nil {
		return err
	}
	msg, err := f.toApubPrivateMessage(ctx, pm)
	if err != nil {
		return err
	}
	msg.Context = nil
	activity := &CreateOrUpdatePrivateMessage{
		envelope: newEnvelope(f.generateActivityID(string(typ)), string(typ)),
		Actor:    NewObjectID[*domain.Person](creator.ActorID),
		To:       URLs{recipient.ActorID},
		Object:   *msg,
	}
	return f.sendActivity(ctx, activity, personSigner(creator), []string{recipient.InboxURL})
}

func (f *Federation) newDeletePrivateMessage(creator, recipient *domain.Person, pm *domain.PrivateMessage) *DeletePrivateMessage {
	return &DeletePrivateMessage{
		envelope: newEnvelope(f.generateActivityID("Delete"), "Delete"),
		Actor:    NewObjectID[*domain.Person](creator.ActorID),
		To:       URLs{recipient.ActorID},
		Object:   NewObjectID[*domain.PrivateMessage](pm.ApID),
	}
}

func (f *Federation) SendDeletePrivateMessage(ctx context.Context, pm *domain.PrivateMessage) error {
	creator, recipient, err := f.privateMessageParties(ctx, pm)
	if err != nil {
		return err
	}
	del := f.newDeletePrivateMessage(creator, recipient, pm)
	return f.sendActivity(ctx, del, personSigner(creator), []string{recipient.InboxURL})
}

func (f *Federation) SendUndoDeletePrivateMessage(ctx context.Context, pm *domain.PrivateMessage) error {
	creator, recipient, err := f.privateMessageParties(ctx, pm)
	if err != nil {
		return err
	}
	undo := &UndoDeletePrivateMessage{
		envelope: newEnvelope(f.generateActivityID("Undo"), "Undo"),
		Actor:    NewObjectID[*domain.Person](creator.ActorID),
		To:       URLs{recipient.ActorID},
		Object:   *f.newDeletePrivateMessage(creator, recipient, pm),
	}
	return f.sendActivity(ctx, undo, personSigner(creator), []string{recipient.InboxURL})
}
