package activitypub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/deemkeen/burrow/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// world is a remote community with its creator, a second moderator, a
// member and a person without any standing.
type world struct {
	creator   string
	mod       string
	member    string
	stranger  string
	community string
}

func (e *testEnv) serveWorld(t *testing.T) world {
	t.Helper()
	w := world{
		creator:  e.servePerson(t, "carol"),
		mod:      e.servePerson(t, "mo"),
		member:   e.servePerson(t, "tess"),
		stranger: e.servePerson(t, "mallory"),
	}
	w.community = e.serveGroup(t, "lounge", w.creator, w.creator, w.mod)
	return w
}

// storeRemotePerson records a person of another instance without serving it.
func (e *testEnv) storeRemotePerson(t *testing.T, base, name string, sharedInbox bool) *domain.Person {
	t.Helper()
	obj := personObjectAt(base, name)
	now := time.Now()
	form := &domain.PersonForm{
		Name:            name,
		ActorID:         obj.ID,
		InboxURL:        obj.Inbox,
		PublicKey:       obj.PublicKey.PublicKeyPem,
		LastRefreshedAt: &now,
	}
	if sharedInbox {
		form.SharedInboxURL = obj.Endpoints.SharedInbox
	}
	p, err := e.store.UpsertPerson(e.ctx, form)
	require.NoError(t, err)
	return p
}

func (e *testEnv) process(t *testing.T, activity map[string]any) Outcome {
	t.Helper()
	return e.fed.ProcessInbound(e.ctx, mustJSON(t, activity))
}

// newActivity builds a public activity minted on the actor's instance.
func newActivity(typ, actor string, object any) map[string]any {
	return map[string]any{
		"@context": ActivityStreamsContext,
		"id":       fmt.Sprintf("https://%s/activities/%s/%s", hostOf(actor), strings.ToLower(typ), uuid.NewString()),
		"type":     typ,
		"actor":    actor,
		"to":       []string{PublicURL},
		"object":   object,
	}
}

func pageActivity(typ, actor string, page *PageObject) map[string]any {
	a := newActivity(typ, actor, page)
	a["cc"] = []string{page.Audience}
	a["audience"] = page.Audience
	return a
}

func noteActivity(typ, actor string, note *NoteObject) map[string]any {
	a := newActivity(typ, actor, note)
	a["cc"] = []string(note.Cc)
	return a
}

func TestFollowRemoteCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	alice := env.localPerson(t, "alice")
	community := env.resolveCommunity(t, w.community)

	require.NoError(t, env.fed.SendFollowCommunity(env.ctx, alice, community))
	follower, err := env.store.ReadFollower(env.ctx, community.Id, alice.Id)
	require.NoError(t, err)
	require.True(t, follower.Pending)
	require.Equal(t, []string{community.InboxURL}, env.transport.inboxes())
	follow := env.transport.delivered[0].activity.Body

	accept := newActivity("Accept", w.community, json.RawMessage(follow))
	accept["to"] = []string{alice.ActorID}
	requireApplied(t, env.process(t, accept))

	follower, err = env.store.ReadFollower(env.ctx, community.Id, alice.Id)
	require.NoError(t, err)
	require.False(t, follower.Pending)
}

func TestAcceptWithoutFollow(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	bob := env.localPerson(t, "bob")
	community := env.resolveCommunity(t, w.community)

	follow := env.fed.newFollow(bob, community)
	accept := newActivity("Accept", w.community, follow)
	accept["to"] = []string{bob.ActorID}
	requireRejected(t, env.process(t, accept), ErrNotFound)

	// the rejected activity leaves nothing behind
	_, err := env.store.ReadActivityByURI(env.ctx, accept["id"].(string))
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.store.ReadFollower(env.ctx, community.Id, bob.Id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAcceptFromOtherCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	alice := env.localPerson(t, "alice")
	community := env.resolveCommunity(t, w.community)
	attic := env.serveGroup(t, "attic", w.creator)

	follow := env.fed.newFollow(alice, community)
	accept := newActivity("Accept", attic, follow)
	requireRejected(t, env.process(t, accept), ErrProtocolViolation)
}

func TestInboundFollowOfLocalCommunity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	gophers := env.localCommunity(t, "gophers", alice)
	tess := env.servePerson(t, "tess")

	follow := newActivity("Follow", tess, gophers.ActorID)
	follow["to"] = []string{gophers.ActorID}
	requireApplied(t, env.process(t, follow))

	person, err := env.store.ReadPersonByActorID(env.ctx, tess)
	require.NoError(t, err)
	follower, err := env.store.ReadFollower(env.ctx, gophers.Id, person.Id)
	require.NoError(t, err)
	require.False(t, follower.Pending)

	// the Accept goes out once the follow is committed
	require.Equal(t, map[string][]string{person.InboxURL: {"Accept"}}, env.transport.deliveredTypes(t))
	var accept struct {
		Actor  string
		Object struct{ ID string }
	}
	require.NoError(t, json.Unmarshal(env.transport.delivered[0].activity.Body, &accept))
	require.Equal(t, gophers.ActorID, accept.Actor)
	require.Equal(t, follow["id"], accept.Object.ID)
}

// retryingStore rolls the first transaction back as a busy database would
// and runs the closure again on a fresh one.
type retryingStore struct {
	domain.Store
	retried bool
}

var errBusy = errors.New("database is locked")

func (s *retryingStore) InTransaction(ctx context.Context, fn func(domain.Store) error) error {
	if !s.retried {
		s.retried = true
		err := s.Store.InTransaction(ctx, func(tx domain.Store) error {
			if err := fn(tx); err != nil {
				return err
			}
			return errBusy
		})
		if !errors.Is(err, errBusy) {
			return err
		}
	}
	return s.Store.InTransaction(ctx, fn)
}

func TestFollowRetriedAfterBusyDatabase(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	gophers := env.localCommunity(t, "gophers", alice)
	tess := env.servePerson(t, "tess")
	store := &retryingStore{Store: env.store}
	fed := New(testSettings(), store, env.transport)

	follow := newActivity("Follow", tess, gophers.ActorID)
	follow["to"] = []string{gophers.ActorID}
	out := fed.ProcessInbound(env.ctx, mustJSON(t, follow))
	requireApplied(t, out)
	require.False(t, out.Duplicate)
	require.True(t, store.retried)

	person, err := env.store.ReadPersonByActorID(env.ctx, tess)
	require.NoError(t, err)
	follower, err := env.store.ReadFollower(env.ctx, gophers.Id, person.Id)
	require.NoError(t, err)
	require.False(t, follower.Pending)
	// the rolled back attempt sends nothing
	require.Equal(t, map[string][]string{person.InboxURL: {"Accept"}}, env.transport.deliveredTypes(t))
}

func TestInboundFollowOfRemoteCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)

	follow := newActivity("Follow", w.member, w.community)
	follow["to"] = []string{w.community}
	requireRejected(t, env.process(t, follow), ErrNotFound)
	require.Empty(t, env.transport.inboxes())
}

func TestUndoFollowNeverGranted(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	gophers := env.localCommunity(t, "gophers", alice)
	tess := env.servePerson(t, "tess")

	follow := newActivity("Follow", tess, gophers.ActorID)
	follow["to"] = []string{gophers.ActorID}
	undo := newActivity("Undo", tess, follow)
	requireApplied(t, env.process(t, undo))
}

func TestBlockUserFromCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	community := env.resolveCommunity(t, w.community)
	tess := env.resolvePerson(t, w.member)
	require.NoError(t, env.store.Follow(env.ctx, community.Id, tess.Id, false))

	block := newActivity("Block", w.mod, w.member)
	block["cc"] = []string{w.community}
	block["target"] = w.community
	requireApplied(t, env.process(t, block))

	banned, err := env.store.IsBanned(env.ctx, community.Id, tess.Id)
	require.NoError(t, err)
	require.True(t, banned)
	_, err = env.store.ReadFollower(env.ctx, community.Id, tess.Id)
	require.ErrorIs(t, err, domain.ErrNotFound)

	// replays are no-ops
	replay := env.process(t, block)
	requireApplied(t, replay)
	require.True(t, replay.Duplicate)
	block["id"] = remote + "/activities/block/again"
	requireApplied(t, env.process(t, block))

	// a banned member cannot post
	page := remotePageObject(remote+"/post/banned", w.member, w.community)
	requireRejected(t, env.process(t, pageActivity("Create", w.member, page)), ErrForbidden)

	undo := newActivity("Undo", w.mod, block)
	undo["cc"] = []string{w.community}
	requireApplied(t, env.process(t, undo))
	banned, err = env.store.IsBanned(env.ctx, community.Id, tess.Id)
	require.NoError(t, err)
	require.False(t, banned)

	undo["id"] = remote + "/activities/undo/again"
	requireApplied(t, env.process(t, undo))
}

func TestBlockByNonModerator(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)

	block := newActivity("Block", w.stranger, w.member)
	block["cc"] = []string{w.community}
	requireRejected(t, env.process(t, block), ErrForbidden)

	community := env.resolveCommunity(t, w.community)
	tess := env.resolvePerson(t, w.member)
	banned, err := env.store.IsBanned(env.ctx, community.Id, tess.Id)
	require.NoError(t, err)
	require.False(t, banned)
}

func TestModeratorRemovedByHomeInstance(t *testing.T) {
	settings := testSettings()
	settings.RefreshInterval = time.Nanosecond
	env := newTestEnvWith(t, settings)
	w := env.serveWorld(t)

	community := env.resolveCommunity(t, w.community)
	isMod, err := env.store.IsModerator(env.ctx, community.Id, w.mod)
	require.NoError(t, err)
	require.True(t, isMod)

	// the home instance drops mo from the moderator list
	env.serveGroup(t, "lounge", w.creator, w.creator)
	env.resolveCommunity(t, w.community)
	isMod, err = env.store.IsModerator(env.ctx, community.Id, w.mod)
	require.NoError(t, err)
	require.False(t, isMod)

	block := func(actor string) map[string]any {
		a := newActivity("Block", actor, w.member)
		a["cc"] = []string{w.community}
		a["target"] = w.community
		return a
	}
	requireRejected(t, env.process(t, block(w.mod)), ErrForbidden)
	requireApplied(t, env.process(t, block(w.creator)))
}

func TestUpdateCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	before := env.resolveCommunity(t, w.community)

	group := remoteGroupObject("lounge", w.stranger)
	group.Name = "Renamed"
	group.Summary = "<p>New description</p>"
	group.Source = markdownSource("New description")
	group.Sensitive = true
	group.Icon = imageObject(remote + "/pictrs/icon.png")
	group.Inbox = remote + "/hijacked/inbox"
	group.PublicKey.PublicKeyPem = "not a key"
	update := func(actor string) map[string]any {
		a := newActivity("Update", actor, group)
		a["cc"] = []string{w.community}
		return a
	}

	requireRejected(t, env.process(t, update(w.stranger)), ErrForbidden)
	unchanged, err := env.store.ReadCommunity(env.ctx, before.Id)
	require.NoError(t, err)
	require.Equal(t, before.Title, unchanged.Title)

	requireApplied(t, env.process(t, update(w.creator)))
	after, err := env.store.ReadCommunity(env.ctx, before.Id)
	require.NoError(t, err)
	require.Equal(t, "Renamed", after.Title)
	require.Equal(t, "New description", after.Description)
	require.True(t, after.Nsfw)
	require.Equal(t, remote+"/pictrs/icon.png", after.Icon)
	require.Equal(t, before.InboxURL, after.InboxURL)
	require.Equal(t, before.PublicKey, after.PublicKey)
	require.Equal(t, before.CreatorActorID, after.CreatorActorID)
	require.Equal(t, before.FollowersURL, after.FollowersURL)

	group.Name = "By itself"
	requireApplied(t, env.process(t, update(w.community)))
	after, err = env.store.ReadCommunity(env.ctx, before.Id)
	require.NoError(t, err)
	require.Equal(t, "By itself", after.Title)
}

func TestUpdateCommunityNotAddressed(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)

	update := newActivity("Update", w.creator, remoteGroupObject("lounge", w.creator))
	requireRejected(t, env.process(t, update), ErrProtocolViolation)
}

func TestCreateAndUpdatePost(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	postID := remote + "/post/7"

	requireApplied(t, env.process(t, pageActivity("Create", w.member, remotePageObject(postID, w.member, w.community))))
	post, err := env.store.ReadPostByApID(env.ctx, postID)
	require.NoError(t, err)
	require.Equal(t, "A remote post", post.Name)
	require.Equal(t, "Post body", post.Body)
	require.False(t, post.Local)

	edited := remotePageObject(postID, w.member, w.community)
	edited.Name = "Edited"
	requireApplied(t, env.process(t, pageActivity("Update", w.member, edited)))
	post, err = env.store.ReadPostByApID(env.ctx, postID)
	require.NoError(t, err)
	require.Equal(t, "Edited", post.Name)

	vandalized := remotePageObject(postID, w.member, w.community)
	vandalized.Name = "Vandalized"
	requireRejected(t, env.process(t, pageActivity("Update", w.stranger, vandalized)), ErrProtocolViolation)

	// a moderator locks the post; nothing else changes
	disabled := false
	locked := remotePageObject(postID, w.member, w.community)
	locked.Name = "Hijacked"
	locked.CommentsEnabled = &disabled
	requireRejected(t, env.process(t, pageActivity("Update", w.stranger, locked)), ErrForbidden)
	requireApplied(t, env.process(t, pageActivity("Update", w.mod, locked)))
	post, err = env.store.ReadPostByApID(env.ctx, postID)
	require.NoError(t, err)
	require.True(t, post.Locked)
	require.Equal(t, "Edited", post.Name)

	note := remoteNoteObject(remote+"/comment/late", w.member, w.community, replyTo(postID))
	requireRejected(t, env.process(t, noteActivity("Create", w.member, note)), ErrProtocolViolation)

	// a post stays in its community, whoever sends the update
	attic := env.serveGroup(t, "attic", w.creator)
	atticPostID := remote + "/post/attic"
	requireApplied(t, env.process(t, pageActivity("Create", w.member, remotePageObject(atticPostID, w.member, attic))))
	foreignLock := remotePageObject(atticPostID, w.member, w.community)
	foreignLock.CommentsEnabled = &disabled
	requireRejected(t, env.process(t, pageActivity("Update", w.mod, foreignLock)), ErrProtocolViolation)
	moved := remotePageObject(atticPostID, w.member, w.community)
	moved.Name = "Moved"
	requireRejected(t, env.process(t, pageActivity("Update", w.member, moved)), ErrProtocolViolation)

	atticCommunity, err := env.store.ReadCommunityByActorID(env.ctx, attic)
	require.NoError(t, err)
	post, err = env.store.ReadPostByApID(env.ctx, atticPostID)
	require.NoError(t, err)
	require.False(t, post.Locked)
	require.Equal(t, "A remote post", post.Name)
	require.Equal(t, atticCommunity.Id, post.CommunityId)
}

func TestUpdateCommentKeepsPost(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	first, second := remote+"/post/first", remote+"/post/second"
	requireApplied(t, env.process(t, pageActivity("Create", w.member, remotePageObject(first, w.member, w.community))))
	requireApplied(t, env.process(t, pageActivity("Create", w.member, remotePageObject(second, w.member, w.community))))

	commentID := remote + "/comment/stay"
	requireApplied(t, env.process(t, noteActivity("Create", w.member, remoteNoteObject(commentID, w.member, w.community, replyTo(first)))))
	moved := remoteNoteObject(commentID, w.member, w.community, replyTo(second))
	requireRejected(t, env.process(t, noteActivity("Update", w.member, moved)), ErrProtocolViolation)

	post, err := env.store.ReadPostByApID(env.ctx, first)
	require.NoError(t, err)
	comment, err := env.store.ReadCommentByApID(env.ctx, commentID)
	require.NoError(t, err)
	require.Equal(t, post.Id, comment.PostId)
}

func TestCreatePostCommunityMismatch(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	attic := env.serveGroup(t, "attic", w.creator)

	create := pageActivity("Create", w.member, remotePageObject(remote+"/post/x", w.member, w.community))
	create["audience"] = attic
	requireRejected(t, env.process(t, create), ErrProtocolViolation)
}

func TestCommentFetchesMissingPost(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	postID := remote + "/post/3"
	env.transport.serve(t, postID, remotePageObject(postID, w.creator, w.community))

	note := remoteNoteObject(remote+"/comment/3", w.member, w.community, replyTo(postID))
	requireApplied(t, env.process(t, noteActivity("Create", w.member, note)))
	require.Contains(t, env.transport.fetched, postID)

	post, err := env.store.ReadPostByApID(env.ctx, postID)
	require.NoError(t, err)
	comment, err := env.store.ReadCommentByApID(env.ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, post.Id, comment.PostId)
	require.Nil(t, comment.ParentId)
}

func TestCommentOnUnreachablePost(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)

	note := remoteNoteObject(remote+"/comment/4", w.member, w.community, replyTo(remote+"/post/404"))
	requireRejected(t, env.process(t, noteActivity("Create", w.member, note)), ErrNotFound)
	_, err := env.store.ReadCommentByApID(env.ctx, note.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletePostOrComment(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	postID := remote + "/post/5"
	note := remoteNoteObject(remote+"/comment/5", w.member, w.community, replyTo(postID))
	requireApplied(t, env.process(t, pageActivity("Create", w.member, remotePageObject(postID, w.member, w.community))))
	requireApplied(t, env.process(t, noteActivity("Create", w.member, note)))

	del := func(actor, object string) map[string]any {
		a := newActivity("Delete", actor, object)
		a["cc"] = []string{w.community}
		return a
	}

	requireRejected(t, env.process(t, del(w.stranger, postID)), ErrForbidden)

	requireApplied(t, env.process(t, del(w.member, note.ID)))
	comment, err := env.store.ReadCommentByApID(env.ctx, note.ID)
	require.NoError(t, err)
	require.True(t, comment.Deleted)
	require.False(t, comment.Removed)

	requireApplied(t, env.process(t, del(w.mod, postID)))
	post, err := env.store.ReadPostByApID(env.ctx, postID)
	require.NoError(t, err)
	require.True(t, post.Removed)
	require.False(t, post.Deleted)

	requireApplied(t, env.process(t, del(w.member, remote+"/post/never-seen")))
}

func TestPrivateMessages(t *testing.T) {
	env := newTestEnv(t)
	tess := env.servePerson(t, "tess")
	mallory := env.servePerson(t, "mallory")
	dave := env.localPerson(t, "dave")
	pmID := remote + "/private_message/1"

	message := func(id, to string) map[string]any {
		a := newActivity("Create", tess, &ChatMessageObject{
			ID:           id,
			Type:         "ChatMessage",
			AttributedTo: tess,
			To:           URLs{to},
			Content:      "<p>hi there</p>",
			Published:    &published,
		})
		a["to"] = []string{to}
		return a
	}
	requireApplied(t, env.process(t, message(pmID, dave.ActorID)))
	pm, err := env.store.ReadPrivateMessageByApID(env.ctx, pmID)
	require.NoError(t, err)
	require.Equal(t, "hi there", pm.Content)
	require.Equal(t, dave.Id, pm.RecipientId)

	requireRejected(t, env.process(t, message(remote+"/private_message/2", mallory)), ErrProtocolViolation)

	del := func(actor string) map[string]any {
		a := newActivity("Delete", actor, pmID)
		a["to"] = []string{dave.ActorID}
		return a
	}
	requireRejected(t, env.process(t, del(mallory)), ErrForbidden)

	deletion := del(tess)
	requireApplied(t, env.process(t, deletion))
	pm, err = env.store.ReadPrivateMessageByApID(env.ctx, pmID)
	require.NoError(t, err)
	require.True(t, pm.Deleted)

	olga := personObjectAt("https://other.test", "olga")
	env.transport.serve(t, olga.ID, olga)
	forged := newActivity("Undo", olga.ID, deletion)
	requireRejected(t, env.process(t, forged), ErrProtocolViolation)

	undo := newActivity("Undo", tess, deletion)
	undo["to"] = []string{dave.ActorID}
	requireApplied(t, env.process(t, undo))
	pm, err = env.store.ReadPrivateMessageByApID(env.ctx, pmID)
	require.NoError(t, err)
	require.False(t, pm.Deleted)
}

func TestAnnouncedPost(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	postID := remote + "/post/11"
	create := pageActivity("Create", w.member, remotePageObject(postID, w.member, w.community))
	announce := func() map[string]any {
		a := newActivity("Announce", w.community, create)
		a["cc"] = []string{w.community + "/followers"}
		return a
	}

	out := env.process(t, announce())
	requireApplied(t, out)
	require.False(t, out.Duplicate)
	_, err := env.store.ReadPostByApID(env.ctx, postID)
	require.NoError(t, err)
	_, err = env.store.ReadActivityByURI(env.ctx, create["id"].(string))
	require.NoError(t, err)

	// the same activity announced again, or sent directly, is not applied twice
	requireApplied(t, env.process(t, announce()))
	direct := env.process(t, create)
	requireApplied(t, direct)
	require.True(t, direct.Duplicate)
}

func TestAnnounceByOtherCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	attic := env.serveGroup(t, "attic", w.creator)

	create := pageActivity("Create", w.member, remotePageObject(remote+"/post/12", w.member, w.community))
	requireRejected(t, env.process(t, newActivity("Announce", attic, create)), ErrProtocolViolation)
	_, err := env.store.ReadPostByApID(env.ctx, remote+"/post/12")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRelayToFollowersOfLocalCommunity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	bob := env.localPerson(t, "bob")
	gophers := env.localCommunity(t, "gophers", alice)
	tess := env.resolvePerson(t, env.servePerson(t, "tess"))
	rita := env.storeRemotePerson(t, remote, "rita", true)
	ursula := env.storeRemotePerson(t, "https://other.test", "ursula", false)
	for _, p := range []*domain.Person{tess, rita, ursula, bob} {
		require.NoError(t, env.store.Follow(env.ctx, gophers.Id, p.Id, false))
	}

	create := pageActivity("Create", tess.ActorID, remotePageObject(remote+"/post/20", tess.ActorID, gophers.ActorID))
	requireApplied(t, env.process(t, create))

	require.Equal(t, map[string][]string{
		remote + "/inbox":                   {"Announce"},
		"https://other.test/u/ursula/inbox": {"Announce"},
	}, env.transport.deliveredTypes(t))

	var announce struct {
		Actor  string
		Object struct{ ID string }
	}
	require.NoError(t, json.Unmarshal(env.transport.delivered[0].activity.Body, &announce))
	require.Equal(t, gophers.ActorID, announce.Actor)
	require.Equal(t, create["id"], announce.Object.ID)
	require.Equal(t, KeyID(gophers.ActorID), env.transport.delivered[0].activity.KeyID)
}

func TestActivityFromForeignInstance(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)

	create := pageActivity("Create", w.member, remotePageObject(remote+"/post/30", w.member, w.community))
	create["id"] = "https://other.test/activities/create/1"
	requireRejected(t, env.process(t, create), ErrProtocolViolation)

	create = pageActivity("Create", w.member, remotePageObject(remote+"/post/30", w.member, w.community))
	out := env.fed.ProcessSigned(env.ctx, mustJSON(t, create), "https://other.test/u/olga")
	requireRejected(t, out, ErrProtocolViolation)

	out = env.fed.ProcessSigned(env.ctx, mustJSON(t, create), w.member)
	requireApplied(t, out)
}
