package activitypub

import (
	"encoding/json"
	"testing"

	"github.com/deemkeen/burrow/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func (e *testEnv) localPost(t *testing.T, creator *domain.Person, community *domain.Community) *domain.Post {
	t.Helper()
	post, err := e.store.UpsertPost(e.ctx, &domain.PostForm{
		Name:        "Hello",
		Body:        "first post",
		CreatorId:   creator.Id,
		CommunityId: community.Id,
		ApID:        e.fed.PostURL(uuid.New()),
		Local:       true,
		Published:   &published,
	})
	require.NoError(t, err)
	return post
}

type sentActivity struct {
	Type   string
	Actor  string
	To     []string
	Cc     []string
	Object json.RawMessage
}

func decodeSent(t *testing.T, d delivery) sentActivity {
	t.Helper()
	var a sentActivity
	require.NoError(t, json.Unmarshal(d.activity.Body, &a))
	return a
}

func TestRecipients(t *testing.T) {
	fed := New(testSettings(), nil, nil)
	got := fed.recipients([]string{
		"https://b.test/inbox",
		"",
		"https://a.test/u/x/inbox",
		"https://local.test/inbox",
		"https://b.test/inbox",
		"https://LOCAL.test/u/me/inbox",
	})
	require.Equal(t, []string{"https://a.test/u/x/inbox", "https://b.test/inbox"}, got)
}

func TestSendPostToLocalCommunity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	bob := env.localPerson(t, "bob")
	gophers := env.localCommunity(t, "gophers", alice)
	tess := env.storeRemotePerson(t, remote, "tess", true)
	rita := env.storeRemotePerson(t, remote, "rita", true)
	ursula := env.storeRemotePerson(t, "https://other.test", "ursula", false)
	pat := env.storeRemotePerson(t, "https://third.test", "pat", false)
	for _, p := range []*domain.Person{tess, rita, ursula, bob} {
		require.NoError(t, env.store.Follow(env.ctx, gophers.Id, p.Id, false))
	}
	require.NoError(t, env.store.Follow(env.ctx, gophers.Id, pat.Id, true))

	post := env.localPost(t, alice, gophers)
	require.NoError(t, env.fed.SendCreateOrUpdatePost(env.ctx, Create, post))

	// one delivery per shared inbox, none to this instance or pending followers
	require.Equal(t, map[string][]string{
		remote + "/inbox":                   {"Announce"},
		"https://other.test/u/ursula/inbox": {"Announce"},
	}, env.transport.deliveredTypes(t))

	announce := decodeSent(t, env.transport.delivered[0])
	require.Equal(t, gophers.ActorID, announce.Actor)
	require.Equal(t, []string{gophers.FollowersURL}, announce.Cc)
	var inner sentActivity
	require.NoError(t, json.Unmarshal(announce.Object, &inner))
	require.Equal(t, "Create", inner.Type)
	require.Equal(t, alice.ActorID, inner.Actor)

	var page PageObject
	require.NoError(t, json.Unmarshal(inner.Object, &page))
	require.Equal(t, post.ApID, page.ID)
	require.Equal(t, gophers.ActorID, page.Audience)
}

func TestSendPostToRemoteCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	alice := env.localPerson(t, "alice")
	lounge := env.resolveCommunity(t, w.community)

	post := env.localPost(t, alice, lounge)
	require.NoError(t, env.fed.SendCreateOrUpdatePost(env.ctx, Update, post))

	require.Equal(t, map[string][]string{remote + "/inbox": {"Update"}}, env.transport.deliveredTypes(t))
	sent := env.transport.delivered[0].activity
	require.Equal(t, KeyID(alice.ActorID), sent.KeyID)
	require.Equal(t, alice.PrivateKey, sent.PrivateKeyPem)

	recorded, err := env.store.ReadActivityByURI(env.ctx, sent.ActivityID)
	require.NoError(t, err)
	require.True(t, recorded.Local)
	require.Equal(t, post.ApID, recorded.ObjectURI)
}

func TestSendCommentAddressesParentAuthor(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	alice := env.localPerson(t, "alice")
	lounge := env.resolveCommunity(t, w.community)
	ursula := env.storeRemotePerson(t, "https://other.test", "ursula", false)
	post := env.localPost(t, ursula, lounge)

	comment, err := env.store.UpsertComment(env.ctx, &domain.CommentForm{
		CreatorId: alice.Id,
		PostId:    post.Id,
		Content:   "nice",
		ApID:      env.fed.CommentURL(uuid.New()),
		Local:     true,
	})
	require.NoError(t, err)
	require.NoError(t, env.fed.SendCreateOrUpdateComment(env.ctx, Create, comment))

	require.ElementsMatch(t, []string{remote + "/inbox", ursula.InboxURL}, env.transport.inboxes())
	sent := decodeSent(t, env.transport.delivered[0])
	require.Equal(t, []string{lounge.ActorID, ursula.ActorID}, sent.Cc)
}

func TestSendReplyToOwnCommentSkipsSelf(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	alice := env.localPerson(t, "alice")
	lounge := env.resolveCommunity(t, w.community)
	post := env.localPost(t, alice, lounge)

	comment, err := env.store.UpsertComment(env.ctx, &domain.CommentForm{
		CreatorId: alice.Id, PostId: post.Id, Content: "self", ApID: env.fed.CommentURL(uuid.New()), Local: true,
	})
	require.NoError(t, err)
	require.NoError(t, env.fed.SendCreateOrUpdateComment(env.ctx, Create, comment))

	require.Equal(t, []string{remote + "/inbox"}, env.transport.inboxes())
	require.Equal(t, []string{lounge.ActorID}, decodeSent(t, env.transport.delivered[0]).Cc)
}

func TestSendCombinesDeliveryErrors(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	gophers := env.localCommunity(t, "gophers", alice)
	for _, base := range []string{"https://a.test", "https://b.test", "https://c.test"} {
		p := env.storeRemotePerson(t, base, "x", false)
		require.NoError(t, env.store.Follow(env.ctx, gophers.Id, p.Id, false))
	}
	env.transport.failing["https://a.test/u/x/inbox"] = true
	env.transport.failing["https://c.test/u/x/inbox"] = true

	err := env.fed.SendCreateOrUpdatePost(env.ctx, Create, env.localPost(t, alice, gophers))
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Contains(t, err.Error(), "https://a.test/u/x/inbox")
	require.Contains(t, err.Error(), "https://c.test/u/x/inbox")
	require.Equal(t, []string{"https://b.test/u/x/inbox"}, env.transport.inboxes())
}

func TestSendFollowLocalCommunity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	bob := env.localPerson(t, "bob")
	gophers := env.localCommunity(t, "gophers", alice)

	require.NoError(t, env.fed.SendFollowCommunity(env.ctx, bob, gophers))
	follower, err := env.store.ReadFollower(env.ctx, gophers.Id, bob.Id)
	require.NoError(t, err)
	require.False(t, follower.Pending)
	require.Empty(t, env.transport.inboxes())

	require.NoError(t, env.fed.SendUndoFollowCommunity(env.ctx, bob, gophers))
	_, err = env.store.ReadFollower(env.ctx, gophers.Id, bob.Id)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, env.transport.inboxes())
}

func TestSendUndoFollowRemoteCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	alice := env.localPerson(t, "alice")
	lounge := env.resolveCommunity(t, w.community)

	require.NoError(t, env.fed.SendFollowCommunity(env.ctx, alice, lounge))
	require.NoError(t, env.fed.SendUndoFollowCommunity(env.ctx, alice, lounge))

	require.Equal(t, map[string][]string{lounge.InboxURL: {"Follow", "Undo"}}, env.transport.deliveredTypes(t))
	_, err := env.store.ReadFollower(env.ctx, lounge.Id, alice.Id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSendBlockUserFromLocalCommunity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	gophers := env.localCommunity(t, "gophers", alice)
	rita := env.storeRemotePerson(t, remote, "rita", true)
	require.NoError(t, env.store.Follow(env.ctx, gophers.Id, rita.Id, false))
	ursula := env.storeRemotePerson(t, "https://other.test", "ursula", false)

	require.NoError(t, env.fed.SendBlockUser(env.ctx, alice, gophers, ursula))
	require.Equal(t, map[string][]string{
		remote + "/inbox": {"Announce"},
		ursula.InboxURL:   {"Announce"},
	}, env.transport.deliveredTypes(t))

	env.transport.delivered = nil
	require.NoError(t, env.fed.SendUndoBlockUser(env.ctx, alice, gophers, ursula))
	var inner sentActivity
	require.NoError(t, json.Unmarshal(decodeSent(t, env.transport.delivered[0]).Object, &inner))
	require.Equal(t, "Undo", inner.Type)
}

func TestSendUpdateAndDeleteToRemoteCommunity(t *testing.T) {
	env := newTestEnv(t)
	w := env.serveWorld(t)
	alice := env.localPerson(t, "alice")
	lounge := env.resolveCommunity(t, w.community)
	post := env.localPost(t, alice, lounge)

	require.NoError(t, env.fed.SendDeletePostOrComment(env.ctx, alice, lounge, post.ApID))
	sent := decodeSent(t, env.transport.delivered[0])
	require.Equal(t, "Delete", sent.Type)
	require.Equal(t, []string{lounge.ActorID}, sent.Cc)
	require.JSONEq(t, `"`+post.ApID+`"`, string(sent.Object))
}

func TestSendUpdateCommunity(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	gophers := env.localCommunity(t, "gophers", alice)
	rita := env.storeRemotePerson(t, remote, "rita", true)
	require.NoError(t, env.store.Follow(env.ctx, gophers.Id, rita.Id, false))

	require.NoError(t, env.fed.SendUpdateCommunity(env.ctx, alice, gophers))
	var inner sentActivity
	require.NoError(t, json.Unmarshal(decodeSent(t, env.transport.delivered[0]).Object, &inner))
	require.Equal(t, "Update", inner.Type)
	var group GroupObject
	require.NoError(t, json.Unmarshal(inner.Object, &group))
	require.Equal(t, gophers.ActorID, group.ID)
	require.Equal(t, gophers.Title, group.Name)
}

func TestSendPrivateMessage(t *testing.T) {
	env := newTestEnv(t)
	alice := env.localPerson(t, "alice")
	tess := env.storeRemotePerson(t, remote, "tess", true)
	pm, err := env.store.UpsertPrivateMessage(env.ctx, &domain.PrivateMessageForm{
		CreatorId:   alice.Id,
		RecipientId: tess.Id,
		Content:     "psst",
		ApID:        env.fed.PrivateMessageURL(uuid.New()),
		Local:       true,
	})
	require.NoError(t, err)

	require.NoError(t, env.fed.SendCreateOrUpdatePrivateMessage(env.ctx, Create, pm))
	require.NoError(t, env.fed.SendDeletePrivateMessage(env.ctx, pm))
	require.NoError(t, env.fed.SendUndoDeletePrivateMessage(env.ctx, pm))

	// private messages go to the personal inbox, never the shared one
	require.Equal(t, map[string][]string{tess.InboxURL: {"Create", "Delete", "Undo"}}, env.transport.deliveredTypes(t))
	sent := decodeSent(t, env.transport.delivered[0])
	require.Equal(t, []string{tess.ActorID}, sent.To)
}

// Activities produced by one instance are accepted by another.
func TestSentActivitiesAreAccepted(t *testing.T) {
	origin := newOriginEnv(t)
	env := newTestEnv(t)
	alice := origin.localPerson(t, "alice")
	gophers := origin.localCommunity(t, "gophers", alice)

	dave := env.localPerson(t, "dave")
	daveAtOrigin, err := origin.store.UpsertPerson(origin.ctx, &domain.PersonForm{
		Name:           dave.Name,
		ActorID:        dave.ActorID,
		InboxURL:       dave.InboxURL,
		SharedInboxURL: dave.SharedInboxURL,
		PublicKey:      dave.PublicKey,
	})
	require.NoError(t, err)
	require.NoError(t, origin.store.Follow(origin.ctx, gophers.Id, daveAtOrigin.Id, false))

	env.transport.serve(t, alice.ActorID, origin.fed.EncodePerson(alice))
	group, err := origin.fed.EncodeCommunity(origin.ctx, gophers)
	require.NoError(t, err)
	env.transport.serve(t, gophers.ActorID, group)

	post := origin.localPost(t, alice, gophers)
	require.NoError(t, origin.fed.SendCreateOrUpdatePost(origin.ctx, Create, post))
	require.Equal(t, []string{env.fed.SharedInboxURL()}, origin.transport.inboxes())

	out := env.fed.ProcessSigned(env.ctx, origin.transport.delivered[0].activity.Body, gophers.ActorID)
	requireApplied(t, out)
	require.Equal(t, "Announce", out.Type)

	got, err := env.store.ReadPostByApID(env.ctx, post.ApID)
	require.NoError(t, err)
	require.Equal(t, post.Name, got.Name)
	require.Equal(t, post.Body, got.Body)
}
