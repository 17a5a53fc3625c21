package activitypub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeActivity(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Activity
	}{
		{"follow", `{"type":"Follow","id":"https://a.test/1","actor":"https://a.test/u/x","object":"https://b.test/c/y"}`, &FollowCommunity{}},
		{"accept follow", `{"type":"Accept","object":{"type":"Follow","id":"https://b.test/2"}}`, &AcceptFollowCommunity{}},
		{"undo follow", `{"type":"Undo","object":{"type":"Follow"}}`, &UndoFollowCommunity{}},
		{"block", `{"type":"Block","object":"https://a.test/u/x"}`, &BlockUserFromCommunity{}},
		{"undo block", `{"type":"Undo","object":{"type":"Block"}}`, &UndoBlockUserFromCommunity{}},
		{"undo delete", `{"type":"Undo","object":{"type":"Delete"}}`, &UndoDeletePrivateMessage{}},
		{"update group", `{"type":"Update","object":{"type":"Group"}}`, &UpdateCommunity{}},
		{"create page", `{"type":"Create","object":{"type":"Page"}}`, &CreateOrUpdatePost{}},
		{"update page", `{"type":"Update","object":{"type":"Page"}}`, &CreateOrUpdatePost{}},
		{"create note", `{"type":"Create","object":{"type":"Note","inReplyTo":"https://a.test/post/1"}}`, &CreateOrUpdateComment{}},
		{"create chat message", `{"type":"Create","object":{"type":"ChatMessage"}}`, &CreateOrUpdatePrivateMessage{}},
		{"public delete", `{"type":"Delete","to":"https://www.w3.org/ns/activitystreams#Public","object":"https://a.test/post/1"}`, &DeletePostOrComment{}},
		{"delete with cc", `{"type":"Delete","to":[],"cc":["https://a.test/c/y"],"object":"https://a.test/post/1"}`, &DeletePostOrComment{}},
		{"private delete", `{"type":"Delete","to":["https://b.test/u/z"],"object":"https://a.test/private_message/1"}`, &DeletePrivateMessage{}},
		{"announce", `{"type":"Announce","object":{"type":"Create","object":{"type":"Page"}}}`, &AnnounceActivity{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeActivity([]byte(tt.payload))
			require.NoError(t, err)
			require.IsType(t, tt.want, got)
		})
	}
}

func TestDecodeActivityFields(t *testing.T) {
	raw := `{
		"@context": "https://www.w3.org/ns/activitystreams",
		"id": "https://a.test/activities/follow/1",
		"type": "Follow",
		"actor": {"id": "https://a.test/u/x", "type": "Person"},
		"to": "https://b.test/c/y",
		"object": "https://b.test/c/y"
	}`
	got, err := decodeActivity([]byte(raw))
	require.NoError(t, err)
	follow := got.(*FollowCommunity)
	require.Equal(t, "https://a.test/activities/follow/1", follow.ActivityID())
	require.Equal(t, "Follow", follow.ActivityType())
	require.Equal(t, "https://a.test/u/x", follow.ActorID())
	require.Equal(t, URLs{"https://b.test/c/y"}, follow.To)
	require.Equal(t, "https://b.test/c/y", follow.Object.String())
}

func TestDecodeAnnounceKeepsInner(t *testing.T) {
	raw := `{"type":"Announce","id":"https://b.test/a/1","actor":"https://b.test/c/y",
		"object":{"type":"Create","id":"https://a.test/a/2","actor":"https://a.test/u/x","object":{"type":"Page","id":"https://a.test/post/1"}}}`
	got, err := decodeActivity([]byte(raw))
	require.NoError(t, err)
	inner := got.(*AnnounceActivity).Inner()
	require.IsType(t, &CreateOrUpdatePost{}, inner)
	require.Equal(t, "https://a.test/a/2", inner.ActivityID())
	require.Equal(t, "https://a.test/u/x", inner.ActorID())
}

func TestDecodeActivityRejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `{"type":`},
		{"not an object", `[1,2,3]`},
		{"unknown type", `{"type":"Like","object":"https://a.test/post/1"}`},
		{"missing type", `{"object":"https://a.test/post/1"}`},
		{"create group", `{"type":"Create","object":{"type":"Group"}}`},
		{"create without object", `{"type":"Create"}`},
		{"accept of block", `{"type":"Accept","object":{"type":"Block"}}`},
		{"undo like", `{"type":"Undo","object":{"type":"Like"}}`},
		{"announce of follow", `{"type":"Announce","object":{"type":"Follow"}}`},
		{"announce of private message", `{"type":"Announce","object":{"type":"Create","object":{"type":"ChatMessage"}}}`},
		{"announce by reference", `{"type":"Announce","object":"https://a.test/activities/1"}`},
		{"bad reply shape", `{"type":"Create","object":{"type":"Note","inReplyTo":5}}`},
		{"bad addressing", `{"type":"Follow","to":{"x":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeActivity([]byte(tt.payload))
			require.ErrorIs(t, err, ErrProtocolViolation)
		})
	}
}

func TestProcessInboundMalformed(t *testing.T) {
	env := newTestEnv(t)
	payloads := []string{
		``,
		`null`,
		`"Follow"`,
		`{}`,
		`{"type":"Follow"}`,
		`{"type":"Follow","id":"https://remote.test/a/1","actor":"https://remote.test/u/x","object":""}`,
		`{"type":"Announce","id":"https://remote.test/a/1","actor":"https://remote.test/c/y","object":{"type":"Delete","to":"https://www.w3.org/ns/activitystreams#Public"}}`,
		`{"type":"Delete","id":"https://remote.test/a/1","actor":"https://remote.test/u/x","to":[],"object":{"type":"Note"}}`,
		`{"type":"Undo","id":"https://remote.test/a/1","actor":"https://remote.test/u/x","object":{"type":"Block"}}`,
	}
	for _, p := range payloads {
		out := env.fed.ProcessInbound(env.ctx, []byte(p))
		require.Equal(t, StateRejected, out.State, p)
		require.Error(t, out.Err, p)
	}
	require.Empty(t, env.transport.inboxes())
}
