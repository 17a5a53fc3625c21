package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
)

// Activity is one of the activity variants this package understands. The
// set is closed: decodeActivity is the only way to obtain one from a payload.
type Activity interface {
	ActivityID() string
	ActivityType() string
	ActorID() string
	verify(ctx context.Context, rc *RequestContext) error
	receive(ctx context.Context, rc *RequestContext) error
}

// announcable activities are scoped to a community and are relayed by it.
type announcable interface {
	Activity
	communityID() string
}

var (
	_ Activity    = (*FollowCommunity)(nil)
	_ Activity    = (*AcceptFollowCommunity)(nil)
	_ Activity    = (*UndoFollowCommunity)(nil)
	_ announcable = (*BlockUserFromCommunity)(nil)
	_ announcable = (*UndoBlockUserFromCommunity)(nil)
	_ announcable = (*UpdateCommunity)(nil)
	_ announcable = (*CreateOrUpdatePost)(nil)
	_ announcable = (*CreateOrUpdateComment)(nil)
	_ announcable = (*DeletePostOrComment)(nil)
	_ Activity    = (*CreateOrUpdatePrivateMessage)(nil)
	_ Activity    = (*DeletePrivateMessage)(nil)
	_ Activity    = (*UndoDeletePrivateMessage)(nil)
	_ Activity    = (*AnnounceActivity)(nil)
)

// envelope holds the fields shared by every activity.
type envelope struct {
	Context any    `json:"@context,omitempty"`
	ID      string `json:"id"`
	Type    string `json:"type"`
}

func newEnvelope(id, typ string) envelope {
	return envelope{Context: defaultContext, ID: id, Type: typ}
}

func (e *envelope) ActivityID() string   { return e.ID }
func (e *envelope) ActivityType() string { return e.Type }

// decodeActivity selects the variant from the activity type, the type of
// an embedded object and, for Delete, the addressing.
func decodeActivity(raw []byte) (Activity, error) {
	var env struct {
		Type   string          `json:"type"`
		To     URLs            `json:"to"`
		Cc     URLs            `json:"cc"`
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, protocolError("decode activity", "%v", err)
	}
	var objectType string
	if obj := bytes.TrimSpace(env.Object); len(obj) > 0 && obj[0] == '{' {
		h, err := readHeader(obj)
		if err != nil {
			return nil, protocolError("decode activity", "object: %v", err)
		}
		objectType = h.Type
	}

	var a Activity
	switch env.Type {
	case "Follow":
		a = &FollowCommunity{}
	case "Accept":
		if objectType == "Follow" {
			a = &AcceptFollowCommunity{}
		}
	case "Undo":
		switch objectType {
		case "Follow":
			a = &UndoFollowCommunity{}
		case "Block":
			a = &UndoBlockUserFromCommunity{}
		case "Delete":
			a = &UndoDeletePrivateMessage{}
		}
	case "Block":
		a = &BlockUserFromCommunity{}
	case "Create", "Update":
		switch objectType {
		case "Group":
			if env.Type == "Update" {
				a = &UpdateCommunity{}
			}
		case "Page":
			a = &CreateOrUpdatePost{}
		case "Note":
			a = &CreateOrUpdateComment{}
		case "ChatMessage":
			a = &CreateOrUpdatePrivateMessage{}
		}
	case "Delete":
		if env.To.hasPublic() || len(env.Cc) > 0 {
			a = &DeletePostOrComment{}
		} else {
			a = &DeletePrivateMessage{}
		}
	case "Announce":
		return decodeAnnounce(raw, env.Object)
	}
	if a == nil {
		if objectType != "" {
			return nil, protocolError("decode activity", "unsupported activity %s of %s", env.Type, objectType)
		}
		return nil, protocolError("decode activity", "unsupported activity %q", env.Type)
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return nil, protocolError("decode "+env.Type, "%v", err)
	}
	return a, nil
}
