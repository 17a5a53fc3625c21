package domain

import (
	"time"

	"github.com/google/uuid"
)

// CommunityFollower represents a follow relationship from a person to a community.
// Pending is true until the community's instance has sent an Accept.
type CommunityFollower struct {
	Id          uuid.UUID
	CommunityId uuid.UUID
	PersonId    uuid.UUID
	Pending     bool
	CreatedAt   time.Time
}

// CommunityPersonBan marks a person as banned from a community.
type CommunityPersonBan struct {
	Id          uuid.UUID
	CommunityId uuid.UUID
	PersonId    uuid.UUID
	CreatedAt   time.Time
}

// CommunityModerator records moderator standing by actor id, so remote
// moderators can be known without fetching them.
type CommunityModerator struct {
	CommunityId   uuid.UUID
	PersonActorID string
	CreatedAt     time.Time
}

// Activity represents an ActivityPub activity (for logging/deduplication)
type Activity struct {
	Id           uuid.UUID
	ActivityURI  string
	ActivityType string // Follow, Create, Block, Announce, Undo, etc.
	ActorURI     string
	ObjectURI    string
	RawJSON      string
	Processed    bool
	CreatedAt    time.Time
	Local        bool // true if originated from this server
}

// DeliveryQueueItem represents an item in the delivery queue
type DeliveryQueueItem struct {
	Id           uuid.UUID
	InboxURI     string
	ActorURI     string // local actor whose key signs the delivery
	ActivityJSON string // The complete activity to deliver
	Attempts     int
	NextRetryAt  time.Time
	CreatedAt    time.Time
}
