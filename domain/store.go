package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Store reads when no row matches, and by
// relation removals when there is nothing to remove.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by CreateActivity when the activity id was already recorded.
var ErrDuplicate = errors.New("duplicate record")

// Store is the persistence boundary of the federation core. Upserts are keyed
// by the protocol identifier and must be atomic.
type Store interface {
	ReadPerson(ctx context.Context, id uuid.UUID) (*Person, error)
	ReadPersonByActorID(ctx context.Context, actorID string) (*Person, error)
	UpsertPerson(ctx context.Context, form *PersonForm) (*Person, error)
	UpdatePersonDeleted(ctx context.Context, id uuid.UUID, deleted bool) error

	ReadCommunity(ctx context.Context, id uuid.UUID) (*Community, error)
	ReadCommunityByActorID(ctx context.Context, actorID string) (*Community, error)
	UpsertCommunity(ctx context.Context, form *CommunityForm) (*Community, error)
	UpdateCommunity(ctx context.Context, id uuid.UUID, form *CommunityUpdateForm) (*Community, error)
	UpdateCommunityDeleted(ctx context.Context, id uuid.UUID, deleted bool) error

	ReadPost(ctx context.Context, id uuid.UUID) (*Post, error)
	ReadPostByApID(ctx context.Context, apID string) (*Post, error)
	UpsertPost(ctx context.Context, form *PostForm) (*Post, error)
	UpdatePostDeleted(ctx context.Context, id uuid.UUID, deleted bool) error
	UpdatePostRemoved(ctx context.Context, id uuid.UUID, removed bool) error

	ReadComment(ctx context.Context, id uuid.UUID) (*Comment, error)
	ReadCommentByApID(ctx context.Context, apID string) (*Comment, error)
	UpsertComment(ctx context.Context, form *CommentForm) (*Comment, error)
	UpdateCommentDeleted(ctx context.Context, id uuid.UUID, deleted bool) error
	UpdateCommentRemoved(ctx context.Context, id uuid.UUID, removed bool) error

	ReadPrivateMessage(ctx context.Context, id uuid.UUID) (*PrivateMessage, error)
	ReadPrivateMessageByApID(ctx context.Context, apID string) (*PrivateMessage, error)
	UpsertPrivateMessage(ctx context.Context, form *PrivateMessageForm) (*PrivateMessage, error)
	UpdatePrivateMessageDeleted(ctx context.Context, id uuid.UUID, deleted bool) error

	// Follow creates the relation or overwrites its pending state.
	Follow(ctx context.Context, communityID, personID uuid.UUID, pending bool) error
	// FollowAccepted promotes a follow; ErrNotFound if none was requested.
	FollowAccepted(ctx context.Context, communityID, personID uuid.UUID) error
	// Unfollow removes the relation; ErrNotFound if there was none.
	Unfollow(ctx context.Context, communityID, personID uuid.UUID) error
	ReadFollower(ctx context.Context, communityID, personID uuid.UUID) (*CommunityFollower, error)
	ReadCommunityFollowers(ctx context.Context, communityID uuid.UUID) ([]Person, error)

	Ban(ctx context.Context, communityID, personID uuid.UUID) error
	// Unban removes the ban; ErrNotFound if there was none.
	Unban(ctx context.Context, communityID, personID uuid.UUID) error
	IsBanned(ctx context.Context, communityID, personID uuid.UUID) (bool, error)

	AddModerator(ctx context.Context, communityID uuid.UUID, personActorID string) error
	ReplaceModerators(ctx context.Context, communityID uuid.UUID, personActorIDs []string) error
	IsModerator(ctx context.Context, communityID uuid.UUID, personActorID string) (bool, error)
	ReadModerators(ctx context.Context, communityID uuid.UUID) ([]string, error)

	// CreateActivity records an activity; ErrDuplicate if its URI is known.
	CreateActivity(ctx context.Context, activity *Activity) error
	ReadActivityByURI(ctx context.Context, uri string) (*Activity, error)

	// InTransaction runs fn against a Store bound to one transaction. Everything
	// fn writes is rolled back if it returns an error.
	InTransaction(ctx context.Context, fn func(Store) error) error
}

// DeliveryQueue persists outgoing deliveries for retry.
type DeliveryQueue interface {
	EnqueueDelivery(ctx context.Context, item *DeliveryQueueItem) error
	ReadPendingDeliveries(ctx context.Context, limit int) ([]DeliveryQueueItem, error)
	UpdateDeliveryAttempt(ctx context.Context, id uuid.UUID, attempts int, nextRetry time.Time) error
	DeleteDelivery(ctx context.Context, id uuid.UUID) error
}
