package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Post is a link or text submission to a community.
type Post struct {
	Id           uuid.UUID
	Name         string
	URL          string
	Body         string // markdown
	ThumbnailURL string
	CreatorId    uuid.UUID
	CommunityId  uuid.UUID
	ApID         string
	Nsfw         bool
	Locked       bool
	Stickied     bool
	Removed      bool
	Deleted      bool
	Local        bool
	Published    time.Time
	Updated      *time.Time
}

type PostForm struct {
	Name         string
	URL          string
	Body         string
	ThumbnailURL string
	CreatorId    uuid.UUID
	CommunityId  uuid.UUID
	ApID         string
	Nsfw         bool
	Locked       *bool // nil keeps the stored value
	Stickied     *bool
	Local        bool
	Published    *time.Time
	Updated      *time.Time
}

// Comment is a reply to a post or to another comment of the same post.
type Comment struct {
	Id        uuid.UUID
	CreatorId uuid.UUID
	PostId    uuid.UUID
	ParentId  *uuid.UUID
	Content   string // markdown
	ApID      string
	Removed   bool
	Deleted   bool
	Local     bool
	Published time.Time
	Updated   *time.Time
}

type CommentForm struct {
	CreatorId uuid.UUID
	PostId    uuid.UUID
	ParentId  *uuid.UUID
	Content   string
	ApID      string
	Local     bool
	Published *time.Time
	Updated   *time.Time
}

// PrivateMessage is a direct message between two persons.
type PrivateMessage struct {
	Id          uuid.UUID
	CreatorId   uuid.UUID
	RecipientId uuid.UUID
	Content     string
	ApID        string
	Read        bool
	Deleted     bool
	Local       bool
	Published   time.Time
	Updated     *time.Time
}

type PrivateMessageForm struct {
	CreatorId   uuid.UUID
	RecipientId uuid.UUID
	Content     string
	ApID        string
	Local       bool
	Published   *time.Time
	Updated     *time.Time
}

func (p *Post) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tName: %s \n\tApID: %s \n\tPublished: %s)", p.Id, p.Name, p.ApID, p.Published)
}

func (c *Comment) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tPostId: %s \n\tContent: %s \n\tPublished: %s)", c.Id, c.PostId, c.Content, c.Published)
}
