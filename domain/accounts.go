package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Person is a user account, local or federated.
type Person struct {
	Id              uuid.UUID
	Name            string // preferredUsername, never changes
	DisplayName     string
	Bio             string // markdown
	Avatar          string
	Banner          string
	ActorID         string
	InboxURL        string
	SharedInboxURL  string
	MatrixUserID    string
	PublicKey       string
	PrivateKey      string
	BotAccount      bool
	Admin           bool
	Banned          bool
	Local           bool
	Deleted         bool
	Published       time.Time
	Updated         *time.Time
	LastRefreshedAt *time.Time // nil for local persons
}

// PersonForm is the upsert form for a person, keyed by ActorID.
type PersonForm struct {
	Name            string
	DisplayName     string
	Bio             string
	Avatar          string
	Banner          string
	ActorID         string
	InboxURL        string
	SharedInboxURL  string
	MatrixUserID    string
	PublicKey       string
	PrivateKey      string
	BotAccount      bool
	Admin           bool
	Local           bool
	Published       *time.Time
	Updated         *time.Time
	LastRefreshedAt *time.Time
}

// Community is a forum group. Communities are actors and can be followed.
type Community struct {
	Id              uuid.UUID
	Name            string
	Title           string
	Description     string // markdown
	Icon            string
	Banner          string
	Nsfw            bool
	ActorID         string
	InboxURL        string
	SharedInboxURL  string
	FollowersURL    string
	PublicKey       string
	PrivateKey      string
	CreatorActorID  string
	Local           bool
	Deleted         bool
	Removed         bool
	Published       time.Time
	Updated         *time.Time
	LastRefreshedAt *time.Time // nil for local communities
}

// CommunityForm is the upsert form for a community, keyed by ActorID.
type CommunityForm struct {
	Name            string
	Title           string
	Description     string
	Icon            string
	Banner          string
	Nsfw            bool
	ActorID         string
	InboxURL        string
	SharedInboxURL  string
	FollowersURL    string
	PublicKey       string
	PrivateKey      string
	CreatorActorID  string
	Local           bool
	Published       *time.Time
	Updated         *time.Time
	LastRefreshedAt *time.Time
}

// CommunityUpdateForm holds the descriptive fields a moderator may change
// through an Update activity. Everything else stays untouched.
type CommunityUpdateForm struct {
	Name        string
	Title       string
	Description string
	Nsfw        bool
	Icon        string
	Banner      string
	Updated     *time.Time
}

// InboxOrSharedInbox returns the shared inbox when the actor's instance has one.
func (p *Person) InboxOrSharedInbox() string {
	if p.SharedInboxURL != "" {
		return p.SharedInboxURL
	}
	return p.InboxURL
}

func (c *Community) InboxOrSharedInbox() string {
	if c.SharedInboxURL != "" {
		return c.SharedInboxURL
	}
	return c.InboxURL
}

func (p *Person) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tName: %s \n\tActorID: %s \n\tLocal: %t)", p.Id, p.Name, p.ActorID, p.Local)
}

func (c *Community) ToString() string {
	return fmt.Sprintf("\n\tId: %s \n\tName: %s \n\tActorID: %s \n\tLocal: %t)", c.Id, c.Name, c.ActorID, c.Local)
}
