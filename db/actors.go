package db

import (
	"context"
	"database/sql"

	"github.com/deemkeen/burrow/domain"
	"github.com/google/uuid"
)

// Persons
const (
	personColumns = `id, name, display_name, bio, avatar, banner, actor_id, inbox_url, shared_inbox_url,
		matrix_user_id, public_key, private_key, bot_account, admin, banned, local, deleted,
		published, updated, last_refreshed_at`

	sqlSelectPersonById      = `SELECT ` + personColumns + ` FROM persons WHERE id = ?`
	sqlSelectPersonByActorID = `SELECT ` + personColumns + ` FROM persons WHERE actor_id = ?`
	sqlUpsertPerson          = `INSERT INTO persons(id, name, display_name, bio, avatar, banner, actor_id, inbox_url,
		shared_inbox_url, matrix_user_id, public_key, private_key, bot_account, admin, local, published, updated,
		last_refreshed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_id) DO UPDATE SET
			name = excluded.name,
			display_name = excluded.display_name,
			bio = excluded.bio,
			avatar = excluded.avatar,
			banner = excluded.banner,
			inbox_url = excluded.inbox_url,
			shared_inbox_url = excluded.shared_inbox_url,
			matrix_user_id = excluded.matrix_user_id,
			public_key = excluded.public_key,
			private_key = COALESCE(NULLIF(excluded.private_key, ''), persons.private_key),
			bot_account = excluded.bot_account,
			admin = excluded.admin OR persons.admin,
			updated = excluded.updated,
			last_refreshed_at = excluded.last_refreshed_at`
	sqlUpdatePersonDeleted = `UPDATE persons SET deleted = ? WHERE id = ?`
)

func scanPerson(row interface{ Scan(...any) error }) (*domain.Person, error) {
	var p domain.Person
	var updated, refreshed sql.NullTime
	err := row.Scan(&p.Id, &p.Name, &p.DisplayName, &p.Bio, &p.Avatar, &p.Banner, &p.ActorID, &p.InboxURL,
		&p.SharedInboxURL, &p.MatrixUserID, &p.PublicKey, &p.PrivateKey, &p.BotAccount, &p.Admin, &p.Banned,
		&p.Local, &p.Deleted, &p.Published, &updated, &refreshed)
	if err != nil {
		return nil, notFound(err)
	}
	p.Updated = nullTimePtr(updated)
	p.LastRefreshedAt = nullTimePtr(refreshed)
	return &p, nil
}

func (db *DB) ReadPerson(ctx context.Context, id uuid.UUID) (*domain.Person, error) {
	return scanPerson(db.q().QueryRowContext(ctx, sqlSelectPersonById, id))
}

func (db *DB) ReadPersonByActorID(ctx context.Context, actorID string) (*domain.Person, error) {
	return scanPerson(db.q().QueryRowContext(ctx, sqlSelectPersonByActorID, actorID))
}

func (db *DB) UpsertPerson(ctx context.Context, form *domain.PersonForm) (*domain.Person, error) {
	var person *domain.Person
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpsertPerson,
			uuid.New(),
			form.Name,
			form.DisplayName,
			form.Bio,
			form.Avatar,
			form.Banner,
			form.ActorID,
			form.InboxURL,
			form.SharedInboxURL,
			form.MatrixUserID,
			form.PublicKey,
			form.PrivateKey,
			form.BotAccount,
			form.Admin,
			form.Local,
			nowOr(form.Published),
			form.Updated,
			form.LastRefreshedAt,
		)
		if err != nil {
			return err
		}
		person, err = scanPerson(tx.QueryRowContext(ctx, sqlSelectPersonByActorID, form.ActorID))
		return err
	})
	return person, err
}

func (db *DB) UpdatePersonDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdatePersonDeleted, deleted, id))
}

// Communities
const (
	communityColumns = `id, name, title, description, icon, banner, nsfw, actor_id, inbox_url, shared_inbox_url,
		followers_url, public_key, private_key, creator_actor_id, local, deleted, removed, published, updated,
		last_refreshed_at`

	sqlSelectCommunityById      = `SELECT ` + communityColumns + ` FROM communities WHERE id = ?`
	sqlSelectCommunityByActorID = `SELECT ` + communityColumns + ` FROM communities WHERE actor_id = ?`
	sqlUpsertCommunity          = `INSERT INTO communities(id, name, title, description, icon, banner, nsfw, actor_id,
		inbox_url, shared_inbox_url, followers_url, public_key, private_key, creator_actor_id, local, published,
		updated, last_refreshed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(actor_id) DO UPDATE SET
			name = excluded.name,
			title = excluded.title,
			description = excluded.description,
			icon = excluded.icon,
			banner = excluded.banner,
			nsfw = excluded.nsfw,
			inbox_url = excluded.inbox_url,
			shared_inbox_url = excluded.shared_inbox_url,
			followers_url = excluded.followers_url,
			public_key = excluded.public_key,
			private_key = COALESCE(NULLIF(excluded.private_key, ''), communities.private_key),
			creator_actor_id = excluded.creator_actor_id,
			updated = excluded.updated,
			last_refreshed_at = excluded.last_refreshed_at`
	sqlUpdateCommunity = `UPDATE communities SET name = ?, title = ?, description = ?, nsfw = ?, icon = ?, banner = ?,
		updated = ? WHERE id = ?`
	sqlUpdateCommunityDeleted = `UPDATE communities SET deleted = ? WHERE id = ?`
)

func scanCommunity(row interface{ Scan(...any) error }) (*domain.Community, error) {
	var c domain.Community
	var updated, refreshed sql.NullTime
	err := row.Scan(&c.Id, &c.Name, &c.Title, &c.Description, &c.Icon, &c.Banner, &c.Nsfw, &c.ActorID,
		&c.InboxURL, &c.SharedInboxURL, &c.FollowersURL, &c.PublicKey, &c.PrivateKey, &c.CreatorActorID,
		&c.Local, &c.Deleted, &c.Removed, &c.Published, &updated, &refreshed)
	if err != nil {
		return nil, notFound(err)
	}
	c.Updated = nullTimePtr(updated)
	c.LastRefreshedAt = nullTimePtr(refreshed)
	return &c, nil
}

func (db *DB) ReadCommunity(ctx context.Context, id uuid.UUID) (*domain.Community, error) {
	return scanCommunity(db.q().QueryRowContext(ctx, sqlSelectCommunityById, id))
}

func (db *DB) ReadCommunityByActorID(ctx context.Context, actorID string) (*domain.Community, error) {
	return scanCommunity(db.q().QueryRowContext(ctx, sqlSelectCommunityByActorID, actorID))
}

func (db *DB) UpsertCommunity(ctx context.Context, form *domain.CommunityForm) (*domain.Community, error) {
	var community *domain.Community
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpsertCommunity,
			uuid.New(),
			form.Name,
			form.Title,
			form.Description,
			form.Icon,
			form.Banner,
			form.Nsfw,
			form.ActorID,
			form.InboxURL,
			form.SharedInboxURL,
			form.FollowersURL,
			form.PublicKey,
			form.PrivateKey,
			form.CreatorActorID,
			form.Local,
			nowOr(form.Published),
			form.Updated,
			form.LastRefreshedAt,
		)
		if err != nil {
			return err
		}
		community, err = scanCommunity(tx.QueryRowContext(ctx, sqlSelectCommunityByActorID, form.ActorID))
		return err
	})
	return community, err
}

func (db *DB) UpdateCommunity(ctx context.Context, id uuid.UUID, form *domain.CommunityUpdateForm) (*domain.Community, error) {
	var community *domain.Community
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		updated := nowOr(form.Updated)
		err := expectRow(tx.ExecContext(ctx, sqlUpdateCommunity,
			form.Name,
			form.Title,
			form.Description,
			form.Nsfw,
			form.Icon,
			form.Banner,
			updated,
			id,
		))
		if err != nil {
			return err
		}
		community, err = scanCommunity(tx.QueryRowContext(ctx, sqlSelectCommunityById, id))
		return err
	})
	return community, err
}

func (db *DB) UpdateCommunityDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdateCommunityDeleted, deleted, id))
}
