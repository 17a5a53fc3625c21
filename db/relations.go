package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/deemkeen/burrow/domain"
	"github.com/google/uuid"
)

// Follower queries
const (
	sqlUpsertFollow = `INSERT INTO community_followers(id, community_id, person_id, pending, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(community_id, person_id) DO UPDATE SET pending = excluded.pending`
	sqlUpdateFollowAccepted = `UPDATE community_followers SET pending = 0 WHERE community_id = ? AND person_id = ?`
	sqlDeleteFollow         = `DELETE FROM community_followers WHERE community_id = ? AND person_id = ?`
	sqlSelectFollow         = `SELECT id, community_id, person_id, pending, created_at FROM community_followers
		WHERE community_id = ? AND person_id = ?`
	sqlSelectCommunityFollowers = `SELECT ` + personColumnsQualified + ` FROM persons p
		INNER JOIN community_followers f ON f.person_id = p.id
		WHERE f.community_id = ? AND f.pending = 0 AND p.deleted = 0
		ORDER BY f.created_at ASC`

	personColumnsQualified = `p.id, p.name, p.display_name, p.bio, p.avatar, p.banner, p.actor_id, p.inbox_url,
		p.shared_inbox_url, p.matrix_user_id, p.public_key, p.private_key, p.bot_account, p.admin, p.banned, p.local,
		p.deleted, p.published, p.updated, p.last_refreshed_at`
)

func (db *DB) Follow(ctx context.Context, communityID, personID uuid.UUID, pending bool) error {
	_, err := db.q().ExecContext(ctx, sqlUpsertFollow, uuid.New(), communityID, personID, pending, time.Now().UTC())
	return err
}

// FollowAccepted marks the relation accepted. Only a missing relation is
// ErrNotFound; accepting an already accepted follow succeeds again.
func (db *DB) FollowAccepted(ctx context.Context, communityID, personID uuid.UUID) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdateFollowAccepted, communityID, personID))
}

func (db *DB) Unfollow(ctx context.Context, communityID, personID uuid.UUID) error {
	return expectRow(db.q().ExecContext(ctx, sqlDeleteFollow, communityID, personID))
}

func (db *DB) ReadFollower(ctx context.Context, communityID, personID uuid.UUID) (*domain.CommunityFollower, error) {
	var f domain.CommunityFollower
	err := db.q().QueryRowContext(ctx, sqlSelectFollow, communityID, personID).
		Scan(&f.Id, &f.CommunityId, &f.PersonId, &f.Pending, &f.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

func (db *DB) ReadCommunityFollowers(ctx context.Context, communityID uuid.UUID) ([]domain.Person, error) {
	rows, err := db.q().QueryContext(ctx, sqlSelectCommunityFollowers, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var persons []domain.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return persons, err
		}
		persons = append(persons, *p)
	}
	return persons, rows.Err()
}

// Ban queries
const (
	sqlInsertBan = `INSERT INTO community_person_bans(id, community_id, person_id, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(community_id, person_id) DO NOTHING`
	sqlDeleteBan = `DELETE FROM community_person_bans WHERE community_id = ? AND person_id = ?`
	sqlCountBan  = `SELECT COUNT(*) FROM community_person_bans WHERE community_id = ? AND person_id = ?`
)

func (db *DB) Ban(ctx context.Context, communityID, personID uuid.UUID) error {
	_, err := db.q().ExecContext(ctx, sqlInsertBan, uuid.New(), communityID, personID, time.Now().UTC())
	return err
}

func (db *DB) Unban(ctx context.Context, communityID, personID uuid.UUID) error {
	return expectRow(db.q().ExecContext(ctx, sqlDeleteBan, communityID, personID))
}

func (db *DB) IsBanned(ctx context.Context, communityID, personID uuid.UUID) (bool, error) {
	var n int
	if err := db.q().QueryRowContext(ctx, sqlCountBan, communityID, personID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Moderator queries
const (
	sqlInsertModerator = `INSERT INTO community_moderators(community_id, person_actor_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(community_id, person_actor_id) DO NOTHING`
	sqlDeleteModerators = `DELETE FROM community_moderators WHERE community_id = ?`
	sqlCountModerator   = `SELECT COUNT(*) FROM community_moderators WHERE community_id = ? AND person_actor_id = ?`
	sqlSelectModerators = `SELECT person_actor_id FROM community_moderators WHERE community_id = ? ORDER BY created_at ASC`
)

func (db *DB) AddModerator(ctx context.Context, communityID uuid.UUID, personActorID string) error {
	_, err := db.q().ExecContext(ctx, sqlInsertModerator, communityID, personActorID, time.Now().UTC())
	return err
}

// ReplaceModerators sets the moderator list of a community to exactly the
// given actors.
func (db *DB) ReplaceModerators(ctx context.Context, communityID uuid.UUID, personActorIDs []string) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, sqlDeleteModerators, communityID); err != nil {
			return err
		}
		now := time.Now().UTC()
		for _, actorID := range personActorIDs {
			if _, err := tx.ExecContext(ctx, sqlInsertModerator, communityID, actorID, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) IsModerator(ctx context.Context, communityID uuid.UUID, personActorID string) (bool, error) {
	var n int
	if err := db.q().QueryRowContext(ctx, sqlCountModerator, communityID, personActorID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (db *DB) ReadModerators(ctx context.Context, communityID uuid.UUID) ([]string, error) {
	rows, err := db.q().QueryContext(ctx, sqlSelectModerators, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mods []string
	for rows.Next() {
		var actorID string
		if err := rows.Scan(&actorID); err != nil {
			return mods, err
		}
		mods = append(mods, actorID)
	}
	return mods, rows.Err()
}
