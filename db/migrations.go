package db

import (
	"context"
	"database/sql"

	"github.com/charmbracelet/log"
)

const (
	sqlCreatePersonsTable = `CREATE TABLE IF NOT EXISTS persons (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		avatar TEXT NOT NULL DEFAULT '',
		banner TEXT NOT NULL DEFAULT '',
		actor_id TEXT UNIQUE NOT NULL,
		inbox_url TEXT NOT NULL,
		shared_inbox_url TEXT NOT NULL DEFAULT '',
		matrix_user_id TEXT NOT NULL DEFAULT '',
		public_key TEXT NOT NULL DEFAULT '',
		private_key TEXT NOT NULL DEFAULT '',
		bot_account INTEGER NOT NULL DEFAULT 0,
		admin INTEGER NOT NULL DEFAULT 0,
		banned INTEGER NOT NULL DEFAULT 0,
		local INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		published TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated TIMESTAMP,
		last_refreshed_at TIMESTAMP
	)`

	sqlCreateCommunitiesTable = `CREATE TABLE IF NOT EXISTS communities (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		icon TEXT NOT NULL DEFAULT '',
		banner TEXT NOT NULL DEFAULT '',
		nsfw INTEGER NOT NULL DEFAULT 0,
		actor_id TEXT UNIQUE NOT NULL,
		inbox_url TEXT NOT NULL,
		shared_inbox_url TEXT NOT NULL DEFAULT '',
		followers_url TEXT NOT NULL DEFAULT '',
		public_key TEXT NOT NULL DEFAULT '',
		private_key TEXT NOT NULL DEFAULT '',
		creator_actor_id TEXT NOT NULL DEFAULT '',
		local INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		published TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated TIMESTAMP,
		last_refreshed_at TIMESTAMP
	)`

	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		body TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		creator_id TEXT NOT NULL REFERENCES persons(id),
		community_id TEXT NOT NULL REFERENCES communities(id),
		ap_id TEXT UNIQUE NOT NULL,
		nsfw INTEGER NOT NULL DEFAULT 0,
		locked INTEGER NOT NULL DEFAULT 0,
		stickied INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		local INTEGER NOT NULL DEFAULT 0,
		published TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated TIMESTAMP
	)`

	sqlCreateCommentsTable = `CREATE TABLE IF NOT EXISTS comments (
		id TEXT NOT NULL PRIMARY KEY,
		creator_id TEXT NOT NULL REFERENCES persons(id),
		post_id TEXT NOT NULL REFERENCES posts(id),
		parent_id TEXT REFERENCES comments(id),
		content TEXT NOT NULL,
		ap_id TEXT UNIQUE NOT NULL,
		removed INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		local INTEGER NOT NULL DEFAULT 0,
		published TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated TIMESTAMP
	)`

	sqlCreatePrivateMessagesTable = `CREATE TABLE IF NOT EXISTS private_messages (
		id TEXT NOT NULL PRIMARY KEY,
		creator_id TEXT NOT NULL REFERENCES persons(id),
		recipient_id TEXT NOT NULL REFERENCES persons(id),
		content TEXT NOT NULL,
		ap_id TEXT UNIQUE NOT NULL,
		read INTEGER NOT NULL DEFAULT 0,
		deleted INTEGER NOT NULL DEFAULT 0,
		local INTEGER NOT NULL DEFAULT 0,
		published TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated TIMESTAMP
	)`

	sqlCreateCommunityFollowersTable = `CREATE TABLE IF NOT EXISTS community_followers (
		id TEXT NOT NULL PRIMARY KEY,
		community_id TEXT NOT NULL REFERENCES communities(id),
		person_id TEXT NOT NULL REFERENCES persons(id),
		pending INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(community_id, person_id)
	)`

	sqlCreateCommunityBansTable = `CREATE TABLE IF NOT EXISTS community_person_bans (
		id TEXT NOT NULL PRIMARY KEY,
		community_id TEXT NOT NULL REFERENCES communities(id),
		person_id TEXT NOT NULL REFERENCES persons(id),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(community_id, person_id)
	)`

	sqlCreateCommunityModeratorsTable = `CREATE TABLE IF NOT EXISTS community_moderators (
		community_id TEXT NOT NULL REFERENCES communities(id),
		person_actor_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY(community_id, person_actor_id)
	)`

	// Activities log table (for deduplication & debugging)
	sqlCreateActivitiesTable = `CREATE TABLE IF NOT EXISTS activities (
		id TEXT NOT NULL PRIMARY KEY,
		activity_uri TEXT UNIQUE NOT NULL,
		activity_type TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		object_uri TEXT NOT NULL DEFAULT '',
		raw_json TEXT NOT NULL,
		processed INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		local INTEGER DEFAULT 0
	)`

	sqlCreateDeliveryQueueTable = `CREATE TABLE IF NOT EXISTS delivery_queue (
		id TEXT NOT NULL PRIMARY KEY,
		inbox_uri TEXT NOT NULL,
		actor_uri TEXT NOT NULL,
		activity_json TEXT NOT NULL,
		attempts INTEGER DEFAULT 0,
		next_retry_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	sqlCreateIndices = `
		CREATE INDEX IF NOT EXISTS idx_posts_community_id ON posts(community_id);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		CREATE INDEX IF NOT EXISTS idx_community_followers_community_id ON community_followers(community_id);
		CREATE INDEX IF NOT EXISTS idx_activities_created_at ON activities(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_delivery_queue_next_retry ON delivery_queue(next_retry_at);
	`
)

var tables = []struct {
	name string
	sql  string
}{
	{"persons", sqlCreatePersonsTable},
	{"communities", sqlCreateCommunitiesTable},
	{"posts", sqlCreatePostsTable},
	{"comments", sqlCreateCommentsTable},
	{"private_messages", sqlCreatePrivateMessagesTable},
	{"community_followers", sqlCreateCommunityFollowersTable},
	{"community_person_bans", sqlCreateCommunityBansTable},
	{"community_moderators", sqlCreateCommunityModeratorsTable},
	{"activities", sqlCreateActivitiesTable},
	{"delivery_queue", sqlCreateDeliveryQueueTable},
}

// RunMigrations executes all database migrations. It is safe to run on every start.
func (db *DB) RunMigrations(ctx context.Context) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		for _, t := range tables {
			if err := createTableIfNotExists(ctx, tx, t.sql, t.name); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, sqlCreateIndices); err != nil {
			log.Warnf("Failed to create indices: %v", err)
		}

		extendExistingTables(ctx, tx)
		return nil
	})
}

func createTableIfNotExists(ctx context.Context, tx *sql.Tx, createSQL string, tableName string) error {
	_, err := tx.ExecContext(ctx, createSQL)
	if err != nil {
		log.Errorf("Error creating table %s: %v", tableName, err)
		return err
	}
	log.Debugf("Table %s created or already exists", tableName)
	return nil
}

// extendExistingTables adds columns that databases created by older versions lack.
func extendExistingTables(ctx context.Context, tx *sql.Tx) {
	// errors mean the column already exists
	tx.ExecContext(ctx, "ALTER TABLE delivery_queue ADD COLUMN actor_uri TEXT NOT NULL DEFAULT ''")
	tx.ExecContext(ctx, "ALTER TABLE persons ADD COLUMN matrix_user_id TEXT NOT NULL DEFAULT ''")
}
