package db

import (
	"context"
	"database/sql"

	"github.com/deemkeen/burrow/domain"
	"github.com/google/uuid"
)

// Posts
const (
	postColumns = `id, name, url, body, thumbnail_url, creator_id, community_id, ap_id, nsfw, locked, stickied,
		removed, deleted, local, published, updated`

	sqlSelectPostById   = `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	sqlSelectPostByApID = `SELECT ` + postColumns + ` FROM posts WHERE ap_id = ?`
	sqlUpsertPost       = `INSERT INTO posts(id, name, url, body, thumbnail_url, creator_id, community_id, ap_id, nsfw,
		locked, stickied, local, published, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, 0), COALESCE(?, 0), ?, ?, ?)
		ON CONFLICT(ap_id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			body = excluded.body,
			thumbnail_url = excluded.thumbnail_url,
			nsfw = excluded.nsfw,
			updated = excluded.updated,
			locked = COALESCE(?, posts.locked),
			stickied = COALESCE(?, posts.stickied)`
	sqlUpdatePostDeleted = `UPDATE posts SET deleted = ? WHERE id = ?`
	sqlUpdatePostRemoved = `UPDATE posts SET removed = ? WHERE id = ?`
)

func scanPost(row interface{ Scan(...any) error }) (*domain.Post, error) {
	var p domain.Post
	var updated sql.NullTime
	err := row.Scan(&p.Id, &p.Name, &p.URL, &p.Body, &p.ThumbnailURL, &p.CreatorId, &p.CommunityId, &p.ApID,
		&p.Nsfw, &p.Locked, &p.Stickied, &p.Removed, &p.Deleted, &p.Local, &p.Published, &updated)
	if err != nil {
		return nil, notFound(err)
	}
	p.Updated = nullTimePtr(updated)
	return &p, nil
}

func (db *DB) ReadPost(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	return scanPost(db.q().QueryRowContext(ctx, sqlSelectPostById, id))
}

func (db *DB) ReadPostByApID(ctx context.Context, apID string) (*domain.Post, error) {
	return scanPost(db.q().QueryRowContext(ctx, sqlSelectPostByApID, apID))
}

func (db *DB) UpsertPost(ctx context.Context, form *domain.PostForm) (*domain.Post, error) {
	var post *domain.Post
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpsertPost,
			uuid.New(),
			form.Name,
			form.URL,
			form.Body,
			form.ThumbnailURL,
			form.CreatorId,
			form.CommunityId,
			form.ApID,
			form.Nsfw,
			form.Locked,
			form.Stickied,
			form.Local,
			nowOr(form.Published),
			form.Updated,
			form.Locked,
			form.Stickied,
		)
		if err != nil {
			return err
		}
		post, err = scanPost(tx.QueryRowContext(ctx, sqlSelectPostByApID, form.ApID))
		return err
	})
	return post, err
}

func (db *DB) UpdatePostDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdatePostDeleted, deleted, id))
}

func (db *DB) UpdatePostRemoved(ctx context.Context, id uuid.UUID, removed bool) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdatePostRemoved, removed, id))
}

// Comments
const (
	commentColumns = `id, creator_id, post_id, parent_id, content, ap_id, removed, deleted, local, published, updated`

	sqlSelectCommentById   = `SELECT ` + commentColumns + ` FROM comments WHERE id = ?`
	sqlSelectCommentByApID = `SELECT ` + commentColumns + ` FROM comments WHERE ap_id = ?`
	sqlUpsertComment       = `INSERT INTO comments(id, creator_id, post_id, parent_id, content, ap_id, local, published,
		updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ap_id) DO UPDATE SET
			content = excluded.content,
			updated = excluded.updated`
	sqlUpdateCommentDeleted = `UPDATE comments SET deleted = ? WHERE id = ?`
	sqlUpdateCommentRemoved = `UPDATE comments SET removed = ? WHERE id = ?`
)

func scanComment(row interface{ Scan(...any) error }) (*domain.Comment, error) {
	var c domain.Comment
	var parent uuid.NullUUID
	var updated sql.NullTime
	err := row.Scan(&c.Id, &c.CreatorId, &c.PostId, &parent, &c.Content, &c.ApID, &c.Removed, &c.Deleted,
		&c.Local, &c.Published, &updated)
	if err != nil {
		return nil, notFound(err)
	}
	if parent.Valid {
		c.ParentId = &parent.UUID
	}
	c.Updated = nullTimePtr(updated)
	return &c, nil
}

func (db *DB) ReadComment(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	return scanComment(db.q().QueryRowContext(ctx, sqlSelectCommentById, id))
}

func (db *DB) ReadCommentByApID(ctx context.Context, apID string) (*domain.Comment, error) {
	return scanComment(db.q().QueryRowContext(ctx, sqlSelectCommentByApID, apID))
}

func (db *DB) UpsertComment(ctx context.Context, form *domain.CommentForm) (*domain.Comment, error) {
	var parent uuid.NullUUID
	if form.ParentId != nil {
		parent = uuid.NullUUID{UUID: *form.ParentId, Valid: true}
	}
	var comment *domain.Comment
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpsertComment,
			uuid.New(),
			form.CreatorId,
			form.PostId,
			parent,
			form.Content,
			form.ApID,
			form.Local,
			nowOr(form.Published),
			form.Updated,
		)
		if err != nil {
			return err
		}
		comment, err = scanComment(tx.QueryRowContext(ctx, sqlSelectCommentByApID, form.ApID))
		return err
	})
	return comment, err
}

func (db *DB) UpdateCommentDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdateCommentDeleted, deleted, id))
}

func (db *DB) UpdateCommentRemoved(ctx context.Context, id uuid.UUID, removed bool) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdateCommentRemoved, removed, id))
}

// Private messages
const (
	privateMessageColumns = `id, creator_id, recipient_id, content, ap_id, read, deleted, local, published, updated`

	sqlSelectPrivateMessageById   = `SELECT ` + privateMessageColumns + ` FROM private_messages WHERE id = ?`
	sqlSelectPrivateMessageByApID = `SELECT ` + privateMessageColumns + ` FROM private_messages WHERE ap_id = ?`
	sqlUpsertPrivateMessage       = `INSERT INTO private_messages(id, creator_id, recipient_id, content, ap_id, local,
		published, updated) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ap_id) DO UPDATE SET
			content = excluded.content,
			updated = excluded.updated`
	sqlUpdatePrivateMessageDeleted = `UPDATE private_messages SET deleted = ? WHERE id = ?`
)

func scanPrivateMessage(row interface{ Scan(...any) error }) (*domain.PrivateMessage, error) {
	var m domain.PrivateMessage
	var updated sql.NullTime
	err := row.Scan(&m.Id, &m.CreatorId, &m.RecipientId, &m.Content, &m.ApID, &m.Read, &m.Deleted, &m.Local,
		&m.Published, &updated)
	if err != nil {
		return nil, notFound(err)
	}
	m.Updated = nullTimePtr(updated)
	return &m, nil
}

func (db *DB) ReadPrivateMessage(ctx context.Context, id uuid.UUID) (*domain.PrivateMessage, error) {
	return scanPrivateMessage(db.q().QueryRowContext(ctx, sqlSelectPrivateMessageById, id))
}

func (db *DB) ReadPrivateMessageByApID(ctx context.Context, apID string) (*domain.PrivateMessage, error) {
	return scanPrivateMessage(db.q().QueryRowContext(ctx, sqlSelectPrivateMessageByApID, apID))
}

func (db *DB) UpsertPrivateMessage(ctx context.Context, form *domain.PrivateMessageForm) (*domain.PrivateMessage, error) {
	var msg *domain.PrivateMessage
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlUpsertPrivateMessage,
			uuid.New(),
			form.CreatorId,
			form.RecipientId,
			form.Content,
			form.ApID,
			form.Local,
			nowOr(form.Published),
			form.Updated,
		)
		if err != nil {
			return err
		}
		msg, err = scanPrivateMessage(tx.QueryRowContext(ctx, sqlSelectPrivateMessageByApID, form.ApID))
		return err
	})
	return msg, err
}

func (db *DB) UpdatePrivateMessageDeleted(ctx context.Context, id uuid.UUID, deleted bool) error {
	return expectRow(db.q().ExecContext(ctx, sqlUpdatePrivateMessageDeleted, deleted, id))
}
