package board

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL DEFAULT '',
    display_name TEXT NOT NULL DEFAULT '',
    hash BYTEA,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS topics (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS posts (
    id BIGSERIAL PRIMARY KEY,
    topic_id BIGINT NOT NULL REFERENCES topics(id),
    host_id UUID NOT NULL REFERENCES users(id),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS messages (
    id BIGSERIAL PRIMARY KEY,
    post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    author_id UUID NOT NULL REFERENCES users(id),
    body TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS post_participants (
    post_id BIGINT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
    user_id UUID NOT NULL REFERENCES users(id),
    PRIMARY KEY (post_id, user_id)
);
CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    data BYTEA NOT NULL,
    expiry TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_on_topic_id ON posts(topic_id);
CREATE INDEX IF NOT EXISTS idx_messages_on_post_id ON messages(post_id);
CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);
`

// Store is the persistence boundary the domain operations run against.
type Store interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByName(ctx context.Context, username string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpdateUser(ctx context.Context, user *User) error

	GetOrCreateTopic(ctx context.Context, name string) (*Topic, error)
	ListTopics(ctx context.Context) ([]Topic, error)

	CreatePost(ctx context.Context, post *Post) error
	GetPost(ctx context.Context, id int64) (*Post, error)
	ListPosts(ctx context.Context) ([]Post, error)
	ListPostsByHost(ctx context.Context, hostID string) ([]Post, error)
	UpdatePost(ctx context.Context, post *Post) error
	DeletePost(ctx context.Context, id int64) error

	// CreateMessage also adds the author to the post's participant set,
	// in the same transaction. The add is idempotent.
	CreateMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id int64) (*Message, error)
	ListMessagesByPost(ctx context.Context, postID int64) ([]Message, error)
	ListMessagesByAuthor(ctx context.Context, authorID string) ([]Message, error)
	ListMessages(ctx context.Context) ([]Message, error)
	DeleteMessage(ctx context.Context, id int64) error

	ListParticipants(ctx context.Context, postID int64) ([]User, error)
}

type Database struct {
	pool *pgxpool.Pool
}

var _ Store = (*Database)(nil)

func NewDatabase(ctx context.Context, connectionString string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{pool: pool}, nil
}

func (d *Database) CreateTables(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, schema)
	return err
}

// Pool exposes the underlying connection pool so the session store can
// share it.
func (d *Database) Pool() *pgxpool.Pool {
	return d.pool
}

func (d *Database) Close() {
	d.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- User Functions ---

func (d *Database) CreateUser(ctx context.Context, user *User) error {
	query := `INSERT INTO users (id, username, email, display_name, hash, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := d.pool.Exec(ctx, query,
		user.ID, user.Username, user.Email, user.DisplayName, user.Hash, user.Created, user.Updated)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (d *Database) GetUserByName(ctx context.Context, username string) (*User, error) {
	return d.getUser(ctx, `WHERE username = $1`, username)
}

func (d *Database) GetUserByID(ctx context.Context, id string) (*User, error) {
	return d.getUser(ctx, `WHERE id = $1`, id)
}

func (d *Database) getUser(ctx context.Context, where string, arg any) (*User, error) {
	var user User
	query := `SELECT id, username, email, display_name, hash, created_at, updated_at FROM users ` + where
	row := d.pool.QueryRow(ctx, query, arg)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.DisplayName,
		&user.Hash, &user.Created, &user.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *Database) UpdateUser(ctx context.Context, user *User) error {
	query := `UPDATE users SET username = $2, email = $3, display_name = $4, updated_at = NOW()
	          WHERE id = $1 RETURNING updated_at`
	err := d.pool.QueryRow(ctx, query,
		user.ID, user.Username, user.Email, user.DisplayName).Scan(&user.Updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// --- Topic Functions ---

// GetOrCreateTopic resolves a topic name to a row, inserting it if absent.
// The insert uses ON CONFLICT DO NOTHING so two concurrent submissions of
// the same new name cannot produce duplicate rows.
func (d *Database) GetOrCreateTopic(ctx context.Context, name string) (*Topic, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var topic Topic
	insert := `INSERT INTO topics (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	           RETURNING id, name, created_at`
	err = tx.QueryRow(ctx, insert, name).Scan(&topic.ID, &topic.Name, &topic.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert to an existing row; read it instead.
		sel := `SELECT id, name, created_at FROM topics WHERE name = $1`
		err = tx.QueryRow(ctx, sel, name).Scan(&topic.ID, &topic.Name, &topic.CreatedAt)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &topic, nil
}

func (d *Database) ListTopics(ctx context.Context) ([]Topic, error) {
	query := `SELECT id, name, created_at FROM topics ORDER BY created_at DESC, id DESC`
	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// --- Post Functions ---

const postColumns = `p.id, p.topic_id, t.name, p.host_id, u.username, p.name, p.description, p.created_at, p.updated_at`

const postJoins = `FROM posts p
          JOIN topics t ON t.id = p.topic_id
          JOIN users u ON u.id = p.host_id`

func scanPost(row pgx.Row, p *Post) error {
	return row.Scan(&p.ID, &p.TopicID, &p.TopicName, &p.HostID, &p.HostName,
		&p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
}

func (d *Database) CreatePost(ctx context.Context, post *Post) error {
	query := `INSERT INTO posts (topic_id, host_id, name, description) VALUES ($1, $2, $3, $4)
	          RETURNING id, created_at, updated_at`
	return d.pool.QueryRow(ctx, query, post.TopicID, post.HostID, post.Name, post.Description).
		Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
}

func (d *Database) GetPost(ctx context.Context, id int64) (*Post, error) {
	var post Post
	query := `SELECT ` + postColumns + ` ` + postJoins + ` WHERE p.id = $1`
	err := scanPost(d.pool.QueryRow(ctx, query, id), &post)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (d *Database) ListPosts(ctx context.Context) ([]Post, error) {
	query := `SELECT ` + postColumns + ` ` + postJoins + ` ORDER BY p.created_at DESC, p.id DESC`
	return d.queryPosts(ctx, query)
}

func (d *Database) ListPostsByHost(ctx context.Context, hostID string) ([]Post, error) {
	query := `SELECT ` + postColumns + ` ` + postJoins +
		` WHERE p.host_id = $1 ORDER BY p.created_at DESC, p.id DESC`
	return d.queryPosts(ctx, query, hostID)
}

func (d *Database) queryPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var posts []Post
	for rows.Next() {
		var p Post
		if err := scanPost(rows, &p); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (d *Database) UpdatePost(ctx context.Context, post *Post) error {
	query := `UPDATE posts SET topic_id = $2, name = $3, description = $4, updated_at = NOW()
	          WHERE id = $1 RETURNING updated_at`
	err := d.pool.QueryRow(ctx, query, post.ID, post.TopicID, post.Name, post.Description).
		Scan(&post.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (d *Database) DeletePost(ctx context.Context, id int64) error {
	// Messages and participant rows go with it via ON DELETE CASCADE.
	tag, err := d.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Message Functions ---

const messageColumns = `m.id, m.post_id, m.author_id, u.username, t.name, m.body, m.created_at`

const messageJoins = `FROM messages m
          JOIN users u ON u.id = m.author_id
          JOIN posts p ON p.id = m.post_id
          JOIN topics t ON t.id = p.topic_id`

func scanMessage(row pgx.Row, m *Message) error {
	return row.Scan(&m.ID, &m.PostID, &m.AuthorID, &m.AuthorName, &m.TopicName,
		&m.Body, &m.CreatedAt)
}

func (d *Database) CreateMessage(ctx context.Context, msg *Message) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `INSERT INTO messages (post_id, author_id, body) VALUES ($1, $2, $3)
	           RETURNING id, created_at`
	err = tx.QueryRow(ctx, insert, msg.PostID, msg.AuthorID, msg.Body).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return err
	}
	join := `INSERT INTO post_participants (post_id, user_id) VALUES ($1, $2)
	         ON CONFLICT DO NOTHING`
	if _, err := tx.Exec(ctx, join, msg.PostID, msg.AuthorID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d *Database) GetMessage(ctx context.Context, id int64) (*Message, error) {
	var msg Message
	query := `SELECT ` + messageColumns + ` ` + messageJoins + ` WHERE m.id = $1`
	err := scanMessage(d.pool.QueryRow(ctx, query, id), &msg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (d *Database) ListMessagesByPost(ctx context.Context, postID int64) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` ` + messageJoins +
		` WHERE m.post_id = $1 ORDER BY m.created_at DESC, m.id DESC`
	return d.queryMessages(ctx, query, postID)
}

func (d *Database) ListMessagesByAuthor(ctx context.Context, authorID string) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` ` + messageJoins +
		` WHERE m.author_id = $1 ORDER BY m.created_at DESC, m.id DESC`
	return d.queryMessages(ctx, query, authorID)
}

func (d *Database) ListMessages(ctx context.Context) ([]Message, error) {
	query := `SELECT ` + messageColumns + ` ` + messageJoins +
		` ORDER BY m.created_at DESC, m.id DESC`
	return d.queryMessages(ctx, query)
}

func (d *Database) queryMessages(ctx context.Context, query string, args ...any) ([]Message, error) {
	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []Message
	for rows.Next() {
		var m Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (d *Database) DeleteMessage(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Participant Functions ---

func (d *Database) ListParticipants(ctx context.Context, postID int64) ([]User, error) {
	query := `SELECT u.id, u.username, u.email, u.display_name, u.created_at, u.updated_at
	          FROM post_participants pp
	          JOIN users u ON u.id = pp.user_id
	          WHERE pp.post_id = $1
	          ORDER BY u.username`
	rows, err := d.pool.Query(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &u.Created, &u.Updated); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
