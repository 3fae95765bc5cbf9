package board

import (
	"time"
)

// Topic is a tag-like grouping for posts. Names are unique and matched
// case-sensitively as stored; topics are created implicitly the first time
// a post references a new name.
type Topic struct {
	ID        int64     `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Post belongs to one topic and one host user. TopicName and HostName are
// filled on reads by joining the referenced rows; writes go through the IDs.
type Post struct {
	ID          int64     `json:"id" db:"id"`
	TopicID     int64     `json:"topic_id" db:"topic_id"`
	TopicName   string    `json:"topic_name"`
	HostID      string    `json:"host_id" db:"host_id"`
	HostName    string    `json:"host_name"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Message is a reply on a post. TopicName is the name of the post's topic,
// joined in on reads so the activity feed can filter without extra lookups.
type Message struct {
	ID         int64     `json:"id" db:"id"`
	PostID     int64     `json:"post_id" db:"post_id"`
	AuthorID   string    `json:"author_id" db:"author_id"`
	AuthorName string    `json:"author_name"`
	TopicName  string    `json:"topic_name"`
	Body       string    `json:"body" db:"body"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
