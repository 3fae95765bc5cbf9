package board

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory Store used to exercise the domain operations
// without a live Postgres. It mirrors the relational semantics the real
// store gets from constraints: unique usernames and topic names, cascade
// delete from posts to messages and participants, set-valued participants.
type memStore struct {
	mu           sync.Mutex
	users        map[string]*User
	topics       map[int64]*Topic
	posts        map[int64]*Post
	messages     map[int64]*Message
	participants map[int64]map[string]bool
	nextTopic    int64
	nextPost     int64
	nextMessage  int64
}

var _ Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:        make(map[string]*User),
		topics:       make(map[int64]*Topic),
		posts:        make(map[int64]*Post),
		messages:     make(map[int64]*Message),
		participants: make(map[int64]map[string]bool),
	}
}

func (m *memStore) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrDuplicate
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memStore) GetUserByName(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	for id, u := range m.users {
		if id != user.ID && u.Username == user.Username {
			return ErrDuplicate
		}
	}
	existing.Username = user.Username
	existing.Email = user.Email
	existing.DisplayName = user.DisplayName
	existing.Updated = time.Now().UTC()
	user.Updated = existing.Updated
	return nil
}

func (m *memStore) GetOrCreateTopic(_ context.Context, name string) (*Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.topics {
		if t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	m.nextTopic++
	t := &Topic{ID: m.nextTopic, Name: name, CreatedAt: time.Now().UTC()}
	m.topics[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *memStore) ListTopics(_ context.Context) ([]Topic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := make([]Topic, 0, len(m.topics))
	for _, t := range m.topics {
		topics = append(topics, *t)
	}
	sort.Slice(topics, func(i, j int) bool { return topics[i].ID > topics[j].ID })
	return topics, nil
}

// fillPost refreshes the joined display fields the way the SQL reads do.
func (m *memStore) fillPost(p Post) Post {
	if t, ok := m.topics[p.TopicID]; ok {
		p.TopicName = t.Name
	}
	if u, ok := m.users[p.HostID]; ok {
		p.HostName = u.Username
	}
	return p
}

func (m *memStore) CreatePost(_ context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPost++
	post.ID = m.nextPost
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now
	cp := *post
	m.posts[post.ID] = &cp
	return nil
}

func (m *memStore) GetPost(_ context.Context, id int64) (*Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := m.fillPost(*p)
	return &cp, nil
}

func (m *memStore) ListPosts(_ context.Context) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	posts := make([]Post, 0, len(m.posts))
	for _, p := range m.posts {
		posts = append(posts, m.fillPost(*p))
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (m *memStore) ListPostsByHost(_ context.Context, hostID string) ([]Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var posts []Post
	for _, p := range m.posts {
		if p.HostID == hostID {
			posts = append(posts, m.fillPost(*p))
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	return posts, nil
}

func (m *memStore) UpdatePost(_ context.Context, post *Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.posts[post.ID]
	if !ok {
		return ErrNotFound
	}
	existing.TopicID = post.TopicID
	existing.Name = post.Name
	existing.Description = post.Description
	existing.UpdatedAt = time.Now().UTC()
	post.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *memStore) DeletePost(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	for mid, msg := range m.messages {
		if msg.PostID == id {
			delete(m.messages, mid)
		}
	}
	delete(m.participants, id)
	return nil
}

func (m *memStore) fillMessage(msg Message) Message {
	if u, ok := m.users[msg.AuthorID]; ok {
		msg.AuthorName = u.Username
	}
	if p, ok := m.posts[msg.PostID]; ok {
		if t, ok := m.topics[p.TopicID]; ok {
			msg.TopicName = t.Name
		}
	}
	return msg
}

func (m *memStore) CreateMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.posts[msg.PostID]; !ok {
		return ErrNotFound
	}
	m.nextMessage++
	msg.ID = m.nextMessage
	msg.CreatedAt = time.Now().UTC()
	cp := *msg
	m.messages[msg.ID] = &cp
	set, ok := m.participants[msg.PostID]
	if !ok {
		set = make(map[string]bool)
		m.participants[msg.PostID] = set
	}
	set[msg.AuthorID] = true
	return nil
}

func (m *memStore) GetMessage(_ context.Context, id int64) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := m.fillMessage(*msg)
	return &cp, nil
}

func (m *memStore) ListMessagesByPost(_ context.Context, postID int64) ([]Message, error) {
	return m.listMessages(func(msg *Message) bool { return msg.PostID == postID })
}

func (m *memStore) ListMessagesByAuthor(_ context.Context, authorID string) ([]Message, error) {
	return m.listMessages(func(msg *Message) bool { return msg.AuthorID == authorID })
}

func (m *memStore) ListMessages(_ context.Context) ([]Message, error) {
	return m.listMessages(func(*Message) bool { return true })
}

func (m *memStore) listMessages(keep func(*Message) bool) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var msgs []Message
	for _, msg := range m.messages {
		if keep(msg) {
			msgs = append(msgs, m.fillMessage(*msg))
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID > msgs[j].ID })
	return msgs, nil
}

func (m *memStore) DeleteMessage(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.messages[id]; !ok {
		return ErrNotFound
	}
	delete(m.messages, id)
	return nil
}

func (m *memStore) ListParticipants(_ context.Context, postID int64) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []User
	for id := range m.participants[postID] {
		if u, ok := m.users[id]; ok {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}
