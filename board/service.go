package board

import (
	"context"
	"errors"
	"strings"
)

// FrontPage is the result of the front-page listing: posts matching the
// query, the full topic set for the sidebar, and an activity feed of
// messages whose post's topic matched.
type FrontPage struct {
	Posts     []Post
	Topics    []Topic
	PostCount int
	Messages  []Message
}

// ProfilePage is a user's public profile view.
type ProfilePage struct {
	User      User
	Posts     []Post
	Messages  []Message
	Topics    []Topic
	PostCount int
}

// PostPage is a single post with its conversation.
type PostPage struct {
	Post         Post
	Messages     []Message
	Participants []User
}

// Service implements the domain operations over a Store. Ownership checks
// and search live here rather than in SQL so behavior does not depend on
// the storage engine's collation.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// --- Accounts ---

const minPasswordLen = 8

func validateUsername(username string) error {
	if username == "" {
		return &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if !usernameRe.MatchString(username) {
		return &ValidationError{Field: "username", Reason: "may only contain letters, digits, dots, dashes and underscores"}
	}
	return nil
}

// Register creates an account. The username is normalized to lowercase
// before the uniqueness check and persistence.
func (s *Service) Register(ctx context.Context, username, password, email, displayName string) (*User, error) {
	username = NormalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLen {
		return nil, &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	user := NewUser(username, email, displayName)
	if err := user.SetPassword(password); err != nil {
		return nil, err
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &ValidationError{Field: "username", Reason: "already taken"}
		}
		return nil, err
	}
	return user, nil
}

// Login authenticates credentials. The caller should collapse both failure
// reasons into one generic message when talking to users.
func (s *Service) Login(ctx context.Context, username, password string) (*User, error) {
	user, err := s.store.GetUserByName(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &AuthError{Reason: ReasonUserNotFound}
		}
		return nil, err
	}
	ok, err := user.PasswordMatches(password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AuthError{Reason: ReasonBadCredentials}
	}
	return user, nil
}

func (s *Service) UserByID(ctx context.Context, id string) (*User, error) {
	return s.store.GetUserByID(ctx, id)
}

// UpdateProfile mutates the acting user's own record. A username change is
// re-normalized and re-checked for uniqueness.
func (s *Service) UpdateProfile(ctx context.Context, user *User, username, email, displayName string) (*User, error) {
	username = NormalizeUsername(username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	updated := *user
	updated.Username = username
	updated.Email = email
	updated.DisplayName = displayName
	if err := s.store.UpdateUser(ctx, &updated); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, &ValidationError{Field: "username", Reason: "already taken"}
		}
		return nil, err
	}
	return &updated, nil
}

// --- Listing & search ---

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// postMatches reports whether a post matches a search query: a
// case-insensitive substring of its topic name, its name, its host's
// username, or its description. The empty query matches everything.
func postMatches(p *Post, query string) bool {
	return containsFold(p.TopicName, query) ||
		containsFold(p.Name, query) ||
		containsFold(p.HostName, query) ||
		containsFold(p.Description, query)
}

func (s *Service) ListPosts(ctx context.Context, query string) (*FrontPage, error) {
	posts, err := s.store.ListPosts(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]Post, 0, len(posts))
	for _, p := range posts {
		if postMatches(&p, query) {
			matched = append(matched, p)
		}
	}

	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, err
	}

	// The activity feed filters on the topic name alone.
	msgs, err := s.store.ListMessages(ctx)
	if err != nil {
		return nil, err
	}
	feed := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if containsFold(m.TopicName, query) {
			feed = append(feed, m)
		}
	}

	return &FrontPage{
		Posts:     matched,
		Topics:    topics,
		PostCount: len(matched),
		Messages:  feed,
	}, nil
}

func (s *Service) ListTopics(ctx context.Context, query string) ([]Topic, error) {
	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]Topic, 0, len(topics))
	for _, t := range topics {
		if containsFold(t.Name, query) {
			matched = append(matched, t)
		}
	}
	return matched, nil
}

func (s *Service) UserProfile(ctx context.Context, userID string) (*ProfilePage, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Sanitize()
	posts, err := s.store.ListPostsByHost(ctx, userID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessagesByAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}
	topics, err := s.store.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	return &ProfilePage{
		User:      *user,
		Posts:     posts,
		Messages:  msgs,
		Topics:    topics,
		PostCount: len(posts),
	}, nil
}

// --- Post lifecycle ---

func (s *Service) GetPost(ctx context.Context, postID int64) (*PostPage, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessagesByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, postID)
	if err != nil {
		return nil, err
	}
	for i := range participants {
		participants[i].Sanitize()
	}
	return &PostPage{Post: *post, Messages: msgs, Participants: participants}, nil
}

// PostByID fetches a bare post without its conversation, for ownership
// checks and form prefill.
func (s *Service) PostByID(ctx context.Context, postID int64) (*Post, error) {
	return s.store.GetPost(ctx, postID)
}

func validatePostInput(name, topicName string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(topicName) == "" {
		return &ValidationError{Field: "topic", Reason: "must not be empty"}
	}
	return nil
}

// CreatePost creates a post hosted by the acting user, resolving the topic
// name with get-or-create semantics. Topic names match case-sensitively.
func (s *Service) CreatePost(ctx context.Context, host *User, name, description, topicName string) (*Post, error) {
	if err := validatePostInput(name, topicName); err != nil {
		return nil, err
	}
	topic, err := s.store.GetOrCreateTopic(ctx, topicName)
	if err != nil {
		return nil, err
	}
	post := &Post{
		TopicID:     topic.ID,
		TopicName:   topic.Name,
		HostID:      host.ID,
		HostName:    host.Username,
		Name:        name,
		Description: description,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// UpdatePost mutates a post in place. Only the host may do this.
func (s *Service) UpdatePost(ctx context.Context, actor *User, postID int64, name, description, topicName string) (*Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.HostID != actor.ID {
		return nil, ErrForbidden
	}
	if err := validatePostInput(name, topicName); err != nil {
		return nil, err
	}
	topic, err := s.store.GetOrCreateTopic(ctx, topicName)
	if err != nil {
		return nil, err
	}
	post.TopicID = topic.ID
	post.TopicName = topic.Name
	post.Name = name
	post.Description = description
	if err := s.store.UpdatePost(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// DeletePost removes a post and, through the store, all of its messages.
// Only the host may do this.
func (s *Service) DeletePost(ctx context.Context, actor *User, postID int64) error {
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.HostID != actor.ID {
		return ErrForbidden
	}
	return s.store.DeletePost(ctx, postID)
}

// --- Message lifecycle ---

// PostMessage adds a message to a post from any authenticated user and
// joins the author to the post's participant set.
func (s *Service) PostMessage(ctx context.Context, author *User, postID int64, body string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, &ValidationError{Field: "body", Reason: "must not be empty"}
	}
	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		PostID:     post.ID,
		AuthorID:   author.ID,
		AuthorName: author.Username,
		TopicName:  post.TopicName,
		Body:       body,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) GetMessage(ctx context.Context, messageID int64) (*Message, error) {
	return s.store.GetMessage(ctx, messageID)
}

// DeleteMessage removes a single message. Only its author may do this; the
// parent post is untouched.
func (s *Service) DeleteMessage(ctx context.Context, actor *User, messageID int64) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID != actor.ID {
		return ErrForbidden
	}
	return s.store.DeleteMessage(ctx, messageID)
}
