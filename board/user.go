package board

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is an account on the board. Usernames are stored lowercase and are
// unique; lookups normalize their input the same way.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Hash        []byte    `json:"-"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

var usernameRe = regexp.MustCompile(`^[a-z0-9._-]+$`)

// NormalizeUsername lowercases and trims a username so uniqueness and
// lookups behave the same regardless of the storage engine's collation.
func NormalizeUsername(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func NewUser(username, email, displayName string) *User {
	now := time.Now().UTC()
	return &User{
		ID:          uuid.New().String(),
		Username:    NormalizeUsername(username),
		Email:       email,
		DisplayName: displayName,
		Created:     now,
		Updated:     now,
	}
}

func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	if err != nil {
		return err
	}
	u.Hash = hash
	return nil
}

func (u *User) PasswordMatches(input string) (bool, error) {
	err := bcrypt.CompareHashAndPassword(u.Hash, []byte(input))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}
	return true, nil
}

// Sanitize strips credential material before the user is handed to a view.
func (u *User) Sanitize() {
	u.Hash = nil
}

func (u *User) MarshalBinary() ([]byte, error) {
	return json.Marshal(u)
}

func (u *User) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, u)
}
