package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	ss "github.com/panyam/secretshare"
)

// UserEntity is the Datastore entity for users
type UserEntity struct {
	Key          *datastore.Key `datastore:"__key__"`
	Username     string         `datastore:"username"`
	Email        string         `datastore:"email,noindex"`
	PasswordHash []byte         `datastore:"password_hash,noindex"`
	GoogleID     string         `datastore:"google_id"`
	FacebookID   string         `datastore:"facebook_id"`
	Secret       string         `datastore:"secret,noindex"`
	HasSecret    bool           `datastore:"has_secret"`
	CreatedAt    time.Time      `datastore:"created_at"`
	UpdatedAt    time.Time      `datastore:"updated_at"`
	Version      int            `datastore:"version"`
}

func (e *UserEntity) ToUser() *ss.User {
	return &ss.User{
		ID:           e.Key.Name,
		Username:     e.Username,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		GoogleID:     e.GoogleID,
		FacebookID:   e.FacebookID,
		Secret:       e.Secret,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func UserToEntity(u *ss.User, key *datastore.Key) *UserEntity {
	return &UserEntity{
		Key:          key,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		GoogleID:     u.GoogleID,
		FacebookID:   u.FacebookID,
		Secret:       u.Secret,
		HasSecret:    u.HasSecret(),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

// LinkEntity is the Datastore entity mapping a lookup key to a user.
// Key format: Strategy + ":" + Value
type LinkEntity struct {
	Key       *datastore.Key `datastore:"__key__"`
	Strategy  string         `datastore:"strategy"`
	Value     string         `datastore:"value"`
	UserID    string         `datastore:"user_id"`
	CreatedAt time.Time      `datastore:"created_at"`
}
