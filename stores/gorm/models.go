package gorm

import (
	"strings"
	"time"

	ss "github.com/panyam/secretshare"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID           string    `gorm:"primaryKey;size:64"`
	Username     string    `gorm:"size:255"`
	UsernameKey  *string   `gorm:"uniqueIndex;size:255"`
	Email        string    `gorm:"size:255"`
	PasswordHash []byte
	GoogleID     *string   `gorm:"uniqueIndex;size:255"`
	FacebookID   *string   `gorm:"uniqueIndex;size:255"`
	Secret       string    `gorm:"type:text"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

// ToUser converts the row to the domain record.
func (m *UserModel) ToUser() *ss.User {
	return &ss.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		GoogleID:     deref(m.GoogleID),
		FacebookID:   deref(m.FacebookID),
		Secret:       m.Secret,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// keyColumn returns the unique column a strategy's lookup key lives in.
func keyColumn(strategy ss.Strategy) string {
	switch strategy {
	case ss.StrategyGoogle:
		return "google_id"
	case ss.StrategyFacebook:
		return "facebook_id"
	default:
		return "username_key"
	}
}

func usernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
