package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	ss "github.com/panyam/secretshare"
)

// AutoMigrate runs database migrations for the users table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// OpenPostgres connects to dsn, migrates the schema and returns a store that
// owns the connection.
func OpenPostgres(dsn string) (*UserStore, error) {
	return Open(postgres.Open(dsn))
}

// Open connects through dialector and migrates the schema. The connection is
// closed again if migration fails.
func Open(dialector gorm.Dialector) (*UserStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return NewUserStore(db), nil
}

// UserStore implements ss.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateLocalUser(ctx context.Context, username, email string, passwordHash []byte) (*ss.User, error) {
	key := usernameKey(username)
	model := &UserModel{
		ID:           uuid.NewString(),
		Username:     username,
		UsernameKey:  &key,
		Email:        email,
		PasswordHash: passwordHash,
	}
	inserted, err := s.insertIfAbsent(ctx, model)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, ss.ErrDuplicateIdentity
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetLocalUser(ctx context.Context, username string) (*ss.User, error) {
	return s.findBy(ctx, ss.StrategyLocal, usernameKey(username))
}

// FindOrCreateByProvider relies on the unique index on the provider column:
// the insert is skipped on conflict and the surviving row is read back.
func (s *UserStore) FindOrCreateByProvider(ctx context.Context, strategy ss.Strategy, providerID string) (*ss.User, bool, error) {
	user, err := s.findBy(ctx, strategy, providerID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ss.ErrUserNotFound) {
		return nil, false, err
	}

	id := providerID
	model := &UserModel{ID: uuid.NewString()}
	switch strategy {
	case ss.StrategyGoogle:
		model.GoogleID = &id
	case ss.StrategyFacebook:
		model.FacebookID = &id
	default:
		return nil, false, fmt.Errorf("unsupported provider strategy %q", strategy)
	}

	inserted, err := s.insertIfAbsent(ctx, model)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return model.ToUser(), true, nil
	}
	user, err = s.findBy(ctx, strategy, providerID)
	return user, false, err
}

func (s *UserStore) insertIfAbsent(ctx context.Context, model *UserModel) (bool, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model)
	if result.Error != nil {
		return false, ss.StoreError("insert user", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *UserStore) findBy(ctx context.Context, strategy ss.Strategy, key string) (*ss.User, error) {
	var model UserModel
	err := s.db.WithContext(ctx).Where(keyColumn(strategy)+" = ?", key).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ss.ErrUserNotFound
		}
		return nil, ss.StoreError("find user", err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*ss.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).Where("id = ?", userId).Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ss.ErrUserNotFound
		}
		return nil, ss.StoreError("get user", err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) SetSecret(ctx context.Context, userId, secret string) error {
	result := s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", userId).
		Updates(map[string]any{"secret": secret, "updated_at": time.Now()})
	if result.Error != nil {
		return ss.StoreError("set secret", result.Error)
	}
	if result.RowsAffected == 0 {
		return ss.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) ListUsersWithSecrets(ctx context.Context) ([]*ss.User, error) {
	var models []UserModel
	err := s.db.WithContext(ctx).
		Where("secret <> ?", "").
		Order("created_at").
		Find(&models).Error
	if err != nil {
		return nil, ss.StoreError("list users", err)
	}

	users := make([]*ss.User, 0, len(models))
	for i := range models {
		users = append(users, models[i].ToUser())
	}
	return users, nil
}

func (s *UserStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
