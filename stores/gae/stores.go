package gae

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	ss "github.com/panyam/secretshare"
)

// Kind constants for Datastore entities
const (
	KindUser = "User"
	KindLink = "ProviderLink"
)

// UserStore implements ss.UserStore using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{
		client:    client,
		namespace: namespace,
	}
}

// Open creates a client for projectID. The client honours
// DATASTORE_EMULATOR_HOST.
func Open(ctx context.Context, projectID, namespace string) (*UserStore, error) {
	client, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, ss.StoreError("datastore client", err)
	}
	return NewUserStore(client, namespace), nil
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) linkKey(strategy ss.Strategy, value string) *datastore.Key {
	if strategy == ss.StrategyLocal {
		value = strings.ToLower(strings.TrimSpace(value))
	}
	return s.namespacedKey(KindLink, string(strategy)+":"+value)
}

func (s *UserStore) CreateLocalUser(ctx context.Context, username, email string, passwordHash []byte) (*ss.User, error) {
	now := time.Now()
	user := &ss.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	winner, err := s.linkOrCreate(ctx, ss.StrategyLocal, username, user)
	if err != nil {
		return nil, err
	}
	if winner.ID != user.ID {
		return nil, ss.ErrDuplicateIdentity
	}
	return user, nil
}

func (s *UserStore) GetLocalUser(ctx context.Context, username string) (*ss.User, error) {
	return s.lookup(ctx, ss.StrategyLocal, username)
}

func (s *UserStore) FindOrCreateByProvider(ctx context.Context, strategy ss.Strategy, providerID string) (*ss.User, bool, error) {
	user := ss.NewProviderUser(strategy, providerID)
	user.ID = uuid.NewString()
	winner, err := s.linkOrCreate(ctx, strategy, providerID, user)
	if err != nil {
		return nil, false, err
	}
	return winner, winner.ID == user.ID, nil
}

// linkOrCreate returns the user linked to strategy:value, writing user and
// the link in one transaction when there is none yet.
func (s *UserStore) linkOrCreate(ctx context.Context, strategy ss.Strategy, value string, user *ss.User) (*ss.User, error) {
	linkKey := s.linkKey(strategy, value)
	var result *ss.User

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var link LinkEntity
		err := tx.Get(linkKey, &link)
		if err == nil {
			var existing UserEntity
			if err := tx.Get(s.namespacedKey(KindUser, link.UserID), &existing); err != nil {
				return err
			}
			result = existing.ToUser()
			return nil
		}
		if !errors.Is(err, datastore.ErrNoSuchEntity) {
			return err
		}

		userKey := s.namespacedKey(KindUser, user.ID)
		if _, err := tx.Put(userKey, UserToEntity(user, userKey)); err != nil {
			return err
		}
		link = LinkEntity{
			Key:       linkKey,
			Strategy:  string(strategy),
			Value:     value,
			UserID:    user.ID,
			CreatedAt: user.CreatedAt,
		}
		if _, err := tx.Put(linkKey, &link); err != nil {
			return err
		}
		result = user
		return nil
	})
	if err != nil {
		return nil, ss.StoreError("link user", err)
	}
	return result, nil
}

func (s *UserStore) lookup(ctx context.Context, strategy ss.Strategy, value string) (*ss.User, error) {
	var link LinkEntity
	if err := s.client.Get(ctx, s.linkKey(strategy, value), &link); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, ss.ErrUserNotFound
		}
		return nil, ss.StoreError("get link", err)
	}
	return s.GetUserById(ctx, link.UserID)
}

func (s *UserStore) GetUserById(ctx context.Context, userId string) (*ss.User, error) {
	if userId == "" {
		return nil, ss.ErrUserNotFound
	}
	var entity UserEntity
	if err := s.client.Get(ctx, s.namespacedKey(KindUser, userId), &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, ss.ErrUserNotFound
		}
		return nil, ss.StoreError("get user", err)
	}
	return entity.ToUser(), nil
}

func (s *UserStore) SetSecret(ctx context.Context, userId, secret string) error {
	if userId == "" {
		return ss.ErrUserNotFound
	}
	key := s.namespacedKey(KindUser, userId)

	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var entity UserEntity
		if err := tx.Get(key, &entity); err != nil {
			return err
		}
		entity.Secret = secret
		entity.HasSecret = secret != ""
		entity.UpdatedAt = time.Now()
		entity.Version++
		_, err := tx.Put(key, &entity)
		return err
	})
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return ss.ErrUserNotFound
	}
	if err != nil {
		return ss.StoreError("set secret", err)
	}
	return nil
}

func (s *UserStore) ListUsersWithSecrets(ctx context.Context) ([]*ss.User, error) {
	query := datastore.NewQuery(KindUser).
		FilterField("has_secret", "=", true)
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	users := []*ss.User{}
	it := s.client.Run(ctx, query)
	for {
		var entity UserEntity
		_, err := it.Next(&entity)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, ss.StoreError("list users", err)
		}
		users = append(users, entity.ToUser())
	}
	// sorted here to avoid a composite index on has_secret + created_at
	slices.SortFunc(users, func(a, b *ss.User) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return users, nil
}

func (s *UserStore) Close() error {
	return s.client.Close()
}
