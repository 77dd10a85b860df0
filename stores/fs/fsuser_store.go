package fs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	ss "github.com/panyam/secretshare"
)

// FSIndexEntry maps an alternative lookup key (local username or provider id)
// onto a user id. One file per key.
type FSIndexEntry struct {
	Strategy  ss.Strategy `json:"strategy"`
	Key       string      `json:"key"`
	UserID    string      `json:"user_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// FSUserStore implements secretshare.UserStore with JSON files.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/
//	│   └── 0b6e...c1.json        # one record per user id
//	└── index/
//	    ├── local/<key>.json      # normalized username -> user id
//	    ├── google/<key>.json     # google id -> user id
//	    └── facebook/<key>.json   # facebook id -> user id
//
// # Concurrency Model
//
// Index files are claimed with a hard link from a fully written temp file,
// which fails if the file already exists. Two callers racing to create a
// record for the same key both write a user file, exactly one claims the
// index and the loser removes its user file and returns the winner's record.
// This holds across processes sharing the directory. Secret updates are
// serialized by an in-process mutex and are last-write-wins across processes.
type FSUserStore struct {
	StoragePath string

	mu sync.Mutex
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) getUserPath(userId string) string {
	return filepath.Join(s.StoragePath, "users", userId+".json")
}

func (s *FSUserStore) getIndexPath(strategy ss.Strategy, key string) string {
	// keys are user supplied, encode them into a safe file name
	name := base64.RawURLEncoding.EncodeToString([]byte(key))
	return filepath.Join(s.StoragePath, "index", string(strategy), name+".json")
}

// normalizeUsername converts username to lowercase for case-insensitive lookup
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func (s *FSUserStore) CreateLocalUser(ctx context.Context, username, email string, passwordHash []byte) (*ss.User, error) {
	now := time.Now()
	user := &ss.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	winner, err := s.createIndexed(ss.StrategyLocal, normalizeUsername(username), user)
	if err != nil {
		return nil, err
	}
	if winner != user.ID {
		return nil, ss.ErrDuplicateIdentity
	}
	return user, nil
}

func (s *FSUserStore) GetLocalUser(ctx context.Context, username string) (*ss.User, error) {
	return s.lookup(ss.StrategyLocal, normalizeUsername(username))
}

func (s *FSUserStore) FindOrCreateByProvider(ctx context.Context, strategy ss.Strategy, providerID string) (*ss.User, bool, error) {
	if user, err := s.lookup(strategy, providerID); err == nil {
		return user, false, nil
	} else if !errors.Is(err, ss.ErrUserNotFound) {
		return nil, false, err
	}

	user := ss.NewProviderUser(strategy, providerID)
	user.ID = uuid.NewString()
	winner, err := s.createIndexed(strategy, providerID, user)
	if err != nil {
		return nil, false, err
	}
	if winner == user.ID {
		return user, true, nil
	}
	existing, err := s.GetUserById(ctx, winner)
	return existing, false, err
}

// createIndexed writes user and then claims the index entry for key. It
// returns the id of the user that owns the key afterwards, which is user.ID
// only if this call won.
func (s *FSUserStore) createIndexed(strategy ss.Strategy, key string, user *ss.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeUser(user); err != nil {
		return "", err
	}

	entry := &FSIndexEntry{Strategy: strategy, Key: key, UserID: user.ID, CreatedAt: user.CreatedAt}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}

	err = claimFile(s.getIndexPath(strategy, key), data)
	if err == nil {
		return user.ID, nil
	}
	os.Remove(s.getUserPath(user.ID))
	if !errors.Is(err, errClaimed) {
		return "", ss.StoreError("claim index", err)
	}
	existing, err := s.readIndex(strategy, key)
	if err != nil {
		return "", err
	}
	return existing.UserID, nil
}

func (s *FSUserStore) lookup(strategy ss.Strategy, key string) (*ss.User, error) {
	entry, err := s.readIndex(strategy, key)
	if err != nil {
		return nil, err
	}
	return s.readUser(entry.UserID)
}

func (s *FSUserStore) readIndex(strategy ss.Strategy, key string) (*FSIndexEntry, error) {
	data, err := os.ReadFile(s.getIndexPath(strategy, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ss.ErrUserNotFound
		}
		return nil, ss.StoreError("read index", err)
	}
	var entry FSIndexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, ss.StoreError("decode index", err)
	}
	return &entry, nil
}

func (s *FSUserStore) GetUserById(ctx context.Context, userId string) (*ss.User, error) {
	return s.readUser(userId)
}

func (s *FSUserStore) readUser(userId string) (*ss.User, error) {
	// ids are uuids; anything else cannot name a file we wrote
	if _, err := uuid.Parse(userId); err != nil {
		return nil, ss.ErrUserNotFound
	}
	data, err := os.ReadFile(s.getUserPath(userId))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ss.ErrUserNotFound
		}
		return nil, ss.StoreError("read user", err)
	}

	var user ss.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, ss.StoreError("decode user", err)
	}
	return &user, nil
}

func (s *FSUserStore) writeUser(user *ss.User) error {
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	if err := writeAtomicFile(s.getUserPath(user.ID), data); err != nil {
		return ss.StoreError("write user", err)
	}
	return nil
}

func (s *FSUserStore) SetSecret(ctx context.Context, userId, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.readUser(userId)
	if err != nil {
		return err
	}
	user.Secret = secret
	user.UpdatedAt = time.Now()
	return s.writeUser(user)
}

func (s *FSUserStore) ListUsersWithSecrets(ctx context.Context) ([]*ss.User, error) {
	usersDir := filepath.Join(s.StoragePath, "users")
	entries, err := os.ReadDir(usersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*ss.User{}, nil
		}
		return nil, ss.StoreError("list users", err)
	}

	users := []*ss.User{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		user, err := s.readUser(strings.TrimSuffix(name, ".json"))
		if err != nil {
			// removed by a losing racer between ReadDir and here
			continue
		}
		if user.HasSecret() {
			users = append(users, user)
		}
	}
	slices.SortFunc(users, func(a, b *ss.User) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return users, nil
}

func (s *FSUserStore) Close() error { return nil }
