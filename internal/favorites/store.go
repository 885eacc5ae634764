// Package favorites persists the user's saved recipes as one JSON document in
// a cache.Cache, optionally sealed with an age passphrase.
package favorites

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/samber/lo"

	"fridgefeast/internal/ai"
	"fridgefeast/internal/cache"
)

const DefaultKey = "favorites.json"

var (
	ErrLocked = errors.New("favorites are encrypted and no passphrase is configured")
	// ErrUnreadable is returned by Save while the stored document exists but
	// could not be read, so it is never overwritten with a partial set.
	ErrUnreadable = errors.New("refusing to overwrite favorites that could not be read")
)

type Store struct {
	cache      cache.Cache
	key        string
	passphrase string
	workFactor int

	mu         sync.Mutex
	unreadable error
}

type Option func(*Store)

// WithPassphrase encrypts the document at rest.
func WithPassphrase(passphrase string) Option {
	return func(s *Store) {
		s.passphrase = passphrase
	}
}

// WithWorkFactor sets the scrypt work factor (log2 N) used when sealing.
func WithWorkFactor(logN int) Option {
	return func(s *Store) {
		s.workFactor = logN
	}
}

func NewStore(c cache.Cache, key string, opts ...Option) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{cache: c, key: key}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load never fails: missing, unreadable or corrupt data is an empty set.
// Unreadable data (a cache outage or a document sealed with another
// passphrase) also blocks Save until a later Load succeeds.
func (s *Store) Load(ctx context.Context) []ai.Recipe {
	raw, err := cache.GetString(ctx, s.cache, s.key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			slog.DebugContext(ctx, "no saved favorites", "key", s.key)
			s.setUnreadable(nil)
		} else {
			slog.WarnContext(ctx, "failed to read favorites, starting empty", "key", s.key, "error", err)
			s.setUnreadable(err)
		}
		return []ai.Recipe{}
	}

	data, err := s.open(raw)
	if err != nil {
		slog.WarnContext(ctx, "failed to decrypt favorites, starting empty", "key", s.key, "error", err)
		s.setUnreadable(err)
		return []ai.Recipe{}
	}
	s.setUnreadable(nil)

	var recipes []ai.Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		slog.WarnContext(ctx, "ignoring corrupt favorites", "key", s.key, "error", err)
		return []ai.Recipe{}
	}

	valid := lo.Filter(recipes, func(r ai.Recipe, i int) bool {
		if err := r.Validate(); err != nil {
			slog.WarnContext(ctx, "dropping invalid favorite", "index", i, "error", err)
			return false
		}
		return true
	})
	return dedupe(ctx, valid)
}

// dedupe keeps the first record for each title. A later record with the same
// title but different content is reported since only one copy survives.
func dedupe(ctx context.Context, recipes []ai.Recipe) []ai.Recipe {
	seen := make(map[string]string, len(recipes))
	return lo.Filter(recipes, func(r ai.Recipe, i int) bool {
		hash := r.ComputeHash()
		kept, ok := seen[r.Title]
		if !ok {
			seen[r.Title] = hash
			return true
		}
		if kept != hash {
			slog.WarnContext(ctx, "dropping conflicting duplicate favorite", "title", r.Title, "index", i, "hash", hash, "kept", kept)
		}
		return false
	})
}

func (s *Store) setUnreadable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadable = err
}

// Save replaces the stored collection.
func (s *Store) Save(ctx context.Context, recipes []ai.Recipe) error {
	s.mu.Lock()
	unreadable := s.unreadable
	s.mu.Unlock()
	if unreadable != nil {
		return fmt.Errorf("%w (%s): %w", ErrUnreadable, s.key, unreadable)
	}

	if recipes == nil {
		recipes = []ai.Recipe{}
	}
	data, err := json.Marshal(recipes)
	if err != nil {
		return fmt.Errorf("failed to marshal favorites: %w", err)
	}
	sealed, err := s.seal(data)
	if err != nil {
		return err
	}
	if err := s.cache.Put(ctx, s.key, sealed, cache.PutOptions{}); err != nil {
		return fmt.Errorf("failed to store favorites: %w", err)
	}
	return nil
}

func (s *Store) seal(data []byte) (string, error) {
	if s.passphrase == "" {
		return string(data), nil
	}
	recipient, err := age.NewScryptRecipient(s.passphrase)
	if err != nil {
		return "", fmt.Errorf("failed to create age recipient: %w", err)
	}
	if s.workFactor > 0 {
		recipient.SetWorkFactor(s.workFactor)
	}

	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	w, err := age.Encrypt(aw, recipient)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt favorites: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return "", fmt.Errorf("failed to encrypt favorites: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to encrypt favorites: %w", err)
	}
	if err := aw.Close(); err != nil {
		return "", fmt.Errorf("failed to armor favorites: %w", err)
	}
	return buf.String(), nil
}

// open accepts plaintext even when a passphrase is set so an existing
// document is encrypted on its next save.
func (s *Store) open(raw string) ([]byte, error) {
	if !strings.HasPrefix(strings.TrimSpace(raw), armor.Header) {
		return []byte(raw), nil
	}
	if s.passphrase == "" {
		return nil, ErrLocked
	}
	identity, err := age.NewScryptIdentity(s.passphrase)
	if err != nil {
		return nil, err
	}
	r, err := age.Decrypt(armor.NewReader(strings.NewReader(strings.TrimSpace(raw))), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}
