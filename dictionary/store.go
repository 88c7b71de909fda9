package dictionary

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kbukum/lexstream/errors"
	"github.com/kbukum/lexstream/validation"
)

// ErrCodeWordNotFound is the error code sent to clients for unknown words.
const ErrCodeWordNotFound errors.ErrorCode = "WORD_NOT_FOUND"

// Config seeds a Store.
type Config struct {
	// Entries are added on top of the built-in entries.
	Entries []Entry `yaml:"entries" mapstructure:"entries"`
	// SkipBuiltin starts the store without the built-in entries.
	SkipBuiltin bool `yaml:"skip_builtin" mapstructure:"skip_builtin"`
}

// Validate checks every configured entry.
func (c *Config) Validate() error {
	for i := range c.Entries {
		if err := validation.Validate(&c.Entries[i]); err != nil {
			return fmt.Errorf("dictionary.entries[%d]: %w", i, err)
		}
	}
	return nil
}

// Store is an in-memory dictionary, safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStore creates a store holding entries.
func NewStore(entries ...Entry) (*Store, error) {
	s := &Store{entries: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if err := s.Put(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewStoreFromConfig creates a store seeded from cfg.
func NewStoreFromConfig(cfg Config) (*Store, error) {
	var seed []Entry
	if !cfg.SkipBuiltin {
		seed = append(seed, Builtin()...)
	}
	return NewStore(append(seed, cfg.Entries...)...)
}

// Put adds or replaces an entry.
func (s *Store) Put(e Entry) error {
	if err := validation.Validate(&e); err != nil {
		return err
	}
	key := Normalize(e.Word)
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Lookup returns the entry for word. Unknown words yield a not-found
// AppError with code WORD_NOT_FOUND.
func (s *Store) Lookup(ctx context.Context, word string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.RLock()
	e, ok := s.entries[Normalize(word)]
	s.mu.RUnlock()
	if !ok {
		err := errors.NotFound("word", word)
		err.Code = ErrCodeWordNotFound
		err.Message = fmt.Sprintf("No entry for %q.", word)
		return Entry{}, err
	}
	return e, nil
}

// Words returns the stored words, sorted.
func (s *Store) Words() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	words := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		words = append(words, e.Word)
	}
	sort.Strings(words)
	return words
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
