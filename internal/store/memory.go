// Package store keeps a bounded, in-memory log of recent gate decisions for
// operators. It is not the source of truth for anything the gate decides:
// evicted records are simply gone.
//
// Records live in an LRU keyed by decision ID. A secondary index maps each
// account to its decision IDs and is pruned as records are evicted.
package store

import (
	"errors"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"lumina/login-gate/internal/domain"
)

// ErrDuplicateDecision is returned when a decision ID is saved twice.
var ErrDuplicateDecision = errors.New("decision already exists")

// Store is a thread-safe bounded decision log.
type Store struct {
	mu        sync.Mutex
	decisions *lru.Cache[string, *domain.DecisionRecord]

	// account ID → decision IDs, oldest first
	byAccount map[string][]string
}

// New creates a Store holding at most size records.
func New(size int) (*Store, error) {
	s := &Store{byAccount: make(map[string][]string)}
	cache, err := lru.NewWithEvict[string, *domain.DecisionRecord](size, s.onEvict)
	if err != nil {
		return nil, err
	}
	s.decisions = cache
	return s, nil
}

// onEvict drops an evicted record from the account index.
// Runs inside cache calls, which only happen with s.mu held.
func (s *Store) onEvict(id string, rec *domain.DecisionRecord) {
	ids := s.byAccount[rec.AccountID]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byAccount, rec.AccountID)
		return
	}
	s.byAccount[rec.AccountID] = ids
}

// SaveDecision adds a record, evicting the least recently used one if full.
func (s *Store) SaveDecision(rec *domain.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.decisions.Contains(rec.ID) {
		return ErrDuplicateDecision
	}
	s.byAccount[rec.AccountID] = append(s.byAccount[rec.AccountID], rec.ID)
	s.decisions.Add(rec.ID, rec)
	return nil
}

// GetDecision retrieves a record by ID.
func (s *Store) GetDecision(id string) (*domain.DecisionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decisions.Get(id)
}

// DecisionsByAccount returns the retained records for an account, newest first.
func (s *Store) DecisionsByAccount(accountID string) []*domain.DecisionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*domain.DecisionRecord
	ids := s.byAccount[accountID]
	for i := len(ids) - 1; i >= 0; i-- {
		// Peek so listing does not refresh recency.
		if rec, ok := s.decisions.Peek(ids[i]); ok {
			result = append(result, rec)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DecidedAt.After(result[j].DecidedAt)
	})
	return result
}

// Len returns the number of retained records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decisions.Len()
}
