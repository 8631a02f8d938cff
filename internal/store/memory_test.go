package store_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lumina/login-gate/internal/domain"
	"lumina/login-gate/internal/store"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

func newRec(id, account string, at time.Time) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		ID:        id,
		AccountID: account,
		EventType: domain.EventSignIn,
		Outcome:   domain.OutcomeAllow,
		DecidedAt: at,
	}
}

func newStore(t *testing.T, size int) *store.Store {
	t.Helper()
	s, err := store.New(size)
	require.NoError(t, err)
	return s
}

var now = time.Now().UTC()

// ─── SaveDecision ─────────────────────────────────────────────────────────────

func TestSave_And_GetByID(t *testing.T) {
	s := newStore(t, 10)
	require.NoError(t, s.SaveDecision(newRec("d-001", "auth0|a", now)))

	got, ok := s.GetDecision("d-001")
	require.True(t, ok)
	assert.Equal(t, "auth0|a", got.AccountID)
}

func TestSave_DuplicateID_ReturnsError(t *testing.T) {
	s := newStore(t, 10)
	rec := newRec("dup", "auth0|a", now)
	require.NoError(t, s.SaveDecision(rec))
	assert.ErrorIs(t, s.SaveDecision(rec), store.ErrDuplicateDecision)
}

func TestGet_MissingID_ReturnsFalse(t *testing.T) {
	_, ok := newStore(t, 10).GetDecision("nope")
	assert.False(t, ok)
}

func TestNew_InvalidSize(t *testing.T) {
	_, err := store.New(0)
	assert.Error(t, err)
}

// ─── Eviction ─────────────────────────────────────────────────────────────────

func TestSave_EvictsOldestAndPrunesIndex(t *testing.T) {
	s := newStore(t, 2)
	require.NoError(t, s.SaveDecision(newRec("d1", "auth0|a", now.Add(-2*time.Minute))))
	require.NoError(t, s.SaveDecision(newRec("d2", "auth0|b", now.Add(-1*time.Minute))))
	require.NoError(t, s.SaveDecision(newRec("d3", "auth0|b", now)))

	assert.Equal(t, 2, s.Len())
	_, ok := s.GetDecision("d1")
	assert.False(t, ok)
	assert.Empty(t, s.DecisionsByAccount("auth0|a"))
	assert.Len(t, s.DecisionsByAccount("auth0|b"), 2)
}

// ─── DecisionsByAccount ───────────────────────────────────────────────────────

func TestDecisionsByAccount_NewestFirst(t *testing.T) {
	s := newStore(t, 10)
	require.NoError(t, s.SaveDecision(newRec("old", "auth0|a", now.Add(-time.Hour))))
	require.NoError(t, s.SaveDecision(newRec("new", "auth0|a", now)))
	require.NoError(t, s.SaveDecision(newRec("other", "auth0|b", now)))

	got := s.DecisionsByAccount("auth0|a")
	require.Len(t, got, 2)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
}

func TestStore_ConcurrentSaves(t *testing.T) {
	s := newStore(t, 50)
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.SaveDecision(newRec(fmt.Sprintf("d-%d", i), fmt.Sprintf("acct-%d", i%5), now))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
	total := 0
	for i := 0; i < 5; i++ {
		total += len(s.DecisionsByAccount(fmt.Sprintf("acct-%d", i)))
	}
	assert.Equal(t, 50, total)
}
