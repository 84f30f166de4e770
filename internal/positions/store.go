package positions

import (
	"context"
	"sort"
	"sync"
)

// Store persists open trades keyed by contract id.
type Store interface {
	Save(ctx context.Context, t OpenTrade) error
	// Remove deletes the trade for contractID and reports whether one existed.
	Remove(ctx context.Context, contractID string) (bool, error)
	// List returns open trades ordered by OpenedAt.
	List(ctx context.Context) ([]OpenTrade, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.Mutex
	trades map[string]OpenTrade
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{trades: make(map[string]OpenTrade)}
}

func (s *MemoryStore) Save(_ context.Context, t OpenTrade) error {
	s.mu.Lock()
	s.trades[t.ContractID] = t
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, contractID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.trades[contractID]
	delete(s.trades, contractID)
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]OpenTrade, error) {
	s.mu.Lock()
	out := make([]OpenTrade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, t)
	}
	s.mu.Unlock()

	sortTrades(out)
	return out, nil
}

func sortTrades(ts []OpenTrade) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].OpenedAt.Equal(ts[j].OpenedAt) {
			return ts[i].ContractID < ts[j].ContractID
		}
		return ts[i].OpenedAt.Before(ts[j].OpenedAt)
	})
}
