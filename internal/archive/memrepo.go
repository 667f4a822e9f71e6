package archive

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/checkora/internal/domain"
)

// memrepo is a development-only repository used when no database is configured.
type memrepo struct {
	mu sync.RWMutex

	nextID    int64
	byGameID  map[string]*domain.GameRecord
	bySession map[string][]*domain.GameRecord
}

func NewMemoryRepository() Repository {
	return &memrepo{
		byGameID:  make(map[string]*domain.GameRecord),
		bySession: make(map[string][]*domain.GameRecord),
	}
}

func (m *memrepo) Insert(ctx context.Context, rec *domain.GameRecord) (int64, error) {
	if rec == nil {
		return 0, ErrDuplicateGame
	}
	key := strings.TrimSpace(rec.GameID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byGameID[key]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	copy := *rec
	copy.ID = m.nextID
	copy.Moves = append([]string(nil), rec.Moves...)

	m.byGameID[key] = &copy
	m.bySession[rec.SessionHash] = append(m.bySession[rec.SessionHash], &copy)
	return copy.ID, nil
}

func (m *memrepo) Recent(ctx context.Context, sessionHash string, limit int) ([]*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.bySession[sessionHash]
	if len(list) == 0 {
		return []*domain.GameRecord{}, nil
	}
	items := make([]*domain.GameRecord, 0, len(list))
	for _, rec := range list {
		copy := *rec
		items = append(items, &copy)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit <= 0 {
		limit = 10
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
