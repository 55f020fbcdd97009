package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Siddarth2230/linklytics/internal/models"
)

// Memory is a process-local LinkRepository. All reads and writes go through one
// RWMutex, which makes every method atomic with respect to the others.
type Memory struct {
	mu     sync.RWMutex
	seq    int64
	links  map[string]*memLink           // by id
	codes  map[string]string             // short code or alias -> id
	events map[string][]models.ClickEvent // by link id, insertion order
}

type memLink struct {
	link models.Link
	seq  int64
}

func NewMemory() *Memory {
	return &Memory{
		links:  make(map[string]*memLink),
		codes:  make(map[string]string),
		events: make(map[string][]models.ClickEvent),
	}
}

func (m *Memory) Create(_ context.Context, link *models.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.codes[link.ShortCode]; ok {
		return ErrDuplicateCode
	}
	if link.CustomAlias != nil {
		if _, ok := m.codes[*link.CustomAlias]; ok {
			return ErrDuplicateCode
		}
	}

	m.seq++
	m.links[link.ID] = &memLink{link: *link, seq: m.seq}
	m.codes[link.ShortCode] = link.ID
	if link.CustomAlias != nil {
		m.codes[*link.CustomAlias] = link.ID
	}
	return nil
}

func (m *Memory) FindByCode(_ context.Context, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byCode(code)
}

func (m *Memory) FindByOwnerAndCode(_ context.Context, ownerID, code string) (*models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byOwnerAndCode(ownerID, code)
}

func (m *Memory) ListByOwner(_ context.Context, ownerID string, asOf time.Time, limit int) ([]models.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found []*memLink
	for _, ml := range m.links {
		if ml.link.OwnerID != ownerID {
			continue
		}
		if ml.link.ExpireAt != nil && !ml.link.ExpireAt.After(asOf) {
			continue
		}
		found = append(found, ml)
	}
	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if !a.link.CreatedAt.Equal(b.link.CreatedAt) {
			return a.link.CreatedAt.After(b.link.CreatedAt)
		}
		return a.seq > b.seq
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	out := make([]models.Link, 0, len(found))
	for _, ml := range found {
		out = append(out, ml.link)
	}
	return out, nil
}

func (m *Memory) IncrementClickCount(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ml, ok := m.links[id]
	if !ok {
		return 0, ErrNotFound
	}
	ml.link.ClickCount++
	return ml.link.ClickCount, nil
}

func (m *Memory) DeleteCascade(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ml, ok := m.links[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.codes, ml.link.ShortCode)
	if ml.link.CustomAlias != nil {
		delete(m.codes, *ml.link.CustomAlias)
	}
	delete(m.events, id)
	delete(m.links, id)
	return nil
}

func (m *Memory) InsertClickEvent(_ context.Context, event *models.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.links[event.LinkID]; !ok {
		return ErrNotFound
	}
	m.events[event.LinkID] = append(m.events[event.LinkID], *event)
	return nil
}

func (m *Memory) ListClickEvents(_ context.Context, linkID string, limit int, newestFirst bool) ([]models.ClickEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clickEvents(linkID, limit, newestFirst), nil
}

func (m *Memory) Analytics(_ context.Context, ownerID, code string, limit int) (*models.Link, []models.ClickEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, err := m.byOwnerAndCode(ownerID, code)
	if err != nil {
		return nil, nil, err
	}
	return link, m.clickEvents(link.ID, limit, true), nil
}

func (m *Memory) Close() error { return nil }

// helpers below expect m.mu to be held

func (m *Memory) byCode(code string) (*models.Link, error) {
	id, ok := m.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	link := m.links[id].link
	return &link, nil
}

func (m *Memory) byOwnerAndCode(ownerID, code string) (*models.Link, error) {
	link, err := m.byCode(code)
	if err != nil {
		return nil, err
	}
	if link.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return link, nil
}

func (m *Memory) clickEvents(linkID string, limit int, newestFirst bool) []models.ClickEvent {
	events := append([]models.ClickEvent(nil), m.events[linkID]...)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	if newestFirst {
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events
}

// Compile-time check: *Memory implements LinkRepository.
var _ LinkRepository = (*Memory)(nil)
