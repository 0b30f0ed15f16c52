package projects

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is an in-memory Store for tests and local development.
type memoryStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*Project
}

// NewMemoryStore creates an empty in-memory project store.
func NewMemoryStore() Store {
	return &memoryStore{projects: make(map[uuid.UUID]*Project)}
}

func cloneProject(p *Project) *Project {
	c := *p
	if p.Meta != nil {
		c.Meta = make(map[string]string, len(p.Meta))
		for k, v := range p.Meta {
			c.Meta[k] = v
		}
	}
	c.Tags = append([]string(nil), p.Tags...)
	return &c
}

func (m *memoryStore) Create(ctx context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects[p.ID] = cloneProject(p)
	return nil
}

func (m *memoryStore) List(ctx context.Context, userID uuid.UUID, f Filter) ([]*Project, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*Project
	for _, p := range m.projects {
		if p.UserID != userID {
			continue
		}
		if f.Kind != "" && p.Kind != f.Kind {
			continue
		}
		matched = append(matched, p)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if f.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[f.Offset:]
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}

	page := make([]*Project, len(matched))
	for i, p := range matched {
		page[i] = cloneProject(p)
	}
	return page, total, nil
}

func (m *memoryStore) Get(ctx context.Context, userID, id uuid.UUID) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok || p.UserID != userID {
		return nil, ErrProjectNotFound
	}
	return cloneProject(p), nil
}

func (m *memoryStore) Update(ctx context.Context, userID, id uuid.UUID, patch Patch) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok || p.UserID != userID {
		return nil, ErrProjectNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Tags != nil {
		p.Tags = append([]string(nil), *patch.Tags...)
	}
	if patch.IsPublic != nil {
		p.IsPublic = *patch.IsPublic
	}
	p.UpdatedAt = time.Now().UTC()
	return cloneProject(p), nil
}

func (m *memoryStore) Delete(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.projects[id]
	if !ok || p.UserID != userID {
		return ErrProjectNotFound
	}
	delete(m.projects, id)
	return nil
}
