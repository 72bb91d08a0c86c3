// Package todo holds the in-memory todo list served by the starter API.
package todo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no todo has the requested ID.
var ErrNotFound = errors.New("todo not found")

// Todo is one item on the list.
type Todo struct {
	ID        string
	Title     string
	Completed bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines todo persistence. Implementations return copies, so callers
// may modify results freely.
type Store interface {
	// List returns every todo, oldest first
	List(ctx context.Context) ([]*Todo, error)

	// Get retrieves a todo by ID
	Get(ctx context.Context, id string) (*Todo, error)

	// Create stores a new, incomplete todo
	Create(ctx context.Context, title string) (*Todo, error)

	// Update changes the non-nil fields of an existing todo
	Update(ctx context.Context, id string, title *string, completed *bool) (*Todo, error)

	// Delete removes a todo by ID
	Delete(ctx context.Context, id string) error
}

// MemoryStore implements Store with a map guarded by a read-write mutex.
// Data is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	todos map[string]*Todo
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		todos: make(map[string]*Todo),
		now:   time.Now,
	}
}

func (m *MemoryStore) List(ctx context.Context) ([]*Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	todos := make([]*Todo, 0, len(m.todos))
	for _, t := range m.todos {
		todoCopy := *t
		todos = append(todos, &todoCopy)
	}

	sort.Slice(todos, func(i, j int) bool {
		if todos[i].CreatedAt.Equal(todos[j].CreatedAt) {
			return todos[i].ID < todos[j].ID
		}
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})

	return todos, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, exists := m.todos[id]
	if !exists {
		return nil, ErrNotFound
	}
	todoCopy := *t
	return &todoCopy, nil
}

func (m *MemoryStore) Create(ctx context.Context, title string) (*Todo, error) {
	now := m.now().UTC()
	t := &Todo{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.todos[t.ID] = t

	todoCopy := *t
	return &todoCopy, nil
}

func (m *MemoryStore) Update(ctx context.Context, id string, title *string, completed *bool) (*Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, exists := m.todos[id]
	if !exists {
		return nil, ErrNotFound
	}
	if title != nil {
		t.Title = *title
	}
	if completed != nil {
		t.Completed = *completed
	}
	t.UpdatedAt = m.now().UTC()

	todoCopy := *t
	return &todoCopy, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.todos[id]; !exists {
		return ErrNotFound
	}
	delete(m.todos, id)
	return nil
}

// Len returns the number of stored todos.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.todos)
}
