package repo

import (
	"context"
	"sync"

	"github.com/wirejam/wirejam/internal/models"
)

// MemoryShapeRepo keeps snapshots in process memory for the lifetime of the server.
type MemoryShapeRepo struct {
	mu    sync.RWMutex
	rooms map[string]map[string]models.Shape
}

func NewMemoryShapeRepo() *MemoryShapeRepo {
	return &MemoryShapeRepo{rooms: make(map[string]map[string]models.Shape)}
}

func (m *MemoryShapeRepo) Upsert(_ context.Context, roomId string, s models.Shape) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	shapes, ok := m.rooms[roomId]
	if !ok {
		shapes = make(map[string]models.Shape)
		m.rooms[roomId] = shapes
	}
	shapes[s.ID] = cloneShape(s)
	return nil
}

func (m *MemoryShapeRepo) Replace(_ context.Context, roomId string, s models.Shape) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shapes, ok := m.rooms[roomId]
	if !ok {
		return false, nil
	}
	if _, ok := shapes[s.ID]; !ok {
		return false, nil
	}
	shapes[s.ID] = cloneShape(s)
	return true, nil
}

func (m *MemoryShapeRepo) Remove(_ context.Context, roomId, shapeId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if shapes, ok := m.rooms[roomId]; ok {
		delete(shapes, shapeId)
	}
	return nil
}

func (m *MemoryShapeRepo) Clear(_ context.Context, roomId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, roomId)
	return nil
}

func (m *MemoryShapeRepo) ReplaceAll(_ context.Context, roomId string, shapes []models.Shape) error {
	next := make(map[string]models.Shape, len(shapes))
	for _, s := range shapes {
		next[s.ID] = cloneShape(s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(next) == 0 {
		delete(m.rooms, roomId)
		return nil
	}
	m.rooms[roomId] = next
	return nil
}

func (m *MemoryShapeRepo) Snapshot(_ context.Context, roomId string) ([]models.Shape, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	shapes := m.rooms[roomId]
	out := make([]models.Shape, 0, len(shapes))
	for _, s := range shapes {
		out = append(out, cloneShape(s))
	}
	return out, nil
}

func (m *MemoryShapeRepo) Count(_ context.Context, roomId string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[roomId]), nil
}

// cloneShape detaches the content pointer from the caller's copy.
func cloneShape(s models.Shape) models.Shape {
	if s.Content != nil {
		s.Content = models.StringPtr(*s.Content)
	}
	return s
}
