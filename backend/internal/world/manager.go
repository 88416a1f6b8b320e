package world

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// Manager реестр визуальных объектов сцены.
// Пишет в него игровой цикл, читают транспортные горутины, поэтому доступ под мьютексом.
type Manager struct {
	objects map[string]*Object
	version uint64
	mu      sync.RWMutex
}

var _ Scene = (*Manager)(nil)

func NewManager() *Manager {
	return &Manager{
		objects: make(map[string]*Object),
	}
}

// AddObject добавляет объект или заменяет объект с тем же ID
func (m *Manager) AddObject(obj Object) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o := obj
	m.objects[obj.ID] = &o
	m.version++
}

// GetObject возвращает копию объекта по идентификатору
func (m *Manager) GetObject(id string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, exists := m.objects[id]
	if !exists {
		return Object{}, false
	}
	return *obj, true
}

// SetTransform обновляет позицию и вращение объекта
func (m *Manager) SetTransform(id string, position mgl32.Vec3, rotation mgl32.Quat) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, exists := m.objects[id]
	if !exists {
		return false
	}
	obj.Position = position
	obj.Rotation = rotation
	m.version++
	return true
}

// UpdateObject применяет update к объекту под блокировкой
func (m *Manager) UpdateObject(id string, update func(obj *Object)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	obj, exists := m.objects[id]
	if !exists {
		return false
	}
	update(obj)
	obj.ID = id
	m.version++
	return true
}

// RemoveObject удаляет объект. Удаление отсутствующего объекта возвращает false.
func (m *Manager) RemoveObject(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[id]; !exists {
		return false
	}
	delete(m.objects, id)
	m.version++
	return true
}

// Count возвращает количество объектов
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Version растет при каждом изменении сцены
func (m *Manager) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.version
}

// GetAllObjects возвращает копии всех объектов, отсортированные по ID
func (m *Manager) GetAllObjects() []Object {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Object, 0, len(m.objects))
	for _, obj := range m.objects {
		result = append(result, *obj)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// CountByKind возвращает количество объектов заданного типа
func (m *Manager) CountByKind(kind ObjectKind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, obj := range m.objects {
		if obj.Kind == kind {
			n++
		}
	}
	return n
}
