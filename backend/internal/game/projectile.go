package game

import (
	"github.com/go-gl/mathgl/mgl32"

	portPhysics "x-rail/backend/internal/core/port/out/physics"
)

// Projectile запущенный снаряд: визуал и тело принадлежат только ему
type Projectile struct {
	ID     string
	Visual string // ID сферы в сцене
	Body   portPhysics.BodyHandle
	Power  float64
	Radius float32

	lastPosition mgl32.Vec3
}

// ProjectileSet отслеживаемые снаряды в порядке запуска
type ProjectileSet struct {
	items []*Projectile
}

func NewProjectileSet() *ProjectileSet {
	return &ProjectileSet{}
}

// Add регистрирует снаряд для покадрового сопровождения
func (s *ProjectileSet) Add(p *Projectile) {
	s.items = append(s.items, p)
}

// removeAt удаляет снаряд по индексу, сохраняя порядок
func (s *ProjectileSet) removeAt(i int) {
	copy(s.items[i:], s.items[i+1:])
	s.items[len(s.items)-1] = nil
	s.items = s.items[:len(s.items)-1]
}

func (s *ProjectileSet) Len() int {
	return len(s.items)
}

// At возвращает снаряд по индексу
func (s *ProjectileSet) At(i int) *Projectile {
	return s.items[i]
}

// All возвращает копию списка снарядов
func (s *ProjectileSet) All() []*Projectile {
	result := make([]*Projectile, len(s.items))
	copy(result, s.items)
	return result
}
