package world

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ObjectKind тип визуального объекта сцены
type ObjectKind int

const (
	PLANE ObjectKind = iota
	GRID
	SPHERE
	RAY
)

func (k ObjectKind) String() string {
	switch k {
	case PLANE:
		return "plane"
	case GRID:
		return "grid"
	case SPHERE:
		return "sphere"
	case RAY:
		return "ray"
	default:
		return "unknown"
	}
}

// Object визуальное представление, которое рендерит внешний клиент
type Object struct {
	ID       string
	Kind     ObjectKind
	Owner    string // Кому принадлежит объект: чанк, снаряд или устройство
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    float32
	Visible  bool

	// Геометрия в зависимости от типа
	Radius    float32 // SPHERE
	Width     float32 // PLANE, GRID
	Depth     float32 // PLANE, GRID
	Length    float32 // RAY
	Divisions int     // GRID

	Color  string
	Color2 string // Вторичный цвет сетки
}

// Scene возможность создавать, двигать и удалять визуальные объекты.
// Ядро пишет в сцену, рендер читает из нее.
type Scene interface {
	AddObject(obj Object)
	SetTransform(id string, position mgl32.Vec3, rotation mgl32.Quat) bool
	UpdateObject(id string, update func(obj *Object)) bool
	RemoveObject(id string) bool
}
