package physics

import (
	"github.com/go-gl/mathgl/mgl32"
)

// PhysicsPort определяет интерфейс для взаимодействия с физическим движком.
// Никто кроме адаптера не трогает внутренности симуляции.
type PhysicsPort interface {
	// CreateStaticBody создает неподвижное тело в точке pos
	CreateStaticBody(shape ShapeDescriptor, pos mgl32.Vec3) BodyHandle

	// CreateDynamicBody создает подвижное тело; тензор инерции считается из массы и формы
	CreateDynamicBody(shape ShapeDescriptor, pos mgl32.Vec3, mass float32) BodyHandle

	// SetLinearVelocity задает линейную скорость тела
	SetLinearVelocity(h BodyHandle, v mgl32.Vec3)

	// Step продвигает симуляцию на dt секунд, не более maxSubSteps подшагов
	Step(dt float32, maxSubSteps int)

	// ReadTransform возвращает мировую позицию и ориентацию тела
	ReadTransform(h BodyHandle) (mgl32.Vec3, mgl32.Quat, bool)

	// RemoveBody удаляет тело из симуляции. Повторное удаление ничего не делает.
	RemoveBody(h BodyHandle) bool
}

// BodyHandle непрозрачный идентификатор тела. Нулевое значение невалидно.
type BodyHandle uint64

// Valid сообщает, ссылается ли дескриптор на тело
func (h BodyHandle) Valid() bool {
	return h != 0
}

// ShapeType тип коллизионной формы
type ShapeType int

const (
	SPHERE ShapeType = iota
	BOX
)

func (t ShapeType) String() string {
	switch t {
	case SPHERE:
		return "sphere"
	case BOX:
		return "box"
	default:
		return "unknown"
	}
}

// ShapeDescriptor описывает коллизионную форму
type ShapeDescriptor struct {
	Type        ShapeType
	Radius      float32    // Для сферы
	HalfExtents mgl32.Vec3 // Для коробки
	Margin      float32
	Friction    float32
	Restitution float32
}

// Sphere создает описание сферы
func Sphere(radius float32) ShapeDescriptor {
	return ShapeDescriptor{Type: SPHERE, Radius: radius}
}

// Box создает описание коробки по половинам размеров
func Box(halfExtents mgl32.Vec3) ShapeDescriptor {
	return ShapeDescriptor{Type: BOX, HalfExtents: halfExtents}
}

// WithMaterial возвращает копию формы с заданными зазором, трением и упругостью
func (s ShapeDescriptor) WithMaterial(margin, friction, restitution float32) ShapeDescriptor {
	s.Margin = margin
	s.Friction = friction
	s.Restitution = restitution
	return s
}

// LocalInertia вычисляет диагональ тензора инерции для массы mass
func (s ShapeDescriptor) LocalInertia(mass float32) mgl32.Vec3 {
	if mass <= 0 {
		return mgl32.Vec3{}
	}

	switch s.Type {
	case SPHERE:
		i := 0.4 * mass * s.Radius * s.Radius
		return mgl32.Vec3{i, i, i}
	case BOX:
		w := 2 * s.HalfExtents.X()
		h := 2 * s.HalfExtents.Y()
		d := 2 * s.HalfExtents.Z()
		k := mass / 12
		return mgl32.Vec3{k * (h*h + d*d), k * (w*w + d*d), k * (w*w + h*h)}
	default:
		return mgl32.Vec3{}
	}
}
