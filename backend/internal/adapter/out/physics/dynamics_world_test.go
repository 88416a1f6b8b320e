package physics

import (
	"io"
	"log"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"x-rail/backend/internal/config"
	portPhysics "x-rail/backend/internal/core/port/out/physics"
)

func newTestWorld(t *testing.T) *DynamicsWorld {
	t.Helper()
	w := NewDynamicsWorld(config.Default().Physics, log.New(io.Discard, "", 0))
	w.Init()
	return w
}

func TestDynamicsWorld_StepBeforeInitIsNoop(t *testing.T) {
	w := NewDynamicsWorld(config.Default().Physics, log.New(io.Discard, "", 0))

	// Не должно паниковать и ничего не создавать
	w.Step(1.0/60.0, 10)

	if h := w.CreateDynamicBody(portPhysics.Sphere(1), mgl32.Vec3{}, 1); h.Valid() {
		t.Errorf("До Init тело не должно создаваться, получили %d", h)
	}
	if w.BodyCount() != 0 {
		t.Errorf("Ожидали 0 тел, получили %d", w.BodyCount())
	}

	var nilWorld *DynamicsWorld
	nilWorld.Step(1, 1)
}

func TestDynamicsWorld_FreeFall(t *testing.T) {
	w := newTestWorld(t)
	h := w.CreateDynamicBody(portPhysics.Sphere(0.2), mgl32.Vec3{0, 10, 0}, 5)

	// Одна секунда ровно из 60 подшагов
	for i := 0; i < 60; i++ {
		w.Step(1.0/60.0, 10)
	}

	pos, _, ok := w.ReadTransform(h)
	if !ok {
		t.Fatal("Тело должно существовать")
	}
	// Полунеявный Эйлер дает чуть больше 4.9м за секунду
	fallen := 10 - pos.Y()
	if fallen < 4.8 || fallen > 5.1 {
		t.Errorf("Ожидали падение около 4.9м, получили %.3f", fallen)
	}
}

func TestDynamicsWorld_SphereRestsOnStaticBox(t *testing.T) {
	w := newTestWorld(t)
	cfg := config.Default().Physics

	floor := portPhysics.Box(mgl32.Vec3{50, 1, 50}).WithMaterial(cfg.Margin, cfg.Friction, cfg.Restitution)
	w.CreateStaticBody(floor, mgl32.Vec3{0, -1, 0})

	ball := portPhysics.Sphere(0.2).WithMaterial(cfg.Margin, cfg.Friction, cfg.Restitution)
	h := w.CreateDynamicBody(ball, mgl32.Vec3{0, 3, 0}, 5)

	top := float32(0) // верхняя грань пола: -1 + 1
	for i := 0; i < 600; i++ {
		w.Step(1.0/60.0, 10)
		pos, _, _ := w.ReadTransform(h)
		if pos.Y() < top+0.2-0.05 {
			t.Fatalf("Сфера провалилась сквозь пол на шаге %d: y=%.3f", i, pos.Y())
		}
	}

	pos, _, _ := w.ReadTransform(h)
	if pos.Y() > 1.0 {
		t.Errorf("Через 10 секунд сфера должна лежать на полу, y=%.3f", pos.Y())
	}
}

func TestDynamicsWorld_BounceReversesVelocity(t *testing.T) {
	w := newTestWorld(t)

	floor := portPhysics.Box(mgl32.Vec3{10, 1, 10}).WithMaterial(0, 0.5, 1)
	w.CreateStaticBody(floor, mgl32.Vec3{0, -1, 0})

	h := w.CreateDynamicBody(portPhysics.Sphere(0.5).WithMaterial(0, 0.5, 0.9), mgl32.Vec3{0, 0.52, 0}, 1)
	w.SetLinearVelocity(h, mgl32.Vec3{0, -5, 0})

	w.Step(1.0/60.0, 1)

	v, ok := w.LinearVelocity(h)
	if !ok {
		t.Fatal("Тело должно существовать")
	}
	if v.Y() <= 0 {
		t.Errorf("После удара скорость должна быть направлена вверх, получили %.3f", v.Y())
	}
}

func TestDynamicsWorld_SubStepClamp(t *testing.T) {
	w := newTestWorld(t)
	h := w.CreateDynamicBody(portPhysics.Sphere(1), mgl32.Vec3{}, 1)

	// Секунда при лимите в 10 подшагов: симулируется только 10/60 секунды
	w.Step(1, 10)

	stats := w.Stats()
	if stats["sub_steps"].(uint64) != 10 {
		t.Errorf("Ожидали 10 подшагов, получили %v", stats["sub_steps"])
	}
	if dropped := stats["dropped_steps"].(uint64); dropped < 49 || dropped > 50 {
		t.Errorf("Ожидали около 50 потерянных подшагов, получили %v", dropped)
	}

	v, _ := w.LinearVelocity(h)
	want := float32(-9.8 * 10.0 / 60.0)
	if mgl32.Abs(v.Y()-want) > 1e-3 {
		t.Errorf("Ожидали скорость %.3f, получили %.3f", want, v.Y())
	}
}

func TestDynamicsWorld_RemoveBodyIdempotent(t *testing.T) {
	w := newTestWorld(t)
	h := w.CreateStaticBody(portPhysics.Box(mgl32.Vec3{1, 1, 1}), mgl32.Vec3{})

	if !w.RemoveBody(h) {
		t.Error("Первое удаление должно вернуть true")
	}
	if w.RemoveBody(h) {
		t.Error("Повторное удаление должно вернуть false")
	}
	if _, _, ok := w.ReadTransform(h); ok {
		t.Error("Удаленное тело не должно читаться")
	}
	if w.BodyCount() != 0 {
		t.Errorf("Ожидали 0 тел, получили %d", w.BodyCount())
	}
}

func TestDynamicsWorld_SpheresCollide(t *testing.T) {
	w := NewDynamicsWorld(config.PhysicsConfig{Gravity: 0, FixedTimeStep: 1.0 / 60.0, Steps: 10}, log.New(io.Discard, "", 0))
	w.Init()

	shape := portPhysics.Sphere(0.5).WithMaterial(0, 0, 1)
	a := w.CreateDynamicBody(shape, mgl32.Vec3{-0.55, 0, 0}, 1)
	b := w.CreateDynamicBody(shape, mgl32.Vec3{0.55, 0, 0}, 1)
	w.SetLinearVelocity(a, mgl32.Vec3{5, 0, 0})
	w.SetLinearVelocity(b, mgl32.Vec3{-5, 0, 0})

	w.Step(1.0/60.0, 1)

	va, _ := w.LinearVelocity(a)
	vb, _ := w.LinearVelocity(b)
	if va.X() >= 0 || vb.X() <= 0 {
		t.Errorf("Сферы должны разлететься: va=%.2f vb=%.2f", va.X(), vb.X())
	}
}

func TestLocalInertia(t *testing.T) {
	i := portPhysics.Sphere(1).LocalInertia(5)
	if mgl32.Abs(i.X()-2) > 1e-6 {
		t.Errorf("Инерция сферы: ожидали 2, получили %v", i)
	}

	box := portPhysics.Box(mgl32.Vec3{1, 1, 1}).LocalInertia(12)
	if mgl32.Abs(box.Y()-8) > 1e-6 {
		t.Errorf("Инерция куба: ожидали 8, получили %v", box)
	}

	if !portPhysics.Sphere(1).LocalInertia(0).ApproxEqual(mgl32.Vec3{}) {
		t.Error("Статическое тело не имеет инерции")
	}
}

func TestDynamicsWorld_MarginStopsApproachBeforeTouching(t *testing.T) {
	cfg := config.PhysicsConfig{Gravity: 0, FixedTimeStep: 1.0 / 60.0, Steps: 10}

	cases := []struct {
		name    string
		margin  float32
		stopped bool
	}{
		{"с зазором", 0.05, true},
		{"без зазора", 0, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := NewDynamicsWorld(cfg, log.New(io.Discard, "", 0))
			w.Init()

			w.CreateStaticBody(portPhysics.Box(mgl32.Vec3{10, 1, 10}).WithMaterial(tc.margin, 0, 0), mgl32.Vec3{0, -1, 0})
			h := w.CreateDynamicBody(portPhysics.Sphere(0.5).WithMaterial(tc.margin, 0, 0), mgl32.Vec3{0, 0.55, 0}, 1)
			w.SetLinearVelocity(h, mgl32.Vec3{0, -1, 0})

			// За подшаг сфера проходит 1/60 и остается над полом
			w.Step(1.0/60.0, 1)

			v, _ := w.LinearVelocity(h)
			pos, _, _ := w.ReadTransform(h)
			if stopped := mgl32.Abs(v.Y()) < 1e-4; stopped != tc.stopped {
				t.Errorf("Скорость после подшага %.4f, ожидали остановку: %v", v.Y(), tc.stopped)
			}
			if pos.Y() <= 0.5 {
				t.Errorf("Сфера не должна касаться пола, y=%.4f", pos.Y())
			}
		})
	}
}
