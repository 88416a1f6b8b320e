package game

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"x-rail/backend/internal/telemetry"
)

func newGC(f *launcherFixture) *LifecycleGC {
	return NewLifecycleGC(f.physics, f.scene, f.projectiles, f.cfg.Cleanup, f.telemetry, quietLogger())
}

func TestLifecycleGC_ScenarioD(t *testing.T) {
	f := newLauncherFixture()
	gc := newGC(f)

	// Снаряд ровно на уровне игрока по оси движения, но ниже пола
	p := f.launcher.Launch(mgl32.Vec3{0, 0, -100}, mgl32.Vec3{0, 0, -1}, 1)
	f.physics.moveTo(p.Body, mgl32.Vec3{0, -11, -100})

	if removed := gc.Update(-100); removed != 1 {
		t.Fatalf("Ожидали удаление одного снаряда, получили %d", removed)
	}
	if f.projectiles.Len() != 0 {
		t.Error("Снаряд должен исчезнуть из списка")
	}
	if _, ok := f.scene.GetObject(p.Visual); ok {
		t.Error("Сфера должна быть удалена из сцены")
	}
	if _, ok := f.physics.bodies[p.Body]; ok {
		t.Error("Тело должно быть удалено из физики")
	}
	if f.telemetry.Count("despawn_floor") != 1 {
		t.Error("Удаление под полом должно попасть в телеметрию")
	}
}

func TestLifecycleGC_Envelope(t *testing.T) {
	f := newLauncherFixture()
	gc := newGC(f)
	playerZ := float32(-1000)

	tests := []struct {
		name string
		pos  mgl32.Vec3
		keep bool
	}{
		{"впереди", mgl32.Vec3{0, 1, -1100}, true},
		{"на границе сзади", mgl32.Vec3{0, 1, -950}, true},
		{"за спиной", mgl32.Vec3{0, 1, -949}, false},
		{"на дальней границе", mgl32.Vec3{0, 1, -1300}, true},
		{"слишком далеко", mgl32.Vec3{0, 1, -1301}, false},
		{"на уровне пола", mgl32.Vec3{0, -10, -1000}, true},
		{"под полом", mgl32.Vec3{0, -10.5, -1000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := f.launcher.Launch(tt.pos, mgl32.Vec3{0, 0, -1}, 0)
			f.physics.moveTo(p.Body, tt.pos)

			gc.Update(playerZ)

			_, kept := f.scene.GetObject(p.Visual)
			if kept != tt.keep {
				t.Errorf("Позиция %v: ожидали keep=%v", tt.pos, tt.keep)
			}
			gc.Clear()
		})
	}
}

func TestLifecycleGC_SyncsTransformAndKeepsOrder(t *testing.T) {
	f := newLauncherFixture()
	gc := newGC(f)

	a := f.launcher.Launch(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, -1}, 0)
	b := f.launcher.Launch(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, -1}, 0)
	c := f.launcher.Launch(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, -1}, 0)

	f.physics.moveTo(a.Body, mgl32.Vec3{1, 2, -3})
	f.physics.moveTo(b.Body, mgl32.Vec3{0, -20, 0})
	f.physics.moveTo(c.Body, mgl32.Vec3{4, 5, -6})

	if removed := gc.Update(0); removed != 1 {
		t.Fatalf("Ожидали одно удаление, получили %d", removed)
	}

	if f.projectiles.Len() != 2 || f.projectiles.At(0) != a || f.projectiles.At(1) != c {
		t.Errorf("Порядок оставшихся снарядов нарушен: %v", f.projectiles.All())
	}

	obj, _ := f.scene.GetObject(a.Visual)
	if obj.Position != (mgl32.Vec3{1, 2, -3}) {
		t.Errorf("Позиция сферы не синхронизирована: %v", obj.Position)
	}
	obj, _ = f.scene.GetObject(c.Visual)
	if obj.Position != (mgl32.Vec3{4, 5, -6}) {
		t.Errorf("Позиция сферы не синхронизирована: %v", obj.Position)
	}
}

func TestLifecycleGC_MissingBodyDropped(t *testing.T) {
	f := newLauncherFixture()
	gc := newGC(f)

	p := f.launcher.Launch(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, -1}, 0)
	f.physics.RemoveBody(p.Body)

	if removed := gc.Update(0); removed != 1 {
		t.Fatalf("Снаряд без тела должен удаляться, получили %d", removed)
	}
	if _, ok := f.scene.GetObject(p.Visual); ok {
		t.Error("Сфера снаряда без тела должна быть удалена")
	}
	if f.telemetry.Count(telemetry.EventDespawn+"_"+DespawnMissing) != 1 {
		t.Error("Ожидали запись о пропавшем теле")
	}
}

func TestLifecycleGC_Clear(t *testing.T) {
	f := newLauncherFixture()
	gc := newGC(f)

	for i := 0; i < 3; i++ {
		f.launcher.Launch(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 0, -1}, 0)
	}

	if n := gc.Clear(); n != 3 {
		t.Errorf("Ожидали очистку 3 снарядов, получили %d", n)
	}
	if f.projectiles.Len() != 0 || len(f.physics.bodies) != 0 || f.scene.Count() != 0 {
		t.Error("После Clear не должно остаться снарядов, тел и сфер")
	}
	if gc.Removed() != 3 {
		t.Errorf("Ожидали счетчик 3, получили %d", gc.Removed())
	}
}
