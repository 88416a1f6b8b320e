package world

import (
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestManager_AddUpdateRemove(t *testing.T) {
	m := NewManager()

	m.AddObject(Object{ID: "ray:left", Kind: RAY, Scale: 1, Rotation: mgl32.QuatIdent()})
	m.AddObject(Object{ID: "chunk:0:plane", Kind: PLANE, Width: 100, Depth: 100})

	if m.Count() != 2 {
		t.Fatalf("Ожидали 2 объекта, получили %d", m.Count())
	}

	pos := mgl32.Vec3{0.3, 1.2, 4.6}
	if !m.SetTransform("ray:left", pos, mgl32.QuatIdent()) {
		t.Fatal("SetTransform вернул false для существующего объекта")
	}

	// UpdateObject не дает сменить ID
	m.UpdateObject("ray:left", func(obj *Object) {
		obj.Length = 50
		obj.ID = "hijacked"
	})

	obj, ok := m.GetObject("ray:left")
	if !ok {
		t.Fatal("Объект пропал после обновления")
	}
	if obj.Position != pos || obj.Length != 50 {
		t.Errorf("Неожиданное состояние объекта: %+v", obj)
	}

	if m.SetTransform("missing", pos, mgl32.QuatIdent()) {
		t.Error("SetTransform для отсутствующего объекта должен вернуть false")
	}
	if !m.RemoveObject("ray:left") {
		t.Error("Удаление существующего объекта должно вернуть true")
	}
	if m.RemoveObject("ray:left") {
		t.Error("Повторное удаление должно вернуть false")
	}
	if m.CountByKind(PLANE) != 1 || m.CountByKind(RAY) != 0 {
		t.Errorf("Неожиданные счетчики: plane=%d ray=%d", m.CountByKind(PLANE), m.CountByKind(RAY))
	}
}

func TestManager_SnapshotIsCopy(t *testing.T) {
	m := NewManager()
	m.AddObject(Object{ID: "b", Kind: SPHERE, Radius: 0.2})
	m.AddObject(Object{ID: "a", Kind: SPHERE, Radius: 0.1})

	all := m.GetAllObjects()
	if len(all) != 2 || all[0].ID != "a" || all[1].ID != "b" {
		t.Fatalf("Ожидали объекты отсортированные по ID, получили %+v", all)
	}

	all[0].Radius = 99
	if obj, _ := m.GetObject("a"); obj.Radius != 0.1 {
		t.Errorf("Изменение копии затронуло сцену: radius=%v", obj.Radius)
	}
}

func TestManager_VersionGrowsOnChange(t *testing.T) {
	m := NewManager()
	v0 := m.Version()

	m.AddObject(Object{ID: "x"})
	v1 := m.Version()
	if v1 <= v0 {
		t.Errorf("Версия не выросла после AddObject: %d -> %d", v0, v1)
	}

	m.RemoveObject("missing")
	if m.Version() != v1 {
		t.Error("Удаление отсутствующего объекта не должно менять версию")
	}
}

func TestManager_ConcurrentReaders(t *testing.T) {
	m := NewManager()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			m.AddObject(Object{ID: "p", Kind: SPHERE})
			m.SetTransform("p", mgl32.Vec3{0, 0, float32(-i)}, mgl32.QuatIdent())
			m.RemoveObject("p")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = m.GetAllObjects()
			_ = m.Count()
		}
	}()
	wg.Wait()

	if m.Count() != 0 {
		t.Errorf("Ожидали пустую сцену, осталось %d", m.Count())
	}
}
