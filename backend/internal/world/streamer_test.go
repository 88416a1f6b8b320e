package world

import (
	"io"
	"log"
	"math/rand"
	"testing"

	adapterPhysics "x-rail/backend/internal/adapter/out/physics"
	"x-rail/backend/internal/config"
)

type streamerFixture struct {
	cfg      config.Config
	scene    *Manager
	physics  *adapterPhysics.DynamicsWorld
	streamer *ChunkStreamer
}

func newStreamerFixture(t *testing.T, mutate func(cfg *config.Config)) *streamerFixture {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	logger := log.New(io.Discard, "", 0)

	scene := NewManager()
	physics := adapterPhysics.NewDynamicsWorld(cfg.Physics, logger)
	physics.Init()

	factory := NewFactory(scene, physics, cfg, logger)
	return &streamerFixture{
		cfg:      cfg,
		scene:    scene,
		physics:  physics,
		streamer: NewChunkStreamer(cfg.World, factory, logger),
	}
}

// expectWindow проверяет, что активны ровно индексы [current-behind, current+visible-1]
func (f *streamerFixture) expectWindow(t *testing.T, z float32) {
	t.Helper()

	current := IndexFor(z, f.cfg.World.ChunkSize)
	lo := current - f.cfg.World.ChunkBufferBehind
	hi := current + f.cfg.World.ChunksVisible - 1

	indices := f.streamer.Indices()
	if len(indices) != hi-lo+1 {
		t.Fatalf("z=%.2f: ожидали %d чанков, получили %d (%v)", z, hi-lo+1, len(indices), indices)
	}
	for i, index := range indices {
		if index != lo+i {
			t.Fatalf("z=%.2f: ожидали окно %d..%d, получили %v", z, lo, hi, indices)
		}
	}

	if got := f.scene.CountByKind(PLANE); got != len(indices) {
		t.Errorf("z=%.2f: плоскостей %d, чанков %d", z, got, len(indices))
	}
	if got := f.scene.CountByKind(GRID); got != len(indices) {
		t.Errorf("z=%.2f: сеток %d, чанков %d", z, got, len(indices))
	}
	if got := f.physics.BodyCount(); got != len(indices) {
		t.Errorf("z=%.2f: тел %d, чанков %d", z, got, len(indices))
	}
}

func TestIndexFor(t *testing.T) {
	tests := []struct {
		z    float32
		want int
	}{
		{0, 0},
		{5, -1},
		{-0.5, 0},
		{-99.9, 0},
		{-100, 1},
		{-250, 2},
		{-1000, 10},
	}

	for _, tt := range tests {
		if got := IndexFor(tt.z, 100); got != tt.want {
			t.Errorf("IndexFor(%.1f) = %d, ожидали %d", tt.z, got, tt.want)
		}
	}
}

func TestChunkStreamer_ScenarioA(t *testing.T) {
	f := newStreamerFixture(t, nil)

	f.streamer.Start(f.cfg.Camera.StartZ)
	f.streamer.Update(-250)

	want := []int{0, 1, 2, 3, 4, 5, 6}
	got := f.streamer.Indices()
	if len(got) != len(want) {
		t.Fatalf("Ожидали %v, получили %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Ожидали %v, получили %v", want, got)
		}
	}
	if f.streamer.Front() != 2 {
		t.Errorf("Ожидали front=2, получили %d", f.streamer.Front())
	}
}

func TestChunkStreamer_ChunkPlacement(t *testing.T) {
	f := newStreamerFixture(t, nil)
	f.streamer.Start(0)

	chunk, ok := f.streamer.Chunk(3)
	if !ok {
		t.Fatal("Чанк 3 должен быть активен")
	}
	if chunk.Z != -300 {
		t.Errorf("Ожидали смещение -300, получили %.1f", chunk.Z)
	}

	plane, ok := f.scene.GetObject(chunk.PlaneID)
	if !ok {
		t.Fatal("Плоскость чанка должна быть в сцене")
	}
	if plane.Position.Z() != -300 || plane.Position.Y() != f.cfg.World.FloorY {
		t.Errorf("Неверная позиция плоскости: %v", plane.Position)
	}

	pos, _, ok := f.physics.ReadTransform(chunk.Body)
	if !ok || pos.Z() != -300 {
		t.Errorf("Тело чанка должно стоять на z=-300, получили %v (ok=%v)", pos, ok)
	}
}

func TestChunkStreamer_WindowInvariantWhileMoving(t *testing.T) {
	f := newStreamerFixture(t, nil)

	z := f.cfg.Camera.StartZ
	f.streamer.Start(z)
	f.expectWindow(t, z)

	// 60 FPS при скорости 6 на протяжении ~3 чанков
	for i := 0; i < 3000; i++ {
		z -= f.cfg.Gameplay.Speed / 60
		f.streamer.Update(z)
		f.expectWindow(t, z)
	}
}

func TestChunkStreamer_LargeJumpsHaveNoGaps(t *testing.T) {
	f := newStreamerFixture(t, func(cfg *config.Config) {
		cfg.World.ChunkSize = 10
		cfg.World.ChunksVisible = 4
		cfg.World.ChunkBufferBehind = 3
	})

	rng := rand.New(rand.NewSource(42))
	z := float32(0)
	f.streamer.Start(z)

	for i := 0; i < 200; i++ {
		z -= rng.Float32() * 55 // до 5 чанков за раз
		f.streamer.Update(z)
		f.expectWindow(t, z)
	}
}

func TestChunkStreamer_NoopWithinChunk(t *testing.T) {
	f := newStreamerFixture(t, nil)
	f.streamer.Start(0)

	if f.streamer.Update(-50) {
		t.Error("Движение внутри чанка не должно менять окно")
	}
	// Повторный вызов на той же границе не создает дубликатов
	f.streamer.Update(-100)
	f.streamer.Update(-100)
	f.expectWindow(t, -100)
}

func TestChunkStreamer_Close(t *testing.T) {
	f := newStreamerFixture(t, nil)
	f.streamer.Start(0)
	f.streamer.Close()

	if f.streamer.Len() != 0 {
		t.Errorf("После Close ожидали 0 чанков, получили %d", f.streamer.Len())
	}
	if f.scene.Count() != 0 || f.physics.BodyCount() != 0 {
		t.Errorf("Ресурсы не освобождены: объектов %d, тел %d", f.scene.Count(), f.physics.BodyCount())
	}
}
